package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/shashiranjanraj/storefront/pkg/ctx"
)

type HealthController struct {
	ping func(context.Context) error
}

// NewHealthController reports the datastore through ping; nil skips the check.
func NewHealthController(ping func(context.Context) error) *HealthController {
	return &HealthController{ping: ping}
}

// Show  GET /api/health
func (h *HealthController) Show(c *ctx.Context) {
	if h.ping != nil {
		pc, cancel := context.WithTimeout(c.Context(), 2*time.Second)
		defer cancel()
		if err := h.ping(pc); err != nil {
			c.JSON(http.StatusServiceUnavailable, M{"status": "Database unavailable", "timestamp": time.Now().UTC()})
			return
		}
	}
	c.JSON(http.StatusOK, M{"status": "Server is running", "timestamp": time.Now().UTC()})
}
