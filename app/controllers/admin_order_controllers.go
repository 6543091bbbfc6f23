package controllers

import (
	"net/http"

	"github.com/shashiranjanraj/storefront/app/services"
	"github.com/shashiranjanraj/storefront/pkg/ctx"
	"github.com/shashiranjanraj/storefront/pkg/ws"
)

type AdminOrderController struct {
	reports *services.ReportService
	hub     *ws.Hub
}

// NewAdminOrderController builds the admin order console. hub may be nil,
// which disables the live feed.
func NewAdminOrderController(reports *services.ReportService, hub *ws.Hub) *AdminOrderController {
	return &AdminOrderController{reports: reports, hub: hub}
}

// Index  GET /api/admin/orders
func (h *AdminOrderController) Index(c *ctx.Context) {
	page, err := h.reports.List(c.Context(), services.OrderQuery{
		Status:    c.Query("status"),
		Search:    c.Query("search"),
		StartDate: c.Query("startDate"),
		EndDate:   c.Query("endDate"),
		Page:      c.QueryInt("page", 1),
		Limit:     c.QueryInt("limit", 10),
	})
	if err != nil {
		abort(c, err, "Server error fetching orders")
		return
	}
	c.Success(page)
}

// Stats  GET /api/admin/orders/dashboard/stats
func (h *AdminOrderController) Stats(c *ctx.Context) {
	stats, err := h.reports.Dashboard(c.Context())
	if err != nil {
		abort(c, err, "Server error fetching dashboard stats")
		return
	}
	c.Success(stats)
}

// Show  GET /api/admin/orders/{id}
func (h *AdminOrderController) Show(c *ctx.Context) {
	order, err := h.reports.Get(c.Context(), c.Param("id"))
	if err != nil {
		abort(c, err, "Server error fetching order")
		return
	}
	c.Success(M{"order": order})
}

// UpdateStatus  PUT /api/admin/orders/{id}/status
func (h *AdminOrderController) UpdateStatus(c *ctx.Context) {
	var body struct {
		Status string `json:"status"`
	}
	if !c.BindJSON(&body) {
		return
	}
	order, err := h.reports.UpdateStatus(c.Context(), c.Param("id"), body.Status)
	if err != nil {
		abort(c, err, "Server error updating order status")
		return
	}
	c.Respond(http.StatusOK, "Order status updated successfully", M{"order": order})
}

// AddNote  PUT /api/admin/orders/{id}/notes
func (h *AdminOrderController) AddNote(c *ctx.Context) {
	var body struct {
		Note string `json:"note"`
	}
	if !c.BindJSON(&body) {
		return
	}
	order, err := h.reports.AddNote(c.Context(), c.Subject(), c.Param("id"), body.Note)
	if err != nil {
		abort(c, err, "Server error adding admin note")
		return
	}
	c.Respond(http.StatusOK, "Admin note added successfully", M{"order": order})
}

// Export  POST /api/admin/orders/export
func (h *AdminOrderController) Export(c *ctx.Context) {
	var body struct {
		OrderIDs []string `json:"orderIds"`
	}
	if !c.BindJSON(&body) {
		return
	}
	export, err := h.reports.Export(c.Context(), body.OrderIDs)
	if err != nil {
		abort(c, err, "Server error exporting orders")
		return
	}
	c.Attachment(export.Filename, "text/csv", export.Content)
}

// Live  GET /api/admin/orders/live (websocket)
func (h *AdminOrderController) Live(c *ctx.Context) {
	if h.hub == nil {
		c.NotFound("Live feed is disabled")
		return
	}
	// Upgrade answers the handshake failure itself.
	_ = ws.Upgrade(c.W, c.R, h.hub)
}
