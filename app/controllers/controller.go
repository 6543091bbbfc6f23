// Package controllers holds the HTTP handlers of the storefront API.
// Handlers are methods taking *ctx.Context and are registered with ctx.Wrap.
package controllers

import (
	"errors"
	"net/http"

	"github.com/shashiranjanraj/storefront/app/services"
	"github.com/shashiranjanraj/storefront/pkg/ctx"
)

// M is shorthand for a JSON object in response data.
type M map[string]any

// abort maps a service error to its status code. Anything unrecognised is
// a 500 with message.
func abort(c *ctx.Context, err error, message string) {
	var orderErr *services.OrderError
	switch {
	case errors.As(err, &orderErr):
		c.Error(http.StatusBadRequest, orderErr.Message)
	case errors.Is(err, services.ErrProductNotFound),
		errors.Is(err, services.ErrOrderNotFound),
		errors.Is(err, services.ErrUserNotFound):
		c.NotFound(err.Error())
	case errors.Is(err, services.ErrForbidden):
		c.Forbidden(err.Error())
	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrNotAdmin):
		c.Unauthorized(err.Error())
	case errors.Is(err, services.ErrEmailTaken),
		errors.Is(err, services.ErrSlugTaken),
		errors.Is(err, services.ErrInvalidStatus),
		errors.Is(err, services.ErrNoteRequired),
		errors.Is(err, services.ErrImportEmpty),
		errors.Is(err, services.ErrInvalidCategory),
		errors.Is(err, services.ErrInvalidDate):
		c.Error(http.StatusBadRequest, err.Error())
	default:
		c.ServerError(message, err)
	}
}
