// Package ctx gives handlers one *Context instead of the (w, r) pair, with
// helpers for path and query params, JSON binding and the response envelope.
//
//	func (h *OrderHandler) Show(c *ctx.Context) {
//	    order, err := h.orders.Get(c.Context(), c.Subject(), c.Param("id"))
//	    if err != nil {
//	        abort(c, err, "Error fetching order")
//	        return
//	    }
//	    c.Success(order)
//	}
//
//	api.Get("/orders/{id}", "orders.show", ctx.Wrap(h.Show))
package ctx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/shashiranjanraj/storefront/config"
	"github.com/shashiranjanraj/storefront/pkg/bind"
	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/rbac"
	"github.com/shashiranjanraj/storefront/pkg/response"
	"github.com/shashiranjanraj/storefront/pkg/validate"
)

type HandlerFunc func(c *Context)

// Wrap adapts h to http.HandlerFunc.
func Wrap(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := pool.Get().(*Context)
		c.W, c.R, c.status = w, r, 0
		defer func() {
			c.W, c.R = nil, nil
			pool.Put(c)
		}()
		h(c)
	}
}

// Context is valid only for the duration of the handler call.
type Context struct {
	W      http.ResponseWriter
	R      *http.Request
	status int
}

var pool = sync.Pool{New: func() any { return new(Context) }}

// ─── Request ──────────────────────────────────────────────────────────────────

func (c *Context) Param(key string) string { return chi.URLParam(c.R, key) }

func (c *Context) Query(key string) string { return c.R.URL.Query().Get(key) }

// QueryInt parses a positive integer query value, or returns def.
func (c *Context) QueryInt(key string, def int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n < 1 {
		return def
	}
	return n
}

// QueryFloat returns nil when key is absent or not a number.
func (c *Context) QueryFloat(key string) *float64 {
	f, err := strconv.ParseFloat(c.Query(key), 64)
	if err != nil {
		return nil
	}
	return &f
}

func (c *Context) QueryBool(key string) bool {
	b, _ := strconv.ParseBool(c.Query(key))
	return b
}

func (c *Context) Context() context.Context { return c.R.Context() }

// Subject returns the authenticated caller, or nil on public routes.
func (c *Context) Subject() *rbac.Subject {
	s, _ := rbac.SubjectFromCtx(c.R.Context())
	return s
}

// BindJSON decodes and validates the body into dest. On failure the error
// response has already been written and BindJSON returns false.
func (c *Context) BindJSON(dest any) bool {
	errs, err := bind.JSON(c.R, dest)
	if err != nil {
		status := http.StatusBadRequest
		var be *bind.Error
		if errors.As(err, &be) {
			status = be.Status
		}
		c.Error(status, err.Error())
		return false
	}
	if validate.HasErrors(errs) {
		c.ValidationError(errs)
		return false
	}
	return true
}

// ─── Response ─────────────────────────────────────────────────────────────────

func (c *Context) JSON(code int, v any) {
	c.W.Header().Set("Content-Type", "application/json")
	c.W.WriteHeader(code)
	c.status = code
	json.NewEncoder(c.W).Encode(v) //nolint:errcheck
}

func (c *Context) Success(data any) {
	c.JSON(http.StatusOK, response.Envelope{Status: http.StatusOK, Data: data})
}

func (c *Context) Respond(code int, message string, data any) {
	c.JSON(code, response.Envelope{Status: code, Message: message, Data: data})
}

func (c *Context) Created(message string, data any) {
	c.Respond(http.StatusCreated, message, data)
}

func (c *Context) Error(code int, message string) {
	c.JSON(code, response.Envelope{Status: code, Message: message})
}

// ValidationError sends a 400 listing every failed field, sorted by name.
func (c *Context) ValidationError(errs map[string]string) {
	c.JSON(http.StatusBadRequest, response.Envelope{
		Status:  http.StatusBadRequest,
		Message: "Validation failed",
		Errors:  validate.List(errs),
	})
}

// ServerError logs err and sends a 500. The error text reaches the client
// only in development.
func (c *Context) ServerError(message string, err error) {
	logger.WithCtx(c.Context()).Error(message, "error", err, "method", c.R.Method, "path", c.R.URL.Path)
	body := response.Envelope{Status: http.StatusInternalServerError, Message: message}
	if config.IsDevelopment() && err != nil {
		body.Errors = map[string]string{"error": err.Error()}
	}
	c.JSON(http.StatusInternalServerError, body)
}

// Attachment writes body as a file download.
func (c *Context) Attachment(filename, contentType string, body []byte) {
	h := c.W.Header()
	h.Set("Content-Type", contentType)
	h.Set("Content-Disposition", "attachment; filename="+filename)
	h.Set("Content-Length", strconv.Itoa(len(body)))
	c.W.WriteHeader(http.StatusOK)
	c.status = http.StatusOK
	c.W.Write(body) //nolint:errcheck
}

func (c *Context) Unauthorized(message string) { c.Error(http.StatusUnauthorized, message) }

func (c *Context) Forbidden(message string) { c.Error(http.StatusForbidden, message) }

func (c *Context) NotFound(message string) { c.Error(http.StatusNotFound, message) }
