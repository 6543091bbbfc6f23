// Package reqid tags every request with an id that follows it into logs,
// queued jobs and outbound calls.
//
//	r.Use(reqid.Middleware)
//	logger.WithCtx(r.Context()).Info("order placed") // request_id=...
package reqid

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type ctxKey struct{}

const Header = "X-Request-ID"

// maxLen bounds ids accepted from callers.
const maxLen = 128

func New() string { return uuid.NewString() }

func WithValue(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromCtx returns the id stored in ctx, or "".
func FromCtx(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// Ensure returns ctx unchanged when it already carries an id, otherwise a
// child with a fresh one. Background jobs call it so their log lines group.
func Ensure(ctx context.Context) (context.Context, string) {
	if id := FromCtx(ctx); id != "" {
		return ctx, id
	}
	id := New()
	return WithValue(ctx, id), id
}

// Propagate copies the id in ctx onto an outgoing request header.
func Propagate(ctx context.Context, h http.Header) {
	if id := FromCtx(ctx); id != "" && h.Get(Header) == "" {
		h.Set(Header, id)
	}
}

// Middleware trusts an incoming X-Request-ID only when it is short printable
// ASCII; anything else is replaced with a new id.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(Header)
		if !acceptable(id) {
			id = New()
		}
		w.Header().Set(Header, id)
		next.ServeHTTP(w, r.WithContext(WithValue(r.Context(), id)))
	})
}

func acceptable(id string) bool {
	if id == "" || len(id) > maxLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}
