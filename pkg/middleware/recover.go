package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/shashiranjanraj/storefront/config"
	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/metrics"
	"github.com/shashiranjanraj/storefront/pkg/response"
)

// Recovery turns a handler panic into the generic 500 envelope. The panic
// value and stack are logged; clients see them only in development.
// http.ErrAbortHandler is re-raised so the server drops the connection.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == http.ErrAbortHandler {
				panic(v)
			}
			serverPanic(w, r, v, debug.Stack())
		}()
		next.ServeHTTP(w, r)
	})
}

func serverPanic(w http.ResponseWriter, r *http.Request, v any, stack []byte) {
	metrics.PanicsRecovered.Inc()
	msg := fmt.Sprint(v)
	logger.WithCtx(r.Context()).Error("panic recovered",
		"error", msg, "method", r.Method, "path", r.URL.Path, "stack", string(stack))

	body := response.Envelope{Status: http.StatusInternalServerError, Message: "Something went wrong!"}
	if config.IsDevelopment() {
		body.Errors = map[string]string{"error": msg, "stack": string(stack)}
	}
	response.Write(w, http.StatusInternalServerError, body)
}
