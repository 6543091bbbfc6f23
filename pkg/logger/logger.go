// Package logger is the process-wide slog logger.
//
// WithCtx is the entry point for request and job code: it returns a logger
// tagged with the request_id carried by ctx.
//
//	logger.WithCtx(ctx).Info("order placed", "order_id", order.OrderID)
//	// level=INFO msg="order placed" request_id=a1b2c3d4-... order_id=ORD-...
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/shashiranjanraj/storefront/config"
	"github.com/shashiranjanraj/storefront/pkg/reqid"
)

var L *slog.Logger

func init() {
	L = slog.New(baseHandler())
	slog.SetDefault(L)
}

// level reads LOG_LEVEL; production defaults to info, everything else to debug.
func level() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(config.Get("LOG_LEVEL", ""))); err == nil {
		return lvl
	}
	if production() {
		return slog.LevelInfo
	}
	return slog.LevelDebug
}

func production() bool {
	switch strings.ToLower(config.AppEnv()) {
	case "production", "prod":
		return true
	}
	return false
}

// baseHandler writes JSON in production, or when LOG_FORMAT=json, and
// text otherwise.
func baseHandler() slog.Handler {
	opts := &slog.HandlerOptions{Level: level()}
	format := strings.ToLower(config.Get("LOG_FORMAT", ""))
	if format == "json" || (format == "" && production()) {
		return slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.NewTextHandler(os.Stdout, opts)
}

// Use rebuilds L to fan out to stdout plus extra (the MongoDB sink at boot).
func Use(extra ...slog.Handler) {
	if len(extra) == 0 {
		return
	}
	hs := append([]slog.Handler{baseHandler()}, extra...)
	L = slog.New(NewMultiHandler(hs...))
	slog.SetDefault(L)
}

type ctxKey struct{}

// WithCtx prefers the logger the HTTP middleware injected. Outside a request,
// for instance in a queued job, it tags L with the request id in ctx if any.
func WithCtx(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return L
	}
	if log, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && log != nil {
		return log
	}
	if id := reqid.FromCtx(ctx); id != "" {
		return L.With("request_id", id)
	}
	return L
}

func InjectLogger(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

func Debug(msg string, args ...any) { L.Debug(msg, args...) }
func Info(msg string, args ...any)  { L.Info(msg, args...) }
func Warn(msg string, args ...any)  { L.Warn(msg, args...) }
func Error(msg string, args ...any) { L.Error(msg, args...) }
