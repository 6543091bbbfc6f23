// Package server owns the listen/serve/shutdown lifecycle of the HTTP and
// gRPC health servers.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/shashiranjanraj/storefront/config"
	"github.com/shashiranjanraj/storefront/internal/bootstrap"
	"github.com/shashiranjanraj/storefront/internal/kernel"
	"github.com/shashiranjanraj/storefront/pkg/cache"
	"github.com/shashiranjanraj/storefront/pkg/grpc"
	"github.com/shashiranjanraj/storefront/pkg/logger"
)

// Start boots the app from config and serves until SIGINT/SIGTERM.
func Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap.FromConfig(ctx)
	if err != nil {
		return err
	}
	return Serve(ctx, a, ":"+config.AppPort())
}

// Serve runs a on addr until ctx is done, then drains in-flight requests
// and background work.
func Serve(ctx context.Context, a *bootstrap.App, addr string) error {
	bg, cancel := context.WithCancel(ctx)
	defer cancel()
	a.Start(bg)

	srv := &http.Server{
		Addr:              addr,
		Handler:           kernel.Handler(a),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	var rpc *grpc.Server
	if port := config.GRPCPort(); port != "" {
		var err error
		if rpc, err = grpc.Start(port, healthChecks(a)); err != nil {
			return err
		}
		go rpc.Watch(bg, 15*time.Second)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("storefront listening", "addr", addr, "env", config.AppEnv(), "db", a.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case serveErr = <-errCh:
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), config.ShutdownTimeout())
	defer done()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	rpc.Stop()
	cancel()

	if err := a.Close(shutdownCtx); err != nil {
		logger.Error("close app", "error", err)
	}
	logger.Info("storefront stopped")
	return serveErr
}

func healthChecks(a *bootstrap.App) grpc.Checks {
	checks := grpc.Checks{"store": a.Store.Ping}
	if rs, ok := a.Cache.(*cache.RedisStore); ok {
		checks["cache"] = func(ctx context.Context) error { return rs.Client().Ping(ctx).Err() }
	}
	return checks
}
