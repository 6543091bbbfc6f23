// Package grpc runs the side server that orchestrators probe. It exposes
// grpc.health.v1.Health plus reflection. Each named check is reported as
// its own service ("storefront.store", "storefront.cache") and the bare
// "storefront" service is SERVING only while every check passes.
//
//	srv, err := grpc.Start(config.GRPCPort(), grpc.Checks{"store": a.Store.Ping})
//	go srv.Watch(ctx, 15*time.Second)
//	defer srv.Stop()
package grpc

import (
	"context"
	"fmt"
	"maps"
	"net"
	"runtime/debug"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/metrics"
)

// ServiceName is the aggregate health service.
const ServiceName = "storefront"

const probeTimeout = 3 * time.Second

var (
	handled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront", Subsystem: "grpc",
		Name: "handled_total",
		Help: "gRPC calls completed, by method and code.",
	}, []string{"method", "code"})

	checkFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront", Subsystem: "health",
		Name: "check_failures_total",
		Help: "Failed readiness checks, by dependency.",
	}, []string{"check"})
)

func init() {
	metrics.MustRegister(handled, checkFailures)
}

// Probe returns nil while a dependency is usable.
type Probe func(ctx context.Context) error

// Checks names the dependencies the API needs.
type Checks map[string]Probe

func unaryInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (resp any, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("grpc: panic", "method", info.FullMethod, "panic", r, "stack", string(debug.Stack()))
			err = status.Error(codes.Internal, "internal error")
		}
		handled.WithLabelValues(info.FullMethod, status.Code(err).String()).Inc()
	}()
	return next(ctx, req)
}

type Server struct {
	srv    *grpc.Server
	lis    net.Listener
	health *health.Server
	checks Checks
}

// New registers the health service on lis and runs the checks once. It does
// not serve.
func New(lis net.Listener, checks Checks) *Server {
	srv := grpc.NewServer(grpc.UnaryInterceptor(unaryInterceptor))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	s := &Server{srv: srv, lis: lis, health: hs, checks: checks}
	s.refresh(context.Background())
	return s
}

// Start listens on port and serves in a goroutine.
func Start(port string, checks Checks) (*Server, error) {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return nil, fmt.Errorf("grpc: listen :%s: %w", port, err)
	}
	s := New(lis, checks)
	logger.Info("grpc health server listening", "addr", lis.Addr().String(), "checks", slices.Sorted(maps.Keys(checks)))
	go func() {
		if err := s.Serve(); err != nil {
			logger.Error("grpc: serve", "error", err)
		}
	}()
	return s, nil
}

func (s *Server) Addr() net.Addr { return s.lis.Addr() }

func (s *Server) Serve() error { return s.srv.Serve(s.lis) }

func (s *Server) refresh(ctx context.Context) {
	overall := healthpb.HealthCheckResponse_SERVING
	for name, probe := range s.checks {
		st := healthpb.HealthCheckResponse_SERVING
		pctx, cancel := context.WithTimeout(ctx, probeTimeout)
		err := probe(pctx)
		cancel()
		if err != nil {
			logger.Warn("grpc: check failed", "check", name, "error", err)
			checkFailures.WithLabelValues(name).Inc()
			st = healthpb.HealthCheckResponse_NOT_SERVING
			overall = st
		}
		s.health.SetServingStatus(ServiceName+"."+name, st)
	}
	s.health.SetServingStatus("", overall)
	s.health.SetServingStatus(ServiceName, overall)
}

// Watch re-runs the checks every interval until ctx is done.
func (s *Server) Watch(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.refresh(ctx)
		}
	}
}

// Stop reports NOT_SERVING to watchers and drains in-flight calls. Safe on
// a nil Server.
func (s *Server) Stop() {
	if s == nil {
		return
	}
	s.health.Shutdown()
	s.srv.GracefulStop()
	logger.Info("grpc health server stopped")
}
