// Package kernel builds the storefront's HTTP handler: the global
// middleware stack followed by the API route table.
package kernel

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/shashiranjanraj/storefront/app/controllers"
	"github.com/shashiranjanraj/storefront/app/graph"
	"github.com/shashiranjanraj/storefront/app/routes"
	"github.com/shashiranjanraj/storefront/config"
	"github.com/shashiranjanraj/storefront/internal/bootstrap"
	"github.com/shashiranjanraj/storefront/pkg/cache"
	"github.com/shashiranjanraj/storefront/pkg/graphql"
	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/metrics"
	"github.com/shashiranjanraj/storefront/pkg/middleware"
	"github.com/shashiranjanraj/storefront/pkg/reqid"
	"github.com/shashiranjanraj/storefront/pkg/response"
	"github.com/shashiranjanraj/storefront/pkg/router"
	"github.com/shashiranjanraj/storefront/pkg/ws"
)

// New returns the router for a. Use Handler to serve it.
func New(a *bootstrap.App) *router.Router {
	r := router.New()

	var counter middleware.Counter
	if rs, ok := a.Cache.(*cache.RedisStore); ok {
		counter = middleware.NewRedisCounter(rs.Client(), strings.ToLower(config.AppName()))
	}
	limiter := middleware.NewLimiter(config.RateLimit(), time.Minute, counter)
	a.Scheduler.EveryMinute().Name("ratelimit:sweep").Run(func(context.Context) error {
		limiter.Sweep()
		return nil
	})
	ws.AllowOrigins(config.ClientURL())

	// Global middleware stack (outermost → innermost):
	//  1. Prometheus metrics  (total latency)
	//  2. Recovery
	//  3. Request ID          (before anything logs)
	//  4. Logger
	//  5. CORS
	//  6. Rate limiter
	r.Use(metrics.Middleware())
	r.Use(middleware.Recovery)
	r.Use(reqid.Middleware)
	r.Use(middleware.Logger)
	r.Use(middleware.CORS(middleware.DefaultCORSOptions(config.ClientURL())))
	r.Use(limiter.Middleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		response.NotFound(w, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/metrics", "metrics", metrics.Handler())

	h := routes.Handlers{
		Auth:         controllers.NewAuthController(a.Auth),
		Products:     controllers.NewProductController(a.Catalog, a.Importer),
		Orders:       controllers.NewOrderController(a.Orders),
		AdminOrders:  controllers.NewAdminOrderController(a.Reports, a.Hub),
		Health:       controllers.NewHealthController(a.Store.Ping),
		Authenticate: middleware.Authenticate(a.Auth.Principal),
	}
	if schema, err := graph.NewSchema(a.Catalog); err != nil {
		logger.Error("graphql schema disabled", "error", err)
	} else {
		h.GraphQL = graphql.Handler(schema)
	}
	routes.RegisterAPI(r, h)

	return r
}

// Handler is New(a).Handler().
func Handler(a *bootstrap.App) http.Handler {
	return New(a).Handler()
}
