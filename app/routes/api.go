package routes

import (
	"net/http"

	"github.com/shashiranjanraj/storefront/app/controllers"
	"github.com/shashiranjanraj/storefront/pkg/ctx"
	"github.com/shashiranjanraj/storefront/pkg/rbac"
	"github.com/shashiranjanraj/storefront/pkg/router"
)

// Handlers is everything the route table dispatches to.
type Handlers struct {
	Auth        *controllers.AuthController
	Products    *controllers.ProductController
	Orders      *controllers.OrderController
	AdminOrders *controllers.AdminOrderController
	Health      *controllers.HealthController

	// Authenticate resolves the bearer token into the request subject.
	Authenticate router.Middleware
	// GraphQL serves the catalog schema; nil leaves /api/graphql unmounted.
	GraphQL http.Handler
}

func RegisterAPI(r *router.Router, h Handlers) {
	api := r.Group("/api")
	api.Get("/health", "health", ctx.Wrap(h.Health.Show))

	auth := api.Group("/auth")
	auth.Post("/register", "auth.register", ctx.Wrap(h.Auth.Register))
	auth.Post("/login", "auth.login", ctx.Wrap(h.Auth.Login))
	auth.Get("/profile", "auth.profile", ctx.Wrap(h.Auth.Profile), h.Authenticate)
	auth.Put("/profile", "auth.profile.update", ctx.Wrap(h.Auth.UpdateProfile), h.Authenticate)

	api.Get("/products", "products.index", ctx.Wrap(h.Products.Index))
	api.Get("/products/{identifier}", "products.show", ctx.Wrap(h.Products.Show))

	orders := api.Group("/orders", h.Authenticate)
	orders.Post("/", "orders.store", ctx.Wrap(h.Orders.Store), rbac.Require(rbac.PlaceOrder))
	orders.Get("/", "orders.index", ctx.Wrap(h.Orders.Index), rbac.Require(rbac.ViewOwnOrders))
	orders.Get("/{id}", "orders.show", ctx.Wrap(h.Orders.Show))

	admin := api.Group("/admin")
	admin.Post("/auth/login", "admin.auth.login", ctx.Wrap(h.Auth.AdminLogin))

	portal := admin.Group("/", h.Authenticate, rbac.Require(rbac.UseAdminPortal))
	portal.Get("/auth/profile", "admin.auth.profile", ctx.Wrap(h.Auth.AdminProfile))

	products := portal.Group("/products", rbac.Require(rbac.ManageCatalog))
	products.Get("/", "admin.products.index", ctx.Wrap(h.Products.AdminIndex))
	products.Post("/", "admin.products.store", ctx.Wrap(h.Products.Store))
	products.Post("/import", "admin.products.import", ctx.Wrap(h.Products.Import))
	products.Get("/{id}", "admin.products.show", ctx.Wrap(h.Products.AdminShow))
	products.Put("/{id}", "admin.products.update", ctx.Wrap(h.Products.Update))
	products.Delete("/{id}", "admin.products.destroy", ctx.Wrap(h.Products.Destroy))

	adminOrders := portal.Group("/orders")
	adminOrders.Get("/", "admin.orders.index", ctx.Wrap(h.AdminOrders.Index), rbac.Require(rbac.ViewAnyOrder))
	adminOrders.Get("/dashboard/stats", "admin.orders.stats", ctx.Wrap(h.AdminOrders.Stats), rbac.Require(rbac.ViewDashboard))
	adminOrders.Get("/live", "admin.orders.live", ctx.Wrap(h.AdminOrders.Live), rbac.Require(rbac.ViewAnyOrder))
	adminOrders.Post("/export", "admin.orders.export", ctx.Wrap(h.AdminOrders.Export), rbac.Require(rbac.ExportOrders))
	adminOrders.Get("/{id}", "admin.orders.show", ctx.Wrap(h.AdminOrders.Show), rbac.Require(rbac.ViewAnyOrder))
	adminOrders.Put("/{id}/status", "admin.orders.status", ctx.Wrap(h.AdminOrders.UpdateStatus), rbac.Require(rbac.ManageOrders))
	adminOrders.Put("/{id}/notes", "admin.orders.notes", ctx.Wrap(h.AdminOrders.AddNote), rbac.Require(rbac.ManageOrders))

	if h.GraphQL != nil {
		api.Handle("/graphql", "graphql", h.GraphQL)
	}
}
