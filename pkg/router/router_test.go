package router_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/storefront/pkg/router"
)

func ok(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

func TestGroupsAndURLs(t *testing.T) {
	r := router.New()
	api := r.Group("/api")
	admin := api.Group("admin/")
	admin.Put("/orders/{id}/status", "admin.orders.status", ok)
	api.Get("/products/{identifier}", "products.show", ok)
	r.Get("/metrics", "metrics", ok)

	url, err := r.URL("admin.orders.status", map[string]string{"id": "abc"})
	require.NoError(t, err)
	assert.Equal(t, "/api/admin/orders/abc/status", url)

	_, err = r.URL("products.show", nil)
	assert.Error(t, err)
	_, err = r.URL("nope", nil)
	assert.Error(t, err)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/admin/orders/abc/status", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddlewareOrder(t *testing.T) {
	var trail []string
	mw := func(name string) router.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				trail = append(trail, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	r := router.New()
	g := r.Group("/api", mw("outer"))
	g.Use(mw("inner"))
	g.Delete("/products/{id}", "", ok, mw("route"))
	g.Group("/orders").Get("/", "", ok)

	r.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/api/products/1", nil))
	assert.Equal(t, []string{"outer", "inner", "route"}, trail)

	trail = nil
	r.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/orders", nil))
	assert.Equal(t, []string{"outer", "inner"}, trail)
}

func TestRoutesTable(t *testing.T) {
	r := router.New()
	api := r.Group("/api")
	api.Post("/orders", "orders.store", ok)
	api.Get("/orders", "orders.index", ok)
	api.Handle("/graphql", "graphql", http.HandlerFunc(ok))

	assert.Equal(t, []router.RouteInfo{
		{Method: "*", Path: "/api/graphql", Name: "graphql"},
		{Method: http.MethodGet, Path: "/api/orders", Name: "orders.index"},
		{Method: http.MethodPost, Path: "/api/orders", Name: "orders.store"},
	}, r.Routes())
}

func TestDuplicateNamePanics(t *testing.T) {
	r := router.New()
	r.Get("/a", "dup", ok)
	assert.Panics(t, func() { r.Get("/b", "dup", ok) })
}
