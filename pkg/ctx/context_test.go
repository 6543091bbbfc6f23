package ctx_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "github.com/shashiranjanraj/storefront/pkg/ctx"
	"github.com/shashiranjanraj/storefront/pkg/rbac"
)

func serve(h appctx.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	appctx.Wrap(h)(rec, req)
	return rec
}

func TestSuccessEnvelope(t *testing.T) {
	rec := serve(func(c *appctx.Context) {
		c.Success(map[string]any{"orderId": "ORD-1-ABCD"})
	}, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":200,"data":{"orderId":"ORD-1-ABCD"}}`, rec.Body.String())
}

func TestParamAndSubject(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/orders/{id}", appctx.Wrap(func(c *appctx.Context) {
		assert.Nil(t, c.Subject())
		c.Success(c.Param("id"))
	}))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders/64b7f0c2a1b2c3d4e5f60718", nil))
	assert.Contains(t, rec.Body.String(), `"data":"64b7f0c2a1b2c3d4e5f60718"`)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(rbac.WithSubject(req.Context(), &rbac.Subject{ID: "u1", Role: rbac.RoleAdmin}))
	serve(func(c *appctx.Context) {
		require.NotNil(t, c.Subject())
		assert.Equal(t, "u1", c.Subject().ID)
	}, req)
}

func TestBindJSON(t *testing.T) {
	type input struct {
		Name  string `json:"name"  validate:"required"`
		Email string `json:"email" validate:"required,email"`
	}
	post := func(body, ct string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
		req.Header.Set("Content-Type", ct)
		return req
	}

	var got input
	rec := serve(func(c *appctx.Context) {
		if c.BindJSON(&got) {
			c.Success(nil)
		}
	}, post(`{"name":"John","email":"john@example.com"}`, "application/json"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "John", got.Name)

	rec = serve(func(c *appctx.Context) {
		assert.False(t, c.BindJSON(&input{}))
	}, post(`{"name":""}`, "application/json"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"errors":[{"field":"email"`)

	rec = serve(func(c *appctx.Context) {
		assert.False(t, c.BindJSON(&input{}))
	}, post(`name=John`, "application/x-www-form-urlencoded"))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestQueryHelpers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?page=3&limit=abc&minPrice=9.5&maxPrice=x&includeDeleted=true", nil)
	serve(func(c *appctx.Context) {
		assert.Equal(t, 3, c.QueryInt("page", 1))
		assert.Equal(t, 12, c.QueryInt("limit", 12))
		require.NotNil(t, c.QueryFloat("minPrice"))
		assert.Equal(t, 9.5, *c.QueryFloat("minPrice"))
		assert.Nil(t, c.QueryFloat("maxPrice"))
		assert.True(t, c.QueryBool("includeDeleted"))
		assert.False(t, c.QueryBool("missing"))
	}, req)
}

func TestErrorsAndAttachment(t *testing.T) {
	rec := serve(func(c *appctx.Context) { c.NotFound("Order not found") },
		httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"status":404,"message":"Order not found"}`, rec.Body.String())

	rec = serve(func(c *appctx.Context) { c.Attachment("orders-1.csv", "text/csv", []byte("a,b")) },
		httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, "attachment; filename=orders-1.csv", rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "3", rec.Header().Get("Content-Length"))
	assert.Equal(t, "a,b", rec.Body.String())
}
