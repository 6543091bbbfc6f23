package kernel_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/shashiranjanraj/storefront/app/listeners"
	"github.com/shashiranjanraj/storefront/app/repositories"
	"github.com/shashiranjanraj/storefront/app/services"
	"github.com/shashiranjanraj/storefront/config"
	"github.com/shashiranjanraj/storefront/database/seeders"
	"github.com/shashiranjanraj/storefront/internal/bootstrap"
	"github.com/shashiranjanraj/storefront/internal/kernel"
	"github.com/shashiranjanraj/storefront/pkg/cache"
	"github.com/shashiranjanraj/storefront/pkg/testkit"
)

const (
	adminEmail    = "admin@example.com"
	adminPassword = "Admin@12345"
)

func TestMain(m *testing.M) {
	config.Set("RATE_LIMIT", "10000")
	os.Exit(m.Run())
}

type env struct {
	app     *bootstrap.App
	handler http.Handler
	user    string
	admin   string
}

// newEnv boots the real kernel over the in-memory store seeded with the
// demo catalog.
func newEnv(t *testing.T) *env {
	t.Helper()
	return newEnvWith(t, bootstrap.Options{})
}

func newEnvWith(t *testing.T, opts bootstrap.Options) *env {
	t.Helper()
	ctx := context.Background()

	opts.Cache, opts.CacheTTL = cache.NewMemory(), time.Minute
	a := bootstrap.New(repositories.NewMemoryStore(), opts)
	require.NoError(t, seeders.RunAll(ctx, &seeders.Deps{
		Auth: a.Auth, Catalog: a.Catalog, AdminEmail: adminEmail, AdminPassword: adminPassword,
	}, io.Discard))

	user, err := a.Auth.Login(ctx, services.LoginInput{Email: seeders.TestUserEmail, Password: seeders.TestUserPassword})
	require.NoError(t, err)
	admin, err := a.Auth.AdminLogin(ctx, services.LoginInput{Email: adminEmail, Password: adminPassword})
	require.NoError(t, err)

	return &env{app: a, handler: kernel.Handler(a), user: user.Token, admin: admin.Token}
}

type reply struct {
	Code    int
	Header  http.Header
	Raw     []byte
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
}

func (e *env) do(t *testing.T, method, path, token string, body any) *reply {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	out := &reply{Code: rec.Code, Header: rec.Header(), Raw: rec.Body.Bytes()}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(out.Raw, out), string(out.Raw))
	}
	return out
}

func (r *reply) into(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.Data, v), string(r.Raw))
}

func (e *env) productID(t *testing.T, slug string) string {
	t.Helper()
	p, err := e.app.Catalog.Get(context.Background(), slug)
	require.NoError(t, err)
	return p.ID.Hex()
}

var address = map[string]string{
	"fullName": "Test User", "phone": "9999999999", "address": "1 Main St",
	"city": "Pune", "state": "MH", "zipCode": "411001", "country": "India",
}

func TestHealthAndUnknownRoute(t *testing.T) {
	e := newEnv(t)

	res := e.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, string(res.Raw), "Server is running")
	assert.NotEmpty(t, res.Header.Get("X-Request-ID"))

	res = e.do(t, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.Equal(t, "Route not found", res.Message)
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	e := newEnv(t)

	for _, path := range []string{"/api/admin/orders", "/api/admin/products", "/api/admin/orders/dashboard/stats", "/api/admin/auth/profile"} {
		assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodGet, path, "", nil).Code, path)
		assert.Equal(t, http.StatusForbidden, e.do(t, http.MethodGet, path, e.user, nil).Code, path)
		assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, path, e.admin, nil).Code, path)
	}

	id := primitive.NewObjectID().Hex()
	writes := []struct{ method, path string }{
		{http.MethodPost, "/api/admin/products"},
		{http.MethodPost, "/api/admin/products/import"},
		{http.MethodPut, "/api/admin/products/" + id},
		{http.MethodDelete, "/api/admin/products/" + id},
		{http.MethodPut, "/api/admin/orders/" + id + "/status"},
		{http.MethodPut, "/api/admin/orders/" + id + "/notes"},
		{http.MethodPost, "/api/admin/orders/export"},
	}
	for _, w := range writes {
		name := w.method + " " + w.path
		assert.Equal(t, http.StatusUnauthorized, e.do(t, w.method, w.path, "", nil).Code, name)
		assert.Equal(t, http.StatusForbidden, e.do(t, w.method, w.path, e.user, nil).Code, name)
		code := e.do(t, w.method, w.path, e.admin, nil).Code
		assert.NotContains(t, []int{http.StatusUnauthorized, http.StatusForbidden}, code, name)
	}

	res := e.do(t, http.MethodPost, "/api/admin/auth/login", "", map[string]string{
		"email": seeders.TestUserEmail, "password": seeders.TestUserPassword,
	})
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestRegisterValidation(t *testing.T) {
	e := newEnv(t)

	res := e.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"email": "nope"})
	require.Equal(t, http.StatusBadRequest, res.Code)
	fields := make([]string, 0, len(res.Errors))
	for _, fe := range res.Errors {
		fields = append(fields, fe.Field)
	}
	assert.Equal(t, []string{"email", "name", "password"}, fields)

	res = e.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Dup", "email": seeders.TestUserEmail, "password": "secret1",
	})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "User already exists with this email", res.Message)
}

func TestCatalogListing(t *testing.T) {
	e := newEnv(t)

	res := e.do(t, http.MethodGet, "/api/products?category=Books", "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	var page services.ProductPage
	res.into(t, &page)
	assert.Len(t, page.Products, 2)
	assert.Equal(t, 12, page.Pagination.Limit)

	res = e.do(t, http.MethodGet, "/api/products/organic-coffee-beans", "", nil)
	assert.Equal(t, http.StatusOK, res.Code)

	id := e.productID(t, "organic-coffee-beans")
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodDelete, "/api/admin/products/"+id, e.admin, nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/api/products/organic-coffee-beans", "", nil).Code)

	res = e.do(t, http.MethodGet, "/api/admin/products?includeDeleted=true&search=coffee", e.admin, nil)
	res.into(t, &page)
	require.Len(t, page.Products, 1)
	assert.True(t, page.Products[0].IsDeleted)
}

func TestOrderFlowThroughAdminConsole(t *testing.T) {
	e := newEnv(t)
	matID := e.productID(t, "yoga-mat-pro")

	res := e.do(t, http.MethodPost, "/api/orders", e.user, map[string]any{
		"items":           []map[string]any{{"product": matID, "quantity": 2}},
		"shippingAddress": address,
	})
	require.Equal(t, http.StatusCreated, res.Code, string(res.Raw))
	var placed struct {
		Order struct {
			ID          string  `json:"_id"`
			OrderID     string  `json:"orderId"`
			TotalAmount float64 `json:"totalAmount"`
			Status      string  `json:"status"`
		} `json:"order"`
	}
	res.into(t, &placed)
	assert.Regexp(t, `^ORD-\d+-[A-Z0-9]{4}$`, placed.Order.OrderID)
	assert.InDelta(t, 119.98, placed.Order.TotalAmount, 0.001)
	assert.Equal(t, "Pending", placed.Order.Status)

	mat, err := e.app.Catalog.Get(context.Background(), "yoga-mat-pro")
	require.NoError(t, err)
	assert.Equal(t, 53, mat.Stock)

	// Another shopper cannot read it.
	other, err := e.app.Auth.Register(context.Background(), services.RegisterInput{Name: "Other", Email: "other@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, e.do(t, http.MethodGet, "/api/orders/"+placed.Order.ID, other.Token, nil).Code)
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/orders/"+placed.Order.ID, e.admin, nil).Code)

	id := placed.Order.ID
	res = e.do(t, http.MethodPut, "/api/admin/orders/"+id+"/status", e.admin, map[string]string{"status": "Teleported"})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "Invalid status", res.Message)

	res = e.do(t, http.MethodPut, "/api/admin/orders/"+id+"/status", e.admin, map[string]string{"status": "Shipped"})
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "Order status updated successfully", res.Message)

	res = e.do(t, http.MethodPut, "/api/admin/orders/"+id+"/notes", e.admin, map[string]string{"note": "   "})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "Note content is required", res.Message)

	res = e.do(t, http.MethodPut, "/api/admin/orders/"+id+"/notes", e.admin, map[string]string{"note": "Left at the door"})
	assert.Equal(t, http.StatusOK, res.Code)

	res = e.do(t, http.MethodGet, "/api/admin/orders?status=Shipped&search="+strings.ToLower(placed.Order.OrderID[4:10]), e.admin, nil)
	require.Equal(t, http.StatusOK, res.Code)
	var page services.OrderPage
	res.into(t, &page)
	require.Len(t, page.Orders, 1)
	assert.InDelta(t, 119.98, page.Stats.TotalRevenue, 0.001)
	require.Len(t, page.Orders[0].AdminNotes, 1)
	assert.Equal(t, "Admin User", page.Orders[0].AdminNotes[0].AuthorName)

	res = e.do(t, http.MethodPost, "/api/admin/orders/export", e.admin, map[string]any{"orderIds": []string{id}})
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "text/csv", res.Header.Get("Content-Type"))
	assert.Regexp(t, `^attachment; filename=orders-\d+\.csv$`, res.Header.Get("Content-Disposition"))
	lines := strings.Split(string(res.Raw), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, services.CSVHeader, lines[0])
	assert.Contains(t, lines[1], `"119.98","Shipped","1"`)
	assert.Contains(t, lines[1], `"Test User","user@example.com"`)
}

func TestOrderRejectedWhenStockShort(t *testing.T) {
	e := newEnv(t)
	beans := e.productID(t, "organic-coffee-beans")
	plants := e.productID(t, "indoor-plant-set")

	res := e.do(t, http.MethodPost, "/api/orders", e.user, map[string]any{
		"items": []map[string]any{
			{"product": beans, "quantity": 3},
			{"product": plants, "quantity": 26},
		},
		"shippingAddress": address,
	})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "Insufficient stock for Indoor Plant Set. Available: 25", res.Message)

	p, err := e.app.Catalog.Get(context.Background(), "organic-coffee-beans")
	require.NoError(t, err)
	// no rollback: the coffee line was taken before the plant line failed
	assert.Equal(t, 117, p.Stock, "earlier line stays decremented")

	res = e.do(t, http.MethodPost, "/api/orders", e.user, map[string]any{"items": []any{}, "shippingAddress": address})
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestGraphQLCatalog(t *testing.T) {
	e := newEnv(t)

	res := e.do(t, http.MethodPost, "/api/graphql", "", map[string]string{
		"query": `{ products(category: "Sports", limit: 1) { total pages products { name slug } } categories }`,
	})
	require.Equal(t, http.StatusOK, res.Code)

	var body struct {
		Data struct {
			Products struct {
				Total    int `json:"total"`
				Pages    int `json:"pages"`
				Products []struct {
					Slug string `json:"slug"`
				} `json:"products"`
			} `json:"products"`
			Categories []string `json:"categories"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(res.Raw, &body))
	assert.Equal(t, 2, body.Data.Products.Total)
	assert.Equal(t, 2, body.Data.Products.Pages)
	assert.Len(t, body.Data.Products.Products, 1)
	assert.Contains(t, body.Data.Categories, "Home & Garden")
}

func TestLiveFeedReceivesPlacedOrders(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.app.Hub.Run(ctx)

	srv := httptest.NewServer(e.handler)
	defer srv.Close()

	header := http.Header{"Authorization": {"Bearer " + e.admin}}
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/admin/orders/live"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Authorization": {"Bearer " + e.user}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return e.app.Hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	res := e.do(t, http.MethodPost, "/api/orders", e.user, map[string]any{
		"items":           []map[string]any{{"product": e.productID(t, "smart-fitness-watch"), "quantity": 1}},
		"shippingAddress": address,
	})
	require.Equal(t, http.StatusCreated, res.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var msg listeners.LiveMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, services.EventOrderPlaced, msg.Event)
	assert.InDelta(t, 249.99, msg.Order.TotalAmount, 0.001)
}

func TestScenarios(t *testing.T) {
	e := newEnv(t)
	r := testkit.NewRunner(e.handler).
		WithToken("user", e.user).
		WithToken("admin", e.admin)
	r.Set("matId", e.productID(t, "yoga-mat-pro"))
	r.RunDir(t, "testdata")
}

func TestAdminProductSuite(t *testing.T) {
	e := newEnv(t)
	testkit.NewRunner(e.handler).
		WithToken("user", e.user).
		WithToken("admin", e.admin).
		RunSuite(t, "testdata/suite/master.json")
}

func TestOrderNotificationScenario(t *testing.T) {
	outbox := testkit.NewOutbox()
	e := newEnvWith(t, bootstrap.Options{Mailer: outbox, SlackWebhook: "https://hooks.slack.com/services/T0/B0"})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	e.app.RunWorkers(ctx, 1)

	r := testkit.NewRunner(e.handler).WithToken("user", e.user).WithOutbox(outbox)
	r.Set("matId", e.productID(t, "yoga-mat-pro"))
	r.RunDir(t, "testdata/notify")

	sent := outbox.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{seeders.TestUserEmail}, sent[0].To)
	assert.Contains(t, sent[0].Subject, "Your order ORD-")
}
