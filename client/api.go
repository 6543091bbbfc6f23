package client

import (
	"context"
	"fmt"
	gohttp "net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shashiranjanraj/storefront/app/models"
	"github.com/shashiranjanraj/storefront/app/services"
	"github.com/shashiranjanraj/storefront/pkg/http"
)

// ─── Auth ─────────────────────────────────────────────────────────────────────

func (c *Client) Register(ctx context.Context, in services.RegisterInput) (*services.AuthResult, error) {
	var out services.AuthResult
	if _, err := c.send(c.request(ctx, gohttp.MethodPost, "/api/auth/register").Body(in), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*services.AuthResult, error) {
	return c.login(ctx, "/api/auth/login", email, password)
}

// AdminLogin fails with 401 for accounts that are not admins.
func (c *Client) AdminLogin(ctx context.Context, email, password string) (*services.AuthResult, error) {
	return c.login(ctx, "/api/admin/auth/login", email, password)
}

func (c *Client) login(ctx context.Context, path, email, password string) (*services.AuthResult, error) {
	var out services.AuthResult
	body := services.LoginInput{Email: email, Password: password}
	if _, err := c.send(c.request(ctx, gohttp.MethodPost, path).Body(body), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Profile(ctx context.Context) (*models.User, error) {
	var out struct {
		User models.User `json:"user"`
	}
	if _, err := c.send(c.request(ctx, gohttp.MethodGet, "/api/auth/profile"), &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

func (c *Client) UpdateProfile(ctx context.Context, in services.ProfileInput) (*models.User, error) {
	var out struct {
		User models.User `json:"user"`
	}
	if _, err := c.send(c.request(ctx, gohttp.MethodPut, "/api/auth/profile").Body(in), &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// ─── Catalog ──────────────────────────────────────────────────────────────────

func productParams(req *http.Request, q services.ProductQuery) *http.Request {
	req.Query("category", q.Category).Query("search", q.Search)
	if q.MinPrice != nil {
		req.Query("minPrice", strconv.FormatFloat(*q.MinPrice, 'f', -1, 64))
	}
	if q.MaxPrice != nil {
		req.Query("maxPrice", strconv.FormatFloat(*q.MaxPrice, 'f', -1, 64))
	}
	if q.Page > 0 {
		req.Query("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		req.Query("limit", strconv.Itoa(q.Limit))
	}
	if q.IncludeDeleted {
		req.Query("includeDeleted", "true")
	}
	return req
}

func (c *Client) Products(ctx context.Context, q services.ProductQuery) (*services.ProductPage, error) {
	var out services.ProductPage
	if _, err := c.send(productParams(c.request(ctx, gohttp.MethodGet, "/api/products"), q), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Product looks a product up by id or slug.
func (c *Client) Product(ctx context.Context, identifier string) (*models.Product, error) {
	return c.product(ctx, gohttp.MethodGet, "/api/products/"+url.PathEscape(identifier), nil)
}

func (c *Client) product(ctx context.Context, method, path string, body any) (*models.Product, error) {
	var out struct {
		Product models.Product `json:"product"`
	}
	req := c.request(ctx, method, path)
	if body != nil {
		req.Body(body)
	}
	if _, err := c.send(req, &out); err != nil {
		return nil, err
	}
	return &out.Product, nil
}

// ─── Orders ───────────────────────────────────────────────────────────────────

func (c *Client) PlaceOrder(ctx context.Context, in services.PlaceOrderInput) (*models.Order, error) {
	return c.order(ctx, gohttp.MethodPost, "/api/orders", in)
}

// Orders lists the caller's orders, newest first.
func (c *Client) Orders(ctx context.Context) ([]models.Order, error) {
	var out struct {
		Orders []models.Order `json:"orders"`
	}
	if _, err := c.send(c.request(ctx, gohttp.MethodGet, "/api/orders"), &out); err != nil {
		return nil, err
	}
	return out.Orders, nil
}

func (c *Client) Order(ctx context.Context, id string) (*models.Order, error) {
	return c.order(ctx, gohttp.MethodGet, "/api/orders/"+url.PathEscape(id), nil)
}

func (c *Client) order(ctx context.Context, method, path string, body any) (*models.Order, error) {
	var out struct {
		Order models.Order `json:"order"`
	}
	req := c.request(ctx, method, path)
	if body != nil {
		req.Body(body)
	}
	if _, err := c.send(req, &out); err != nil {
		return nil, err
	}
	return &out.Order, nil
}

// ─── Admin ────────────────────────────────────────────────────────────────────

func (c *Client) AdminProducts(ctx context.Context, q services.ProductQuery) (*services.ProductPage, error) {
	var out services.ProductPage
	if _, err := c.send(productParams(c.request(ctx, gohttp.MethodGet, "/api/admin/products"), q), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateProduct(ctx context.Context, in services.ProductInput) (*models.Product, error) {
	return c.product(ctx, gohttp.MethodPost, "/api/admin/products", in)
}

func (c *Client) UpdateProduct(ctx context.Context, id string, in services.ProductPatch) (*models.Product, error) {
	return c.product(ctx, gohttp.MethodPut, "/api/admin/products/"+url.PathEscape(id), in)
}

// DeleteProduct soft-deletes a product.
func (c *Client) DeleteProduct(ctx context.Context, id string) (*models.Product, error) {
	return c.product(ctx, gohttp.MethodDelete, "/api/admin/products/"+url.PathEscape(id), nil)
}

// ImportProducts sends items as the products array. Per-item failures are
// reported in the result, not as an error.
func (c *Client) ImportProducts(ctx context.Context, items any) (*services.ImportResult, error) {
	var out services.ImportResult
	body := map[string]any{"products": items}
	if _, err := c.send(c.request(ctx, gohttp.MethodPost, "/api/admin/products/import").Body(body), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AdminOrders(ctx context.Context, q services.OrderQuery) (*services.OrderPage, error) {
	req := c.request(ctx, gohttp.MethodGet, "/api/admin/orders").
		Query("status", q.Status).
		Query("search", q.Search).
		Query("startDate", q.StartDate).
		Query("endDate", q.EndDate)
	if q.Page > 0 {
		req.Query("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		req.Query("limit", strconv.Itoa(q.Limit))
	}

	var out services.OrderPage
	if _, err := c.send(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DashboardStats(ctx context.Context) (*services.DashboardStats, error) {
	var out services.DashboardStats
	if _, err := c.send(c.request(ctx, gohttp.MethodGet, "/api/admin/orders/dashboard/stats"), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AdminOrder(ctx context.Context, id string) (*models.Order, error) {
	return c.order(ctx, gohttp.MethodGet, "/api/admin/orders/"+url.PathEscape(id), nil)
}

func (c *Client) UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus) (*models.Order, error) {
	return c.order(ctx, gohttp.MethodPut, "/api/admin/orders/"+url.PathEscape(id)+"/status", map[string]any{"status": status})
}

func (c *Client) AddOrderNote(ctx context.Context, id, note string) (*models.Order, error) {
	return c.order(ctx, gohttp.MethodPut, "/api/admin/orders/"+url.PathEscape(id)+"/notes", map[string]any{"note": note})
}

// ExportOrders downloads the CSV for ids, or for every order when ids is
// empty. The filename comes from Content-Disposition.
func (c *Client) ExportOrders(ctx context.Context, ids []string) (filename string, csv []byte, err error) {
	if ids == nil {
		ids = []string{}
	}
	resp, err := c.request(ctx, gohttp.MethodPost, "/api/admin/orders/export").
		Header("Accept", "text/csv").
		Body(map[string]any{"orderIds": ids}).
		Send()
	if err != nil {
		return "", nil, err
	}
	if !resp.OK() {
		var env envelope
		_ = resp.JSON(&env)
		if resp.StatusCode == gohttp.StatusUnauthorized && c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return "", nil, &APIError{Status: resp.StatusCode, Message: env.Message, Errors: env.Errors}
	}

	_, name, found := strings.Cut(resp.Header("Content-Disposition"), "filename=")
	if !found {
		return "", nil, fmt.Errorf("storefront: export response has no filename")
	}
	return strings.Trim(name, `"`), resp.Raw, nil
}

// Health reports the server status line.
func (c *Client) Health(ctx context.Context) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	resp, err := c.request(ctx, gohttp.MethodGet, "/api/health").Send()
	if err != nil {
		return "", err
	}
	if err := resp.JSON(&out); err != nil {
		return "", err
	}
	if !resp.OK() {
		return out.Status, &APIError{Status: resp.StatusCode, Message: out.Status}
	}
	return out.Status, nil
}
