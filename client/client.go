// Package client is a Go SDK for the storefront REST API.
//
//	api := client.New("http://localhost:8000", client.WithToken(state.Token))
//	page, err := api.Products(ctx, services.ProductQuery{Category: "Books"})
//
// Every non-2xx response becomes an *APIError carrying the envelope's
// message and field errors.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	gohttp "net/http"
	"strings"
	"time"

	"github.com/shashiranjanraj/storefront/pkg/http"
	"github.com/shashiranjanraj/storefront/pkg/validate"
)

// Client talks to one storefront server.
type Client struct {
	base           string
	http           *gohttp.Client
	timeout        time.Duration
	token          func() string
	onUnauthorized func()
}

type Option func(*Client)

// WithHTTPClient sends requests through c, e.g. an httptest server's client.
func WithHTTPClient(c *gohttp.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithToken reads the bearer token before each request.
func WithToken(fn func() string) Option {
	return func(cl *Client) { cl.token = fn }
}

// OnUnauthorized is called whenever the server answers 401.
func OnUnauthorized(fn func()) Option {
	return func(cl *Client) { cl.onUnauthorized = fn }
}

func WithTimeout(d time.Duration) Option {
	return func(cl *Client) { cl.timeout = d }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base:    strings.TrimRight(baseURL, "/"),
		timeout: 15 * time.Second,
		token:   func() string { return "" },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx API response.
type APIError struct {
	Status  int
	Message string
	Errors  []validate.FieldError
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("storefront: status %d", e.Status)
	}
	return fmt.Sprintf("storefront: %d %s", e.Status, e.Message)
}

// StatusOf returns the HTTP status behind err, or 0 when err is not an
// API error.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

type envelope struct {
	Status  int                   `json:"status"`
	Message string                `json:"message"`
	Data    json.RawMessage       `json:"data"`
	Errors  []validate.FieldError `json:"errors"`
}

func (c *Client) request(ctx context.Context, method, path string) *http.Request {
	req := http.New(method, c.base+path).
		Bearer(c.token()).
		Timeout(c.timeout).
		WithContext(ctx)
	if c.http != nil {
		req.Using(c.http)
	}
	return req
}

// send executes req and decodes the envelope's data into out (which may be
// nil). The envelope message is returned for endpoints that only report one.
func (c *Client) send(req *http.Request, out any) (string, error) {
	resp, err := req.Send()
	if err != nil {
		return "", err
	}
	var env envelope
	decodeErr := resp.JSON(&env)

	if !resp.OK() {
		if resp.StatusCode == gohttp.StatusUnauthorized && c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		apiErr := &APIError{Status: resp.StatusCode, Message: env.Message, Errors: env.Errors}
		if decodeErr != nil {
			apiErr.Message = strings.TrimSpace(resp.Text())
		}
		return "", apiErr
	}
	if decodeErr != nil {
		return "", decodeErr
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return "", fmt.Errorf("storefront: decode data: %w", err)
		}
	}
	return env.Message, nil
}
