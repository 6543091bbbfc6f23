// Package http sends outbound calls for the storefront: payment and order
// webhooks, Slack alerts and the API client used by the CLI.
//
//	resp, err := http.Post(webhookURL).
//	    Body(payload).
//	    Timeout(5 * time.Second).
//	    Retry(3, time.Second).
//	    WithContext(ctx).
//	    Send()
//
// Every request carries the caller's request id and a storefront User-Agent.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	gohttp "net/http"
	"net/url"
	"time"

	"github.com/shashiranjanraj/storefront/config"
	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/reqid"
)

// DefaultClient is used when a request has no client of its own. The test
// runner swaps its Transport for a mock.
var DefaultClient = &gohttp.Client{Transport: &gohttp.Transport{
	Proxy:               gohttp.ProxyFromEnvironment,
	MaxIdleConns:        100,
	MaxIdleConnsPerHost: 20,
	IdleConnTimeout:     90 * time.Second,
	TLSHandshakeTimeout: 10 * time.Second,
}}

// maxBackoff caps the doubling wait between attempts.
const maxBackoff = 30 * time.Second

type Request struct {
	ctx     context.Context
	client  *gohttp.Client
	method  string
	target  string
	query   url.Values
	header  gohttp.Header
	payload any

	timeout  time.Duration
	attempts int
	wait     time.Duration
	retry5xx bool
}

func Get(u string) *Request    { return New(gohttp.MethodGet, u) }
func Post(u string) *Request   { return New(gohttp.MethodPost, u) }
func Put(u string) *Request    { return New(gohttp.MethodPut, u) }
func Patch(u string) *Request  { return New(gohttp.MethodPatch, u) }
func Delete(u string) *Request { return New(gohttp.MethodDelete, u) }

func New(method, u string) *Request {
	h := gohttp.Header{}
	h.Set("Accept", "application/json")
	h.Set("User-Agent", config.AppName()+"/1")
	return &Request{
		ctx:      context.Background(),
		method:   method,
		target:   u,
		query:    url.Values{},
		header:   h,
		timeout:  30 * time.Second,
		attempts: 1,
		wait:     500 * time.Millisecond,
	}
}

func (r *Request) Header(key, value string) *Request {
	r.header.Set(key, value)
	return r
}

// Bearer is a no-op for an empty token so anonymous CLI calls stay anonymous.
func (r *Request) Bearer(token string) *Request {
	if token != "" {
		r.header.Set("Authorization", "Bearer "+token)
	}
	return r
}

// Query skips empty values.
func (r *Request) Query(key, value string) *Request {
	if value != "" {
		r.query.Set(key, value)
	}
	return r
}

// Body takes a string (text/plain), a []byte (octet-stream) or any value
// that encodes as JSON.
func (r *Request) Body(v any) *Request {
	r.payload = v
	return r
}

// Timeout bounds each attempt, not the whole Send.
func (r *Request) Timeout(d time.Duration) *Request {
	r.timeout = d
	return r
}

// Retry makes up to n attempts, waiting wait, then twice that, and so on.
// Transport errors always retry; 5xx responses only with RetryServerErrors.
func (r *Request) Retry(n int, wait time.Duration) *Request {
	r.attempts = max(n, 1)
	r.wait = wait
	return r
}

func (r *Request) RetryServerErrors() *Request {
	r.retry5xx = true
	return r
}

func (r *Request) WithContext(ctx context.Context) *Request {
	r.ctx = ctx
	return r
}

func (r *Request) Using(c *gohttp.Client) *Request {
	r.client = c
	return r
}

// Send returns the last response even when its status is not 2xx; call
// Response.Throw to treat that as an error.
func (r *Request) Send() (*Response, error) {
	body, contentType, err := encode(r.payload)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		r.header.Set("Content-Type", contentType)
	}
	target := r.target
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	wait := r.wait
	for attempt := 1; ; attempt++ {
		resp, err := r.attempt(target, body)
		if !r.retryable(resp, err) || attempt == r.attempts {
			if err != nil && r.attempts > 1 {
				err = fmt.Errorf("http: %s %s failed after %d attempts: %w", r.method, r.target, attempt, err)
			}
			return resp, err
		}

		reason := any(err)
		if err == nil {
			reason = resp.StatusCode
		}
		logger.WithCtx(r.ctx).Warn("http: retrying request",
			"method", r.method, "url", r.target, "attempt", attempt, "wait", wait, "reason", reason)

		t := time.NewTimer(wait)
		select {
		case <-t.C:
		case <-r.ctx.Done():
			t.Stop()
			return nil, r.ctx.Err()
		}
		wait = min(2*wait, maxBackoff)
	}
}

func (r *Request) retryable(resp *Response, err error) bool {
	if err != nil {
		return r.ctx.Err() == nil
	}
	return r.retry5xx && resp.StatusCode >= gohttp.StatusInternalServerError
}

func (r *Request) attempt(target string, body []byte) (*Response, error) {
	ctx, cancel := context.WithTimeout(r.ctx, r.timeout)
	defer cancel()

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := gohttp.NewRequestWithContext(ctx, r.method, target, rd)
	if err != nil {
		return nil, fmt.Errorf("http: build request: %w", err)
	}
	req.Header = r.header.Clone()
	reqid.Propagate(r.ctx, req.Header)

	client := r.client
	if client == nil {
		client = DefaultClient
	}
	res, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http: send: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("http: read body: %w", err)
	}
	return &Response{StatusCode: res.StatusCode, Headers: res.Header, Raw: raw}, nil
}

func encode(v any) ([]byte, string, error) {
	switch b := v.(type) {
	case nil:
		return nil, "", nil
	case string:
		return []byte(b), "text/plain; charset=utf-8", nil
	case []byte:
		return b, "application/octet-stream", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, "", fmt.Errorf("http: encode body: %w", err)
	}
	return b, "application/json", nil
}
