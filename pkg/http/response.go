package http

import (
	"encoding/json"
	"fmt"
	gohttp "net/http"
)

// Response holds a fully read body so it can be decoded more than once.
type Response struct {
	StatusCode int
	Headers    gohttp.Header
	Raw        []byte
}

func (r *Response) OK() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }

func (r *Response) JSON(dest any) error {
	if err := json.Unmarshal(r.Raw, dest); err != nil {
		return fmt.Errorf("http: decode %d response: %w", r.StatusCode, err)
	}
	return nil
}

func (r *Response) Text() string { return string(r.Raw) }

func (r *Response) Header(key string) string { return r.Headers.Get(key) }

// StatusError is returned by Throw for a non-2xx response.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http: unexpected status %d", e.Status)
	}
	return fmt.Sprintf("http: unexpected status %d: %s", e.Status, e.Body)
}

// bodyPreview limits how much of a failed body ends up in logs.
const bodyPreview = 512

func (r *Response) Throw() error {
	if r.OK() {
		return nil
	}
	body := r.Text()
	if len(body) > bodyPreview {
		body = body[:bodyPreview] + "..."
	}
	return &StatusError{Status: r.StatusCode, Body: body}
}
