// Package testkit drives API tests from JSON scenario files.
//
// A scenario is one request, what to expect back, values to capture for
// later scenarios, and mocks for the outbound side effects the request
// should cause (Slack webhook, confirmation mail):
//
//	{
//	  "name": "Shopper places an order",
//	  "request": {"method": "POST", "url": "/api/orders", "as": "user", "bodyFile": "02_place_order_req.json"},
//	  "expect": {"status": 201, "body": {"data": {"order": {"orderId": "<any>"}}}},
//	  "capture": {"orderId": "data.order.orderId"},
//	  "mocks": [{"kind": "http", "match": "POST https://hooks.slack.com/"}, {"kind": "mail"}]
//	}
//
// RunDir runs the files of a directory in name order with shared captures,
// so "{{orderId}}" in a later URL or body refers to the value above.
package testkit

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

type Scenario struct {
	Name    string            `json:"name"`
	Request Request           `json:"request"`
	Expect  Expect            `json:"expect"`
	Capture map[string]string `json:"capture"`

	Mocks []Mock `json:"mocks"`
	// StrictMocks fails any outbound HTTP call no mock answers.
	StrictMocks bool `json:"strictMocks"`

	dir string
}

type Request struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	As      string            `json:"as"` // token alias from Runner.WithToken; "anonymous" sends none
	Headers map[string]string `json:"headers"`
	Body    json.RawMessage   `json:"body"`
	// BodyFile is read relative to the scenario file.
	BodyFile string `json:"bodyFile"`
}

type Expect struct {
	Status int `json:"status"`
	// Body is matched as a subset; the string "<any>" accepts any non-null value.
	Body json.RawMessage `json:"body"`
	// BodyFile must match the response exactly, ignoring key order.
	BodyFile string `json:"bodyFile"`
}

// Mock kinds.
const (
	MockHTTP = "http"
	MockMail = "mail"
)

// Mock answers or observes one outbound effect.
//
// For "http", Match is a URL prefix optionally preceded by a method
// ("POST https://hooks.slack.com/") and Status/Body form the reply.
// For "mail", a Status of 400 or more makes sending fail with Body as the
// error text.
type Mock struct {
	Kind   string          `json:"kind"`
	Match  string          `json:"match"`
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

func LoadScenario(path string) (*Scenario, error) {
	var s Scenario
	dir, err := readJSON(path, &s)
	if err != nil {
		return nil, err
	}
	s.dir = dir
	if err := s.check(true); err != nil {
		return nil, fmt.Errorf("testkit: %s: %w", path, err)
	}
	return &s, nil
}

// LoadScenarios reads an array of scenarios. Their method, URL and caller
// may be left for a suite group to fill in.
func LoadScenarios(path string) ([]*Scenario, error) {
	var list []*Scenario
	dir, err := readJSON(path, &list)
	if err != nil {
		return nil, err
	}
	for i, s := range list {
		s.dir = dir
		if err := s.check(false); err != nil {
			return nil, fmt.Errorf("testkit: %s[%d]: %w", path, i, err)
		}
	}
	return list, nil
}

func readJSON(path string, v any) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("testkit: %w", err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", fmt.Errorf("testkit: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return "", fmt.Errorf("testkit: parse %s: %w", path, err)
	}
	return filepath.Dir(abs), nil
}

// check fills defaults. Standalone scenarios must name their own URL.
func (s *Scenario) check(standalone bool) error {
	var errs []error
	if s.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if standalone && s.Request.URL == "" {
		errs = append(errs, errors.New("request.url is required"))
	}
	if len(s.Request.Body) > 0 && s.Request.BodyFile != "" {
		errs = append(errs, errors.New("request.body and request.bodyFile are mutually exclusive"))
	}
	for i, m := range s.Mocks {
		switch m.Kind {
		case MockHTTP:
			if m.Match == "" {
				errs = append(errs, fmt.Errorf("mocks[%d]: http mock needs match", i))
			}
		case MockMail:
		default:
			errs = append(errs, fmt.Errorf("mocks[%d]: unknown kind %q", i, m.Kind))
		}
	}
	if s.Expect.Status == 0 {
		s.Expect.Status = http.StatusOK
	}
	if standalone && s.Request.Method == "" {
		s.Request.Method = http.MethodGet
	}
	return errors.Join(errs...)
}

func (s *Scenario) path(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(s.dir, name)
}

func (s *Scenario) mocks(kind string) []Mock {
	var out []Mock
	for _, m := range s.Mocks {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

// text renders a mock body for error messages: JSON strings unquoted,
// anything else as written.
func (m Mock) text() string {
	var s string
	if json.Unmarshal(m.Body, &s) == nil {
		return s
	}
	return strings.TrimSpace(string(m.Body))
}
