package testkit

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// MockTransport answers outbound pkg/http calls from a scenario's "http"
// mocks and records what was sent.
type MockTransport struct {
	mu        sync.Mutex
	routes    []*route
	strict    bool
	unmatched []string
}

type route struct {
	mock   Mock
	method string
	prefix string
	calls  []RecordedCall
}

type RecordedCall struct {
	Method string
	URL    string
	Body   []byte
}

func NewMockTransport(s *Scenario) *MockTransport {
	mt := &MockTransport{strict: s.StrictMocks}
	for _, m := range s.mocks(MockHTTP) {
		rt := &route{mock: m, prefix: m.Match}
		if method, rest, ok := strings.Cut(m.Match, " "); ok && method == strings.ToUpper(method) {
			rt.method, rt.prefix = method, rest
		}
		mt.routes = append(mt.routes, rt)
	}
	return mt
}

func (rt *route) matches(req *http.Request, url string) bool {
	return (rt.method == "" || rt.method == req.Method) && strings.HasPrefix(url, rt.prefix)
}

func (mt *MockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
		_ = req.Body.Close()
	}
	url := req.URL.String()

	mt.mu.Lock()
	defer mt.mu.Unlock()
	for _, rt := range mt.routes {
		if rt.matches(req, url) {
			rt.calls = append(rt.calls, RecordedCall{Method: req.Method, URL: url, Body: body})
			return reply(req, rt.mock.Status, rt.mock.Body), nil
		}
	}

	mt.unmatched = append(mt.unmatched, req.Method+" "+url)
	if mt.strict {
		return nil, fmt.Errorf("testkit: no mock for %s %s", req.Method, url)
	}
	return reply(req, http.StatusNotFound, []byte(`{"message":"no mock configured"}`)), nil
}

// Calls returns the requests answered by the mock whose match is match.
func (mt *MockTransport) Calls(match string) []RecordedCall {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	var out []RecordedCall
	for _, rt := range mt.routes {
		if rt.mock.Match == match {
			out = append(out, rt.calls...)
		}
	}
	return out
}

func (mt *MockTransport) Unmatched() []string {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	return append([]string(nil), mt.unmatched...)
}

// Pending lists the matches of mocks nothing has called yet.
func (mt *MockTransport) Pending() []string {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	var out []string
	for _, rt := range mt.routes {
		if len(rt.calls) == 0 {
			out = append(out, rt.mock.Match)
		}
	}
	return out
}

func reply(req *http.Request, status int, body []byte) *http.Response {
	if status == 0 {
		status = http.StatusOK
	}
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	return &http.Response{
		StatusCode:    status,
		Status:        fmt.Sprintf("%d %s", status, http.StatusText(status)),
		Header:        h,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}
