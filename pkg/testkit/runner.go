package testkit

import (
	"bytes"
	"encoding/json"
	"io"
	"maps"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sfhttp "github.com/shashiranjanraj/storefront/pkg/http"
)

// EffectWait bounds how long a scenario waits for mocked side effects that
// happen on queue workers after the response is written.
var EffectWait = 3 * time.Second

// Runner executes scenarios against one handler. Tokens and captured
// variables carry over between scenarios.
type Runner struct {
	handler http.Handler
	outbox  *Outbox

	mu     sync.Mutex
	tokens map[string]string
	vars   map[string]string
}

func NewRunner(handler http.Handler) *Runner {
	return &Runner{handler: handler, tokens: map[string]string{}, vars: map[string]string{}}
}

// WithToken registers the bearer token sent for "as": alias.
func (r *Runner) WithToken(alias, token string) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[alias] = token
	return r
}

// WithOutbox lets "mail" mocks observe the app's mailer.
func (r *Runner) WithOutbox(o *Outbox) *Runner {
	r.outbox = o
	return r
}

// Set defines {{name}} for URLs, headers and bodies.
func (r *Runner) Set(name, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vars[name] = value
}

func (r *Runner) Var(name string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.vars[name]
}

func (r *Runner) Run(t *testing.T, path string) {
	t.Helper()
	s, err := LoadScenario(path)
	require.NoError(t, err)
	t.Run(s.Name, func(t *testing.T) { r.Execute(t, s) })
}

// RunDir runs every scenario file in dir in name order. Files ending in
// _req.json or _res.json are bodies, not scenarios.
func (r *Runner) RunDir(t *testing.T, dir string) {
	t.Helper()
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	require.NoError(t, err)
	paths = slices.DeleteFunc(paths, func(p string) bool {
		return strings.HasSuffix(p, "_req.json") || strings.HasSuffix(p, "_res.json")
	})
	require.NotEmpty(t, paths, "no scenarios in %s", dir)
	slices.Sort(paths)

	for _, p := range paths {
		s, err := LoadScenario(p)
		if !assert.NoError(t, err) {
			continue
		}
		t.Run(s.Name, func(t *testing.T) { r.Execute(t, s) })
	}
}

// Execute sends s through the handler with its mocks in place and checks
// the reply.
func (r *Runner) Execute(t *testing.T, s *Scenario) {
	t.Helper()

	mt := NewMockTransport(s)
	prev := sfhttp.DefaultClient.Transport
	sfhttp.DefaultClient.Transport = mt
	defer func() { sfhttp.DefaultClient.Transport = prev }()

	if r.outbox != nil {
		r.outbox.arm(s)
	} else if len(s.mocks(MockMail)) > 0 {
		t.Fatalf("%s: mail mocks need Runner.WithOutbox", s.Name)
	}

	rec := httptest.NewRecorder()
	r.handler.ServeHTTP(rec, r.build(t, s))
	body := rec.Body.Bytes()

	assert.Equal(t, s.Expect.Status, rec.Code, "%s: status\nbody: %s", s.Name, body)
	if s.Expect.BodyFile != "" {
		want, err := os.ReadFile(s.path(s.Expect.BodyFile))
		require.NoError(t, err)
		assert.JSONEq(t, string(want), string(body), s.Name)
	}
	if len(s.Expect.Body) > 0 {
		var want, got any
		require.NoError(t, json.Unmarshal([]byte(r.expand(string(s.Expect.Body))), &want), "%s: expect.body", s.Name)
		if assert.NoError(t, json.Unmarshal(body, &got), "%s: response is not JSON\nbody: %s", s.Name, body) {
			for _, d := range Subset(want, got) {
				t.Errorf("%s: %s", s.Name, d)
			}
		}
	}
	r.capture(t, s, body)
	r.awaitEffects(t, s, mt)
}

func (r *Runner) build(t *testing.T, s *Scenario) *http.Request {
	t.Helper()
	raw := []byte(s.Request.Body)
	if s.Request.BodyFile != "" {
		data, err := os.ReadFile(s.path(s.Request.BodyFile))
		require.NoError(t, err)
		raw = data
	}
	var body io.Reader
	if len(raw) > 0 {
		body = bytes.NewReader([]byte(r.expand(string(raw))))
	}

	method := strings.ToUpper(s.Request.Method)
	if method == "" {
		method = http.MethodGet
	}
	req := httptest.NewRequest(method, r.expand(s.Request.URL), body)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if as := s.Request.As; as != "" && as != "anonymous" {
		r.mu.Lock()
		token, ok := r.tokens[as]
		r.mu.Unlock()
		require.True(t, ok, "%s: no token registered for %q", s.Name, as)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range s.Request.Headers {
		req.Header.Set(k, r.expand(v))
	}
	return req
}

// awaitEffects polls until every mock has fired or EffectWait passes.
func (r *Runner) awaitEffects(t *testing.T, s *Scenario, mt *MockTransport) {
	t.Helper()
	wantMail := len(s.mocks(MockMail)) > 0 && r.outbox != nil
	done := func() bool {
		return len(mt.Pending()) == 0 && (!wantMail || len(r.outbox.Sent()) > 0)
	}
	if len(s.Mocks) == 0 {
		return
	}
	if !assert.Eventually(t, done, EffectWait, 10*time.Millisecond) {
		for _, m := range mt.Pending() {
			t.Errorf("%s: http mock %q never called", s.Name, m)
		}
		if wantMail && len(r.outbox.Sent()) == 0 {
			t.Errorf("%s: no mail sent", s.Name)
		}
	}
}

func (r *Runner) expand(in string) string {
	if !strings.Contains(in, "{{") {
		return in
	}
	r.mu.Lock()
	vars := maps.Clone(r.vars)
	r.mu.Unlock()

	pairs := make([]string, 0, 2*len(vars))
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(in)
}

func (r *Runner) capture(t *testing.T, s *Scenario, body []byte) {
	t.Helper()
	if len(s.Capture) == 0 {
		return
	}
	var doc any
	if !assert.NoError(t, json.Unmarshal(body, &doc), "%s: capture needs a JSON response", s.Name) {
		return
	}
	for name, path := range s.Capture {
		v, ok := Lookup(doc, path)
		if !assert.True(t, ok, "%s: capture %s: %q not in response", s.Name, name, path) {
			continue
		}
		switch x := v.(type) {
		case string:
			r.Set(name, x)
		case float64:
			r.Set(name, strconv.FormatFloat(x, 'f', -1, 64))
		default:
			raw, _ := json.Marshal(x)
			r.Set(name, string(raw))
		}
	}
}
