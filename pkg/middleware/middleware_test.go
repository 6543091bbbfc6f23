package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/storefront/pkg/auth"
	"github.com/shashiranjanraj/storefront/pkg/metrics"
	"github.com/shashiranjanraj/storefront/pkg/middleware"
	"github.com/shashiranjanraj/storefront/pkg/rbac"
	"github.com/shashiranjanraj/storefront/pkg/reqid"
)

const userID = "64b7f0c2a1b2c3d4e5f60718"

func loader(role rbac.Role) middleware.SubjectLoader {
	return func(_ context.Context, id string) (*rbac.Subject, error) {
		if id != userID {
			return nil, nil
		}
		return &rbac.Subject{ID: id, Name: "Test User", Email: "user@example.com", Role: role}, nil
	}
}

func guarded(load middleware.SubjectLoader, caps ...rbac.Capability) http.Handler {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, _ := rbac.SubjectFromCtx(r.Context())
		w.Header().Set("X-Subject", s.ID)
		w.WriteHeader(http.StatusOK)
	})
	return middleware.Authenticate(load)(rbac.Require(caps...)(ok))
}

func do(h http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/admin/orders", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuthenticateMissingToken(t *testing.T) {
	rec := do(guarded(loader(rbac.RoleUser)), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Authentication required")
}

func TestAuthenticateInvalidToken(t *testing.T) {
	rec := do(guarded(loader(rbac.RoleUser)), "garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid token")
}

func TestAuthenticateDeletedUser(t *testing.T) {
	token, err := auth.GenerateToken("64b7f0c2a1b2c3d4e5f60799")
	require.NoError(t, err)

	rec := do(guarded(loader(rbac.RoleUser)), token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "User not found")
}

func TestAuthenticateLoaderError(t *testing.T) {
	token, err := auth.GenerateToken(userID)
	require.NoError(t, err)

	failing := func(context.Context, string) (*rbac.Subject, error) { return nil, errors.New("db down") }
	rec := do(guarded(failing), token)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRequireCapability(t *testing.T) {
	token, err := auth.GenerateToken(userID)
	require.NoError(t, err)

	rec := do(guarded(loader(rbac.RoleUser), rbac.ViewAnyOrder), token)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(guarded(loader(rbac.RoleAdmin), rbac.ViewAnyOrder), token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, userID, rec.Header().Get("X-Subject"))
}

func TestRecoveryReturns500(t *testing.T) {
	h := middleware.Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Something went wrong!")
}

func TestRateLimit(t *testing.T) {
	h := middleware.RateLimit(2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)
}

func TestLimiterHeadersAndSweep(t *testing.T) {
	counter := middleware.NewMemoryCounter()
	l := middleware.NewLimiter(1, 20*time.Millisecond, counter)
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	hit := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	first := hit()
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", first.Header().Get("X-RateLimit-Remaining"))

	second := hit()
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "1", second.Header().Get("Retry-After"))

	time.Sleep(30 * time.Millisecond)
	l.Sweep()
	assert.Equal(t, http.StatusOK, hit().Code)
}

type brokenCounter struct{}

func (brokenCounter) Hit(context.Context, string, time.Duration) (int64, time.Duration, error) {
	return 0, 0, errors.New("redis: connection refused")
}

func TestLimiterFailsOpen(t *testing.T) {
	h := middleware.NewLimiter(1, time.Minute, brokenCounter{}).Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	for range 3 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := middleware.CORS(middleware.DefaultCORSOptions("http://localhost:5173"))(http.NotFoundHandler())

	req := httptest.NewRequest(http.MethodOptions, "/api/products", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.Header.Set("Origin", "http://evil.test")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoveryCountsPanics(t *testing.T) {
	before := testutil.ToFloat64(metrics.PanicsRecovered)
	h := middleware.Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(errors.New("nil order"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/orders", nil))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.PanicsRecovered))
}

func TestRecoveryReraisesAbort(t *testing.T) {
	h := middleware.Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestCORSMultipleOrigins(t *testing.T) {
	opts := middleware.DefaultCORSOptions("http://localhost:5173, https://admin.shop.test/")
	h := middleware.CORS(opts)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.Header.Set("Origin", "https://admin.shop.test")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://admin.shop.test", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Methods"), "methods only on preflight")
	assert.Equal(t, "Origin", rec.Header().Get("Vary"))
}

func TestCORSWildcard(t *testing.T) {
	opts := middleware.DefaultCORSOptions("*")
	opts.AllowCredentials = false
	h := middleware.CORS(opts)(http.NotFoundHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.Header.Set("Origin", "http://anything.test")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestLoggerPassesStatusThrough(t *testing.T) {
	h := reqid.Middleware(middleware.Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, reqid.FromCtx(r.Context()))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"status":201}`))
	})))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/orders", nil))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(reqid.Header))
}
