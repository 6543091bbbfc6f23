// Package middleware provides the HTTP middleware stack: authentication,
// CORS, request logging, panic recovery and per-IP rate limiting.
package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/response"
)

// Counter counts hits on key within a fixed window and reports how long
// until the window resets.
type Counter interface {
	Hit(ctx context.Context, key string, window time.Duration) (count int64, reset time.Duration, err error)
}

// MemoryCounter keeps windows in process; each API replica limits alone.
type MemoryCounter struct {
	mu      sync.Mutex
	windows map[string]*window
}

type window struct {
	count int64
	ends  time.Time
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{windows: map[string]*window{}}
}

func (c *MemoryCounter) Hit(_ context.Context, key string, d time.Duration) (int64, time.Duration, error) {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.windows[key]
	if !ok || !now.Before(w.ends) {
		w = &window{ends: now.Add(d)}
		c.windows[key] = w
	}
	w.count++
	return w.count, w.ends.Sub(now), nil
}

// Sweep drops expired windows.
func (c *MemoryCounter) Sweep() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, w := range c.windows {
		if !now.Before(w.ends) {
			delete(c.windows, k)
		}
	}
}

// RedisCounter shares windows between replicas.
type RedisCounter struct {
	rdb    redis.Cmdable
	prefix string
}

func NewRedisCounter(rdb redis.Cmdable, prefix string) *RedisCounter {
	return &RedisCounter{rdb: rdb, prefix: prefix + ":ratelimit:"}
}

func (c *RedisCounter) Hit(ctx context.Context, key string, d time.Duration) (int64, time.Duration, error) {
	k := c.prefix + key
	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, k)
		p.ExpireNX(ctx, k, d)
		ttl = p.PTTL(ctx, k)
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	reset := ttl.Val()
	if reset < 0 {
		reset = d
	}
	return incr.Val(), reset, nil
}

// Limiter allows max requests per window for each client IP.
type Limiter struct {
	max     int
	window  time.Duration
	counter Counter
}

// NewLimiter uses a MemoryCounter when counter is nil. max <= 0 disables
// limiting.
func NewLimiter(max int, window time.Duration, counter Counter) *Limiter {
	if counter == nil {
		counter = NewMemoryCounter()
	}
	return &Limiter{max: max, window: window, counter: counter}
}

// Sweep is a no-op for counters that expire on their own.
func (l *Limiter) Sweep() {
	if s, ok := l.counter.(interface{ Sweep() }); ok {
		s.Sweep()
	}
}

// Middleware answers 429 once a client is over the limit. A failing counter
// lets the request through.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	if l.max <= 0 {
		return next
	}
	limit := strconv.Itoa(l.max)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n, reset, err := l.counter.Hit(r.Context(), clientIP(r), l.window)
		if err != nil {
			logger.WithCtx(r.Context()).Warn("rate limit counter unavailable", "error", err)
			next.ServeHTTP(w, r)
			return
		}
		h := w.Header()
		h.Set("X-RateLimit-Limit", limit)
		h.Set("X-RateLimit-Remaining", strconv.FormatInt(max(int64(l.max)-n, 0), 10))
		if n > int64(l.max) {
			h.Set("Retry-After", strconv.Itoa(int(math.Ceil(reset.Seconds()))))
			response.Error(w, http.StatusTooManyRequests, "Too many requests, please try again later.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimit limits each IP to max requests per window, counted in process.
//
//	r.Use(middleware.RateLimit(200, time.Minute))
func RateLimit(max int, window time.Duration) func(http.Handler) http.Handler {
	return NewLimiter(max, window, nil).Middleware
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
