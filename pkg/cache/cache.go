// Package cache provides a small key/value cache with two drivers: Redis and
// an in-process TTL map. Values are stored as JSON.
//
//	store, err := cache.NewRedis(config.RedisAddr(), config.RedisPassword())
//	if err != nil {
//	    store = cache.NewMemory()
//	}
//	products, err := cache.Remember(ctx, store, "catalog:list", time.Minute, load)
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shashiranjanraj/storefront/pkg/metrics"
)

// Store is implemented by every cache driver.
type Store interface {
	// Get unmarshals the value stored under key into dest and reports a hit.
	Get(ctx context.Context, key string, dest any) bool
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	// Incr atomically increments an integer counter and returns the new value.
	Incr(ctx context.Context, key string) (int64, error)
	Driver() string
}

// Remember returns the cached value for key, or calls fn, caches its result
// for ttl and returns it. Cache failures never fail the call.
func Remember[T any](ctx context.Context, s Store, key string, ttl time.Duration, fn func() (T, error)) (T, error) {
	var cached T
	if s != nil && s.Get(ctx, key, &cached) {
		metrics.CacheHits.WithLabelValues(s.Driver()).Inc()
		return cached, nil
	}
	if s != nil {
		metrics.CacheMisses.WithLabelValues(s.Driver()).Inc()
	}

	v, err := fn()
	if err != nil {
		return v, err
	}
	if s != nil {
		_ = s.Set(ctx, key, v, ttl)
	}
	return v, nil
}

func encode(value any) ([]byte, error) {
	return json.Marshal(value)
}

func decode(data []byte, dest any) bool {
	return json.Unmarshal(data, dest) == nil
}
