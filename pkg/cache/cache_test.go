package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/storefront/pkg/cache"
)

func TestMemorySetGet(t *testing.T) {
	ctx := context.Background()
	s := cache.NewMemory()

	require.NoError(t, s.Set(ctx, "k", map[string]int{"stock": 5}, time.Minute))

	var got map[string]int
	require.True(t, s.Get(ctx, "k", &got))
	assert.Equal(t, 5, got["stock"])

	require.NoError(t, s.Del(ctx, "k"))
	assert.False(t, s.Get(ctx, "k", &got))
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	s := cache.NewMemory()

	require.NoError(t, s.Set(ctx, "k", "v", time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	var got string
	assert.False(t, s.Get(ctx, "k", &got))
	s.Sweep()
	assert.Equal(t, 0, s.Len())
}

func TestMemoryIncr(t *testing.T) {
	ctx := context.Background()
	s := cache.NewMemory()

	n, _ := s.Incr(ctx, "catalog:version")
	assert.Equal(t, int64(1), n)
	n, _ = s.Incr(ctx, "catalog:version")
	assert.Equal(t, int64(2), n)

	var stored int64
	require.True(t, s.Get(ctx, "catalog:version", &stored))
	assert.Equal(t, int64(2), stored)
}

func TestRemember(t *testing.T) {
	ctx := context.Background()
	s := cache.NewMemory()
	calls := 0
	load := func() ([]string, error) {
		calls++
		return []string{"yoga-mat-pro"}, nil
	}

	first, err := cache.Remember(ctx, s, "list", time.Minute, load)
	require.NoError(t, err)
	second, err := cache.Remember(ctx, s, "list", time.Minute, load)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestRememberDoesNotCacheErrors(t *testing.T) {
	ctx := context.Background()
	s := cache.NewMemory()

	_, err := cache.Remember(ctx, s, "k", time.Minute, func() (int, error) { return 0, errors.New("boom") })
	require.Error(t, err)

	var got int
	assert.False(t, s.Get(ctx, "k", &got))
}
