//go:build integration

package middleware_test

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/shashiranjanraj/storefront/pkg/middleware"
)

// Run with: go test -tags integration ./pkg/middleware/...

func TestRedisCounterSharesWindow(t *testing.T) {
	ctx := context.Background()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	addr, err := c.PortEndpoint(ctx, "6379/tcp", "")
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })

	// Two replicas pointing at the same redis.
	a := middleware.NewRedisCounter(rdb, "storefront")
	b := middleware.NewRedisCounter(rdb, "storefront")

	n, reset, err := a.Hit(ctx, "203.0.113.7", time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.InDelta(t, time.Minute.Seconds(), reset.Seconds(), 1)

	n, _, err = b.Hit(ctx, "203.0.113.7", time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	ttl, err := rdb.PTTL(ctx, "storefront:ratelimit:203.0.113.7").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
