//go:build integration

package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/shashiranjanraj/storefront/pkg/queue"
)

// Run with: go test -tags integration ./pkg/queue/...

func redisContainer(t *testing.T) *redis.Client {
	t.Helper()
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
	return rdb
}

func TestRedisDriver(t *testing.T) {
	ctx := context.Background()
	d := queue.NewRedisDriver(redisContainer(t), "test")

	require.NoError(t, d.Push(ctx, []byte("first")))
	require.NoError(t, d.Push(ctx, []byte("second")))
	require.NoError(t, d.PushDelayed(ctx, []byte("later"), time.Hour))

	ready, delayed, err := d.Len(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, ready)
	assert.EqualValues(t, 1, delayed)

	raw, err := d.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first", string(raw), "FIFO")

	n, err := d.Promote(ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = d.Promote(ctx, time.Now().Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ready, delayed, err = d.Len(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, ready)
	assert.Zero(t, delayed)
}

func TestRedisManagerRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d := queue.NewRedisDriver(redisContainer(t), "test")
	m := queue.New(d)
	seen := make(chan string, 1)
	m.Register("*queue_test.echoJob", func() queue.Job { return &echoJob{seen: seen} })
	m.StartWorkers(ctx, 1)

	require.NoError(t, m.Dispatch(ctx, &echoJob{OrderID: "ORD-9-REDIS"}))
	select {
	case id := <-seen:
		assert.Equal(t, "ORD-9-REDIS", id)
	case <-time.After(10 * time.Second):
		t.Fatal("job was not processed")
	}
	cancel()
	m.Wait()
}
