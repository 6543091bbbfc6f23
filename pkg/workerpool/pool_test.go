package workerpool_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/storefront/pkg/workerpool"
)

func TestShutdownDrainsQueuedTasks(t *testing.T) {
	pool := workerpool.New("test", 2, 10)

	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		require.NoError(t, pool.Submit(func(context.Context) {
			time.Sleep(time.Millisecond)
			ran.Add(1)
		}))
	}

	require.NoError(t, pool.Shutdown(context.Background()))
	assert.EqualValues(t, 10, ran.Load())
	assert.ErrorIs(t, pool.Submit(func(context.Context) {}), workerpool.ErrPoolClosed)
	assert.NoError(t, pool.Shutdown(context.Background()), "second shutdown")
}

func TestSubmitReportsFullQueue(t *testing.T) {
	pool := workerpool.New("test", 1, 1)
	release := make(chan struct{})
	started := make(chan struct{})

	require.NoError(t, pool.Submit(func(context.Context) {
		close(started)
		<-release
	}))
	<-started
	require.NoError(t, pool.Submit(func(context.Context) {}))
	assert.Equal(t, 1, pool.Pending())

	assert.ErrorIs(t, pool.Submit(func(context.Context) {}), workerpool.ErrPoolFull)

	close(release)
	require.NoError(t, pool.Shutdown(context.Background()))
}

func TestPanickingTaskDoesNotKillWorker(t *testing.T) {
	pool := workerpool.New("test", 1, 4)

	var wg sync.WaitGroup
	wg.Add(1)
	require.NoError(t, pool.Submit(func(context.Context) { panic("boom") }))
	require.NoError(t, pool.Submit(func(context.Context) { wg.Done() }))
	wg.Wait()

	require.NoError(t, pool.Shutdown(context.Background()))
}

func TestShutdownTimeoutCancelsTasks(t *testing.T) {
	pool := workerpool.New("test", 1, 1)
	cancelled := make(chan struct{})
	started := make(chan struct{})

	require.NoError(t, pool.Submit(func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		close(cancelled)
	}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, pool.Shutdown(ctx), context.DeadlineExceeded)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("task context was not cancelled")
	}
}
