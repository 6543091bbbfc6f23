package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchCron(t *testing.T) {
	at := time.Date(2024, time.March, 4, 10, 30, 0, 0, time.UTC) // Monday

	assert.True(t, matchCron("* * * * *", at))
	assert.True(t, matchCron("30 10 * * *", at))
	assert.True(t, matchCron("*/15 * * * 1", at))
	assert.True(t, matchCron("0,30 9-11 * 3 *", at))
	assert.False(t, matchCron("0 * * * *", at))
	assert.False(t, matchCron("* * *", at))
}

func TestIntervalTaskRuns(t *testing.T) {
	s := New()
	s.tick = 10 * time.Millisecond

	var runs atomic.Int32
	s.Every(time.Hour).Name("scan").Run(func(context.Context) error {
		runs.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	cancel()
	s.Wait()

	assert.Equal(t, int32(1), runs.Load(), "hourly task must only fire once within the hour")
	assert.Equal(t, []string{"scan  [1h0m0s]"}, s.List())
}

func TestRunNow(t *testing.T) {
	s := New()
	s.Daily().Name("fail").Run(func(context.Context) error { return errors.New("boom") })

	assert.EqualError(t, s.RunNow(context.Background(), "fail"), "boom")
	assert.Error(t, s.RunNow(context.Background(), "missing"))
}
