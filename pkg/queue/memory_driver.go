package queue

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrQueueFull = errors.New("queue: memory buffer full")

// MemoryDriver keeps jobs in a buffered channel. Delayed jobs wait on
// timers and are lost on restart, like everything else it holds.
type MemoryDriver struct {
	ch chan []byte

	mu      sync.Mutex
	pending map[*time.Timer]struct{}
}

// NewMemoryDriver buffers up to size jobs; size <= 0 means 1000.
func NewMemoryDriver(size ...int) *MemoryDriver {
	n := 1000
	if len(size) > 0 && size[0] > 0 {
		n = size[0]
	}
	return &MemoryDriver{ch: make(chan []byte, n), pending: map[*time.Timer]struct{}{}}
}

// Push never blocks; a full buffer is reported as ErrQueueFull.
func (d *MemoryDriver) Push(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case d.ch <- payload:
		return nil
	default:
		return ErrQueueFull
	}
}

func (d *MemoryDriver) PushDelayed(ctx context.Context, payload []byte, delay time.Duration) error {
	if delay <= 0 {
		return d.Push(ctx, payload)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		d.mu.Lock()
		delete(d.pending, t)
		d.mu.Unlock()
		select {
		case d.ch <- payload:
		default:
		}
	})
	d.pending[t] = struct{}{}
	return nil
}

func (d *MemoryDriver) Pop(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case payload := <-d.ch:
		return payload, nil
	}
}

// Len reports jobs ready to run.
func (d *MemoryDriver) Len() int { return len(d.ch) }

// Delayed reports jobs still waiting on their timer.
func (d *MemoryDriver) Delayed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
