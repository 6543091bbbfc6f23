// Package workerpool runs fire-and-forget background tasks (export
// archiving, slow side effects) on a fixed set of goroutines.
//
//	pool := workerpool.New("archive", 2, 8)
//	defer pool.Shutdown(ctx)
//
//	if err := pool.Submit(func(ctx context.Context) { upload(ctx) }); errors.Is(err, workerpool.ErrPoolFull) {
//	    upload(ctx) // run inline instead
//	}
//
// Submit never blocks. Tasks receive a context that is cancelled when
// Shutdown gives up waiting for them.
package workerpool

import (
	"context"
	"errors"
	"sync"

	"github.com/shashiranjanraj/storefront/pkg/logger"
)

var (
	ErrPoolFull   = errors.New("workerpool: pool is full")
	ErrPoolClosed = errors.New("workerpool: pool is closed")
)

type Task func(ctx context.Context)

type Pool struct {
	name  string
	tasks chan Task

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex // guards closed and the close of tasks
	closed bool
	wg     sync.WaitGroup
}

// New starts size workers behind a queue of depth queue. Non-positive
// values fall back to one worker and a queue of twice the workers.
func New(name string, size, queue int) *Pool {
	if size <= 0 {
		size = 1
	}
	if queue <= 0 {
		queue = size * 2
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{name: name, tasks: make(chan Task, queue), ctx: ctx, cancel: cancel}

	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker()
	}
	return p
}

// Submit queues t without blocking.
func (p *Pool) Submit(t Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.tasks <- t:
		return nil
	default:
		return ErrPoolFull
	}
}

// Pending is the number of queued tasks not yet picked up.
func (p *Pool) Pending() int { return len(p.tasks) }

// Shutdown stops accepting tasks and waits for queued ones to finish. If
// ctx ends first, running tasks see their context cancelled and Shutdown
// returns ctx.Err(). Calling it again is a no-op.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		logger.Warn("workerpool: shutdown timed out", "pool", p.name, "pending", len(p.tasks))
		return ctx.Err()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for t := range p.tasks {
		p.run(t)
	}
}

func (p *Pool) run(t Task) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("workerpool: task panicked", "pool", p.name, "panic", r)
		}
	}()
	t(p.ctx)
}
