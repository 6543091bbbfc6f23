// Package queue runs background jobs with retries.
//
//	type OrderConfirmation struct{ OrderID string }
//	func (j *OrderConfirmation) Handle(ctx context.Context) error { ... }
//
//	q := queue.New(queue.NewMemoryDriver())
//	q.Register("*jobs.OrderConfirmation", func() queue.Job { return &jobs.OrderConfirmation{} })
//	q.StartWorkers(ctx, 2)
//	q.Dispatch(ctx, &jobs.OrderConfirmation{OrderID: "ORD-..."})
//
// Jobs travel as JSON, so a job struct holds identifiers and plain values.
// Collaborators are injected by the factory passed to Register.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/metrics"
	"github.com/shashiranjanraj/storefront/pkg/reqid"
)

type Job interface {
	Handle(ctx context.Context) error
}

// FailedJob is a job that used up its attempts in this process.
type FailedJob struct {
	Type     string
	Job      Job
	Err      error
	FailedAt time.Time
	Attempts int
}

// Driver stores encoded jobs.
type Driver interface {
	Push(ctx context.Context, payload []byte) error
	// Pop waits for the next payload. (nil, nil) means the wait timed out.
	Pop(ctx context.Context) ([]byte, error)
}

// DelayedDriver holds payloads until they are due.
type DelayedDriver interface {
	PushDelayed(ctx context.Context, payload []byte, delay time.Duration) error
}

const popErrorPause = 500 * time.Millisecond

type Manager struct {
	mu       sync.RWMutex
	driver   Driver
	registry map[string]func() Job
	failed   []FailedJob
	ledger   FailedLedger
	attempts int
	backoff  time.Duration
	wg       sync.WaitGroup
}

// New gives each job three attempts, one second apart and doubling.
func New(driver Driver) *Manager {
	return &Manager{
		driver:   driver,
		registry: map[string]func() Job{},
		attempts: 3,
		backoff:  time.Second,
	}
}

func (m *Manager) SetMaxRetry(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = max(n, 1)
}

// SetBackoff sets the pause after the first failed attempt.
func (m *Manager) SetBackoff(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backoff = d
}

// UseLedger also persists exhausted jobs to l.
func (m *Manager) UseLedger(l FailedLedger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledger = l
}

// Register names a job type for decoding. By convention name is the %T of
// the dispatched value.
func (m *Manager) Register(name string, factory func() Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registry[name] = factory
}

type envelope struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	RequestID string          `json:"request_id,omitempty"`
}

func encode(ctx context.Context, job Job) ([]byte, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("queue: encode %T: %w", job, err)
	}
	return json.Marshal(envelope{Type: fmt.Sprintf("%T", job), Payload: payload, RequestID: reqid.FromCtx(ctx)})
}

// decode rebuilds the job in raw through its registered factory.
func (m *Manager) decode(raw []byte) (Job, envelope, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, env, fmt.Errorf("queue: envelope: %w", err)
	}
	m.mu.RLock()
	factory, ok := m.registry[env.Type]
	m.mu.RUnlock()
	if !ok {
		return nil, env, fmt.Errorf("queue: unregistered job type %s", env.Type)
	}
	job := factory()
	if err := json.Unmarshal(env.Payload, job); err != nil {
		return nil, env, fmt.Errorf("queue: decode %s: %w", env.Type, err)
	}
	return job, env, nil
}

// Dispatch queues job. The request id in ctx travels with it.
func (m *Manager) Dispatch(ctx context.Context, job Job) error {
	raw, err := encode(ctx, job)
	if err != nil {
		return err
	}
	return m.currentDriver().Push(ctx, raw)
}

// DispatchAfter queues job once delay has passed. Drivers that cannot
// delay get an in-process timer, which does not survive a restart.
func (m *Manager) DispatchAfter(ctx context.Context, job Job, delay time.Duration) error {
	raw, err := encode(ctx, job)
	if err != nil {
		return err
	}
	if d, ok := m.currentDriver().(DelayedDriver); ok {
		return d.PushDelayed(ctx, raw, delay)
	}
	time.AfterFunc(delay, func() {
		if err := m.currentDriver().Push(context.WithoutCancel(ctx), raw); err != nil {
			logger.WithCtx(ctx).Error("queue: delayed push", "error", err)
		}
	})
	return nil
}

func (m *Manager) currentDriver() Driver {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.driver
}

// StartWorkers runs n workers until ctx is done. Wait blocks until they
// have returned.
func (m *Manager) StartWorkers(ctx context.Context, n int) {
	n = max(n, 1)
	for range n {
		m.wg.Go(func() { m.work(ctx) })
	}
	logger.Info("queue: workers started", "workers", n)
}

func (m *Manager) Wait() { m.wg.Wait() }

func (m *Manager) work(ctx context.Context) {
	for ctx.Err() == nil {
		raw, err := m.currentDriver().Pop(ctx)
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			logger.Warn("queue: pop", "error", err)
			if !sleep(ctx, popErrorPause) {
				return
			}
		case raw != nil:
			m.process(ctx, raw)
		}
	}
}

func (m *Manager) process(ctx context.Context, raw []byte) {
	job, env, err := m.decode(raw)
	if err != nil {
		logger.Error("queue: job dropped", "type", env.Type, "error", err)
		return
	}
	if env.RequestID != "" {
		ctx = reqid.WithValue(ctx, env.RequestID)
	}
	ctx, _ = reqid.Ensure(ctx)
	m.attempt(ctx, job, env.Type)
}

// attempt runs job until it succeeds or its attempts run out. The pause
// doubles after each failure.
func (m *Manager) attempt(ctx context.Context, job Job, typeName string) {
	m.mu.RLock()
	attempts, pause := m.attempts, m.backoff
	m.mu.RUnlock()

	log := logger.WithCtx(ctx).With("type", typeName)
	start := time.Now()
	var err error
	for n := 1; n <= attempts; n++ {
		if err = handle(ctx, job); err == nil {
			metrics.RecordQueueJob(typeName, "success", start)
			log.Info("queue: job done", "attempt", n, "elapsed_ms", time.Since(start).Milliseconds())
			return
		}
		log.Warn("queue: attempt failed", "attempt", n, "error", err)
		if n == attempts || !sleep(ctx, pause) {
			break
		}
		pause *= 2
	}

	metrics.RecordQueueJob(typeName, "failed", start)
	m.persistFailed(ctx, job, typeName, err, attempts)
	log.Error("queue: job failed for good", "error", err)
}

func handle(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("queue: job panicked: %v", r)
		}
	}()
	return job.Handle(ctx)
}

// sleep reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// FailedJobs returns the jobs that failed for good in this process.
func (m *Manager) FailedJobs() []FailedJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]FailedJob, len(m.failed))
	copy(out, m.failed)
	return out
}
