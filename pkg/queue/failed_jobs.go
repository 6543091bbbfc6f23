package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/reqid"
)

// ErrFailedJobNotFound is returned by GormLedger.Find for unknown ids.
var ErrFailedJobNotFound = errors.New("queue: failed job not found")

// FailedJobRecord is one row of failed_jobs. Payload is the job's own JSON,
// so a record can be pushed back onto the queue as is.
type FailedJobRecord struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	JobType   string    `gorm:"size:255;not null;index" json:"jobType"`
	Payload   string    `gorm:"type:text;not null" json:"payload"`
	Error     string    `gorm:"type:text" json:"error"`
	Attempts  int       `gorm:"not null;default:0" json:"attempts"`
	RequestID string    `gorm:"size:64" json:"requestId,omitempty"`
	FailedAt  time.Time `gorm:"autoCreateTime;index" json:"failedAt"`
}

func (FailedJobRecord) TableName() string { return "failed_jobs" }

// FailedLedger keeps jobs that exhausted their attempts.
type FailedLedger interface {
	Record(ctx context.Context, rec FailedJobRecord) error
}

// GormLedger is the failed_jobs table.
type GormLedger struct {
	db *gorm.DB
}

// NewGormLedger migrates failed_jobs if it does not exist yet.
func NewGormLedger(db *gorm.DB) (*GormLedger, error) {
	if err := db.AutoMigrate(&FailedJobRecord{}); err != nil {
		return nil, fmt.Errorf("queue: migrate failed_jobs: %w", err)
	}
	return &GormLedger{db: db}, nil
}

func (l *GormLedger) Record(ctx context.Context, rec FailedJobRecord) error {
	return l.db.WithContext(ctx).Create(&rec).Error
}

// Recent lists up to limit records, newest first.
func (l *GormLedger) Recent(ctx context.Context, limit int) ([]FailedJobRecord, error) {
	var out []FailedJobRecord
	err := l.db.WithContext(ctx).Order("failed_at desc, id desc").Limit(limit).Find(&out).Error
	return out, err
}

func (l *GormLedger) Find(ctx context.Context, id uint) (FailedJobRecord, error) {
	var rec FailedJobRecord
	err := l.db.WithContext(ctx).First(&rec, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rec, ErrFailedJobNotFound
	}
	return rec, err
}

func (l *GormLedger) Forget(ctx context.Context, id uint) error {
	return l.db.WithContext(ctx).Delete(&FailedJobRecord{}, id).Error
}

// Retry pushes a recorded job back onto the queue under its original
// request id. The type must still be registered.
func (m *Manager) Retry(ctx context.Context, rec FailedJobRecord) error {
	m.mu.RLock()
	_, ok := m.registry[rec.JobType]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("queue: retry %d: unregistered job type %s", rec.ID, rec.JobType)
	}
	env, err := json.Marshal(envelope{Type: rec.JobType, Payload: json.RawMessage(rec.Payload), RequestID: rec.RequestID})
	if err != nil {
		return fmt.Errorf("queue: retry %d: %w", rec.ID, err)
	}
	return m.currentDriver().Push(ctx, env)
}

func (m *Manager) persistFailed(ctx context.Context, job Job, typeName string, lastErr error, attempts int) {
	now := time.Now()

	m.mu.Lock()
	m.failed = append(m.failed, FailedJob{Type: typeName, Job: job, Err: lastErr, FailedAt: now, Attempts: attempts})
	ledger := m.ledger
	m.mu.Unlock()
	if ledger == nil {
		return
	}

	rec := FailedJobRecord{JobType: typeName, Attempts: attempts, RequestID: reqid.FromCtx(ctx), FailedAt: now}
	if lastErr != nil {
		rec.Error = lastErr.Error()
	}
	if payload, err := json.Marshal(job); err == nil {
		rec.Payload = string(payload)
	} else {
		rec.Payload = "null"
		rec.Error += "; payload: " + err.Error()
	}

	// The worker ctx may already be cancelled at shutdown.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := ledger.Record(wctx, rec); err != nil {
		logger.WithCtx(ctx).Error("queue: persist failed job", "type", typeName, "error", err)
	}
}
