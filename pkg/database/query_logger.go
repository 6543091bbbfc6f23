package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/shashiranjanraj/storefront/pkg/logger"
)

// queryLogger sends gorm's output through the app logger. Statements are
// logged only when slower than slow or when they fail.
type queryLogger struct {
	level gormlogger.LogLevel
	slow  time.Duration
}

func newQueryLogger(slow time.Duration) gormlogger.Interface {
	return &queryLogger{level: gormlogger.Warn, slow: slow}
}

func (l *queryLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	return &queryLogger{level: level, slow: l.slow}
}

func (l *queryLogger) Info(ctx context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Info {
		logger.WithCtx(ctx).Info(fmt.Sprintf(msg, args...), "component", "gorm")
	}
}

func (l *queryLogger) Warn(ctx context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Warn {
		logger.WithCtx(ctx).Warn(fmt.Sprintf(msg, args...), "component", "gorm")
	}
}

func (l *queryLogger) Error(ctx context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Error {
		logger.WithCtx(ctx).Error(fmt.Sprintf(msg, args...), "component", "gorm")
	}
}

func (l *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	var level slog.Level
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= gormlogger.Error:
		level = slog.LevelError
	case l.slow > 0 && elapsed > l.slow && l.level >= gormlogger.Warn:
		level = slog.LevelWarn
	case l.level >= gormlogger.Info:
		level = slog.LevelDebug
	default:
		return
	}
	sql, rows := fc()
	attrs := []any{"component", "gorm", "elapsed_ms", elapsed.Milliseconds(), "rows", rows, "sql", sql}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	logger.WithCtx(ctx).Log(ctx, level, "sql query", attrs...)
}
