package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultSlowQuery is the latency above which queries are logged at warn.
const DefaultSlowQuery = 200 * time.Millisecond

// GormLogger sends gorm's output to slog so SQL lines carry the request
// and identity attributes of the calling context.
type GormLogger struct {
	log       *slog.Logger
	level     logger.LogLevel
	slowQuery time.Duration
}

// NewGormLogger returns a gorm logger writing to l at the given level.
func NewGormLogger(l *slog.Logger, level logger.LogLevel) *GormLogger {
	return &GormLogger{log: l, level: level, slowQuery: DefaultSlowQuery}
}

// LogMode returns a copy at level.
func (l *GormLogger) LogMode(level logger.LogLevel) logger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, logger.Info, slog.LevelInfo, msg, data...)
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, logger.Warn, slog.LevelWarn, msg, data...)
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, logger.Error, slog.LevelError, msg, data...)
}

func (l *GormLogger) printf(ctx context.Context, min logger.LogLevel, level slog.Level, msg string, data ...any) {
	if l.level >= min {
		l.log.Log(ctx, level, fmt.Sprintf(msg, data...))
	}
}

// Trace logs failed queries at error and slow ones at warn; everything else
// only at the Info level. Missing records are expected and never logged.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)

	var (
		level slog.Level
		msg   string
	)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= logger.Error:
		level, msg = slog.LevelError, "GORM query error"
	case l.slowQuery > 0 && elapsed > l.slowQuery && l.level >= logger.Warn:
		level, msg = slog.LevelWarn, "GORM slow query"
	case l.level >= logger.Info:
		level, msg = slog.LevelInfo, "GORM query"
	default:
		return
	}

	sql, rows := fc()
	attrs := []slog.Attr{
		slog.String("sql", sql),
		slog.Int64("rows", rows),
		slog.Duration("elapsed", elapsed),
	}
	if err != nil && level == slog.LevelError {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	l.log.LogAttrs(ctx, level, msg, attrs...)
}
