package db

import (
	"context"
	"errors"
	"time"

	"log/slog"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// slowQueryThreshold marks queries logged at warn level.
const slowQueryThreshold = 200 * time.Millisecond

// GormLogger implements gorm.logger.Interface on top of slog.
type GormLogger struct {
	logger *slog.Logger
	level  logger.LogLevel
}

func NewGormLogger(l *slog.Logger) *GormLogger {
	return &GormLogger{logger: l, level: logger.Info}
}

func (l *GormLogger) LogMode(level logger.LogLevel) logger.Interface {
	return &GormLogger{logger: l.logger, level: level}
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Info {
		l.logger.InfoContext(ctx, msg, slog.Any("data", data))
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Warn {
		l.logger.WarnContext(ctx, msg, slog.Any("data", data))
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Error {
		l.logger.ErrorContext(ctx, msg, slog.Any("data", data))
	}
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		l.logger.ErrorContext(ctx, "GORM error",
			slog.Any("error", err),
			slog.String("sql", sql),
			slog.Int64("rows", rows),
			slog.Duration("elapsed", elapsed))
	case elapsed > slowQueryThreshold:
		l.logger.WarnContext(ctx, "GORM slow query",
			slog.String("sql", sql),
			slog.Int64("rows", rows),
			slog.Duration("elapsed", elapsed))
	default:
		l.logger.DebugContext(ctx, "GORM query",
			slog.String("sql", sql),
			slog.Int64("rows", rows),
			slog.Duration("elapsed", elapsed))
	}
}
