package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/icco/specimens/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Open connects to the sqlite database at path and runs migrations.
func Open(ctx context.Context, path string, logger *slog.Logger) (*gorm.DB, error) {
	gormDB, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: NewGormLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := RunMigrations(ctx, gormDB, logger); err != nil {
		return nil, err
	}
	return gormDB, nil
}

// RunMigrations runs all database migrations
func RunMigrations(ctx context.Context, db *gorm.DB, logger *slog.Logger) error {
	enableSQLiteOptimizations(ctx, db, logger)

	if err := db.WithContext(ctx).AutoMigrate(&models.ReportRun{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	createAdditionalIndexes(ctx, db, logger)
	return nil
}

// enableSQLiteOptimizations enables SQLite-specific optimizations. Failures
// are logged and otherwise ignored.
func enableSQLiteOptimizations(ctx context.Context, db *gorm.DB, logger *slog.Logger) {
	optimizations := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA busy_timeout=5000",
	}

	for _, pragma := range optimizations {
		if err := db.WithContext(ctx).Exec(pragma).Error; err != nil {
			logger.Warn("Failed to execute pragma", slog.String("pragma", pragma), slog.Any("error", err))
		} else {
			logger.Debug("Executed pragma", slog.String("pragma", pragma))
		}
	}
}

// createAdditionalIndexes creates indexes for the history listing.
func createAdditionalIndexes(ctx context.Context, db *gorm.DB, logger *slog.Logger) {
	additionalIndexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_report_runs_created_at ON report_runs(created_at)",
		"CREATE INDEX IF NOT EXISTS idx_report_runs_source_created_at ON report_runs(source, created_at)",
	}

	for _, indexSQL := range additionalIndexes {
		if err := db.WithContext(ctx).Exec(indexSQL).Error; err != nil {
			logger.Warn("Failed to create index", slog.String("sql", indexSQL), slog.Any("error", err))
		} else {
			logger.Debug("Created index", slog.String("sql", indexSQL))
		}
	}
}
