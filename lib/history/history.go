// Package history persists one row per report run and summarizes them.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/icco/specimens/lib/report"
	"github.com/icco/specimens/lib/types"
	"github.com/icco/specimens/lib/validation"
	"github.com/icco/specimens/models"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

// Recorder writes report runs to the database.
type Recorder struct {
	db     *gorm.DB
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewRecorder creates a Recorder. A nil clock uses the real clock.
func NewRecorder(db *gorm.DB, clock clockwork.Clock, logger *slog.Logger) *Recorder {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Recorder{db: db, clock: clock, logger: logger}
}

// Track times run and records the report it returns. A failure to record
// is logged; the report is still returned.
func (r *Recorder) Track(ctx context.Context, run func() (*report.Report, error)) (*report.Report, error) {
	start := r.clock.Now()
	rep, err := run()
	if err != nil {
		return nil, err
	}

	if err := r.Record(ctx, rep, r.clock.Since(start)); err != nil {
		r.logger.WarnContext(ctx, "Failed to record report run",
			slog.String("source", rep.Source),
			slog.Any("error", err))
	}
	return rep, nil
}

// Record stores rep as a run that took d.
func (r *Recorder) Record(ctx context.Context, rep *report.Report, d time.Duration) error {
	run := models.ReportRun{
		Source:         rep.Source,
		TotalRows:      rep.TotalRows,
		FilteredRows:   rep.FilteredRows,
		ChartsRendered: rep.Rendered(),
		Warnings:       rep.Warnings(),
		Duration:       d,
	}
	run.CreatedAt = r.clock.Now()
	if rep.Range != nil {
		lo, hi := rep.Range.Min, rep.Range.Max
		run.YearMin, run.YearMax = &lo, &hi
	}

	if err := r.db.WithContext(ctx).Create(&run).Error; err != nil {
		return fmt.Errorf("failed to save report run: %w", err)
	}
	return nil
}

// Recent returns one page of runs, newest first, and the total count.
func (r *Recorder) Recent(ctx context.Context, page, size int) ([]models.ReportRun, int64, error) {
	if err := validation.ValidatePagination(page, size); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.ReportRun{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count report runs: %w", err)
	}

	var runs []models.ReportRun
	if err := r.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&runs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list report runs: %w", err)
	}
	return runs, total, nil
}

// Stats summarizes every recorded run.
func (r *Recorder) Stats(ctx context.Context) (*types.StatsData, error) {
	stats := &types.StatsData{}
	db := r.db.WithContext(ctx)

	if err := db.Model(&models.ReportRun{}).Count(&stats.TotalRuns).Error; err != nil {
		return nil, fmt.Errorf("failed to count report runs: %w", err)
	}
	if stats.TotalRuns == 0 {
		return stats, nil
	}

	var first, last models.ReportRun
	if err := db.Order("created_at ASC, id ASC").First(&first).Error; err != nil {
		return nil, fmt.Errorf("failed to find first run: %w", err)
	}
	if err := db.Order("created_at DESC, id DESC").First(&last).Error; err != nil {
		return nil, fmt.Errorf("failed to find last run: %w", err)
	}
	stats.FirstRun, stats.LastRun = first.CreatedAt, last.CreatedAt

	var averages struct {
		AvgRows     float64
		AvgDuration float64
	}
	if err := db.Model(&models.ReportRun{}).
		Select("COALESCE(AVG(filtered_rows), 0) AS avg_rows, COALESCE(AVG(duration), 0) AS avg_duration").
		Scan(&averages).Error; err != nil {
		return nil, fmt.Errorf("failed to average report runs: %w", err)
	}
	stats.AverageFilteredRows = averages.AvgRows
	stats.AverageDuration = time.Duration(averages.AvgDuration)

	if err := db.Model(&models.ReportRun{}).
		Select("source, COUNT(*) AS count").
		Group("source").
		Order("count DESC, source ASC").
		Scan(&stats.SourceDistribution).Error; err != nil {
		return nil, fmt.Errorf("failed to group report runs: %w", err)
	}
	return stats, nil
}
