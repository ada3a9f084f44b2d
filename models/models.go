package models

import (
	"time"

	"gorm.io/gorm"
)

// ReportRun records one execution of the report pipeline.
type ReportRun struct {
	gorm.Model
	Source         string `gorm:"index"`
	YearMin        *int
	YearMax        *int
	TotalRows      int
	FilteredRows   int
	ChartsRendered int
	Warnings       int
	Duration       time.Duration
}

// HasRange reports whether the run was narrowed by a year range.
func (r ReportRun) HasRange() bool {
	return r.YearMin != nil && r.YearMax != nil
}
