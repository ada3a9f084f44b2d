package types

import "time"

// StatsData summarizes the recorded report runs.
type StatsData struct {
	TotalRuns           int64
	FirstRun            time.Time
	LastRun             time.Time
	AverageFilteredRows float64
	AverageDuration     time.Duration
	SourceDistribution  []struct {
		Source string
		Count  int64
	}
}
