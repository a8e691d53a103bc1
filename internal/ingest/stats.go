// Reconcilia - Municipal External-Data Reconciliation Pipeline
// Copyright 2026 Mandato Lab
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mandatolab/reconcilia

package ingest

import "time"

// RunStats holds statistics for one reconciliation job run.
type RunStats struct {
	// Processed is the number of source rows or API items consumed
	// (including filtered ones).
	Processed int64

	// Matched is the number of rows that passed the job's filters.
	Matched int64

	// Skipped is the number of malformed rows or invalid API items
	// dropped, non-fatally, during the run.
	Skipped int64

	// Errors is the number of reconciliation units that failed to persist.
	Errors int64

	// Aggregates is the number of distinct natural keys produced.
	Aggregates int64

	// Created and Updated count reconciliation outcomes.
	Created int64
	Updated int64

	// CitiesCreated counts placeholder cities auto-created during the run.
	CitiesCreated int64

	// StartTime is when the run started.
	StartTime time.Time

	// EndTime is when the run completed (zero if still running).
	EndTime time.Time
}

// Duration returns the duration of the run.
func (s *RunStats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// RowsPerSecond returns the processing rate.
func (s *RunStats) RowsPerSecond() float64 {
	duration := s.Duration().Seconds()
	if duration == 0 {
		return 0
	}
	return float64(s.Processed) / duration
}
