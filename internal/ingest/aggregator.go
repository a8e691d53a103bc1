// Reconcilia - Municipal External-Data Reconciliation Pipeline
// Copyright 2026 Mandato Lab
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mandatolab/reconcilia

package ingest

import (
	"github.com/mandatolab/reconcilia/internal/models"
)

// Aggregator accumulates running vote totals keyed by the composite
// natural key, producing one aggregate per key regardless of how many
// source rows (electoral zones) contributed to it.
//
// The key set is held in memory for the duration of one source file; it is
// bounded by (cities x candidates), not by row count, so it stays small
// even for multi-megabyte sources.
type Aggregator struct {
	kind   string
	totals map[models.VoteKey]*models.VoteAggregate
}

// NewAggregator creates an Aggregator for one vote kind (nominal or
// legend).
func NewAggregator(kind string) *Aggregator {
	return &Aggregator{
		kind:   kind,
		totals: make(map[models.VoteKey]*models.VoteAggregate),
	}
}

// Add accumulates one source row's vote count into the total for key.
// candidate and party label the aggregate; the last row's labels win,
// which is safe because every row of one key carries the same ones.
func (a *Aggregator) Add(key models.VoteKey, candidate, party string, votes int64) {
	agg, ok := a.totals[key]
	if !ok {
		agg = &models.VoteAggregate{Key: key, Kind: a.kind}
		a.totals[key] = agg
	}
	agg.Candidate = candidate
	agg.Party = party
	agg.Total += votes
	agg.RowCount++
}

// Drain yields one aggregate per distinct key observed, in no guaranteed
// order; consumers must not rely on ordering.
func (a *Aggregator) Drain() []*models.VoteAggregate {
	out := make([]*models.VoteAggregate, 0, len(a.totals))
	for _, agg := range a.totals {
		out = append(out, agg)
	}
	return out
}

// Len returns the number of distinct keys observed so far.
func (a *Aggregator) Len() int {
	return len(a.totals)
}
