// Reconcilia - Municipal External-Data Reconciliation Pipeline
// Copyright 2026 Mandato Lab
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mandatolab/reconcilia

package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/mandatolab/reconcilia/internal/config"
	"github.com/mandatolab/reconcilia/internal/logging"
	"github.com/mandatolab/reconcilia/internal/models"
	"github.com/mandatolab/reconcilia/internal/resolver"
)

// VotesJob streams one TSE results file, consolidates per-zone rows into
// city-level vote totals, and reconciles them against the store.
type VotesJob struct {
	cfg   *config.VotesConfig
	store VoteStore
}

// NewVotesJob creates a votes job over the given store.
func NewVotesJob(cfg *config.VotesConfig, store VoteStore) *VotesJob {
	return &VotesJob{cfg: cfg, store: store}
}

// Run executes the job: read, filter, resolve, aggregate, reconcile.
// Partial failures degrade single rows or aggregates; only source-level
// failures (unreadable file) abort the run.
func (j *VotesJob) Run(ctx context.Context) (*RunStats, error) {
	stats := &RunStats{StartTime: time.Now()}
	defer func() { stats.EndTime = time.Now() }()

	kind := models.VoteKindNominal
	voteColumn := ColNominalVotes
	if j.cfg.Legend {
		kind = models.VoteKindLegend
		voteColumn = ColLegendVotes
	}

	delimiter := ';'
	if j.cfg.Delimiter != "" {
		delimiter = rune(j.cfg.Delimiter[0])
	}

	reader, err := OpenFile(j.cfg.SourcePath, delimiter, j.cfg.Encoding, VoteFileColumns)
	if err != nil {
		return stats, err
	}
	defer func() {
		if closeErr := reader.Close(); closeErr != nil {
			logging.Warn().Err(closeErr).Msg("Error closing source file")
		}
	}()

	logging.Info().
		Str("source", j.cfg.SourcePath).
		Str("kind", kind).
		Str("state", j.cfg.State).
		Int("office_code", j.cfg.OfficeCode).
		Int("round", j.cfg.Round).
		Msg("Starting votes run")

	res := resolver.New(j.store)
	agg := NewAggregator(kind)

	if err := j.aggregateRows(ctx, reader, res, agg, voteColumn, stats); err != nil {
		return stats, err
	}
	stats.Skipped += reader.Skipped()
	stats.Aggregates = int64(agg.Len())

	rec := NewVoteReconciler(j.store)
	for _, aggregate := range agg.Drain() {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		outcome, err := rec.ReconcileVote(ctx, aggregate)
		if err != nil {
			stats.Errors++
			logging.Error().Err(err).Str("number", aggregate.Key.Number).Msg("Failed to reconcile aggregate")
			continue
		}
		if outcome == OutcomeCreated {
			stats.Created++
		} else {
			stats.Updated++
		}
	}

	stats.CitiesCreated = int64(res.Created())

	logging.Info().
		Int64("processed", stats.Processed).
		Int64("matched", stats.Matched).
		Int64("aggregates", stats.Aggregates).
		Int64("created", stats.Created).
		Int64("updated", stats.Updated).
		Int64("skipped", stats.Skipped).
		Int64("errors", stats.Errors).
		Int64("cities_created", stats.CitiesCreated).
		Dur("duration", stats.Duration()).
		Msg("Votes run completed")

	return stats, nil
}

// aggregateRows consumes the reader row by row, applying the job's filters
// and accumulating matching rows into the aggregator. Each row is fully
// consumed before the next is read.
func (j *VotesJob) aggregateRows(ctx context.Context, reader *Reader, res *resolver.Resolver, agg *Aggregator, voteColumn string, stats *RunStats) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		row, err := reader.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read source: %w", err)
		}
		stats.Processed++

		if !j.matches(row) {
			continue
		}
		stats.Matched++

		cityID, err := res.Resolve(ctx, row.Get(ColMunicipality), row.Get(ColState))
		if err != nil {
			stats.Skipped++
			logging.Warn().Err(err).Msg("Skipping row with unresolvable municipality")
			continue
		}

		key := models.VoteKey{
			CityID:     cityID,
			OfficeCode: intOrZero(row.Get(ColOfficeCode)),
			Year:       j.cfg.Year,
			Round:      intOrZero(row.Get(ColRound)),
			Number:     row.Get(ColNumber),
		}
		candidate := row.Get(ColBallotName)
		if candidate == "" {
			candidate = row.Get(ColCandidate)
		}
		agg.Add(key, candidate, row.Get(ColParty), int64OrZero(row.Get(voteColumn)))
	}
}

// matches applies the jurisdiction, office, and round filters to one row.
func (j *VotesJob) matches(row Row) bool {
	if j.cfg.State != "" && row.Get(ColState) != j.cfg.State {
		return false
	}
	if j.cfg.OfficeCode != 0 && intOrZero(row.Get(ColOfficeCode)) != j.cfg.OfficeCode {
		return false
	}
	if j.cfg.Round != 0 && intOrZero(row.Get(ColRound)) != j.cfg.Round {
		return false
	}
	return true
}
