// Reconcilia - Municipal External-Data Reconciliation Pipeline
// Copyright 2026 Mandato Lab
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mandatolab/reconcilia

// Package main is the entry point for the reconcilia batch pipeline.
//
// Reconcilia ingests Brazilian public datasets and reconciles them against
// a municipality catalog stored in DuckDB. Each invocation runs one or
// more batch jobs to completion and exits; there is no long-running server
// surface.
//
// # Jobs
//
//	reconcilia votes         Stream a TSE electoral-results file and
//	                         consolidate per-zone rows into city vote totals.
//	reconcilia amendments    Page the federal transparency portal for budget
//	                         amendments and merge them by amendment code.
//	reconcilia demographics  Query census aggregates and district listings
//	                         for every catalog city.
//	reconcilia all           Run every configured job in the order above.
//
// A job whose source is not configured (no votes.source_path, no
// portal.base_url, no census.base_url) is skipped under "all" and an error
// when named explicitly.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables with the RECONCILIA_ prefix
//     (RECONCILIA_PORTAL_API_KEY, RECONCILIA_VOTES_SOURCE_PATH, ...)
//   - Config file (config.yaml, or the path in RECONCILIA_CONFIG)
//   - Built-in defaults
//
// # Idempotence
//
// Every job upserts by natural key, so re-running after a crash or partial
// failure converges to the same stored state instead of double-counting.
// The operating assumption is one pipeline instance at a time per database.
//
// # Example Usage
//
// Consolidate a results file for one state and office:
//
//	export RECONCILIA_DATABASE_PATH=./reconcilia.db
//	export RECONCILIA_VOTES_SOURCE_PATH=./votacao_candidato_munzona_2022_SP.csv
//	export RECONCILIA_VOTES_STATE=SP
//	export RECONCILIA_VOTES_OFFICE_CODE=6
//	export RECONCILIA_VOTES_YEAR=2022
//	./reconcilia votes
//
// Pull amendments for one legislator:
//
//	export RECONCILIA_PORTAL_BASE_URL=https://api.portaldatransparencia.gov.br
//	export RECONCILIA_PORTAL_API_KEY=your-portal-key
//	export RECONCILIA_PORTAL_AUTHOR="FULANO DE TAL"
//	./reconcilia amendments
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mandatolab/reconcilia/internal/config"
	"github.com/mandatolab/reconcilia/internal/database"
	"github.com/mandatolab/reconcilia/internal/ingest"
	"github.com/mandatolab/reconcilia/internal/logging"
)

func main() {
	job := "all"
	if len(os.Args) > 1 {
		job = os.Args[1]
	}

	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("job", job).
		Str("db_path", cfg.Database.Path).
		Msg("Starting reconcilia")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	// Cancel in-flight work on SIGINT/SIGTERM; jobs check the context
	// between rows and pages, and upserts keep partial runs resumable.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, job, cfg, db); err != nil {
		logging.Fatal().Err(err).Str("job", job).Msg("Pipeline run failed")
	}
}

// run dispatches one named job, or every configured job for "all".
func run(ctx context.Context, job string, cfg *config.Config, db *database.DB) error {
	switch job {
	case "votes":
		if cfg.Votes.SourcePath == "" {
			return fmt.Errorf("votes job requires votes.source_path")
		}
		return runVotes(ctx, cfg, db)
	case "amendments":
		if cfg.Portal.BaseURL == "" {
			return fmt.Errorf("amendments job requires portal.base_url")
		}
		return runAmendments(ctx, cfg, db)
	case "demographics":
		if cfg.Census.BaseURL == "" {
			return fmt.Errorf("demographics job requires census.base_url")
		}
		return runDemographics(ctx, cfg, db)
	case "all":
		if cfg.Votes.SourcePath != "" {
			if err := runVotes(ctx, cfg, db); err != nil {
				return err
			}
		}
		if cfg.Portal.BaseURL != "" {
			if err := runAmendments(ctx, cfg, db); err != nil {
				return err
			}
		}
		if cfg.Census.BaseURL != "" {
			if err := runDemographics(ctx, cfg, db); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown job %q (expected votes, amendments, demographics, or all)", job)
	}
}

func runVotes(ctx context.Context, cfg *config.Config, db *database.DB) error {
	stats, err := ingest.NewVotesJob(&cfg.Votes, db).Run(ctx)
	if err != nil {
		return fmt.Errorf("votes job: %w", err)
	}
	logSummary("votes", stats)
	return nil
}

func runAmendments(ctx context.Context, cfg *config.Config, db *database.DB) error {
	stats, err := ingest.NewAmendmentsJob(&cfg.Portal, db).Run(ctx)
	if err != nil {
		return fmt.Errorf("amendments job: %w", err)
	}
	logSummary("amendments", stats)
	return nil
}

func runDemographics(ctx context.Context, cfg *config.Config, db *database.DB) error {
	stats, err := ingest.NewDemographicsJob(&cfg.Census, db).Run(ctx)
	if err != nil {
		return fmt.Errorf("demographics job: %w", err)
	}
	logSummary("demographics", stats)
	return nil
}

func logSummary(job string, stats *ingest.RunStats) {
	logging.Info().
		Str("job", job).
		Int64("processed", stats.Processed).
		Int64("created", stats.Created).
		Int64("updated", stats.Updated).
		Int64("skipped", stats.Skipped).
		Int64("errors", stats.Errors).
		Float64("rows_per_second", stats.RowsPerSecond()).
		Msg("Job completed")
}
