// Reconcilia - Municipal External-Data Reconciliation Pipeline
// Copyright 2026 Mandato Lab
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mandatolab/reconcilia

package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mandatolab/reconcilia/internal/config"
	"github.com/mandatolab/reconcilia/internal/fetch"
	"github.com/mandatolab/reconcilia/internal/logging"
	"github.com/mandatolab/reconcilia/internal/models"
	"github.com/mandatolab/reconcilia/internal/validation"
)

// Census API endpoints. Lookups are by municipality name; the district
// listing supplies neighborhood proxies.
const (
	censusIndicatorsPath = "/api/v1/censo/indicadores"
	censusDistrictsPath  = "/api/v1/localidades/distritos"
)

// Census indicator series consumed by the snapshot. Urban/rural and the
// religion shares are independently sourced percentages and are not
// normalized to sum to 100.
const (
	seriesUrbanPct      = "pop_urbana_pct"
	seriesRuralPct      = "pop_rural_pct"
	seriesLiteracyRate  = "taxa_alfabetizacao"
	seriesCatholicPct   = "rel_catolica_pct"
	seriesEvangelicPct  = "rel_evangelica_pct"
	seriesSpiritistPct  = "rel_espirita_pct"
	seriesNoReligionPct = "rel_sem_religiao_pct"
)

// DemographicsJob refreshes one census snapshot per catalog city from the
// census aggregates and locality APIs.
type DemographicsJob struct {
	cfg    *config.CensusConfig
	client *fetch.Client
	store  DemographicStore
}

// NewDemographicsJob creates a demographics job over the given store.
func NewDemographicsJob(cfg *config.CensusConfig, store DemographicStore) *DemographicsJob {
	client := fetch.New(fetch.Config{
		BaseURL:        cfg.BaseURL,
		MaxRetries:     cfg.MaxRetries,
		RetryBaseDelay: cfg.RetryBaseDelay,
		Timeout:        cfg.Timeout,
	})
	return &DemographicsJob{cfg: cfg, client: client, store: store}
}

// Run executes the job: one snapshot per city already present in the
// catalog. Cities whose lookups exhaust rate-limit retries are skipped and
// counted; the rest of the run continues.
func (j *DemographicsJob) Run(ctx context.Context) (*RunStats, error) {
	stats := &RunStats{StartTime: time.Now()}
	defer func() { stats.EndTime = time.Now() }()

	cities, err := j.store.ListCities(ctx)
	if err != nil {
		return stats, err
	}

	logging.Info().Int("cities", len(cities)).Msg("Starting demographics run")

	rec := NewDemographicReconciler(j.store)
	for i := range cities {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		city := &cities[i]
		stats.Processed++

		snap, err := j.fetchSnapshot(ctx, city)
		if err != nil {
			if errors.Is(err, fetch.ErrUnauthorized) {
				return stats, err
			}
			stats.Skipped++
			logging.Warn().Err(err).Str("city", city.Name).Msg("Skipping city after census lookup failure")
			continue
		}
		stats.Matched++

		outcome, err := rec.ReconcileSnapshot(ctx, snap)
		if err != nil {
			stats.Errors++
			logging.Error().Err(err).Str("city", city.Name).Msg("Failed to reconcile demographic snapshot")
			continue
		}
		if outcome == OutcomeCreated {
			stats.Created++
		} else {
			stats.Updated++
		}
	}

	logging.Info().
		Int64("processed", stats.Processed).
		Int64("created", stats.Created).
		Int64("updated", stats.Updated).
		Int64("skipped", stats.Skipped).
		Int64("errors", stats.Errors).
		Dur("duration", stats.Duration()).
		Msg("Demographics run completed")

	return stats, nil
}

// fetchSnapshot queries the census indicator and district endpoints for
// one city and assembles its snapshot.
func (j *DemographicsJob) fetchSnapshot(ctx context.Context, city *models.City) (*models.DemographicSnapshot, error) {
	query := url.Values{}
	query.Set("localidade", city.Name)

	var sets []models.CensusValueSet
	if err := j.client.GetJSON(ctx, censusIndicatorsPath, query, &sets); err != nil {
		return nil, fmt.Errorf("census indicators for %q: %w", city.Name, err)
	}

	snap := &models.DemographicSnapshot{CityID: city.ID, CollectedAt: time.Now()}
	for i := range sets {
		set := &sets[i]
		if err := validation.Struct(set); err != nil {
			logging.Warn().Err(err).Str("city", city.Name).Msg("Ignoring census value set with unexpected shape")
			continue
		}
		value := censusValue(set)
		switch set.SeriesID {
		case seriesUrbanPct:
			snap.UrbanPercent = value
		case seriesRuralPct:
			snap.RuralPercent = value
		case seriesLiteracyRate:
			snap.LiteracyRate = value
		case seriesCatholicPct:
			snap.CatholicPercent = value
		case seriesEvangelicPct:
			snap.EvangelicPercent = value
		case seriesSpiritistPct:
			snap.SpiritistPercent = value
		case seriesNoReligionPct:
			snap.NoReligionPercent = value
		}
	}

	var districts []models.CensusDistrict
	if err := j.client.GetJSON(ctx, censusDistrictsPath, query, &districts); err != nil {
		// District names are enrichment; a failed lookup degrades to an
		// empty list rather than dropping the whole snapshot.
		logging.Warn().Err(err).Str("city", city.Name).Msg("District lookup failed; storing snapshot without districts")
	}
	for _, d := range districts {
		if d.Name != "" {
			snap.Districts = append(snap.Districts, d.Name)
		}
	}

	return snap, nil
}

// censusValue extracts the first reported value of a set. The census API
// marks suppressed or unavailable figures with "-" and ".."; both parse to
// zero rather than failing the city.
func censusValue(set *models.CensusValueSet) float64 {
	for _, res := range set.Results {
		s := strings.TrimSpace(res.Value)
		if s == "" || s == "-" || s == ".." {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			continue
		}
		return v
	}
	return 0
}
