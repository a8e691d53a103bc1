// Reconcilia - Municipal External-Data Reconciliation Pipeline
// Copyright 2026 Mandato Lab
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mandatolab/reconcilia

package ingest

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/mandatolab/reconcilia/internal/config"
	"github.com/mandatolab/reconcilia/internal/fetch"
	"github.com/mandatolab/reconcilia/internal/logging"
	"github.com/mandatolab/reconcilia/internal/models"
	"github.com/mandatolab/reconcilia/internal/resolver"
	"github.com/mandatolab/reconcilia/internal/validation"
)

// portalKeyHeader is the transparency portal's static API key header.
const portalKeyHeader = "chave-api-dados"

// amendmentsPath is the portal's paginated amendments endpoint.
const amendmentsPath = "/api-de-dados/emendas"

// AmendmentsJob pages the transparency portal for budget amendments
// authored by the configured legislator and reconciles them against the
// store by (city, code).
type AmendmentsJob struct {
	cfg    *config.PortalConfig
	client *fetch.Client
	store  AmendmentStore
}

// NewAmendmentsJob creates an amendments job over the given store.
func NewAmendmentsJob(cfg *config.PortalConfig, store AmendmentStore) *AmendmentsJob {
	client := fetch.New(fetch.Config{
		BaseURL:        cfg.BaseURL,
		APIKeyHeader:   portalKeyHeader,
		APIKey:         cfg.APIKey,
		MaxRetries:     cfg.MaxRetries,
		RetryBaseDelay: cfg.RetryBaseDelay,
		PageCap:        cfg.PageCap,
		Timeout:        cfg.Timeout,
	})
	return &AmendmentsJob{cfg: cfg, client: client, store: store}
}

// Run executes the job. A 401 from the portal aborts the source (credential
// error); rate-limited pages degrade individually inside the fetch client.
func (j *AmendmentsJob) Run(ctx context.Context) (*RunStats, error) {
	stats := &RunStats{StartTime: time.Now()}
	defer func() { stats.EndTime = time.Now() }()

	logging.Info().
		Str("author", j.cfg.Author).
		Int("year", j.cfg.Year).
		Msg("Starting amendments run")

	query := url.Values{}
	if j.cfg.Author != "" {
		query.Set("nomeAutor", j.cfg.Author)
	}
	if j.cfg.Year != 0 {
		query.Set("ano", strconv.Itoa(j.cfg.Year))
	}

	res := resolver.New(j.store)
	rec := NewAmendmentReconciler(j.store)

	pageStats, err := j.client.ForEachPage(ctx, amendmentsPath, query, "pagina", func(body []byte) (int, error) {
		var items []models.PortalAmendment
		if err := json.Unmarshal(body, &items); err != nil {
			return 0, err
		}
		for i := range items {
			j.reconcileItem(ctx, &items[i], res, rec, stats)
		}
		return len(items), nil
	})
	if err != nil {
		return stats, err
	}
	stats.Skipped += int64(pageStats.Skipped)
	stats.CitiesCreated = int64(res.Created())

	logging.Info().
		Int("pages", pageStats.Pages).
		Int64("processed", stats.Processed).
		Int64("created", stats.Created).
		Int64("updated", stats.Updated).
		Int64("skipped", stats.Skipped).
		Int64("errors", stats.Errors).
		Int64("cities_created", stats.CitiesCreated).
		Dur("duration", stats.Duration()).
		Msg("Amendments run completed")

	return stats, nil
}

// reconcileItem validates one portal item, resolves its beneficiary city,
// and reconciles the amendment. Invalid items are counted and skipped,
// never fatal for the run.
func (j *AmendmentsJob) reconcileItem(ctx context.Context, item *models.PortalAmendment, res *resolver.Resolver, rec *Reconciler, stats *RunStats) {
	stats.Processed++

	if err := validation.Struct(item); err != nil {
		stats.Skipped++
		logging.Warn().Err(err).Str("code", item.Code).Msg("Skipping amendment with unexpected shape")
		return
	}
	stats.Matched++

	name, state := splitLocality(item.Beneficiary)
	cityID, err := res.Resolve(ctx, name, state)
	if err != nil {
		stats.Skipped++
		logging.Warn().Err(err).Str("beneficiary", item.Beneficiary).Msg("Skipping amendment with unresolvable beneficiary")
		return
	}

	committed, ok := parseAmount(item.CommittedAmount)
	if !ok && item.CommittedAmount != "" {
		logging.Debug().Str("value", item.CommittedAmount).Msg("Unparseable committed amount treated as zero")
	}
	paid, ok := parseAmount(item.PaidAmount)
	if !ok && item.PaidAmount != "" {
		logging.Debug().Str("value", item.PaidAmount).Msg("Unparseable paid amount treated as zero")
	}

	record := &models.AmendmentRecord{
		CityID:          cityID,
		Code:            item.Code,
		Author:          item.Author,
		Year:            item.Year,
		CommittedAmount: committed,
		PaidAmount:      paid,
		Status:          item.Status,
	}

	outcome, err := rec.ReconcileAmendment(ctx, record)
	if err != nil {
		stats.Errors++
		logging.Error().Err(err).Str("code", item.Code).Msg("Failed to reconcile amendment")
		return
	}
	if outcome == OutcomeCreated {
		stats.Created++
	} else {
		stats.Updated++
	}
}
