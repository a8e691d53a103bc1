// Reconcilia - Municipal External-Data Reconciliation Pipeline
// Copyright 2026 Mandato Lab
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mandatolab/reconcilia

package ingest

import (
	"context"
	"fmt"

	"github.com/mandatolab/reconcilia/internal/models"
	"github.com/mandatolab/reconcilia/internal/resolver"
)

// Outcome classifies one reconciliation unit.
type Outcome int

const (
	// OutcomeCreated means no record existed for the natural key and a new
	// one was inserted.
	OutcomeCreated Outcome = iota
	// OutcomeUpdated means an existing record was overwritten whole with
	// the latest values.
	OutcomeUpdated
)

// VoteStore is the slice of the persisted store the votes job needs.
// *database.DB implements it.
type VoteStore interface {
	resolver.CityStore
	UpsertVoteAggregate(ctx context.Context, agg *models.VoteAggregate) (created bool, err error)
}

// AmendmentStore is the slice of the persisted store the amendments job
// needs.
type AmendmentStore interface {
	resolver.CityStore
	UpsertAmendment(ctx context.Context, rec *models.AmendmentRecord) (created bool, err error)
}

// DemographicStore is the slice of the persisted store the demographics
// job needs.
type DemographicStore interface {
	ListCities(ctx context.Context) ([]models.City, error)
	UpsertDemographicSnapshot(ctx context.Context, snap *models.DemographicSnapshot) (created bool, err error)
}

// Reconciler applies aggregates and records to the persisted store by
// natural key: find-or-create, then full overwrite of mutable fields.
// "Last full run wins": re-running with the same source converges to the
// same stored state instead of double-accumulating, so a killed run can be
// resumed by simply re-running.
type Reconciler struct {
	votes        VoteStore
	amendments   AmendmentStore
	demographics DemographicStore
}

// NewVoteReconciler creates a Reconciler for vote aggregates.
func NewVoteReconciler(store VoteStore) *Reconciler {
	return &Reconciler{votes: store}
}

// NewAmendmentReconciler creates a Reconciler for amendment records.
func NewAmendmentReconciler(store AmendmentStore) *Reconciler {
	return &Reconciler{amendments: store}
}

// NewDemographicReconciler creates a Reconciler for demographic snapshots.
func NewDemographicReconciler(store DemographicStore) *Reconciler {
	return &Reconciler{demographics: store}
}

// ReconcileVote persists one aggregate by its composite natural key:
// create when absent, full overwrite when present.
func (r *Reconciler) ReconcileVote(ctx context.Context, agg *models.VoteAggregate) (Outcome, error) {
	created, err := r.votes.UpsertVoteAggregate(ctx, agg)
	if err != nil {
		return 0, fmt.Errorf("reconcile vote aggregate %s/%s: %w", agg.Key.CityID, agg.Key.Number, err)
	}
	if created {
		return OutcomeCreated, nil
	}
	return OutcomeUpdated, nil
}

// ReconcileAmendment persists one amendment: merge by explicit code, or
// always insert when the source supplies no code.
func (r *Reconciler) ReconcileAmendment(ctx context.Context, rec *models.AmendmentRecord) (Outcome, error) {
	created, err := r.amendments.UpsertAmendment(ctx, rec)
	if err != nil {
		return 0, fmt.Errorf("reconcile amendment %q: %w", rec.Code, err)
	}
	if created {
		return OutcomeCreated, nil
	}
	return OutcomeUpdated, nil
}

// ReconcileSnapshot persists one demographic snapshot, one per city.
func (r *Reconciler) ReconcileSnapshot(ctx context.Context, snap *models.DemographicSnapshot) (Outcome, error) {
	created, err := r.demographics.UpsertDemographicSnapshot(ctx, snap)
	if err != nil {
		return 0, fmt.Errorf("reconcile demographic snapshot for %s: %w", snap.CityID, err)
	}
	if created {
		return OutcomeCreated, nil
	}
	return OutcomeUpdated, nil
}
