// Reconcilia - Municipal External-Data Reconciliation Pipeline
// Copyright 2026 Mandato Lab
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mandatolab/reconcilia

// Package resolver maps free-text municipality names to catalog city ids,
// creating placeholder cities on first sight.
//
// A Resolver owns an in-run cache and must not be shared between
// concurrently running pipeline instances: two resolvers racing on the
// same previously-unseen name can both attempt creation. The store's
// unique key constraint collapses that race to one row, but the operating
// assumption remains one pipeline instance at a time per source.
package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mandatolab/reconcilia/internal/logging"
	"github.com/mandatolab/reconcilia/internal/models"
	"github.com/mandatolab/reconcilia/internal/normalize"
)

// ErrUnresolvable is returned for names whose normalized key is empty.
var ErrUnresolvable = errors.New("unresolvable city name")

// CityStore is the slice of the persisted store the resolver needs.
// *database.DB implements it; tests substitute an in-memory fake.
type CityStore interface {
	// FindOrCreateCity resolves city.NormalizedKey to an existing row or
	// inserts a new one, setting city.ID either way.
	FindOrCreateCity(ctx context.Context, city *models.City) (created bool, err error)
}

// Resolver resolves raw place names to city ids, read-through caching the
// mapping for the duration of one run.
type Resolver struct {
	store CityStore

	cache   map[string]uuid.UUID
	created int
}

// New creates a Resolver backed by the given store.
func New(store CityStore) *Resolver {
	return &Resolver{
		store: store,
		cache: make(map[string]uuid.UUID),
	}
}

// Resolve maps a raw municipality name to a city id: cache hit, then store
// lookup by normalized key, then placeholder creation. state, when the
// source reports one, is recorded on any city created by the call.
// Auto-created cities carry placeholder descriptive fields and are flagged
// for downstream review via the "auto" source marker.
func (r *Resolver) Resolve(ctx context.Context, rawName, state string) (uuid.UUID, error) {
	key := normalize.Key(rawName)
	if key == "" {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrUnresolvable, rawName)
	}

	if id, ok := r.cache[key]; ok {
		return id, nil
	}

	city := &models.City{
		Name:          rawName,
		NormalizedKey: key,
		State:         state,
		Source:        models.CitySourceAuto,
	}
	created, err := r.store.FindOrCreateCity(ctx, city)
	if err != nil {
		return uuid.Nil, fmt.Errorf("resolve %q: %w", rawName, err)
	}
	if created {
		r.created++
		logging.Warn().
			Str("city", rawName).
			Str("key", key).
			Msg("Auto-created placeholder city; descriptive fields need review")
	}

	r.cache[key] = city.ID
	return city.ID, nil
}

// Created returns how many placeholder cities this resolver created during
// the run, reported in the run summary.
func (r *Resolver) Created() int {
	return r.created
}
