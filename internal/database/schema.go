// Reconcilia - Municipal External-Data Reconciliation Pipeline
// Copyright 2026 Mandato Lab
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mandatolab/reconcilia

/*
schema.go - Database Schema Management

Tables:
  - cities: municipality catalog keyed by normalized name
  - vote_aggregates: consolidated vote totals per natural key
  - amendments: budget amendment line items per beneficiary city
  - demographic_snapshots: one census snapshot per city
  - schema_migrations: versioned migration tracking (see migrations.go)

All columns are defined in the initial CREATE TABLE statements; post-release
schema changes go through versioned migrations in migrations.go.

The UNIQUE constraint on cities.normalized_key is the persistence-layer
hook for the resolver's create-if-absent path: a losing racer or a resumed
crashed run hits the constraint and falls back to re-lookup instead of
creating a duplicate city.
*/
package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createTables creates the core database tables.
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range tableCreationQueries {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}
	return nil
}

var tableCreationQueries = []string{
	`CREATE TABLE IF NOT EXISTS cities (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		normalized_key TEXT NOT NULL UNIQUE,
		state TEXT NOT NULL DEFAULT '',
		mayor TEXT NOT NULL DEFAULT '',
		population BIGINT NOT NULL DEFAULT 0,
		source TEXT NOT NULL DEFAULT 'manual',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS vote_aggregates (
		id UUID PRIMARY KEY,
		city_id UUID NOT NULL,
		office_code INTEGER NOT NULL,
		year INTEGER NOT NULL,
		round INTEGER NOT NULL,
		number TEXT NOT NULL,
		kind TEXT NOT NULL,
		candidate TEXT NOT NULL DEFAULT '',
		party TEXT NOT NULL DEFAULT '',
		total BIGINT NOT NULL DEFAULT 0,
		row_count INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (city_id, office_code, year, round, number, kind)
	)`,

	`CREATE TABLE IF NOT EXISTS amendments (
		id UUID PRIMARY KEY,
		city_id UUID NOT NULL,
		code TEXT NOT NULL DEFAULT '',
		author TEXT NOT NULL DEFAULT '',
		year INTEGER NOT NULL DEFAULT 0,
		committed_amount DOUBLE NOT NULL DEFAULT 0,
		paid_amount DOUBLE NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS demographic_snapshots (
		city_id UUID PRIMARY KEY,
		urban_percent DOUBLE NOT NULL DEFAULT 0,
		rural_percent DOUBLE NOT NULL DEFAULT 0,
		literacy_rate DOUBLE NOT NULL DEFAULT 0,
		catholic_percent DOUBLE NOT NULL DEFAULT 0,
		evangelic_percent DOUBLE NOT NULL DEFAULT 0,
		spiritist_percent DOUBLE NOT NULL DEFAULT 0,
		no_religion_percent DOUBLE NOT NULL DEFAULT 0,
		districts TEXT NOT NULL DEFAULT '[]',
		collected_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
}

// createIndexes creates indexes for frequently matched columns.
func (db *DB) createIndexes() error {
	ctx, cancel := schemaContext()
	defer cancel()

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_cities_normalized_key ON cities(normalized_key)`,
		`CREATE INDEX IF NOT EXISTS idx_vote_aggregates_city ON vote_aggregates(city_id)`,
		`CREATE INDEX IF NOT EXISTS idx_amendments_city_code ON amendments(city_id, code)`,
		`CREATE INDEX IF NOT EXISTS idx_amendments_author_year ON amendments(author, year)`,
	}
	for _, query := range indexes {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create index: %s: %w", query, err)
		}
	}
	return nil
}
