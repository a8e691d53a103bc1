// Reconcilia - Municipal External-Data Reconciliation Pipeline
// Copyright 2026 Mandato Lab
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mandatolab/reconcilia

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mandatolab/reconcilia/internal/models"
)

// ErrNotFound is returned by lookup methods when no row matches.
var ErrNotFound = errors.New("not found")

// isUniqueViolation reports whether err is a DuckDB unique/primary key
// constraint violation. DuckDB surfaces these as constraint errors in the
// message text; database/sql exposes no portable error code for them.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate key")
}

// GetCityByKey looks up a city by its normalized comparison key.
// Returns ErrNotFound when no city matches.
func (db *DB) GetCityByKey(ctx context.Context, key string) (*models.City, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx, `SELECT
		id, name, normalized_key, state, mayor, population, source, created_at, updated_at
	FROM cities WHERE normalized_key = ?`, key)

	city := &models.City{}
	err := row.Scan(
		&city.ID, &city.Name, &city.NormalizedKey, &city.State, &city.Mayor,
		&city.Population, &city.Source, &city.CreatedAt, &city.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("city with key %q: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get city: %w", err)
	}
	return city, nil
}

// FindOrCreateCity looks up a city by its normalized key, creating it when
// absent. On return city.ID is always set to the persisted id.
//
// A unique-constraint violation on insert means another writer (or a
// resumed crashed run) created the city first; the method falls back to
// re-lookup instead of failing, preserving idempotence.
func (db *DB) FindOrCreateCity(ctx context.Context, city *models.City) (created bool, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	existing, err := db.GetCityByKey(ctx, city.NormalizedKey)
	if err == nil {
		city.ID = existing.ID
		return false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return false, err
	}

	if city.ID == uuid.Nil {
		city.ID = uuid.New()
	}
	now := time.Now()
	city.CreatedAt = now
	city.UpdatedAt = now

	_, err = db.conn.ExecContext(ctx, `INSERT INTO cities
		(id, name, normalized_key, state, mayor, population, source, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		city.ID, city.Name, city.NormalizedKey, city.State, city.Mayor,
		city.Population, city.Source, city.CreatedAt, city.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			winner, lookupErr := db.GetCityByKey(ctx, city.NormalizedKey)
			if lookupErr != nil {
				return false, fmt.Errorf("city insert conflicted but re-lookup failed: %w", lookupErr)
			}
			city.ID = winner.ID
			return false, nil
		}
		return false, fmt.Errorf("failed to insert city: %w", err)
	}
	return true, nil
}

// ListCities returns every city in the catalog ordered by name. The
// demographics job iterates this to refresh one snapshot per city.
func (db *DB) ListCities(ctx context.Context) ([]models.City, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `SELECT
		id, name, normalized_key, state, mayor, population, source, created_at, updated_at
	FROM cities ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list cities: %w", err)
	}
	defer rows.Close()

	var cities []models.City
	for rows.Next() {
		var city models.City
		if err := rows.Scan(
			&city.ID, &city.Name, &city.NormalizedKey, &city.State, &city.Mayor,
			&city.Population, &city.Source, &city.CreatedAt, &city.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan city: %w", err)
		}
		cities = append(cities, city)
	}
	return cities, rows.Err()
}
