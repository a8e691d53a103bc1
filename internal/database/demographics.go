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
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/mandatolab/reconcilia/internal/models"
)

// GetDemographicSnapshot looks up the census snapshot for a city.
// Returns ErrNotFound when no snapshot exists.
func (db *DB) GetDemographicSnapshot(ctx context.Context, cityID uuid.UUID) (*models.DemographicSnapshot, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx, `SELECT
		city_id, urban_percent, rural_percent, literacy_rate,
		catholic_percent, evangelic_percent, spiritist_percent, no_religion_percent,
		districts, collected_at
	FROM demographic_snapshots WHERE city_id = ?`, cityID)

	snap := &models.DemographicSnapshot{}
	var districtsJSON string
	err := row.Scan(
		&snap.CityID, &snap.UrbanPercent, &snap.RuralPercent, &snap.LiteracyRate,
		&snap.CatholicPercent, &snap.EvangelicPercent, &snap.SpiritistPercent, &snap.NoReligionPercent,
		&districtsJSON, &snap.CollectedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("demographic snapshot for city %s: %w", cityID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get demographic snapshot: %w", err)
	}
	if err := json.Unmarshal([]byte(districtsJSON), &snap.Districts); err != nil {
		return nil, fmt.Errorf("failed to decode districts: %w", err)
	}
	return snap, nil
}

// UpsertDemographicSnapshot persists the snapshot for a city: one row per
// city, overwritten whole on every run. District names are stored as a
// JSON-encoded list.
//
// The whole operation runs inside one transaction.
func (db *DB) UpsertDemographicSnapshot(ctx context.Context, snap *models.DemographicSnapshot) (created bool, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	districts := snap.Districts
	if districts == nil {
		districts = []string{}
	}
	districtsJSON, err := json.Marshal(districts)
	if err != nil {
		return false, fmt.Errorf("failed to encode districts: %w", err)
	}

	err = db.withTx(ctx, func(tx *sql.Tx) error {
		if snap.CollectedAt.IsZero() {
			snap.CollectedAt = time.Now()
		}

		var exists int
		row := tx.QueryRowContext(ctx,
			`SELECT 1 FROM demographic_snapshots WHERE city_id = ?`, snap.CityID)
		scanErr := row.Scan(&exists)

		switch {
		case scanErr == nil:
			_, execErr := tx.ExecContext(ctx, `UPDATE demographic_snapshots
				SET urban_percent = ?, rural_percent = ?, literacy_rate = ?,
					catholic_percent = ?, evangelic_percent = ?, spiritist_percent = ?, no_religion_percent = ?,
					districts = ?, collected_at = ?
				WHERE city_id = ?`,
				snap.UrbanPercent, snap.RuralPercent, snap.LiteracyRate,
				snap.CatholicPercent, snap.EvangelicPercent, snap.SpiritistPercent, snap.NoReligionPercent,
				string(districtsJSON), snap.CollectedAt, snap.CityID)
			if execErr != nil {
				return fmt.Errorf("failed to update demographic snapshot: %w", execErr)
			}
			return nil

		case errors.Is(scanErr, sql.ErrNoRows):
			_, execErr := tx.ExecContext(ctx, `INSERT INTO demographic_snapshots
				(city_id, urban_percent, rural_percent, literacy_rate,
				 catholic_percent, evangelic_percent, spiritist_percent, no_religion_percent,
				 districts, collected_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				snap.CityID, snap.UrbanPercent, snap.RuralPercent, snap.LiteracyRate,
				snap.CatholicPercent, snap.EvangelicPercent, snap.SpiritistPercent, snap.NoReligionPercent,
				string(districtsJSON), snap.CollectedAt)
			if execErr != nil {
				return fmt.Errorf("failed to insert demographic snapshot: %w", execErr)
			}
			created = true
			return nil

		default:
			return fmt.Errorf("failed to query demographic snapshot: %w", scanErr)
		}
	})
	return created, err
}
