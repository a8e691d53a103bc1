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

	"github.com/google/uuid"

	"github.com/mandatolab/reconcilia/internal/models"
)

// GetAmendment looks up an amendment by its natural key (city, code).
// Returns ErrNotFound when no row matches.
func (db *DB) GetAmendment(ctx context.Context, cityID uuid.UUID, code string) (*models.AmendmentRecord, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx, `SELECT
		id, city_id, code, author, year, committed_amount, paid_amount, status, updated_at
	FROM amendments WHERE city_id = ? AND code = ?`, cityID, code)

	rec := &models.AmendmentRecord{}
	err := row.Scan(
		&rec.ID, &rec.CityID, &rec.Code, &rec.Author, &rec.Year,
		&rec.CommittedAmount, &rec.PaidAmount, &rec.Status, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("amendment %q: %w", code, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get amendment: %w", err)
	}
	return rec, nil
}

// UpsertAmendment persists an amendment record. Records carrying an
// external code are matched by (city, code) and overwritten when found, so
// re-running the pipeline on the same source updates instead of
// duplicating. Records without a code cannot be matched and are always
// inserted as new rows.
//
// The whole operation runs inside one transaction.
func (db *DB) UpsertAmendment(ctx context.Context, rec *models.AmendmentRecord) (created bool, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	err = db.withTx(ctx, func(tx *sql.Tx) error {
		rec.UpdatedAt = time.Now()

		if rec.HasCode() {
			var existingID uuid.UUID
			row := tx.QueryRowContext(ctx,
				`SELECT id FROM amendments WHERE city_id = ? AND code = ?`, rec.CityID, rec.Code)
			scanErr := row.Scan(&existingID)

			if scanErr == nil {
				rec.ID = existingID
				_, execErr := tx.ExecContext(ctx, `UPDATE amendments
					SET author = ?, year = ?, committed_amount = ?, paid_amount = ?, status = ?, updated_at = ?
					WHERE id = ?`,
					rec.Author, rec.Year, rec.CommittedAmount, rec.PaidAmount, rec.Status, rec.UpdatedAt, rec.ID)
				if execErr != nil {
					return fmt.Errorf("failed to update amendment: %w", execErr)
				}
				return nil
			}
			if !errors.Is(scanErr, sql.ErrNoRows) {
				return fmt.Errorf("failed to query amendment: %w", scanErr)
			}
		}

		if rec.ID == uuid.Nil {
			rec.ID = uuid.New()
		}
		_, execErr := tx.ExecContext(ctx, `INSERT INTO amendments
			(id, city_id, code, author, year, committed_amount, paid_amount, status, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.CityID, rec.Code, rec.Author, rec.Year,
			rec.CommittedAmount, rec.PaidAmount, rec.Status, rec.UpdatedAt)
		if execErr != nil {
			return fmt.Errorf("failed to insert amendment: %w", execErr)
		}
		created = true
		return nil
	})
	return created, err
}

// CountAmendments returns the number of stored amendment rows for a city,
// used by run summaries and tests.
func (db *DB) CountAmendments(ctx context.Context, cityID uuid.UUID) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var n int64
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM amendments WHERE city_id = ?`, cityID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count amendments: %w", err)
	}
	return n, nil
}
