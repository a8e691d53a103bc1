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

// GetVoteAggregate looks up the persisted aggregate for a natural key and
// vote kind. Returns ErrNotFound when no row matches.
func (db *DB) GetVoteAggregate(ctx context.Context, key models.VoteKey, kind string) (*models.VoteAggregate, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx, `SELECT
		id, city_id, office_code, year, round, number, kind, candidate, party, total, row_count, updated_at
	FROM vote_aggregates
	WHERE city_id = ? AND office_code = ? AND year = ? AND round = ? AND number = ? AND kind = ?`,
		key.CityID, key.OfficeCode, key.Year, key.Round, key.Number, kind)

	agg := &models.VoteAggregate{}
	err := row.Scan(
		&agg.ID, &agg.Key.CityID, &agg.Key.OfficeCode, &agg.Key.Year, &agg.Key.Round,
		&agg.Key.Number, &agg.Kind, &agg.Candidate, &agg.Party, &agg.Total, &agg.RowCount, &agg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("vote aggregate: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get vote aggregate: %w", err)
	}
	return agg, nil
}

// UpsertVoteAggregate persists an aggregate by its natural key: creates the
// row when absent, otherwise overwrites every mutable field with the latest
// aggregate. Last full run wins; re-running with the same source converges
// to the same stored state instead of double-accumulating.
//
// The whole operation runs inside one transaction.
func (db *DB) UpsertVoteAggregate(ctx context.Context, agg *models.VoteAggregate) (created bool, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	err = db.withTx(ctx, func(tx *sql.Tx) error {
		var existingID uuid.UUID
		row := tx.QueryRowContext(ctx, `SELECT id FROM vote_aggregates
			WHERE city_id = ? AND office_code = ? AND year = ? AND round = ? AND number = ? AND kind = ?`,
			agg.Key.CityID, agg.Key.OfficeCode, agg.Key.Year, agg.Key.Round, agg.Key.Number, agg.Kind)

		scanErr := row.Scan(&existingID)
		agg.UpdatedAt = time.Now()

		switch {
		case scanErr == nil:
			agg.ID = existingID
			_, execErr := tx.ExecContext(ctx, `UPDATE vote_aggregates
				SET candidate = ?, party = ?, total = ?, row_count = ?, updated_at = ?
				WHERE id = ?`,
				agg.Candidate, agg.Party, agg.Total, agg.RowCount, agg.UpdatedAt, agg.ID)
			if execErr != nil {
				return fmt.Errorf("failed to update vote aggregate: %w", execErr)
			}
			return nil

		case errors.Is(scanErr, sql.ErrNoRows):
			if agg.ID == uuid.Nil {
				agg.ID = uuid.New()
			}
			_, execErr := tx.ExecContext(ctx, `INSERT INTO vote_aggregates
				(id, city_id, office_code, year, round, number, kind, candidate, party, total, row_count, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				agg.ID, agg.Key.CityID, agg.Key.OfficeCode, agg.Key.Year, agg.Key.Round, agg.Key.Number,
				agg.Kind, agg.Candidate, agg.Party, agg.Total, agg.RowCount, agg.UpdatedAt)
			if execErr != nil {
				return fmt.Errorf("failed to insert vote aggregate: %w", execErr)
			}
			created = true
			return nil

		default:
			return fmt.Errorf("failed to query vote aggregate: %w", scanErr)
		}
	})
	if err != nil && isUniqueViolation(err) {
		// Concurrent or resumed insert of the same key: already exists,
		// fall back to update.
		created = false
		return false, db.withTx(ctx, func(tx *sql.Tx) error {
			_, execErr := tx.ExecContext(ctx, `UPDATE vote_aggregates
				SET candidate = ?, party = ?, total = ?, row_count = ?, updated_at = ?
				WHERE city_id = ? AND office_code = ? AND year = ? AND round = ? AND number = ? AND kind = ?`,
				agg.Candidate, agg.Party, agg.Total, agg.RowCount, time.Now(),
				agg.Key.CityID, agg.Key.OfficeCode, agg.Key.Year, agg.Key.Round, agg.Key.Number, agg.Kind)
			if execErr != nil {
				return fmt.Errorf("failed to update vote aggregate after conflict: %w", execErr)
			}
			return nil
		})
	}
	return created, err
}

// CountVoteAggregates returns the number of stored aggregates, used by run
// summaries and tests.
func (db *DB) CountVoteAggregates(ctx context.Context) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var n int64
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM vote_aggregates`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count vote aggregates: %w", err)
	}
	return n, nil
}
