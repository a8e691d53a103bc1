// Reconcilia - Municipal External-Data Reconciliation Pipeline
// Copyright 2026 Mandato Lab
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mandatolab/reconcilia

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/mandatolab/reconcilia/internal/logging"
)

// Migration represents a versioned database migration.
type Migration struct {
	Version     int    // Unique version number (monotonically increasing)
	Name        string // Human-readable migration name
	Description string // What this migration does
	SQL         string // SQL statement to execute
}

// schemaMigrationsTable creates the migration tracking table.
const schemaMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT,
	applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// getMigrations returns all versioned migrations in order.
//
// The full current schema is defined in schema.go, so this starts empty.
// Migrations MUST be append-only once databases with data exist. Example:
//
//	{Version: 1, Name: "add_amendment_function", Description: "Track budget function",
//	 SQL: `ALTER TABLE amendments ADD COLUMN IF NOT EXISTS function TEXT;`},
func (db *DB) getMigrations() []Migration {
	return []Migration{}
}

// runVersionedMigrations applies every migration that has not yet been
// recorded in schema_migrations. Each migration runs exactly once.
func (db *DB) runVersionedMigrations() error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if _, err := db.conn.ExecContext(ctx, schemaMigrationsTable); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	applied, err := db.appliedMigrationVersions(ctx)
	if err != nil {
		return err
	}

	for _, m := range db.getMigrations() {
		if applied[m.Version] {
			continue
		}
		if _, err := db.conn.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Name, err)
		}
		if _, err := db.conn.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, name, description) VALUES (?, ?, ?)`,
			m.Version, m.Name, m.Description,
		); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
		logging.Info().Int("version", m.Version).Str("name", m.Name).Msg("Applied migration")
	}
	return nil
}

// appliedMigrationVersions returns the set of migration versions already
// recorded in schema_migrations.
func (db *DB) appliedMigrationVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT version FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}
