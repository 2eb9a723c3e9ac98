// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/gamebot/internal/logging"
)

// Migration is a versioned, explicit schema change.
type Migration struct {
	Version     int       `db:"version"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	AppliedAt   time.Time `db:"applied_at"`

	// SQL renders the statement for the warehouse dialect and schemas.
	SQL func(d Dialect, s Schemas) string `db:"-"`
}

// migrations is append-only. Never edit or remove an entry once released.
// DuckDB refuses ALTER TABLE on tables other tables reference, so changes to
// ingestion_runs or parent bronze tables need a rebuild migration instead.
var migrations = []Migration{
	{
		Version:     1,
		Name:        "dataset_versions_source_kind",
		Description: "Record which export (primary or json) supplied each dataset",
		SQL: func(d Dialect, s Schemas) string {
			return fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS source_kind TEXT",
				d.Qualified(s.Bronze, DatasetVersionsTable))
		},
	},
}

func (db *DB) appliedMigrations(ctx context.Context) (map[int]Migration, error) {
	var rows []Migration
	query := fmt.Sprintf("SELECT version, name, COALESCE(description, '') AS description, applied_at FROM %s ORDER BY version",
		db.dialect.Qualified(db.schemas.Bronze, MigrationsTable))
	if err := db.x.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	applied := make(map[int]Migration, len(rows))
	for _, m := range rows {
		applied[m.Version] = m
	}
	return applied, nil
}

// runVersionedMigrations applies migrations not yet recorded, each in its
// own transaction with its bookkeeping row.
func (db *DB) runVersionedMigrations(ctx context.Context) error {
	applied, err := db.appliedMigrations(ctx)
	if err != nil {
		return err
	}

	record := db.dialect.Rebind(fmt.Sprintf("INSERT INTO %s (version, name, description) VALUES (?, ?, ?)",
		db.dialect.Qualified(db.schemas.Bronze, MigrationsTable)))

	newMigrations := 0
	for _, m := range migrations {
		if _, ok := applied[m.Version]; ok {
			continue
		}

		tx, err := db.x.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration v%d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, m.SQL(db.dialect, db.schemas)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to execute migration v%d (%s): %w", m.Version, m.Name, err)
		}
		if _, err := tx.ExecContext(ctx, record, m.Version, m.Name, m.Description); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration v%d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration v%d: %w", m.Version, err)
		}
		newMigrations++
	}

	if newMigrations > 0 {
		logging.Info().Int("count", newMigrations).Msg("Applied database migrations")
	}
	return nil
}

// CurrentSchemaVersion returns the highest applied migration version.
func (db *DB) CurrentSchemaVersion(ctx context.Context) (int, error) {
	var version int
	query := fmt.Sprintf("SELECT COALESCE(MAX(version), 0) FROM %s", db.dialect.Qualified(db.schemas.Bronze, MigrationsTable))
	if err := db.conn.QueryRowContext(ctx, query).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
