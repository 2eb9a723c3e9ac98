// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/gamebot/internal/config"
	"github.com/tomtom215/gamebot/internal/logging"
	"github.com/tomtom215/gamebot/internal/registry"
)

// EnsureSchema creates every schema and table the pipeline needs if absent.
// It is safe to call on every run but must not overlap an active merge.
func (db *DB) EnsureSchema(ctx context.Context, reg *registry.Registry, keyVersions map[string]int) error {
	ctx, cancel := schemaContext(ctx)
	defer cancel()

	if err := db.checkPrerequisites(ctx); err != nil {
		return err
	}

	for _, schema := range []string{db.schemas.Bronze, db.schemas.Silver, db.schemas.Gold} {
		if _, err := db.conn.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+db.dialect.Quote(schema)); err != nil {
			return &SchemaPrerequisiteError{Requirement: "create schema " + schema, Err: err}
		}
	}

	for _, def := range db.dialect.lineageTableDefs(db.schemas.Bronze) {
		if err := db.CreateTable(ctx, def); err != nil {
			return err
		}
	}

	for _, name := range reg.Order() {
		spec, _ := reg.Table(name)
		key, err := spec.ActiveKey(keyVersions)
		if err != nil {
			return err
		}
		if err := db.CreateTable(ctx, db.dialect.BronzeTableDef(db.schemas.Bronze, spec, key)); err != nil {
			return err
		}
		if err := db.recordKeyVersion(ctx, spec.Name, key); err != nil {
			return err
		}
	}

	if err := db.runVersionedMigrations(ctx); err != nil {
		return err
	}

	logging.Debug().Int("tables", len(reg.Order())).Msg("Warehouse schema ensured")
	return nil
}

// CreateTable executes CREATE TABLE IF NOT EXISTS for def.
func (db *DB) CreateTable(ctx context.Context, def TableDef) error {
	if _, err := db.conn.ExecContext(ctx, db.dialect.CreateSQL(def)); err != nil {
		return fmt.Errorf("failed to create table %s.%s: %w", def.Schema, def.Name, err)
	}
	return nil
}

func (db *DB) checkPrerequisites(ctx context.Context) error {
	var probe string
	if err := db.conn.QueryRowContext(ctx, "SELECT CAST("+db.dialect.UUIDDefault()+" AS TEXT)").Scan(&probe); err != nil {
		return &SchemaPrerequisiteError{Requirement: "server-side UUID generation", Err: err}
	}

	if db.dialect.Name != config.DriverPostgres {
		return nil
	}

	var canCreate bool
	if err := db.conn.QueryRowContext(ctx,
		"SELECT has_database_privilege(current_database(), 'CREATE')").Scan(&canCreate); err != nil {
		return &SchemaPrerequisiteError{Requirement: "schema create privilege", Err: err}
	}
	if canCreate {
		return nil
	}

	// Without CREATE the schemas must already exist.
	var missing []string
	for _, schema := range []string{db.schemas.Bronze, db.schemas.Silver, db.schemas.Gold} {
		var n int
		if err := db.conn.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM information_schema.schemata WHERE schema_name = $1", schema).Scan(&n); err != nil {
			return &SchemaPrerequisiteError{Requirement: "schema create privilege", Err: err}
		}
		if n == 0 {
			missing = append(missing, schema)
		}
	}
	if len(missing) > 0 {
		return &SchemaPrerequisiteError{
			Requirement: "CREATE privilege for schemas " + strings.Join(missing, ", "),
			Err:         errors.New("permission denied"),
		}
	}
	return nil
}

// KeyVersion is the business key version a table was created with.
type KeyVersion struct {
	Table      string    `db:"table_name"`
	Version    int       `db:"key_version"`
	Columns    string    `db:"key_columns"`
	RecordedAt time.Time `db:"recorded_at"`
}

func (db *DB) recordKeyVersion(ctx context.Context, table string, key registry.BusinessKeyVersion) error {
	query := db.dialect.Rebind(fmt.Sprintf(
		"INSERT INTO %s (table_name, key_version, key_columns, recorded_at) VALUES (?, ?, ?, ?) ON CONFLICT (table_name) DO NOTHING",
		db.dialect.Qualified(db.schemas.Bronze, KeyVersionsTable)))
	if _, err := db.conn.ExecContext(ctx, query, table, key.Version, strings.Join(key.Columns, ","), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to record key version for %s: %w", table, err)
	}
	return nil
}

// KeyVersions returns the recorded business key version per table.
func (db *DB) KeyVersions(ctx context.Context) (map[string]KeyVersion, error) {
	var rows []KeyVersion
	query := fmt.Sprintf("SELECT table_name, key_version, key_columns, recorded_at FROM %s",
		db.dialect.Qualified(db.schemas.Bronze, KeyVersionsTable))
	if err := db.x.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to read key versions: %w", err)
	}
	out := make(map[string]KeyVersion, len(rows))
	for _, r := range rows {
		out[r.Table] = r
	}
	return out, nil
}

// SetKeyVersion records that table now uses key. Callers verify the existing
// rows are unique under the new key first.
func (db *DB) SetKeyVersion(ctx context.Context, table string, key registry.BusinessKeyVersion) error {
	query := db.dialect.Rebind(fmt.Sprintf(
		"UPDATE %s SET key_version = ?, key_columns = ?, recorded_at = ? WHERE table_name = ?",
		db.dialect.Qualified(db.schemas.Bronze, KeyVersionsTable)))
	if _, err := db.conn.ExecContext(ctx, query, key.Version, strings.Join(key.Columns, ","), time.Now().UTC(), table); err != nil {
		return fmt.Errorf("failed to update key version for %s: %w", table, err)
	}
	return nil
}
