// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/tomtom215/gamebot/internal/logging"
	"github.com/tomtom215/gamebot/internal/registry"
)

// KeyVersionMismatchError means configuration selects a business key version
// other than the one the table was created with.
type KeyVersionMismatchError struct {
	Table    string
	Recorded int
	Wanted   int
}

func (e *KeyVersionMismatchError) Error() string {
	return fmt.Sprintf("table %s was created with business key v%d but v%d is configured; run `gamebot schema rekey %s %d`",
		e.Table, e.Recorded, e.Wanted, e.Table, e.Wanted)
}

// DuplicateUnderKeyError means existing rows are not unique under a
// candidate business key.
type DuplicateUnderKeyError struct {
	Table   string
	Version int
	Samples [][]string
}

func (e *DuplicateUnderKeyError) Error() string {
	samples := make([]string, len(e.Samples))
	for i, s := range e.Samples {
		samples[i] = "(" + strings.Join(s, ", ") + ")"
	}
	return fmt.Sprintf("table %s has duplicate rows under business key v%d: %s",
		e.Table, e.Version, strings.Join(samples, " "))
}

// ActiveKeys resolves the business key each table is merged with. A table's
// recorded version wins; a pin that disagrees with it is an error, so two key
// definitions never mix in one table.
func (db *DB) ActiveKeys(ctx context.Context, reg *registry.Registry, pins map[string]int) (map[string]registry.BusinessKeyVersion, error) {
	recorded, err := db.KeyVersions(ctx)
	if err != nil {
		return nil, err
	}

	keys := make(map[string]registry.BusinessKeyVersion, len(reg.Order()))
	for _, spec := range reg.Tables() {
		rec, ok := recorded[spec.Name]
		if !ok {
			key, err := spec.ActiveKey(pins)
			if err != nil {
				return nil, err
			}
			keys[spec.Name] = key
			continue
		}
		if want, pinned := pins[spec.Name]; pinned && want != rec.Version {
			return nil, &KeyVersionMismatchError{Table: spec.Name, Recorded: rec.Version, Wanted: want}
		}
		key, err := spec.ActiveKey(map[string]int{spec.Name: rec.Version})
		if err != nil {
			return nil, err
		}
		keys[spec.Name] = key
	}
	return keys, nil
}

// Rekey rebuilds a bronze table with a different business key version. The
// existing rows must be unique under the new key, and no enforced reference
// may target the table.
func (db *DB) Rekey(ctx context.Context, reg *registry.Registry, table string, version int) error {
	spec, ok := reg.Table(table)
	if !ok {
		return fmt.Errorf("unknown table %q", table)
	}
	key, err := spec.ActiveKey(map[string]int{table: version})
	if err != nil {
		return err
	}
	for _, other := range reg.Tables() {
		for _, fk := range other.References {
			if fk.Enforced && fk.RefTable == table {
				return fmt.Errorf("table %s is referenced by %s and cannot be rebuilt in place", table, other.Name)
			}
		}
	}

	dups, err := db.DuplicateKeys(ctx, db.schemas.Bronze, table, key.Columns, 10)
	if err != nil {
		return err
	}
	if len(dups) > 0 {
		return &DuplicateUnderKeyError{Table: table, Version: version, Samples: dups}
	}

	def := db.dialect.BronzeTableDef(db.schemas.Bronze, spec, key)
	scratch := table + "__rekey"
	def.Name = scratch

	cols := append(spec.ColumnNames(), registry.ColumnIngestRunID, registry.ColumnIngestedAt)
	colList := strings.Join(db.dialect.QuoteAll(cols), ", ")

	tx, err := db.x.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin rekey of %s: %w", table, err)
	}
	stmts := []string{
		db.dialect.CreateSQL(def),
		fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s",
			db.dialect.Qualified(db.schemas.Bronze, scratch), colList, colList,
			db.dialect.Qualified(db.schemas.Bronze, table)),
		"DROP TABLE " + db.dialect.Qualified(db.schemas.Bronze, table),
		fmt.Sprintf("ALTER TABLE %s RENAME TO %s",
			db.dialect.Qualified(db.schemas.Bronze, scratch), db.dialect.Quote(table)),
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to rekey %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rekey of %s: %w", table, err)
	}

	if err := db.SetKeyVersion(ctx, table, key); err != nil {
		return err
	}
	logging.Info().Str("table", table).Int("key_version", version).
		Strs("key_columns", key.Columns).Msg("Rebuilt table with new business key")
	return nil
}
