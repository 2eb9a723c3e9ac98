// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package database

import (
	"fmt"
	"strings"

	"github.com/tomtom215/gamebot/internal/registry"
)

// ColumnDef is one column of a table definition. Type is a native type.
type ColumnDef struct {
	Name    string
	Type    string
	NotNull bool
	Default string
	Check   string
}

// ForeignKeyDef is a table-level FOREIGN KEY constraint within one schema.
type ForeignKeyDef struct {
	Columns    []string
	RefTable   string
	RefColumns []string
}

// TableDef is a CREATE TABLE statement in structured form.
type TableDef struct {
	Schema      string
	Name        string
	Columns     []ColumnDef
	PrimaryKey  []string
	ForeignKeys []ForeignKeyDef
}

// CreateSQL renders CREATE TABLE IF NOT EXISTS.
func (d Dialect) CreateSQL(t TableDef) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", d.Qualified(t.Schema, t.Name))

	parts := make([]string, 0, len(t.Columns)+len(t.ForeignKeys)+1)
	for _, c := range t.Columns {
		col := "\t" + d.Quote(c.Name) + " " + c.Type
		if c.NotNull {
			col += " NOT NULL"
		}
		if c.Default != "" {
			col += " DEFAULT " + c.Default
		}
		if c.Check != "" {
			col += " CHECK (" + c.Check + ")"
		}
		parts = append(parts, col)
	}
	if len(t.PrimaryKey) > 0 {
		parts = append(parts, "\tPRIMARY KEY ("+strings.Join(d.QuoteAll(t.PrimaryKey), ", ")+")")
	}
	for _, fk := range t.ForeignKeys {
		parts = append(parts, fmt.Sprintf("\tFOREIGN KEY (%s) REFERENCES %s (%s)",
			strings.Join(d.QuoteAll(fk.Columns), ", "),
			d.Qualified(t.Schema, fk.RefTable),
			strings.Join(d.QuoteAll(fk.RefColumns), ", ")))
	}
	b.WriteString(strings.Join(parts, ",\n"))
	b.WriteString("\n)")
	return b.String()
}

// BronzeTableDef builds the definition for a registry table: declared
// columns, lineage columns, a primary key on the active business key and
// constraints for enforced references.
func (d Dialect) BronzeTableDef(schema string, spec *registry.TableSpec, key registry.BusinessKeyVersion) TableDef {
	inKey := make(map[string]bool, len(key.Columns))
	for _, c := range key.Columns {
		inKey[c] = true
	}

	def := TableDef{
		Schema:     schema,
		Name:       spec.Name,
		PrimaryKey: key.Columns,
	}
	for _, c := range spec.Columns {
		def.Columns = append(def.Columns, ColumnDef{
			Name:    c.Name,
			Type:    d.ColumnType(c.Type),
			NotNull: inKey[c.Name],
		})
	}
	def.Columns = append(def.Columns,
		ColumnDef{Name: registry.ColumnIngestRunID, Type: "UUID", NotNull: true},
		ColumnDef{Name: registry.ColumnIngestedAt, Type: d.TimestampType(), NotNull: true},
	)

	def.ForeignKeys = append(def.ForeignKeys, ForeignKeyDef{
		Columns:    []string{registry.ColumnIngestRunID},
		RefTable:   RunsTable,
		RefColumns: []string{"run_id"},
	})
	for _, fk := range spec.References {
		if !fk.Enforced {
			continue
		}
		def.ForeignKeys = append(def.ForeignKeys, ForeignKeyDef{
			Columns:    fk.Columns,
			RefTable:   fk.RefTable,
			RefColumns: fk.RefColumns,
		})
	}
	return def
}

// Lineage table names, created in the bronze schema.
const (
	RunsTable            = "ingestion_runs"
	DatasetVersionsTable = "dataset_versions"
	KeyVersionsTable     = "table_key_versions"
	MigrationsTable      = "schema_migrations"
)

func (d Dialect) lineageTableDefs(schema string) []TableDef {
	ts := d.TimestampType()
	return []TableDef{
		{
			Schema: schema,
			Name:   RunsTable,
			Columns: []ColumnDef{
				{Name: "run_id", Type: "UUID", NotNull: true, Default: d.UUIDDefault()},
				{Name: "environment", Type: "TEXT", NotNull: true},
				{Name: "git_branch", Type: "TEXT"},
				{Name: "git_commit", Type: "TEXT"},
				{Name: "source_url", Type: "TEXT"},
				{Name: "source_signature", Type: "TEXT"},
				{Name: "run_started_at", Type: ts, NotNull: true, Default: "CURRENT_TIMESTAMP"},
				{Name: "run_finished_at", Type: ts},
				{Name: "status", Type: "TEXT", NotNull: true, Default: "'running'",
					Check: "status IN ('running', 'success', 'failed')"},
				{Name: "notes", Type: "TEXT"},
			},
			PrimaryKey: []string{"run_id"},
		},
		{
			Schema: schema,
			Name:   DatasetVersionsTable,
			Columns: []ColumnDef{
				{Name: "dataset_name", Type: "TEXT", NotNull: true},
				{Name: "signature", Type: "TEXT"},
				{Name: "commit_sha", Type: "TEXT"},
				{Name: "commit_url", Type: "TEXT"},
				{Name: "committed_at", Type: ts},
				{Name: "last_ingest_run_id", Type: "UUID"},
				{Name: "updated_at", Type: ts, NotNull: true},
			},
			PrimaryKey: []string{"dataset_name"},
		},
		{
			Schema: schema,
			Name:   KeyVersionsTable,
			Columns: []ColumnDef{
				{Name: "table_name", Type: "TEXT", NotNull: true},
				{Name: "key_version", Type: "INTEGER", NotNull: true},
				{Name: "key_columns", Type: "TEXT", NotNull: true},
				{Name: "recorded_at", Type: ts, NotNull: true},
			},
			PrimaryKey: []string{"table_name"},
		},
		{
			Schema: schema,
			Name:   MigrationsTable,
			Columns: []ColumnDef{
				{Name: "version", Type: "INTEGER", NotNull: true},
				{Name: "name", Type: "TEXT", NotNull: true},
				{Name: "description", Type: "TEXT"},
				{Name: "applied_at", Type: ts, NotNull: true, Default: "CURRENT_TIMESTAMP"},
			},
			PrimaryKey: []string{"version"},
		},
	}
}

// LayerTableDef is BronzeTableDef for layers outside bronze. The run
// constraint is left out since ingestion_runs lives in the bronze schema.
func (d Dialect) LayerTableDef(schema string, spec *registry.TableSpec, key registry.BusinessKeyVersion) TableDef {
	def := d.BronzeTableDef(schema, spec, key)
	fks := def.ForeignKeys[:0]
	for _, fk := range def.ForeignKeys {
		if fk.RefTable != RunsTable {
			fks = append(fks, fk)
		}
	}
	def.ForeignKeys = fks
	return def
}
