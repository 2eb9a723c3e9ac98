// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package database

import (
	"fmt"
	"strings"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"

	"github.com/tomtom215/gamebot/internal/config"
	"github.com/tomtom215/gamebot/internal/registry"
)

// Dialect captures the SQL differences between supported warehouses.
type Dialect struct {
	// Name is the config driver name (duckdb, postgres).
	Name string

	// DriverName is the database/sql driver name.
	DriverName string

	// Flavor builds SQL with the right placeholder style.
	Flavor sqlbuilder.Flavor

	types         map[registry.ColumnType]string
	timestampType string
	uuidDefault   string
}

// DuckDB is the embedded warehouse dialect. Its placeholders are "?", which
// matches the SQLite flavor.
var DuckDB = Dialect{
	Name:       config.DriverDuckDB,
	DriverName: "duckdb",
	Flavor:     sqlbuilder.SQLite,
	types: map[registry.ColumnType]string{
		registry.TypeText:      "VARCHAR",
		registry.TypeInteger:   "INTEGER",
		registry.TypeBigint:    "BIGINT",
		registry.TypeDouble:    "DOUBLE",
		registry.TypeBoolean:   "BOOLEAN",
		registry.TypeDate:      "DATE",
		registry.TypeTimestamp: "TIMESTAMP",
	},
	timestampType: "TIMESTAMP",
	uuidDefault:   "gen_random_uuid()",
}

// Postgres is the server warehouse dialect.
var Postgres = Dialect{
	Name:       config.DriverPostgres,
	DriverName: "pgx",
	Flavor:     sqlbuilder.PostgreSQL,
	types: map[registry.ColumnType]string{
		registry.TypeText:      "TEXT",
		registry.TypeInteger:   "INTEGER",
		registry.TypeBigint:    "BIGINT",
		registry.TypeDouble:    "DOUBLE PRECISION",
		registry.TypeBoolean:   "BOOLEAN",
		registry.TypeDate:      "DATE",
		registry.TypeTimestamp: "TIMESTAMPTZ",
	},
	timestampType: "TIMESTAMPTZ",
	uuidDefault:   "gen_random_uuid()",
}

// DialectFor returns the dialect for a config driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case config.DriverDuckDB:
		return DuckDB, nil
	case config.DriverPostgres:
		return Postgres, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported warehouse driver %q", driver)
	}
}

// ColumnType maps a registry type to the native column type.
func (d Dialect) ColumnType(t registry.ColumnType) string {
	if native, ok := d.types[t]; ok {
		return native
	}
	return d.types[registry.TypeText]
}

// TimestampType is the type used for lineage timestamps.
func (d Dialect) TimestampType() string {
	return d.timestampType
}

// UUIDDefault is the server-side UUID generator expression.
func (d Dialect) UUIDDefault() string {
	return d.uuidDefault
}

// Quote quotes an identifier.
func (d Dialect) Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// Qualified returns schema.table, quoted.
func (d Dialect) Qualified(schema, table string) string {
	return d.Quote(schema) + "." + d.Quote(table)
}

// QuoteAll quotes each identifier.
func (d Dialect) QuoteAll(idents []string) []string {
	out := make([]string, len(idents))
	for i, id := range idents {
		out[i] = d.Quote(id)
	}
	return out
}

// Rebind converts "?" placeholders to the dialect's bind style.
func (d Dialect) Rebind(query string) string {
	return sqlx.Rebind(sqlx.BindType(d.DriverName), query)
}

// UUIDParam wraps a run id placeholder in an explicit cast so both drivers
// accept a string argument for UUID columns.
func (d Dialect) UUIDParam(id string) sqlbuilder.Builder {
	return sqlbuilder.Buildf("CAST(%v AS UUID)", id)
}
