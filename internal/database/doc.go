// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

/*
Package database owns the warehouse connection and its DDL.

Two drivers are supported behind the same *DB:

  - duckdb (default): embedded file or :memory:, opened with the tuning
    options in the connection string
  - postgres: opened through pgx's database/sql driver

Dialect differences (placeholder style, column types, UUID default) are kept
in Dialect so callers build SQL once. sqlx wraps the connection for struct
scanning and Rebind; go-sqlbuilder flavors follow the dialect.

Schema management:

EnsureSchema is idempotent. It verifies prerequisites (UUID generation,
schema-create privilege) and fails with *SchemaPrerequisiteError before
touching data, then creates the bronze, silver and gold schemas, the lineage
tables (ingestion_runs, dataset_versions, table_key_versions) and every
registry table with CREATE ... IF NOT EXISTS. Existing columns are never
dropped or altered; explicit changes go through versioned migrations
recorded in schema_migrations.
*/
package database
