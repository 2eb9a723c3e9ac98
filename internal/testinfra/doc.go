// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

// Package testinfra provides warehouses for tests.
//
// NewDuckDB opens an in-memory DuckDB warehouse with the schema ensured and
// is safe to use from any package's unit tests.
//
// # Postgres Container
//
// Files behind the integration build tag start a real PostgreSQL server with
// testcontainers-go so the same tests can exercise the pgx driver:
//
//	func TestTrackerPostgres(t *testing.T) {
//	    db := testinfra.NewPostgres(t, nil)
//	    tracker := runs.NewTracker(db)
//	    ...
//	}
//
// Run them with:
//
//	go test -tags integration ./...
//
// Tests are skipped when Docker is unavailable.
package testinfra
