// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package testinfra

import (
	"context"
	"testing"

	"github.com/tomtom215/gamebot/internal/config"
	"github.com/tomtom215/gamebot/internal/database"
	"github.com/tomtom215/gamebot/internal/registry"
)

// duckDBSemaphore limits concurrent DuckDB instances in one test binary.
// Each in-memory database runs its own CGO thread pool.
var duckDBSemaphore = make(chan struct{}, 4)

// WarehouseConfig returns an in-memory DuckDB warehouse config.
func WarehouseConfig() *config.WarehouseConfig {
	return &config.WarehouseConfig{
		Driver:       config.DriverDuckDB,
		Path:         ":memory:",
		MaxMemory:    "512MB",
		Threads:      2,
		BronzeSchema: "bronze",
		SilverSchema: "silver",
		GoldSchema:   "gold",
		MaxOpenConns: 1,
	}
}

// NewDuckDB opens an in-memory warehouse with reg's schema ensured. The
// database is closed when the test completes. A nil reg uses the default
// catalog.
func NewDuckDB(t *testing.T, reg *registry.Registry) *database.DB {
	t.Helper()

	duckDBSemaphore <- struct{}{}
	t.Cleanup(func() { <-duckDBSemaphore })

	if reg == nil {
		var err error
		if reg, err = registry.Default(); err != nil {
			t.Fatalf("registry.Default() error = %v", err)
		}
	}

	db, err := database.Open(WarehouseConfig())
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: failed to close warehouse: %v", err)
		}
	})

	if err := db.EnsureSchema(context.Background(), reg, nil); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	return db
}

// MustRegistry loads a catalog document or fails the test.
func MustRegistry(t *testing.T, doc string) *registry.Registry {
	t.Helper()
	reg, err := registry.Load([]byte(doc))
	if err != nil {
		t.Fatalf("registry.Load() error = %v", err)
	}
	return reg
}
