// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/tomtom215/gamebot/internal/config"
	"github.com/tomtom215/gamebot/internal/logging"
)

// Schemas names the medallion layers.
type Schemas struct {
	Bronze string
	Silver string
	Gold   string
}

// DB wraps the warehouse connection.
type DB struct {
	conn    *sql.DB
	x       *sqlx.DB
	dialect Dialect
	cfg     *config.WarehouseConfig
	schemas Schemas
}

// Open connects to the configured warehouse. It does not create any schema;
// call EnsureSchema for that.
func Open(cfg *config.WarehouseConfig) (*DB, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	dsn, err := connectionString(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := sql.Open(dialect.DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s warehouse: %w", dialect.Name, err)
	}

	db := &DB{
		conn:    conn,
		x:       sqlx.NewDb(conn, dialect.DriverName),
		dialect: dialect,
		cfg:     cfg,
		schemas: Schemas{
			Bronze: cfg.BronzeSchema,
			Silver: cfg.SilverSchema,
			Gold:   cfg.GoldSchema,
		},
	}
	db.configureConnectionPool()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to reach %s warehouse: %w", dialect.Name, err)
	}

	logging.Info().
		Str("driver", dialect.Name).
		Str("bronze_schema", cfg.BronzeSchema).
		Msg("Warehouse connection established")
	return db, nil
}

func connectionString(cfg *config.WarehouseConfig) (string, error) {
	if cfg.Driver == config.DriverPostgres {
		if cfg.DSN == "" {
			return "", fmt.Errorf("postgres warehouse requires a DSN")
		}
		return cfg.DSN, nil
	}

	// Use 0750 for the data directory (gosec G301).
	if dir := filepath.Dir(cfg.Path); cfg.Path != ":memory:" && dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return "", fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	return fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s",
		cfg.Path, threads, cfg.MaxMemory), nil
}

func (db *DB) configureConnectionPool() {
	maxOpen := db.cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 4
	}
	db.conn.SetMaxOpenConns(maxOpen)
	db.conn.SetMaxIdleConns(2)
	db.conn.SetConnMaxLifetime(time.Hour)
	db.conn.SetConnMaxIdleTime(5 * time.Minute)
}

// Conn returns the underlying database/sql handle.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// X returns the sqlx handle.
func (db *DB) X() *sqlx.DB {
	return db.x
}

// Dialect returns the warehouse dialect.
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// Schemas returns the configured layer schema names.
func (db *DB) Schemas() Schemas {
	return db.schemas
}

// Ping verifies the connection.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// BeginTxx starts a transaction.
func (db *DB) BeginTxx(ctx context.Context) (*sqlx.Tx, error) {
	return db.x.BeginTxx(ctx, nil)
}

// Close closes the connection pool. For duckdb a checkpoint is attempted
// first so the WAL is folded into the database file.
func (db *DB) Close() error {
	if db.dialect.Name == config.DriverDuckDB && db.cfg.Path != ":memory:" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if _, err := db.conn.ExecContext(ctx, "CHECKPOINT"); err != nil {
			logging.Warn().Err(err).Msg("Checkpoint before close failed")
		}
		cancel()
	}
	return db.conn.Close()
}

// schemaContext returns a context with timeout for schema operations.
func schemaContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, 60*time.Second)
}
