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

	"github.com/tomtom215/gamebot/internal/config"
)

// ErrExportUnsupported is returned when the warehouse cannot write files.
var ErrExportUnsupported = errors.New("parquet export requires the duckdb warehouse")

// ExportParquet writes the result of query to outputPath as ZSTD-compressed
// parquet. Row order is the order query produces.
func (db *DB) ExportParquet(ctx context.Context, query, outputPath string) error {
	if db.dialect.Name != config.DriverDuckDB {
		return ErrExportUnsupported
	}
	stmt := fmt.Sprintf("COPY (%s) TO '%s' (FORMAT PARQUET, COMPRESSION 'ZSTD', ROW_GROUP_SIZE 100000)",
		query, strings.ReplaceAll(outputPath, "'", "''"))
	if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to export parquet to %s: %w", outputPath, err)
	}
	return nil
}
