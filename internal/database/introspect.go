// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package database

import (
	"context"
	"fmt"
	"strings"
)

// ColumnInfo is a column as the warehouse reports it.
type ColumnInfo struct {
	Name     string `db:"column_name"`
	DataType string `db:"data_type"`
}

// ColumnTypes lists a table's columns in ordinal order. An absent table
// yields an empty slice.
func (db *DB) ColumnTypes(ctx context.Context, schema, table string) ([]ColumnInfo, error) {
	var cols []ColumnInfo
	query := db.dialect.Rebind(`SELECT column_name, data_type FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ? ORDER BY ordinal_position`)
	if err := db.x.SelectContext(ctx, &cols, query, schema, table); err != nil {
		return nil, fmt.Errorf("failed to read columns of %s.%s: %w", schema, table, err)
	}
	for i := range cols {
		cols[i].DataType = strings.ToUpper(cols[i].DataType)
	}
	return cols, nil
}

// TableExists reports whether schema.table exists.
func (db *DB) TableExists(ctx context.Context, schema, table string) (bool, error) {
	var n int
	query := db.dialect.Rebind(`SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = ? AND table_name = ?`)
	if err := db.conn.QueryRowContext(ctx, query, schema, table).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check table %s.%s: %w", schema, table, err)
	}
	return n > 0, nil
}

// RowCount counts rows in schema.table.
func (db *DB) RowCount(ctx context.Context, schema, table string) (int64, error) {
	var n int64
	query := "SELECT COUNT(*) FROM " + db.dialect.Qualified(schema, table)
	if err := db.conn.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s.%s: %w", schema, table, err)
	}
	return n, nil
}

// DuplicateKeys returns up to limit key tuples that occur more than once in
// schema.table under cols. Used before switching a table's business key.
func (db *DB) DuplicateKeys(ctx context.Context, schema, table string, cols []string, limit int) ([][]string, error) {
	quoted := strings.Join(db.dialect.QuoteAll(cols), ", ")
	casted := make([]string, len(cols))
	for i, c := range cols {
		casted[i] = "CAST(" + db.dialect.Quote(c) + " AS TEXT)"
	}
	query := fmt.Sprintf("SELECT %s FROM %s GROUP BY %s HAVING COUNT(*) > 1 LIMIT %d",
		strings.Join(casted, ", "), db.dialect.Qualified(schema, table), quoted, limit)

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to check duplicate keys in %s.%s: %w", schema, table, err)
	}
	defer closeWithLog(rows, "rows")

	var dups [][]string
	for rows.Next() {
		vals := make([]*string, len(cols))
		dest := make([]interface{}, len(cols))
		for i := range vals {
			dest[i] = &vals[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan duplicate key: %w", err)
		}
		tuple := make([]string, len(cols))
		for i, v := range vals {
			if v == nil {
				tuple[i] = "NULL"
			} else {
				tuple[i] = *v
			}
		}
		dups = append(dups, tuple)
	}
	return dups, rows.Err()
}
