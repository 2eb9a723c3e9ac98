// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package merge

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tomtom215/gamebot/internal/registry"
	"github.com/tomtom215/gamebot/internal/snapshot"
)

func (e *Engine) table(name string) string {
	return e.db.Dialect().Qualified(e.schema, name)
}

// selectRows reads cols from every row of table, coerced to types.
func (e *Engine) selectRows(ctx context.Context, tx *sqlx.Tx, table string, cols []string, types []registry.ColumnType) ([][]snapshot.Value, error) {
	d := e.db.Dialect()
	sb := d.Flavor.NewSelectBuilder()
	sb.Select(d.QuoteAll(cols)...).From(e.table(table))
	query, args := sb.Build()

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", table, err)
	}
	defer rows.Close()

	var out [][]snapshot.Value
	for rows.Next() {
		raw := make([]any, len(cols))
		dest := make([]any, len(cols))
		for i := range raw {
			dest[i] = &raw[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", table, err)
		}
		values := make([]snapshot.Value, len(cols))
		for i, v := range raw {
			values[i], _ = snapshot.Coerce(snapshot.FromSQL(v), types[i])
		}
		out = append(out, values)
	}
	return out, rows.Err()
}

// loadExisting returns the stored batch columns of every row, by key.
func (e *Engine) loadExisting(ctx context.Context, tx *sqlx.Tx, p *prepared) (map[string][]snapshot.Value, error) {
	stored, err := e.selectRows(ctx, tx, p.spec.Name, p.columns, p.types)
	if err != nil {
		return nil, err
	}
	existing := make(map[string][]snapshot.Value, len(stored))
	keyVals := make([]snapshot.Value, len(p.keyIdx))
	for _, values := range stored {
		for i, idx := range p.keyIdx {
			keyVals[i] = values[idx]
		}
		existing[canonicalKey(keyVals)] = values
	}
	return existing, nil
}

// checkReferences verifies that every enforced reference in the batch
// resolves to a parent row already in the warehouse.
func (e *Engine) checkReferences(ctx context.Context, tx *sqlx.Tx, p *prepared) error {
	pos := make(map[string]int, len(p.columns))
	for i, c := range p.columns {
		pos[c] = i
	}

	for _, fk := range p.spec.References {
		if !fk.Enforced || fk.RefTable == p.spec.Name {
			continue
		}
		parent, ok := e.reg.Table(fk.RefTable)
		if !ok {
			return &TableMergeError{Table: p.spec.Name, Err: fmt.Errorf("reference to unknown table %s", fk.RefTable)}
		}

		idx := make([]int, len(fk.Columns))
		types := make([]registry.ColumnType, len(fk.RefColumns))
		present := true
		for i, c := range fk.Columns {
			j, ok := pos[c]
			if !ok {
				present = false
				break
			}
			idx[i] = j
			col, _ := parent.Column(fk.RefColumns[i])
			types[i] = col.Type
		}
		if !present {
			continue
		}

		wanted := make(map[string][]snapshot.Value)
		var order []string
		for _, r := range p.rows {
			tuple := make([]snapshot.Value, len(idx))
			null := false
			for i, j := range idx {
				// A value the parent column cannot hold matches no parent row.
				if c, lost := snapshot.Coerce(r.values[j], types[i]); lost {
					tuple[i] = r.values[j]
				} else {
					tuple[i] = c
				}
				null = null || tuple[i].IsNull()
			}
			if null {
				continue
			}
			k := canonicalKey(tuple)
			if _, seen := wanted[k]; !seen {
				wanted[k] = tuple
				order = append(order, k)
			}
		}
		if len(wanted) == 0 {
			continue
		}

		stored, err := e.selectRows(ctx, tx, fk.RefTable, fk.RefColumns, types)
		if err != nil {
			return &TableMergeError{Table: p.spec.Name, Err: err}
		}
		have := make(map[string]bool, len(stored))
		for _, values := range stored {
			have[canonicalKey(values)] = true
		}

		violation := &ForeignKeyOrderViolation{Table: p.spec.Name, Parent: fk.RefTable, Reference: fk.String()}
		for _, k := range order {
			if have[k] {
				continue
			}
			violation.Count++
			if len(violation.Missing) < maxSampleKeys {
				violation.Missing = append(violation.Missing, render(wanted[k]))
			}
		}
		if violation.Count > 0 {
			return violation
		}
	}
	return nil
}

func (e *Engine) insertRows(ctx context.Context, tx *sqlx.Tx, p *prepared, rows []row, runID string, stamp time.Time) error {
	if len(rows) == 0 {
		return nil
	}
	d := e.db.Dialect()
	cols := append(append([]string{}, p.columns...), registry.ColumnIngestRunID, registry.ColumnIngestedAt)

	chunk := e.chunk
	if limit := maxParams / len(cols); chunk > limit {
		chunk = limit
	}

	for start := 0; start < len(rows); start += chunk {
		end := min(start+chunk, len(rows))

		ib := d.Flavor.NewInsertBuilder()
		ib.InsertInto(e.table(p.spec.Name))
		ib.Cols(d.QuoteAll(cols)...)
		for _, r := range rows[start:end] {
			vals := make([]interface{}, 0, len(cols))
			for _, v := range r.values {
				vals = append(vals, v.SQLValue())
			}
			vals = append(vals, d.UUIDParam(runID), stamp)
			ib.Values(vals...)
		}

		query, args := ib.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert rows %d-%d: %w", start+1, end, err)
		}
	}
	return nil
}

// updateRows overwrites the columns at set and restamps lineage for each
// row, matching on the business key. A nil set only restamps.
func (e *Engine) updateRows(ctx context.Context, tx *sqlx.Tx, p *prepared, rows []row, set []int, runID string, stamp time.Time) error {
	d := e.db.Dialect()
	for _, r := range rows {
		ub := d.Flavor.NewUpdateBuilder()
		ub.Update(e.table(p.spec.Name))

		assignments := make([]string, 0, len(set)+2)
		for _, i := range set {
			assignments = append(assignments, ub.Assign(d.Quote(p.columns[i]), r.values[i].SQLValue()))
		}
		assignments = append(assignments,
			ub.Assign(d.Quote(registry.ColumnIngestRunID), d.UUIDParam(runID)),
			ub.Assign(d.Quote(registry.ColumnIngestedAt), stamp),
		)
		ub.Set(assignments...)

		conds := make([]string, len(p.key))
		for i, k := range p.key {
			conds[i] = ub.Equal(d.Quote(k), r.keyVals[i].SQLValue())
		}
		ub.Where(conds...)

		query, args := ub.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("update key (%v): %w", render(r.keyVals), err)
		}
	}
	return nil
}
