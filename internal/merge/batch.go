// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package merge

import (
	"fmt"
	"strings"

	"github.com/tomtom215/gamebot/internal/registry"
	"github.com/tomtom215/gamebot/internal/snapshot"
)

// Batch is one table's incoming rows.
type Batch struct {
	Spec *registry.TableSpec

	// Key is the active business key; the table's primary key.
	Key []string

	// Rows carries a subset of the declared columns, including every key
	// column. Declared columns the batch lacks are left untouched on update
	// and NULL on insert.
	Rows *snapshot.Table
}

// keySep joins canonical values into one comparable key.
const keySep = "\x1f"

// row is a deduplicated incoming record, coerced to declared types.
type row struct {
	key     string
	keyVals []snapshot.Value
	values  []snapshot.Value
}

// prepared is a batch ready to apply.
type prepared struct {
	spec      *registry.TableSpec
	key       []string
	columns   []string
	types     []registry.ColumnType
	keyIdx    []int
	rows      []row
	collapsed int
}

// prepare validates and deduplicates a batch. It never touches the database.
func prepare(b Batch) (*prepared, error) {
	if b.Spec == nil || b.Rows == nil {
		return nil, fmt.Errorf("merge batch is missing its table spec or rows")
	}
	table := b.Spec.Name
	if len(b.Key) == 0 {
		return nil, &TableMergeError{Table: table, Err: fmt.Errorf("no business key")}
	}

	p := &prepared{spec: b.Spec, key: b.Key, columns: b.Rows.Columns()}
	pos := make(map[string]int, len(p.columns))
	for i, c := range p.columns {
		col, ok := b.Spec.Column(c)
		if !ok {
			return nil, &TableMergeError{Table: table, Err: fmt.Errorf("column %s is not declared", c)}
		}
		p.types = append(p.types, col.Type)
		pos[c] = i
	}
	for _, k := range b.Key {
		i, ok := pos[k]
		if !ok {
			return nil, &TableMergeError{Table: table, Err: fmt.Errorf("batch lacks business key column %s", k)}
		}
		p.keyIdx = append(p.keyIdx, i)
	}

	seen := make(map[string]int, b.Rows.Len())
	payloads := make([]string, 0, b.Rows.Len())
	for n, rec := range b.Rows.Records() {
		values := make([]snapshot.Value, len(p.columns))
		for i, v := range rec.Values() {
			c, lost := snapshot.Coerce(v, p.types[i])
			if lost {
				return nil, &TableMergeError{Table: table,
					Err: fmt.Errorf("row %d column %s: %q is not %s", n+1, p.columns[i], v.String(), p.types[i])}
			}
			values[i] = c
		}

		keyVals := make([]snapshot.Value, len(p.keyIdx))
		for i, idx := range p.keyIdx {
			if values[idx].IsNull() {
				return nil, &TableMergeError{Table: table,
					Err: fmt.Errorf("row %d has NULL business key column %s", n+1, b.Key[i])}
			}
			keyVals[i] = values[idx]
		}
		key := canonicalKey(keyVals)
		payload := canonicalKey(values)

		if first, dup := seen[key]; dup {
			if payloads[first] == payload {
				p.collapsed++
				continue
			}
			return nil, &DuplicateKeyInBatchError{
				Table:  table,
				Key:    render(keyVals),
				First:  render(p.rows[first].values),
				Second: render(values),
			}
		}
		seen[key] = len(p.rows)
		payloads = append(payloads, payload)
		p.rows = append(p.rows, row{key: key, keyVals: keyVals, values: values})
	}
	return p, nil
}

// Validate runs a batch's merge-time checks without touching the
// warehouse. It returns the error MergeTable would.
func Validate(b Batch) error {
	_, err := prepare(b)
	return err
}

// nonKey returns the batch columns outside the business key.
func (p *prepared) nonKey() []int {
	inKey := make(map[int]bool, len(p.keyIdx))
	for _, i := range p.keyIdx {
		inKey[i] = true
	}
	idx := make([]int, 0, len(p.columns)-len(p.keyIdx))
	for i := range p.columns {
		if !inKey[i] {
			idx = append(idx, i)
		}
	}
	return idx
}

func canonicalKey(values []snapshot.Value) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = v.Canonical()
	}
	return strings.Join(parts, keySep)
}

func render(values []snapshot.Value) []string {
	out := make([]string, len(values))
	for i, v := range values {
		if v.IsNull() {
			out[i] = "NULL"
		} else {
			out[i] = v.String()
		}
	}
	return out
}
