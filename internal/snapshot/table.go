// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package snapshot

import (
	"fmt"
	"sort"
)

// header is the column layout shared by a table and its records.
type header struct {
	names []string
	index map[string]int
}

func newHeader(names []string) (*header, error) {
	h := &header{names: append([]string(nil), names...), index: make(map[string]int, len(names))}
	for i, n := range names {
		if _, dup := h.index[n]; dup {
			return nil, fmt.Errorf("duplicate column %q", n)
		}
		h.index[n] = i
	}
	return h, nil
}

// Record is an ordered set of named values.
type Record struct {
	h      *header
	values []Value
}

// Get returns the named value. Absent columns report false.
func (r Record) Get(name string) (Value, bool) {
	i, ok := r.h.index[name]
	if !ok {
		return Value{}, false
	}
	return r.values[i], true
}

// Names returns the column names in order.
func (r Record) Names() []string { return r.h.names }

// Values returns the values in column order. Callers must not modify it.
func (r Record) Values() []Value { return r.values }

// Len returns the number of fields.
func (r Record) Len() int { return len(r.values) }

// Table is a named, homogeneous set of records.
type Table struct {
	Name    string
	h       *header
	records []Record
}

// NewTable creates an empty table with the given columns.
func NewTable(name string, columns []string) (*Table, error) {
	h, err := newHeader(columns)
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", name, err)
	}
	return &Table{Name: name, h: h}, nil
}

// MustTable is NewTable for literals known to be valid.
func MustTable(name string, columns []string, rows ...[]Value) *Table {
	t, err := NewTable(name, columns)
	if err != nil {
		panic(err)
	}
	for _, row := range rows {
		if err := t.Append(row...); err != nil {
			panic(err)
		}
	}
	return t
}

// Append adds a record. The number of values must match the columns.
func (t *Table) Append(values ...Value) error {
	if len(values) != len(t.h.names) {
		return fmt.Errorf("table %s: record has %d values, want %d", t.Name, len(values), len(t.h.names))
	}
	t.records = append(t.records, Record{h: t.h, values: append([]Value(nil), values...)})
	return nil
}

// Columns returns column names in order.
func (t *Table) Columns() []string { return t.h.names }

// HasColumn reports whether the table carries name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.h.index[name]
	return ok
}

// Records returns the records. Callers must not modify them.
func (t *Table) Records() []Record { return t.records }

// Len returns the number of records.
func (t *Table) Len() int { return len(t.records) }

// ObservedKinds returns, per column, the set of non-null kinds seen.
func (t *Table) ObservedKinds() map[string][]Kind {
	seen := make(map[string]map[Kind]bool, len(t.h.names))
	for _, r := range t.records {
		for i, v := range r.values {
			if v.IsNull() {
				continue
			}
			name := t.h.names[i]
			if seen[name] == nil {
				seen[name] = make(map[Kind]bool)
			}
			seen[name][v.kind] = true
		}
	}
	out := make(map[string][]Kind, len(seen))
	for name, kinds := range seen {
		list := make([]Kind, 0, len(kinds))
		for k := range kinds {
			list = append(list, k)
		}
		sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
		out[name] = list
	}
	return out
}
