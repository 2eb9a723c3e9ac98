// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package snapshot

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/gamebot/internal/registry"
)

var nullTokens = map[string]bool{
	"": true, "none": true, "null": true, "nan": true, "na": true, "n/a": true, "nat": true,
}

var (
	trueTokens  = map[string]bool{"true": true, "t": true, "yes": true, "y": true, "1": true, "1.0": true, "on": true}
	falseTokens = map[string]bool{"false": true, "f": true, "no": true, "n": true, "0": true, "0.0": true, "off": true}
)

// NormalizeColumnName lowercases a column name and replaces spaces and
// hyphens with underscores.
func NormalizeColumnName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(name)
}

// IsNullToken reports whether s spells a missing value.
func IsNullToken(s string) bool {
	return nullTokens[strings.ToLower(strings.TrimSpace(s))]
}

// FromText parses a raw string cell. Null tokens become NULL; everything
// else stays Text.
func FromText(s string) Value {
	s = strings.TrimSpace(s)
	if IsNullToken(s) {
		return Null()
	}
	return Text(s)
}

// maxExactFloat is the largest magnitude at which every integer is exactly
// representable as a float64.
const maxExactFloat = 1 << 53

// FromFloat keeps whole numbers as Int and drops NaN/Inf to NULL.
func FromFloat(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Null()
	}
	if f == math.Trunc(f) && math.Abs(f) <= maxExactFloat {
		return Int(int64(f))
	}
	return Float(f)
}

var dateLayouts = []string{time.DateOnly, "2006/01/02", "01/02/2006"}

var timestampLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05", time.DateOnly}

// Coerce converts v to the declared column type. lost is true when a
// non-null value could not be represented and became NULL.
func Coerce(v Value, t registry.ColumnType) (out Value, lost bool) {
	if v.IsNull() {
		return v, false
	}
	switch t {
	case registry.TypeInteger, registry.TypeBigint:
		out = coerceInt(v, t == registry.TypeInteger)
	case registry.TypeDouble:
		out = coerceFloat(v)
	case registry.TypeBoolean:
		out = coerceBool(v)
	case registry.TypeDate:
		out = coerceTime(v, dateLayouts, true)
	case registry.TypeTimestamp:
		out = coerceTime(v, timestampLayouts, false)
	default:
		out = FromText(v.String())
	}
	return out, out.IsNull()
}

func coerceInt(v Value, int32Range bool) Value {
	var n int64
	switch v.kind {
	case KindInt:
		n = v.i
	case KindFloat:
		if v.f != math.Trunc(v.f) || math.Abs(v.f) > maxExactFloat {
			return Null()
		}
		n = int64(v.f)
	case KindBool:
		if v.b {
			n = 1
		}
	case KindText:
		if i, err := strconv.ParseInt(v.s, 10, 64); err == nil {
			n = i
		} else if f, err := strconv.ParseFloat(v.s, 64); err == nil && f == math.Trunc(f) && math.Abs(f) <= maxExactFloat {
			n = int64(f)
		} else {
			return Null()
		}
	default:
		return Null()
	}
	if int32Range && (n > math.MaxInt32 || n < math.MinInt32) {
		return Null()
	}
	return Int(n)
}

func coerceFloat(v Value) Value {
	switch v.kind {
	case KindInt:
		return Float(float64(v.i))
	case KindFloat:
		return v
	case KindText:
		f, err := strconv.ParseFloat(v.s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return Null()
		}
		return Float(f)
	default:
		return Null()
	}
}

func coerceBool(v Value) Value {
	switch v.kind {
	case KindBool:
		return v
	case KindInt:
		if v.i == 0 || v.i == 1 {
			return Bool(v.i == 1)
		}
	case KindFloat:
		if v.f == 0 || v.f == 1 {
			return Bool(v.f == 1)
		}
	case KindText:
		s := strings.ToLower(strings.TrimSpace(v.s))
		switch {
		case trueTokens[s]:
			return Bool(true)
		case falseTokens[s]:
			return Bool(false)
		}
	}
	return Null()
}

func coerceTime(v Value, layouts []string, dateOnly bool) Value {
	var parsed time.Time
	switch v.kind {
	case KindDate, KindTimestamp:
		parsed = v.t
	case KindText:
		ok := false
		for _, layout := range layouts {
			if ts, err := time.Parse(layout, v.s); err == nil {
				parsed, ok = ts, true
				break
			}
		}
		if !ok {
			return Null()
		}
	default:
		return Null()
	}
	if dateOnly {
		return Date(parsed)
	}
	return Timestamp(parsed)
}

// Conformance describes how an incoming table was fitted to its declaration.
type Conformance struct {
	// Undeclared columns were present upstream and dropped.
	Undeclared []string

	// Missing declared columns were absent upstream.
	Missing []string

	// Renamed maps upstream names to declared names that were applied.
	Renamed map[string]string

	// Coerced counts, per column, values that became NULL during coercion.
	Coerced map[string]int
}

// CoercedTotal sums Coerced.
func (c Conformance) CoercedTotal() int {
	n := 0
	for _, v := range c.Coerced {
		n += v
	}
	return n
}

// RenameColumns applies spec renames to a table's column names.
func RenameColumns(spec *registry.TableSpec, t *Table) (*Table, map[string]string) {
	if len(spec.Renames) == 0 {
		return t, nil
	}
	applied := make(map[string]string)
	cols := make([]string, len(t.Columns()))
	for i, c := range t.Columns() {
		cols[i] = c
		if to, ok := spec.Renames[c]; ok && !t.HasColumn(to) {
			cols[i] = to
			applied[c] = to
		}
	}
	if len(applied) == 0 {
		return t, nil
	}
	h, err := newHeader(cols)
	if err != nil {
		return t, nil
	}
	out := &Table{Name: t.Name, h: h, records: make([]Record, len(t.records))}
	for i, r := range t.records {
		out.records[i] = Record{h: h, values: r.values}
	}
	return out, applied
}

// Conform renames, projects and coerces t onto spec's declared columns. The
// result carries only declared columns present upstream, in declared order.
func Conform(spec *registry.TableSpec, t *Table) (*Table, Conformance) {
	t, renamed := RenameColumns(spec, t)
	c := Conformance{Renamed: renamed, Coerced: make(map[string]int)}

	for _, name := range t.Columns() {
		if _, ok := spec.Column(name); !ok {
			c.Undeclared = append(c.Undeclared, name)
		}
	}
	sort.Strings(c.Undeclared)

	var cols []string
	var types []registry.ColumnType
	var src []int
	for _, col := range spec.Columns {
		i, ok := t.h.index[col.Name]
		if !ok {
			c.Missing = append(c.Missing, col.Name)
			continue
		}
		cols = append(cols, col.Name)
		types = append(types, col.Type)
		src = append(src, i)
	}

	h, _ := newHeader(cols)
	out := &Table{Name: spec.Name, h: h, records: make([]Record, 0, t.Len())}
	for _, r := range t.records {
		values := make([]Value, len(cols))
		for j, i := range src {
			v, lost := Coerce(r.values[i], types[j])
			if lost {
				c.Coerced[cols[j]]++
			}
			values[j] = v
		}
		out.records = append(out.records, Record{h: h, values: values})
	}
	return out, c
}
