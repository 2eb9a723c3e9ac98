// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package snapshot

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"

	"github.com/goccy/go-json"
)

// DecodeJSON decodes a JSON export into a table. Both record-oriented
// (an array of objects) and column-oriented (an object of arrays) layouts
// are accepted. Column names are normalized and sorted, since object key
// order is not significant.
func DecodeJSON(name string, data []byte) (*Table, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty payload")
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	switch trimmed[0] {
	case '[':
		var rows []map[string]any
		if err := dec.Decode(&rows); err != nil {
			return nil, fmt.Errorf("decode records: %w", err)
		}
		return tableFromRows(name, rows)
	case '{':
		var cols map[string][]any
		if err := dec.Decode(&cols); err != nil {
			return nil, fmt.Errorf("decode columns: %w", err)
		}
		return tableFromColumns(name, cols)
	default:
		return nil, fmt.Errorf("payload is not a JSON array or object")
	}
}

func tableFromRows(name string, rows []map[string]any) (*Table, error) {
	names := make(map[string]string)
	for _, row := range rows {
		for raw := range row {
			norm := NormalizeColumnName(raw)
			if prev, ok := names[norm]; ok && prev != raw {
				return nil, fmt.Errorf("columns %q and %q normalize to %q", prev, raw, norm)
			}
			names[norm] = raw
		}
	}
	cols := sortedKeys(names)

	t, err := NewTable(name, cols)
	if err != nil {
		return nil, err
	}
	for i, row := range rows {
		values := make([]Value, len(cols))
		for j, c := range cols {
			v, err := fromJSON(row[names[c]])
			if err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", i, c, err)
			}
			values[j] = v
		}
		if err := t.Append(values...); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func tableFromColumns(name string, data map[string][]any) (*Table, error) {
	names := make(map[string]string, len(data))
	length := -1
	for raw, vals := range data {
		norm := NormalizeColumnName(raw)
		if prev, ok := names[norm]; ok {
			return nil, fmt.Errorf("columns %q and %q normalize to %q", prev, raw, norm)
		}
		names[norm] = raw
		if length >= 0 && len(vals) != length {
			return nil, fmt.Errorf("column %s has %d values, want %d", raw, len(vals), length)
		}
		length = len(vals)
	}
	cols := sortedKeys(names)

	t, err := NewTable(name, cols)
	if err != nil {
		return nil, err
	}
	for i := 0; i < length; i++ {
		values := make([]Value, len(cols))
		for j, c := range cols {
			v, err := fromJSON(data[names[c]][i])
			if err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", i, c, err)
			}
			values[j] = v
		}
		if err := t.Append(values...); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// fromJSON maps a decoded JSON scalar to a Value. Nested arrays and objects
// are kept as their compact JSON text.
func fromJSON(raw any) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return Null(), nil
	case string:
		return FromText(x), nil
	case bool:
		return Bool(x), nil
	case json.Number:
		if i, err := strconv.ParseInt(x.String(), 10, 64); err == nil {
			return Int(i), nil
		}
		f, err := x.Float64()
		if err != nil {
			return Null(), fmt.Errorf("invalid number %q", x.String())
		}
		return FromFloat(f), nil
	case float64:
		return FromFloat(x), nil
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return Null(), err
		}
		return Text(string(b)), nil
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
