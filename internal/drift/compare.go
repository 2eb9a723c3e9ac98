// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package drift

import (
	"sort"
	"strings"

	"github.com/tomtom215/gamebot/internal/registry"
	"github.com/tomtom215/gamebot/internal/snapshot"
)

// ColumnChange is one structural difference.
type ColumnChange struct {
	Column   string `json:"column"`
	Declared string `json:"declared,omitempty"`
	Observed string `json:"observed,omitempty"`
}

// TableDrift lists the structural differences between an incoming table and
// its declaration.
type TableDrift struct {
	Table   string         `json:"table"`
	Added   []ColumnChange `json:"added,omitempty"`
	Removed []ColumnChange `json:"removed,omitempty"`
	Retyped []ColumnChange `json:"retyped,omitempty"`
}

// Empty reports whether no drift was found.
func (d TableDrift) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Retyped) == 0
}

// Compare reports columns the incoming table adds or lacks relative to spec,
// and declared columns whose observed values cannot be stored as declared.
// Declared renames are applied first. Compare runs on the raw table, before
// coercion.
func Compare(spec *registry.TableSpec, incoming *snapshot.Table) TableDrift {
	incoming, _ = snapshot.RenameColumns(spec, incoming)
	d := TableDrift{Table: spec.Name}
	observed := incoming.ObservedKinds()

	for _, name := range incoming.Columns() {
		if _, ok := spec.Column(name); !ok {
			d.Added = append(d.Added, ColumnChange{Column: name, Observed: kindList(observed[name])})
		}
	}
	sort.Slice(d.Added, func(i, j int) bool { return d.Added[i].Column < d.Added[j].Column })

	for _, col := range spec.Columns {
		if !incoming.HasColumn(col.Name) {
			d.Removed = append(d.Removed, ColumnChange{Column: col.Name, Declared: string(col.Type)})
			continue
		}
		for _, k := range observed[col.Name] {
			if !compatible(k, col.Type) {
				d.Retyped = append(d.Retyped, ColumnChange{
					Column:   col.Name,
					Declared: string(col.Type),
					Observed: kindList(observed[col.Name]),
				})
				break
			}
		}
	}
	return d
}

// compatible reports whether values of kind k are stored in t without
// reinterpretation. Text for temporal columns is the upstream encoding.
func compatible(k snapshot.Kind, t registry.ColumnType) bool {
	switch t {
	case registry.TypeText:
		return true
	case registry.TypeInteger, registry.TypeBigint:
		return k == snapshot.KindInt
	case registry.TypeDouble:
		return k == snapshot.KindInt || k == snapshot.KindFloat
	case registry.TypeBoolean:
		return k == snapshot.KindBool
	case registry.TypeDate, registry.TypeTimestamp:
		return k == snapshot.KindText || k == snapshot.KindDate || k == snapshot.KindTimestamp
	default:
		return false
	}
}

func kindList(kinds []snapshot.Kind) string {
	if len(kinds) == 0 {
		return "null"
	}
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return strings.Join(names, "|")
}
