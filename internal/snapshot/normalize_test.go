// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package snapshot

import (
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/gamebot/internal/registry"
)

func TestNormalizeColumnName(t *testing.T) {
	tests := map[string]string{
		"Castaway ID":     "castaway_id",
		" version-season": "version_season",
		"order":           "order",
	}
	for in, want := range tests {
		if got := NormalizeColumnName(in); got != want {
			t.Errorf("NormalizeColumnName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCoerce(t *testing.T) {
	date := time.Date(2000, 5, 31, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		in       Value
		typ      registry.ColumnType
		want     Value
		wantLost bool
	}{
		{"null stays null", Null(), registry.TypeInteger, Null(), false},
		{"text int", Text("42"), registry.TypeInteger, Int(42), false},
		{"text whole float", Text("3.0"), registry.TypeInteger, Int(3), false},
		{"fractional int lost", Float(2.5), registry.TypeInteger, Null(), true},
		{"int32 overflow lost", Int(1 << 40), registry.TypeInteger, Null(), true},
		{"bigint keeps range", Int(1 << 40), registry.TypeBigint, Int(1 << 40), false},
		{"garbage int lost", Text("abc"), registry.TypeInteger, Null(), true},
		{"int to double", Int(7), registry.TypeDouble, Float(7), false},
		{"text double", Text("1.25"), registry.TypeDouble, Float(1.25), false},
		{"yes is true", Text("Yes"), registry.TypeBoolean, Bool(true), false},
		{"off is false", Text("off"), registry.TypeBoolean, Bool(false), false},
		{"one is true", Int(1), registry.TypeBoolean, Bool(true), false},
		{"two is not bool", Int(2), registry.TypeBoolean, Null(), true},
		{"maybe is not bool", Text("maybe"), registry.TypeBoolean, Null(), true},
		{"iso date", Text("2000-05-31"), registry.TypeDate, Date(date), false},
		{"timestamp to date", Timestamp(date.Add(5 * time.Hour)), registry.TypeDate, Date(date), false},
		{"bad date lost", Text("31st May"), registry.TypeDate, Null(), true},
		{"int to text", Int(12), registry.TypeText, Text("12"), false},
		{"text trimmed", Text("  Boston Rob "), registry.TypeText, Text("Boston Rob"), false},
		{"sql timestamp", Text("2000-05-31 20:00:00"), registry.TypeTimestamp, Timestamp(date.Add(20 * time.Hour)), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, lost := Coerce(tt.in, tt.typ)
			if !got.Equal(tt.want) {
				t.Errorf("Coerce() = %s(%v), want %s(%v)", got.Kind(), got, tt.want.Kind(), tt.want)
			}
			if lost != tt.wantLost {
				t.Errorf("Coerce() lost = %v, want %v", lost, tt.wantLost)
			}
		})
	}
}

func TestFromText(t *testing.T) {
	for _, tok := range []string{"", "  ", "NA", "n/a", "None", "NULL", "nan"} {
		if v := FromText(tok); !v.IsNull() {
			t.Errorf("FromText(%q) = %v, want NULL", tok, v)
		}
	}
	if v := FromText("Sandra"); v.Kind() != KindText || v.String() != "Sandra" {
		t.Errorf("FromText(Sandra) = %v", v)
	}
}

func TestValueCanonical(t *testing.T) {
	if Int(1).Canonical() == Text("1").Canonical() {
		t.Error("Int(1) and Text(1) must differ canonically")
	}
	if Null().Canonical() == Text("").Canonical() {
		t.Error("NULL and empty text must differ canonically")
	}
	if Float(1.5).String() != "1.5" {
		t.Errorf("Float(1.5).String() = %s", Float(1.5).String())
	}
	if FromFloat(4.0).Kind() != KindInt {
		t.Error("whole floats should decode as Int")
	}
}

const castawaysCatalog = `
tables:
  - name: castaways
    renames: {order: castaways_order}
    columns:
      - {name: castaway_id, type: TEXT}
      - {name: version_season, type: TEXT}
      - {name: castaways_order, type: INTEGER}
      - {name: jury, type: BOOLEAN}
      - {name: day, type: INTEGER}
    business_keys:
      - {version: 1, columns: [castaway_id, version_season]}
`

func TestConform(t *testing.T) {
	reg, err := registry.Load([]byte(castawaysCatalog))
	if err != nil {
		t.Fatalf("registry.Load() error = %v", err)
	}
	spec, _ := reg.Table("castaways")

	in := MustTable("castaways",
		[]string{"castaway_id", "jury", "order", "version_season", "tribe_colour"},
		[]Value{Text("US0001"), Text("TRUE"), Int(1), Text("US01"), Text("orange")},
		[]Value{Text("US0002"), Text("unknown"), Int(2), Text("US01"), Text("green")},
	)

	out, c := Conform(spec, in)

	if got := strings.Join(out.Columns(), ","); got != "castaway_id,version_season,castaways_order,jury" {
		t.Errorf("Columns() = %s", got)
	}
	if c.Renamed["order"] != "castaways_order" {
		t.Errorf("Renamed = %v", c.Renamed)
	}
	if len(c.Undeclared) != 1 || c.Undeclared[0] != "tribe_colour" {
		t.Errorf("Undeclared = %v", c.Undeclared)
	}
	if len(c.Missing) != 1 || c.Missing[0] != "day" {
		t.Errorf("Missing = %v", c.Missing)
	}
	if c.Coerced["jury"] != 1 || c.CoercedTotal() != 1 {
		t.Errorf("Coerced = %v", c.Coerced)
	}

	v, _ := out.Records()[0].Get("jury")
	if !v.Equal(Bool(true)) {
		t.Errorf("jury = %v, want true", v)
	}
	if out.Name != "castaways" || out.Len() != 2 {
		t.Errorf("out = %s with %d records", out.Name, out.Len())
	}

	// The input table is untouched.
	if !in.HasColumn("order") {
		t.Error("Conform must not modify its input")
	}
}

func TestObservedKinds(t *testing.T) {
	tbl := MustTable("t", []string{"a", "b"},
		[]Value{Int(1), Null()},
		[]Value{Text("x"), Null()},
	)
	kinds := tbl.ObservedKinds()
	if len(kinds["a"]) != 2 || kinds["a"][0] != KindText || kinds["a"][1] != KindInt {
		t.Errorf("kinds[a] = %v", kinds["a"])
	}
	if _, ok := kinds["b"]; ok {
		t.Error("all-null columns should have no observed kinds")
	}
}
