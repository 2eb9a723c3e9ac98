// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package registry

import (
	"errors"
	"strings"
	"testing"
)

func TestDefaultCatalogLoads(t *testing.T) {
	reg, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}

	order := reg.Order()
	if len(order) != len(reg.Tables()) {
		t.Fatalf("Order() has %d tables, catalog has %d", len(order), len(reg.Tables()))
	}

	// Every enforced parent precedes its child.
	for _, spec := range reg.Tables() {
		for _, parent := range spec.EnforcedParents() {
			if reg.Rank(parent) >= reg.Rank(spec.Name) {
				t.Errorf("%s (rank %d) should precede %s (rank %d)",
					parent, reg.Rank(parent), spec.Name, reg.Rank(spec.Name))
			}
		}
	}
}

func TestDefaultCatalogRenames(t *testing.T) {
	reg, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	tests := map[string]string{
		"castaways":    "castaways_order",
		"boot_mapping": "boot_mapping_order",
		"vote_history": "vote_history_order",
	}
	for table, want := range tests {
		spec, ok := reg.Table(table)
		if !ok {
			t.Fatalf("table %s missing", table)
		}
		if got := spec.Renames["order"]; got != want {
			t.Errorf("%s rename order -> %q, want %q", table, got, want)
		}
	}
}

func TestActiveKeyVersions(t *testing.T) {
	reg, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	spec, _ := reg.Table("advantage_movement")

	latest, err := spec.ActiveKey(nil)
	if err != nil {
		t.Fatalf("ActiveKey(nil) error = %v", err)
	}
	if latest.Version != 2 || len(latest.Columns) != 4 {
		t.Errorf("latest key = %+v, want version 2 with 4 columns", latest)
	}

	pinned, err := spec.ActiveKey(map[string]int{"advantage_movement": 1})
	if err != nil {
		t.Fatalf("ActiveKey(pinned) error = %v", err)
	}
	if pinned.Version != 1 || strings.Join(pinned.Columns, ",") != "version_season,advantage_id,sequence_id" {
		t.Errorf("pinned key = %+v", pinned)
	}

	if _, err := spec.ActiveKey(map[string]int{"advantage_movement": 9}); err == nil {
		t.Error("ActiveKey with undeclared version should fail")
	}
}

const reversedCatalog = `
tables:
  - name: child
    columns:
      - {name: id, type: text}
      - {name: parent_id, type: text}
    business_keys:
      - {version: 1, columns: [id]}
    references:
      - {columns: [parent_id], ref_table: parent, ref_columns: [id], enforced: true}
  - name: loose
    columns:
      - {name: id, type: text}
    business_keys:
      - {version: 1, columns: [id]}
  - name: parent
    columns:
      - {name: id, type: text}
    business_keys:
      - {version: 1, columns: [id]}
`

func TestOrderParentsFirst(t *testing.T) {
	reg, err := Load([]byte(reversedCatalog))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	got := strings.Join(reg.Order(), ",")
	if got != "loose,parent,child" {
		t.Errorf("Order() = %s, want loose,parent,child", got)
	}

	sub, err := reg.OrderOf([]string{"child", "parent"})
	if err != nil {
		t.Fatalf("OrderOf() error = %v", err)
	}
	if strings.Join(sub, ",") != "parent,child" {
		t.Errorf("OrderOf() = %v", sub)
	}

	if _, err := reg.OrderOf([]string{"nope"}); err == nil {
		t.Error("OrderOf with unknown table should fail")
	}

	spec, _ := reg.Table("child")
	if col, ok := spec.Column("id"); !ok || col.Type != TypeText {
		t.Errorf("column types should be normalized to upper case, got %+v", col)
	}
}

func TestLoadRejectsCycle(t *testing.T) {
	doc := `
tables:
  - name: a
    columns: [{name: id, type: TEXT}, {name: b_id, type: TEXT}]
    business_keys: [{version: 1, columns: [id]}]
    references: [{columns: [b_id], ref_table: b, ref_columns: [id], enforced: true}]
  - name: b
    columns: [{name: id, type: TEXT}, {name: a_id, type: TEXT}]
    business_keys: [{version: 1, columns: [id]}]
    references: [{columns: [a_id], ref_table: a, ref_columns: [id], enforced: true}]
`
	_, err := Load([]byte(doc))
	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("Load() error = %v, want *CycleError", err)
	}
	if len(cycleErr.Tables) != 2 {
		t.Errorf("cycle tables = %v", cycleErr.Tables)
	}
}

func TestLoadRejectsInvalidCatalogs(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name: "key column not declared",
			doc: `
tables:
  - name: t
    columns: [{name: id, type: TEXT}]
    business_keys: [{version: 1, columns: [other]}]
`,
			wantErr: "business key column other",
		},
		{
			name: "reserved lineage column",
			doc: `
tables:
  - name: t
    columns: [{name: id, type: TEXT}, {name: ingest_run_id, type: TEXT}]
    business_keys: [{version: 1, columns: [id]}]
`,
			wantErr: "reserved",
		},
		{
			name: "unknown type",
			doc: `
tables:
  - name: t
    columns: [{name: id, type: BLOB}]
    business_keys: [{version: 1, columns: [id]}]
`,
			wantErr: "supported column type",
		},
		{
			name: "enforced reference to non-key",
			doc: `
tables:
  - name: p
    columns: [{name: id, type: TEXT}, {name: label, type: TEXT}]
    business_keys: [{version: 1, columns: [id]}]
  - name: c
    columns: [{name: id, type: TEXT}, {name: p_label, type: TEXT}]
    business_keys: [{version: 1, columns: [id]}]
    references: [{columns: [p_label], ref_table: p, ref_columns: [label], enforced: true}]
`,
			wantErr: "must target a business key",
		},
		{
			name: "bad rule",
			doc: `
tables:
  - name: t
    columns: [{name: id, type: TEXT}]
    business_keys: [{version: 1, columns: [id]}]
    checks: [{rule: "max(id) < 3"}]
`,
			wantErr: "unsupported rule",
		},
		{
			name: "duplicate key version",
			doc: `
tables:
  - name: t
    columns: [{name: id, type: TEXT}]
    business_keys: [{version: 1, columns: [id]}, {version: 1, columns: [id]}]
`,
			wantErr: "declared twice",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.doc))
			if err == nil {
				t.Fatalf("Load() succeeded, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestRuleParse(t *testing.T) {
	tests := []struct {
		expr     string
		severity Severity
		want     ParsedRule
		wantErr  bool
	}{
		{expr: "missing_count(castaway_id) = 0", want: ParsedRule{Kind: RuleMissingCount, Column: "castaway_id", Expected: 0, Severity: SeveritySoft}},
		{expr: " duplicate_count( version_season )=2 ", severity: SeverityHard, want: ParsedRule{Kind: RuleDuplicateCount, Column: "version_season", Expected: 2, Severity: SeverityHard}},
		{expr: "row_count > 0", wantErr: true},
		{expr: "missing_count(Bad) = 0", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Rule{Expr: tt.expr, Severity: tt.severity}.Parse()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got.Kind != tt.want.Kind || got.Column != tt.want.Column ||
				got.Expected != tt.want.Expected || got.Severity != tt.want.Severity {
				t.Errorf("Parse() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
