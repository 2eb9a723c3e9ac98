// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package drift

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/gamebot/internal/registry"
)

func TestRunLabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0f8fad5b-d9cb-469f-a165-70867728950e", "0F8FAD5B-950E"},
		{"abc-123", "ABC123"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := RunLabel(tt.in); got != tt.want {
			t.Errorf("RunLabel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func sampleReport(runID string) *Report {
	r := NewReport(runID, "dev", time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
	r.Table("castaways", "castaway_details").RowCount = 2
	r.SetDrift(TableDrift{
		Table:   "castaways",
		Added:   []ColumnChange{{Column: "hometown", Observed: "text"}},
		Retyped: []ColumnChange{{Column: "age", Declared: "INTEGER", Observed: "float"}},
	})
	r.AddFindings(
		Finding{Table: "castaways", Kind: KindRule, Check: "missing_count(castaway) = 0",
			Severity: registry.SeveritySoft, Passed: true},
		Finding{Table: "votes", Kind: KindReference, Check: "(castaway_id) -> castaways(castaway_id)",
			Severity: registry.SeveritySoft, Observed: 1, Samples: [][]string{{"US0099"}}},
	)
	r.AddRemediation("castaways", Remediation{Type: RemediationCoercion, Count: 3, Detail: "age"})
	return r
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s error = %v", path, err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read %s error = %v", path, err)
	}
	return rows
}

func TestWriterWrite(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	runID := "0f8fad5b-d9cb-469f-a165-70867728950e"

	folder, err := w.Write(sampleReport(runID))
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if want := "Run 0001 - 0F8FAD5B-950E Validation Files"; filepath.Base(folder) != want {
		t.Errorf("folder = %q, want %q", filepath.Base(folder), want)
	}

	marker, err := os.ReadFile(filepath.Join(folder, RunMarkerFile))
	if err != nil || string(marker) != runID {
		t.Errorf("marker = %q, %v; want %q", marker, err, runID)
	}

	data, err := os.ReadFile(filepath.Join(folder, ReportFile))
	if err != nil {
		t.Fatalf("read report error = %v", err)
	}
	var decoded struct {
		RunID  string                     `json:"run_id"`
		Tables map[string]json.RawMessage `json:"tables"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("report.json is not valid JSON: %v", err)
	}
	if decoded.RunID != runID || len(decoded.Tables) != 2 {
		t.Errorf("report = %+v", decoded)
	}

	rules := readCSV(t, filepath.Join(folder, RuleChecksFile))
	if len(rules) != 2 || rules[1][2] != "missing_count(castaway) = 0" || rules[1][4] != "passed" {
		t.Errorf("rule_checks.csv = %v", rules)
	}
	refs := readCSV(t, filepath.Join(folder, ForeignKeysFile))
	if len(refs) != 2 || refs[1][3] != "failed" || !strings.Contains(refs[1][6], "US0099") {
		t.Errorf("foreign_keys.csv = %v", refs)
	}
	drift := readCSV(t, filepath.Join(folder, DriftFile))
	if len(drift) != 3 || drift[1][1] != "added" || drift[2][1] != "retyped" {
		t.Errorf("drift.csv = %v", drift)
	}
	rems := readCSV(t, filepath.Join(folder, RemediationsFile))
	if len(rems) != 2 || rems[1][2] != "3" {
		t.Errorf("remediations.csv = %v", rems)
	}
}

func TestWriterFolderReuseAndSequence(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	first, err := w.Write(sampleReport("run-aaaaaaaaaaaa"))
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	again, err := w.Write(sampleReport("run-aaaaaaaaaaaa"))
	if err != nil {
		t.Fatalf("Write() again error = %v", err)
	}
	if again != first {
		t.Errorf("second write used %q, want reuse of %q", again, first)
	}

	second, err := w.Write(sampleReport("run-bbbbbbbbbbbb"))
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if !strings.HasPrefix(filepath.Base(second), "Run 0002 - ") {
		t.Errorf("second run folder = %q, want sequence 0002", filepath.Base(second))
	}
}
