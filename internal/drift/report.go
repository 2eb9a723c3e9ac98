// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package drift

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/gamebot/internal/metrics"
	"github.com/tomtom215/gamebot/internal/registry"
)

// Check kinds.
const (
	KindRule       = "rule"
	KindKeyNotNull = "key_not_null"
	KindKeyUnique  = "key_unique"
	KindReference  = "foreign_key"
	KindStaleRun   = "stale_run"
	KindSchema     = "schema_drift"
)

// Finding is the outcome of one check.
type Finding struct {
	Table    string            `json:"table"`
	Kind     string            `json:"kind"`
	Check    string            `json:"check"`
	Severity registry.Severity `json:"severity"`
	Passed   bool              `json:"passed"`
	Observed int               `json:"observed"`
	Expected int               `json:"expected"`
	Detail   string            `json:"detail,omitempty"`
	Samples  [][]string        `json:"samples,omitempty"`
}

// Status renders passed or failed.
func (f Finding) Status() string {
	if f.Passed {
		return "passed"
	}
	return "failed"
}

// Hard reports whether f is a failed hard check.
func (f Finding) Hard() bool {
	return !f.Passed && f.Severity == registry.SeverityHard
}

// Remediation is an automatic adjustment applied to incoming data.
type Remediation struct {
	Type   string `json:"type"`
	Count  int    `json:"count"`
	Detail string `json:"detail,omitempty"`
}

// Remediation types.
const (
	RemediationCoercion     = "value_coercion"
	RemediationDeduplicated = "deduplicated_rows"
	RemediationDropped      = "undeclared_columns_dropped"
	RemediationRenamed      = "columns_renamed"
)

// TableReport is one table's section of a report.
type TableReport struct {
	Table        string         `json:"table"`
	Dataset      string         `json:"dataset"`
	RowCount     int            `json:"row_count"`
	Drift        TableDrift     `json:"drift"`
	Findings     []Finding      `json:"findings"`
	Remediations []Remediation  `json:"remediations,omitempty"`
	NullCounts   map[string]int `json:"null_counts,omitempty"`
}

// Status is failed when any finding in the table failed.
func (t *TableReport) Status() string {
	for _, f := range t.Findings {
		if !f.Passed {
			return "failed"
		}
	}
	return "passed"
}

// Report collects drift and findings for one run. It is safe for
// concurrent use.
type Report struct {
	RunID       string                  `json:"run_id"`
	Environment string                  `json:"environment"`
	GeneratedAt time.Time               `json:"generated_at"`
	Tables      map[string]*TableReport `json:"tables"`

	// Findings not tied to a table, such as stale runs.
	Global []Finding `json:"global,omitempty"`

	mu sync.Mutex
}

// NewReport creates an empty report.
func NewReport(runID, environment string, generatedAt time.Time) *Report {
	return &Report{
		RunID:       runID,
		Environment: environment,
		GeneratedAt: generatedAt.UTC(),
		Tables:      make(map[string]*TableReport),
	}
}

// Table returns the section for name, creating it when absent.
func (r *Report) Table(name, dataset string) *TableReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.Tables[name]
	if !ok {
		t = &TableReport{Table: name}
		r.Tables[name] = t
	}
	if t.Dataset == "" {
		t.Dataset = dataset
	}
	return t
}

// SetDrift records a table's drift.
func (r *Report) SetDrift(d TableDrift) {
	t := r.Table(d.Table, "")
	r.mu.Lock()
	defer r.mu.Unlock()
	t.Drift = d
	for range d.Added {
		metrics.RecordDriftFinding(d.Table, "added")
	}
	for range d.Removed {
		metrics.RecordDriftFinding(d.Table, "removed")
	}
	for range d.Retyped {
		metrics.RecordDriftFinding(d.Table, "retyped")
	}
}

// AddFindings appends findings to their tables. Findings without a table
// go to Global.
func (r *Report) AddFindings(findings ...Finding) {
	for _, f := range findings {
		var t *TableReport
		if f.Table != "" {
			t = r.Table(f.Table, "")
		}
		r.mu.Lock()
		if t == nil {
			r.Global = append(r.Global, f)
		} else {
			t.Findings = append(t.Findings, f)
		}
		r.mu.Unlock()
		if !f.Passed {
			metrics.RecordDriftFinding(f.Table, f.Kind)
		}
	}
}

// AddRemediation records an adjustment; zero counts are ignored.
func (r *Report) AddRemediation(table string, rem Remediation) {
	if rem.Count == 0 {
		return
	}
	t := r.Table(table, "")
	r.mu.Lock()
	defer r.mu.Unlock()
	t.Remediations = append(t.Remediations, rem)
}

// SetStats records a table's incoming row count and per-column NULL counts.
func (r *Report) SetStats(table string, rows int, nullCounts map[string]int) {
	t := r.Table(table, "")
	r.mu.Lock()
	defer r.mu.Unlock()
	t.RowCount = rows
	t.NullCounts = nullCounts
}

// TableNames returns table names sorted.
func (r *Report) TableNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.Tables))
	for name := range r.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns every finding, table findings first in table order.
func (r *Report) All() []Finding {
	var out []Finding
	for _, name := range r.TableNames() {
		r.mu.Lock()
		out = append(out, r.Tables[name].Findings...)
		r.mu.Unlock()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append(out, r.Global...)
}

// HardFailures returns failed hard checks.
func (r *Report) HardFailures() []Finding {
	var out []Finding
	for _, f := range r.All() {
		if f.Hard() {
			out = append(out, f)
		}
	}
	return out
}

// HasHardFailures reports whether any hard check failed.
func (r *Report) HasHardFailures() bool {
	return len(r.HardFailures()) > 0
}

// Err returns a *HardCheckError when hard checks failed.
func (r *Report) Err() error {
	if failed := r.HardFailures(); len(failed) > 0 {
		return &HardCheckError{Findings: failed}
	}
	return nil
}

// Summary counts findings for logs and API responses.
type Summary struct {
	Tables        int `json:"tables"`
	DriftedTables int `json:"drifted_tables"`
	Checks        int `json:"checks"`
	Failed        int `json:"failed"`
	HardFailed    int `json:"hard_failed"`
}

// Summary counts the report's contents.
func (r *Report) Summary() Summary {
	var s Summary
	for _, name := range r.TableNames() {
		r.mu.Lock()
		t := r.Tables[name]
		s.Tables++
		if !t.Drift.Empty() {
			s.DriftedTables++
		}
		r.mu.Unlock()
	}
	for _, f := range r.All() {
		s.Checks++
		if !f.Passed {
			s.Failed++
		}
		if f.Hard() {
			s.HardFailed++
		}
	}
	return s
}

// HardCheckError lists failed hard checks.
type HardCheckError struct {
	Findings []Finding

	// Causes holds typed errors behind individual findings, such as the
	// merge rejection a key uniqueness failure stands for.
	Causes []error
}

func (e *HardCheckError) Unwrap() []error {
	return e.Causes
}

func (e *HardCheckError) Error() string {
	parts := make([]string, len(e.Findings))
	for i, f := range e.Findings {
		parts[i] = fmt.Sprintf("%s: %s (observed %d, expected %d)", f.Table, f.Check, f.Observed, f.Expected)
	}
	return fmt.Sprintf("%d hard validation check(s) failed: %s", len(e.Findings), strings.Join(parts, "; "))
}
