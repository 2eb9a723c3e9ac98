// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package drift

import (
	"fmt"
	"strings"

	"github.com/tomtom215/gamebot/internal/registry"
	"github.com/tomtom215/gamebot/internal/snapshot"
)

const maxSamples = 10

// TableStats describes a conformed incoming table.
type TableStats struct {
	Rows       int
	NullCounts map[string]int

	// IdenticalDuplicates counts rows that repeat an earlier row exactly.
	IdenticalDuplicates int
}

// CheckTable runs the declared rules and the business key checks against a
// conformed incoming table.
func CheckTable(spec *registry.TableSpec, key []string, t *snapshot.Table) ([]Finding, TableStats) {
	stats := TableStats{Rows: t.Len(), NullCounts: make(map[string]int)}
	for _, rec := range t.Records() {
		for i, v := range rec.Values() {
			if v.IsNull() {
				stats.NullCounts[rec.Names()[i]]++
			}
		}
	}

	var findings []Finding
	for _, rule := range spec.Checks {
		findings = append(findings, checkRule(spec.Name, rule, t))
	}

	keyFindings, identical := checkKey(spec.Name, key, t)
	stats.IdenticalDuplicates = identical
	findings = append(findings, keyFindings...)
	return findings, stats
}

func checkRule(table string, rule registry.Rule, t *snapshot.Table) Finding {
	f := Finding{Table: table, Kind: KindRule, Check: rule.Expr, Severity: rule.Severity}
	parsed, err := rule.Parse()
	if err != nil {
		f.Detail = err.Error()
		if f.Severity == "" {
			f.Severity = registry.SeveritySoft
		}
		return f
	}
	f.Severity = parsed.Severity
	f.Expected = parsed.Expected

	if !t.HasColumn(parsed.Column) {
		f.Observed = -1
		f.Detail = fmt.Sprintf("column %s not present", parsed.Column)
		return f
	}

	switch parsed.Kind {
	case registry.RuleMissingCount:
		for _, rec := range t.Records() {
			if v, _ := rec.Get(parsed.Column); v.IsNull() {
				f.Observed++
			}
		}
	case registry.RuleDuplicateCount:
		seen := make(map[string]bool, t.Len())
		for _, rec := range t.Records() {
			v, _ := rec.Get(parsed.Column)
			c := v.Canonical()
			if seen[c] {
				f.Observed++
				if len(f.Samples) < maxSamples {
					f.Samples = append(f.Samples, []string{render(v)})
				}
			}
			seen[c] = true
		}
	}
	f.Passed = f.Observed == f.Expected
	return f
}

// checkKey reports NULL key components and keys repeated with different
// payloads. Exact repeats are counted, not reported; the merge collapses them.
func checkKey(table string, key []string, t *snapshot.Table) ([]Finding, int) {
	label := "(" + strings.Join(key, ", ") + ")"
	notNull := Finding{Table: table, Kind: KindKeyNotNull, Check: "not_null" + label, Severity: registry.SeverityHard}
	unique := Finding{Table: table, Kind: KindKeyUnique, Check: "unique" + label, Severity: registry.SeverityHard}

	for _, k := range key {
		if !t.HasColumn(k) {
			notNull.Observed = -1
			notNull.Detail = fmt.Sprintf("key column %s not present", k)
			unique.Observed = -1
			unique.Detail = notNull.Detail
			return []Finding{notNull, unique}, 0
		}
	}

	payloads := make(map[string]string, t.Len())
	conflicted := make(map[string]bool)
	identical := 0
	for _, rec := range t.Records() {
		tuple := make([]snapshot.Value, len(key))
		null := false
		for i, k := range key {
			tuple[i], _ = rec.Get(k)
			null = null || tuple[i].IsNull()
		}
		if null {
			notNull.Observed++
			if len(notNull.Samples) < maxSamples {
				notNull.Samples = append(notNull.Samples, renderAll(tuple))
			}
			continue
		}

		k := canonical(tuple)
		payload := canonical(rec.Values())
		prev, seen := payloads[k]
		switch {
		case !seen:
			payloads[k] = payload
		case prev == payload:
			identical++
		case !conflicted[k]:
			conflicted[k] = true
			unique.Observed++
			if len(unique.Samples) < maxSamples {
				unique.Samples = append(unique.Samples, renderAll(tuple))
			}
		}
	}
	notNull.Passed = notNull.Observed == 0
	unique.Passed = unique.Observed == 0
	return []Finding{notNull, unique}, identical
}

func canonical(values []snapshot.Value) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = v.Canonical()
	}
	return strings.Join(parts, "\x1f")
}

func render(v snapshot.Value) string {
	if v.IsNull() {
		return "NULL"
	}
	return v.String()
}

func renderAll(values []snapshot.Value) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = render(v)
	}
	return out
}
