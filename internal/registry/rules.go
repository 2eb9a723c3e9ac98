// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package registry

import (
	"fmt"
	"regexp"
	"strconv"
)

// Severity decides whether a failed check fails the run.
type Severity string

// Check severities.
const (
	SeveritySoft Severity = "soft"
	SeverityHard Severity = "hard"
)

// RuleKind is a supported rule function.
type RuleKind string

// Rule functions.
const (
	RuleMissingCount   RuleKind = "missing_count"
	RuleDuplicateCount RuleKind = "duplicate_count"
)

var rulePattern = regexp.MustCompile(`^\s*(missing_count|duplicate_count)\(\s*([a-z_][a-z0-9_]*)\s*\)\s*=\s*(\d+)\s*$`)

// Rule is a declared data-quality check such as "missing_count(col) = 0".
type Rule struct {
	Expr     string   `yaml:"rule" validate:"required"`
	Severity Severity `yaml:"severity" validate:"omitempty,oneof=soft hard"`
}

// ParsedRule is a decoded Rule.
type ParsedRule struct {
	Kind     RuleKind
	Column   string
	Expected int
	Severity Severity
	Expr     string
}

// Parse decodes the rule expression.
func (r Rule) Parse() (ParsedRule, error) {
	m := rulePattern.FindStringSubmatch(r.Expr)
	if m == nil {
		return ParsedRule{}, fmt.Errorf("unsupported rule %q", r.Expr)
	}
	expected, err := strconv.Atoi(m[3])
	if err != nil {
		return ParsedRule{}, fmt.Errorf("rule %q: %w", r.Expr, err)
	}
	sev := r.Severity
	if sev == "" {
		sev = SeveritySoft
	}
	return ParsedRule{
		Kind:     RuleKind(m[1]),
		Column:   m[2],
		Expected: expected,
		Severity: sev,
		Expr:     r.Expr,
	}, nil
}
