// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package drift

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/goccy/go-json"

	"github.com/tomtom215/gamebot/internal/logging"
)

// Report artifact names inside a run folder.
const (
	RunMarkerFile    = ".run_id"
	ReportFile       = "report.json"
	RuleChecksFile   = "rule_checks.csv"
	ForeignKeysFile  = "foreign_keys.csv"
	DriftFile        = "drift.csv"
	RemediationsFile = "remediations.csv"
)

var runFolderPattern = regexp.MustCompile(`^Run\s+(\d+)\b`)

// Writer writes reports into numbered run folders under a base directory.
type Writer struct {
	dir string
}

// NewWriter creates a writer rooted at dir.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// RunLabel shortens a run id to its first eight and last four alphanumeric
// characters, upper-cased.
func RunLabel(runID string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, runID)
	if len(cleaned) >= 12 {
		cleaned = cleaned[:8] + "-" + cleaned[len(cleaned)-4:]
	}
	return strings.ToUpper(cleaned)
}

// Write stores r and returns its folder. A folder already marked with the
// run id is reused; otherwise the next sequence number is allocated.
func (w *Writer) Write(r *Report) (string, error) {
	folder, err := w.runFolder(r.RunID)
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(filepath.Join(folder, ReportFile), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	sections := []struct {
		name   string
		header []string
		rows   [][]string
	}{
		{RuleChecksFile, []string{"table", "kind", "check", "severity", "status", "observed", "expected", "detail", "samples"}, ruleRows(r)},
		{ForeignKeysFile, []string{"table", "reference", "severity", "status", "orphans", "detail", "samples"}, referenceRows(r)},
		{DriftFile, []string{"table", "change", "column", "declared", "observed"}, driftRows(r)},
		{RemediationsFile, []string{"table", "type", "count", "detail"}, remediationRows(r)},
	}
	for _, s := range sections {
		if err := writeCSV(filepath.Join(folder, s.name), s.header, s.rows); err != nil {
			return "", err
		}
	}

	logging.Info().Str("run_id", r.RunID).Str("path", folder).Msg("Validation report written")
	return folder, nil
}

func (w *Writer) runFolder(runID string) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return "", fmt.Errorf("failed to list report directory: %w", err)
	}

	maxSeq := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(w.dir, e.Name())
		if marker, err := os.ReadFile(filepath.Join(path, RunMarkerFile)); err == nil && strings.TrimSpace(string(marker)) == runID {
			return path, nil
		}
		if m := runFolderPattern.FindStringSubmatch(e.Name()); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > maxSeq {
				maxSeq = n
			}
		}
	}

	base := fmt.Sprintf("Run %04d - %s Validation Files", maxSeq+1, RunLabel(runID))
	path := filepath.Join(w.dir, base)
	for n := 2; ; n++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			break
		}
		path = filepath.Join(w.dir, fmt.Sprintf("%s (%d)", base, n))
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", fmt.Errorf("failed to create run folder: %w", err)
	}
	if err := os.WriteFile(filepath.Join(path, RunMarkerFile), []byte(runID), 0o644); err != nil {
		return "", fmt.Errorf("failed to write run marker: %w", err)
	}
	return path, nil
}

func ruleRows(r *Report) [][]string {
	var rows [][]string
	for _, f := range r.All() {
		if f.Kind == KindReference {
			continue
		}
		rows = append(rows, []string{
			f.Table, f.Kind, f.Check, string(f.Severity), f.Status(),
			strconv.Itoa(f.Observed), strconv.Itoa(f.Expected), f.Detail, joinSamples(f.Samples),
		})
	}
	return rows
}

func referenceRows(r *Report) [][]string {
	var rows [][]string
	for _, f := range r.All() {
		if f.Kind != KindReference {
			continue
		}
		rows = append(rows, []string{
			f.Table, f.Check, string(f.Severity), f.Status(),
			strconv.Itoa(f.Observed), f.Detail, joinSamples(f.Samples),
		})
	}
	return rows
}

func driftRows(r *Report) [][]string {
	var rows [][]string
	for _, name := range r.TableNames() {
		d := r.Tables[name].Drift
		for _, group := range []struct {
			change  string
			columns []ColumnChange
		}{{"added", d.Added}, {"removed", d.Removed}, {"retyped", d.Retyped}} {
			for _, c := range group.columns {
				rows = append(rows, []string{name, group.change, c.Column, c.Declared, c.Observed})
			}
		}
	}
	return rows
}

func remediationRows(r *Report) [][]string {
	var rows [][]string
	for _, name := range r.TableNames() {
		for _, rem := range r.Tables[name].Remediations {
			rows = append(rows, []string{name, rem.Type, strconv.Itoa(rem.Count), rem.Detail})
		}
	}
	return rows
}

func joinSamples(samples [][]string) string {
	parts := make([]string, len(samples))
	for i, s := range samples {
		parts[i] = "(" + strings.Join(s, ", ") + ")"
	}
	return strings.Join(parts, " ")
}

func writeCSV(path string, header []string, rows [][]string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Base(path), err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}
