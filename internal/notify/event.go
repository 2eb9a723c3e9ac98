// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package notify

import (
	"crypto/sha1" //nolint:gosec // G505: event keys are identifiers
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/gamebot/internal/drift"
)

// Event types.
const (
	TypeExtraColumns   = "extra-columns"
	TypeSchemaMismatch = "schema-mismatch"
	TypeNewDataset     = "new-source-dataset"
)

// DefaultLabels tag every schema event.
var DefaultLabels = []string{"schema-drift", "upstream-change"}

// Event describes one schema change worth a human look.
type Event struct {
	Type        string   `json:"type"`
	Dataset     string   `json:"dataset"`
	Table       string   `json:"table,omitempty"`
	Summary     string   `json:"summary"`
	Remediation string   `json:"remediation,omitempty"`
	Labels      []string `json:"labels,omitempty"`
}

// Key identifies the event across runs and processes.
func (e Event) Key() string {
	if e.Type == TypeNewDataset {
		return digest(TypeNewDataset + "|" + e.Dataset)
	}
	return digest(e.Type + "|" + e.Dataset + "|" + e.Table + "|" + e.Summary)
}

// Title is a one-line headline for the event.
func (e Event) Title() string {
	if e.Type == TypeNewDataset {
		return fmt.Sprintf("Review new survivoR dataset '%s'", e.Dataset)
	}
	return fmt.Sprintf("Schema drift detected in %s -> %s", e.Dataset, e.Table)
}

// Body is the drift log entry.
func (e Event) Body() string {
	if e.Type == TypeNewDataset {
		return e.Summary + "\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Dataset: `%s`\n", e.Dataset)
	fmt.Fprintf(&b, "Target table: `%s`\n\n", e.Table)
	fmt.Fprintf(&b, "Summary: %s\n\n", e.Summary)
	fmt.Fprintf(&b, "Recommended action: %s\n", e.Remediation)
	return b.String()
}

// Message is the published payload.
type Message struct {
	Event
	Key        string    `json:"key"`
	Title      string    `json:"title"`
	RunID      string    `json:"run_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewSourceDatasetEvent builds the event raised for an upstream dataset
// the catalog does not declare.
func NewSourceDatasetEvent(dataset, location string) Event {
	return Event{
		Type:    TypeNewDataset,
		Dataset: dataset,
		Summary: fmt.Sprintf("New survivoR dataset detected: `%s` (location: %s). "+
			"Consider declaring it in the registry catalog if you want to ingest it.", dataset, location),
		Labels: DefaultLabels,
	}
}

// DriftEvents converts a table comparison into schema events. Added columns
// produce an extra-columns event; removals and retypes are folded into one
// schema-mismatch event.
func DriftEvents(dataset string, d drift.TableDrift) []Event {
	var events []Event
	if len(d.Added) > 0 {
		names := make([]string, 0, len(d.Added))
		for _, c := range d.Added {
			names = append(names, c.Column)
		}
		events = append(events, Event{
			Type:    TypeExtraColumns,
			Dataset: dataset,
			Table:   d.Table,
			Summary: fmt.Sprintf("Unexpected columns detected: [%s]", strings.Join(names, ", ")),
			Remediation: "Review the new columns. To keep them, declare them in the registry catalog " +
				"and the silver models; otherwise they stay dropped at load.",
			Labels: DefaultLabels,
		})
	}

	var details, actions []string
	if len(d.Removed) > 0 {
		names := make([]string, 0, len(d.Removed))
		for _, c := range d.Removed {
			names = append(names, c.Column)
		}
		details = append(details, fmt.Sprintf("missing columns: [%s]", strings.Join(names, ", ")))
		actions = append(actions, "Verify whether survivoR renamed or removed these columns and update the catalog if the change is expected.")
	}
	if len(d.Retyped) > 0 {
		parts := make([]string, 0, len(d.Retyped))
		for _, c := range d.Retyped {
			parts = append(parts, fmt.Sprintf("%s: %s -> %s", c.Column, c.Declared, c.Observed))
		}
		details = append(details, fmt.Sprintf("type mismatches: [%s]", strings.Join(parts, ", ")))
		actions = append(actions, "Upstream types shifted. Adjust normalization or the declared column type.")
	}
	if len(details) > 0 {
		events = append(events, Event{
			Type:        TypeSchemaMismatch,
			Dataset:     dataset,
			Table:       d.Table,
			Summary:     strings.Join(details, "; "),
			Remediation: strings.Join(actions, " "),
			Labels:      DefaultLabels,
		})
	}
	return events
}

func digest(s string) string {
	sum := sha1.Sum([]byte(s)) //nolint:gosec // G401: see import
	return hex.EncodeToString(sum[:])
}
