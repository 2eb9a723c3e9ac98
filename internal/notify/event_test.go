// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package notify

import (
	"strings"
	"testing"

	"github.com/tomtom215/gamebot/internal/drift"
)

func TestEventKey(t *testing.T) {
	base := Event{Type: TypeExtraColumns, Dataset: "castaways", Table: "castaways", Summary: "x"}

	if got, want := base.Key(), digest("extra-columns|castaways|castaways|x"); got != want {
		t.Errorf("Key() = %s, want %s", got, want)
	}
	if len(base.Key()) != 40 {
		t.Errorf("Key() length = %d, want 40", len(base.Key()))
	}

	other := base
	other.Remediation = "something else"
	if other.Key() != base.Key() {
		t.Error("remediation text should not change the key")
	}
	other.Summary = "y"
	if other.Key() == base.Key() {
		t.Error("summary should change the key")
	}

	a := NewSourceDatasetEvent("survivor_auction", "data/survivor_auction.rda")
	b := NewSourceDatasetEvent("survivor_auction", "dev/json/survivor_auction.json")
	if a.Key() != b.Key() {
		t.Error("new dataset key should depend on the dataset only")
	}
	if a.Key() != digest("new-source-dataset|survivor_auction") {
		t.Errorf("new dataset Key() = %s", a.Key())
	}
}

func TestEventBody(t *testing.T) {
	ev := Event{Type: TypeSchemaMismatch, Dataset: "vote_history", Table: "vote_history",
		Summary: "missing columns: [vote]", Remediation: "Check upstream."}
	want := "Dataset: `vote_history`\nTarget table: `vote_history`\n\nSummary: missing columns: [vote]\n\nRecommended action: Check upstream.\n"
	if got := ev.Body(); got != want {
		t.Errorf("Body() = %q, want %q", got, want)
	}
	if got := ev.Title(); got != "Schema drift detected in vote_history -> vote_history" {
		t.Errorf("Title() = %q", got)
	}
}

func TestDriftEvents(t *testing.T) {
	t.Run("no drift", func(t *testing.T) {
		if got := DriftEvents("castaways", drift.TableDrift{Table: "castaways"}); len(got) != 0 {
			t.Errorf("DriftEvents() = %v, want none", got)
		}
	})

	t.Run("added and mismatched", func(t *testing.T) {
		d := drift.TableDrift{
			Table:   "castaways",
			Added:   []drift.ColumnChange{{Column: "fan_favourite"}, {Column: "poc"}},
			Removed: []drift.ColumnChange{{Column: "age", Declared: "integer"}},
			Retyped: []drift.ColumnChange{{Column: "day", Declared: "integer", Observed: "text"}},
		}
		got := DriftEvents("castaways", d)
		if len(got) != 2 {
			t.Fatalf("DriftEvents() returned %d events, want 2", len(got))
		}
		if got[0].Type != TypeExtraColumns || got[0].Summary != "Unexpected columns detected: [fan_favourite, poc]" {
			t.Errorf("extra columns event = %+v", got[0])
		}
		if got[1].Type != TypeSchemaMismatch {
			t.Errorf("second event type = %s, want %s", got[1].Type, TypeSchemaMismatch)
		}
		if !strings.Contains(got[1].Summary, "missing columns: [age]") ||
			!strings.Contains(got[1].Summary, "day: integer -> text") {
			t.Errorf("mismatch summary = %q", got[1].Summary)
		}
		for _, ev := range got {
			if ev.Table != "castaways" || ev.Dataset != "castaways" {
				t.Errorf("event target = %s/%s", ev.Dataset, ev.Table)
			}
		}
	})
}
