// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package silver

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/gamebot/internal/database"
	"github.com/tomtom215/gamebot/internal/drift"
	"github.com/tomtom215/gamebot/internal/keys"
	"github.com/tomtom215/gamebot/internal/merge"
	"github.com/tomtom215/gamebot/internal/registry"
	"github.com/tomtom215/gamebot/internal/runs"
	"github.com/tomtom215/gamebot/internal/snapshot"
	"github.com/tomtom215/gamebot/internal/testinfra"
)

const bronzeCatalog = `
tables:
  - name: castaway_details
    columns:
      - {name: castaway_id, type: TEXT}
      - {name: full_name, type: TEXT}
    business_keys:
      - {version: 1, columns: [castaway_id]}
  - name: season_summary
    columns:
      - {name: version_season, type: TEXT}
      - {name: season_name, type: TEXT}
      - {name: winner_id, type: TEXT}
    business_keys:
      - {version: 1, columns: [version_season]}
    references:
      - {columns: [winner_id], ref_table: castaway_details, ref_columns: [castaway_id], allow_null: true}
  - name: vote_history
    columns:
      - {name: version_season, type: TEXT}
      - {name: episode, type: INTEGER}
      - {name: castaway_id, type: TEXT}
      - {name: vote_id, type: TEXT}
    business_keys:
      - {version: 1, columns: [version_season, episode, castaway_id]}
    references:
      - {columns: [version_season], ref_table: season_summary, ref_columns: [version_season], enforced: true}
      - {columns: [castaway_id], ref_table: castaway_details, ref_columns: [castaway_id], enforced: true}
`

const testModels = `
models:
  - name: dim_castaway
    source: castaway_details
    key: {column: castaway_key, domain: castaway, columns: [castaway_id]}
    attributes: [castaway_id, full_name]
  - name: dim_season
    source: season_summary
    key: {column: season_key, domain: season, columns: [version_season]}
    attributes: [version_season, season_name]
    references:
      - {column: winner_key, target: dim_castaway, columns: [winner_id]}
  - name: fact_vote
    source: vote_history
    key: {column: vote_key, domain: vote, columns: [version_season, episode, castaway_id]}
    attributes: [episode]
    references:
      - {column: season_key, target: dim_season, columns: [version_season]}
      - {column: castaway_key, target: dim_castaway, columns: [castaway_id]}
      - {column: voted_for_key, target: dim_castaway, columns: [vote_id]}
`

var fixedNow = time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

func text(s string) snapshot.Value {
	if s == "" {
		return snapshot.Null()
	}
	return snapshot.Text(s)
}

// seedBronze loads a small bronze dataset and returns the run id used.
func seedBronze(t *testing.T, db *database.DB, reg *registry.Registry) string {
	t.Helper()
	ctx := context.Background()
	runID, err := runs.NewTracker(db).StartRun(ctx, runs.RunInfo{Environment: "test"})
	if err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}
	spec := func(name string) *registry.TableSpec {
		s, _ := reg.Table(name)
		return s
	}
	batches := []merge.Batch{
		{
			Spec: spec("castaway_details"),
			Key:  []string{"castaway_id"},
			Rows: snapshot.MustTable("castaway_details", []string{"castaway_id", "full_name"},
				[]snapshot.Value{text("C1"), text("Richard Hatch")},
				[]snapshot.Value{text("C2"), text("Kelly Wiglesworth")}),
		},
		{
			Spec: spec("season_summary"),
			Key:  []string{"version_season"},
			Rows: snapshot.MustTable("season_summary", []string{"version_season", "season_name", "winner_id"},
				[]snapshot.Value{text("US01"), text("Borneo"), text("C1")},
				[]snapshot.Value{text("US02"), text("The Australian Outback"), text("C9")}),
		},
		{
			Spec: spec("vote_history"),
			Key:  []string{"version_season", "episode", "castaway_id"},
			Rows: snapshot.MustTable("vote_history", []string{"version_season", "episode", "castaway_id", "vote_id"},
				[]snapshot.Value{text("US01"), snapshot.Int(1), text("C1"), text("C2")},
				[]snapshot.Value{text("US01"), snapshot.Int(1), text("C2"), text("")},
				[]snapshot.Value{text("US01"), snapshot.Int(2), text("C1"), text("C7")}),
		},
	}
	if _, err := merge.NewEngine(db, reg).MergeAll(ctx, runID, batches); err != nil {
		t.Fatalf("seed MergeAll() error = %v", err)
	}
	return runID
}

func newBuilder(t *testing.T) (*Builder, *database.DB, string) {
	t.Helper()
	reg := testinfra.MustRegistry(t, bronzeCatalog)
	db := testinfra.NewDuckDB(t, reg)
	runID := seedBronze(t, db, reg)

	models, err := LoadModels([]byte(testModels))
	if err != nil {
		t.Fatalf("LoadModels() error = %v", err)
	}
	b, err := NewBuilder(db, reg, models, merge.WithClock(func() time.Time { return fixedNow }))
	if err != nil {
		t.Fatalf("NewBuilder() error = %v", err)
	}
	if err := b.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	return b, db, runID
}

func findingFor(r *drift.Report, table, check string) (drift.Finding, bool) {
	for _, f := range r.All() {
		if f.Table == table && f.Check == check {
			return f, true
		}
	}
	return drift.Finding{}, false
}

func TestBuild(t *testing.T) {
	ctx := context.Background()
	b, db, runID := newBuilder(t)

	report := drift.NewReport(runID, "test", fixedNow)
	results, err := b.Build(ctx, runID, report)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	inserted := map[string]int{}
	for _, r := range results {
		inserted[r.Table] = r.Inserted
	}
	want := map[string]int{"dim_castaway": 2, "dim_season": 2, "fact_vote": 3}
	for table, n := range want {
		if inserted[table] != n {
			t.Errorf("%s inserted = %d, want %d", table, inserted[table], n)
		}
	}

	type winnerRow struct {
		Season string  `db:"version_season"`
		Key    string  `db:"season_key"`
		Winner *string `db:"winner_key"`
	}
	var seasons []winnerRow
	if err := db.X().Select(&seasons, "SELECT version_season, season_key, winner_key FROM silver.dim_season ORDER BY version_season"); err != nil {
		t.Fatalf("select dim_season error = %v", err)
	}
	if len(seasons) != 2 {
		t.Fatalf("dim_season rows = %d, want 2", len(seasons))
	}
	if seasons[0].Key != string(keys.DeriveKey("season", "US01")) {
		t.Errorf("US01 season_key = %s", seasons[0].Key)
	}
	if seasons[0].Winner == nil || *seasons[0].Winner != string(keys.DeriveKey("castaway", "C1")) {
		t.Errorf("US01 winner_key = %v, want key of C1", seasons[0].Winner)
	}
	if seasons[1].Winner != nil {
		t.Errorf("US02 winner_key = %v, want NULL for dangling C9", *seasons[1].Winner)
	}

	f, ok := findingFor(report, "dim_season", "resolves(winner_key -> dim_castaway)")
	if !ok {
		t.Fatal("missing winner_key reference finding")
	}
	if f.Passed || f.Observed != 1 || f.Severity != registry.SeveritySoft {
		t.Errorf("winner_key finding = %+v, want 1 soft failure", f)
	}
	if len(f.Samples) != 1 || f.Samples[0][0] != "C9" {
		t.Errorf("winner_key samples = %v", f.Samples)
	}

	f, ok = findingFor(report, "fact_vote", "resolves(voted_for_key -> dim_castaway)")
	if !ok || f.Observed != 1 {
		t.Errorf("voted_for_key finding = %+v, want 1 dangling (NULL vote_id is not dangling)", f)
	}
	if f, ok := findingFor(report, "fact_vote", "resolves(castaway_key -> dim_castaway)"); !ok || !f.Passed {
		t.Errorf("castaway_key finding = %+v, want passed", f)
	}
	if report.HasHardFailures() {
		t.Error("silver findings must not be hard")
	}

	var votes []struct {
		Key      string  `db:"vote_key"`
		VotedFor *string `db:"voted_for_key"`
		Episode  int     `db:"episode"`
	}
	if err := db.X().Select(&votes, "SELECT vote_key, voted_for_key, episode FROM silver.fact_vote"); err != nil {
		t.Fatalf("select fact_vote error = %v", err)
	}
	wantVote := string(keys.DeriveKey("vote", "US01", "1", "C1"))
	found := false
	for _, v := range votes {
		if v.Key == wantVote {
			found = true
			if v.VotedFor == nil || *v.VotedFor != string(keys.DeriveKey("castaway", "C2")) {
				t.Errorf("voted_for_key = %v, want key of C2", v.VotedFor)
			}
		}
	}
	if !found {
		t.Errorf("fact_vote has no row keyed %s", wantVote)
	}
}

func TestBuildIdempotent(t *testing.T) {
	ctx := context.Background()
	b, db, runID := newBuilder(t)

	if _, err := b.Build(ctx, runID, nil); err != nil {
		t.Fatalf("first Build() error = %v", err)
	}
	second, err := runs.NewTracker(db).StartRun(ctx, runs.RunInfo{Environment: "test"})
	if err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}
	results, err := b.Build(ctx, second, nil)
	if err != nil {
		t.Fatalf("second Build() error = %v", err)
	}
	for _, r := range results {
		if r.Inserted != 0 || r.Updated != 0 {
			t.Errorf("%s second build = %+v, want all unchanged", r.Table, r)
		}
	}

	var stamped int
	if err := db.X().Get(&stamped,
		"SELECT COUNT(*) FROM silver.dim_castaway WHERE CAST(ingest_run_id AS TEXT) = ?", second); err != nil {
		t.Fatalf("count error = %v", err)
	}
	if stamped != 2 {
		t.Errorf("rows stamped with second run = %d, want 2", stamped)
	}
}

func TestCompileErrors(t *testing.T) {
	reg := testinfra.MustRegistry(t, bronzeCatalog)

	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name: "unknown source",
			doc: `
models:
  - name: dim_tribe
    source: tribe_mapping
    key: {column: tribe_key, domain: tribe, columns: [tribe]}
`,
			wantErr: "unknown source table",
		},
		{
			name: "unknown column",
			doc: `
models:
  - name: dim_castaway
    source: castaway_details
    key: {column: castaway_key, domain: castaway, columns: [castaway_id]}
    attributes: [occupation]
`,
			wantErr: "has no column occupation",
		},
		{
			name: "forward reference",
			doc: `
models:
  - name: dim_season
    source: season_summary
    key: {column: season_key, domain: season, columns: [version_season]}
    references:
      - {column: winner_key, target: dim_castaway, columns: [winner_id]}
  - name: dim_castaway
    source: castaway_details
    key: {column: castaway_key, domain: castaway, columns: [castaway_id]}
`,
			wantErr: "must be declared earlier",
		},
		{
			name: "domain mismatch",
			doc: `
models:
  - name: dim_castaway
    source: castaway_details
    key: {column: castaway_key, domain: castaway, columns: [castaway_id]}
  - name: dim_season
    source: season_summary
    key: {column: season_key, domain: season, columns: [version_season]}
    references:
      - {column: winner_key, target: dim_castaway, domain: person, columns: [winner_id]}
`,
			wantErr: "uses domain person",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			models, err := LoadModels([]byte(tt.doc))
			if err != nil {
				t.Fatalf("LoadModels() error = %v", err)
			}
			_, err = compile(models, reg)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("compile() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultModelsCompile(t *testing.T) {
	bronze, err := registry.Default()
	if err != nil {
		t.Fatalf("registry.Default() error = %v", err)
	}
	models, err := DefaultModels()
	if err != nil {
		t.Fatalf("DefaultModels() error = %v", err)
	}
	specs, err := compile(models, bronze)
	if err != nil {
		t.Fatalf("compile() error = %v", err)
	}
	if len(specs) != 4 {
		t.Errorf("compiled %d models, want 4", len(specs))
	}
	if _, err := registry.New(specs); err != nil {
		t.Errorf("registry.New() error = %v", err)
	}
}
