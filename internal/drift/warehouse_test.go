// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package drift

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/gamebot/internal/runs"
	"github.com/tomtom215/gamebot/internal/testinfra"
)

func TestCheckerReferencesAndKeys(t *testing.T) {
	ctx := context.Background()
	reg := testinfra.MustRegistry(t, driftCatalog)
	db := testinfra.NewDuckDB(t, reg)

	runID, err := runs.NewTracker(db).StartRun(ctx, runs.RunInfo{Environment: "test"})
	if err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}

	stmts := []string{
		`INSERT INTO bronze.seasons (version_season, season_name, ingest_run_id, ingested_at)
			VALUES ('US01', 'Borneo', CAST(? AS UUID), now())`,
		`INSERT INTO bronze.castaways (version_season, castaway_id, castaway, ingest_run_id, ingested_at)
			VALUES ('US01', 'US0001', 'Sonja', CAST(? AS UUID), now())`,
		`INSERT INTO bronze.votes (version_season, vote_id, castaway_id, ingest_run_id, ingested_at) VALUES
			('US01', 1, 'US0001', CAST(? AS UUID), now()),
			('US01', 2, 'US0099', CAST(? AS UUID), now()),
			('US01', 3, NULL, CAST(? AS UUID), now())`,
	}
	for i, stmt := range stmts {
		args := []any{runID}
		if i == 2 {
			args = []any{runID, runID, runID}
		}
		if _, err := db.X().ExecContext(ctx, stmt, args...); err != nil {
			t.Fatalf("seed statement %d error = %v", i, err)
		}
	}

	checker := NewChecker(db, reg)

	findings, err := checker.CheckReferences(ctx, mustSpec(t, reg, "votes"))
	if err != nil {
		t.Fatalf("CheckReferences() error = %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("CheckReferences() = %d findings, want 1", len(findings))
	}
	f := findings[0]
	if f.Passed || f.Observed != 1 {
		t.Errorf("finding = %+v, want one orphan", f)
	}
	if len(f.Samples) != 1 || f.Samples[0][0] != "US0099" {
		t.Errorf("Samples = %v, want [[US0099]]", f.Samples)
	}
	if f.Detail == "" {
		t.Error("Detail should mention the NULL reference")
	}

	findings, err = checker.CheckReferences(ctx, mustSpec(t, reg, "castaways"))
	if err != nil {
		t.Fatalf("CheckReferences(castaways) error = %v", err)
	}
	if len(findings) != 1 || !findings[0].Passed {
		t.Errorf("castaways references = %+v, want one passing finding", findings)
	}

	spec := mustSpec(t, reg, "castaways")
	keyFindings, err := checker.CheckKeyVersions(ctx, spec, spec.LatestKey())
	if err != nil {
		t.Fatalf("CheckKeyVersions() error = %v", err)
	}
	if len(keyFindings) != 1 || !keyFindings[0].Passed || keyFindings[0].Check != "unique_v1(version_season, castaway_id)" {
		t.Errorf("CheckKeyVersions() = %+v, want passing v1 finding", keyFindings)
	}
}

func TestCheckStaleRuns(t *testing.T) {
	ctx := context.Background()
	db := testinfra.NewDuckDB(t, testinfra.MustRegistry(t, driftCatalog))
	tracker := runs.NewTracker(db)

	now := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	tracker.SetClock(func() time.Time { return now })
	abandoned, err := tracker.StartRun(ctx, runs.RunInfo{Environment: "test"})
	if err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}

	now = now.Add(12 * time.Hour)
	current, err := tracker.StartRun(ctx, runs.RunInfo{Environment: "test"})
	if err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}

	f, err := CheckStaleRuns(ctx, tracker, current, 6*time.Hour)
	if err != nil {
		t.Fatalf("CheckStaleRuns() error = %v", err)
	}
	if f.Passed || f.Observed != 1 || f.Samples[0][0] != abandoned {
		t.Errorf("finding = %+v, want abandoned run %s", f, abandoned)
	}
}
