// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package runs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/gamebot/internal/database"
	"github.com/tomtom215/gamebot/internal/logging"
)

// Status is a run state.
type Status string

// Run states.
const (
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Terminal reports whether s ends a run.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// ErrRunNotFound is returned for unknown run ids.
var ErrRunNotFound = errors.New("ingestion run not found")

// DuplicateFinishError means a run was closed twice.
type DuplicateFinishError struct {
	RunID  string
	Status Status
}

func (e *DuplicateFinishError) Error() string {
	return fmt.Sprintf("ingestion run %s already finished with status %s", e.RunID, e.Status)
}

// RunInfo describes a run at start.
type RunInfo struct {
	Environment     string
	GitBranch       string
	GitCommit       string
	SourceURL       string
	SourceSignature string
}

// Run is a row of ingestion_runs.
type Run struct {
	RunID           string     `db:"run_id" json:"run_id"`
	Environment     string     `db:"environment" json:"environment"`
	GitBranch       *string    `db:"git_branch" json:"git_branch,omitempty"`
	GitCommit       *string    `db:"git_commit" json:"git_commit,omitempty"`
	SourceURL       *string    `db:"source_url" json:"source_url,omitempty"`
	SourceSignature *string    `db:"source_signature" json:"source_signature,omitempty"`
	StartedAt       time.Time  `db:"run_started_at" json:"run_started_at"`
	FinishedAt      *time.Time `db:"run_finished_at" json:"run_finished_at,omitempty"`
	Status          Status     `db:"status" json:"status"`
	Notes           *string    `db:"notes" json:"notes,omitempty"`
}

// Duration is the run's wall time, or the time since start while running.
func (r *Run) Duration(now time.Time) time.Duration {
	if r.FinishedAt != nil {
		return r.FinishedAt.Sub(r.StartedAt)
	}
	return now.Sub(r.StartedAt)
}

// Tracker reads and writes ingestion runs.
type Tracker struct {
	db  *database.DB
	now func() time.Time
}

// NewTracker creates a tracker on db.
func NewTracker(db *database.DB) *Tracker {
	return &Tracker{db: db, now: time.Now}
}

// SetClock overrides the clock used for run timestamps.
func (t *Tracker) SetClock(now func() time.Time) {
	t.now = now
}

func (t *Tracker) table() string {
	return t.db.Dialect().Qualified(t.db.Schemas().Bronze, database.RunsTable)
}

const runColumns = `CAST(run_id AS TEXT) AS run_id, environment, git_branch, git_commit, source_url,
	source_signature, run_started_at, run_finished_at, status, notes`

// StartRun inserts a running row and returns its server-generated id. The
// insert commits before StartRun returns.
func (t *Tracker) StartRun(ctx context.Context, info RunInfo) (string, error) {
	query := t.db.Dialect().Rebind(fmt.Sprintf(`INSERT INTO %s
		(environment, git_branch, git_commit, source_url, source_signature, run_started_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING CAST(run_id AS TEXT)`, t.table()))

	var id string
	err := t.db.X().QueryRowxContext(ctx, query,
		info.Environment,
		nullable(info.GitBranch),
		nullable(info.GitCommit),
		nullable(info.SourceURL),
		nullable(info.SourceSignature),
		t.now().UTC(),
		string(StatusRunning),
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to start ingestion run: %w", err)
	}

	logging.Info().Str("run_id", id).Str("environment", info.Environment).
		Str("git_branch", info.GitBranch).Msg("Ingestion run started")
	return id, nil
}

// FinishRun moves a running run to a terminal status. Empty notes keep
// whatever notes the run already has.
func (t *Tracker) FinishRun(ctx context.Context, runID string, status Status, notes string) error {
	if !status.Terminal() {
		return fmt.Errorf("cannot finish run with non-terminal status %q", status)
	}
	if _, err := uuid.Parse(runID); err != nil {
		return fmt.Errorf("%w: %q", ErrRunNotFound, runID)
	}

	query := t.db.Dialect().Rebind(fmt.Sprintf(`UPDATE %s
		SET status = ?, run_finished_at = ?, notes = COALESCE(?, notes)
		WHERE run_id = CAST(? AS UUID) AND status = ?`, t.table()))

	res, err := t.db.X().ExecContext(ctx, query,
		string(status), t.now().UTC(), nullable(notes), runID, string(StatusRunning))
	if err != nil {
		return fmt.Errorf("failed to finish ingestion run %s: %w", runID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to finish ingestion run %s: %w", runID, err)
	}
	if n == 0 {
		existing, err := t.Get(ctx, runID)
		if err != nil {
			return err
		}
		return &DuplicateFinishError{RunID: runID, Status: existing.Status}
	}

	logging.Info().Str("run_id", runID).Str("status", string(status)).Msg("Ingestion run finished")
	return nil
}

// Guard closes a run as failed when *errp is set or the caller panics. Use
// it with defer immediately after StartRun. A panic is re-raised after the
// run is recorded.
func (t *Tracker) Guard(ctx context.Context, runID string, errp *error) {
	// The run must be closed even when the run's own context was canceled.
	ctx = context.WithoutCancel(ctx)

	if r := recover(); r != nil {
		t.closeFailed(ctx, runID, fmt.Sprintf("panic: %v", r))
		panic(r)
	}
	if errp == nil || *errp == nil {
		return
	}
	t.closeFailed(ctx, runID, (*errp).Error())
}

func (t *Tracker) closeFailed(ctx context.Context, runID, notes string) {
	err := t.FinishRun(ctx, runID, StatusFailed, notes)
	var dup *DuplicateFinishError
	switch {
	case err == nil:
	case errors.As(err, &dup):
		// Already closed by the caller; nothing to record.
	default:
		logging.Error().Err(err).Str("run_id", runID).Msg("Failed to mark ingestion run as failed")
	}
}

// Get returns one run.
func (t *Tracker) Get(ctx context.Context, runID string) (*Run, error) {
	if _, err := uuid.Parse(runID); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrRunNotFound, runID)
	}
	query := t.db.Dialect().Rebind(fmt.Sprintf("SELECT %s FROM %s WHERE run_id = CAST(? AS UUID)", runColumns, t.table()))

	var run Run
	if err := t.db.X().GetContext(ctx, &run, query, runID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, fmt.Errorf("failed to read ingestion run %s: %w", runID, err)
	}
	return &run, nil
}

// Latest returns the most recently started run.
func (t *Tracker) Latest(ctx context.Context) (*Run, error) {
	runs, err := t.List(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrRunNotFound
	}
	return &runs[0], nil
}

// List returns up to limit runs, newest first.
func (t *Tracker) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	query := t.db.Dialect().Rebind(fmt.Sprintf("SELECT %s FROM %s ORDER BY run_started_at DESC LIMIT ?", runColumns, t.table()))

	var out []Run
	if err := t.db.X().SelectContext(ctx, &out, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list ingestion runs: %w", err)
	}
	return out, nil
}

// Stale returns runs still running after olderThan. They indicate a process
// that died without reaching Guard.
func (t *Tracker) Stale(ctx context.Context, olderThan time.Duration) ([]Run, error) {
	cutoff := t.now().UTC().Add(-olderThan)
	query := t.db.Dialect().Rebind(fmt.Sprintf(
		"SELECT %s FROM %s WHERE status = ? AND run_started_at < ? ORDER BY run_started_at", runColumns, t.table()))

	var out []Run
	if err := t.db.X().SelectContext(ctx, &out, query, string(StatusRunning), cutoff); err != nil {
		return nil, fmt.Errorf("failed to query stale runs: %w", err)
	}
	return out, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
