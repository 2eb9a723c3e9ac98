// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package merge

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tomtom215/gamebot/internal/database"
	"github.com/tomtom215/gamebot/internal/logging"
	"github.com/tomtom215/gamebot/internal/metrics"
	"github.com/tomtom215/gamebot/internal/registry"
)

const (
	defaultChunkSize = 500

	// maxParams stays under the smallest bind-parameter limit of the
	// supported drivers.
	maxParams = 30000

	maxSampleKeys = 10
)

// Result summarizes one table's merge.
type Result struct {
	Table     string
	Inserted  int
	Updated   int
	Unchanged int

	// Collapsed counts identical duplicate rows dropped from the batch.
	Collapsed int

	// SampleKeys holds up to ten inserted or updated business keys.
	SampleKeys [][]string

	Duration time.Duration
}

// Rows returns the number of distinct rows the batch carried.
func (r *Result) Rows() int {
	return r.Inserted + r.Updated + r.Unchanged
}

// Engine applies batches to one warehouse schema.
type Engine struct {
	db     *database.DB
	reg    *registry.Registry
	schema string
	strict bool
	chunk  int
	now    func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithSchema targets a schema other than bronze.
func WithSchema(schema string) Option {
	return func(e *Engine) { e.schema = schema }
}

// WithStrict makes MergeAll apply every table in one transaction.
func WithStrict(strict bool) Option {
	return func(e *Engine) { e.strict = strict }
}

// WithChunkSize sets the number of rows per INSERT statement.
func WithChunkSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.chunk = n
		}
	}
}

// WithClock overrides the clock used for ingested_at.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an engine for the tables of reg.
func NewEngine(db *database.DB, reg *registry.Registry, opts ...Option) *Engine {
	e := &Engine{
		db:     db,
		reg:    reg,
		schema: db.Schemas().Bronze,
		chunk:  defaultChunkSize,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MergeTable applies one batch in its own transaction.
func (e *Engine) MergeTable(ctx context.Context, runID string, b Batch) (*Result, error) {
	p, err := prepare(b)
	if err != nil {
		return nil, err
	}
	return e.applyInTx(ctx, runID, p)
}

// MergeAll applies batches in plan order and stops at the first failure.
// The plan is checked against the reference graph and every batch is
// deduplicated before anything is written. Results of tables that
// committed are returned alongside the error.
func (e *Engine) MergeAll(ctx context.Context, runID string, batches []Batch) ([]*Result, error) {
	if err := e.checkPlan(batches); err != nil {
		return nil, err
	}

	plan := make([]*prepared, 0, len(batches))
	for _, b := range batches {
		p, err := prepare(b)
		if err != nil {
			return nil, err
		}
		plan = append(plan, p)
	}

	if e.strict {
		return e.applyStrict(ctx, runID, plan)
	}

	results := make([]*Result, 0, len(plan))
	for _, p := range plan {
		res, err := e.applyInTx(ctx, runID, p)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// checkPlan rejects plans that merge a table before one of its enforced
// parents.
func (e *Engine) checkPlan(batches []Batch) error {
	pos := make(map[string]int, len(batches))
	for i, b := range batches {
		if b.Spec == nil {
			return fmt.Errorf("merge plan entry %d has no table spec", i)
		}
		if e.reg.Rank(b.Spec.Name) < 0 {
			return fmt.Errorf("merge plan names unknown table %s", b.Spec.Name)
		}
		if _, dup := pos[b.Spec.Name]; dup {
			return fmt.Errorf("merge plan names table %s twice", b.Spec.Name)
		}
		pos[b.Spec.Name] = i
	}
	for i, b := range batches {
		for _, fk := range b.Spec.References {
			if !fk.Enforced || fk.RefTable == b.Spec.Name {
				continue
			}
			if j, ok := pos[fk.RefTable]; ok && j > i {
				return &ForeignKeyOrderViolation{Table: b.Spec.Name, Parent: fk.RefTable, Reference: fk.String()}
			}
		}
	}
	return nil
}

func (e *Engine) applyInTx(ctx context.Context, runID string, p *prepared) (*Result, error) {
	tx, err := e.db.BeginTxx(ctx)
	if err != nil {
		return nil, &TableMergeError{Table: p.spec.Name, Err: err}
	}
	res, err := e.apply(ctx, tx, runID, p)
	if err != nil {
		rollback(tx, p.spec.Name)
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, &TableMergeError{Table: p.spec.Name, Err: fmt.Errorf("commit: %w", err)}
	}
	e.observe(res)
	return res, nil
}

func (e *Engine) applyStrict(ctx context.Context, runID string, plan []*prepared) ([]*Result, error) {
	tx, err := e.db.BeginTxx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin merge transaction: %w", err)
	}
	results := make([]*Result, 0, len(plan))
	for _, p := range plan {
		res, err := e.apply(ctx, tx, runID, p)
		if err != nil {
			rollback(tx, p.spec.Name)
			return nil, err
		}
		results = append(results, res)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit merge transaction: %w", err)
	}
	for _, res := range results {
		e.observe(res)
	}
	return results, nil
}

// apply runs one prepared batch inside tx.
func (e *Engine) apply(ctx context.Context, tx *sqlx.Tx, runID string, p *prepared) (*Result, error) {
	start := time.Now()
	res := &Result{Table: p.spec.Name, Collapsed: p.collapsed}

	if err := e.checkReferences(ctx, tx, p); err != nil {
		return nil, err
	}

	existing, err := e.loadExisting(ctx, tx, p)
	if err != nil {
		return nil, &TableMergeError{Table: p.spec.Name, Err: err}
	}

	var inserts, updates, restamps []row
	for _, r := range p.rows {
		current, ok := existing[r.key]
		switch {
		case !ok:
			inserts = append(inserts, r)
		case canonicalKey(current) == canonicalKey(r.values):
			restamps = append(restamps, r)
		default:
			updates = append(updates, r)
		}
	}

	stamp := e.now().UTC()
	if err := e.insertRows(ctx, tx, p, inserts, runID, stamp); err != nil {
		return nil, &TableMergeError{Table: p.spec.Name, Err: err}
	}
	if err := e.updateRows(ctx, tx, p, updates, p.nonKey(), runID, stamp); err != nil {
		return nil, &TableMergeError{Table: p.spec.Name, Err: err}
	}
	if err := e.updateRows(ctx, tx, p, restamps, nil, runID, stamp); err != nil {
		return nil, &TableMergeError{Table: p.spec.Name, Err: err}
	}

	res.Inserted = len(inserts)
	res.Updated = len(updates)
	res.Unchanged = len(restamps)
	for _, group := range [][]row{inserts, updates} {
		for _, r := range group {
			if len(res.SampleKeys) == maxSampleKeys {
				break
			}
			res.SampleKeys = append(res.SampleKeys, render(r.keyVals))
		}
	}
	res.Duration = time.Since(start)
	return res, nil
}

func (e *Engine) observe(res *Result) {
	metrics.RecordMerge(res.Table, res.Inserted, res.Updated, res.Unchanged, res.Duration)
	logging.Info().
		Str("schema", e.schema).
		Str("table", res.Table).
		Int("inserted", res.Inserted).
		Int("updated", res.Updated).
		Int("unchanged", res.Unchanged).
		Int("collapsed", res.Collapsed).
		Dur("duration", res.Duration).
		Msg("Merged table")
	if len(res.SampleKeys) > 0 {
		logging.Debug().Str("table", res.Table).Interface("sample_keys", res.SampleKeys).Msg("Merged keys sample")
	}
}

func rollback(tx *sqlx.Tx, table string) {
	if err := tx.Rollback(); err != nil {
		logging.Warn().Err(err).Str("table", table).Msg("Failed to roll back merge transaction")
	}
}
