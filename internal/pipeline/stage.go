// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/gamebot/internal/config"
	"github.com/tomtom215/gamebot/internal/database"
	"github.com/tomtom215/gamebot/internal/drift"
	"github.com/tomtom215/gamebot/internal/features"
	"github.com/tomtom215/gamebot/internal/logging"
	"github.com/tomtom215/gamebot/internal/merge"
	"github.com/tomtom215/gamebot/internal/metrics"
	"github.com/tomtom215/gamebot/internal/notify"
	"github.com/tomtom215/gamebot/internal/registry"
	"github.com/tomtom215/gamebot/internal/runs"
	"github.com/tomtom215/gamebot/internal/silver"
	"github.com/tomtom215/gamebot/internal/snapshot"
)

// ErrRunInProgress is returned when a load is already running on the stage.
var ErrRunInProgress = errors.New("a load is already in progress")

// Target layers. Each layer includes the ones before it.
const (
	LayerBronze = "bronze"
	LayerSilver = "silver"
	LayerGold   = "gold"
)

// Prober resolves the current upstream revision of each dataset without
// downloading payloads that are already cached.
type Prober interface {
	Probe(ctx context.Context, src snapshot.Source) (map[string]snapshot.DatasetVersion, error)
}

// Fetcher retrieves upstream snapshots.
type Fetcher interface {
	Prober
	Fetch(ctx context.Context, src snapshot.Source) (*snapshot.Snapshot, error)
}

// Notifier receives schema events. Delivery failures never fail a load.
type Notifier interface {
	SchemaEvent(ctx context.Context, ev notify.Event) (bool, error)
	NewSourceDataset(ctx context.Context, dataset, location string) (bool, error)
}

// TableCounts is one table's merge outcome.
type TableCounts struct {
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Collapsed int `json:"collapsed,omitempty"`
}

// RunResult describes a finished load.
type RunResult struct {
	RunID            string                 `json:"run_id"`
	Status           runs.Status            `json:"status"`
	Environment      string                 `json:"environment"`
	TargetLayer      string                 `json:"target_layer"`
	Signature        string                 `json:"source_signature"`
	RowCountsByTable map[string]TableCounts `json:"row_counts_by_table"`
	SilverCounts     map[string]TableCounts `json:"silver_counts,omitempty"`
	Features         []*features.Snapshot   `json:"features,omitempty"`
	Summary          drift.Summary          `json:"summary"`
	ReportPath       string                 `json:"report_path,omitempty"`
	StartedAt        time.Time              `json:"started_at"`
	FinishedAt       time.Time              `json:"finished_at"`
	Error            string                 `json:"error,omitempty"`

	DriftReport *drift.Report `json:"-"`
	Err         error         `json:"-"`
}

// Option configures a Stage.
type Option func(*Stage)

// WithNotifier sends schema events to n.
func WithNotifier(n Notifier) Option {
	return func(s *Stage) { s.notifier = n }
}

// WithSilver enables the silver layer.
func WithSilver(b *silver.Builder) Option {
	return func(s *Stage) { s.silver = b }
}

// WithFeatures enables the gold layer.
func WithFeatures(snap *features.Snapshotter, sets []features.FeatureSet) Option {
	return func(s *Stage) {
		s.snapshotter = snap
		s.featureSets = sets
	}
}

// WithGitInfo skips git detection.
func WithGitInfo(info GitInfo) Option {
	return func(s *Stage) { s.git = &info }
}

// WithSource overrides the upstream source derived from configuration.
func WithSource(src snapshot.Source) Option {
	return func(s *Stage) { s.source = src }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Stage) { s.now = now }
}

// Stage runs loads against one warehouse.
type Stage struct {
	cfg     *config.Config
	db      *database.DB
	reg     *registry.Registry
	fetcher Fetcher
	source  snapshot.Source
	tracker *runs.Tracker
	engine  *merge.Engine
	checker *drift.Checker
	writer  *drift.Writer

	notifier    Notifier
	silver      *silver.Builder
	snapshotter *features.Snapshotter
	featureSets []features.FeatureSet
	git         *GitInfo
	now         func() time.Time

	mu      sync.Mutex
	running bool
}

// NewStage wires a stage over db and the bronze catalog reg.
func NewStage(cfg *config.Config, db *database.DB, reg *registry.Registry, fetcher Fetcher, opts ...Option) *Stage {
	s := &Stage{
		cfg:     cfg,
		db:      db,
		reg:     reg,
		fetcher: fetcher,
		source:  snapshot.SourceFromConfig(&cfg.Source),
		tracker: runs.NewTracker(db),
		checker: drift.NewChecker(db, reg),
		writer:  drift.NewWriter(cfg.Pipeline.ReportDir),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.tracker.SetClock(s.now)
	s.engine = merge.NewEngine(db, reg,
		merge.WithStrict(cfg.Pipeline.StrictRun),
		merge.WithClock(s.now),
	)
	return s
}

// Tracker returns the stage's run tracker.
func (s *Stage) Tracker() *runs.Tracker {
	return s.tracker
}

// Fetcher returns the stage's upstream fetcher.
func (s *Stage) Fetcher() Fetcher {
	return s.fetcher
}

// Source returns the upstream source loads read from.
func (s *Stage) Source() snapshot.Source {
	return s.source
}

// Running reports whether a load is in flight.
func (s *Stage) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Stage) acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrRunInProgress
	}
	s.running = true
	metrics.TrackRunInProgress(true)
	return nil
}

func (s *Stage) release() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	metrics.TrackRunInProgress(false)
}

// RunBronzeLoad loads the upstream snapshot into bronze and, for higher
// target layers, rebuilds silver and gold from it. An empty environment
// uses the configured one; an empty layer means bronze.
//
// Failures before the run is opened (gate, schema, fetch) return no result.
// Afterwards the result is always returned, with Err set when the run
// failed.
func (s *Stage) RunBronzeLoad(ctx context.Context, environment, targetLayer string) (result *RunResult, err error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.release()

	if environment == "" {
		environment = s.cfg.Pipeline.Environment
	}
	if targetLayer == "" {
		targetLayer = LayerBronze
	}
	if err := s.checkTarget(environment, targetLayer); err != nil {
		return nil, err
	}

	git := s.gitInfo(ctx)
	if err := CheckBranch(environment, git.Branch, s.cfg.Pipeline.AllowedProdBranches, s.cfg.Pipeline.ContainerDeployment); err != nil {
		return nil, err
	}

	pins := s.cfg.Pipeline.BusinessKeyVersions
	if err := s.db.EnsureSchema(ctx, s.reg, pins); err != nil {
		return nil, err
	}
	active, err := s.db.ActiveKeys(ctx, s.reg, pins)
	if err != nil {
		return nil, err
	}

	snap, err := s.fetcher.Fetch(ctx, s.source)
	if err != nil {
		return nil, err
	}

	runID, err := s.tracker.StartRun(ctx, runs.RunInfo{
		Environment:     environment,
		GitBranch:       git.Branch,
		GitCommit:       git.Commit,
		SourceURL:       snap.Source().Location(),
		SourceSignature: snap.Signature(),
	})
	if err != nil {
		return nil, err
	}
	defer s.tracker.Guard(ctx, runID, &err)

	ctx = logging.ContextWithRunID(ctx, runID)
	started := s.now()
	report := drift.NewReport(runID, environment, started)
	result = &RunResult{
		RunID:            runID,
		Status:           runs.StatusRunning,
		Environment:      environment,
		TargetLayer:      targetLayer,
		Signature:        snap.Signature(),
		RowCountsByTable: make(map[string]TableCounts),
		StartedAt:        started,
		DriftReport:      report,
	}
	logging.Ctx(ctx).Info().
		Str("environment", environment).
		Str("target_layer", targetLayer).
		Str("signature", snap.Signature()).
		Msg("Load started")

	batches := s.prepare(ctx, snap, active, report)
	s.announceNewDatasets(ctx, snap)

	if report.HasHardFailures() {
		return s.finish(ctx, result, report, rejectionError(report, batches))
	}

	merged, err := s.engine.MergeAll(ctx, runID, batches)
	if err != nil {
		return s.finish(ctx, result, report, err)
	}
	for _, res := range merged {
		result.RowCountsByTable[res.Table] = countsOf(res)
	}

	if err := s.checkWarehouse(ctx, batches, active, report); err != nil {
		return s.finish(ctx, result, report, err)
	}

	if targetLayer != LayerBronze {
		if err := s.buildSilver(ctx, result, report); err != nil {
			return s.finish(ctx, result, report, err)
		}
	}
	if targetLayer == LayerGold && !report.HasHardFailures() {
		snaps, err := s.snapshotter.SnapshotAll(ctx, s.featureSets, runID)
		result.Features = snaps
		if err != nil {
			return s.finish(ctx, result, report, err)
		}
	}

	if !report.HasHardFailures() {
		s.recordVersions(ctx, snap, runID)
	}
	return s.finish(ctx, result, report, report.Err())
}

func (s *Stage) checkTarget(environment, layer string) error {
	switch environment {
	case config.EnvDev, config.EnvProd:
	default:
		return fmt.Errorf("unknown environment %q", environment)
	}
	switch layer {
	case LayerBronze:
	case LayerSilver:
		if s.silver == nil {
			return fmt.Errorf("target layer %s is not configured", layer)
		}
	case LayerGold:
		if s.silver == nil || s.snapshotter == nil {
			return fmt.Errorf("target layer %s is not configured", layer)
		}
	default:
		return fmt.Errorf("unknown target layer %q", layer)
	}
	return nil
}

func (s *Stage) gitInfo(ctx context.Context) GitInfo {
	if s.git != nil {
		return *s.git
	}
	return DetectGit(ctx, &s.cfg.Pipeline)
}

// prepare conforms each fetched dataset to its declared table and records
// drift, remediations and batch-level checks in report.
func (s *Stage) prepare(ctx context.Context, snap *snapshot.Snapshot, active map[string]registry.BusinessKeyVersion, report *drift.Report) []merge.Batch {
	var batches []merge.Batch
	for _, name := range s.reg.Order() {
		spec, _ := s.reg.Table(name)
		incoming, ok := snap.Table(spec.Dataset)
		if !ok {
			continue
		}
		report.Table(spec.Name, spec.Dataset)

		d := drift.Compare(spec, incoming)
		report.SetDrift(d)
		s.notifyDrift(ctx, spec.Dataset, d)

		conformed, c := snapshot.Conform(spec, incoming)
		report.AddRemediation(spec.Name, drift.Remediation{
			Type:   drift.RemediationDropped,
			Count:  len(c.Undeclared),
			Detail: strings.Join(c.Undeclared, ", "),
		})
		report.AddRemediation(spec.Name, drift.Remediation{
			Type:   drift.RemediationRenamed,
			Count:  len(c.Renamed),
			Detail: renderRenames(c.Renamed),
		})
		report.AddRemediation(spec.Name, drift.Remediation{
			Type:   drift.RemediationCoercion,
			Count:  c.CoercedTotal(),
			Detail: renderCounts(c.Coerced),
		})

		key := active[spec.Name].Columns
		findings, stats := drift.CheckTable(spec, key, conformed)
		report.AddFindings(findings...)
		report.SetStats(spec.Name, stats.Rows, stats.NullCounts)
		report.AddRemediation(spec.Name, drift.Remediation{
			Type:   drift.RemediationDeduplicated,
			Count:  stats.IdenticalDuplicates,
			Detail: "identical duplicate rows collapsed",
		})

		batches = append(batches, merge.Batch{Spec: spec, Key: key, Rows: conformed})
	}
	return batches
}

// rejectionError is the report's hard check error, carrying the
// *merge.DuplicateKeyInBatchError of every table whose key uniqueness
// check failed.
func rejectionError(report *drift.Report, batches []merge.Batch) error {
	err := report.Err()
	var hard *drift.HardCheckError
	if !errors.As(err, &hard) {
		return err
	}
	conflicted := make(map[string]bool)
	for _, f := range hard.Findings {
		if f.Kind == drift.KindKeyUnique {
			conflicted[f.Table] = true
		}
	}
	for _, b := range batches {
		if !conflicted[b.Spec.Name] {
			continue
		}
		var dup *merge.DuplicateKeyInBatchError
		if errors.As(merge.Validate(b), &dup) {
			hard.Causes = append(hard.Causes, dup)
		}
	}
	return hard
}

func (s *Stage) notifyDrift(ctx context.Context, dataset string, d drift.TableDrift) {
	if s.notifier == nil {
		return
	}
	for _, ev := range notify.DriftEvents(dataset, d) {
		if _, err := s.notifier.SchemaEvent(ctx, ev); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("dataset", dataset).Str("event", ev.Type).
				Msg("Schema event not delivered")
		}
	}
}

// announceNewDatasets reports fetched datasets no declared table loads.
func (s *Stage) announceNewDatasets(ctx context.Context, snap *snapshot.Snapshot) {
	for _, ds := range snap.Datasets() {
		if _, ok := s.reg.ByDataset(ds); ok {
			continue
		}
		logging.Ctx(ctx).Warn().Str("dataset", ds).Msg("Upstream dataset has no declared table")
		if s.notifier == nil {
			continue
		}
		if _, err := s.notifier.NewSourceDataset(ctx, ds, snap.Source().Location()); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("dataset", ds).Msg("Schema event not delivered")
		}
	}
}

// checkWarehouse runs the checks that need the merged data.
func (s *Stage) checkWarehouse(ctx context.Context, batches []merge.Batch, active map[string]registry.BusinessKeyVersion, report *drift.Report) error {
	for _, b := range batches {
		findings, err := s.checker.CheckReferences(ctx, b.Spec)
		if err != nil {
			return fmt.Errorf("reference checks for %s: %w", b.Spec.Name, err)
		}
		report.AddFindings(findings...)

		if len(b.Spec.BusinessKeys) > 1 {
			findings, err := s.checker.CheckKeyVersions(ctx, b.Spec, active[b.Spec.Name])
			if err != nil {
				return fmt.Errorf("key version checks for %s: %w", b.Spec.Name, err)
			}
			report.AddFindings(findings...)
		}
	}

	stale, err := drift.CheckStaleRuns(ctx, s.tracker, report.RunID, s.cfg.Pipeline.StaleRunAfter)
	if err != nil {
		return err
	}
	report.AddFindings(stale)
	return nil
}

func (s *Stage) buildSilver(ctx context.Context, result *RunResult, report *drift.Report) error {
	if err := s.silver.EnsureSchema(ctx); err != nil {
		return err
	}
	built, err := s.silver.Build(ctx, result.RunID, report)
	if err != nil {
		return err
	}
	result.SilverCounts = make(map[string]TableCounts, len(built))
	for _, res := range built {
		result.SilverCounts[res.Table] = countsOf(res)
	}
	return nil
}

// recordVersions stores the ingested upstream revisions. Failures are
// logged; the warehouse data is already committed.
func (s *Stage) recordVersions(ctx context.Context, snap *snapshot.Snapshot, runID string) {
	for _, ds := range snap.Datasets() {
		v, ok := snap.Version(ds)
		if !ok {
			continue
		}
		rec := database.DatasetVersion{
			Dataset:    ds,
			Signature:  optional(v.Signature),
			CommitSHA:  optional(v.Commit.SHA),
			CommitURL:  optional(v.Commit.URL),
			SourceKind: optional(v.Origin),
			UpdatedAt:  s.now(),
		}
		if !v.Commit.CommittedAt.IsZero() {
			at := v.Commit.CommittedAt
			rec.CommittedAt = &at
		}
		if err := s.db.UpsertDatasetVersion(ctx, rec, runID); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("dataset", ds).Msg("Failed to record dataset version")
		}
	}
}

// finish writes the report and closes the run. cause decides the status.
func (s *Stage) finish(ctx context.Context, result *RunResult, report *drift.Report, cause error) (*RunResult, error) {
	if path, err := s.writer.Write(report); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Failed to write validation report")
	} else {
		result.ReportPath = path
	}

	result.Summary = report.Summary()
	status := runs.StatusSuccess
	notes := summaryNotes(result.Summary)
	if cause != nil {
		status = runs.StatusFailed
		notes = cause.Error()
	}
	if err := s.tracker.FinishRun(ctx, result.RunID, status, notes); err != nil && cause == nil {
		cause = err
		status = runs.StatusFailed
	}

	result.Status = status
	result.FinishedAt = s.now()
	result.Err = cause
	if cause != nil {
		result.Error = cause.Error()
	}
	metrics.RecordRun(string(status), result.FinishedAt.Sub(result.StartedAt))

	event := logging.Ctx(ctx).Info()
	if cause != nil {
		event = logging.Ctx(ctx).Error().Err(cause)
	}
	event.Str("status", string(status)).
		Int("tables", len(result.RowCountsByTable)).
		Int("failed_checks", result.Summary.Failed).
		Str("report", result.ReportPath).
		Msg("Load finished")
	return result, cause
}

func countsOf(res *merge.Result) TableCounts {
	return TableCounts{
		Inserted:  res.Inserted,
		Updated:   res.Updated,
		Unchanged: res.Unchanged,
		Collapsed: res.Collapsed,
	}
}

func summaryNotes(sum drift.Summary) string {
	return fmt.Sprintf("%d tables, %d drifted, %d of %d checks failed",
		sum.Tables, sum.DriftedTables, sum.Failed, sum.Checks)
}

func renderRenames(renamed map[string]string) string {
	parts := make([]string, 0, len(renamed))
	for from, to := range renamed {
		parts = append(parts, from+" -> "+to)
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}

func renderCounts(counts map[string]int) string {
	parts := make([]string, 0, len(counts))
	for col, n := range counts {
		if n > 0 {
			parts = append(parts, fmt.Sprintf("%s: %d", col, n))
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
