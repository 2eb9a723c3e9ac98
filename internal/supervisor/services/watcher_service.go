// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/gamebot/internal/logging"
	"github.com/tomtom215/gamebot/internal/pipeline"
	"github.com/tomtom215/gamebot/internal/snapshot"
)

// Loader starts a load.
type Loader interface {
	RunBronzeLoad(ctx context.Context, environment, targetLayer string) (*pipeline.RunResult, error)
}

// WatcherConfig configures a FreshnessWatcher.
type WatcherConfig struct {
	Interval    time.Duration
	Environment string
	TargetLayer string

	// AutoLoad starts a load when upstream changed.
	AutoLoad bool
}

// FreshnessWatcher periodically compares upstream revisions with the ones
// last loaded and optionally loads the changes.
type FreshnessWatcher struct {
	prober pipeline.Prober
	source snapshot.Source
	store  pipeline.VersionStore
	loader Loader
	cfg    WatcherConfig
	name   string
	log    zerolog.Logger

	// checked receives each completed check; used by tests.
	checked chan []pipeline.DatasetChange
}

// NewFreshnessWatcher creates a watcher. loader may be nil when AutoLoad is
// off.
func NewFreshnessWatcher(prober pipeline.Prober, src snapshot.Source, store pipeline.VersionStore, loader Loader, cfg WatcherConfig) *FreshnessWatcher {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	return &FreshnessWatcher{
		prober: prober,
		source: src,
		store:  store,
		loader: loader,
		cfg:    cfg,
		name:   "freshness-watcher",
		log:    logging.WithComponent("freshness-watcher"),
	}
}

// Serve implements suture.Service. It checks immediately, then every
// interval. Failed checks are logged and retried on the next tick.
func (w *FreshnessWatcher) Serve(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		w.tick(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *FreshnessWatcher) tick(ctx context.Context) {
	changes, err := pipeline.CheckFreshness(ctx, w.prober, w.source, w.store)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Warn().Err(err).Msg("Upstream freshness check failed")
		}
		return
	}
	if w.checked != nil {
		select {
		case w.checked <- changes:
		default:
		}
	}
	if len(changes) == 0 {
		w.log.Debug().Msg("Upstream datasets unchanged")
		return
	}

	datasets := make([]string, len(changes))
	for i, c := range changes {
		datasets[i] = c.Dataset
	}
	w.log.Info().Strs("datasets", datasets).Msg("Upstream datasets changed")

	if !w.cfg.AutoLoad || w.loader == nil {
		return
	}
	result, err := w.loader.RunBronzeLoad(ctx, w.cfg.Environment, w.cfg.TargetLayer)
	switch {
	case errors.Is(err, pipeline.ErrRunInProgress):
		w.log.Info().Msg("Load already running; upstream changes picked up by it or the next check")
	case err != nil:
		w.log.Error().Err(err).Msg("Triggered load failed")
	default:
		w.log.Info().Str("run_id", result.RunID).Str("status", string(result.Status)).Msg("Triggered load finished")
	}
}

// String implements fmt.Stringer for suture's logs.
func (w *FreshnessWatcher) String() string {
	return w.name
}
