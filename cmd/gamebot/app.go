// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/gamebot/internal/config"
	"github.com/tomtom215/gamebot/internal/database"
	"github.com/tomtom215/gamebot/internal/features"
	"github.com/tomtom215/gamebot/internal/logging"
	"github.com/tomtom215/gamebot/internal/notify"
	"github.com/tomtom215/gamebot/internal/pipeline"
	"github.com/tomtom215/gamebot/internal/registry"
	"github.com/tomtom215/gamebot/internal/silver"
	"github.com/tomtom215/gamebot/internal/snapshot"
)

// app holds the components shared by the subcommands. Fields a command does
// not need stay nil.
type app struct {
	cfg     *config.Config
	db      *database.DB
	reg     *registry.Registry
	badger  *badger.DB
	fetcher *snapshot.Fetcher
	stage   *pipeline.Stage

	closers []func() error
}

// openWarehouse opens the warehouse and the table catalog.
func openWarehouse(cfg *config.Config) (*app, error) {
	reg, err := registry.Default()
	if err != nil {
		return nil, fmt.Errorf("load table catalog: %w", err)
	}
	db, err := database.Open(&cfg.Warehouse)
	if err != nil {
		return nil, fmt.Errorf("open warehouse: %w", err)
	}
	a := &app{cfg: cfg, db: db, reg: reg}
	a.closers = append(a.closers, db.Close)
	logging.Info().Str("driver", cfg.Warehouse.Driver).Msg("Warehouse opened")
	return a, nil
}

// openFetcher adds the upstream fetcher with its payload cache.
func (a *app) openFetcher() error {
	var cache snapshot.Cache = snapshot.NewMemoryCache()
	if path := a.cfg.Cache.BadgerPath; path != "" {
		bdb, err := snapshot.OpenBadger(path)
		if err != nil {
			return err
		}
		a.badger = bdb
		a.closers = append(a.closers, bdb.Close)
		cache = snapshot.NewBadgerCache(bdb, 0)
		logging.Debug().Str("path", path).Msg("Persistent snapshot cache enabled")
	}
	a.fetcher = snapshot.NewFetcher(&a.cfg.Source, cache)
	return nil
}

// openStage wires the full load pipeline. natsURL overrides the configured
// NATS URL, for an embedded server.
func (a *app) openStage(natsURL string) error {
	if err := a.openFetcher(); err != nil {
		return err
	}
	notifier, err := a.newNotifier(natsURL)
	if err != nil {
		return err
	}

	models, err := silver.DefaultModels()
	if err != nil {
		return fmt.Errorf("load silver models: %w", err)
	}
	builder, err := silver.NewBuilder(a.db, a.reg, models)
	if err != nil {
		return fmt.Errorf("compile silver models: %w", err)
	}
	sets, err := features.DefaultFeatureSets(a.db.Schemas())
	if err != nil {
		return fmt.Errorf("load feature sets: %w", err)
	}
	snap := features.NewSnapshotter(a.db, a.cfg.Features.OutputDir)

	a.stage = pipeline.NewStage(a.cfg, a.db, a.reg, a.fetcher,
		pipeline.WithNotifier(notifier),
		pipeline.WithSilver(builder),
		pipeline.WithFeatures(snap, sets),
	)
	return nil
}

func (a *app) newNotifier(natsURL string) (*notify.Notifier, error) {
	var seen notify.SeenStore
	if a.badger != nil {
		seen = notify.NewBadgerSeenStore(a.badger)
	}
	opts := []notify.Option{notify.WithTopic(a.cfg.NATS.Subject)}
	if a.cfg.Cache.Dir != "" {
		opts = append(opts, notify.WithDriftLog(filepath.Join(a.cfg.Cache.Dir, notify.DriftLogFile)))
	}
	if !a.cfg.NATS.Enabled {
		return notify.New(nil, seen, opts...), nil
	}

	if natsURL == "" {
		natsURL = a.cfg.NATS.URL
	}
	pub, err := notify.NewNATSPublisher(natsURL, notify.WatermillLogger())
	if err != nil {
		return nil, fmt.Errorf("connect schema event publisher: %w", err)
	}
	a.closers = append(a.closers, pub.Close)
	logging.Info().Str("url", natsURL).Str("subject", a.cfg.NATS.Subject).Msg("Schema events published to NATS")
	return notify.New(pub, seen, opts...), nil
}

// ensureSchema creates missing layers with the configured key pins.
func (a *app) ensureSchema(ctx context.Context) error {
	return a.db.EnsureSchema(ctx, a.reg, a.cfg.Pipeline.BusinessKeyVersions)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *app) closeQuietly() {
	if err := a.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing resources")
	}
}
