// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/gamebot/internal/api"
	"github.com/tomtom215/gamebot/internal/logging"
	"github.com/tomtom215/gamebot/internal/pipeline"
	"github.com/tomtom215/gamebot/internal/supervisor"
	"github.com/tomtom215/gamebot/internal/supervisor/services"
)

func newServeCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the upstream freshness watcher",
		Long: `Serve the run API (POST /api/v1/runs, GET /api/v1/runs, /healthz, /metrics)
under a supervisor tree. With watcher.enabled the upstream datasets are
probed periodically and, with watcher.auto_load, loaded when they change.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), root)
		},
	}
}

func runServe(parent context.Context, root *rootOptions) error {
	cfg := root.cfg
	ctx, stop := signalContext(parent)
	defer stop()

	logging.Info().Str("environment", cfg.Pipeline.Environment).Msg("Starting gamebot with supervisor tree")

	a, err := openWarehouse(cfg)
	if err != nil {
		return err
	}
	defer a.closeQuietly()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: 15 * time.Second,
	})
	if err != nil {
		return err
	}

	if cfg.NATS.Enabled && cfg.NATS.EmbeddedServer {
		host, port, err := embeddedAddr(cfg.NATS.URL)
		if err != nil {
			return withExitCode(exitUsage, "nats url", err)
		}
		tree.AddDataService(services.NewEmbeddedNATSService(host, port))
	}
	if err := a.openStage(""); err != nil {
		return err
	}
	if err := a.ensureSchema(ctx); err != nil {
		return err
	}

	handler := api.NewHandler(a.stage, a.stage.Tracker(), a.db, cfg.Server.Timeout)
	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           api.NewRouter(handler, &cfg.Server),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		// Synchronous POST /api/v1/runs holds the response for a whole load.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second, handler))
	logging.Info().Str("addr", server.Addr).Msg("HTTP API configured")

	if cfg.Watcher.Enabled {
		tree.AddPipelineService(services.NewFreshnessWatcher(a.fetcher, a.stage.Source(), a.db, a.stage, services.WatcherConfig{
			Interval:    cfg.Watcher.Interval,
			Environment: cfg.Pipeline.Environment,
			TargetLayer: pipeline.LayerBronze,
			AutoLoad:    cfg.Watcher.AutoLoad,
		}))
		logging.Info().Dur("interval", cfg.Watcher.Interval).Bool("auto_load", cfg.Watcher.AutoLoad).
			Msg("Upstream freshness watcher enabled")
	}

	err = tree.Serve(ctx)

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logging.Info().Msg("gamebot stopped")
	return nil
}
