// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tomtom215/gamebot/internal/logging"
	"github.com/tomtom215/gamebot/internal/notify"
	"github.com/tomtom215/gamebot/internal/pipeline"
)

type loadOptions struct {
	*rootOptions
	environment string
	layer       string
	jsonOutput  bool
}

func newLoadCommand(root *rootOptions) *cobra.Command {
	opts := &loadOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Fetch upstream datasets and merge them into the warehouse",
		Long: `Fetch the configured survivoR datasets, check them for drift and merge
them into bronze. --layer silver also rebuilds the silver models and --layer
gold additionally writes the gold feature snapshots.

Example:
  gamebot load
  gamebot load --env prod --layer gold`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLoad(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.environment, "env", "", "target environment (dev|prod); defaults to configuration")
	cmd.Flags().StringVar(&opts.layer, "layer", pipeline.LayerBronze, "last layer to build (bronze|silver|gold)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "print the run result as JSON")

	return cmd
}

func runLoad(parent context.Context, opts *loadOptions, out io.Writer) error {
	ctx, stop := signalContext(parent)
	defer stop()

	a, err := openWarehouse(opts.cfg)
	if err != nil {
		return err
	}
	defer a.closeQuietly()

	natsURL := ""
	if opts.cfg.NATS.Enabled && opts.cfg.NATS.EmbeddedServer {
		host, port, err := embeddedAddr(opts.cfg.NATS.URL)
		if err != nil {
			return withExitCode(exitUsage, "nats url", err)
		}
		srv, err := notify.StartEmbeddedServer(host, port)
		if err != nil {
			return err
		}
		defer srv.Shutdown()
		natsURL = srv.ClientURL()
	}
	if err := a.openStage(natsURL); err != nil {
		return err
	}

	result, err := a.stage.RunBronzeLoad(ctx, opts.environment, opts.layer)
	if result != nil {
		if perr := printResult(out, result, opts.jsonOutput); perr != nil {
			logging.Warn().Err(perr).Msg("Failed to print run result")
		}
	}
	if err != nil {
		return withExitCode(exitFailure, "load failed", err)
	}
	return nil
}

func printResult(out io.Writer, result *pipeline.RunResult, asJSON bool) error {
	if asJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}

	fmt.Fprintf(out, "run %s: %s (%s, %s)\n", result.RunID, result.Status, result.Environment, result.TargetLayer)
	tables := make([]string, 0, len(result.RowCountsByTable))
	for t := range result.RowCountsByTable {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	for _, t := range tables {
		c := result.RowCountsByTable[t]
		fmt.Fprintf(out, "  %-28s inserted=%d updated=%d unchanged=%d\n", t, c.Inserted, c.Updated, c.Unchanged)
	}
	for _, f := range result.Features {
		fmt.Fprintf(out, "  feature %s -> %s\n", f.Name, f.File)
	}
	if result.ReportPath != "" {
		fmt.Fprintf(out, "report: %s\n", result.ReportPath)
	}
	_, err := fmt.Fprintf(out, "checks: %d run, %d failed, %d hard failures\n",
		result.Summary.Checks, result.Summary.Failed, result.Summary.HardFailed)
	return err
}

// embeddedAddr extracts the listen address of an embedded server from a
// nats:// URL.
func embeddedAddr(raw string) (string, int, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", 0, err
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port %q", portStr)
	}
	return host, port, nil
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
