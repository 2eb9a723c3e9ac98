// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/gamebot/internal/pipeline"
	"github.com/tomtom215/gamebot/internal/snapshot"
)

func newUpstreamCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upstream",
		Short: "Inspect the upstream survivoR repository",
	}

	var reportPath string
	check := &cobra.Command{
		Use:   "check",
		Short: "Report datasets whose upstream revision differs from the last load",
		Long: `Probe the upstream datasets and compare their signatures with the ones
recorded by the last successful load. Exits 3 when new revisions exist.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := contextOf(cmd)
			a, err := openWarehouse(root.cfg)
			if err != nil {
				return err
			}
			defer a.closeQuietly()
			if err := a.ensureSchema(ctx); err != nil {
				return err
			}
			if err := a.openFetcher(); err != nil {
				return err
			}

			changes, err := pipeline.CheckFreshness(ctx, a.fetcher, snapshot.SourceFromConfig(&root.cfg.Source), a.db)
			if err != nil {
				return err
			}
			status := pipeline.RenderStatus(changes, time.Now())
			if reportPath != "" {
				if err := os.MkdirAll(filepath.Dir(reportPath), 0o755); err != nil {
					return err
				}
				if err := os.WriteFile(reportPath, []byte(status), 0o644); err != nil { //nolint:gosec // report is public
					return err
				}
			}
			fmt.Fprint(cmd.OutOrStdout(), status)
			if len(changes) > 0 {
				return withExitCode(exitUpstream, "", nil)
			}
			return nil
		},
	}
	check.Flags().StringVar(&reportPath, "report-md", "", "also write the Markdown status to this file")

	cmd.AddCommand(check)
	return cmd
}
