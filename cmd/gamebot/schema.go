// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tomtom215/gamebot/internal/logging"
)

func newSchemaCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Manage warehouse tables",
	}

	ensure := &cobra.Command{
		Use:   "ensure",
		Short: "Create missing schemas, tables and metadata",
		Args:  cobra.NoArgs,
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
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "schema ensured: %d bronze tables\n", len(a.reg.Tables()))
			return err
		},
	}

	rekey := &cobra.Command{
		Use:   "rekey <table> <version>",
		Short: "Switch a bronze table to another business key version",
		Long: `Rebuild a bronze table under a different declared business key version.
Existing rows must be unique under the new key. Pin the same version in
pipeline.business_key_versions afterwards, or the next load will refuse it.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[1])
			if err != nil {
				return withExitCode(exitUsage, fmt.Sprintf("invalid version %q", args[1]), nil)
			}
			ctx := contextOf(cmd)
			a, err := openWarehouse(root.cfg)
			if err != nil {
				return err
			}
			defer a.closeQuietly()
			if err := a.ensureSchema(ctx); err != nil {
				return err
			}
			if err := a.db.Rekey(ctx, a.reg, args[0], version); err != nil {
				return err
			}
			logging.Info().Str("table", args[0]).Int("version", version).Msg("Table rekeyed")
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s now uses business key v%d\n", args[0], version)
			return err
		},
	}

	cmd.AddCommand(ensure, rekey)
	return cmd
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
