// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tomtom215/gamebot/internal/runs"
)

type runsOptions struct {
	*rootOptions
	limit      int
	jsonOutput bool
}

func newRunsCommand(root *rootOptions) *cobra.Command {
	opts := &runsOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect recorded ingestion runs",
	}
	cmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "print runs as JSON")

	last := &cobra.Command{
		Use:   "last",
		Short: "Show the most recent run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withTracker(cmd.Context(), opts, func(ctx context.Context, t *runs.Tracker) error {
				run, err := t.Latest(ctx)
				if errors.Is(err, runs.ErrRunNotFound) {
					fmt.Fprintln(cmd.OutOrStdout(), "no runs recorded")
					return nil
				}
				if err != nil {
					return err
				}
				return printRuns(cmd.OutOrStdout(), []runs.Run{*run}, opts.jsonOutput)
			})
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.limit < 1 {
				return withExitCode(exitUsage, fmt.Sprintf("--limit must be positive, got %d", opts.limit), nil)
			}
			return withTracker(cmd.Context(), opts, func(ctx context.Context, t *runs.Tracker) error {
				list, err := t.List(ctx, opts.limit)
				if err != nil {
					return err
				}
				return printRuns(cmd.OutOrStdout(), list, opts.jsonOutput)
			})
		},
	}
	list.Flags().IntVar(&opts.limit, "limit", 20, "maximum number of runs")

	cmd.AddCommand(last, list)
	return cmd
}

func withTracker(ctx context.Context, opts *runsOptions, fn func(context.Context, *runs.Tracker) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openWarehouse(opts.cfg)
	if err != nil {
		return err
	}
	defer a.closeQuietly()
	if err := a.ensureSchema(ctx); err != nil {
		return err
	}
	return fn(ctx, runs.NewTracker(a.db))
}

func printRuns(out io.Writer, list []runs.Run, asJSON bool) error {
	if asJSON {
		data, err := json.MarshalIndent(list, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}
	now := time.Now()
	for i := range list {
		r := &list[i]
		fmt.Fprintf(out, "%s  %-8s %-4s %s  %s\n",
			r.RunID, r.Status, r.Environment,
			r.StartedAt.UTC().Format(time.RFC3339),
			r.Duration(now).Round(time.Second))
		if r.Notes != nil && *r.Notes != "" {
			fmt.Fprintf(out, "    %s\n", *r.Notes)
		}
	}
	return nil
}
