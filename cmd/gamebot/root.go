// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/tomtom215/gamebot/internal/config"
	"github.com/tomtom215/gamebot/internal/logging"
)

// rootOptions holds the global flags and the configuration they load.
type rootOptions struct {
	configPath string
	logLevel   string

	cfg *config.Config
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "gamebot",
		Short:         "Survivor dataset medallion warehouse",
		Long:          "Loads the survivoR datasets into bronze, builds silver models and publishes gold feature snapshots.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (overrides CONFIG_PATH)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (trace|debug|info|warn|error)")

	cmd.AddCommand(newLoadCommand(opts))
	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newRunsCommand(opts))
	cmd.AddCommand(newSchemaCommand(opts))
	cmd.AddCommand(newKeysCommand())
	cmd.AddCommand(newUpstreamCommand(opts))

	return cmd
}

// load reads configuration and initializes logging.
func (o *rootOptions) load() error {
	if o.configPath != "" {
		if err := os.Setenv(config.ConfigPathEnvVar, o.configPath); err != nil {
			return withExitCode(exitUsage, "set config path", err)
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return withExitCode(exitUsage, "load configuration", err)
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})
	o.cfg = cfg
	return nil
}
