// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tomtom215/gamebot/internal/keys"
)

func newKeysCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Surrogate key utilities",
		// Key derivation needs no configuration.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	}

	derive := &cobra.Command{
		Use:   "derive <domain> <parts...>",
		Short: "Print the surrogate key of a domain and its ordered parts",
		Long: `Derive the deterministic surrogate key for the given domain and parts.
The same inputs give the same key in every process.

Example:
  gamebot keys derive castaway US0001`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] == "" {
				return withExitCode(exitUsage, keys.ErrEmptyDomain.Error(), nil)
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), keys.DeriveKey(args[0], args[1:]...))
			return err
		},
	}

	cmd.AddCommand(derive)
	return cmd
}
