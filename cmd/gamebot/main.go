// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

// Package main is the gamebot command.
//
// gamebot loads the survivoR datasets into a bronze/silver/gold warehouse.
// Every subcommand reads the same layered configuration (Koanf v2):
//   - Environment variables (GAMEBOT_ENV, DATABASE_URL, ...)
//   - Config file (config.yaml, or --config / CONFIG_PATH)
//   - Built-in defaults
//
// # Commands
//
//	gamebot load [--env dev|prod] [--layer bronze|silver|gold]
//	gamebot serve
//	gamebot runs last
//	gamebot runs list [--limit N]
//	gamebot schema ensure
//	gamebot schema rekey <table> <version>
//	gamebot keys derive <domain> <parts...>
//	gamebot upstream check [--report-md FILE]
//
// load exits 1 when the run fails (including hard check failures) and 2 on
// usage or configuration errors. upstream check exits 3 when new upstream
// revisions exist, so schedulers can branch on it.
//
// # Signal Handling
//
// serve and load stop on SIGINT and SIGTERM. serve drains in-flight
// requests and any background load before closing the warehouse.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		if msg := err.Error(); msg != "" {
			fmt.Fprintln(os.Stderr, "Error:", msg)
		}
		os.Exit(exitCode(err))
	}
}
