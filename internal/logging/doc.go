// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

// Package logging provides the zerolog-based structured logger shared by every
// gamebot component.
//
// A single global logger is configured once from main via Init and then used
// through the level helpers:
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//	logging.Info().Str("table", "vote_history").Int("inserted", n).Msg("Merge complete")
//
// Ingestion code carries the active run identifier in the context so every
// log line emitted while a load is in flight can be joined back to its
// bronze.ingestion_runs row:
//
//	ctx = logging.ContextWithRunID(ctx, runID)
//	logging.Ctx(ctx).Warn().Msg("Dropping undeclared column")
//
// # Configuration
//
//	LOG_LEVEL   trace, debug, info, warn, error (default: info)
//	LOG_FORMAT  json, console (default: json)
//	LOG_CALLER  include caller file:line (default: false)
//
// The slog adapter exists for libraries that only accept *slog.Logger, most
// notably the suture supervisor event hook.
package logging
