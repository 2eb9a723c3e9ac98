// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

// Package drift compares incoming tables with their declarations, runs
// data-quality checks and writes the per-run validation report.
//
// Drift and failed soft checks are report entries. Only failed checks of
// severity hard make Report.Err return an error. Nothing in this package
// writes to the warehouse.
package drift
