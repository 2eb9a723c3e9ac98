// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

// Package features produces reproducible gold-layer snapshots.
//
// A FeatureSet is a query over silver with a total ORDER BY. Snapshot
// hashes the ordered result and writes it once to
// <dir>/<name>/<hash>.parquet; identical inputs produce the same hash and
// reuse the existing file. Each set keeps a manifest.json listing every
// snapshot taken and the latest one.
package features
