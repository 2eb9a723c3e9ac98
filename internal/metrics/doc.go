// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

// Package metrics registers Prometheus collectors for the gamebot pipeline.
//
// Collectors are created with promauto on the default registry and exposed by
// the API server at /metrics. Helpers named Record* keep label handling in
// one place so callers never format label values themselves.
//
// Families:
//
//	gamebot_runs_total{status}                     finished ingestion runs
//	gamebot_run_duration_seconds                   wall time of a bronze load
//	gamebot_merge_rows_total{table,action}         inserted/updated/unchanged rows
//	gamebot_merge_duration_seconds{table}          per-table merge time
//	gamebot_fetch_total{result}                    snapshot fetch outcomes
//	gamebot_drift_findings_total{table,kind}       drift findings by kind
//	gamebot_circuit_breaker_state{name}            0 closed, 1 half-open, 2 open
//	gamebot_api_requests_total{method,route,status}
package metrics
