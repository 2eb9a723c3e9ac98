// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

/*
Package api exposes the load stage to an external orchestrator over HTTP.

Routes:

	POST /api/v1/runs          start a load; body {"environment", "target_layer", "async"}
	GET  /api/v1/runs          recent runs, newest first (?limit=, 1..100)
	GET  /api/v1/runs/latest   most recent run
	GET  /api/v1/runs/{id}     one run
	GET  /healthz              warehouse reachability and load state
	GET  /metrics              Prometheus exposition

Every JSON body uses the same envelope: status, data, metadata and, on
failure, error. Loads triggered over HTTP share the stage's single-flight
guard with every other caller, so a second POST while a load is running is
answered with 409.
*/
package api
