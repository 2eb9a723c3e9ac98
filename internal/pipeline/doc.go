// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

/*
Package pipeline runs the bronze load stage and the optional silver and gold
builds that follow it.

A load fetches the upstream snapshot, opens an ingestion run, conforms each
dataset to the declared catalog, merges the batches in dependency order and
writes the validation report. The run is closed exactly once: success when
no hard check failed, failed otherwise, including on error or panic.

	stage := pipeline.NewStage(cfg, db, reg, fetcher,
		pipeline.WithNotifier(notifier),
		pipeline.WithSilver(builder),
	)
	result, err := stage.RunBronzeLoad(ctx, "dev", pipeline.LayerSilver)

Production loads are gated on the git branch; see CheckBranch.

Only one load runs per Stage at a time. A second call while a load is in
flight returns ErrRunInProgress without touching the warehouse.
*/
package pipeline
