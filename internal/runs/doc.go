// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

// Package runs records ingestion runs in bronze.ingestion_runs.
//
// A run moves from running to exactly one of success or failed. StartRun
// commits the row before returning, so every bronze row stamped with the id
// always resolves its foreign key. FinishRun refuses a second transition with
// *DuplicateFinishError. Callers defer Guard right after StartRun so an error
// or panic still closes the run as failed:
//
//	id, err := tracker.StartRun(ctx, info)
//	if err != nil {
//	    return err
//	}
//	defer tracker.Guard(ctx, id, &err)
package runs
