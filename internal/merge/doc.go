// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

/*
Package merge reconciles incoming batches with warehouse tables by business
key.

For one table the engine:

 1. partitions the batch by business key, collapsing identical duplicates and
    rejecting conflicting ones with *DuplicateKeyInBatchError before any write
 2. checks every enforced reference against the parent table and fails with
    *ForeignKeyOrderViolation when a parent row is missing
 3. inserts keys the table does not hold and overwrites the batch's non-key
    columns for keys it does, stamping ingest_run_id and ingested_at on both

Rows absent from the batch are never touched. A table's batch commits or
rolls back as a unit; failures surface as *TableMergeError.

MergeAll validates the plan against the registry's topological order before
writing anything. By default each table commits on its own, so tables merged
earlier in a failed run stay committed and the run row records the failure.
WithStrict merges the whole plan in one transaction instead.

Statements are built with go-sqlbuilder using the warehouse dialect's flavor.
*/
package merge
