// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

/*
Package silver builds the dimensional layer from bronze.

Each Model reads one bronze table, derives a surrogate key from its natural
key columns with keys.Derive, and resolves references to other models by
recomputing the referenced surrogate key from the natural values it
carries. A reference that names no known entity is stored as NULL and
reported as a soft foreign_key finding. Rows are written to the silver
schema by the same merge engine bronze uses, so silver loads are
idempotent and never delete.

Models are declared in the embedded models.yaml. A model may only
reference models declared before it.
*/
package silver
