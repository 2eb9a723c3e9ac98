// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package merge

import (
	"fmt"
	"strings"
)

// DuplicateKeyInBatchError means one business key arrived twice in a batch
// with different payloads.
type DuplicateKeyInBatchError struct {
	Table  string
	Key    []string
	First  []string
	Second []string
}

func (e *DuplicateKeyInBatchError) Error() string {
	return fmt.Sprintf("table %s: business key (%s) appears twice with different payloads: [%s] vs [%s]",
		e.Table, strings.Join(e.Key, ", "), strings.Join(e.First, ", "), strings.Join(e.Second, ", "))
}

// TableMergeError wraps any failure applying a table's batch. The batch
// was rolled back.
type TableMergeError struct {
	Table string
	Err   error
}

func (e *TableMergeError) Error() string {
	return fmt.Sprintf("merge of table %s failed: %v", e.Table, e.Err)
}

func (e *TableMergeError) Unwrap() error {
	return e.Err
}

// ForeignKeyOrderViolation means a table was merged before a table it
// depends on, or its batch references parent rows that do not exist.
type ForeignKeyOrderViolation struct {
	Table     string
	Parent    string
	Reference string

	// Count is the number of distinct parent keys not found, and Missing
	// holds a sample of them. Both are zero when the plan itself was out
	// of order.
	Count   int
	Missing [][]string
}

func (e *ForeignKeyOrderViolation) Error() string {
	if e.Count == 0 {
		return fmt.Sprintf("table %s is merged before its parent %s", e.Table, e.Parent)
	}
	samples := make([]string, len(e.Missing))
	for i, m := range e.Missing {
		samples[i] = "(" + strings.Join(m, ", ") + ")"
	}
	return fmt.Sprintf("table %s references %d missing %s rows via %s: %s",
		e.Table, e.Count, e.Parent, e.Reference, strings.Join(samples, " "))
}
