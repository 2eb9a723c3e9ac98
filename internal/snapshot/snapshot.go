// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package snapshot

import (
	"sort"
	"time"
)

// Snapshot is one fetched upstream revision. It is not modified after the
// Fetcher returns it.
type Snapshot struct {
	signature string
	source    Source
	fetchedAt time.Time
	tables    map[string]*Table
	versions  map[string]DatasetVersion
}

// New assembles a snapshot from decoded tables keyed by dataset name.
func New(source Source, tables map[string]*Table, versions map[string]DatasetVersion, fetchedAt time.Time) *Snapshot {
	t := make(map[string]*Table, len(tables))
	for k, v := range tables {
		t[k] = v
	}
	vs := make(map[string]DatasetVersion, len(versions))
	for k, v := range versions {
		vs[k] = v
	}
	return &Snapshot{
		signature: CombinedSignature(vs),
		source:    source,
		fetchedAt: fetchedAt,
		tables:    t,
		versions:  vs,
	}
}

// Signature identifies the upstream revision across all datasets.
func (s *Snapshot) Signature() string { return s.signature }

// Source returns where the snapshot came from.
func (s *Snapshot) Source() Source { return s.source }

// FetchedAt is when the snapshot was assembled.
func (s *Snapshot) FetchedAt() time.Time { return s.fetchedAt }

// Table returns the decoded table for a dataset.
func (s *Snapshot) Table(dataset string) (*Table, bool) {
	t, ok := s.tables[dataset]
	return t, ok
}

// Version returns revision metadata for a dataset.
func (s *Snapshot) Version(dataset string) (DatasetVersion, bool) {
	v, ok := s.versions[dataset]
	return v, ok
}

// Datasets returns dataset names in sorted order.
func (s *Snapshot) Datasets() []string {
	names := make([]string, 0, len(s.tables))
	for n := range s.tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
