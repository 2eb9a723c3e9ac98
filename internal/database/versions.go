// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package database

import (
	"context"
	"fmt"
	"time"
)

// DatasetVersion is the upstream revision last ingested for a dataset.
type DatasetVersion struct {
	Dataset       string     `db:"dataset_name" json:"dataset"`
	Signature     *string    `db:"signature" json:"signature,omitempty"`
	CommitSHA     *string    `db:"commit_sha" json:"commit_sha,omitempty"`
	CommitURL     *string    `db:"commit_url" json:"commit_url,omitempty"`
	CommittedAt   *time.Time `db:"committed_at" json:"committed_at,omitempty"`
	SourceKind    *string    `db:"source_kind" json:"source_kind,omitempty"`
	LastIngestRun *string    `db:"last_ingest_run_id" json:"last_ingest_run_id,omitempty"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// UpsertDatasetVersion records v as the latest ingested revision of its
// dataset. runID may be empty.
func (db *DB) UpsertDatasetVersion(ctx context.Context, v DatasetVersion, runID string) error {
	var run any
	if runID != "" {
		run = runID
	}
	query := db.dialect.Rebind(fmt.Sprintf(`INSERT INTO %s
		(dataset_name, signature, commit_sha, commit_url, committed_at, source_kind, last_ingest_run_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, CAST(? AS UUID), ?)
		ON CONFLICT (dataset_name) DO UPDATE SET
			signature = EXCLUDED.signature,
			commit_sha = EXCLUDED.commit_sha,
			commit_url = EXCLUDED.commit_url,
			committed_at = EXCLUDED.committed_at,
			source_kind = EXCLUDED.source_kind,
			last_ingest_run_id = EXCLUDED.last_ingest_run_id,
			updated_at = EXCLUDED.updated_at`,
		db.dialect.Qualified(db.schemas.Bronze, DatasetVersionsTable)))
	if _, err := db.conn.ExecContext(ctx, query, v.Dataset, v.Signature, v.CommitSHA, v.CommitURL,
		v.CommittedAt, v.SourceKind, run, v.UpdatedAt.UTC()); err != nil {
		return fmt.Errorf("failed to upsert dataset version %s: %w", v.Dataset, err)
	}
	return nil
}

// DatasetVersions returns the recorded revision of every dataset, by name.
func (db *DB) DatasetVersions(ctx context.Context) (map[string]DatasetVersion, error) {
	var rows []DatasetVersion
	query := fmt.Sprintf(`SELECT dataset_name, signature, commit_sha, commit_url, committed_at, source_kind,
		CAST(last_ingest_run_id AS TEXT) AS last_ingest_run_id, updated_at FROM %s`,
		db.dialect.Qualified(db.schemas.Bronze, DatasetVersionsTable))
	if err := db.x.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to read dataset versions: %w", err)
	}
	out := make(map[string]DatasetVersion, len(rows))
	for _, r := range rows {
		out[r.Dataset] = r
	}
	return out, nil
}
