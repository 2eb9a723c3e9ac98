// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package features

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/gamebot/internal/database"
	"github.com/tomtom215/gamebot/internal/logging"
	"github.com/tomtom215/gamebot/internal/snapshot"
)

// ManifestFile is the per-set manifest name.
const ManifestFile = "manifest.json"

// hashPrefix is the number of hex characters of the content hash used in
// file names.
const hashPrefix = 16

// Snapshot describes one materialized feature set.
type Snapshot struct {
	Name      string    `json:"name"`
	Hash      string    `json:"hash"`
	File      string    `json:"file"`
	Rows      int       `json:"rows"`
	Columns   []string  `json:"columns"`
	RunID     string    `json:"run_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	// Reused is set when an identical snapshot already existed.
	Reused bool `json:"-"`
}

// Manifest lists every snapshot of one feature set, oldest first.
type Manifest struct {
	Name      string     `json:"name"`
	Latest    string     `json:"latest"`
	Snapshots []Snapshot `json:"snapshots"`
}

// Find returns the snapshot with hash.
func (m *Manifest) Find(hash string) (Snapshot, bool) {
	for _, s := range m.Snapshots {
		if s.Hash == hash {
			return s, true
		}
	}
	return Snapshot{}, false
}

// Option configures a Snapshotter.
type Option func(*Snapshotter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Snapshotter) { s.now = now }
}

// Snapshotter writes feature snapshots below a directory.
type Snapshotter struct {
	db  *database.DB
	dir string
	now func() time.Time
}

// NewSnapshotter writes snapshots below dir.
func NewSnapshotter(db *database.DB, dir string, opts ...Option) *Snapshotter {
	s := &Snapshotter{db: db, dir: dir, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SnapshotAll snapshots sets in order and stops at the first failure.
func (s *Snapshotter) SnapshotAll(ctx context.Context, sets []FeatureSet, runID string) ([]*Snapshot, error) {
	out := make([]*Snapshot, 0, len(sets))
	for _, set := range sets {
		snap, err := s.Snapshot(ctx, set, runID)
		if err != nil {
			return out, err
		}
		out = append(out, snap)
	}
	return out, nil
}

// Snapshot materializes set unless an identical snapshot exists.
func (s *Snapshotter) Snapshot(ctx context.Context, set FeatureSet, runID string) (*Snapshot, error) {
	query := ordered(set)
	hash, cols, rows, err := s.contentHash(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("feature set %s: %w", set.Name, err)
	}

	setDir := filepath.Join(s.dir, set.Name)
	if err := os.MkdirAll(setDir, 0o750); err != nil {
		return nil, fmt.Errorf("feature set %s: %w", set.Name, err)
	}
	manifest, err := ReadManifest(s.dir, set.Name)
	if err != nil {
		return nil, err
	}

	log := logging.Ctx(ctx).With().Str("feature_set", set.Name).Str("hash", hash[:hashPrefix]).Logger()
	if prev, ok := manifest.Find(hash); ok {
		if _, err := os.Stat(filepath.Join(setDir, prev.File)); err == nil {
			prev.Reused = true
			if manifest.Latest != hash {
				manifest.Latest = hash
				if err := writeManifest(setDir, manifest); err != nil {
					return nil, err
				}
			}
			log.Info().Msg("Feature snapshot unchanged")
			return &prev, nil
		}
	}

	file := hash[:hashPrefix] + ".parquet"
	if err := s.db.ExportParquet(ctx, query, filepath.Join(setDir, file)); err != nil {
		return nil, fmt.Errorf("feature set %s: %w", set.Name, err)
	}

	snap := Snapshot{
		Name:      set.Name,
		Hash:      hash,
		File:      file,
		Rows:      rows,
		Columns:   cols,
		RunID:     runID,
		CreatedAt: s.now().UTC(),
	}
	if _, ok := manifest.Find(hash); !ok {
		manifest.Snapshots = append(manifest.Snapshots, snap)
	}
	manifest.Latest = hash
	if err := writeManifest(setDir, manifest); err != nil {
		return nil, err
	}
	log.Info().Int("rows", rows).Str("file", file).Msg("Feature snapshot written")
	return &snap, nil
}

// contentHash reads the ordered result of query and hashes column names and
// canonical row values.
func (s *Snapshotter) contentHash(ctx context.Context, query string) (string, []string, int, error) {
	rows, err := s.db.Conn().QueryContext(ctx, query)
	if err != nil {
		return "", nil, 0, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "", nil, 0, err
	}

	h := sha256.New()
	h.Write([]byte(strings.Join(cols, "\x1f")))
	n := 0
	raw := make([]any, len(cols))
	dest := make([]any, len(cols))
	for i := range raw {
		dest[i] = &raw[i]
	}
	parts := make([]string, len(cols))
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return "", nil, 0, fmt.Errorf("scan: %w", err)
		}
		for i, v := range raw {
			parts[i] = snapshot.FromSQL(v).Canonical()
		}
		h.Write([]byte{0x1e})
		h.Write([]byte(strings.Join(parts, "\x1f")))
		n++
	}
	if err := rows.Err(); err != nil {
		return "", nil, 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), cols, n, nil
}

// ReadManifest loads the manifest of set name below dir. A missing manifest
// is empty.
func ReadManifest(dir, name string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, name, ManifestFile))
	if errors.Is(err, os.ErrNotExist) {
		return &Manifest{Name: name}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest for %s: %w", name, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest for %s: %w", name, err)
	}
	return &m, nil
}

func writeManifest(setDir string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	tmp := filepath.Join(setDir, ManifestFile+".tmp")
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return os.Rename(tmp, filepath.Join(setDir, ManifestFile))
}

func ordered(set FeatureSet) string {
	return fmt.Sprintf("SELECT * FROM (%s) AS feature_rows ORDER BY %s",
		strings.TrimRight(strings.TrimSpace(set.Query), ";"), strings.Join(set.OrderBy, ", "))
}
