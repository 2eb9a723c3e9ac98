// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tomtom215/gamebot/internal/database"
	"github.com/tomtom215/gamebot/internal/snapshot"
)

// VersionStore reads the upstream revisions recorded by past loads.
type VersionStore interface {
	DatasetVersions(ctx context.Context) (map[string]database.DatasetVersion, error)
}

// DatasetChange is a dataset whose upstream revision differs from the one
// last loaded.
type DatasetChange struct {
	Dataset           string    `json:"dataset"`
	PreviousSignature string    `json:"previous_signature,omitempty"`
	CurrentSignature  string    `json:"current_signature"`
	PreviousCommit    string    `json:"previous_commit,omitempty"`
	CurrentCommit     string    `json:"current_commit,omitempty"`
	CommitURL         string    `json:"commit_url,omitempty"`
	CommittedAt       time.Time `json:"committed_at,omitempty"`
	Origin            string    `json:"origin"`
}

// New reports whether the dataset was never loaded.
func (c DatasetChange) New() bool {
	return c.PreviousSignature == ""
}

// CheckFreshness compares the current upstream revisions against the
// recorded ones. A dataset changed when it was never recorded or its
// signature differs. Changes are sorted by dataset.
func CheckFreshness(ctx context.Context, prober Prober, src snapshot.Source, store VersionStore) ([]DatasetChange, error) {
	current, err := prober.Probe(ctx, src)
	if err != nil {
		return nil, err
	}
	recorded, err := store.DatasetVersions(ctx)
	if err != nil {
		return nil, err
	}

	var changes []DatasetChange
	for ds, v := range current {
		prev, ok := recorded[ds]
		if ok && deref(prev.Signature) == v.Signature {
			continue
		}
		changes = append(changes, DatasetChange{
			Dataset:           ds,
			PreviousSignature: deref(prev.Signature),
			CurrentSignature:  v.Signature,
			PreviousCommit:    deref(prev.CommitSHA),
			CurrentCommit:     v.Commit.SHA,
			CommitURL:         v.Commit.URL,
			CommittedAt:       v.Commit.CommittedAt,
			Origin:            v.Origin,
		})
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Dataset < changes[j].Dataset })
	return changes, nil
}

// RenderStatus renders a Markdown upstream status report.
func RenderStatus(changes []DatasetChange, checkedAt time.Time) string {
	var b strings.Builder
	b.WriteString("# survivoR upstream status\n\n")
	fmt.Fprintf(&b, "*Last checked:* %s\n\n", checkedAt.UTC().Format("2006-01-02 15:04 MST"))

	if len(changes) == 0 {
		b.WriteString("No new survivoR dataset revisions detected.\n")
		return b.String()
	}

	b.WriteString("**New survivoR dataset revisions detected.**\n\n")
	b.WriteString("Review the upstream repository and run a bronze load.\n")
	for _, c := range changes {
		fmt.Fprintf(&b, "\n## %s\n", c.Dataset)
		fmt.Fprintf(&b, "- Origin: `%s`\n", c.Origin)
		if c.CurrentCommit != "" {
			if c.CommitURL != "" {
				fmt.Fprintf(&b, "- Latest commit: [%s](%s)\n", short(c.CurrentCommit), c.CommitURL)
			} else {
				fmt.Fprintf(&b, "- Latest commit: `%s`\n", short(c.CurrentCommit))
			}
		}
		if !c.CommittedAt.IsZero() {
			fmt.Fprintf(&b, "- Commit date: %s\n", c.CommittedAt.UTC().Format(time.RFC3339))
		}
		if c.New() {
			b.WriteString("- Never loaded\n")
			continue
		}
		if c.PreviousCommit != "" {
			fmt.Fprintf(&b, "- Loaded commit: `%s`\n", short(c.PreviousCommit))
		}
		fmt.Fprintf(&b, "- Signature: `%s` -> `%s`\n", short(c.PreviousSignature), short(c.CurrentSignature))
	}
	return b.String()
}

func short(s string) string {
	if len(s) > 7 {
		return s[:7]
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
