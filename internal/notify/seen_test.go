// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package notify

import (
	"context"
	"testing"

	"github.com/dgraph-io/badger/v4"
)

func TestSeenStores(t *testing.T) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		t.Fatalf("badger.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	stores := map[string]SeenStore{
		"memory": NewMemorySeenStore(),
		"badger": NewBadgerSeenStore(db),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seen, err := store.Seen(ctx, "abc")
			if err != nil {
				t.Fatalf("Seen() error = %v", err)
			}
			if seen {
				t.Error("Seen() = true before Mark")
			}
			if err := store.Mark(ctx, "abc"); err != nil {
				t.Fatalf("Mark() error = %v", err)
			}
			seen, err = store.Seen(ctx, "abc")
			if err != nil {
				t.Fatalf("Seen() error = %v", err)
			}
			if !seen {
				t.Error("Seen() = false after Mark")
			}
			if seen, _ := store.Seen(ctx, "abd"); seen {
				t.Error("Seen() = true for an unmarked key")
			}
		})
	}
}
