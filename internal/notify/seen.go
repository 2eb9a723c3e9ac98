// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const seenPrefix = "notify:seen:"

// SeenStore remembers which event keys have already been surfaced.
type SeenStore interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}

// MemorySeenStore keeps keys for the life of the process.
type MemorySeenStore struct {
	mu   sync.RWMutex
	keys map[string]struct{}
}

// NewMemorySeenStore returns an empty store.
func NewMemorySeenStore() *MemorySeenStore {
	return &MemorySeenStore{keys: make(map[string]struct{})}
}

// Seen reports whether key was marked.
func (s *MemorySeenStore) Seen(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.keys[key]
	return ok, nil
}

// Mark records key.
func (s *MemorySeenStore) Mark(_ context.Context, key string) error {
	s.mu.Lock()
	s.keys[key] = struct{}{}
	s.mu.Unlock()
	return nil
}

// BadgerSeenStore persists keys next to the snapshot cache.
type BadgerSeenStore struct {
	db *badger.DB
}

// NewBadgerSeenStore wraps an open BadgerDB.
func NewBadgerSeenStore(db *badger.DB) *BadgerSeenStore {
	return &BadgerSeenStore{db: db}
}

// Seen reports whether key was marked.
func (s *BadgerSeenStore) Seen(_ context.Context, key string) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(seenPrefix + key))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read seen key: %w", err)
	}
	return true, nil
}

// Mark records key with the time it was first surfaced.
func (s *BadgerSeenStore) Mark(_ context.Context, key string) error {
	stamp := []byte(time.Now().UTC().Format(time.RFC3339))
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(seenPrefix+key), stamp)
	}); err != nil {
		return fmt.Errorf("write seen key: %w", err)
	}
	return nil
}
