// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// CacheEntry is a cached payload for one dataset revision.
type CacheEntry struct {
	Dataset   string    `json:"dataset"`
	Origin    string    `json:"origin"`
	Signature string    `json:"signature"`
	URL       string    `json:"url"`
	FetchedAt time.Time `json:"fetched_at"`
	Payload   []byte    `json:"payload"`
}

// Cache stores payloads keyed by dataset and signature.
type Cache interface {
	Get(ctx context.Context, dataset, signature string) (*CacheEntry, error)
	Put(ctx context.Context, entry *CacheEntry) error
}

func cacheKey(dataset, signature string) string {
	return "snapshot:" + dataset + ":" + signature
}

// MemoryCache keeps payloads in process memory.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*CacheEntry
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]*CacheEntry)}
}

// Get returns the entry or nil when absent.
func (c *MemoryCache) Get(_ context.Context, dataset, signature string) (*CacheEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[cacheKey(dataset, signature)]
	if !ok {
		return nil, nil
	}
	entryCopy := *e
	return &entryCopy, nil
}

// Put stores a copy of entry.
func (c *MemoryCache) Put(_ context.Context, entry *CacheEntry) error {
	entryCopy := *entry
	c.mu.Lock()
	c.entries[cacheKey(entry.Dataset, entry.Signature)] = &entryCopy
	c.mu.Unlock()
	return nil
}

// Len returns the number of cached entries.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// BadgerCache persists payloads in BadgerDB so restarts keep the cache.
type BadgerCache struct {
	db  *badger.DB
	ttl time.Duration
}

// NewBadgerCache wraps an open BadgerDB. A zero ttl keeps entries forever.
func NewBadgerCache(db *badger.DB, ttl time.Duration) *BadgerCache {
	return &BadgerCache{db: db, ttl: ttl}
}

// OpenBadger opens a BadgerDB at path with badger's own logging disabled.
func OpenBadger(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", path, err)
	}
	return db, nil
}

// Get returns the entry or nil when absent.
func (c *BadgerCache) Get(_ context.Context, dataset, signature string) (*CacheEntry, error) {
	var entry *CacheEntry
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(cacheKey(dataset, signature)))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			entry = &CacheEntry{}
			return json.Unmarshal(val, entry)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("load cache entry: %w", err)
	}
	return entry, nil
}

// Put stores entry.
func (c *BadgerCache) Put(_ context.Context, entry *CacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(cacheKey(entry.Dataset, entry.Signature)), data)
		if c.ttl > 0 {
			e = e.WithTTL(c.ttl)
		}
		return txn.SetEntry(e)
	})
}
