// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package keys

import (
	"sync"

	"github.com/tomtom215/gamebot/internal/snapshot"
)

// Resolution is the outcome of resolving a reference.
type Resolution int

const (
	// Resolved means the referenced key is registered.
	Resolved Resolution = iota

	// NullReference means a part was NULL; the reference is absent.
	NullReference

	// Dangling means the key was derived but no such entity is registered.
	Dangling
)

// Resolver resolves foreign keys by recomputing the referenced entity's key
// from natural-key values and checking it against registered entities.
type Resolver struct {
	mu    sync.RWMutex
	known map[string]map[SurrogateKey]struct{}
}

// NewResolver creates an empty resolver.
func NewResolver() *Resolver {
	return &Resolver{known: make(map[string]map[SurrogateKey]struct{})}
}

// Register records an existing entity key of domain.
func (r *Resolver) Register(domain string, key SurrogateKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.known[domain]
	if !ok {
		set = make(map[SurrogateKey]struct{})
		r.known[domain] = set
	}
	set[key] = struct{}{}
}

// Known reports how many keys are registered for domain.
func (r *Resolver) Known(domain string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.known[domain])
}

// Resolve derives the key of domain from values. A NULL part yields nil
// with NullReference. A derived key that is not registered is returned with
// Dangling so callers can report it.
func (r *Resolver) Resolve(domain string, values ...snapshot.Value) (*SurrogateKey, Resolution, error) {
	for _, v := range values {
		if v.IsNull() {
			return nil, NullReference, nil
		}
	}
	key, err := Derive(domain, values...)
	if err != nil {
		return nil, Dangling, err
	}

	r.mu.RLock()
	_, ok := r.known[domain][key]
	r.mu.RUnlock()
	if !ok {
		return &key, Dangling, nil
	}
	return &key, Resolved, nil
}
