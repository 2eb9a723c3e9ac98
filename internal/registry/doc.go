// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

// Package registry holds the declared bronze table catalog.
//
// The catalog is the expected schema every incoming snapshot is checked
// against: columns and their types, versioned business keys, foreign keys
// and data-quality rules. It is embedded from catalog.yaml and validated once
// at load time, so downstream packages can treat a *Registry as correct.
//
// Merge order is derived from the enforced foreign keys with Kahn's
// algorithm. Ties keep declaration order, which makes the order stable
// across processes:
//
//	reg, err := registry.Default()
//	for _, name := range reg.Order() {
//	    spec, _ := reg.Table(name)
//	    key, err := spec.ActiveKey(cfg.Pipeline.BusinessKeyVersions)
//	    ...
//	}
package registry
