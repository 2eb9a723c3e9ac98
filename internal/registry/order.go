// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package registry

import (
	"fmt"
	"strings"
)

// CycleError reports enforced references that form a cycle.
type CycleError struct {
	Tables []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("enforced foreign keys form a cycle among: %s", strings.Join(e.Tables, ", "))
}

// topoOrder sorts tables parents-first over enforced references. Among
// ready tables the earliest declared is emitted first.
func topoOrder(tables []*TableSpec) ([]string, error) {
	indegree := make(map[string]int, len(tables))
	children := make(map[string][]string, len(tables))
	for _, t := range tables {
		indegree[t.Name] += 0
		for _, p := range t.EnforcedParents() {
			indegree[t.Name]++
			children[p] = append(children[p], t.Name)
		}
	}

	order := make([]string, 0, len(tables))
	done := make(map[string]bool, len(tables))
	for len(order) < len(tables) {
		next := ""
		for _, t := range tables {
			if !done[t.Name] && indegree[t.Name] == 0 {
				next = t.Name
				break
			}
		}
		if next == "" {
			var stuck []string
			for _, t := range tables {
				if !done[t.Name] {
					stuck = append(stuck, t.Name)
				}
			}
			return nil, &CycleError{Tables: stuck}
		}
		done[next] = true
		order = append(order, next)
		for _, c := range children[next] {
			indegree[c]--
		}
	}
	return order, nil
}
