// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

//go:build integration

package testinfra

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
)

var (
	dockerOnce      sync.Once
	dockerReachable bool
)

// SkipIfNoDocker skips t when no Docker daemon answers. The probe runs once
// per test binary.
func SkipIfNoDocker(t *testing.T) {
	t.Helper()
	dockerOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		provider, err := testcontainers.NewDockerProvider()
		if err != nil {
			return
		}
		defer provider.Close() //nolint:errcheck
		dockerReachable = provider.Health(ctx) == nil
	})
	if !dockerReachable {
		t.Skip("Docker daemon not reachable")
	}
}

// CleanupContainer terminates c, logging instead of failing.
func CleanupContainer(t *testing.T, c testcontainers.Container) {
	t.Helper()
	if err := testcontainers.TerminateContainer(c); err != nil {
		t.Logf("Warning: failed to terminate container: %v", err)
	}
}
