// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/tomtom215/gamebot/internal/logging"
	"github.com/tomtom215/gamebot/internal/notify"
)

// EmbeddedNATSService runs an in-process NATS server for schema events.
// Publishers reconnect on their own, so they may start before it.
type EmbeddedNATSService struct {
	host string
	port int
	name string

	mu     sync.Mutex
	server *notify.EmbeddedServer
	ready  chan struct{}
}

// NewEmbeddedNATSService serves on host:port; port -1 picks a free one.
func NewEmbeddedNATSService(host string, port int) *EmbeddedNATSService {
	return &EmbeddedNATSService{
		host:  host,
		port:  port,
		name:  "nats-embedded",
		ready: make(chan struct{}),
	}
}

// Serve implements suture.Service.
func (s *EmbeddedNATSService) Serve(ctx context.Context) error {
	srv, err := notify.StartEmbeddedServer(s.host, s.port)
	if err != nil {
		return fmt.Errorf("embedded NATS server start failed: %w", err)
	}

	s.mu.Lock()
	s.server = srv
	select {
	case <-s.ready:
	default:
		close(s.ready)
	}
	s.mu.Unlock()
	logging.Info().Str("url", srv.ClientURL()).Msg("Embedded NATS server started")

	<-ctx.Done()

	s.mu.Lock()
	s.server = nil
	s.mu.Unlock()
	srv.Shutdown()
	logging.Info().Msg("Embedded NATS server stopped")
	return ctx.Err()
}

// Ready is closed once the server first accepts connections.
func (s *EmbeddedNATSService) Ready() <-chan struct{} {
	return s.ready
}

// ClientURL returns the running server's URL, or "" when stopped.
func (s *EmbeddedNATSService) ClientURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return ""
	}
	return s.server.ClientURL()
}

// String implements fmt.Stringer for suture's logs.
func (s *EmbeddedNATSService) String() string {
	return s.name
}
