// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type ctxKey int

const (
	keyCorrelationID ctxKey = iota
	keyRunID
	keyLogger
)

func stringValue(ctx context.Context, key ctxKey) string {
	s, _ := ctx.Value(key).(string)
	return s
}

// GenerateCorrelationID returns a short random ID for one request or load.
func GenerateCorrelationID() string {
	return uuid.NewString()[:8]
}

// ContextWithCorrelationID attaches id to ctx.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyCorrelationID, id)
}

// CorrelationIDFromContext returns the correlation ID or "".
func CorrelationIDFromContext(ctx context.Context) string {
	return stringValue(ctx, keyCorrelationID)
}

// ContextWithRunID attaches the ingestion run ID to ctx.
func ContextWithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, keyRunID, runID)
}

// RunIDFromContext returns the ingestion run ID or "".
func RunIDFromContext(ctx context.Context) string {
	return stringValue(ctx, keyRunID)
}

// ContextWithLogger makes Ctx start from l instead of the process logger.
//
//nolint:gocritic // zerolog.Logger is passed by value
func ContextWithLogger(ctx context.Context, l zerolog.Logger) context.Context {
	return context.WithValue(ctx, keyLogger, l)
}

// Ctx returns a logger carrying whatever run_id and correlation_id ctx holds.
//
//	logging.Ctx(ctx).Info().Str("table", name).Msg("Merging table")
func Ctx(ctx context.Context) *zerolog.Logger {
	base, ok := ctx.Value(keyLogger).(zerolog.Logger)
	if !ok {
		base = Logger()
	}
	fields := base.With()
	if v := RunIDFromContext(ctx); v != "" {
		fields = fields.Str("run_id", v)
	}
	if v := CorrelationIDFromContext(ctx); v != "" {
		fields = fields.Str("correlation_id", v)
	}
	l := fields.Logger()
	return &l
}
