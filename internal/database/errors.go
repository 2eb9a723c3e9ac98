// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package database

import (
	"fmt"
	"io"

	"github.com/tomtom215/gamebot/internal/logging"
)

// SchemaPrerequisiteError reports a missing privilege or capability. It is
// returned before any DDL or data write.
type SchemaPrerequisiteError struct {
	Requirement string
	Err         error
}

func (e *SchemaPrerequisiteError) Error() string {
	return fmt.Sprintf("schema prerequisite not met: %s: %v", e.Requirement, e.Err)
}

func (e *SchemaPrerequisiteError) Unwrap() error {
	return e.Err
}

// closeWithLog closes a resource and logs a failure.
func closeWithLog(closer io.Closer, resourceType string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.Warn().Str("type", resourceType).Err(err).Msg("Failed to close resource")
	}
}

// closeQuietly closes a resource on an error path where the close error is not actionable.
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close()
	}
}
