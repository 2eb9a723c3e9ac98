// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package snapshot

import "fmt"

// FetchError reports a network or decode failure for one dataset. It is
// retryable by the caller.
type FetchError struct {
	Dataset string
	URL     string
	Op      string
	Err     error
}

func (e *FetchError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("fetch %s: %s: %v", e.Dataset, e.Op, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s %s: %v", e.Dataset, e.Op, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// StatusError is a non-success HTTP response.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %d", e.StatusCode)
}
