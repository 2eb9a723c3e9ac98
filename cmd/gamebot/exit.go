// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package main

import "errors"

// Process exit codes.
const (
	exitFailure  = 1
	exitUsage    = 2
	exitUpstream = 3
)

// exitError carries a process exit code.
type exitError struct {
	code    int
	message string
	err     error
}

func (e *exitError) Error() string {
	switch {
	case e.err == nil:
		return e.message
	case e.message == "":
		return e.err.Error()
	default:
		return e.message + ": " + e.err.Error()
	}
}

func (e *exitError) Unwrap() error { return e.err }

func withExitCode(code int, message string, err error) *exitError {
	return &exitError{code: code, message: message, err: err}
}

// exitCode returns the code of the first exitError in err's chain, else 1.
func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitFailure
}
