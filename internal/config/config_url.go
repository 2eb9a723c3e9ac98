// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

var (
	httpSchemes     = []string{"http", "https"}
	natsSchemes     = []string{"nats", "tls", "ws", "wss"}
	postgresSchemes = []string{"postgres", "postgresql"}
)

// checkURL parses raw and requires one of schemes and a host. field names
// the setting in error messages.
func checkURL(raw, field string, schemes []string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	if !slices.Contains(schemes, u.Scheme) {
		return nil, fmt.Errorf("%s: scheme must be one of %s, got %q", field, strings.Join(schemes, ", "), u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%s: host is required", field)
	}
	return u, nil
}

// validateHTTPURL accepts dataset directory URLs; a query string would be
// lost when file names are appended.
func validateHTTPURL(raw, field string) error {
	u, err := checkURL(raw, field, httpSchemes)
	if err != nil {
		return err
	}
	if u.RawQuery != "" {
		return fmt.Errorf("%s: query parameters are not allowed, remove ?%s", field, u.RawQuery)
	}
	return nil
}

func validateNATSURL(raw string) error {
	_, err := checkURL(raw, "NATS_URL", natsSchemes)
	return err
}

func validatePostgresDSN(dsn string) error {
	_, err := checkURL(dsn, "DATABASE_URL", postgresSchemes)
	return err
}
