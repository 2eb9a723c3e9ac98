// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package config

import (
	"fmt"
	"regexp"
	"strings"
)

var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateWarehouse(); err != nil {
		return err
	}

	if err := c.validateSource(); err != nil {
		return err
	}

	if err := c.validatePipeline(); err != nil {
		return err
	}

	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateNATS(); err != nil {
		return err
	}

	if err := c.validateWatcher(); err != nil {
		return err
	}

	return c.validateLogging()
}

func (c *Config) validateWarehouse() error {
	w := c.Warehouse
	switch w.Driver {
	case DriverDuckDB:
		if w.Path == "" {
			return fmt.Errorf("DUCKDB_PATH is required when DB_DRIVER=duckdb")
		}
	case DriverPostgres:
		if w.DSN == "" {
			return fmt.Errorf("DATABASE_URL is required when DB_DRIVER=postgres")
		}
		if err := validatePostgresDSN(w.DSN); err != nil {
			return err
		}
	default:
		return fmt.Errorf("DB_DRIVER must be duckdb or postgres, got: %q", w.Driver)
	}

	for name, schema := range map[string]string{
		"BRONZE_SCHEMA": w.BronzeSchema,
		"SILVER_SCHEMA": w.SilverSchema,
		"GOLD_SCHEMA":   w.GoldSchema,
	} {
		if !identifierPattern.MatchString(schema) {
			return fmt.Errorf("%s must be a lowercase SQL identifier, got: %q", name, schema)
		}
	}
	if w.BronzeSchema == w.SilverSchema || w.SilverSchema == w.GoldSchema || w.BronzeSchema == w.GoldSchema {
		return fmt.Errorf("bronze, silver and gold schemas must be distinct")
	}

	if w.Threads < 0 {
		return fmt.Errorf("DUCKDB_THREADS must be >= 0, got: %d", w.Threads)
	}
	if w.MaxOpenConns < 1 {
		return fmt.Errorf("DB_MAX_OPEN_CONNS must be at least 1, got: %d", w.MaxOpenConns)
	}
	return nil
}

func (c *Config) validateSource() error {
	s := c.Source
	if err := validateHTTPURL(s.BaseRawURL, "SURVIVOR_BASE_RAW_URL"); err != nil {
		return err
	}
	if s.JSONRawURL != "" {
		if err := validateHTTPURL(s.JSONRawURL, "SURVIVOR_JSON_RAW_URL"); err != nil {
			return err
		}
	}
	if s.CommitsAPIURL != "" {
		if err := validateHTTPURL(s.CommitsAPIURL, "SURVIVOR_COMMITS_API_URL"); err != nil {
			return err
		}
	}

	if len(s.Datasets) == 0 {
		return fmt.Errorf("SURVIVOR_DATASETS must name at least one dataset")
	}
	seen := make(map[string]bool, len(s.Datasets))
	for _, ds := range s.Datasets {
		if !identifierPattern.MatchString(ds) {
			return fmt.Errorf("invalid dataset name: %q", ds)
		}
		if seen[ds] {
			return fmt.Errorf("dataset listed twice: %q", ds)
		}
		seen[ds] = true
	}

	if s.Timeout <= 0 {
		return fmt.Errorf("SOURCE_TIMEOUT must be positive, got: %v", s.Timeout)
	}
	if s.RateLimitPerSecond < 0 {
		return fmt.Errorf("SOURCE_RATE_LIMIT must be >= 0, got: %v", s.RateLimitPerSecond)
	}
	if s.MaxRetries < 0 {
		return fmt.Errorf("SOURCE_MAX_RETRIES must be >= 0, got: %d", s.MaxRetries)
	}
	return nil
}

func (c *Config) validatePipeline() error {
	p := c.Pipeline
	switch p.Environment {
	case EnvDev, EnvProd:
	default:
		return fmt.Errorf("GAMEBOT_ENV must be dev or prod, got: %q", p.Environment)
	}

	if p.Environment == EnvProd && len(p.AllowedProdBranches) == 0 {
		return fmt.Errorf("GAMEBOT_PROD_BRANCHES must not be empty in prod")
	}
	for _, b := range p.AllowedProdBranches {
		if strings.TrimSpace(b) == "" {
			return fmt.Errorf("GAMEBOT_PROD_BRANCHES contains an empty entry")
		}
		if strings.Contains(strings.TrimSuffix(b, "/*"), "*") {
			return fmt.Errorf("branch pattern %q: only a trailing /* wildcard is supported", b)
		}
	}

	for table, version := range p.BusinessKeyVersions {
		if version < 1 {
			return fmt.Errorf("business key version for %s must be >= 1, got: %d", table, version)
		}
	}

	if p.StaleRunAfter <= 0 {
		return fmt.Errorf("GAMEBOT_STALE_RUN_AFTER must be positive, got: %v", p.StaleRunAfter)
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got: %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got: %v", c.Server.Timeout)
	}
	if c.Server.RateLimitRequests < 1 {
		return fmt.Errorf("RATE_LIMIT_REQS must be at least 1, got: %d", c.Server.RateLimitRequests)
	}
	if c.Server.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got: %v", c.Server.RateLimitWindow)
	}
	return nil
}

func (c *Config) validateNATS() error {
	if !c.NATS.Enabled {
		return nil
	}
	if err := validateNATSURL(c.NATS.URL); err != nil {
		return err
	}
	if c.NATS.Subject == "" {
		return fmt.Errorf("NATS_SUBJECT is required when NATS_ENABLED=true")
	}
	return nil
}

func (c *Config) validateWatcher() error {
	if c.Watcher.Enabled && c.Watcher.Interval <= 0 {
		return fmt.Errorf("WATCHER_INTERVAL must be positive, got: %v", c.Watcher.Interval)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic", "disabled", "":
	default:
		return fmt.Errorf("LOG_LEVEL is invalid: %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console", "":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got: %q", c.Logging.Format)
	}
	return nil
}
