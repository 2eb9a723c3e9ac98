// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, first match wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/gamebot/config.yaml",
	"/etc/gamebot/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultDatasets is the upstream dataset set loaded when none is configured.
// Parents precede children but the registry orders them regardless.
var DefaultDatasets = []string{
	"season_summary",
	"castaway_details",
	"castaways",
	"episodes",
	"tribe_mapping",
	"boot_mapping",
	"vote_history",
	"jury_votes",
	"advantage_details",
	"advantage_movement",
	"challenge_description",
	"challenge_results",
	"journeys",
	"confessionals",
}

func defaultConfig() *Config {
	return &Config{
		Warehouse: WarehouseConfig{
			Driver:       "",
			Path:         "/data/gamebot.duckdb",
			MaxMemory:    "1GB",
			Threads:      0,
			BronzeSchema: "bronze",
			SilverSchema: "silver",
			GoldSchema:   "gold",
			MaxOpenConns: 4,
		},
		Source: SourceConfig{
			BaseRawURL:         "https://raw.githubusercontent.com/doehm/survivoR/master/data",
			JSONRawURL:         "https://raw.githubusercontent.com/doehm/survivoR/master/dev/json",
			CommitsAPIURL:      "https://api.github.com/repos/doehm/survivoR/commits",
			Datasets:           append([]string(nil), DefaultDatasets...),
			Timeout:            60 * time.Second,
			RateLimitPerSecond: 2,
			MaxRetries:         3,
			RetryBaseDelay:     time.Second,
		},
		Cache: CacheConfig{
			Dir: "/data/cache",
		},
		Pipeline: PipelineConfig{
			Environment:         "dev",
			AllowedProdBranches: []string{"main", "release/*", "data-release/*"},
			StaleRunAfter:       6 * time.Hour,
			ReportDir:           "/data/reports",
		},
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8080,
			Timeout:           30 * time.Second,
			RateLimitRequests: 30,
			RateLimitWindow:   time.Minute,
		},
		NATS: NATSConfig{
			Enabled:        false,
			URL:            "nats://127.0.0.1:4222",
			EmbeddedServer: true,
			Subject:        "gamebot.schema",
		},
		Watcher: WatcherConfig{
			Enabled:  false,
			Interval: 6 * time.Hour,
			AutoLoad: false,
		},
		Features: FeaturesConfig{
			OutputDir: "/data/gold",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from defaults, the optional file and the environment.
func Load() (*Config, error) {
	return LoadWithKoanf()
}

// LoadWithKoanf performs the layered load and validates the result.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// GAMEBOT_ENV -> pipeline.environment, DATABASE_URL -> warehouse.dsn
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	// Without an explicit driver a DSN selects postgres.
	if cfg.Warehouse.Driver == "" {
		cfg.Warehouse.Driver = DriverDuckDB
		if cfg.Warehouse.DSN != "" {
			cfg.Warehouse.Driver = DriverPostgres
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are parsed from comma-separated env values.
var sliceConfigPaths = []string{
	"source.datasets",
	"pipeline.allowed_prod_branches",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

var envMappings = map[string]string{
	// warehouse
	"db_driver":         "warehouse.driver",
	"duckdb_path":       "warehouse.path",
	"database_url":      "warehouse.dsn",
	"duckdb_max_memory": "warehouse.max_memory",
	"duckdb_threads":    "warehouse.threads",
	"bronze_schema":     "warehouse.bronze_schema",
	"silver_schema":     "warehouse.silver_schema",
	"gold_schema":       "warehouse.gold_schema",
	"db_max_open_conns": "warehouse.max_open_conns",

	// source
	"survivor_base_raw_url":    "source.base_raw_url",
	"survivor_json_raw_url":    "source.json_raw_url",
	"survivor_commits_api_url": "source.commits_api_url",
	"github_token":             "source.github_token",
	"survivor_datasets":        "source.datasets",
	"source_timeout":           "source.timeout",
	"source_rate_limit":        "source.rate_limit_per_second",
	"source_max_retries":       "source.max_retries",
	"force_refresh":            "source.force_refresh",

	// cache
	"gamebot_cache_dir":   "cache.dir",
	"gamebot_badger_path": "cache.badger_path",

	// pipeline
	"gamebot_env":                  "pipeline.environment",
	"gamebot_prod_branches":        "pipeline.allowed_prod_branches",
	"gamebot_container_deployment": "pipeline.container_deployment",
	"gamebot_git_branch":           "pipeline.git_branch",
	"gamebot_git_commit":           "pipeline.git_commit",
	"gamebot_strict_run":           "pipeline.strict_run",
	"gamebot_stale_run_after":      "pipeline.stale_run_after",
	"gamebot_report_dir":           "pipeline.report_dir",

	// server
	"http_host":         "server.host",
	"http_port":         "server.port",
	"http_timeout":      "server.timeout",
	"rate_limit_reqs":   "server.rate_limit_requests",
	"rate_limit_window": "server.rate_limit_window",

	// nats
	"nats_enabled":  "nats.enabled",
	"nats_url":      "nats.url",
	"nats_embedded": "nats.embedded_server",
	"nats_subject":  "nats.subject",

	// watcher
	"watcher_enabled":   "watcher.enabled",
	"watcher_interval":  "watcher.interval",
	"watcher_auto_load": "watcher.auto_load",

	// features
	"gamebot_gold_dir": "features.output_dir",

	// logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps environment variable names to koanf paths.
// Unmapped variables return "" and are skipped.
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
