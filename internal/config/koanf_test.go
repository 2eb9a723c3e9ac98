// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Warehouse.Driver != "" {
		t.Errorf("Warehouse.Driver should be resolved after load, got %q", cfg.Warehouse.Driver)
	}
	if cfg.Warehouse.BronzeSchema != "bronze" {
		t.Errorf("Warehouse.BronzeSchema = %q, want bronze", cfg.Warehouse.BronzeSchema)
	}
	if cfg.Pipeline.Environment != EnvDev {
		t.Errorf("Pipeline.Environment = %q, want dev", cfg.Pipeline.Environment)
	}
	if len(cfg.Source.Datasets) != len(DefaultDatasets) {
		t.Errorf("Source.Datasets has %d entries, want %d", len(cfg.Source.Datasets), len(DefaultDatasets))
	}
	if cfg.Source.Timeout != 60*time.Second {
		t.Errorf("Source.Timeout = %v, want 60s", cfg.Source.Timeout)
	}
	if cfg.NATS.Enabled {
		t.Error("NATS.Enabled should be false by default")
	}

	// Defaults must not alias the package-level slice.
	cfg.Source.Datasets[0] = "mutated"
	if DefaultDatasets[0] == "mutated" {
		t.Error("defaultConfig shares DefaultDatasets backing array")
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"GAMEBOT_ENV", "pipeline.environment"},
		{"DATABASE_URL", "warehouse.dsn"},
		{"DUCKDB_PATH", "warehouse.path"},
		{"SURVIVOR_BASE_RAW_URL", "source.base_raw_url"},
		{"GITHUB_TOKEN", "source.github_token"},
		{"GAMEBOT_CONTAINER_DEPLOYMENT", "pipeline.container_deployment"},
		{"LOG_LEVEL", "logging.level"},
		{"HTTP_PORT", "server.port"},
		{"NATS_URL", "nats.url"},
		{"HOME", ""},
		{"PATH", ""},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			if got := envTransformFunc(tt.env); got != tt.want {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
			}
		})
	}
}

func TestFindConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv(ConfigPathEnvVar, path)
	if got := findConfigFile(); got != path {
		t.Errorf("findConfigFile() = %q, want %q", got, path)
	}

	t.Setenv(ConfigPathEnvVar, filepath.Join(dir, "missing.yaml"))
	if got := findConfigFile(); got != "" {
		t.Errorf("findConfigFile() with missing file = %q, want empty", got)
	}
}

func TestLoadWithKoanfDefaults(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "none.yaml"))

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error: %v", err)
	}
	if cfg.Warehouse.Driver != DriverDuckDB {
		t.Errorf("Warehouse.Driver = %q, want duckdb", cfg.Warehouse.Driver)
	}
	if cfg.IsProd() {
		t.Error("default config should not be prod")
	}
}

func TestLoadWithKoanfEnvVars(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "none.yaml"))
	t.Setenv("GAMEBOT_ENV", "prod")
	t.Setenv("DATABASE_URL", "postgres://gamebot:secret@db:5432/survivor")
	t.Setenv("SURVIVOR_DATASETS", "season_summary, castaways ,episodes")
	t.Setenv("GAMEBOT_PROD_BRANCHES", "main,hotfix/*")
	t.Setenv("HTTP_PORT", "9090")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error: %v", err)
	}
	if cfg.Warehouse.Driver != DriverPostgres {
		t.Errorf("DSN without DB_DRIVER should select postgres, got %q", cfg.Warehouse.Driver)
	}
	if !cfg.IsProd() {
		t.Error("GAMEBOT_ENV=prod should be prod")
	}
	want := []string{"season_summary", "castaways", "episodes"}
	if strings.Join(cfg.Source.Datasets, ",") != strings.Join(want, ",") {
		t.Errorf("Source.Datasets = %v, want %v", cfg.Source.Datasets, want)
	}
	if len(cfg.Pipeline.AllowedProdBranches) != 2 || cfg.Pipeline.AllowedProdBranches[1] != "hotfix/*" {
		t.Errorf("AllowedProdBranches = %v", cfg.Pipeline.AllowedProdBranches)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
}

func TestLoadWithKoanfEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
warehouse:
  driver: duckdb
  path: /tmp/file.duckdb
pipeline:
  business_key_versions:
    advantage_movement: 2
logging:
  level: warn
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error: %v", err)
	}
	if cfg.Warehouse.Path != "/tmp/file.duckdb" {
		t.Errorf("Warehouse.Path = %q, want file value", cfg.Warehouse.Path)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, env should win over file", cfg.Logging.Level)
	}
	if cfg.Pipeline.BusinessKeyVersions["advantage_movement"] != 2 {
		t.Errorf("BusinessKeyVersions = %v", cfg.Pipeline.BusinessKeyVersions)
	}
}

func TestLoadWithKoanfValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"bad driver", map[string]string{"DB_DRIVER": "sqlite"}, "DB_DRIVER"},
		{"postgres without dsn", map[string]string{"DB_DRIVER": "postgres"}, "DATABASE_URL"},
		{"bad env", map[string]string{"GAMEBOT_ENV": "staging"}, "GAMEBOT_ENV"},
		{"bad base url", map[string]string{"SURVIVOR_BASE_RAW_URL": "ftp://example.com/data"}, "SURVIVOR_BASE_RAW_URL"},
		{"bad port", map[string]string{"HTTP_PORT": "70000"}, "HTTP_PORT"},
		{"bad branch pattern", map[string]string{"GAMEBOT_PROD_BRANCHES": "rel*ease"}, "wildcard"},
		{"nats bad url", map[string]string{"NATS_ENABLED": "true", "NATS_URL": "http://x"}, "NATS_URL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "none.yaml"))
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadWithKoanf()
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}
