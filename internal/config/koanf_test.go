// Cinematch - Content-Based Movie Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinematch

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolateEnv unsets every mapped variable and CONFIG_PATH for the duration
// of the test.
func isolateEnv(t *testing.T) {
	t.Helper()
	keys := []string{ConfigPathEnvVar}
	for k := range envMappings {
		keys = append(keys, strings.ToUpper(k))
	}
	for _, k := range keys {
		if v, ok := os.LookupEnv(k); ok {
			os.Unsetenv(k)
			t.Cleanup(func() { os.Setenv(k, v) })
		}
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to create config file: %v", err)
	}
	return path
}

// TestDefaultConfig verifies that defaultConfig() returns proper defaults
func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Refresh.BatchSize != 50 {
		t.Errorf("Refresh.BatchSize = %d, want 50", cfg.Refresh.BatchSize)
	}
	if cfg.Refresh.BatchDelay != time.Second {
		t.Errorf("Refresh.BatchDelay = %v, want 1s", cfg.Refresh.BatchDelay)
	}
	if cfg.Refresh.Weights != "batch" {
		t.Errorf("Refresh.Weights = %q, want batch", cfg.Refresh.Weights)
	}
	if cfg.Recommend.Weights != "local" {
		t.Errorf("Recommend.Weights = %q, want local", cfg.Recommend.Weights)
	}
	if cfg.Recommend.DefaultLimit != 20 || cfg.Recommend.MaxLimit != 100 {
		t.Errorf("Recommend limits = %d/%d, want 20/100", cfg.Recommend.DefaultLimit, cfg.Recommend.MaxLimit)
	}
	if cfg.Recommend.CacheSource != CacheSourceDurable {
		t.Errorf("Recommend.CacheSource = %q, want durable", cfg.Recommend.CacheSource)
	}
	if cfg.Durable.Backend != DurableBackendRedis {
		t.Errorf("Durable.Backend = %q, want redis", cfg.Durable.Backend)
	}
	if cfg.Durable.Redis.KeyPrefix != "cinematch" {
		t.Errorf("Durable.Redis.KeyPrefix = %q, want cinematch", cfg.Durable.Redis.KeyPrefix)
	}
	if !cfg.NATS.Enabled || !cfg.NATS.EmbeddedServer {
		t.Error("NATS should be enabled with the embedded server by default")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

// TestEnvTransformFunc verifies environment variable to config path mapping
func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"LOG_LEVEL", "logging.level"},
		{"DUCKDB_PATH", "catalog.path"},
		{"REDIS_ADDR", "durable.redis.addr"},
		{"BREAKER_FAILURE_THRESHOLD", "durable.breaker.failure_threshold"},
		{"REFRESH_BATCH_DELAY", "refresh.batch_delay"},
		{"RECOMMEND_CACHE_SOURCE", "recommend.cache_source"},
		{"HTTP_PORT", "server.port"},
		{"CORS_ORIGINS", "server.cors_origins"},
		{"NATS_EMBEDDED", "nats.embedded_server"},
		{"log_level", "logging.level"},
		{"HOME", ""},
		{"PATH", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := envTransformFunc(tt.input); got != tt.expected {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

// TestFindConfigFile tests config file discovery
func TestFindConfigFile(t *testing.T) {
	isolateEnv(t)

	t.Run("env path", func(t *testing.T) {
		path := writeConfigFile(t, "logging:\n  level: debug\n")
		t.Setenv(ConfigPathEnvVar, path)
		if got := findConfigFile(); got != path {
			t.Errorf("findConfigFile() = %q, want %q", got, path)
		}
	})

	t.Run("missing env path", func(t *testing.T) {
		t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "absent.yaml"))
		if got := findConfigFile(); got != "" {
			t.Errorf("findConfigFile() = %q, want empty", got)
		}
	})

	t.Run("default path in working directory", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "config.yml"), []byte("{}\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		t.Chdir(dir)
		if got := findConfigFile(); got != "config.yml" {
			t.Errorf("findConfigFile() = %q, want config.yml", got)
		}
	})
}

// TestLoadWithKoanfEnvVars tests loading configuration from environment variables
func TestLoadWithKoanfEnvVars(t *testing.T) {
	isolateEnv(t)

	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("REFRESH_BATCH_SIZE", "25")
	t.Setenv("REFRESH_BATCH_DELAY", "250ms")
	t.Setenv("DURABLE_BACKEND", "memory")
	t.Setenv("RECOMMEND_CACHE_SOURCE", "catalog")
	t.Setenv("CACHE_IN_MEMORY", "true")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Refresh.BatchSize != 25 {
		t.Errorf("Refresh.BatchSize = %d, want 25", cfg.Refresh.BatchSize)
	}
	if cfg.Refresh.BatchDelay != 250*time.Millisecond {
		t.Errorf("Refresh.BatchDelay = %v, want 250ms", cfg.Refresh.BatchDelay)
	}
	if cfg.Durable.Backend != DurableBackendMemory {
		t.Errorf("Durable.Backend = %q, want memory", cfg.Durable.Backend)
	}
	if cfg.Recommend.CacheSource != CacheSourceCatalog {
		t.Errorf("Recommend.CacheSource = %q, want catalog", cfg.Recommend.CacheSource)
	}
	if !cfg.Cache.InMemory {
		t.Error("Cache.InMemory should be true")
	}

	// Defaults still apply for unset values.
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want 0.0.0.0 (default)", cfg.Server.Host)
	}
	if cfg.Catalog.MaxMemory != "1GB" {
		t.Errorf("Catalog.MaxMemory = %q, want 1GB (default)", cfg.Catalog.MaxMemory)
	}
}

// TestLoadWithKoanfConfigFile tests loading configuration from a YAML file
func TestLoadWithKoanfConfigFile(t *testing.T) {
	isolateEnv(t)

	path := writeConfigFile(t, `
logging:
  level: warn
  format: console

catalog:
  path: /tmp/catalog.duckdb
  query_timeout: 5s

durable:
  backend: redis
  redis:
    addr: redis.internal:6379
    db: 2
  breaker:
    failure_threshold: 3

refresh:
  interval: 6h
  weights: local

server:
  port: 8888
  cors_origins:
    - https://app.example.com
`)
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Logging.Level != "warn" || cfg.Logging.Format != "console" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if cfg.Catalog.Path != "/tmp/catalog.duckdb" || cfg.Catalog.QueryTimeout != 5*time.Second {
		t.Errorf("Catalog = %+v", cfg.Catalog)
	}
	if cfg.Durable.Redis.Addr != "redis.internal:6379" || cfg.Durable.Redis.DB != 2 {
		t.Errorf("Durable.Redis = %+v", cfg.Durable.Redis)
	}
	if cfg.Durable.Breaker.FailureThreshold != 3 {
		t.Errorf("Breaker.FailureThreshold = %d, want 3", cfg.Durable.Breaker.FailureThreshold)
	}
	if !cfg.Durable.Breaker.Enabled {
		t.Error("Breaker.Enabled should keep its default")
	}
	if cfg.Refresh.Interval != 6*time.Hour || cfg.Refresh.Weights != "local" {
		t.Errorf("Refresh = %+v", cfg.Refresh)
	}
	if cfg.Server.Port != 8888 {
		t.Errorf("Server.Port = %d, want 8888", cfg.Server.Port)
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "https://app.example.com" {
		t.Errorf("Server.CORSOrigins = %v", cfg.Server.CORSOrigins)
	}
	if cfg.Refresh.BatchSize != 50 {
		t.Errorf("Refresh.BatchSize = %d, want 50 (default)", cfg.Refresh.BatchSize)
	}
}

// TestLoadWithKoanfEnvOverridesFile tests that env vars override config file
func TestLoadWithKoanfEnvOverridesFile(t *testing.T) {
	isolateEnv(t)

	path := writeConfigFile(t, `
server:
  port: 8888
logging:
  level: warn
`)
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("HTTP_PORT", "7777")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Server.Port != 7777 {
		t.Errorf("Server.Port = %d, want 7777 (env override)", cfg.Server.Port)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn (from file)", cfg.Logging.Level)
	}
}

// TestLoadWithKoanfSliceFromEnv tests comma-separated slice parsing
func TestLoadWithKoanfSliceFromEnv(t *testing.T) {
	isolateEnv(t)
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com,,")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	want := []string{"https://a.example.com", "https://b.example.com"}
	if len(cfg.Server.CORSOrigins) != len(want) {
		t.Fatalf("CORSOrigins = %v, want %v", cfg.Server.CORSOrigins, want)
	}
	for i := range want {
		if cfg.Server.CORSOrigins[i] != want[i] {
			t.Errorf("CORSOrigins[%d] = %q, want %q", i, cfg.Server.CORSOrigins[i], want[i])
		}
	}
}

// TestLoadWithKoanfValidation tests that invalid values are rejected
func TestLoadWithKoanfValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"bad durable backend", map[string]string{"DURABLE_BACKEND": "s3"}, "DURABLE_BACKEND"},
		{"zero batch size", map[string]string{"REFRESH_BATCH_SIZE": "0"}, "REFRESH_BATCH_SIZE"},
		{"unknown weights", map[string]string{"REFRESH_WEIGHTS": "heavy"}, "REFRESH_WEIGHTS"},
		{"bad cache source", map[string]string{"RECOMMEND_CACHE_SOURCE": "disk"}, "RECOMMEND_CACHE_SOURCE"},
		{"max below default", map[string]string{"RECOMMEND_MAX_LIMIT": "5"}, "RECOMMEND_MAX_LIMIT"},
		{"bad port", map[string]string{"HTTP_PORT": "70000"}, "HTTP_PORT"},
		{"bad log level", map[string]string{"LOG_LEVEL": "loud"}, "LOG_LEVEL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadWithKoanf()
			if err == nil {
				t.Fatal("LoadWithKoanf() should fail")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}
