// Cinematch - Content-Based Movie Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinematch

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

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/cinematch/config.yaml",
	"/etc/cinematch/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Cache: CacheConfig{
			Path:       "/data/vectorcache",
			InMemory:   false,
			SyncWrites: false,
		},
		Catalog: CatalogConfig{
			Path:         "/data/cinematch.duckdb",
			MaxMemory:    "1GB",
			Threads:      0, // 0 = use runtime.NumCPU()
			QueryTimeout: 30 * time.Second,
		},
		Durable: DurableConfig{
			Backend: DurableBackendRedis,
			Redis: RedisConfig{
				Addr:        "127.0.0.1:6379",
				DB:          0,
				KeyPrefix:   "cinematch",
				DialTimeout: 5 * time.Second,
			},
			Breaker: BreakerConfig{
				Enabled:          true,
				MaxRequests:      1,
				Interval:         time.Minute,
				Timeout:          30 * time.Second,
				FailureThreshold: 5,
			},
		},
		Refresh: RefreshConfig{
			Enabled:      true,
			Interval:     24 * time.Hour,
			RunOnStartup: true,
			BatchSize:    50,
			BatchDelay:   time.Second,
			Weights:      "batch",
		},
		Recommend: RecommendConfig{
			CacheSource:        CacheSourceDurable,
			Weights:            "local",
			DefaultLimit:       20,
			MaxLimit:           100,
			RequestTimeout:     30 * time.Second,
			HydrationBatchSize: 500,
		},
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8080,
			Timeout:           30 * time.Second,
			ShutdownTimeout:   15 * time.Second,
			CORSOrigins:       []string{},
			RateLimitReqs:     300,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
		NATS: NATSConfig{
			Enabled:        true,
			URL:            "nats://127.0.0.1:4222",
			EmbeddedServer: true,
			Host:           "127.0.0.1",
			Port:           4222,
			Subject:        "cinematch.recommend",
			QueueGroup:     "cinematch-recommenders",
			RequestTimeout: 30 * time.Second,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources.
//
// Loading order (later sources override earlier):
//  1. Struct defaults
//  2. Config file (if found)
//  3. Environment variables
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Comma-separated env values for slice fields need splitting.
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns $CONFIG_PATH if it exists, else the first of
// DefaultConfigPaths that exists, else "".
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

// sliceConfigPaths lists config paths that should be parsed as comma-separated slices.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated string values to slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML or defaults).
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		if strVal, ok := val.(string); ok {
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to config paths.
var envMappings = map[string]string{
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	"cache_path":        "cache.path",
	"cache_in_memory":   "cache.in_memory",
	"cache_sync_writes": "cache.sync_writes",

	"duckdb_path":           "catalog.path",
	"duckdb_max_memory":     "catalog.max_memory",
	"duckdb_threads":        "catalog.threads",
	"catalog_query_timeout": "catalog.query_timeout",

	"durable_backend":           "durable.backend",
	"redis_addr":                "durable.redis.addr",
	"redis_password":            "durable.redis.password",
	"redis_db":                  "durable.redis.db",
	"redis_key_prefix":          "durable.redis.key_prefix",
	"redis_dial_timeout":        "durable.redis.dial_timeout",
	"breaker_enabled":           "durable.breaker.enabled",
	"breaker_max_requests":      "durable.breaker.max_requests",
	"breaker_interval":          "durable.breaker.interval",
	"breaker_timeout":           "durable.breaker.timeout",
	"breaker_failure_threshold": "durable.breaker.failure_threshold",

	"refresh_enabled":        "refresh.enabled",
	"refresh_interval":       "refresh.interval",
	"refresh_run_on_startup": "refresh.run_on_startup",
	"refresh_batch_size":     "refresh.batch_size",
	"refresh_batch_delay":    "refresh.batch_delay",
	"refresh_weights":        "refresh.weights",

	"recommend_cache_source":         "recommend.cache_source",
	"recommend_weights":              "recommend.weights",
	"recommend_default_limit":        "recommend.default_limit",
	"recommend_max_limit":            "recommend.max_limit",
	"recommend_request_timeout":      "recommend.request_timeout",
	"recommend_hydration_batch_size": "recommend.hydration_batch_size",

	"http_host":             "server.host",
	"http_port":             "server.port",
	"http_timeout":          "server.timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"cors_origins":          "server.cors_origins",
	"rate_limit_requests":   "server.rate_limit_reqs",
	"rate_limit_window":     "server.rate_limit_window",
	"disable_rate_limit":    "server.rate_limit_disabled",

	"nats_enabled":         "nats.enabled",
	"nats_url":             "nats.url",
	"nats_embedded":        "nats.embedded_server",
	"nats_host":            "nats.host",
	"nats_port":            "nats.port",
	"nats_subject":         "nats.subject",
	"nats_queue_group":     "nats.queue_group",
	"nats_request_timeout": "nats.request_timeout",
}

// envTransformFunc maps environment variable names to config paths.
// Unmapped keys return "" so unrelated variables do not pollute config.
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
