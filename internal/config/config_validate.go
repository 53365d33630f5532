// Cinematch - Content-Based Movie Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinematch

package config

import (
	"fmt"
	"strings"
)

// Validate checks that all configuration values are valid.
func (c *Config) Validate() error {
	if err := c.validateLogging(); err != nil {
		return err
	}

	if err := c.validateStorage(); err != nil {
		return err
	}

	if err := c.validateDurable(); err != nil {
		return err
	}

	if err := c.validateRefresh(); err != nil {
		return err
	}

	if err := c.validateRecommend(); err != nil {
		return err
	}

	if err := c.validateServer(); err != nil {
		return err
	}

	return c.validateNATS()
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic", "":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, got %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console", "":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) validateStorage() error {
	if !c.Cache.InMemory && c.Cache.Path == "" {
		return fmt.Errorf("CACHE_PATH is required unless CACHE_IN_MEMORY is set")
	}
	if c.Catalog.Path == "" {
		return fmt.Errorf("DUCKDB_PATH is required")
	}
	if c.Catalog.Threads < 0 {
		return fmt.Errorf("DUCKDB_THREADS must be >= 0, got %d", c.Catalog.Threads)
	}
	if c.Catalog.QueryTimeout <= 0 {
		return fmt.Errorf("CATALOG_QUERY_TIMEOUT must be positive, got %v", c.Catalog.QueryTimeout)
	}
	return nil
}

func (c *Config) validateDurable() error {
	switch c.Durable.Backend {
	case DurableBackendRedis:
		if c.Durable.Redis.Addr == "" {
			return fmt.Errorf("REDIS_ADDR is required when DURABLE_BACKEND is redis")
		}
		if c.Durable.Redis.DB < 0 {
			return fmt.Errorf("REDIS_DB must be >= 0, got %d", c.Durable.Redis.DB)
		}
	case DurableBackendMemory:
	default:
		return fmt.Errorf("DURABLE_BACKEND must be redis or memory, got %q", c.Durable.Backend)
	}

	b := c.Durable.Breaker
	if b.Enabled {
		if b.FailureThreshold < 1 {
			return fmt.Errorf("BREAKER_FAILURE_THRESHOLD must be >= 1, got %d", b.FailureThreshold)
		}
		if b.Timeout <= 0 {
			return fmt.Errorf("BREAKER_TIMEOUT must be positive, got %v", b.Timeout)
		}
	}
	return nil
}

func (c *Config) validateRefresh() error {
	r := c.Refresh
	if r.BatchSize < 1 {
		return fmt.Errorf("REFRESH_BATCH_SIZE must be >= 1, got %d", r.BatchSize)
	}
	if r.BatchDelay < 0 {
		return fmt.Errorf("REFRESH_BATCH_DELAY must be >= 0, got %v", r.BatchDelay)
	}
	if r.Enabled && r.Interval <= 0 {
		return fmt.Errorf("REFRESH_INTERVAL must be positive when refresh is enabled, got %v", r.Interval)
	}
	return validateWeightsPreset("REFRESH_WEIGHTS", r.Weights)
}

func (c *Config) validateRecommend() error {
	r := c.Recommend
	switch r.CacheSource {
	case CacheSourceDurable, CacheSourceCatalog:
	default:
		return fmt.Errorf("RECOMMEND_CACHE_SOURCE must be durable or catalog, got %q", r.CacheSource)
	}
	if err := validateWeightsPreset("RECOMMEND_WEIGHTS", r.Weights); err != nil {
		return err
	}
	if r.DefaultLimit < 1 {
		return fmt.Errorf("RECOMMEND_DEFAULT_LIMIT must be >= 1, got %d", r.DefaultLimit)
	}
	if r.MaxLimit < r.DefaultLimit {
		return fmt.Errorf("RECOMMEND_MAX_LIMIT must be >= RECOMMEND_DEFAULT_LIMIT, got %d < %d", r.MaxLimit, r.DefaultLimit)
	}
	if r.RequestTimeout < 0 {
		return fmt.Errorf("RECOMMEND_REQUEST_TIMEOUT must be >= 0, got %v", r.RequestTimeout)
	}
	if r.HydrationBatchSize < 1 {
		return fmt.Errorf("RECOMMEND_HYDRATION_BATCH_SIZE must be >= 1, got %d", r.HydrationBatchSize)
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("HTTP_SHUTDOWN_TIMEOUT must be positive, got %v", c.Server.ShutdownTimeout)
	}
	if !c.Server.RateLimitDisabled && c.Server.RateLimitReqs < 1 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be >= 1 unless rate limiting is disabled, got %d", c.Server.RateLimitReqs)
	}
	return nil
}

func (c *Config) validateNATS() error {
	n := c.NATS
	if !n.Enabled {
		return nil
	}
	if n.EmbeddedServer {
		if n.Port != -1 && (n.Port < 1 || n.Port > 65535) {
			return fmt.Errorf("NATS_PORT must be between 1 and 65535 (or -1 for random), got %d", n.Port)
		}
	} else if n.URL == "" {
		return fmt.Errorf("NATS_URL is required when NATS is enabled without the embedded server")
	}
	if n.Subject == "" {
		return fmt.Errorf("NATS_SUBJECT is required when NATS is enabled")
	}
	return nil
}

func validateWeightsPreset(name, preset string) error {
	switch strings.ToLower(strings.TrimSpace(preset)) {
	case "batch", "local":
		return nil
	default:
		return fmt.Errorf("%s must be batch or local, got %q", name, preset)
	}
}
