// Cinematch - Content-Based Movie Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinematch

package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: built-in defaults for every setting
//  2. Config File: optional YAML file
//  3. Environment Variables: override any mapped setting
type Config struct {
	Logging   LoggingConfig   `koanf:"logging"`
	Cache     CacheConfig     `koanf:"cache"`
	Catalog   CatalogConfig   `koanf:"catalog"`
	Durable   DurableConfig   `koanf:"durable"`
	Refresh   RefreshConfig   `koanf:"refresh"`
	Recommend RecommendConfig `koanf:"recommend"`
	Server    ServerConfig    `koanf:"server"`
	NATS      NATSConfig      `koanf:"nats"`
}

// LoggingConfig holds logging settings for zerolog.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: true/false - include caller file:line (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// CacheConfig configures the local BadgerDB vector cache.
type CacheConfig struct {
	// Path is the BadgerDB directory.
	// Default: /data/vectorcache
	Path string `koanf:"path"`

	// InMemory keeps the cache in memory; Path is ignored.
	InMemory bool `koanf:"in_memory"`

	// SyncWrites fsyncs every transaction.
	SyncWrites bool `koanf:"sync_writes"`
}

// CatalogConfig configures the DuckDB catalog.
type CatalogConfig struct {
	// Path is the DuckDB database file.
	// Default: /data/cinematch.duckdb
	Path string `koanf:"path"`

	// MaxMemory is the DuckDB memory limit.
	// Default: 1GB
	MaxMemory string `koanf:"max_memory"`

	// Threads is the DuckDB worker count. 0 uses runtime.NumCPU().
	Threads int `koanf:"threads"`

	// QueryTimeout bounds each catalog query.
	// Default: 30s
	QueryTimeout time.Duration `koanf:"query_timeout"`
}

// Durable store backends.
const (
	DurableBackendRedis  = "redis"
	DurableBackendMemory = "memory"
)

// DurableConfig configures the durable vector store written by the refresh
// job.
type DurableConfig struct {
	// Backend is "redis" or "memory".
	// Default: redis
	Backend string `koanf:"backend"`

	Redis   RedisConfig   `koanf:"redis"`
	Breaker BreakerConfig `koanf:"breaker"`
}

// RedisConfig configures the Redis durable store.
type RedisConfig struct {
	Addr        string        `koanf:"addr"`
	Password    string        `koanf:"password"`
	DB          int           `koanf:"db"`
	KeyPrefix   string        `koanf:"key_prefix"`
	DialTimeout time.Duration `koanf:"dial_timeout"`
}

// BreakerConfig configures the circuit breaker around durable store calls.
type BreakerConfig struct {
	// Enabled wraps the durable store in a circuit breaker.
	// Default: true
	Enabled bool `koanf:"enabled"`

	// MaxRequests is the number of trial requests allowed while half-open.
	MaxRequests uint32 `koanf:"max_requests"`

	// Interval is the closed-state window after which counts reset.
	Interval time.Duration `koanf:"interval"`

	// Timeout is how long the breaker stays open.
	Timeout time.Duration `koanf:"timeout"`

	// FailureThreshold is the number of consecutive failures that trips the
	// breaker.
	FailureThreshold uint32 `koanf:"failure_threshold"`
}

// RefreshConfig configures the periodic cache refresh job.
type RefreshConfig struct {
	// Enabled runs the refresh job under the supervisor.
	// Default: true
	Enabled bool `koanf:"enabled"`

	// Interval between runs.
	// Default: 24h
	Interval time.Duration `koanf:"interval"`

	// RunOnStartup triggers a run as soon as the service starts.
	// Default: true
	RunOnStartup bool `koanf:"run_on_startup"`

	// BatchSize is the number of records per durable upsert.
	// Default: 50
	BatchSize int `koanf:"batch_size"`

	// BatchDelay is the minimum spacing between batch writes.
	// Default: 1s
	BatchDelay time.Duration `koanf:"batch_delay"`

	// Weights is the feature weight preset: batch or local.
	// Default: batch
	Weights string `koanf:"weights"`
}

// Recommendation cache sources.
const (
	CacheSourceDurable = "durable"
	CacheSourceCatalog = "catalog"
)

// RecommendConfig configures the recommendation engine.
type RecommendConfig struct {
	// CacheSource is where the vector cache is hydrated from: durable or
	// catalog.
	// Default: durable
	CacheSource string `koanf:"cache_source"`

	// Weights is the preset used for catalog hydration: batch or local.
	// Default: local
	Weights string `koanf:"weights"`

	DefaultLimit   int           `koanf:"default_limit"`
	MaxLimit       int           `koanf:"max_limit"`
	RequestTimeout time.Duration `koanf:"request_timeout"`

	// HydrationBatchSize is the number of records per cache transaction.
	HydrationBatchSize int `koanf:"hydration_batch_size"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// Addr returns the listen address.
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// NATSConfig configures the NATS request-reply transport.
type NATSConfig struct {
	// Enabled starts the NATS responder.
	// Default: true
	Enabled bool `koanf:"enabled"`

	// URL of an external server. Ignored when EmbeddedServer is set.
	URL string `koanf:"url"`

	// EmbeddedServer runs an in-process NATS server.
	// Default: true
	EmbeddedServer bool   `koanf:"embedded_server"`
	Host           string `koanf:"host"`
	Port           int    `koanf:"port"`

	Subject        string        `koanf:"subject"`
	QueueGroup     string        `koanf:"queue_group"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

// Load reads configuration from defaults, the optional config file and the
// environment, then validates it.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
