// Cinematch - Content-Based Movie Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinematch

/*
Package config provides centralized configuration management for Cinematch.

# Configuration Sources

Configuration is loaded with Koanf v2 in three layers, later layers
overriding earlier ones:

 1. Built-in defaults (defaultConfig)
 2. Optional YAML file: $CONFIG_PATH, ./config.yaml, ./config.yml,
    /etc/cinematch/config.yaml
 3. Environment variables (see envTransformFunc for the mapping)

Unmapped environment variables are ignored.

# Sections

  - logging:   zerolog level, format, caller
  - cache:     BadgerDB vector cache directory
  - catalog:   DuckDB catalog database
  - durable:   durable vector store backend (redis or memory) and breaker
  - refresh:   periodic cache refresh job
  - recommend: engine limits, weights preset, cache source
  - server:    HTTP listener, CORS and rate limiting
  - nats:      NATS request-reply transport

# Environment Variables

Common overrides:

	LOG_LEVEL, LOG_FORMAT
	CACHE_PATH, CACHE_IN_MEMORY
	DUCKDB_PATH, DUCKDB_MAX_MEMORY
	DURABLE_BACKEND, REDIS_ADDR, REDIS_PASSWORD, REDIS_DB, REDIS_KEY_PREFIX
	REFRESH_ENABLED, REFRESH_INTERVAL, REFRESH_BATCH_SIZE, REFRESH_BATCH_DELAY
	RECOMMEND_CACHE_SOURCE, RECOMMEND_DEFAULT_LIMIT, RECOMMEND_MAX_LIMIT
	HTTP_HOST, HTTP_PORT, CORS_ORIGINS, RATE_LIMIT_REQUESTS
	NATS_ENABLED, NATS_URL, NATS_EMBEDDED, NATS_SUBJECT

# Thread Safety

Config is immutable after Load and safe for concurrent reads.
*/
package config
