// Cinematch - Content-Based Movie Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinematch

package recommend

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// CacheSource selects where the vector cache is hydrated from.
type CacheSource string

const (
	// CacheSourceDurable hydrates from the durable store the refresh job
	// writes to.
	CacheSourceDurable CacheSource = "durable"

	// CacheSourceCatalog builds the feature space and vectors locally from
	// the catalog.
	CacheSourceCatalog CacheSource = "catalog"
)

// Config contains all configuration for the recommendation engine.
type Config struct {
	// Weights are used when vectorizing the catalog locally
	// (CacheSourceCatalog). Default: LocalWeights.
	Weights FeatureWeights `json:"weights"`

	// CacheSource selects the hydration source. Default: durable.
	CacheSource CacheSource `json:"cache_source"`

	// Limits contains operational limits.
	Limits LimitsConfig `json:"limits"`

	// Hydration contains cache population parameters.
	Hydration HydrationConfig `json:"hydration"`
}

// LimitsConfig contains operational limits.
type LimitsConfig struct {
	// DefaultLimit is the number of recommendations returned when a request
	// does not specify one.
	// Default: 20.
	DefaultLimit int `json:"default_limit"`

	// MaxLimit caps the requested limit.
	// Default: 100.
	MaxLimit int `json:"max_limit"`

	// RequestTimeout is applied by Engine.Recommend when the caller's
	// context has no deadline. Zero disables it.
	// Default: 30s.
	RequestTimeout time.Duration `json:"request_timeout"`
}

// HydrationConfig contains cache population parameters.
type HydrationConfig struct {
	// BatchSize is the number of records written per cache transaction.
	// Default: 500.
	BatchSize int `json:"batch_size"`
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() *Config {
	return &Config{
		Weights:     LocalWeights,
		CacheSource: CacheSourceDurable,
		Limits: LimitsConfig{
			DefaultLimit:   20,
			MaxLimit:       100,
			RequestTimeout: 30 * time.Second,
		},
		Hydration: HydrationConfig{
			BatchSize: 500,
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if err := c.Weights.Validate(); err != nil {
		return err
	}

	switch c.CacheSource {
	case CacheSourceDurable, CacheSourceCatalog:
	default:
		return fmt.Errorf("cache_source must be one of durable, catalog, got %q", c.CacheSource)
	}

	if c.Limits.DefaultLimit < 1 {
		return fmt.Errorf("limits.default_limit must be positive, got %d", c.Limits.DefaultLimit)
	}
	if c.Limits.MaxLimit < c.Limits.DefaultLimit {
		return fmt.Errorf("limits.max_limit must be >= limits.default_limit, got %d < %d", c.Limits.MaxLimit, c.Limits.DefaultLimit)
	}
	if c.Limits.RequestTimeout < 0 {
		return fmt.Errorf("limits.request_timeout must be non-negative, got %v", c.Limits.RequestTimeout)
	}

	if c.Hydration.BatchSize < 1 {
		return fmt.Errorf("hydration.batch_size must be positive, got %d", c.Hydration.BatchSize)
	}

	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	// All nested structs contain only value types.
	clone := *c
	return &clone
}

// MarshalJSON implements custom JSON marshaling for duration fields.
func (c *Config) MarshalJSON() ([]byte, error) {
	type limitsJSON struct {
		DefaultLimit   int    `json:"default_limit"`
		MaxLimit       int    `json:"max_limit"`
		RequestTimeout string `json:"request_timeout"`
	}
	type Alias Config
	return json.Marshal(&struct {
		*Alias
		Limits limitsJSON `json:"limits"`
	}{
		Alias: (*Alias)(c),
		Limits: limitsJSON{
			DefaultLimit:   c.Limits.DefaultLimit,
			MaxLimit:       c.Limits.MaxLimit,
			RequestTimeout: c.Limits.RequestTimeout.String(),
		},
	})
}
