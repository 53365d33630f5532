// Cinematch - Content-Based Movie Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinematch

package recommend

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	t.Run("local weights by default", func(t *testing.T) {
		if cfg.Weights != LocalWeights {
			t.Errorf("Weights = %+v, want %+v", cfg.Weights, LocalWeights)
		}
	})

	t.Run("durable cache source", func(t *testing.T) {
		if cfg.CacheSource != CacheSourceDurable {
			t.Errorf("CacheSource = %q, want durable", cfg.CacheSource)
		}
	})

	t.Run("limits config has valid defaults", func(t *testing.T) {
		if cfg.Limits.DefaultLimit != 20 {
			t.Errorf("Limits.DefaultLimit = %d, want 20", cfg.Limits.DefaultLimit)
		}
		if cfg.Limits.MaxLimit != 100 {
			t.Errorf("Limits.MaxLimit = %d, want 100", cfg.Limits.MaxLimit)
		}
	})

	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(*Config)
		wantError bool
	}{
		{
			name:      "valid default config",
			modify:    func(c *Config) {},
			wantError: false,
		},
		{
			name:      "batch weights",
			modify:    func(c *Config) { c.Weights = BatchWeights },
			wantError: false,
		},
		{
			name:      "zero actor weight",
			modify:    func(c *Config) { c.Weights.Actor = 0 },
			wantError: true,
		},
		{
			name:      "unknown cache source",
			modify:    func(c *Config) { c.CacheSource = "s3" },
			wantError: true,
		},
		{
			name:      "zero default limit",
			modify:    func(c *Config) { c.Limits.DefaultLimit = 0 },
			wantError: true,
		},
		{
			name:      "MaxLimit less than DefaultLimit",
			modify:    func(c *Config) { c.Limits.MaxLimit = 5; c.Limits.DefaultLimit = 10 },
			wantError: true,
		},
		{
			name:      "negative request timeout",
			modify:    func(c *Config) { c.Limits.RequestTimeout = -time.Second },
			wantError: true,
		},
		{
			name:      "zero hydration batch size",
			modify:    func(c *Config) { c.Hydration.BatchSize = 0 },
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantError && err == nil {
				t.Error("Validate() = nil, want error")
			}
			if !tt.wantError && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
		})
	}
}

func TestConfig_Clone(t *testing.T) {
	original := DefaultConfig()
	original.Limits.MaxLimit = 500

	clone := original.Clone()

	t.Run("clone has same values", func(t *testing.T) {
		if clone.Limits.MaxLimit != 500 {
			t.Errorf("clone.Limits.MaxLimit = %d, want 500", clone.Limits.MaxLimit)
		}
	})

	t.Run("clone is independent", func(t *testing.T) {
		clone.Weights.Genre = 123
		if original.Weights.Genre == clone.Weights.Genre {
			t.Error("modifying clone affected original")
		}
	})
}

func TestConfig_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(DefaultConfig())
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	limits, ok := parsed["limits"].(map[string]interface{})
	if !ok {
		t.Fatal("limits field not found or wrong type")
	}
	if got, _ := limits["request_timeout"].(string); got != "30s" {
		t.Errorf("limits.request_timeout = %v, want \"30s\"", limits["request_timeout"])
	}
	if parsed["cache_source"] != "durable" {
		t.Errorf("cache_source = %v, want durable", parsed["cache_source"])
	}
}
