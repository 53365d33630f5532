// Cinematch - Content-Based Movie Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinematch

package durable

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/cinematch/internal/metrics"
	"github.com/tomtom215/cinematch/internal/recommend"
)

var _ recommend.DurableStore = (*BreakerStore)(nil)

// BreakerConfig configures the circuit breaker around a durable store.
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// DefaultBreakerConfig returns production defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "durable-store",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// BreakerStore guards a DurableStore with a circuit breaker. Context
// cancellation is not counted as a store failure.
type BreakerStore struct {
	next    recommend.DurableStore
	cb      *gobreaker.CircuitBreaker[interface{}]
	name    string
	backend string
	logger  zerolog.Logger
}

// NewBreakerStore wraps next. backend labels the metrics.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewBreakerStore(next recommend.DurableStore, backend string, cfg BreakerConfig, logger zerolog.Logger) *BreakerStore {
	if cfg.Name == "" {
		cfg.Name = "durable-store"
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}

	b := &BreakerStore{
		next:    next,
		name:    cfg.Name,
		backend: backend,
		logger:  logger.With().Str("component", "durable_breaker").Str("breaker", cfg.Name).Logger(),
	}

	metrics.CircuitBreakerState.WithLabelValues(cfg.Name).Set(0) // 0 = closed

	b.cb = gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.logger.Info().Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})
	return b
}

// State returns the current breaker state.
func (b *BreakerStore) State() gobreaker.State {
	return b.cb.State()
}

func (b *BreakerStore) execute(operation string, fn func() (interface{}, error)) (interface{}, error) {
	result, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.RecordDurableOperation(b.backend, operation, "rejected")
		b.logger.Warn().Err(err).Str("operation", operation).Msg("durable store call rejected")
	}
	return result, err
}

// Upsert writes records through the breaker.
func (b *BreakerStore) Upsert(ctx context.Context, records []recommend.CachedMovieRecord) error {
	_, err := b.execute("upsert", func() (interface{}, error) {
		return nil, b.next.Upsert(ctx, records)
	})
	return err
}

// ReadAll reads records through the breaker.
func (b *BreakerStore) ReadAll(ctx context.Context) ([]recommend.CachedMovieRecord, error) {
	result, err := b.execute("read_all", func() (interface{}, error) {
		return b.next.ReadAll(ctx)
	})
	if err != nil {
		return nil, err
	}
	records, _ := result.([]recommend.CachedMovieRecord)
	return records, nil
}

// PutSpace stores the feature space through the breaker.
func (b *BreakerStore) PutSpace(ctx context.Context, space *recommend.FeatureSpace) error {
	_, err := b.execute("put_space", func() (interface{}, error) {
		return nil, b.next.PutSpace(ctx, space)
	})
	return err
}

// GetSpace reads the feature space through the breaker.
func (b *BreakerStore) GetSpace(ctx context.Context) (*recommend.FeatureSpace, error) {
	result, err := b.execute("get_space", func() (interface{}, error) {
		return b.next.GetSpace(ctx)
	})
	if err != nil {
		return nil, err
	}
	space, _ := result.(*recommend.FeatureSpace)
	return space, nil
}

// PruneStale prunes through the breaker. Stores without pruning support
// report nothing removed.
func (b *BreakerStore) PruneStale(ctx context.Context, generation string) (int, error) {
	pruner, ok := b.next.(interface {
		PruneStale(ctx context.Context, generation string) (int, error)
	})
	if !ok {
		return 0, nil
	}
	result, err := b.execute("prune", func() (interface{}, error) {
		return pruner.PruneStale(ctx, generation)
	})
	if err != nil {
		return 0, err
	}
	removed, _ := result.(int)
	return removed, nil
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
