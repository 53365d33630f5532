// Cinematch - Content-Based Movie Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinematch

package main

import (
	"context"
	"fmt"

	"github.com/tomtom215/cinematch/internal/catalog"
	"github.com/tomtom215/cinematch/internal/config"
	"github.com/tomtom215/cinematch/internal/durable"
	"github.com/tomtom215/cinematch/internal/logging"
	"github.com/tomtom215/cinematch/internal/recommend"
	"github.com/tomtom215/cinematch/internal/refresh"
	"github.com/tomtom215/cinematch/internal/vectorcache"
)

// stores holds the opened storage backends. Close releases them in
// reverse order of opening.
type stores struct {
	catalog *catalog.Store
	cache   *vectorcache.Store
	durable recommend.DurableStore
	closers []func() error
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}
}

// openStores opens every backend the server needs.
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	st, err := openBackends(ctx, cfg)
	if err != nil {
		return nil, err
	}

	cache, err := vectorcache.Open(vectorcache.Config{
		Path:       cfg.Cache.Path,
		InMemory:   cfg.Cache.InMemory,
		SyncWrites: cfg.Cache.SyncWrites,
	}, logging.WithComponent("vectorcache"))
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("open vector cache: %w", err)
	}
	st.cache = cache
	st.closers = append(st.closers, cache.Close)
	logging.Info().Bool("in_memory", cfg.Cache.InMemory).Str("path", cfg.Cache.Path).Msg("Vector cache opened")

	return st, nil
}

// openBackends opens the catalog and the durable store.
func openBackends(ctx context.Context, cfg *config.Config) (*stores, error) {
	st := &stores{}

	cat, err := catalog.Open(ctx, catalog.Config{
		Path:         cfg.Catalog.Path,
		MaxMemory:    cfg.Catalog.MaxMemory,
		Threads:      cfg.Catalog.Threads,
		QueryTimeout: cfg.Catalog.QueryTimeout,
	}, logging.WithComponent("catalog"))
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	st.catalog = cat
	st.closers = append(st.closers, cat.Close)
	logging.Info().Str("path", cfg.Catalog.Path).Msg("Catalog opened")

	var store recommend.DurableStore
	switch cfg.Durable.Backend {
	case config.DurableBackendRedis:
		rs, err := durable.NewRedisStore(ctx, durable.RedisConfig{
			Addr:        cfg.Durable.Redis.Addr,
			Password:    cfg.Durable.Redis.Password,
			DB:          cfg.Durable.Redis.DB,
			KeyPrefix:   cfg.Durable.Redis.KeyPrefix,
			DialTimeout: cfg.Durable.Redis.DialTimeout,
		}, logging.WithComponent("durable"))
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("open durable store: %w", err)
		}
		st.closers = append(st.closers, rs.Close)
		store = rs
		logging.Info().Str("addr", cfg.Durable.Redis.Addr).Msg("Redis durable store connected")
	default:
		store = durable.NewMemoryStore()
		logging.Warn().Msg("Durable store is in-process memory (DURABLE_BACKEND=memory); refreshed vectors are lost on restart")
	}

	if b := cfg.Durable.Breaker; b.Enabled {
		store = durable.NewBreakerStore(store, cfg.Durable.Backend, durable.BreakerConfig{
			Name:             "durable-store",
			MaxRequests:      b.MaxRequests,
			Interval:         b.Interval,
			Timeout:          b.Timeout,
			FailureThreshold: b.FailureThreshold,
		}, logging.WithComponent("durable"))
	}
	st.durable = store

	return st, nil
}

// newEngine builds the engine from the recommend config section.
func newEngine(cfg *config.Config, st *stores) (*recommend.Engine, error) {
	weights, err := recommend.WeightsPreset(cfg.Recommend.Weights)
	if err != nil {
		return nil, err
	}

	rc := recommend.DefaultConfig()
	rc.Weights = weights
	rc.CacheSource = recommend.CacheSource(cfg.Recommend.CacheSource)
	rc.Limits.DefaultLimit = cfg.Recommend.DefaultLimit
	rc.Limits.MaxLimit = cfg.Recommend.MaxLimit
	rc.Limits.RequestTimeout = cfg.Recommend.RequestTimeout
	rc.Hydration.BatchSize = cfg.Recommend.HydrationBatchSize

	engine, err := recommend.NewEngine(rc, st.catalog, st.cache, st.durable, logging.WithComponent("recommend"))
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}
	return engine, nil
}

// newRefreshJob builds the refresh job from the refresh config section.
func newRefreshJob(cfg *config.Config, st *stores) (*refresh.Job, error) {
	weights, err := recommend.WeightsPreset(cfg.Refresh.Weights)
	if err != nil {
		return nil, err
	}
	job, err := refresh.NewJob(st.catalog, st.durable, refresh.Config{
		BatchSize:  cfg.Refresh.BatchSize,
		BatchDelay: cfg.Refresh.BatchDelay,
		Weights:    weights,
	}, logging.WithComponent("refresh"))
	if err != nil {
		return nil, fmt.Errorf("create refresh job: %w", err)
	}
	return job, nil
}

// runRefreshOnce rebuilds the durable store from the catalog and exits.
// DuckDB holds an exclusive file lock, so the server must not have the
// same catalog open.
func runRefreshOnce(ctx context.Context, cfg *config.Config) error {
	if cfg.Durable.Backend == config.DurableBackendMemory {
		return fmt.Errorf("-refresh-once needs a persistent durable store, DURABLE_BACKEND is %q", cfg.Durable.Backend)
	}

	st, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	job, err := newRefreshJob(cfg, st)
	if err != nil {
		return err
	}
	report, err := job.Run(ctx)
	if err != nil {
		return err
	}
	if report.Failed > 0 {
		return fmt.Errorf("%w: %d of %d movies not written", recommend.ErrBatchWriteFailed, report.Failed, report.Movies)
	}
	return nil
}
