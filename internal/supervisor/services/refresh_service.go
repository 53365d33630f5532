// Cinematch - Content-Based Movie Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinematch

package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/cinematch/internal/recommend"
	"github.com/tomtom215/cinematch/internal/refresh"
)

// Refresher runs one catalog-to-durable-store refresh.
type Refresher interface {
	Run(ctx context.Context) (refresh.Report, error)
}

// CacheInvalidator drops the engine's vector cache so the next request
// hydrates from the freshly written durable store.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// RefreshServiceConfig holds scheduling for the refresh job.
type RefreshServiceConfig struct {
	// Interval between scheduled runs. Default: 24h
	Interval time.Duration

	// RunOnStartup triggers a run as soon as the service starts.
	RunOnStartup bool

	// RunTimeout bounds a single run. Default: 30m
	RunTimeout time.Duration
}

// RefreshService runs the refresh job on a schedule.
type RefreshService struct {
	job         Refresher
	invalidator CacheInvalidator
	config      RefreshServiceConfig
	logger      zerolog.Logger
	name        string
}

// NewRefreshService creates a refresh service. invalidator may be nil when
// no engine in this process reads the durable store.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewRefreshService(job Refresher, invalidator CacheInvalidator, cfg RefreshServiceConfig, logger zerolog.Logger) *RefreshService {
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 30 * time.Minute
	}
	return &RefreshService{
		job:         job,
		invalidator: invalidator,
		config:      cfg,
		logger:      logger.With().Str("service", "refresh").Logger(),
		name:        "refresh-service",
	}
}

// Serve implements suture.Service. Failed runs are logged and retried on
// the next tick; they never stop the service.
func (s *RefreshService) Serve(ctx context.Context) error {
	s.logger.Info().
		Bool("run_on_startup", s.config.RunOnStartup).
		Dur("interval", s.config.Interval).
		Msg("refresh service starting")

	if s.config.RunOnStartup {
		s.runOnce(ctx)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("refresh service shutting down")
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *RefreshService) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, s.config.RunTimeout)
	defer cancel()

	report, err := s.job.Run(runCtx)
	switch {
	case errors.Is(err, recommend.ErrRefreshInProgress):
		s.logger.Info().Msg("refresh already running, skipping scheduled run")
		return
	case err != nil:
		if ctx.Err() == nil {
			s.logger.Warn().Err(err).Msg("scheduled refresh failed")
		}
		return
	}

	if s.invalidator == nil || report.Succeeded == 0 {
		return
	}
	if err := s.invalidator.Invalidate(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("vector cache invalidation failed")
		return
	}
	s.logger.Debug().Str("generation", report.Generation).Msg("vector cache invalidated after refresh")
}

// String returns the service name for logging.
func (s *RefreshService) String() string {
	return s.name
}
