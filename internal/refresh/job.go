// Cinematch - Content-Based Movie Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinematch

package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/cinematch/internal/metrics"
	"github.com/tomtom215/cinematch/internal/recommend"
)

// MovieSource supplies the full catalog.
type MovieSource interface {
	GetAllMovies(ctx context.Context) ([]recommend.Movie, error)
}

// Pruner is implemented by durable stores that can drop records left over
// from earlier generations.
type Pruner interface {
	PruneStale(ctx context.Context, generation string) (int, error)
}

// Config controls a refresh run.
type Config struct {
	// BatchSize is the number of records per upsert.
	BatchSize int `json:"batch_size"`

	// BatchDelay is the minimum spacing between batch writes.
	BatchDelay time.Duration `json:"batch_delay"`

	// Weights are the feature weights used to vectorize movies.
	Weights recommend.FeatureWeights `json:"weights"`
}

// DefaultConfig returns the production refresh settings.
func DefaultConfig() Config {
	return Config{
		BatchSize:  50,
		BatchDelay: time.Second,
		Weights:    recommend.BatchWeights,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.BatchSize < 1 {
		return fmt.Errorf("batch_size must be >= 1, got %d", c.BatchSize)
	}
	if c.BatchDelay < 0 {
		return fmt.Errorf("batch_delay must be >= 0, got %v", c.BatchDelay)
	}
	return c.Weights.Validate()
}

// Report summarizes a refresh run.
type Report struct {
	Generation     string        `json:"generation"`
	Movies         int           `json:"movies"`
	Batches        int           `json:"batches"`
	Succeeded      int           `json:"succeeded"`
	Failed         int           `json:"failed"`
	FailedMovieIDs []int         `json:"failed_movie_ids,omitempty"`
	Pruned         int           `json:"pruned"`
	Duration       time.Duration `json:"duration"`
}

// Outcome classifies the run for metrics: "success", "partial" when some
// batches failed, or "empty" when the catalog had no movies.
func (r *Report) Outcome() string {
	switch {
	case r.Movies == 0:
		return "empty"
	case r.Failed > 0:
		return "partial"
	default:
		return "success"
	}
}

// Job rebuilds the durable vector store from the catalog.
type Job struct {
	source MovieSource
	store  recommend.DurableStore
	config Config
	logger zerolog.Logger

	running sync.Mutex
}

// NewJob creates a refresh job.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewJob(source MovieSource, store recommend.DurableStore, cfg Config, logger zerolog.Logger) (*Job, error) {
	if source == nil {
		return nil, errors.New("movie source is required")
	}
	if store == nil {
		return nil, errors.New("durable store is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid refresh config: %w", err)
	}
	return &Job{
		source: source,
		store:  store,
		config: cfg,
		logger: logger.With().Str("component", "refresh").Logger(),
	}, nil
}

// Run performs one full refresh. A failed catalog fetch or feature space
// write aborts the run; failed batches do not.
func (j *Job) Run(ctx context.Context) (Report, error) {
	if !j.running.TryLock() {
		return Report{}, recommend.ErrRefreshInProgress
	}
	defer j.running.Unlock()

	start := time.Now()
	report, err := j.run(ctx)
	report.Duration = time.Since(start)

	outcome := report.Outcome()
	if err != nil {
		outcome = "failure"
	}
	metrics.RecordRefreshRun(outcome, report.Duration)

	event := j.logger.Info()
	if err != nil {
		event = j.logger.Error().Err(err)
	} else if report.Failed > 0 {
		event = j.logger.Warn().Ints("failed_movie_ids", report.FailedMovieIDs)
	}
	event.
		Str("generation", report.Generation).
		Int("movies", report.Movies).
		Int("batches", report.Batches).
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Int("pruned", report.Pruned).
		Dur("duration", report.Duration).
		Msg("refresh run finished")

	return report, err
}

func (j *Job) run(ctx context.Context) (Report, error) {
	var report Report

	movies, err := j.source.GetAllMovies(ctx)
	if err != nil {
		return report, fmt.Errorf("%w: %w", recommend.ErrCatalogFetchFailed, err)
	}
	report.Movies = len(movies)

	space := recommend.BuildFeatureSpace(movies)
	report.Generation = space.Generation
	records := recommend.BuildRecords(space, movies, j.config.Weights)

	j.logger.Info().
		Str("generation", space.Generation).
		Int("movies", len(movies)).
		Int("dim", space.Dim()).
		Msg("refresh run starting")

	if err := j.store.PutSpace(ctx, space); err != nil {
		return report, fmt.Errorf("write feature space: %w", err)
	}

	limit := rate.Inf
	if j.config.BatchDelay > 0 {
		limit = rate.Every(j.config.BatchDelay)
	}
	limiter := rate.NewLimiter(limit, 1)

	for lo := 0; lo < len(records); lo += j.config.BatchSize {
		hi := min(lo+j.config.BatchSize, len(records))
		batch := records[lo:hi]

		if err := limiter.Wait(ctx); err != nil {
			return report, fmt.Errorf("refresh interrupted after %d batches: %w", report.Batches, err)
		}

		report.Batches++
		err := j.store.Upsert(ctx, batch)
		metrics.RecordRefreshBatch(err)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return report, fmt.Errorf("refresh interrupted after %d batches: %w", report.Batches, ctxErr)
			}
			report.Failed += len(batch)
			for i := range batch {
				report.FailedMovieIDs = append(report.FailedMovieIDs, batch[i].ID)
			}
			j.logger.Warn().
				Err(fmt.Errorf("%w: %w", recommend.ErrBatchWriteFailed, err)).
				Int("batch", report.Batches).
				Int("first_movie_id", batch[0].ID).
				Int("size", len(batch)).
				Msg("refresh batch failed, continuing")
			continue
		}
		report.Succeeded += len(batch)
	}

	// Records from earlier generations are only dropped once every movie has
	// a current vector. After a partial run they are the only copy of the
	// failed movies; readers skip them by generation.
	if report.Failed == 0 && report.Movies > 0 {
		report.Pruned = j.prune(ctx, space.Generation)
	}

	return report, nil
}

func (j *Job) prune(ctx context.Context, generation string) int {
	pruner, ok := j.store.(Pruner)
	if !ok {
		return 0
	}
	removed, err := pruner.PruneStale(ctx, generation)
	if err != nil {
		j.logger.Warn().Err(err).Str("generation", generation).Msg("pruning stale vectors failed")
	}
	return removed
}
