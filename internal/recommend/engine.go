// Cinematch - Content-Based Movie Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinematch

package recommend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/cinematch/internal/metrics"
)

// CatalogStore is the read side of the movie catalog.
type CatalogStore interface {
	// GetAllMovies returns every catalog movie.
	GetAllMovies(ctx context.Context) ([]Movie, error)

	// GetInteractions returns the IDs of movies the profile interacted with
	// using the given type.
	GetInteractions(ctx context.Context, profileID string, t InteractionType) ([]int, error)
}

// VectorCache is the persistent local cache of precomputed movie vectors.
// Implementations wrap storage failures in ErrCacheUnavailable.
type VectorCache interface {
	// IsPopulated reports whether the cache holds at least one record.
	IsPopulated(ctx context.Context) (bool, error)

	// PutBatch upserts records by ID. A batch is applied atomically.
	PutBatch(ctx context.Context, records []CachedMovieRecord) error

	// GetAll returns a consistent snapshot of every cached record.
	GetAll(ctx context.Context) ([]CachedMovieRecord, error)

	// PutSpace stores the feature space the cached vectors were built in.
	PutSpace(ctx context.Context, space *FeatureSpace) error

	// GetSpace returns the stored feature space, or nil if none is stored.
	GetSpace(ctx context.Context) (*FeatureSpace, error)

	// Snapshot returns the stored feature space and every record from a
	// single read, so the pair never straddles a Clear or a re-hydration.
	Snapshot(ctx context.Context) (*FeatureSpace, []CachedMovieRecord, error)

	// Clear drops every record and the stored feature space.
	Clear(ctx context.Context) error
}

// DurableStore is the shared vector store written by the refresh job.
type DurableStore interface {
	// Upsert writes records by movie ID.
	Upsert(ctx context.Context, records []CachedMovieRecord) error

	// ReadAll returns every stored record.
	ReadAll(ctx context.Context) ([]CachedMovieRecord, error)

	// PutSpace stores the feature space of the current generation.
	PutSpace(ctx context.Context, space *FeatureSpace) error

	// GetSpace returns the stored feature space, or nil if none is stored.
	GetSpace(ctx context.Context) (*FeatureSpace, error)
}

// Empty result reasons reported in ResponseMetadata.EmptyReason.
const (
	EmptyReasonNoInteractions   = "no_interactions"
	EmptyReasonCacheUnavailable = "cache_unavailable"
	EmptyReasonNoVectors        = "no_vectors"
)

// Engine produces content-based recommendations from the vector cache.
// It is safe for concurrent use.
type Engine struct {
	config *Config
	logger zerolog.Logger

	catalog CatalogStore
	cache   VectorCache
	durable DurableStore

	// Hydration runs at most once per engine lifetime unless it fails.
	hydrateGroup singleflight.Group
	hydrateMu    sync.Mutex
	hydrated     atomic.Bool

	// Rarity weights memoized for one feature space generation.
	rarityMu  sync.Mutex
	rarityGen string
	rarity    []float64

	requestCount atomic.Int64
	errorCount   atomic.Int64
	emptyCount   atomic.Int64
}

// Stats is a point-in-time view of engine counters.
type Stats struct {
	Requests   int64  `json:"requests"`
	Errors     int64  `json:"errors"`
	Empty      int64  `json:"empty"`
	Hydrated   bool   `json:"hydrated"`
	Generation string `json:"generation,omitempty"`
}

// NewEngine creates a new recommendation engine. durable may be nil when
// the cache source is CacheSourceCatalog.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEngine(cfg *Config, catalog CatalogStore, cache VectorCache, durable DurableStore, logger zerolog.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if catalog == nil {
		return nil, errors.New("catalog store is required")
	}
	if cache == nil {
		return nil, errors.New("vector cache is required")
	}
	if cfg.CacheSource == CacheSourceDurable && durable == nil {
		return nil, errors.New("durable store is required when cache_source is durable")
	}

	return &Engine{
		config:  cfg,
		logger:  logger.With().Str("component", "recommend").Logger(),
		catalog: catalog,
		cache:   cache,
		durable: durable,
	}, nil
}

// Recommend runs one request as a Task and waits for its terminal response.
// If ctx has no deadline, Config.Limits.RequestTimeout is applied. When the
// deadline passes first the task keeps running and its result is dropped.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) Recommend(ctx context.Context, req Request) Response {
	if _, ok := ctx.Deadline(); !ok && e.config.Limits.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Limits.RequestTimeout)
		defer cancel()
	}

	task := e.NewTask(req)
	start := time.Now()

	select {
	case resp := <-task.Start(ctx):
		return resp
	case <-ctx.Done():
		req = task.Request()
		e.logger.Warn().
			Str("request_id", req.RequestID).
			Str("profile_id", req.ProfileID).
			Str("state", task.State().String()).
			Msg("recommendation timed out")
		resp := errorResponse(req, fmt.Errorf("%w: %w", ErrTimeout, ctx.Err()), start)
		e.recordOutcome(&resp, start)
		return resp
	}
}

// Hydrate populates the vector cache from the configured source if it is
// empty. It is safe to call concurrently and is a no-op once hydration has
// succeeded.
func (e *Engine) Hydrate(ctx context.Context) error {
	if e.hydrated.Load() {
		return nil
	}

	// The first caller's cancellation must not fail everyone sharing the call.
	hctx := context.WithoutCancel(ctx)
	_, err, _ := e.hydrateGroup.Do("hydrate", func() (interface{}, error) {
		e.hydrateMu.Lock()
		defer e.hydrateMu.Unlock()

		if e.hydrated.Load() {
			return nil, nil
		}
		ok, err := e.hydrate(hctx)
		if err != nil {
			return nil, err
		}
		if ok {
			e.hydrated.Store(true)
		}
		return nil, nil
	})
	return err
}

// Invalidate clears the vector cache so that the next request hydrates
// again, picking up a new feature space generation.
func (e *Engine) Invalidate(ctx context.Context) error {
	e.hydrateMu.Lock()
	defer e.hydrateMu.Unlock()

	if err := e.cache.Clear(ctx); err != nil {
		return fmt.Errorf("clear vector cache: %w", err)
	}
	e.hydrated.Store(false)

	e.rarityMu.Lock()
	e.rarityGen, e.rarity = "", nil
	e.rarityMu.Unlock()

	metrics.CacheRecords.Set(0)
	e.logger.Info().Msg("vector cache invalidated")
	return nil
}

// hydrate fills an empty cache. It reports whether the cache ended up
// populated.
func (e *Engine) hydrate(ctx context.Context) (bool, error) {
	source := string(e.config.CacheSource)

	populated, err := e.cache.IsPopulated(ctx)
	if err != nil {
		metrics.CacheHydrations.WithLabelValues(source, "error").Inc()
		return false, fmt.Errorf("check vector cache: %w", err)
	}
	if populated {
		metrics.CacheHydrations.WithLabelValues(source, "skipped").Inc()
		return true, nil
	}

	start := time.Now()
	space, records, err := e.loadSource(ctx)
	if err != nil {
		metrics.CacheHydrations.WithLabelValues(source, "error").Inc()
		return false, err
	}
	if space == nil || len(records) == 0 {
		metrics.CacheHydrations.WithLabelValues(source, "empty").Inc()
		e.logger.Warn().Str("source", source).Msg("hydration source has no vectors")
		return false, nil
	}

	if err := e.cache.PutSpace(ctx, space); err != nil {
		metrics.CacheHydrations.WithLabelValues(source, "error").Inc()
		return false, fmt.Errorf("store feature space: %w", err)
	}

	batchSize := e.config.Hydration.BatchSize
	for i := 0; i < len(records); i += batchSize {
		end := min(i+batchSize, len(records))
		if err := e.cache.PutBatch(ctx, records[i:end]); err != nil {
			metrics.CacheHydrations.WithLabelValues(source, "error").Inc()
			return false, fmt.Errorf("store vector batch at %d: %w", i, err)
		}
	}

	metrics.CacheHydrations.WithLabelValues(source, "success").Inc()
	metrics.CacheRecords.Set(float64(len(records)))
	e.logger.Info().
		Str("source", source).
		Str("generation", space.Generation).
		Int("records", len(records)).
		Int("dimensions", space.Dim()).
		Dur("duration", time.Since(start)).
		Msg("vector cache hydrated")
	return true, nil
}

// loadSource reads the feature space and records from the configured source.
func (e *Engine) loadSource(ctx context.Context) (*FeatureSpace, []CachedMovieRecord, error) {
	if e.config.CacheSource == CacheSourceCatalog {
		movies, err := e.catalog.GetAllMovies(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: get all movies: %w", ErrCatalogFetchFailed, err)
		}
		space := BuildFeatureSpace(movies)
		return space, BuildRecords(space, movies, e.config.Weights), nil
	}

	space, err := e.durable.GetSpace(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read durable feature space: %w", ErrCacheUnavailable, err)
	}
	records, err := e.durable.ReadAll(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read durable vectors: %w", ErrCacheUnavailable, err)
	}
	if space == nil {
		if len(records) > 0 {
			return nil, nil, fmt.Errorf("%w: durable store has %d vectors but no feature space", ErrCacheUnavailable, len(records))
		}
		return nil, nil, nil
	}

	// A partially failed refresh leaves earlier generations behind.
	current := make([]CachedMovieRecord, 0, len(records))
	for i := range records {
		if records[i].Generation == space.Generation {
			current = append(current, records[i])
		}
	}
	if stale := len(records) - len(current); stale > 0 {
		e.logger.Warn().
			Int("stale", stale).
			Str("generation", space.Generation).
			Msg("durable store holds vectors from an earlier generation")
	}
	return space, current, nil
}

// BuildRecords vectorizes movies over space and tags each record with the
// space's generation.
//
//nolint:gocritic // weights passed by value for immutability
func BuildRecords(space *FeatureSpace, movies []Movie, w FeatureWeights) []CachedMovieRecord {
	records := make([]CachedMovieRecord, len(movies))
	for i := range movies {
		m := &movies[i]
		records[i] = CachedMovieRecord{
			ID:            m.ID,
			Title:         m.Title,
			Generation:    space.Generation,
			Vector:        space.Vectorize(*m, w),
			Genres:        m.Genres,
			AverageRating: m.AverageRating,
			Director:      m.Director,
		}
	}
	return records
}

// snapshot is everything the scoring phase reads. It is fully populated
// before scoring starts.
type snapshot struct {
	liked    []int
	disliked []int
	space    *FeatureSpace
	records  []CachedMovieRecord
}

// fetch reads interactions and the cache contents concurrently. Cache
// failures are returned wrapped in ErrCacheUnavailable, interaction failures
// in ErrCatalogFetchFailed.
func (e *Engine) fetch(ctx context.Context, profileID string) (*snapshot, error) {
	if err := e.Hydrate(ctx); err != nil {
		return nil, err
	}

	snap := &snapshot{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ids, err := e.catalog.GetInteractions(gctx, profileID, InteractionLike)
		if err != nil {
			return fmt.Errorf("%w: liked movies: %w", ErrCatalogFetchFailed, err)
		}
		snap.liked = ids
		return nil
	})
	g.Go(func() error {
		ids, err := e.catalog.GetInteractions(gctx, profileID, InteractionDislike)
		if err != nil {
			return fmt.Errorf("%w: disliked movies: %w", ErrCatalogFetchFailed, err)
		}
		snap.disliked = ids
		return nil
	})
	g.Go(func() error {
		space, records, err := e.cache.Snapshot(gctx)
		if err != nil {
			return fmt.Errorf("read cache snapshot: %w", err)
		}
		snap.space = space
		snap.records = records
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}

// scoreResult is the output of the scoring phase.
type scoreResult struct {
	recommendations []ScoredMovie
	candidates      int
	generation      string
	emptyReason     string
}

// score aggregates the profile and ranks every uninteracted movie. It reads
// only the snapshot and the generation-scoped rarity memo.
func (e *Engine) score(snap *snapshot, limit int) (scoreResult, error) {
	if len(snap.liked) == 0 && len(snap.disliked) == 0 {
		return scoreResult{emptyReason: EmptyReasonNoInteractions}, nil
	}
	if snap.space == nil || len(snap.records) == 0 {
		return scoreResult{emptyReason: EmptyReasonNoVectors}, nil
	}

	// Slot positions are only meaningful within one generation, so records
	// left behind by an earlier build are not scored even when their length
	// happens to match.
	dim := snap.space.Dim()
	records := snap.records[:0:0]
	byID := make(map[int]MovieVector, len(snap.records))
	for i := range snap.records {
		if snap.records[i].Generation != snap.space.Generation || len(snap.records[i].Vector) != dim {
			continue
		}
		records = append(records, snap.records[i])
		byID[snap.records[i].ID] = snap.records[i].Vector
	}
	if skipped := len(snap.records) - len(records); skipped > 0 {
		e.logger.Warn().
			Int("skipped", skipped).
			Str("generation", snap.space.Generation).
			Msg("skipping cached vectors from another feature space generation")
	}

	liked := resolveVectors(snap.liked, byID)
	disliked := resolveVectors(snap.disliked, byID)

	profile, err := AggregateProfile(liked, disliked, e.rarityFor(snap.space, records))
	if errors.Is(err, ErrEmptyProfile) {
		return scoreResult{generation: snap.space.Generation, emptyReason: EmptyReasonNoInteractions}, nil
	}
	if err != nil {
		return scoreResult{}, fmt.Errorf("aggregate profile: %w", err)
	}

	exclude := make(map[int]struct{}, len(snap.liked)+len(snap.disliked))
	for _, id := range snap.liked {
		exclude[id] = struct{}{}
	}
	for _, id := range snap.disliked {
		exclude[id] = struct{}{}
	}

	ranked := Rank(profile, records, exclude, limit)
	candidates := 0
	for i := range records {
		if _, ok := exclude[records[i].ID]; !ok {
			candidates++
		}
	}

	return scoreResult{
		recommendations: ranked,
		candidates:      candidates,
		generation:      snap.space.Generation,
	}, nil
}

// resolveVectors maps movie IDs to cached vectors, skipping unknown IDs.
func resolveVectors(ids []int, byID map[int]MovieVector) []MovieVector {
	vectors := make([]MovieVector, 0, len(ids))
	for _, id := range ids {
		if v, ok := byID[id]; ok {
			vectors = append(vectors, v)
		}
	}
	return vectors
}

// rarityFor returns the rarity weights for the space's generation,
// computing them on first use.
func (e *Engine) rarityFor(space *FeatureSpace, records []CachedMovieRecord) []float64 {
	e.rarityMu.Lock()
	defer e.rarityMu.Unlock()

	if e.rarityGen == space.Generation && e.rarity != nil {
		return e.rarity
	}
	e.rarity = GenreRarity(space, records)
	e.rarityGen = space.Generation
	return e.rarity
}

// recordOutcome updates counters and metrics for a terminal response.
func (e *Engine) recordOutcome(resp *Response, start time.Time) {
	e.requestCount.Add(1)
	metrics.RecommendDuration.Observe(time.Since(start).Seconds())

	switch {
	case resp.Status == StatusError:
		e.errorCount.Add(1)
		metrics.RecommendRequests.WithLabelValues("error").Inc()
	case len(resp.Recommendations) == 0:
		e.emptyCount.Add(1)
		metrics.RecommendRequests.WithLabelValues("empty").Inc()
	default:
		metrics.RecommendRequests.WithLabelValues("success").Inc()
	}
}

// Stats returns the current engine counters.
func (e *Engine) Stats() Stats {
	e.rarityMu.Lock()
	gen := e.rarityGen
	e.rarityMu.Unlock()

	return Stats{
		Requests:   e.requestCount.Load(),
		Errors:     e.errorCount.Load(),
		Empty:      e.emptyCount.Load(),
		Hydrated:   e.hydrated.Load(),
		Generation: gen,
	}
}

// GetConfig returns a copy of the current configuration.
func (e *Engine) GetConfig() *Config {
	return e.config.Clone()
}
