// Cinematch - Content-Based Movie Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinematch

package refresh

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/cinematch/internal/durable"
	"github.com/tomtom215/cinematch/internal/recommend"
)

// mockSource returns a fixed catalog.
type mockSource struct {
	movies []recommend.Movie
	err    error

	// When gate is set, calls signal entered and block until gate closes.
	gate    chan struct{}
	entered chan struct{}
	once    sync.Once
}

func (m *mockSource) GetAllMovies(ctx context.Context) ([]recommend.Movie, error) {
	if m.gate != nil {
		m.once.Do(func() { close(m.entered) })
		select {
		case <-m.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	out := make([]recommend.Movie, len(m.movies))
	copy(out, m.movies)
	return out, nil
}

// recordingStore wraps a MemoryStore and fails selected batches.
type recordingStore struct {
	*durable.MemoryStore

	mu         sync.Mutex
	calls      []string
	batchTimes []time.Time
	failBatch  map[int]bool
	batchNum   int
	spaceErr   error
	pruneErr   error
}

func newRecordingStore() *recordingStore {
	return &recordingStore{MemoryStore: durable.NewMemoryStore(), failBatch: map[int]bool{}}
}

func (r *recordingStore) Upsert(ctx context.Context, records []recommend.CachedMovieRecord) error {
	r.mu.Lock()
	r.batchNum++
	n := r.batchNum
	r.calls = append(r.calls, "upsert")
	r.batchTimes = append(r.batchTimes, time.Now())
	fail := r.failBatch[n]
	r.mu.Unlock()

	if fail {
		return errors.New("write refused")
	}
	return r.MemoryStore.Upsert(ctx, records)
}

func (r *recordingStore) PutSpace(ctx context.Context, space *recommend.FeatureSpace) error {
	r.mu.Lock()
	r.calls = append(r.calls, "space")
	r.mu.Unlock()
	if r.spaceErr != nil {
		return r.spaceErr
	}
	return r.MemoryStore.PutSpace(ctx, space)
}

func (r *recordingStore) PruneStale(ctx context.Context, generation string) (int, error) {
	r.mu.Lock()
	r.calls = append(r.calls, "prune")
	r.mu.Unlock()
	if r.pruneErr != nil {
		return 0, r.pruneErr
	}
	return r.MemoryStore.PruneStale(ctx, generation)
}

func strPtr(s string) *string { return &s }

func catalogOf(n int) []recommend.Movie {
	genres := []recommend.Genre{{ID: 1, Name: "Drama"}, {ID: 2, Name: "Comedy"}, {ID: 3, Name: "Crime"}}
	movies := make([]recommend.Movie, n)
	for i := range movies {
		movies[i] = recommend.Movie{
			ID:       i + 1,
			Title:    fmt.Sprintf("Movie %d", i+1),
			Genres:   []recommend.Genre{genres[i%len(genres)]},
			Director: strPtr(fmt.Sprintf("Director %d", i%4)),
			Actors:   recommend.ManyActors([]string{fmt.Sprintf("Actor %d", i%5), fmt.Sprintf("Actor %d", (i+1)%5)}),
		}
	}
	return movies
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.BatchDelay = 0
	return cfg
}

func newTestJob(t *testing.T, src MovieSource, store recommend.DurableStore, cfg Config) *Job {
	t.Helper()
	job, err := NewJob(src, store, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewJob() error = %v", err)
	}
	return job
}

func TestJob_Run(t *testing.T) {
	store := newRecordingStore()
	job := newTestJob(t, &mockSource{movies: catalogOf(120)}, store, fastConfig())

	report, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if report.Movies != 120 || report.Batches != 3 || report.Succeeded != 120 || report.Failed != 0 {
		t.Errorf("Report = %+v, want 120 movies in 3 batches", report)
	}
	if report.Generation == "" {
		t.Error("Report.Generation is empty")
	}
	if report.Outcome() != "success" {
		t.Errorf("Outcome() = %q, want success", report.Outcome())
	}
	if store.Len() != 120 {
		t.Errorf("store holds %d records, want 120", store.Len())
	}

	// Space is written before any vector.
	if len(store.calls) == 0 || store.calls[0] != "space" {
		t.Errorf("calls = %v, want space first", store.calls)
	}

	space, _ := store.GetSpace(context.Background())
	if space == nil || space.Generation != report.Generation {
		t.Fatalf("stored space = %+v, want generation %s", space, report.Generation)
	}
	records, _ := store.ReadAll(context.Background())
	for _, r := range records {
		if len(r.Vector) != space.Dim() {
			t.Fatalf("record %d has dim %d, want %d", r.ID, len(r.Vector), space.Dim())
		}
	}
}

func TestJob_UsesBatchWeights(t *testing.T) {
	store := newRecordingStore()
	job := newTestJob(t, &mockSource{movies: catalogOf(1)}, store, fastConfig())
	if _, err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	records, _ := store.ReadAll(context.Background())
	space, _ := store.GetSpace(context.Background())
	v := records[0].Vector
	g := space.GenreCount()
	d := len(space.Directors)

	if v[0] != recommend.BatchWeights.Genre {
		t.Errorf("genre slot = %v, want %v", v[0], recommend.BatchWeights.Genre)
	}
	if v[g] != recommend.BatchWeights.Director {
		t.Errorf("director slot = %v, want %v", v[g], recommend.BatchWeights.Director)
	}
	if v[g+d] != recommend.BatchWeights.Actor {
		t.Errorf("actor slot = %v, want %v", v[g+d], recommend.BatchWeights.Actor)
	}
}

func TestJob_FailedBatchContinues(t *testing.T) {
	store := newRecordingStore()
	store.failBatch[2] = true
	job := newTestJob(t, &mockSource{movies: catalogOf(120)}, store, fastConfig())

	report, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Batches != 3 {
		t.Errorf("Batches = %d, want 3", report.Batches)
	}
	if report.Failed != 50 || report.Succeeded != 70 {
		t.Errorf("Failed = %d, Succeeded = %d; want 50, 70", report.Failed, report.Succeeded)
	}
	if len(report.FailedMovieIDs) != 50 || report.FailedMovieIDs[0] != 51 || report.FailedMovieIDs[49] != 100 {
		t.Errorf("FailedMovieIDs = %v, want 51..100", report.FailedMovieIDs)
	}
	if report.Outcome() != "partial" {
		t.Errorf("Outcome() = %q, want partial", report.Outcome())
	}
	if store.Len() != 70 {
		t.Errorf("store holds %d records, want 70", store.Len())
	}
}

func TestJob_CatalogFailureAborts(t *testing.T) {
	store := newRecordingStore()
	job := newTestJob(t, &mockSource{err: errors.New("db down")}, store, fastConfig())

	_, err := job.Run(context.Background())
	if !errors.Is(err, recommend.ErrCatalogFetchFailed) {
		t.Fatalf("Run() error = %v, want ErrCatalogFetchFailed", err)
	}
	if len(store.calls) != 0 {
		t.Errorf("store calls = %v, want none", store.calls)
	}
}

func TestJob_SpaceWriteFailureAborts(t *testing.T) {
	store := newRecordingStore()
	store.spaceErr = errors.New("space refused")
	job := newTestJob(t, &mockSource{movies: catalogOf(10)}, store, fastConfig())

	if _, err := job.Run(context.Background()); err == nil {
		t.Fatal("Run() error = nil, want space write failure")
	}
	if store.Len() != 0 {
		t.Errorf("store holds %d records, want 0", store.Len())
	}
}

func TestJob_EmptyCatalog(t *testing.T) {
	store := newRecordingStore()
	job := newTestJob(t, &mockSource{}, store, fastConfig())

	report, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Batches != 0 || report.Outcome() != "empty" {
		t.Errorf("Report = %+v, want empty", report)
	}
}

func TestJob_SingleFlight(t *testing.T) {
	src := &mockSource{movies: catalogOf(10), gate: make(chan struct{}), entered: make(chan struct{})}
	job := newTestJob(t, src, newRecordingStore(), fastConfig())

	done := make(chan error, 1)
	go func() {
		_, err := job.Run(context.Background())
		done <- err
	}()

	select {
	case <-src.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first Run() never reached the catalog")
	}

	if _, err := job.Run(context.Background()); !errors.Is(err, recommend.ErrRefreshInProgress) {
		t.Errorf("concurrent Run() error = %v, want ErrRefreshInProgress", err)
	}

	close(src.gate)
	if err := <-done; err != nil {
		t.Fatalf("first Run() error = %v", err)
	}

	// Lock released after completion.
	if _, err := job.Run(context.Background()); err != nil {
		t.Errorf("Run() after completion error = %v", err)
	}
}

func TestJob_PacesBatches(t *testing.T) {
	store := newRecordingStore()
	cfg := DefaultConfig()
	cfg.BatchSize = 10
	cfg.BatchDelay = 20 * time.Millisecond
	job := newTestJob(t, &mockSource{movies: catalogOf(30)}, store, cfg)

	if _, err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(store.batchTimes) != 3 {
		t.Fatalf("batches = %d, want 3", len(store.batchTimes))
	}
	for i := 1; i < len(store.batchTimes); i++ {
		gap := store.batchTimes[i].Sub(store.batchTimes[i-1])
		if gap < 15*time.Millisecond {
			t.Errorf("gap between batch %d and %d = %v, want >= ~20ms", i, i+1, gap)
		}
	}
}

func TestJob_CanceledDuringPacing(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BatchSize = 1
	cfg.BatchDelay = time.Hour
	job := newTestJob(t, &mockSource{movies: catalogOf(3)}, newRecordingStore(), cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	report, err := job.Run(ctx)
	if err == nil {
		t.Fatal("Run() error = nil, want interruption")
	}
	if report.Batches != 1 {
		t.Errorf("Batches = %d, want 1 before interruption", report.Batches)
	}
}

// Rebuilding from a reordered catalog changes slot positions but not the
// pairwise similarity between movies.
func TestJob_RerunPermutationInvariance(t *testing.T) {
	movies := catalogOf(12)
	reversed := make([]recommend.Movie, len(movies))
	for i := range movies {
		reversed[len(movies)-1-i] = movies[i]
	}

	build := func(catalog []recommend.Movie) map[int]recommend.MovieVector {
		store := newRecordingStore()
		job := newTestJob(t, &mockSource{movies: catalog}, store, fastConfig())
		if _, err := job.Run(context.Background()); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		records, _ := store.ReadAll(context.Background())
		out := make(map[int]recommend.MovieVector, len(records))
		for _, r := range records {
			out[r.ID] = r.Vector
		}
		return out
	}

	a := build(movies)
	b := build(reversed)

	for i := 1; i <= len(movies); i++ {
		for j := i + 1; j <= len(movies); j++ {
			sa := recommend.CosineSimilarity(a[i], a[j])
			sb := recommend.CosineSimilarity(b[i], b[j])
			if math.Abs(sa-sb) > 1e-9 {
				t.Fatalf("similarity(%d,%d) = %v vs %v after reorder", i, j, sa, sb)
			}
		}
	}
}

func TestJob_RerunIsIdempotent(t *testing.T) {
	store := newRecordingStore()
	job := newTestJob(t, &mockSource{movies: catalogOf(60)}, store, fastConfig())

	first, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	second, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if first.Generation == second.Generation {
		t.Error("each run should produce a new generation")
	}
	if store.Len() != 60 {
		t.Errorf("store holds %d records, want 60", store.Len())
	}
}

// A rerun over a catalog whose genre order changed keeps the dimensionality
// but moves every slot. When one of its batches fails, the affected movies
// still hold vectors laid out for the earlier generation, and those must not
// be read against the new feature space.
func TestJob_ReorderedCatalogWithFailedBatch(t *testing.T) {
	ctx := context.Background()
	store := newRecordingStore()
	src := &mockSource{movies: catalogOf(120)}
	job := newTestJob(t, src, store, fastConfig())

	first, err := job.Run(ctx)
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	before, _ := store.GetSpace(ctx)

	// Swapping the genres of movies 1 and 2 turns [Drama Comedy Crime] into
	// [Comedy Drama Crime].
	reordered := catalogOf(120)
	reordered[0].Genres, reordered[1].Genres = reordered[1].Genres, reordered[0].Genres
	src.movies = reordered
	store.failBatch[5] = true // second batch of the second run: movies 51..100

	second, err := job.Run(ctx)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if second.Failed != 50 || second.Pruned != 0 {
		t.Fatalf("Report = %+v, want 50 failed and nothing pruned", second)
	}

	space, _ := store.GetSpace(ctx)
	if space.Dim() != before.Dim() {
		t.Fatalf("Dim() = %d, want unchanged %d", space.Dim(), before.Dim())
	}
	if space.Genres[0] != "Comedy" || space.Genres[1] != "Drama" {
		t.Fatalf("Genres = %v, want Comedy then Drama", space.Genres)
	}

	records, _ := store.ReadAll(ctx)
	if len(records) != 120 {
		t.Fatalf("store holds %d records, want 120", len(records))
	}

	byID := make(map[int]recommend.Movie, len(reordered))
	for _, m := range reordered {
		byID[m.ID] = m
	}
	var current []recommend.CachedMovieRecord
	for _, r := range records {
		failed := r.ID >= 51 && r.ID <= 100
		switch {
		case failed && r.Generation != first.Generation:
			t.Errorf("record %d generation = %q, want earlier %q", r.ID, r.Generation, first.Generation)
		case !failed && r.Generation != second.Generation:
			t.Errorf("record %d generation = %q, want current %q", r.ID, r.Generation, second.Generation)
		}
		if r.Generation != space.Generation {
			continue
		}
		current = append(current, r)
		want := space.Vectorize(byID[r.ID], recommend.BatchWeights)
		for k := range want {
			if r.Vector[k] != want[k] {
				t.Fatalf("record %d slot %d = %v, want %v", r.ID, k, r.Vector[k], want[k])
			}
		}
	}

	// Movie 52 is a Drama. Its stale vector sets slot 0, which now means
	// Comedy. Rarity over the whole store must match rarity over the current
	// generation alone.
	got := recommend.GenreRarity(space, records)
	want := recommend.GenreRarity(space, current)
	for g := range want {
		if math.Abs(got[g]-want[g]) > 1e-12 {
			t.Errorf("rarity[%s] = %v, want %v", space.Genres[g], got[g], want[g])
		}
	}
}

func TestJob_PrunesAfterCompleteRun(t *testing.T) {
	ctx := context.Background()
	store := newRecordingStore()
	src := &mockSource{movies: catalogOf(120)}
	job := newTestJob(t, src, store, fastConfig())

	if _, err := job.Run(ctx); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}

	src.movies = catalogOf(100)
	report, err := job.Run(ctx)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if report.Pruned != 20 {
		t.Errorf("Pruned = %d, want 20", report.Pruned)
	}
	if store.Len() != 100 {
		t.Errorf("store holds %d records, want 100", store.Len())
	}
	records, _ := store.ReadAll(ctx)
	for _, r := range records {
		if r.Generation != report.Generation {
			t.Errorf("record %d left from generation %q", r.ID, r.Generation)
		}
	}
}

func TestJob_PartialRunSkipsPrune(t *testing.T) {
	ctx := context.Background()
	store := newRecordingStore()
	src := &mockSource{movies: catalogOf(120)}
	job := newTestJob(t, src, store, fastConfig())

	if _, err := job.Run(ctx); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	store.failBatch[6] = true
	if _, err := job.Run(ctx); err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	for _, call := range store.calls {
		if call == "prune" {
			t.Fatal("partial run should not prune")
		}
	}
	if store.Len() != 120 {
		t.Errorf("store holds %d records, want 120", store.Len())
	}
}

func TestJob_PruneFailureDoesNotFailRun(t *testing.T) {
	store := newRecordingStore()
	store.pruneErr = errors.New("prune refused")
	job := newTestJob(t, &mockSource{movies: catalogOf(10)}, store, fastConfig())

	report, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Outcome() != "success" || report.Pruned != 0 {
		t.Errorf("Report = %+v, want success with nothing pruned", report)
	}
}

func TestNewJob_Validation(t *testing.T) {
	src := &mockSource{}
	store := durable.NewMemoryStore()

	tests := []struct {
		name   string
		src    MovieSource
		store  recommend.DurableStore
		modify func(*Config)
	}{
		{name: "nil source", src: nil, store: store},
		{name: "nil store", src: src, store: nil},
		{name: "zero batch size", src: src, store: store, modify: func(c *Config) { c.BatchSize = 0 }},
		{name: "negative delay", src: src, store: store, modify: func(c *Config) { c.BatchDelay = -time.Second }},
		{name: "zero weight", src: src, store: store, modify: func(c *Config) { c.Weights.Genre = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			if tt.modify != nil {
				tt.modify(&cfg)
			}
			if _, err := NewJob(tt.src, tt.store, cfg, zerolog.Nop()); err == nil {
				t.Error("NewJob() = nil error, want error")
			}
		})
	}
}
