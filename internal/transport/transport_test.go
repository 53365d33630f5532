// Cinematch - Content-Based Movie Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinematch

package transport

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/tomtom215/cinematch/internal/recommend"
	"github.com/tomtom215/cinematch/internal/vectorcache"
)

func startTestServer(t *testing.T) *nats.Conn {
	t.Helper()

	srv, err := NewEmbeddedServer(ServerConfig{Port: -1})
	if err != nil {
		t.Fatalf("NewEmbeddedServer() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	if !srv.IsRunning() {
		t.Fatal("embedded server not running")
	}

	nc, err := nats.Connect(srv.ClientURL())
	if err != nil {
		t.Fatalf("nats.Connect() error = %v", err)
	}
	t.Cleanup(nc.Close)
	return nc
}

// stubRecommender returns a canned response and records requests.
type stubRecommender struct {
	mu   sync.Mutex
	reqs []recommend.Request
	resp recommend.Response
}

func (s *stubRecommender) Recommend(_ context.Context, req recommend.Request) recommend.Response {
	s.mu.Lock()
	s.reqs = append(s.reqs, req)
	s.mu.Unlock()
	resp := s.resp
	resp.Metadata.ProfileID = req.ProfileID
	return resp
}

func startResponder(t *testing.T, nc *nats.Conn, engine Recommender, d *recommend.Dispatcher) *Responder {
	t.Helper()
	r, err := NewResponder(nc, engine, d, ResponderConfig{RequestTimeout: 5 * time.Second}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewResponder() error = %v", err)
	}
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = r.Stop(ctx)
	})
	if err := nc.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	return r
}

func TestResponder_RoundTrip(t *testing.T) {
	nc := startTestServer(t)
	stub := &stubRecommender{resp: recommend.Response{
		Status: recommend.StatusSuccess,
		Recommendations: []recommend.ScoredMovie{
			{ID: 7, Title: "Heat", Similarity: 0.9, FinalScore: 0.8},
		},
	}}
	startResponder(t, nc, stub, nil)

	client := NewClient(nc, "", time.Second)
	resp, err := client.Recommend(context.Background(), WireRequest{ProfileID: "alice", Limit: 5})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if !resp.OK() {
		t.Fatalf("Status = %s, want success", resp.Status)
	}
	if len(resp.Recommendations) != 1 || resp.Recommendations[0].ID != 7 {
		t.Errorf("Recommendations = %+v", resp.Recommendations)
	}
	if resp.Metadata.ProfileID != "alice" {
		t.Errorf("ProfileID = %q, want alice", resp.Metadata.ProfileID)
	}

	stub.mu.Lock()
	defer stub.mu.Unlock()
	if len(stub.reqs) != 1 || stub.reqs[0].Limit != 5 {
		t.Errorf("engine saw %+v", stub.reqs)
	}
}

func TestResponder_ErrorResponse(t *testing.T) {
	nc := startTestServer(t)
	stub := &stubRecommender{resp: recommend.Response{
		Status:          recommend.StatusError,
		Recommendations: []recommend.ScoredMovie{},
		Message:         "could not compute recommendations",
	}}
	startResponder(t, nc, stub, nil)

	resp, err := NewClient(nc, "", time.Second).Recommend(context.Background(), WireRequest{ProfileID: "alice"})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if resp.Status != recommend.StatusError {
		t.Fatalf("Status = %s, want error", resp.Status)
	}
	if !errors.Is(resp.Err, ErrRemote) {
		t.Errorf("Err = %v, want ErrRemote", resp.Err)
	}
}

func TestResponder_InvalidBody(t *testing.T) {
	nc := startTestServer(t)
	startResponder(t, nc, &stubRecommender{}, nil)

	msg, err := nc.Request(DefaultSubject, []byte("{not json"), time.Second)
	if err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	if got := string(msg.Data); !strings.Contains(got, `"status":"error"`) || !strings.Contains(got, "invalid request body") {
		t.Errorf("response = %s", got)
	}
}

func TestResponder_StartTwice(t *testing.T) {
	nc := startTestServer(t)
	r := startResponder(t, nc, &stubRecommender{}, nil)
	if err := r.Start(context.Background()); err == nil {
		t.Error("second Start() should fail")
	}
}

func TestNewResponder_Validation(t *testing.T) {
	if _, err := NewResponder(nil, &stubRecommender{}, nil, ResponderConfig{}, zerolog.Nop()); err == nil {
		t.Error("NewResponder() without connection should fail")
	}
}

func TestClient_NoResponders(t *testing.T) {
	nc := startTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if _, err := NewClient(nc, "cinematch.nobody", 0).Recommend(ctx, WireRequest{ProfileID: "alice"}); err == nil {
		t.Error("Recommend() without responders should fail")
	}
}

// gatedCatalog blocks interaction lookups until gate is closed.
type gatedCatalog struct {
	movies  []recommend.Movie
	liked   map[string][]int
	gate    chan struct{}
	entered chan struct{}
}

func (g *gatedCatalog) GetAllMovies(context.Context) ([]recommend.Movie, error) {
	return g.movies, nil
}

func (g *gatedCatalog) GetInteractions(ctx context.Context, profileID string, t recommend.InteractionType) ([]int, error) {
	if g.gate != nil {
		g.entered <- struct{}{}
		select {
		case <-g.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if t == recommend.InteractionLike {
		return g.liked[profileID], nil
	}
	return nil, nil
}

func newEngine(t *testing.T, catalog recommend.CatalogStore) *recommend.Engine {
	t.Helper()
	cache, err := vectorcache.Open(vectorcache.Config{InMemory: true}, zerolog.Nop())
	if err != nil {
		t.Fatalf("vectorcache.Open() error = %v", err)
	}
	t.Cleanup(func() { cache.Close() })

	cfg := recommend.DefaultConfig()
	cfg.CacheSource = recommend.CacheSourceCatalog
	engine, err := recommend.NewEngine(cfg, catalog, cache, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return engine
}

func testCatalog() []recommend.Movie {
	drama := recommend.Genre{ID: 1, Name: "Drama"}
	comedy := recommend.Genre{ID: 2, Name: "Comedy"}
	return []recommend.Movie{
		{ID: 1, Title: "A", Genres: []recommend.Genre{drama}},
		{ID: 2, Title: "B", Genres: []recommend.Genre{drama}},
		{ID: 3, Title: "C", Genres: []recommend.Genre{comedy}},
	}
}

func TestResponder_EngineEndToEnd(t *testing.T) {
	nc := startTestServer(t)
	engine := newEngine(t, &gatedCatalog{
		movies: testCatalog(),
		liked:  map[string][]int{"alice": {1}},
	})
	startResponder(t, nc, engine, recommend.NewDispatcher(engine))

	resp, err := NewClient(nc, "", 5*time.Second).Recommend(context.Background(), WireRequest{ProfileID: "alice"})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if !resp.OK() {
		t.Fatalf("Status = %s, message %q", resp.Status, resp.Message)
	}
	if len(resp.Recommendations) != 2 || resp.Recommendations[0].ID != 2 {
		t.Errorf("Recommendations = %+v, want movie 2 first", resp.Recommendations)
	}
}

func TestResponder_ConsumerLatestWins(t *testing.T) {
	nc := startTestServer(t)
	catalog := &gatedCatalog{
		movies:  testCatalog(),
		liked:   map[string][]int{"alice": {1}},
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 8),
	}
	engine := newEngine(t, catalog)
	startResponder(t, nc, engine, recommend.NewDispatcher(engine))
	client := NewClient(nc, "", 5*time.Second)

	type result struct {
		resp recommend.Response
		err  error
	}
	send := func(id string) <-chan result {
		out := make(chan result, 1)
		go func() {
			resp, err := client.Recommend(context.Background(), WireRequest{ProfileID: "alice", RequestID: id, Consumer: "tab-1"})
			out <- result{resp, err}
		}()
		return out
	}

	older := send("old")
	for i := 0; i < 2; i++ { // likes and dislikes lookups
		<-catalog.entered
	}
	newer := send("new")
	for i := 0; i < 2; i++ {
		<-catalog.entered
	}
	close(catalog.gate)

	oldRes := <-older
	if oldRes.err != nil {
		t.Fatalf("older request error = %v", oldRes.err)
	}
	if oldRes.resp.Status != recommend.StatusError || len(oldRes.resp.Recommendations) != 0 {
		t.Errorf("older response = %+v, want superseded error", oldRes.resp)
	}

	newRes := <-newer
	if newRes.err != nil {
		t.Fatalf("newer request error = %v", newRes.err)
	}
	if !newRes.resp.OK() || newRes.resp.Metadata.RequestID != "new" {
		t.Errorf("newer response = %+v, want success for request new", newRes.resp)
	}
}
