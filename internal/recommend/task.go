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

	"github.com/google/uuid"

	"github.com/tomtom215/cinematch/internal/validation"
)

// ErrSuperseded is delivered by Dispatcher when a newer request from the
// same consumer replaced the one that produced a result.
var ErrSuperseded = errors.New("superseded by a newer request")

// Task runs a single recommendation request. The caller sends one Request
// and receives exactly one terminal Response; State is the only observable
// side of the task while it runs.
type Task struct {
	engine *Engine
	req    Request

	state   atomic.Int32
	started atomic.Bool
}

// NewTask prepares a task for req. Defaults are applied to the limit and a
// request ID is generated if missing.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) NewTask(req Request) *Task {
	return &Task{
		engine: e,
		req:    e.prepareRequest(req),
	}
}

// prepareRequest applies defaults and generates request ID if needed.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) prepareRequest(req Request) Request {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if req.Limit == 0 {
		req.Limit = e.config.Limits.DefaultLimit
	}
	if req.Limit > e.config.Limits.MaxLimit {
		req.Limit = e.config.Limits.MaxLimit
	}
	return req
}

// Request returns the prepared request.
func (t *Task) Request() Request {
	return t.req
}

// State returns the current lifecycle state.
func (t *Task) State() TaskState {
	return TaskState(t.state.Load())
}

// Start runs the task on its own goroutine. The returned channel delivers
// exactly one Response and is then closed. Starting a task twice yields an
// error response on the second call.
func (t *Task) Start(ctx context.Context) <-chan Response {
	out := make(chan Response, 1)

	if !t.started.CompareAndSwap(false, true) {
		out <- errorResponse(t.req, errors.New("task already started"), time.Now())
		close(out)
		return out
	}

	go func() {
		defer close(out)
		out <- t.run(ctx)
	}()
	return out
}

// run executes Fetching then Scoring and returns the terminal response.
func (t *Task) run(ctx context.Context) Response {
	e := t.engine
	start := time.Now()
	logger := e.logger.With().
		Str("request_id", t.req.RequestID).
		Str("profile_id", t.req.ProfileID).
		Logger()

	resp := t.execute(ctx, start)
	if resp.Status == StatusError {
		t.state.Store(int32(StateFailed))
		logger.Error().Err(resp.Err).Msg("recommendation failed")
	} else {
		t.state.Store(int32(StateCompleted))
		logger.Debug().
			Int("returned", len(resp.Recommendations)).
			Int("candidates", resp.Metadata.Candidates).
			Str("empty_reason", resp.Metadata.EmptyReason).
			Int64("latency_ms", resp.Metadata.LatencyMS).
			Msg("recommendation complete")
	}

	e.recordOutcome(&resp, start)
	return resp
}

func (t *Task) execute(ctx context.Context, start time.Time) Response {
	e := t.engine

	if verr := validation.ValidateStruct(t.req); verr != nil {
		return errorResponse(t.req, fmt.Errorf("%w: %s", ErrInvalidRequest, verr.Error()), start)
	}

	t.state.Store(int32(StateFetching))
	snap, err := e.fetch(ctx, t.req.ProfileID)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return errorResponse(t.req, fmt.Errorf("%w: %w", ErrTimeout, ctx.Err()), start)
	case errors.Is(err, ErrCacheUnavailable):
		e.logger.Warn().Err(err).Str("request_id", t.req.RequestID).Msg("vector cache unavailable, returning empty result")
		return emptyResponse(t.req, EmptyReasonCacheUnavailable, "", start)
	default:
		return errorResponse(t.req, err, start)
	}

	t.state.Store(int32(StateScoring))
	result, err := e.score(snap, t.req.Limit)
	if err != nil {
		return errorResponse(t.req, err, start)
	}
	if len(result.recommendations) == 0 && result.emptyReason != "" {
		return emptyResponse(t.req, result.emptyReason, result.generation, start)
	}

	return Response{
		Status:          StatusSuccess,
		Recommendations: result.recommendations,
		Metadata: ResponseMetadata{
			RequestID:  t.req.RequestID,
			ProfileID:  t.req.ProfileID,
			Generation: result.generation,
			Candidates: result.candidates,
			LatencyMS:  time.Since(start).Milliseconds(),
			Timestamp:  time.Now(),
		},
	}
}

// emptyResponse builds a successful response with no recommendations.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func emptyResponse(req Request, reason, generation string, start time.Time) Response {
	return Response{
		Status:          StatusSuccess,
		Recommendations: []ScoredMovie{},
		Metadata: ResponseMetadata{
			RequestID:   req.RequestID,
			ProfileID:   req.ProfileID,
			Generation:  generation,
			EmptyReason: reason,
			LatencyMS:   time.Since(start).Milliseconds(),
			Timestamp:   time.Now(),
		},
	}
}

// errorResponse builds a failed response. The message is user-facing and
// omits wrapped storage details.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func errorResponse(req Request, err error, start time.Time) Response {
	return Response{
		Status:          StatusError,
		Recommendations: []ScoredMovie{},
		Message:         ErrorMessage(err),
		Err:             err,
		Metadata: ResponseMetadata{
			RequestID: req.RequestID,
			ProfileID: req.ProfileID,
			LatencyMS: time.Since(start).Milliseconds(),
			Timestamp: time.Now(),
		},
	}
}

// TimeoutResponse is the response for a request whose deadline passed
// before a result arrived.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func TimeoutResponse(req Request, start time.Time) Response {
	return errorResponse(req, ErrTimeout, start)
}

// ErrorMessage maps an engine error to a user-facing message.
func ErrorMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout):
		return "recommendation request timed out"
	case errors.Is(err, ErrInvalidRequest):
		return err.Error()
	case errors.Is(err, ErrCatalogFetchFailed):
		return "could not load your movie history, please try again"
	case errors.Is(err, ErrSuperseded):
		return "request superseded by a newer request"
	default:
		return "could not compute recommendations"
	}
}

// Dispatcher runs tasks on behalf of consumers and delivers at most one
// current result per consumer. When a consumer submits a new request while
// an older one is still running, the older result is discarded on arrival.
type Dispatcher struct {
	engine *Engine

	mu     sync.Mutex
	seq    uint64
	latest map[string]uint64
}

// NewDispatcher creates a dispatcher over engine.
func NewDispatcher(engine *Engine) *Dispatcher {
	return &Dispatcher{
		engine: engine,
		latest: make(map[string]uint64),
	}
}

// Submit starts a task for consumer. The returned channel delivers exactly
// one Response: the task's own, or an ErrSuperseded error response if a
// newer Submit for the same consumer happened before this task finished.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (d *Dispatcher) Submit(ctx context.Context, consumer string, req Request) <-chan Response {
	d.mu.Lock()
	d.seq++
	ticket := d.seq
	d.latest[consumer] = ticket
	d.mu.Unlock()

	task := d.engine.NewTask(req)
	results := task.Start(ctx)
	out := make(chan Response, 1)

	go func() {
		defer close(out)
		resp := <-results

		d.mu.Lock()
		current := d.latest[consumer] == ticket
		if current {
			delete(d.latest, consumer)
		}
		d.mu.Unlock()

		if !current {
			d.engine.logger.Debug().
				Str("consumer", consumer).
				Str("request_id", resp.Metadata.RequestID).
				Msg("discarding superseded recommendation result")
			out <- errorResponse(task.Request(), ErrSuperseded, time.Now())
			return
		}
		out <- resp
	}()
	return out
}

// Pending returns the number of consumers with an in-flight request.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.latest)
}
