// Cinematch - Content-Based Movie Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinematch

package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/tomtom215/cinematch/internal/metrics"
	"github.com/tomtom215/cinematch/internal/recommend"
)

// DefaultSubject is the request subject for recommendations.
const DefaultSubject = "cinematch.recommend"

// DefaultQueueGroup load-balances requests across responders.
const DefaultQueueGroup = "cinematch-recommenders"

// WireRequest is the JSON body of a recommendation request.
type WireRequest struct {
	ProfileID string `json:"profile_id"`
	Limit     int    `json:"limit,omitempty"`
	RequestID string `json:"request_id,omitempty"`

	// Consumer identifies the requesting view. When set, only the latest
	// request per consumer receives results.
	Consumer string `json:"consumer,omitempty"`
}

// Recommender runs one request to completion.
type Recommender interface {
	Recommend(ctx context.Context, req recommend.Request) recommend.Response
}

// ResponderConfig configures a Responder.
type ResponderConfig struct {
	Subject    string
	QueueGroup string

	// RequestTimeout bounds each request.
	RequestTimeout time.Duration
}

// Responder answers recommendation requests on a NATS subject.
type Responder struct {
	conn       *nats.Conn
	engine     Recommender
	dispatcher *recommend.Dispatcher
	config     ResponderConfig
	logger     zerolog.Logger

	mu      sync.Mutex
	sub     *nats.Subscription
	ctx     context.Context
	cancel  context.CancelFunc
	handled sync.WaitGroup
}

// NewResponder creates a responder. dispatcher may be nil, in which case
// consumer keys are ignored.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewResponder(conn *nats.Conn, engine Recommender, dispatcher *recommend.Dispatcher, cfg ResponderConfig, logger zerolog.Logger) (*Responder, error) {
	if conn == nil {
		return nil, errors.New("nats connection is required")
	}
	if engine == nil {
		return nil, errors.New("recommender is required")
	}
	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
	}
	if cfg.QueueGroup == "" {
		cfg.QueueGroup = DefaultQueueGroup
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	return &Responder{
		conn:       conn,
		engine:     engine,
		dispatcher: dispatcher,
		config:     cfg,
		logger:     logger.With().Str("component", "nats_responder").Str("subject", cfg.Subject).Logger(),
	}, nil
}

// Start subscribes to the request subject. Each message is handled on its
// own goroutine until Stop is called or ctx ends.
func (r *Responder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sub != nil {
		return errors.New("responder already started")
	}

	r.ctx, r.cancel = context.WithCancel(ctx)
	sub, err := r.conn.QueueSubscribe(r.config.Subject, r.config.QueueGroup, func(msg *nats.Msg) {
		r.handled.Add(1)
		go func() {
			defer r.handled.Done()
			r.handle(msg)
		}()
	})
	if err != nil {
		r.cancel()
		return fmt.Errorf("subscribe %s: %w", r.config.Subject, err)
	}
	r.sub = sub

	r.logger.Info().Str("queue", r.config.QueueGroup).Msg("NATS responder started")
	return nil
}

// Stop drains the subscription and waits for in-flight requests, up to the
// ctx deadline.
func (r *Responder) Stop(ctx context.Context) error {
	r.mu.Lock()
	sub := r.sub
	r.sub = nil
	r.mu.Unlock()

	if sub == nil {
		return nil
	}
	if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		r.logger.Warn().Err(err).Msg("unsubscribe failed")
	}

	done := make(chan struct{})
	go func() {
		r.handled.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		r.logger.Info().Msg("NATS responder stopped")
		return nil
	case <-ctx.Done():
		r.cancel()
		return ctx.Err()
	}
}

func (r *Responder) handle(msg *nats.Msg) {
	var wire WireRequest
	if err := json.Unmarshal(msg.Data, &wire); err != nil {
		metrics.NATSRequestsHandled.WithLabelValues("decode_error").Inc()
		r.logger.Debug().Err(err).Msg("invalid request body")
		r.reply(msg, recommend.Response{
			Status:          recommend.StatusError,
			Recommendations: []recommend.ScoredMovie{},
			Message:         "invalid request body",
			Metadata:        recommend.ResponseMetadata{Timestamp: time.Now()},
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.ctx, r.config.RequestTimeout)
	defer cancel()

	req := recommend.Request{
		ProfileID: wire.ProfileID,
		Limit:     wire.Limit,
		RequestID: wire.RequestID,
	}

	var resp recommend.Response
	if wire.Consumer != "" && r.dispatcher != nil {
		start := time.Now()
		select {
		case resp = <-r.dispatcher.Submit(ctx, wire.Consumer, req):
		case <-ctx.Done():
			resp = recommend.TimeoutResponse(req, start)
		}
	} else {
		resp = r.engine.Recommend(ctx, req)
	}

	metrics.NATSRequestsHandled.WithLabelValues(resultLabel(&resp)).Inc()
	r.reply(msg, resp)
}

//nolint:gocritic // hugeParam: resp passed by value for immutability
func (r *Responder) reply(msg *nats.Msg, resp recommend.Response) {
	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(resp)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to encode response")
		return
	}
	if err := msg.Respond(data); err != nil {
		r.logger.Warn().Err(err).Str("request_id", resp.Metadata.RequestID).Msg("failed to send response")
	}
}

func resultLabel(resp *recommend.Response) string {
	switch {
	case resp.OK():
		return "success"
	case errors.Is(resp.Err, recommend.ErrSuperseded):
		return "superseded"
	default:
		return "error"
	}
}
