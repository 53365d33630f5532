// Cinematch - Content-Based Movie Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinematch

package services

import (
	"context"
	"fmt"
	"time"
)

// ResponderRunner is the lifecycle of transport.Responder.
type ResponderRunner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// NATSResponderService runs the NATS recommendation responder under
// supervision. A failed Start is returned so suture retries with backoff.
type NATSResponderService struct {
	responder       ResponderRunner
	shutdownTimeout time.Duration
	name            string
}

// NewNATSResponderService wraps responder. shutdownTimeout bounds the wait
// for in-flight requests; it defaults to 10s.
func NewNATSResponderService(responder ResponderRunner, shutdownTimeout time.Duration) *NATSResponderService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &NATSResponderService{
		responder:       responder,
		shutdownTimeout: shutdownTimeout,
		name:            "nats-responder",
	}
}

// Serve implements suture.Service.
func (s *NATSResponderService) Serve(ctx context.Context) error {
	if err := s.responder.Start(ctx); err != nil {
		return fmt.Errorf("nats responder start failed: %w", err)
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.responder.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("nats responder stop failed: %w", err)
	}
	return ctx.Err()
}

// String returns the service name for logging.
func (s *NATSResponderService) String() string {
	return s.name
}
