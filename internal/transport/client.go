// Cinematch - Content-Based Movie Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinematch

package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"

	"github.com/tomtom215/cinematch/internal/recommend"
)

// ErrRemote wraps the message of an error response received over NATS.
var ErrRemote = errors.New("remote recommendation error")

// Client sends recommendation requests over NATS.
type Client struct {
	conn    *nats.Conn
	subject string
	timeout time.Duration
}

// NewClient creates a client. timeout applies when ctx has no deadline.
func NewClient(conn *nats.Conn, subject string, timeout time.Duration) *Client {
	if subject == "" {
		subject = DefaultSubject
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{conn: conn, subject: subject, timeout: timeout}
}

// Recommend sends req and waits for the terminal response. Transport
// failures are returned as errors; an error response from the service is
// returned as a Response whose Err wraps ErrRemote.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (c *Client) Recommend(ctx context.Context, req WireRequest) (recommend.Response, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	data, err := json.Marshal(req)
	if err != nil {
		return recommend.Response{}, fmt.Errorf("encode request: %w", err)
	}

	msg, err := c.conn.RequestWithContext(ctx, c.subject, data)
	if err != nil {
		return recommend.Response{}, fmt.Errorf("request %s: %w", c.subject, err)
	}

	var resp recommend.Response
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		return recommend.Response{}, fmt.Errorf("decode response: %w", err)
	}
	if resp.Status == recommend.StatusError {
		resp.Err = fmt.Errorf("%w: %s", ErrRemote, resp.Message)
	}
	return resp, nil
}
