// Cinematch - Content-Based Movie Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinematch

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/cinematch/internal/config"
	"github.com/tomtom215/cinematch/internal/logging"
	"github.com/tomtom215/cinematch/internal/recommend"
	"github.com/tomtom215/cinematch/internal/supervisor"
	"github.com/tomtom215/cinematch/internal/supervisor/services"
	"github.com/tomtom215/cinematch/internal/transport"
)

// natsComponents owns the embedded server and client connection.
type natsComponents struct {
	server *transport.EmbeddedServer
	conn   *natsgo.Conn
}

// Close drains the connection, then stops the embedded server. Safe on nil.
func (n *natsComponents) Close() {
	if n == nil {
		return
	}
	if n.conn != nil {
		if err := n.conn.Drain(); err != nil {
			logging.Warn().Err(err).Msg("NATS drain failed")
		}
	}
	if n.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := n.server.Shutdown(ctx); err != nil {
			logging.Warn().Err(err).Msg("Embedded NATS server shutdown timed out")
		}
	}
}

// connectNATS starts the embedded server when configured and connects.
func connectNATS(cfg *config.Config) (*natsComponents, error) {
	nc := &natsComponents{}
	url := cfg.NATS.URL

	if cfg.NATS.EmbeddedServer {
		srv, err := transport.NewEmbeddedServer(transport.ServerConfig{
			Host: cfg.NATS.Host,
			Port: cfg.NATS.Port,
		})
		if err != nil {
			return nil, fmt.Errorf("start embedded NATS server: %w", err)
		}
		nc.server = srv
		url = srv.ClientURL()
		logging.Info().Str("url", url).Msg("Embedded NATS server started")
	}

	conn, err := natsgo.Connect(url,
		natsgo.Name("cinematch"),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2*time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logging.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		natsgo.ReconnectHandler(func(c *natsgo.Conn) {
			logging.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("connect to NATS %s: %w", url, err)
	}
	nc.conn = conn
	return nc, nil
}

// initNATS wires the responder into the messaging layer. It returns nil
// components when NATS is disabled.
func initNATS(cfg *config.Config, engine *recommend.Engine, dispatcher *recommend.Dispatcher, tree *supervisor.SupervisorTree) (*natsComponents, error) {
	if !cfg.NATS.Enabled {
		logging.Info().Msg("NATS transport disabled (NATS_ENABLED=false)")
		return nil, nil
	}

	nc, err := connectNATS(cfg)
	if err != nil {
		return nil, err
	}

	responder, err := transport.NewResponder(nc.conn, engine, dispatcher, transport.ResponderConfig{
		Subject:        cfg.NATS.Subject,
		QueueGroup:     cfg.NATS.QueueGroup,
		RequestTimeout: cfg.NATS.RequestTimeout,
	}, logging.WithComponent("transport"))
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create NATS responder: %w", err)
	}

	tree.AddMessagingService(services.NewNATSResponderService(responder, cfg.Server.ShutdownTimeout))
	logging.Info().Str("subject", cfg.NATS.Subject).Msg("NATS responder added to supervisor tree")
	return nc, nil
}

// runQuery sends one request to a running server and prints the JSON
// response to stdout.
func runQuery(ctx context.Context, cfg *config.Config, profileID string, limit int) error {
	if cfg.NATS.URL == "" {
		return errors.New("-recommend needs NATS_URL pointing at a running server")
	}
	conn, err := natsgo.Connect(cfg.NATS.URL, natsgo.Name("cinematch-cli"))
	if err != nil {
		return fmt.Errorf("connect to NATS %s: %w", cfg.NATS.URL, err)
	}
	defer conn.Close()

	client := transport.NewClient(conn, cfg.NATS.Subject, cfg.NATS.RequestTimeout)
	resp, err := client.Recommend(ctx, transport.WireRequest{
		ProfileID: profileID,
		Limit:     limit,
		RequestID: logging.GenerateRequestID(),
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return err
	}
	return resp.Err
}
