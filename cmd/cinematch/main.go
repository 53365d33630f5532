// Cinematch - Content-Based Movie Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinematch

// Package main is the entry point for the Cinematch recommendation server.
//
// # Startup Order
//
//  1. Configuration: koanf v2 (defaults, config.yaml, environment)
//  2. Catalog: DuckDB movies, genres and interactions
//  3. Durable store: Redis (or in-process memory) behind a circuit breaker
//  4. Vector cache: BadgerDB
//  5. Engine and dispatcher
//  6. Supervisor tree: refresh scheduler, NATS responder, HTTP server
//
// # Modes
//
//	cinematch                          # serve (default)
//	cinematch -refresh-once            # rebuild the durable store and exit
//	cinematch -recommend alice -limit 5  # query a running server over NATS
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the root context. The supervisor stops the HTTP
// server and NATS responder with their shutdown timeouts, then stores are
// closed in reverse order of opening.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/cinematch/internal/api"
	"github.com/tomtom215/cinematch/internal/config"
	"github.com/tomtom215/cinematch/internal/logging"
	"github.com/tomtom215/cinematch/internal/recommend"
	"github.com/tomtom215/cinematch/internal/supervisor"
	"github.com/tomtom215/cinematch/internal/supervisor/services"
)

func main() {
	refreshOnce := flag.Bool("refresh-once", false, "run one durable store refresh and exit")
	recommendProfile := flag.String("recommend", "", "request recommendations for a profile over NATS and exit")
	limit := flag.Int("limit", 0, "result limit for -recommend (0 uses the server default)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var runErr error
	switch {
	case *recommendProfile != "":
		runErr = runQuery(ctx, cfg, *recommendProfile, *limit)
	case *refreshOnce:
		runErr = runRefreshOnce(ctx, cfg)
	default:
		runErr = serve(ctx, cfg)
	}
	if runErr != nil {
		logging.Error().Err(runErr).Msg("Cinematch exited with error")
		stop()
		os.Exit(1)
	}
}

// serve runs every component under the supervisor tree until ctx ends.
func serve(ctx context.Context, cfg *config.Config) error {
	logging.Info().
		Str("catalog", cfg.Catalog.Path).
		Str("durable_backend", cfg.Durable.Backend).
		Str("cache_source", cfg.Recommend.CacheSource).
		Msg("Starting Cinematch")

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	engine, err := newEngine(cfg, st)
	if err != nil {
		return err
	}
	dispatcher := recommend.NewDispatcher(engine)

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	if cfg.Refresh.Enabled {
		job, err := newRefreshJob(cfg, st)
		if err != nil {
			return err
		}
		var invalidator services.CacheInvalidator
		if cfg.Recommend.CacheSource == config.CacheSourceDurable {
			invalidator = engine
		}
		tree.AddDataService(services.NewRefreshService(job, invalidator, services.RefreshServiceConfig{
			Interval:     cfg.Refresh.Interval,
			RunOnStartup: cfg.Refresh.RunOnStartup,
		}, logging.WithComponent("refresh")))
		logging.Info().Dur("interval", cfg.Refresh.Interval).Msg("Refresh scheduler added to supervisor tree")
	} else {
		logging.Info().Msg("Refresh scheduler disabled (REFRESH_ENABLED=false)")
	}

	nc, err := initNATS(cfg, engine, dispatcher, tree)
	if err != nil {
		return err
	}
	defer nc.Close()

	handler, err := api.NewHandler(engine, dispatcher, st.catalog, api.HandlerConfig{
		RequestTimeout: cfg.Recommend.RequestTimeout,
	}, logging.WithComponent("api"))
	if err != nil {
		return fmt.Errorf("create api handler: %w", err)
	}

	if cfg.Server.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}
	mw := api.NewMiddleware(&api.MiddlewareConfig{
		CORSAllowedOrigins: cfg.Server.CORSOrigins,
		CORSMaxAge:         api.DefaultMiddlewareConfig().CORSMaxAge,
		RateLimitRequests:  cfg.Server.RateLimitReqs,
		RateLimitWindow:    cfg.Server.RateLimitWindow,
		RateLimitDisabled:  cfg.Server.RateLimitDisabled,
	})

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           api.NewRouter(handler, mw),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// Warm the cache off the request path. A failure here is retried by the
	// first request.
	go func() {
		if err := engine.Hydrate(ctx); err != nil && ctx.Err() == nil {
			logging.Warn().Err(err).Msg("Initial cache hydration failed")
		}
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	var treeErr error
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
		treeErr = err
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	stats := engine.Stats()
	logging.Info().
		Int64("requests", stats.Requests).
		Int64("errors", stats.Errors).
		Msg("Cinematch stopped")
	return treeErr
}
