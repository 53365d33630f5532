// Cinematch - Content-Based Movie Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinematch

/*
Package supervisor runs Cinematch's long-lived components under a suture v4
supervisor tree.

# Tree Layout

	cinematch (root)
	├── data-layer        refresh scheduler
	├── messaging-layer   NATS responder
	└── api-layer         HTTP server

Each layer is its own supervisor, so a NATS responder stuck in a restart
loop does not take the HTTP API down with it. Services are restarted with
suture's failure decay and backoff; TreeConfig exposes those knobs.

Supervisor events (service panics, backoff, restarts) are logged through
sutureslog, which writes into the zerolog stream via logging.NewSlogLogger.

# Services

The services subpackage adapts blocking or start/stop components to the
suture.Service interface:

  - RefreshService: runs the refresh job on a ticker and invalidates the
    engine's vector cache after each completed run
  - HTTPServerService: ListenAndServe with graceful Shutdown
  - NATSResponderService: Start/Stop lifecycle of the NATS responder

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{})
	tree.AddDataService(services.NewRefreshService(job, engine, refreshCfg, logger))
	tree.AddMessagingService(services.NewNATSResponderService(responder, 10*time.Second))
	tree.AddAPIService(services.NewHTTPServerService(server, 15*time.Second))
	err = tree.Serve(ctx)
*/
package supervisor
