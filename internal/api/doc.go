// Cinematch - Content-Based Movie Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinematch

/*
Package api serves recommendations and interaction writes over HTTP.

# Routes

	GET    /health/live                              liveness
	GET    /health                                   catalog ping and engine stats
	GET    /metrics                                  Prometheus exposition
	GET    /api/v1/recommendations/{profileID}       ?limit=N
	POST   /api/v1/interactions                      {"profile_id","movie_id","type"}
	DELETE /api/v1/interactions/{profileID}/{movieID}

Recommendation responses use the engine's terminal Response body
unchanged, so HTTP and NATS clients decode the same JSON. The HTTP status
is derived from the error class:

	success                 200
	invalid request         400
	superseded              409
	catalog unavailable     503
	timeout                 504
	anything else           500

# Consumers

Requests carrying an X-Consumer-ID header are routed through a
recommend.Dispatcher, so a view that fires a new request before the
previous one finished receives 409 for the older one.

# Middleware

The chi stack is request ID with logging context, real IP, panic recovery,
CORS (go-chi/cors), per-IP rate limiting (go-chi/httprate), security
headers and Prometheus request metrics labelled by route pattern.
*/
package api
