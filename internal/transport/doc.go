// Cinematch - Content-Based Movie Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinematch

// Package transport exposes the recommendation task over NATS
// request-reply.
//
// A Responder subscribes to a subject (default "cinematch.recommend") in a
// queue group, decodes each JSON request, runs it through the engine and
// replies with the terminal JSON response:
//
//	request:  {"profile_id": "u1", "limit": 10, "consumer": "tab-1"}
//	response: {"status": "success", "recommendations": [...], "metadata": {...}}
//	          {"status": "error", "message": "...", "metadata": {...}}
//
// Requests that carry a consumer key go through a recommend.Dispatcher, so
// only the latest request per consumer receives real results; older ones
// are answered with a superseded error.
//
// EmbeddedServer runs an in-process NATS server for single-node
// deployments and tests.
package transport
