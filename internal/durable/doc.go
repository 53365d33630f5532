// Cinematch - Content-Based Movie Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinematch

// Package durable provides the shared vector store the refresh job writes
// and recommendation processes hydrate their local caches from.
//
// Backends:
//
//   - RedisStore: records in one Redis hash keyed by movie ID, feature
//     space in a sibling string key. Each Upsert is a MULTI/EXEC pipeline.
//   - MemoryStore: a process-local map for tests and single-node setups.
//
// BreakerStore wraps any backend with a circuit breaker so a failing
// remote store is not hammered by every refresh batch and hydration.
package durable
