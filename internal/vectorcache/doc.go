// Cinematch - Content-Based Movie Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinematch

// Package vectorcache provides the persistent local cache of precomputed
// movie vectors, backed by BadgerDB.
//
// Records are stored as JSON under "movie:<id>". The feature space of the
// cached generation is stored under "meta:space" and the record schema
// version under "meta:schema". Opening a cache written with a different
// schema version clears it.
//
// Every PutBatch runs in one read-write transaction and GetAll in one
// read-only transaction, so a reader observes either the whole batch or
// none of it.
//
// Storage failures are wrapped in recommend.ErrCacheUnavailable.
package vectorcache
