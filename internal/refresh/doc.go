// Cinematch - Content-Based Movie Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinematch

// Package refresh implements the offline job that rebuilds every movie
// vector and publishes it to the durable store.
//
// A run fetches the whole catalog, builds a new feature space generation,
// vectorizes every movie with the batch weights and upserts the records in
// fixed-size batches. Batches are paced by a rate limiter so a large
// catalog does not saturate the store. A failed batch is logged and
// counted; the run continues with the next batch.
//
// The feature space is written before any vector so readers never see
// vectors of a generation whose space is missing.
//
// Only one run may be active per Job; a concurrent Run returns
// recommend.ErrRefreshInProgress.
package refresh
