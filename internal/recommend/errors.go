// Cinematch - Content-Based Movie Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinematch

package recommend

import "errors"

var (
	// ErrCacheUnavailable indicates the vector cache could not be read or
	// written. The engine reports it as an empty successful result.
	ErrCacheUnavailable = errors.New("vector cache unavailable")

	// ErrCatalogFetchFailed indicates the catalog store failed to return
	// movies or interactions.
	ErrCatalogFetchFailed = errors.New("catalog fetch failed")

	// ErrEmptyProfile indicates the user has no resolvable likes or dislikes.
	ErrEmptyProfile = errors.New("empty profile")

	// ErrBatchWriteFailed indicates one refresh batch could not be upserted.
	ErrBatchWriteFailed = errors.New("batch write failed")

	// ErrRefreshInProgress is returned when a refresh run is already active.
	ErrRefreshInProgress = errors.New("refresh already in progress")

	// ErrTimeout indicates the caller's deadline expired before the task
	// produced a result.
	ErrTimeout = errors.New("recommendation timed out")

	// ErrInvalidRequest indicates the request failed validation.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrDimensionMismatch indicates vectors from different feature space
	// generations were combined.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)
