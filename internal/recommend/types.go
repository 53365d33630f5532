// Cinematch - Content-Based Movie Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinematch

package recommend

import (
	"fmt"
	"strings"
	"time"
)

// InteractionType classifies explicit user feedback on a movie.
type InteractionType int

const (
	// InteractionLike indicates the user liked the movie.
	InteractionLike InteractionType = iota + 1
	// InteractionDislike indicates the user disliked the movie.
	InteractionDislike
)

// String returns the storage name of the interaction type.
func (t InteractionType) String() string {
	switch t {
	case InteractionLike:
		return "like"
	case InteractionDislike:
		return "dislike"
	default:
		return "unknown"
	}
}

// ParseInteractionType converts a storage name back to an InteractionType.
func ParseInteractionType(s string) (InteractionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "like":
		return InteractionLike, nil
	case "dislike":
		return InteractionDislike, nil
	default:
		return 0, fmt.Errorf("unknown interaction type %q", s)
	}
}

// Interaction is a single like or dislike. There is at most one interaction
// per (ProfileID, MovieID) pair.
type Interaction struct {
	ProfileID string          `json:"profile_id"`
	MovieID   int             `json:"movie_id"`
	Type      InteractionType `json:"type"`
}

// Genre is a catalog genre.
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Movie is a catalog movie as delivered by the CatalogStore.
type Movie struct {
	ID            int
	Title         string
	Genres        []Genre
	Director      *string
	Actors        Actors
	AverageRating *float64
}

// MovieVector is a weighted one-hot encoding of a movie over a FeatureSpace.
// Positions are only meaningful within the FeatureSpace generation that
// produced the vector.
type MovieVector []float64

// UserProfileVector is a per-request preference vector. It has the same
// dimensionality as the MovieVectors it was aggregated from.
type UserProfileVector []float64

// CachedMovieRecord is a precomputed movie vector plus the movie fields the
// ranker returns to callers. Generation names the FeatureSpace the vector
// was built in; a record is only scored against that space.
type CachedMovieRecord struct {
	ID            int         `json:"id"`
	Title         string      `json:"title"`
	Generation    string      `json:"generation"`
	Vector        MovieVector `json:"vector"`
	Genres        []Genre     `json:"genres"`
	AverageRating *float64    `json:"average_rating"`
	Director      *string     `json:"director"`
}

// ScoredMovie is one ranked recommendation.
type ScoredMovie struct {
	ID            int      `json:"id"`
	Title         string   `json:"title"`
	Genres        []Genre  `json:"genres"`
	AverageRating *float64 `json:"average_rating"`
	Director      *string  `json:"director"`

	// Similarity is the cosine similarity to the user profile, in [-1, 1].
	Similarity float64 `json:"similarity"`

	// FinalScore blends similarity with the movie's rating. Results are
	// ordered by descending FinalScore.
	FinalScore float64 `json:"finalScore"`
}

// Request is the single message a caller sends to a recommendation task.
type Request struct {
	// ProfileID identifies the user whose interactions drive the profile.
	ProfileID string `json:"profile_id" validate:"required,profileid,max=256"`

	// Limit is the maximum number of recommendations to return.
	// Defaults to Config.Limits.DefaultLimit if zero.
	Limit int `json:"limit" validate:"min=0"`

	// RequestID is a unique identifier for tracing.
	RequestID string `json:"request_id,omitempty"`
}

// Status is the terminal status of a recommendation task.
type Status string

const (
	// StatusSuccess indicates the task completed. Recommendations may be empty.
	StatusSuccess Status = "success"
	// StatusError indicates the task failed.
	StatusError Status = "error"
)

// Response is the single terminal message a recommendation task produces.
type Response struct {
	Status          Status           `json:"status"`
	Recommendations []ScoredMovie    `json:"recommendations"`
	Message         string           `json:"message,omitempty"`
	Metadata        ResponseMetadata `json:"metadata"`

	// Err carries the underlying error for in-process callers.
	Err error `json:"-"`
}

// ResponseMetadata contains timing and diagnostic information.
type ResponseMetadata struct {
	RequestID string `json:"request_id"`
	ProfileID string `json:"profile_id"`

	// Generation is the FeatureSpace generation the vectors were built in.
	Generation string `json:"generation,omitempty"`

	// Candidates is the number of uninteracted movies that were scored.
	Candidates int `json:"candidates"`

	// EmptyReason explains an empty successful result ("no_interactions",
	// "cache_unavailable", "no_vectors").
	EmptyReason string `json:"empty_reason,omitempty"`

	LatencyMS int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
}

// OK reports whether the response completed successfully.
func (r *Response) OK() bool {
	return r.Status == StatusSuccess
}

// TaskState is the lifecycle state of a recommendation task.
type TaskState int32

const (
	// StateIdle is the state of a task that has not been started.
	StateIdle TaskState = iota
	// StateFetching indicates interactions and cached vectors are being read.
	StateFetching
	// StateScoring indicates the profile is being aggregated and ranked.
	StateScoring
	// StateCompleted is terminal: a success response was produced.
	StateCompleted
	// StateFailed is terminal: an error response was produced.
	StateFailed
)

// String returns a human-readable state name.
func (s TaskState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateScoring:
		return "scoring"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state is Completed or Failed.
func (s TaskState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}
