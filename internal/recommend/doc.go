// Cinematch - Content-Based Movie Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinematch

// Package recommend implements the content-based recommendation engine.
//
// # Architecture
//
// Movies are encoded as weighted one-hot vectors over a shared feature space
// built from the catalog (genres, directors, actors). A user's likes and
// dislikes are folded into a single preference vector, and every movie the
// user has not interacted with is ranked against it:
//
//	FeatureSpace  -> BuildFeatureSpace over the full catalog
//	MovieVector   -> FeatureSpace.Vectorize(movie, weights)
//	Profile       -> AggregateProfile(liked, disliked, rarity)
//	Ranking       -> Rank(profile, records, exclude, limit)
//
// # Feature Weights
//
// Two weight presets exist. BatchWeights (10/8/6) is used by the refresh job
// that materializes the durable vector store; LocalWeights (8/3/1.5) is used
// when the engine vectorizes the catalog itself. Vectors are only comparable
// within one FeatureSpace generation.
//
// # Execution Model
//
// Each request runs as a Task on its own goroutine:
//
//	Idle -> Fetching -> Scoring -> Completed | Failed
//
// The caller receives exactly one terminal Response on the channel returned
// by Task.Start. Fetching always completes before scoring begins, so scoring
// observes a single consistent snapshot of the vector cache. The engine does
// not preempt running tasks; Dispatcher discards results that were
// superseded by a newer request from the same consumer.
//
// # Usage
//
//	engine, err := recommend.NewEngine(cfg, catalog, cache, durable, logger)
//	if err != nil {
//	    return err
//	}
//
//	resp := engine.Recommend(ctx, recommend.Request{
//	    ProfileID: profileID,
//	    Limit:     20,
//	})
//
// # Thread Safety
//
// The engine is safe for concurrent use. Cache hydration is single-flighted
// and runs at most once per engine lifetime unless it fails.
package recommend
