// Cinematch - Content-Based Movie Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinematch

package recommend

import (
	"math"
	"sort"
)

// Scoring constants.
const (
	// SimilarityWeight is the share of the final score taken by similarity.
	SimilarityWeight = 0.7
	// RatingWeight is the share of the final score taken by rating.
	RatingWeight = 0.3
	// SimilarityExponent emphasizes strong matches over moderate ones.
	SimilarityExponent = 1.5
	// NeutralRatingScore is used for movies without an average rating.
	NeutralRatingScore = 0.5
	// RatingScale maps average ratings onto [0, 1].
	RatingScale = 10.0
)

// CosineSimilarity computes dot(a,b)/(|a||b|). It returns 0 when either
// vector has zero magnitude or the lengths differ.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// SignedPow returns sign(x)*|x|^p.
func SignedPow(x, p float64) float64 {
	if x < 0 {
		return -math.Pow(-x, p)
	}
	return math.Pow(x, p)
}

// RatingScore maps an optional average rating onto [0, 1].
func RatingScore(rating *float64) float64 {
	if rating == nil {
		return NeutralRatingScore
	}
	return *rating / RatingScale
}

// FinalScore blends similarity and rating score.
func FinalScore(similarity, ratingScore float64) float64 {
	return SimilarityWeight*SignedPow(similarity, SimilarityExponent) + RatingWeight*ratingScore
}

// Rank scores every record not in exclude against profile and returns the
// top limit by descending FinalScore. Equal scores are ordered by ascending
// movie ID. A limit <= 0 returns every candidate.
func Rank(profile UserProfileVector, records []CachedMovieRecord, exclude map[int]struct{}, limit int) []ScoredMovie {
	scored := make([]ScoredMovie, 0, len(records))
	for i := range records {
		r := &records[i]
		if _, skip := exclude[r.ID]; skip {
			continue
		}

		sim := CosineSimilarity(profile, r.Vector)
		scored = append(scored, ScoredMovie{
			ID:            r.ID,
			Title:         r.Title,
			Genres:        r.Genres,
			AverageRating: r.AverageRating,
			Director:      r.Director,
			Similarity:    sim,
			FinalScore:    FinalScore(sim, RatingScore(r.AverageRating)),
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].FinalScore != scored[j].FinalScore {
			return scored[i].FinalScore > scored[j].FinalScore
		}
		return scored[i].ID < scored[j].ID
	})

	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}
