// Cinematch - Content-Based Movie Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinematch

package recommend

import (
	"fmt"
	"math"
)

// Profile aggregation constants.
const (
	// dislikeBetaBase is the dislike sensitivity when dislikes are rare.
	dislikeBetaBase = 0.8
	// dislikeBetaDamping is how far beta drops once dislikes outnumber likes.
	dislikeBetaDamping = 0.3
)

// GenreRarity returns a weight per genre slot of space: 1/ln(1+count) where
// count is the number of records carrying the genre. Genres that no record
// carries get weight 0.
//
// Counts are taken from the records' genre slots. Records from another
// generation are ignored.
func GenreRarity(space *FeatureSpace, records []CachedMovieRecord) []float64 {
	g := space.GenreCount()
	counts := make([]int, g)
	for i := range records {
		vec := records[i].Vector
		if records[i].Generation != space.Generation || len(vec) < g {
			continue
		}
		for j := 0; j < g; j++ {
			if vec[j] != 0 {
				counts[j]++
			}
		}
	}

	rarity := make([]float64, g)
	for j, c := range counts {
		if c > 0 {
			rarity[j] = 1 / math.Log(1+float64(c))
		}
	}
	return rarity
}

// DislikeSensitivity returns beta for the given numbers of liked and
// disliked movies. It is 0.8 with no dislikes and falls linearly to 0.5 once
// dislikes reach likes+1.
func DislikeSensitivity(likedCount, dislikedCount int) float64 {
	ratio := float64(dislikedCount) / float64(likedCount+1)
	return dislikeBetaBase - dislikeBetaDamping*math.Min(1, ratio)
}

// interactionWeights returns the like/dislike mix: each side's share of
// all interactions.
func interactionWeights(likedCount, dislikedCount int) (wLike, wDislike float64) {
	total := likedCount + dislikedCount
	if total == 0 {
		return 0, 0
	}
	return float64(likedCount) / float64(total), float64(dislikedCount) / float64(total)
}

// AggregateProfile folds liked and disliked movie vectors into one
// preference vector:
//
//	profile = wLike*mean(liked) - beta*wDislike*mean(disliked)
//
// Genre slots of both means are scaled by rarity before combining; rarity
// may be shorter than the vectors (only genre slots are scaled) or nil.
// All vectors must share one dimensionality.
func AggregateProfile(liked, disliked []MovieVector, rarity []float64) (UserProfileVector, error) {
	lc, dc := len(liked), len(disliked)
	if lc == 0 && dc == 0 {
		return nil, ErrEmptyProfile
	}

	var dim int
	if lc > 0 {
		dim = len(liked[0])
	} else {
		dim = len(disliked[0])
	}
	if len(rarity) > dim {
		return nil, fmt.Errorf("%w: %d rarity weights for %d dimensions", ErrDimensionMismatch, len(rarity), dim)
	}

	likedMean, err := meanVector(liked, dim)
	if err != nil {
		return nil, err
	}
	dislikedMean, err := meanVector(disliked, dim)
	if err != nil {
		return nil, err
	}

	for i, r := range rarity {
		likedMean[i] *= r
		dislikedMean[i] *= r
	}

	wLike, wDislike := interactionWeights(lc, dc)
	beta := DislikeSensitivity(lc, dc)

	profile := make(UserProfileVector, dim)
	for i := range profile {
		profile[i] = wLike*likedMean[i] - beta*wDislike*dislikedMean[i]
	}
	return profile, nil
}

// meanVector returns the element-wise mean, or a zero vector for no input.
func meanVector(vectors []MovieVector, dim int) ([]float64, error) {
	mean := make([]float64, dim)
	if len(vectors) == 0 {
		return mean, nil
	}
	for _, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(v), dim)
		}
		for i, x := range v {
			mean[i] += x
		}
	}
	n := float64(len(vectors))
	for i := range mean {
		mean[i] /= n
	}
	return mean, nil
}
