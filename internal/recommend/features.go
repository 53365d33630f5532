// Cinematch - Content-Based Movie Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinematch

package recommend

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// FeatureWeights are the per-feature-kind weights applied during
// vectorization. All weights must be positive.
type FeatureWeights struct {
	Genre    float64 `json:"genre"`
	Director float64 `json:"director"`
	Actor    float64 `json:"actor"`
}

var (
	// BatchWeights are used by the refresh job that populates the durable
	// vector store.
	BatchWeights = FeatureWeights{Genre: 10, Director: 8, Actor: 6}

	// LocalWeights are used when the engine vectorizes the catalog itself.
	LocalWeights = FeatureWeights{Genre: 8, Director: 3, Actor: 1.5}
)

// Weight preset names accepted by WeightsPreset.
const (
	WeightsPresetBatch = "batch"
	WeightsPresetLocal = "local"
)

// WeightsPreset returns the named weight preset.
func WeightsPreset(name string) (FeatureWeights, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case WeightsPresetBatch:
		return BatchWeights, nil
	case WeightsPresetLocal:
		return LocalWeights, nil
	default:
		return FeatureWeights{}, fmt.Errorf("unknown weights preset %q (valid: batch, local)", name)
	}
}

// Validate checks that all weights are positive.
func (w FeatureWeights) Validate() error {
	if w.Genre <= 0 {
		return fmt.Errorf("weights.genre must be > 0, got %v", w.Genre)
	}
	if w.Director <= 0 {
		return fmt.Errorf("weights.director must be > 0, got %v", w.Director)
	}
	if w.Actor <= 0 {
		return fmt.Errorf("weights.actor must be > 0, got %v", w.Actor)
	}
	return nil
}

// FeatureSpace is the ordered set of feature keys vectors are built over.
// Genres occupy [0, G), directors [G, G+D) and actors [G+D, G+D+A).
//
// A FeatureSpace is immutable after construction and safe for concurrent use.
type FeatureSpace struct {
	// Generation identifies the build. Vectors from different generations
	// are not comparable.
	Generation string

	Genres    []string
	Directors []string
	Actors    []string

	genreIndex    map[string]int
	directorIndex map[string]int
	actorIndex    map[string]int
}

// BuildFeatureSpace collects every distinct genre name, director and actor
// from movies in first-seen order. The result is deterministic for a fixed
// input order, apart from the random Generation id.
func BuildFeatureSpace(movies []Movie) *FeatureSpace {
	var genres, directors, actors []string
	seenGenre := make(map[string]struct{})
	seenDirector := make(map[string]struct{})
	seenActor := make(map[string]struct{})

	for i := range movies {
		m := &movies[i]

		for _, g := range m.Genres {
			name := strings.TrimSpace(g.Name)
			if name == "" {
				continue
			}
			if _, ok := seenGenre[name]; !ok {
				seenGenre[name] = struct{}{}
				genres = append(genres, name)
			}
		}

		if d := directorKey(m.Director); d != "" {
			if _, ok := seenDirector[d]; !ok {
				seenDirector[d] = struct{}{}
				directors = append(directors, d)
			}
		}

		for _, a := range m.Actors.Names() {
			if _, ok := seenActor[a]; !ok {
				seenActor[a] = struct{}{}
				actors = append(actors, a)
			}
		}
	}

	return NewFeatureSpace(uuid.NewString(), genres, directors, actors)
}

// NewFeatureSpace assembles a FeatureSpace from stored key lists. Duplicate
// and empty keys are dropped, keeping the first occurrence.
func NewFeatureSpace(generation string, genres, directors, actors []string) *FeatureSpace {
	s := &FeatureSpace{Generation: generation}
	s.Genres, s.genreIndex = indexKeys(genres)
	s.Directors, s.directorIndex = indexKeys(directors)
	s.Actors, s.actorIndex = indexKeys(actors)
	return s
}

func indexKeys(keys []string) ([]string, map[string]int) {
	out := make([]string, 0, len(keys))
	index := make(map[string]int, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := index[k]; ok {
			continue
		}
		index[k] = len(out)
		out = append(out, k)
	}
	return out, index
}

func directorKey(d *string) string {
	if d == nil {
		return ""
	}
	return strings.TrimSpace(*d)
}

// Dim returns the vector dimensionality G+D+A.
func (s *FeatureSpace) Dim() int {
	return len(s.Genres) + len(s.Directors) + len(s.Actors)
}

// GenreCount returns G, the number of genre slots at the head of each vector.
func (s *FeatureSpace) GenreCount() int {
	return len(s.Genres)
}

// GenreIndex returns the slot of a genre name.
func (s *FeatureSpace) GenreIndex(name string) (int, bool) {
	i, ok := s.genreIndex[strings.TrimSpace(name)]
	return i, ok
}

// Vectorize encodes a movie as a weighted one-hot vector. Keys that are not
// part of the space are ignored.
func (s *FeatureSpace) Vectorize(m Movie, w FeatureWeights) MovieVector {
	v := make(MovieVector, s.Dim())
	g := len(s.Genres)
	d := len(s.Directors)

	for _, genre := range m.Genres {
		if i, ok := s.genreIndex[strings.TrimSpace(genre.Name)]; ok {
			v[i] = w.Genre
		}
	}
	if i, ok := s.directorIndex[directorKey(m.Director)]; ok {
		v[g+i] = w.Director
	}
	for _, a := range m.Actors.Names() {
		if i, ok := s.actorIndex[a]; ok {
			v[g+d+i] = w.Actor
		}
	}
	return v
}

// featureSpaceJSON is the persisted form of a FeatureSpace.
type featureSpaceJSON struct {
	Generation string   `json:"generation"`
	Genres     []string `json:"genres"`
	Directors  []string `json:"directors"`
	Actors     []string `json:"actors"`
}

// MarshalJSON implements json.Marshaler.
func (s *FeatureSpace) MarshalJSON() ([]byte, error) {
	return json.Marshal(featureSpaceJSON{
		Generation: s.Generation,
		Genres:     s.Genres,
		Directors:  s.Directors,
		Actors:     s.Actors,
	})
}

// UnmarshalJSON implements json.Unmarshaler and rebuilds the index maps.
func (s *FeatureSpace) UnmarshalJSON(data []byte) error {
	var raw featureSpaceJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode feature space: %w", err)
	}
	*s = *NewFeatureSpace(raw.Generation, raw.Genres, raw.Directors, raw.Actors)
	return nil
}
