// Cinematch - Content-Based Movie Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinematch

package recommend

import (
	"strings"
)

type actorsKind uint8

const (
	actorsUnset actorsKind = iota
	actorsSingle
	actorsMany
)

// Actors is the cast of a movie as delivered by the catalog. Upstream data
// carries either nothing, a single comma-separated string, or a list of
// names; the three shapes are kept distinct until Names normalizes them.
type Actors struct {
	kind   actorsKind
	single string
	many   []string
}

// UnsetActors returns an Actors value with no cast information.
func UnsetActors() Actors {
	return Actors{kind: actorsUnset}
}

// SingleActors wraps a single, possibly comma-separated, cast string.
func SingleActors(s string) Actors {
	return Actors{kind: actorsSingle, single: s}
}

// ManyActors wraps a list of cast names.
func ManyActors(names []string) Actors {
	cp := make([]string, len(names))
	copy(cp, names)
	return Actors{kind: actorsMany, many: cp}
}

// ParseActors converts a raw upstream value into Actors. Strings become
// Single, string slices become Many, and anything else (including nil and
// malformed values) is treated as Unset.
func ParseActors(raw any) Actors {
	switch v := raw.(type) {
	case nil:
		return UnsetActors()
	case string:
		return SingleActors(v)
	case *string:
		if v == nil {
			return UnsetActors()
		}
		return SingleActors(*v)
	case []string:
		return ManyActors(v)
	case []any:
		names := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				names = append(names, s)
			}
		}
		return ManyActors(names)
	default:
		return UnsetActors()
	}
}

// IsSet reports whether any cast information was provided.
func (a Actors) IsSet() bool {
	return a.kind != actorsUnset
}

// Names returns the trimmed, non-empty cast names in upstream order.
// A single string is split on commas.
func (a Actors) Names() []string {
	var raw []string
	switch a.kind {
	case actorsSingle:
		raw = strings.Split(a.single, ",")
	case actorsMany:
		raw = a.many
	default:
		return nil
	}

	names := make([]string, 0, len(raw))
	for _, name := range raw {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// Raw returns the upstream shape of the cast: nil, a string, or a slice of
// names. ParseActors(a.Raw()) reproduces a.
func (a Actors) Raw() any {
	switch a.kind {
	case actorsSingle:
		return a.single
	case actorsMany:
		out := make([]string, len(a.many))
		copy(out, a.many)
		return out
	default:
		return nil
	}
}
