// Cinematch - Content-Based Movie Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinematch

// Package catalog implements the movie catalog and interaction store on
// DuckDB.
//
// Schema:
//
//	movies(id, title, director, actors, average_rating)
//	genres(id, name)
//	movie_genres(movie_id, genre_id)
//	interactions(profile_id, movie_id, type, updated_at)
//
// The actors column holds the upstream cast shape as JSON: NULL, a string,
// or an array of names. Each (profile_id, movie_id) pair has at most one
// interaction; recording a new one replaces the old.
//
// Store satisfies recommend.CatalogStore.
package catalog
