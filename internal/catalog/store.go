// Cinematch - Content-Based Movie Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinematch

package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/cinematch/internal/metrics"
	"github.com/tomtom215/cinematch/internal/recommend"
)

// Config controls the DuckDB connection.
type Config struct {
	// Path is the database file, or ":memory:".
	Path string

	// MaxMemory is the DuckDB memory limit (e.g. "512MB").
	MaxMemory string

	// Threads is the DuckDB worker count. Zero uses NumCPU.
	Threads int

	// QueryTimeout bounds each catalog query.
	QueryTimeout time.Duration
}

// Store is the DuckDB-backed catalog.
type Store struct {
	conn         *sql.DB
	queryTimeout time.Duration
	logger       zerolog.Logger
}

// Open connects to DuckDB and migrates the schema.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func Open(ctx context.Context, cfg Config, logger zerolog.Logger) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("catalog path is required")
	}

	// Ensure parent directory exists for database file
	if cfg.Path != ":memory:" {
		dir := filepath.Dir(cfg.Path)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create catalog directory %s: %w", dir, err)
			}
		}
	}

	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	maxMemory := cfg.MaxMemory
	if maxMemory == "" {
		maxMemory = "512MB"
	}

	// Disable auto-install/auto-load; the catalog uses no extensions.
	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, threads, maxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	s, err := New(ctx, conn, cfg.QueryTimeout, logger)
	if err != nil {
		closeQuietly(conn)
		return nil, err
	}
	return s, nil
}

// New wraps an open connection and migrates the schema.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func New(ctx context.Context, conn *sql.DB, queryTimeout time.Duration, logger zerolog.Logger) (*Store, error) {
	if queryTimeout <= 0 {
		queryTimeout = 30 * time.Second
	}

	conn.SetMaxOpenConns(runtime.NumCPU())
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(time.Hour)
	conn.SetConnMaxIdleTime(5 * time.Minute)

	s := &Store{
		conn:         conn,
		queryTimeout: queryTimeout,
		logger:       logger.With().Str("component", "catalog").Logger(),
	}
	if err := s.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate catalog: %w", err)
	}
	return s, nil
}

// Close closes the connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Ping checks if the connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

// Migrate creates the catalog tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS movies (
			id INTEGER PRIMARY KEY,
			title VARCHAR NOT NULL,
			director VARCHAR,
			actors VARCHAR,
			average_rating DOUBLE
		)`,
		`CREATE TABLE IF NOT EXISTS genres (
			id INTEGER PRIMARY KEY,
			name VARCHAR NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS movie_genres (
			movie_id INTEGER NOT NULL,
			genre_id INTEGER NOT NULL,
			PRIMARY KEY (movie_id, genre_id)
		)`,
		`CREATE TABLE IF NOT EXISTS interactions (
			profile_id VARCHAR NOT NULL,
			movie_id INTEGER NOT NULL,
			type VARCHAR NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (profile_id, movie_id)
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec schema statement: %w", err)
		}
	}
	return nil
}

// GetAllMovies returns every movie with its genres, ordered by ID.
func (s *Store) GetAllMovies(ctx context.Context) (movies []recommend.Movie, err error) {
	start := time.Now()
	defer func() { metrics.RecordCatalogQuery("get_all_movies", time.Since(start), err) }()

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	genresByMovie, err := s.movieGenres(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, title, director, actors, average_rating
		FROM movies
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query movies: %w", err)
	}
	defer closeQuietly(rows)

	for rows.Next() {
		var (
			m        recommend.Movie
			director sql.NullString
			actors   sql.NullString
			rating   sql.NullFloat64
		)
		if err := rows.Scan(&m.ID, &m.Title, &director, &actors, &rating); err != nil {
			return nil, fmt.Errorf("scan movie: %w", err)
		}
		if director.Valid {
			d := director.String
			m.Director = &d
		}
		if rating.Valid {
			r := rating.Float64
			m.AverageRating = &r
		}
		m.Actors = decodeActors(actors)
		m.Genres = genresByMovie[m.ID]
		movies = append(movies, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate movies: %w", err)
	}
	return movies, nil
}

func (s *Store) movieGenres(ctx context.Context) (map[int][]recommend.Genre, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT mg.movie_id, g.id, g.name
		FROM movie_genres mg
		JOIN genres g ON g.id = mg.genre_id
		ORDER BY mg.movie_id, g.id
	`)
	if err != nil {
		return nil, fmt.Errorf("query movie genres: %w", err)
	}
	defer closeQuietly(rows)

	out := make(map[int][]recommend.Genre)
	for rows.Next() {
		var movieID int
		var g recommend.Genre
		if err := rows.Scan(&movieID, &g.ID, &g.Name); err != nil {
			return nil, fmt.Errorf("scan movie genre: %w", err)
		}
		out[movieID] = append(out[movieID], g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate movie genres: %w", err)
	}
	return out, nil
}

// GetInteractions returns the movie IDs the profile interacted with using
// type t, in ascending order.
func (s *Store) GetInteractions(ctx context.Context, profileID string, t recommend.InteractionType) (ids []int, err error) {
	start := time.Now()
	defer func() { metrics.RecordCatalogQuery("get_interactions", time.Since(start), err) }()

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	rows, err := s.conn.QueryContext(ctx, `
		SELECT movie_id
		FROM interactions
		WHERE profile_id = ? AND type = ?
		ORDER BY movie_id
	`, profileID, t.String())
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer closeQuietly(rows)

	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interactions: %w", err)
	}
	return ids, nil
}

// RecordInteraction stores a like or dislike, replacing any earlier
// interaction for the same profile and movie.
func (s *Store) RecordInteraction(ctx context.Context, in recommend.Interaction) (err error) {
	start := time.Now()
	defer func() { metrics.RecordCatalogQuery("record_interaction", time.Since(start), err) }()

	if in.ProfileID == "" {
		return errors.New("profile id is required")
	}
	if in.Type != recommend.InteractionLike && in.Type != recommend.InteractionDislike {
		return fmt.Errorf("invalid interaction type %d", in.Type)
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO interactions (profile_id, movie_id, type, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (profile_id, movie_id) DO UPDATE SET
			type = EXCLUDED.type,
			updated_at = EXCLUDED.updated_at
	`, in.ProfileID, in.MovieID, in.Type.String(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert interaction: %w", err)
	}
	return nil
}

// DeleteInteraction removes the profile's interaction with a movie, if any.
func (s *Store) DeleteInteraction(ctx context.Context, profileID string, movieID int) (err error) {
	start := time.Now()
	defer func() { metrics.RecordCatalogQuery("delete_interaction", time.Since(start), err) }()

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	if _, err = s.conn.ExecContext(ctx,
		`DELETE FROM interactions WHERE profile_id = ? AND movie_id = ?`,
		profileID, movieID); err != nil {
		return fmt.Errorf("delete interaction: %w", err)
	}
	return nil
}

// UpsertMovie inserts or replaces a movie and its genre links in one
// transaction.
//
//nolint:gocritic // hugeParam: m passed by value for immutability
func (s *Store) UpsertMovie(ctx context.Context, m recommend.Movie) (err error) {
	start := time.Now()
	defer func() { metrics.RecordCatalogQuery("upsert_movie", time.Since(start), err) }()

	actors, err := encodeActors(m.Actors)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO movies (id, title, director, actors, average_rating)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			director = EXCLUDED.director,
			actors = EXCLUDED.actors,
			average_rating = EXCLUDED.average_rating
	`, m.ID, m.Title, nullString(m.Director), actors, nullFloat(m.AverageRating)); err != nil {
		return fmt.Errorf("upsert movie %d: %w", m.ID, err)
	}

	genres := uniqueGenres(m.Genres)

	// Drop links to genres the movie no longer carries. Links that are kept
	// are left in place rather than deleted and re-inserted.
	keep := make([]any, 0, len(genres)+1)
	keep = append(keep, m.ID)
	placeholders := make([]string, 0, len(genres))
	for _, g := range genres {
		keep = append(keep, g.ID)
		placeholders = append(placeholders, "?")
	}
	unlink := `DELETE FROM movie_genres WHERE movie_id = ?`
	if len(placeholders) > 0 {
		unlink += ` AND genre_id NOT IN (` + strings.Join(placeholders, ", ") + `)`
	}
	if _, err = tx.ExecContext(ctx, unlink, keep...); err != nil {
		return fmt.Errorf("unlink genres of movie %d: %w", m.ID, err)
	}

	for _, g := range genres {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO genres (id, name) VALUES (?, ?)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
		`, g.ID, g.Name); err != nil {
			return fmt.Errorf("upsert genre %d: %w", g.ID, err)
		}
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO movie_genres (movie_id, genre_id) VALUES (?, ?)
			ON CONFLICT DO NOTHING
		`, m.ID, g.ID); err != nil {
			return fmt.Errorf("link genre %d to movie %d: %w", g.ID, m.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit movie %d: %w", m.ID, err)
	}
	return nil
}

// CountMovies returns the number of catalog movies.
func (s *Store) CountMovies(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	var n int
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM movies`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count movies: %w", err)
	}
	return n, nil
}

// uniqueGenres returns the genres sorted by ID with duplicates removed.
func uniqueGenres(in []recommend.Genre) []recommend.Genre {
	genres := make([]recommend.Genre, len(in))
	copy(genres, in)
	sort.Slice(genres, func(i, j int) bool { return genres[i].ID < genres[j].ID })

	out := genres[:0]
	for i, g := range genres {
		if i > 0 && genres[i-1].ID == g.ID {
			continue
		}
		out = append(out, g)
	}
	return out
}

func encodeActors(a recommend.Actors) (sql.NullString, error) {
	raw := a.Raw()
	if raw == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode actors: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// decodeActors treats unparseable values as no cast information.
func decodeActors(col sql.NullString) recommend.Actors {
	if !col.Valid {
		return recommend.UnsetActors()
	}
	var raw any
	if err := json.Unmarshal([]byte(col.String), &raw); err != nil {
		return recommend.UnsetActors()
	}
	return recommend.ParseActors(raw)
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close() // Explicitly ignore error - cleanup is best-effort
	}
}
