// Cinematch - Content-Based Movie Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinematch

package vectorcache

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/cinematch/internal/recommend"
)

// SchemaVersion is the version of the persisted record layout. Bump it
// whenever CachedMovieRecord or the key layout changes.
//
// Version 2 added the record generation.
const SchemaVersion = 2

// Key layout.
const (
	recordKeyPrefix = "movie:"
	metaSchemaKey   = "meta:schema"
	metaSpaceKey    = "meta:space"
)

// Config controls how the cache database is opened.
type Config struct {
	// Path is the BadgerDB directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps the cache in memory only.
	InMemory bool

	// SyncWrites fsyncs every transaction.
	SyncWrites bool
}

var _ recommend.VectorCache = (*Store)(nil)

// Store implements recommend.VectorCache on BadgerDB.
type Store struct {
	db       *badger.DB
	ownsDB   bool
	inMemory bool
	logger   zerolog.Logger
}

// Open opens (or creates) the cache database and checks its schema
// version.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func Open(cfg Config, logger zerolog.Logger) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("vector cache path is required")
	}

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = cfg.SyncWrites
	opts.ValueLogFileSize = 64 << 20
	opts.Logger = nil // Suppress BadgerDB internal logs

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: open badger db: %w", recommend.ErrCacheUnavailable, err)
	}

	s, err := New(db, cfg.InMemory, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.ownsDB = true

	s.logger.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Msg("vector cache opened")
	return s, nil
}

// New creates a Store over an existing BadgerDB connection and checks the
// schema version. The caller keeps ownership of db.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func New(db *badger.DB, inMemory bool, logger zerolog.Logger) (*Store, error) {
	s := &Store{
		db:       db,
		inMemory: inMemory,
		logger:   logger.With().Str("component", "vectorcache").Logger(),
	}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close closes the database if the Store opened it.
func (s *Store) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}

// ensureSchema clears the cache when the stored schema version differs
// from SchemaVersion, then records the current version.
func (s *Store) ensureSchema() error {
	stored, err := s.schemaVersion()
	if err != nil {
		return err
	}
	if stored == SchemaVersion {
		return nil
	}

	if stored != 0 {
		s.logger.Warn().
			Int("stored_version", stored).
			Int("current_version", SchemaVersion).
			Msg("vector cache schema changed, clearing cache")
	}
	if err := s.dropAll(); err != nil {
		return err
	}

	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(SchemaVersion))
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(metaSchemaKey), buf)
	}); err != nil {
		return fmt.Errorf("%w: write schema version: %w", recommend.ErrCacheUnavailable, err)
	}
	return nil
}

// schemaVersion returns the stored version, or 0 if none is stored.
func (s *Store) schemaVersion() (int, error) {
	var version int
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(metaSchemaKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) != 4 {
				return nil // Unreadable version forces recreation
			}
			version = int(binary.BigEndian.Uint32(val))
			return nil
		})
	})
	if err != nil {
		return 0, fmt.Errorf("%w: read schema version: %w", recommend.ErrCacheUnavailable, err)
	}
	return version, nil
}

func recordKey(id int) []byte {
	return []byte(recordKeyPrefix + strconv.Itoa(id))
}

// IsPopulated reports whether at least one record is cached.
func (s *Store) IsPopulated(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(recordKeyPrefix)
		it.Seek(prefix)
		found = it.ValidForPrefix(prefix)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: check populated: %w", recommend.ErrCacheUnavailable, err)
	}
	return found, nil
}

// Count returns the number of cached records.
func (s *Store) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var n int
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(recordKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: count records: %w", recommend.ErrCacheUnavailable, err)
	}
	return n, nil
}

// PutBatch upserts records by ID in a single transaction.
func (s *Store) PutBatch(ctx context.Context, records []recommend.CachedMovieRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	// Encode outside the transaction to keep it short.
	encoded := make([][]byte, len(records))
	for i := range records {
		data, err := json.Marshal(&records[i])
		if err != nil {
			return fmt.Errorf("marshal record %d: %w", records[i].ID, err)
		}
		encoded[i] = data
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		for i := range records {
			if err := txn.Set(recordKey(records[i].ID), encoded[i]); err != nil {
				return fmt.Errorf("set record %d: %w", records[i].ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: put batch of %d: %w", recommend.ErrCacheUnavailable, len(records), err)
	}
	return nil
}

// GetAll returns every cached record from a single read transaction.
func (s *Store) GetAll(ctx context.Context) ([]recommend.CachedMovieRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var records []recommend.CachedMovieRecord
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		records, err = readRecords(txn)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get all: %w", recommend.ErrCacheUnavailable, err)
	}
	return records, nil
}

// Snapshot returns the feature space and every record from one read
// transaction.
func (s *Store) Snapshot(ctx context.Context) (*recommend.FeatureSpace, []recommend.CachedMovieRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var (
		space   *recommend.FeatureSpace
		records []recommend.CachedMovieRecord
	)
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		if space, err = readSpace(txn); err != nil {
			return err
		}
		records, err = readRecords(txn)
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: snapshot: %w", recommend.ErrCacheUnavailable, err)
	}
	return space, records, nil
}

func readRecords(txn *badger.Txn) ([]recommend.CachedMovieRecord, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = true
	it := txn.NewIterator(opts)
	defer it.Close()

	var records []recommend.CachedMovieRecord
	prefix := []byte(recordKeyPrefix)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		var rec recommend.CachedMovieRecord
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		}); err != nil {
			return nil, fmt.Errorf("decode %s: %w", item.Key(), err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// readSpace returns nil when no space is stored.
func readSpace(txn *badger.Txn) (*recommend.FeatureSpace, error) {
	item, err := txn.Get([]byte(metaSpaceKey))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	space := &recommend.FeatureSpace{}
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, space)
	}); err != nil {
		return nil, fmt.Errorf("decode feature space: %w", err)
	}
	return space, nil
}

// PutSpace stores the feature space of the cached generation.
func (s *Store) PutSpace(ctx context.Context, space *recommend.FeatureSpace) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(space)
	if err != nil {
		return fmt.Errorf("marshal feature space: %w", err)
	}

	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(metaSpaceKey), data)
	}); err != nil {
		return fmt.Errorf("%w: put feature space: %w", recommend.ErrCacheUnavailable, err)
	}
	return nil
}

// GetSpace returns the stored feature space, or nil if none is stored.
func (s *Store) GetSpace(ctx context.Context) (*recommend.FeatureSpace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var space *recommend.FeatureSpace
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		space, err = readSpace(txn)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get feature space: %w", recommend.ErrCacheUnavailable, err)
	}
	return space, nil
}

// Clear drops every record and the stored feature space. The schema
// version is kept.
func (s *Store) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.dropAll(); err != nil {
		return err
	}
	s.runGC()
	s.logger.Info().Msg("vector cache cleared")
	return nil
}

func (s *Store) dropAll() error {
	if err := s.db.DropPrefix([]byte(recordKeyPrefix), []byte(metaSpaceKey)); err != nil {
		return fmt.Errorf("%w: drop records: %w", recommend.ErrCacheUnavailable, err)
	}
	return nil
}

// runGC reclaims value log space after a clear. GC is not supported for
// in-memory databases.
func (s *Store) runGC() {
	if s.inMemory {
		return
	}
	for {
		err := s.db.RunValueLogGC(0.5)
		if errors.Is(err, badger.ErrNoRewrite) {
			return
		}
		if err != nil {
			s.logger.Debug().Err(err).Msg("value log GC stopped")
			return
		}
	}
}
