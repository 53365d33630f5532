// Cinematch - Content-Based Movie Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinematch

package durable

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/tomtom215/cinematch/internal/metrics"
	"github.com/tomtom215/cinematch/internal/recommend"
)

var _ recommend.DurableStore = (*RedisStore)(nil)

const backendRedis = "redis"

// hscanCount is the COUNT hint for each HSCAN page.
const hscanCount = 500

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// KeyPrefix namespaces the store's keys. Records live in
	// "<prefix>:vectors" and the feature space in "<prefix>:space".
	KeyPrefix string

	DialTimeout time.Duration
}

// RedisStore is a DurableStore backed by a Redis hash.
type RedisStore struct {
	client    *redis.Client
	vectorKey string
	spaceKey  string
	logger    zerolog.Logger
}

// NewRedisStore connects to Redis and verifies the connection.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewRedisStore(ctx context.Context, cfg RedisConfig, logger zerolog.Logger) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return NewRedisStoreWithClient(client, cfg.KeyPrefix, logger), nil
}

// NewRedisStoreWithClient wraps an existing client.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewRedisStoreWithClient(client *redis.Client, keyPrefix string, logger zerolog.Logger) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "cinematch"
	}
	return &RedisStore{
		client:    client,
		vectorKey: keyPrefix + ":vectors",
		spaceKey:  keyPrefix + ":space",
		logger:    logger.With().Str("component", "durable").Str("backend", backendRedis).Logger(),
	}
}

// Close closes the Redis client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

// Ping checks the Redis connection.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Upsert writes records as hash fields in a single MULTI/EXEC.
func (r *RedisStore) Upsert(ctx context.Context, records []recommend.CachedMovieRecord) (err error) {
	defer func() { recordResult("upsert", err) }()

	if len(records) == 0 {
		return nil
	}

	values := make([]any, 0, len(records)*2)
	for i := range records {
		data, err := json.Marshal(&records[i])
		if err != nil {
			return fmt.Errorf("marshal record %d: %w", records[i].ID, err)
		}
		values = append(values, strconv.Itoa(records[i].ID), data)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.vectorKey, values...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("hset %d records: %w", len(records), err)
	}
	return nil
}

// ReadAll scans the record hash and returns every record ordered by ID.
// Fields that fail to decode are skipped and logged.
func (r *RedisStore) ReadAll(ctx context.Context) (records []recommend.CachedMovieRecord, err error) {
	defer func() { recordResult("read_all", err) }()

	var cursor uint64
	for {
		kvs, next, err := r.client.HScan(ctx, r.vectorKey, cursor, "", hscanCount).Result()
		if err != nil {
			return nil, fmt.Errorf("hscan %s: %w", r.vectorKey, err)
		}
		for i := 0; i+1 < len(kvs); i += 2 {
			var rec recommend.CachedMovieRecord
			if err := json.Unmarshal([]byte(kvs[i+1]), &rec); err != nil {
				r.logger.Warn().Err(err).Str("field", kvs[i]).Msg("skipping undecodable vector record")
				continue
			}
			records = append(records, rec)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	// HSCAN may return a field more than once.
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	out := records[:0]
	for i := range records {
		if i > 0 && records[i-1].ID == records[i].ID {
			continue
		}
		out = append(out, records[i])
	}
	return out, nil
}

// PutSpace stores the feature space.
func (r *RedisStore) PutSpace(ctx context.Context, space *recommend.FeatureSpace) (err error) {
	defer func() { recordResult("put_space", err) }()

	data, err := json.Marshal(space)
	if err != nil {
		return fmt.Errorf("marshal feature space: %w", err)
	}
	if err := r.client.Set(ctx, r.spaceKey, data, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", r.spaceKey, err)
	}
	return nil
}

// GetSpace returns the stored feature space, or nil if none is stored.
func (r *RedisStore) GetSpace(ctx context.Context) (space *recommend.FeatureSpace, err error) {
	defer func() { recordResult("get_space", err) }()

	data, err := r.client.Get(ctx, r.spaceKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", r.spaceKey, err)
	}

	space = &recommend.FeatureSpace{}
	if err := json.Unmarshal(data, space); err != nil {
		return nil, fmt.Errorf("decode feature space: %w", err)
	}
	return space, nil
}

// PruneStale deletes every record not built in generation, along with
// fields that no longer decode. It returns the number of fields removed.
func (r *RedisStore) PruneStale(ctx context.Context, generation string) (removed int, err error) {
	defer func() { recordResult("prune", err) }()

	if generation == "" {
		return 0, errors.New("prune requires a generation")
	}

	var (
		stale  []string
		cursor uint64
	)
	for {
		kvs, next, err := r.client.HScan(ctx, r.vectorKey, cursor, "", hscanCount).Result()
		if err != nil {
			return 0, fmt.Errorf("hscan %s: %w", r.vectorKey, err)
		}
		for i := 0; i+1 < len(kvs); i += 2 {
			var rec recommend.CachedMovieRecord
			if err := json.Unmarshal([]byte(kvs[i+1]), &rec); err != nil || rec.Generation != generation {
				stale = append(stale, kvs[i])
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	for lo := 0; lo < len(stale); lo += hscanCount {
		hi := min(lo+hscanCount, len(stale))
		n, err := r.client.HDel(ctx, r.vectorKey, stale[lo:hi]...).Result()
		if err != nil {
			return removed, fmt.Errorf("hdel %d fields: %w", hi-lo, err)
		}
		removed += int(n)
	}
	return removed, nil
}

func recordResult(operation string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	metrics.RecordDurableOperation(backendRedis, operation, result)
}
