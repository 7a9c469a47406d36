package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "sensei:cache:"

// RedisStore is an EntryStore backed by redis. TTL expiry is delegated to
// redis itself; hit counts live in a companion key so Touch is a single
// INCR instead of a read-modify-write.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to redis and verifies the connection.
func NewRedisStore(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return &RedisStore{
		client: client,
		ttl:    ttl,
	}, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Entry, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode cache entry: %w", err)
	}

	// Hit counter lives in its own key; absence means zero hits.
	hits, err := s.client.Get(ctx, hitsKey(id)).Int64()
	if err == nil {
		entry.HitCount = hits
	}

	return &entry, nil
}

func (s *RedisStore) Put(ctx context.Context, entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	if err := s.client.Set(ctx, redisKeyPrefix+entry.ID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+id, hitsKey(id)).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Touch(ctx context.Context, id string) (int64, error) {
	// Only count hits against live entries.
	exists, err := s.client.Exists(ctx, redisKeyPrefix+id).Result()
	if err != nil {
		return 0, fmt.Errorf("redis exists failed: %w", err)
	}
	if exists == 0 {
		return 0, ErrNotFound
	}

	hits, err := s.client.Incr(ctx, hitsKey(id)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr failed: %w", err)
	}

	// Keep the counter's lifetime aligned with the entry's.
	if s.ttl > 0 {
		_ = s.client.Expire(ctx, hitsKey(id), s.ttl).Err()
	}

	return hits, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func hitsKey(id string) string {
	return redisKeyPrefix + id + ":hits"
}

// Ensure RedisStore implements EntryStore.
var _ EntryStore = (*RedisStore)(nil)
