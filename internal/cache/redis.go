// Package cache - redis.go implements Store on Redis hashes.
//
// DESIGN: Each entry is a hash (value, tier, owner, hits). Creation guards
// on HSETNX of the value field so the first writer wins and entries are
// never mutated in place; hit counting uses HINCRBY, which is atomic across
// governor instances. TTLs are applied with EXPIRE at creation.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on a shared Redis.
type RedisStore struct {
	rdb     *redis.Client
	timeout time.Duration
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(rdb *redis.Client, timeout time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, timeout: timeout}
}

// Fetch returns the entry stored at key.
func (s *RedisStore) Fetch(ctx context.Context, key string) (Entry, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	fields, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return Entry{}, false, fmt.Errorf("cache fetch %s: %w", key, err)
	}
	if len(fields) == 0 {
		return Entry{}, false, nil
	}

	hits, _ := strconv.ParseInt(fields["hits"], 10, 64)
	return Entry{
		Fingerprint: fields["fingerprint"],
		Tier:        Tier(fields["tier"]),
		Value:       fields["value"],
		Owner:       fields["owner"],
		HitCount:    hits,
	}, true, nil
}

// Create writes an entry if absent. The HSETNX on the value field is the
// set-if-absent guard; losing the race is not an error.
func (s *RedisStore) Create(ctx context.Context, key string, e Entry, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	won, err := s.rdb.HSetNX(ctx, key, "value", e.Value).Result()
	if err != nil {
		return fmt.Errorf("cache create %s: %w", key, err)
	}
	if !won {
		return nil
	}

	pipe := s.rdb.Pipeline()
	pipe.HSet(ctx, key,
		"fingerprint", e.Fingerprint,
		"tier", string(e.Tier),
		"owner", e.Owner,
		"hits", 0,
	)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache create %s: %w", key, err)
	}
	return nil
}

// Touch increments the entry's hit counter.
func (s *RedisStore) Touch(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.rdb.HIncrBy(ctx, key, "hits", 1).Err(); err != nil {
		return fmt.Errorf("cache touch %s: %w", key, err)
	}
	return nil
}
