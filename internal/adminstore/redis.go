// Package adminstore - redis.go adapts go-redis to the KV interface.
package adminstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKV implements KV on a shared Redis.
type RedisKV struct {
	rdb     *redis.Client
	timeout time.Duration
}

// NewRedisKV wraps an existing Redis client.
func NewRedisKV(rdb *redis.Client, timeout time.Duration) *RedisKV {
	return &RedisKV{rdb: rdb, timeout: timeout}
}

func (k *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	val, err := k.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (k *RedisKV) Set(ctx context.Context, key, value string) error {
	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()
	return k.rdb.Set(ctx, key, value, 0).Err()
}

func (k *RedisKV) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()
	return k.rdb.HGetAll(ctx, key).Result()
}

func (k *RedisKV) HSet(ctx context.Context, key, field, value string) error {
	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()
	return k.rdb.HSet(ctx, key, field, value).Err()
}

func (k *RedisKV) HDel(ctx context.Context, key, field string) error {
	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()
	return k.rdb.HDel(ctx, key, field).Err()
}
