// Package ledger - counter.go implements Counter on Redis.
//
// DESIGN: INCRBYFLOAT is the required atomic-add primitive: concurrent
// governor instances recording into the same window must not lose updates,
// and a check-then-act sequence from the application cannot guarantee that.
// The live key carries a 48h TTL; it is the operational copy and is allowed
// to lapse once the window has rolled (history holds the durable record).
package ledger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const counterTTL = 48 * time.Hour

// RedisCounter implements Counter on a shared Redis.
type RedisCounter struct {
	rdb     *redis.Client
	timeout time.Duration
}

// NewRedisCounter wraps an existing Redis client.
func NewRedisCounter(rdb *redis.Client, timeout time.Duration) *RedisCounter {
	return &RedisCounter{rdb: rdb, timeout: timeout}
}

// Add atomically adds amount to the window's spend and returns the new total.
func (c *RedisCounter) Add(ctx context.Context, windowKey string, amount float64) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	key := spendKey(windowKey)
	total, err := c.rdb.IncrByFloat(ctx, key, amount).Result()
	if err != nil {
		return 0, fmt.Errorf("spend add %s: %w", key, err)
	}
	// Refresh the operational TTL; failure here only affects key cleanup.
	_ = c.rdb.Expire(ctx, key, counterTTL).Err()
	return total, nil
}

// Get returns the window's accumulated spend; a missing key is zero.
func (c *RedisCounter) Get(ctx context.Context, windowKey string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	key := spendKey(windowKey)
	val, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("spend get %s: %w", key, err)
	}
	total, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("spend parse %s: %w", key, err)
	}
	return total, nil
}

func spendKey(windowKey string) string {
	return "spend:" + windowKey
}
