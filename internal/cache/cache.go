// Package cache - cache.go is the tiered fingerprint cache.
//
// DESIGN: Entries are keyed by tier and normalized-query fingerprint
// (cache:{tier}:{fingerprint}, with the owner appended for the personal
// tier). Lookup checks Eternal, then Daily, then Personal for the calling
// owner; the first hit wins and tiers are never merged. Store failures
// degrade to cache-miss behavior: a missing cache is a cold start, not an
// error the caller should see.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/studyloop/governor/internal/fingerprint"
)

// Entry is a cached response.
type Entry struct {
	Fingerprint string
	Tier        Tier
	Value       string
	Owner       string
	HitCount    int64
}

// Store is the shared key-value store backing the cache. All mutations must
// be atomic operations of the store itself, never check-then-act sequences:
// multiple stateless governor instances share one store.
type Store interface {
	// Fetch returns the entry at key, or found=false on a miss.
	Fetch(ctx context.Context, key string) (Entry, bool, error)
	// Create writes an entry if absent (first write wins) with the given
	// TTL; zero TTL means no expiry.
	Create(ctx context.Context, key string, e Entry, ttl time.Duration) error
	// Touch atomically increments the entry's hit counter.
	Touch(ctx context.Context, key string) error
}

// Cache is the tiered fingerprint cache.
type Cache struct {
	store       Store
	dailyTTL    time.Duration
	personalTTL time.Duration
}

// New creates a Cache over the given store.
func New(store Store, dailyTTL, personalTTL time.Duration) *Cache {
	return &Cache{store: store, dailyTTL: dailyTTL, personalTTL: personalTTL}
}

// Lookup checks the tiers in fixed order and returns the first hit. A hit
// increments that entry's hit counter as a side effect. Misses and store
// failures both return found=false; lookup never errors.
func (c *Cache) Lookup(ctx context.Context, query, ownerID string) (Entry, bool) {
	fp := fingerprint.Compute(query)

	keys := []string{
		entryKey(TierEternal, fp, ""),
		entryKey(TierDaily, fp, ""),
	}
	if ownerID != "" {
		keys = append(keys, entryKey(TierPersonal, fp, ownerID))
	}

	for _, key := range keys {
		entry, found, err := c.store.Fetch(ctx, key)
		if err != nil {
			log.Debug().Err(err).Str("key", key).Msg("cache fetch failed, treating as miss")
			continue
		}
		if !found {
			continue
		}
		if err := c.store.Touch(ctx, key); err != nil {
			log.Debug().Err(err).Str("key", key).Msg("cache hit-count update failed")
		} else {
			entry.HitCount++
		}
		return entry, true
	}
	return Entry{}, false
}

// Put classifies the query and writes the response to at most one tier.
// Returns the tier written and whether a write happened. Store failures are
// logged and reported as not-stored; they never propagate.
func (c *Cache) Put(ctx context.Context, query, response, ownerID string) (Tier, bool) {
	tier := Classify(query, ownerID != "")
	if tier == TierNone {
		return TierNone, false
	}

	fp := fingerprint.Compute(query)
	owner := ""
	ttl := time.Duration(0)
	switch tier {
	case TierDaily:
		ttl = c.dailyTTL
	case TierPersonal:
		ttl = c.personalTTL
		owner = ownerID
	}

	entry := Entry{Fingerprint: fp, Tier: tier, Value: response, Owner: owner}
	if err := c.store.Create(ctx, entryKey(tier, fp, owner), entry, ttl); err != nil {
		log.Warn().Err(err).Str("tier", string(tier)).Str("fingerprint", fp).
			Msg("cache write failed")
		return tier, false
	}
	return tier, true
}

func entryKey(tier Tier, fp, owner string) string {
	if tier == TierPersonal {
		return fmt.Sprintf("cache:%s:%s:%s", tier, fp, owner)
	}
	return fmt.Sprintf("cache:%s:%s", tier, fp)
}
