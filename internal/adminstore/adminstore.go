// Package adminstore holds administrator-mutable operational state: the
// budget ceiling, per-category model overrides, and the kill switch.
//
// DESIGN: These are never in-process globals; multiple stateless governor
// instances must observe the same values, so they live in the shared store
// and are read through explicit operations. Only the budget is cached
// locally, within a configured staleness bound, because it is read on every
// request and changes rarely. Kill switch and overrides are read fresh.
package adminstore

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
)

const (
	budgetKey     = "config:budget"
	killSwitchKey = "config:kill_switch"
	overridesKey  = "config:model_overrides"
)

// KV is the minimal shared-store surface the admin store needs.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HSet(ctx context.Context, key, field, value string) error
	HDel(ctx context.Context, key, field string) error
}

// Store reads and writes administrator configuration.
type Store struct {
	kv        KV
	staleness time.Duration
	now       func() time.Time

	mu           sync.Mutex
	cachedBudget float64
	cachedAt     time.Time
	budgetCached bool
}

// New creates a Store. staleness bounds how old a locally cached budget may
// be; zero disables budget caching.
func New(kv KV, staleness time.Duration) *Store {
	return &Store{kv: kv, staleness: staleness, now: time.Now}
}

// Budget returns the configured spend ceiling, or 0 if none is set.
// The value may be stale by at most the configured bound.
func (s *Store) Budget(ctx context.Context) (float64, error) {
	s.mu.Lock()
	if s.budgetCached && s.now().Sub(s.cachedAt) < s.staleness {
		v := s.cachedBudget
		s.mu.Unlock()
		return v, nil
	}
	s.mu.Unlock()

	val, found, err := s.kv.Get(ctx, budgetKey)
	if err != nil {
		return 0, fmt.Errorf("read budget: %w", err)
	}
	budget := 0.0
	if found {
		budget, err = strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("parse budget %q: %w", val, err)
		}
	}

	s.mu.Lock()
	s.cachedBudget = budget
	s.cachedAt = s.now()
	s.budgetCached = true
	s.mu.Unlock()
	return budget, nil
}

// SetBudget writes a new spend ceiling; it takes effect on next read.
func (s *Store) SetBudget(ctx context.Context, amount float64) error {
	if amount <= 0 {
		return fmt.Errorf("budget must be > 0, got %f", amount)
	}
	if err := s.kv.Set(ctx, budgetKey, strconv.FormatFloat(amount, 'f', -1, 64)); err != nil {
		return fmt.Errorf("write budget: %w", err)
	}
	// Drop the local copy so this instance observes the change immediately.
	s.mu.Lock()
	s.budgetCached = false
	s.mu.Unlock()
	return nil
}

// KillSwitch reports whether the global maintenance flag is active.
func (s *Store) KillSwitch(ctx context.Context) (bool, error) {
	val, found, err := s.kv.Get(ctx, killSwitchKey)
	if err != nil {
		return false, fmt.Errorf("read kill switch: %w", err)
	}
	return found && val == "1", nil
}

// SetKillSwitch activates or clears the global maintenance flag.
func (s *Store) SetKillSwitch(ctx context.Context, active bool) error {
	val := "0"
	if active {
		val = "1"
	}
	if err := s.kv.Set(ctx, killSwitchKey, val); err != nil {
		return fmt.Errorf("write kill switch: %w", err)
	}
	return nil
}

// Overrides returns the task-category to model overrides. Absence is an
// empty map, not an error.
func (s *Store) Overrides(ctx context.Context) (map[string]string, error) {
	overrides, err := s.kv.HGetAll(ctx, overridesKey)
	if err != nil {
		return nil, fmt.Errorf("read overrides: %w", err)
	}
	return overrides, nil
}

// SetOverride maps a task category to a model; last write wins.
func (s *Store) SetOverride(ctx context.Context, taskCategory, model string) error {
	if err := s.kv.HSet(ctx, overridesKey, taskCategory, model); err != nil {
		return fmt.Errorf("write override: %w", err)
	}
	return nil
}

// RemoveOverride restores the default routing for a task category.
func (s *Store) RemoveOverride(ctx context.Context, taskCategory string) error {
	if err := s.kv.HDel(ctx, overridesKey, taskCategory); err != nil {
		return fmt.Errorf("remove override: %w", err)
	}
	return nil
}
