// Package ledger tracks spend per accounting window and classifies budget
// pressure.
//
// DESIGN: The live counter is a shared atomic accumulator keyed by UTC
// calendar day; concurrent recordings must land as atomic adds on the store,
// never as read-modify-write from the application. Durable history (per-model
// aggregates plus an audit log) is appended alongside for reporting and
// outlives the operational counter.
//
// When the counter cannot be read the ledger fails closed: an unreadable
// spend total classifies as Emergency rather than silently allowing
// unlimited spend. Paid traffic still queues in Emergency, so this never
// fully halts paid service.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/studyloop/governor/internal/pricing"
)

// Counter is the shared atomic spend accumulator. Add must be a single
// atomic operation of the underlying store.
type Counter interface {
	Add(ctx context.Context, windowKey string, amount float64) (float64, error)
	Get(ctx context.Context, windowKey string) (float64, error)
}

// BudgetSource supplies the configured spend ceiling. Implementations may
// serve a briefly stale value; an error means the source is unreachable and
// the caller falls back to the default.
type BudgetSource interface {
	Budget(ctx context.Context) (float64, error)
}

// UsageEvent describes one billable provider call (or a zero-cost cache hit)
// for recording.
type UsageEvent struct {
	RequestID    string
	TaskCategory string
	Model        string
	InputTokens  int
	OutputTokens int
	CacheHit     bool
}

// BudgetStatus is the result of a budget check.
type BudgetStatus struct {
	Spent     float64
	Budget    float64
	Remaining float64
	Phase     Phase
}

// Ledger combines the live counter, the budget source, and durable history.
type Ledger struct {
	counter       Counter
	budgets       BudgetSource
	history       *History
	defaultBudget float64
	now           func() time.Time
}

// New creates a Ledger. history may be nil (recording then skips the durable
// append, e.g. in tests).
func New(counter Counter, budgets BudgetSource, history *History, defaultBudget float64) *Ledger {
	return &Ledger{
		counter:       counter,
		budgets:       budgets,
		history:       history,
		defaultBudget: defaultBudget,
		now:           time.Now,
	}
}

// WindowKey returns the accounting window for a point in time: the UTC
// calendar day.
func WindowKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// RecordCost prices the event, atomically adds the cost to the current
// window, and appends an immutable history record. The atomic add is the
// correctness-critical part; a history append failure is logged but does not
// undo or fail the recording.
func (l *Ledger) RecordCost(ctx context.Context, ev UsageEvent) (float64, error) {
	cost := pricing.Cost(ev.InputTokens, ev.OutputTokens, ev.Model)
	window := WindowKey(l.now())

	if _, err := l.counter.Add(ctx, window, cost); err != nil {
		return 0, fmt.Errorf("record cost: %w", err)
	}

	l.appendHistory(ctx, window, ev, cost)
	return cost, nil
}

// RecordCacheHit appends a zero-cost audit record for a served cache hit.
// The live counter is untouched.
func (l *Ledger) RecordCacheHit(ctx context.Context, ev UsageEvent) {
	ev.CacheHit = true
	l.appendHistory(ctx, WindowKey(l.now()), ev, 0)
}

func (l *Ledger) appendHistory(ctx context.Context, window string, ev UsageEvent, cost float64) {
	if l.history == nil {
		return
	}
	if err := l.history.Append(ctx, AuditRecord{
		WindowKey:        window,
		RequestID:        ev.RequestID,
		TaskCategory:     ev.TaskCategory,
		Model:            ev.Model,
		PromptTokens:     ev.InputTokens,
		CompletionTokens: ev.OutputTokens,
		CostUSD:          cost,
		CacheHit:         ev.CacheHit,
		CreatedAt:        l.now().UTC(),
	}); err != nil {
		log.Warn().Err(err).Str("request_id", ev.RequestID).Msg("history append failed")
	}
}

// CheckBudget reads the current window's spend and classifies the phase.
// A missing budget resolves to the configured default; an unreadable spend
// counter resolves to Emergency (fail closed).
func (l *Ledger) CheckBudget(ctx context.Context) BudgetStatus {
	budget := l.defaultBudget
	if l.budgets != nil {
		if b, err := l.budgets.Budget(ctx); err != nil {
			log.Debug().Err(err).Msg("budget read failed, using default")
		} else if b > 0 {
			budget = b
		}
	}

	spent, err := l.counter.Get(ctx, WindowKey(l.now()))
	if err != nil {
		log.Error().Err(err).Msg("spend counter unreadable, failing closed")
		return BudgetStatus{Budget: budget, Phase: PhaseEmergency}
	}

	remaining := budget - spent
	if remaining < 0 {
		remaining = 0
	}
	return BudgetStatus{
		Spent:     spent,
		Budget:    budget,
		Remaining: remaining,
		Phase:     ClassifyPhase(spent / budget),
	}
}
