// Package governor orchestrates the per-request decision pipeline.
//
// DESIGN: Eight strictly ordered steps, short-circuiting on the first
// terminal outcome: kill switch, cache lookup, admission, context
// augmentation, completion, cost recording, cache write, result. Spend is
// only ever incurred after every cheaper short-circuit has had its chance.
// Routing is decided once at admission and is immutable for the rest of
// the request.
package governor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/studyloop/governor/internal/cache"
	"github.com/studyloop/governor/internal/fingerprint"
	"github.com/studyloop/governor/internal/ledger"
	"github.com/studyloop/governor/internal/pricing"
	"github.com/studyloop/governor/internal/provider"
	"github.com/studyloop/governor/internal/router"
)

// Sentinel model tags for results that never invoked a model.
const (
	ModelOffline = "offline"
	ModelCache   = "cache"
)

// User-facing copy for terminal states. Free-tier blocks are always
// upgrade-oriented; kill-switch users get a generic maintenance note.
const (
	maintenanceMessage = "The assistant is offline for maintenance. Please try again in a few minutes."

	restrictedFreeMessage = "We're prioritizing subscriber requests right now. " +
		"Your question has been queued. Upgrade for instant answers."

	emergencyFreeMessage = "The assistant has reached today's capacity for free accounts. " +
		"Upgrade to keep asking questions, or come back tomorrow."
)

// contextCues are lexical signals that a query wants grounding from the
// caller's own material, beyond the explicit syllabus-qa category.
var contextCues = []string{
	"syllabus", "my notes", "my course", "lecture", "according to the readings",
}

// Request is one inbound chat-style query.
type Request struct {
	Query        string
	UserID       string
	UserTier     router.UserTier
	TaskCategory string
}

// Result is the outcome of a governed request.
type Result struct {
	RequestID    string   `json:"request_id"`
	ResponseText string   `json:"response_text,omitempty"`
	ModelUsed    string   `json:"model_used"`
	CacheHit     bool     `json:"cache_hit"`
	CostUSD      float64  `json:"cost_usd"`
	Blocked      bool     `json:"blocked"`
	Queued       bool     `json:"queued,omitempty"`
	UserMessage  string   `json:"user_message,omitempty"`
	Sources      []string `json:"sources,omitempty"`
}

// AdminConfig is the slice of administrator state the pipeline reads.
type AdminConfig interface {
	KillSwitch(ctx context.Context) (bool, error)
	Overrides(ctx context.Context) (map[string]string, error)
}

// Governor runs the decision pipeline.
type Governor struct {
	cache       *cache.Cache
	ledger      *ledger.Ledger
	admin       AdminConfig
	completions provider.CompletionProvider
	contexts    provider.ContextProvider
	minCacheLen int
}

// New wires a Governor. contexts may be nil when no retrieval service is
// configured; context augmentation is then skipped entirely.
func New(c *cache.Cache, l *ledger.Ledger, admin AdminConfig,
	completions provider.CompletionProvider, contexts provider.ContextProvider,
	minCacheLen int) *Governor {
	return &Governor{
		cache:       c,
		ledger:      l,
		admin:       admin,
		completions: completions,
		contexts:    contexts,
		minCacheLen: minCacheLen,
	}
}

// HandleQuery runs one request through the pipeline. A returned error means
// the completion provider failed, a genuine external failure, distinct from
// every designed outcome (blocked, offline, cached), which all return a
// Result and a nil error.
func (g *Governor) HandleQuery(ctx context.Context, req Request) (Result, error) {
	requestID := uuid.NewString()
	start := time.Now()

	// Step 1: kill switch. An unreadable flag is treated as inactive; the
	// budget phase check below is the cost-safety backstop, the kill switch
	// is an operator convenience.
	if active, err := g.admin.KillSwitch(ctx); err != nil {
		log.Debug().Err(err).Str("request_id", requestID).Msg("kill switch unreadable")
	} else if active {
		log.Info().Str("request_id", requestID).Msg("request rejected: kill switch active")
		return Result{
			RequestID:   requestID,
			ModelUsed:   ModelOffline,
			Blocked:     true,
			UserMessage: maintenanceMessage,
		}, nil
	}

	// Step 2: cache lookup. A hit is terminal: zero cost, no model.
	if entry, ok := g.cache.Lookup(ctx, req.Query, req.UserID); ok {
		g.ledger.RecordCacheHit(ctx, ledger.UsageEvent{
			RequestID:    requestID,
			TaskCategory: req.TaskCategory,
			Model:        ModelCache,
		})
		log.Info().Str("request_id", requestID).Str("tier", string(entry.Tier)).
			Int64("hits", entry.HitCount).Msg("served from cache")
		return Result{
			RequestID:    requestID,
			ResponseText: entry.Value,
			ModelUsed:    ModelCache,
			CacheHit:     true,
		}, nil
	}

	// Step 3: admission. The routing decision is made exactly once here.
	status := g.ledger.CheckBudget(ctx)
	var overrides map[string]string
	if status.Phase == ledger.PhaseNormal {
		var err error
		if overrides, err = g.admin.Overrides(ctx); err != nil {
			log.Debug().Err(err).Str("request_id", requestID).Msg("overrides unreadable, using defaults")
			overrides = nil
		}
	}
	decision := router.Decide(req.TaskCategory, status.Phase, req.UserTier, overrides)
	if !decision.Allowed {
		log.Info().Str("request_id", requestID).Str("phase", string(decision.Phase)).
			Str("user_tier", string(req.UserTier)).Bool("queued", decision.Queued).
			Msg("request blocked by budget phase")
		return Result{
			RequestID:   requestID,
			ModelUsed:   decision.Model,
			Blocked:     true,
			Queued:      decision.Queued,
			UserMessage: blockedMessage(decision),
		}, nil
	}

	// Step 4: context augmentation. Failure here is an absence, never fatal.
	prompt := req.Query
	var sources []string
	if g.contexts != nil && wantsContext(req.TaskCategory, req.Query) {
		result, found, err := g.contexts.Fetch(ctx, req.Query, req.UserID)
		switch {
		case err != nil:
			log.Warn().Err(err).Str("request_id", requestID).
				Msg("context provider failed, proceeding without grounding")
		case found:
			prompt = mergeContext(req.Query, result.Text)
			sources = result.Sources
		}
	}

	// Step 5: completion. The only expensive step, and the only fatal one.
	comp, err := g.completions.Complete(ctx, decision.Model, prompt)
	if err != nil {
		log.Error().Err(err).Str("request_id", requestID).Str("model", decision.Model).
			Msg("completion failed")
		return Result{}, fmt.Errorf("handle query %s: %w", requestID, err)
	}

	// Steps 6-7 run on a detached context: the provider call completed, so
	// cost reflects actual consumption even if the caller has disconnected.
	recordCtx := context.WithoutCancel(ctx)

	ev := ledger.UsageEvent{
		RequestID:    requestID,
		TaskCategory: req.TaskCategory,
		Model:        decision.Model,
		InputTokens:  comp.InputTokens,
		OutputTokens: comp.OutputTokens,
	}
	cost, err := g.ledger.RecordCost(recordCtx, ev)
	if err != nil {
		// The request was served; report the priced cost even though the
		// counter add failed. The next CheckBudget fails closed anyway.
		cost = pricing.Cost(comp.InputTokens, comp.OutputTokens, decision.Model)
		log.Error().Err(err).Str("request_id", requestID).Float64("cost_usd", cost).
			Msg("cost recording failed")
	}

	if len(comp.Text) >= g.minCacheLen {
		if tier, stored := g.cache.Put(recordCtx, req.Query, comp.Text, req.UserID); stored {
			log.Debug().Str("request_id", requestID).Str("tier", string(tier)).
				Str("fingerprint", fingerprint.Compute(req.Query)).Msg("response cached")
		}
	}

	log.Info().Str("request_id", requestID).Str("phase", string(decision.Phase)).
		Str("model", decision.Model).Float64("cost_usd", cost).
		Bool("queued", decision.Queued).Int("sources", len(sources)).
		Dur("elapsed", time.Since(start)).Msg("request completed")

	return Result{
		RequestID:    requestID,
		ResponseText: comp.Text,
		ModelUsed:    decision.Model,
		CostUSD:      cost,
		Queued:       decision.Queued,
		Sources:      sources,
	}, nil
}

func blockedMessage(d router.Decision) string {
	if d.Queued {
		return restrictedFreeMessage
	}
	return emergencyFreeMessage
}

// wantsContext reports whether the request should attempt grounding:
// an explicit category match or a lexical cue in the query.
func wantsContext(taskCategory, query string) bool {
	if taskCategory == router.CategorySyllabusQA {
		return true
	}
	norm := fingerprint.Normalize(query)
	for _, cue := range contextCues {
		if strings.Contains(norm, cue) {
			return true
		}
	}
	return false
}

func mergeContext(query, contextText string) string {
	return "Use the following course material to answer.\n\n" +
		contextText + "\n\nQuestion: " + query
}
