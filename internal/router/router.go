// Package router decides admission and model selection per request.
//
// DESIGN: Two decisions compose. Admission is a total function of
// (phase, user tier); every combination has a defined outcome, forming a
// graceful-degradation ladder: cost pressure first swaps quality for price
// (Cautious), then defers free users (Restricted), then sheds free load
// entirely while paid users queue (Emergency). Model selection consults
// administrator overrides only in Normal phase; every other phase forces the
// cheapest model regardless of task category.
package router

import (
	"github.com/studyloop/governor/internal/ledger"
	"github.com/studyloop/governor/internal/pricing"
)

// UserTier is the caller's subscription tier.
type UserTier string

const (
	TierFree UserTier = "free"
	TierPaid UserTier = "paid"
)

// Task categories.
const (
	CategoryGrammarFix   = "grammar-fix"
	CategoryFlashcard    = "flashcard"
	CategorySummary      = "summary"
	CategoryEssayOutline = "essay-outline"
	CategoryMath         = "math"
	CategorySyllabusQA   = "syllabus-qa"
	CategoryGeneralChat  = "general-chat"
)

// defaultModels maps task categories to their optimal model. Lightweight
// transformations run on the cheap tier; reasoning-heavy work on the capable
// tier.
var defaultModels = map[string]string{
	CategoryGrammarFix:   pricing.ModelCheap,
	CategoryFlashcard:    pricing.ModelCheap,
	CategorySummary:      pricing.ModelCheap,
	CategoryEssayOutline: pricing.ModelCapable,
	CategoryMath:         pricing.ModelCapable,
	CategorySyllabusQA:   pricing.ModelCapable,
	CategoryGeneralChat:  pricing.ModelCapable,
}

// Decision is the routing outcome for one request. It is derived state,
// decided once at admission and immutable for the rest of the request.
type Decision struct {
	Phase   ledger.Phase
	Allowed bool
	Queued  bool
	Model   string
}

// Decide returns the routing decision for a task category under the given
// phase and user tier. overrides maps task categories to administrator-set
// models and is consulted in Normal phase only. The result is defined for
// every (phase, tier) combination; blocked decisions still carry the
// would-be model tag for observability.
func Decide(taskCategory string, phase ledger.Phase, tier UserTier, overrides map[string]string) Decision {
	d := Decision{Phase: phase, Model: pricing.ModelCheap}

	switch phase {
	case ledger.PhaseNormal:
		d.Allowed = true
		d.Model = optimalModel(taskCategory, overrides)
	case ledger.PhaseCautious:
		d.Allowed = true
	case ledger.PhaseRestricted:
		if tier == TierPaid {
			d.Allowed = true
		} else {
			d.Queued = true
		}
	default: // Emergency, and any unknown phase degrades the same way
		if tier == TierPaid {
			d.Allowed = true
			d.Queued = true
		}
	}
	return d
}

func optimalModel(taskCategory string, overrides map[string]string) string {
	if m, ok := overrides[taskCategory]; ok && m != "" {
		return m
	}
	if m, ok := defaultModels[taskCategory]; ok {
		return m
	}
	return pricing.ModelCapable
}
