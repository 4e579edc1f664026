// Package cache - classify.go decides which tier (if any) a query belongs to.
//
// DESIGN: Classification is an explicit, ordered rule list rather than
// scattered regexes so the priority order is independently verifiable.
// Eternal patterns are checked before Daily patterns; a query matching both
// is written to Eternal only. Queries matching neither are Personal when an
// owner is present and uncacheable otherwise.
package cache

import (
	"strings"

	"github.com/studyloop/governor/internal/fingerprint"
)

// Tier identifies a cache tier. Lookup order and write priority are fixed:
// Eternal, then Daily, then Personal.
type Tier string

const (
	TierEternal  Tier = "eternal"
	TierDaily    Tier = "daily"
	TierPersonal Tier = "personal"

	// TierNone means the response does not qualify for caching.
	TierNone Tier = ""
)

// classifyRule binds a tier to the lexical patterns that select it.
type classifyRule struct {
	tier     Tier
	patterns []string
}

// classifyRules is evaluated in order; the first matching rule wins.
// Patterns containing a space match as substrings of the normalized query;
// single words match whole words only.
var classifyRules = []classifyRule{
	{
		// Timeless, general-knowledge framing.
		tier: TierEternal,
		patterns: []string{
			"what is", "what are", "define", "explain", "how to",
			"difference between", "meaning of",
		},
	},
	{
		// Time-sensitive content.
		tier: TierDaily,
		patterns: []string{
			"today", "latest", "recent", "current", "news",
		},
	},
}

// Classify returns the tier a query's response should be stored under.
// Returns TierNone when the response should not be cached at all.
func Classify(query string, hasOwner bool) Tier {
	norm := fingerprint.Normalize(query)
	if norm == "" {
		return TierNone
	}

	for _, rule := range classifyRules {
		for _, p := range rule.patterns {
			if matchesPattern(norm, p) {
				return rule.tier
			}
		}
	}

	if hasOwner {
		return TierPersonal
	}
	return TierNone
}

func matchesPattern(norm, pattern string) bool {
	if strings.Contains(pattern, " ") {
		return strings.Contains(norm, pattern)
	}
	for _, word := range strings.Fields(norm) {
		if word == pattern {
			return true
		}
	}
	return false
}
