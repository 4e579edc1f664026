// Package pricing maps model identifiers to per-token prices.
//
// DESIGN: Prices are USD per thousand tokens, input and output billed at the
// same blended rate. Lookup tries an exact match, then the longest matching
// family prefix, then falls back to the cheapest known price. The fallback is
// intentionally the cheapest tier: an unrecognized model is almost always a
// renamed cheap alias, and admission control (not pricing) is the mechanism
// that protects the budget.
package pricing

import "strings"

// Model tiers used by the router. The price table below must cover both.
const (
	ModelCheap   = "gpt-4o-mini"
	ModelCapable = "gpt-4o"
)

// perThousandTable maps model names to USD per 1k tokens (blended in+out).
var perThousandTable = map[string]float64{
	"gpt-4o":             0.00750,
	"gpt-4o-2024-11-20":  0.00750,
	"gpt-4o-mini":        0.00045,
	"claude-sonnet-4-5":  0.00900,
	"claude-haiku-4-5":   0.00300,
	"claude-3-5-haiku":   0.00300,
}

// familyTable maps model family prefixes to prices. Longest prefix wins so
// e.g. "gpt-4o-mini" never resolves through the broader "gpt-4o" family.
var familyTable = map[string]float64{
	"gpt-4o-mini":   0.00045,
	"gpt-4o":        0.00750,
	"gpt-4":         0.02000,
	"claude-sonnet": 0.00900,
	"claude-haiku":  0.00300,
	"claude-opus":   0.04500,
}

// PerThousand returns the USD price per 1k tokens for a model.
// Tries exact match, then prefix/family match (longest prefix wins),
// then the cheapest known price.
func PerThousand(model string) float64 {
	if p, ok := perThousandTable[model]; ok {
		return p
	}

	bestPrefix := ""
	var bestPrice float64
	for prefix, p := range familyTable {
		if strings.HasPrefix(model, prefix) && len(prefix) > len(bestPrefix) {
			bestPrefix = prefix
			bestPrice = p
		}
	}
	if bestPrefix != "" {
		return bestPrice
	}

	return cheapestKnown()
}

// Cost computes the USD cost of a call from token counts.
func Cost(inputTokens, outputTokens int, model string) float64 {
	return float64(inputTokens+outputTokens) / 1000 * PerThousand(model)
}

func cheapestKnown() float64 {
	cheapest := 0.0
	for _, p := range perThousandTable {
		if cheapest == 0 || p < cheapest {
			cheapest = p
		}
	}
	return cheapest
}
