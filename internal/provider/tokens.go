// Package provider - tokens.go estimates token counts locally.
package provider

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/studyloop/governor/internal/config"
)

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// EstimateTokens approximates the token count of text for a model. It
// prefers the model's tiktoken encoding, falls back to cl100k_base, and as
// a last resort uses the chars-per-token heuristic. Estimates feed cost
// recording only when the upstream omitted usage, so approximate is fine.
func EstimateTokens(model, text string) int {
	if text == "" {
		return 0
	}

	if enc, err := tiktoken.EncodingForModel(model); err == nil {
		return len(enc.Encode(text, nil, nil))
	}

	encodingOnce.Do(func() {
		encoding, _ = tiktoken.GetEncoding("cl100k_base")
	})
	if encoding != nil {
		return len(encoding.Encode(text, nil, nil))
	}

	return (len(text) + config.TokenEstimateRatio - 1) / config.TokenEstimateRatio
}
