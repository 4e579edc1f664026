// Package provider defines the external collaborators the governor consumes:
// a completion provider (model invocation) and a context provider (grounding
// retrieval). Both are black boxes behind interfaces; the HTTP
// implementations here talk generic JSON and never bind to a vendor SDK.
package provider

import (
	"context"
	"errors"
)

// ErrCompletionFailed wraps any completion-provider failure. It is fatal for
// the request it occurred on, and distinct from an admission block.
var ErrCompletionFailed = errors.New("completion provider failed")

// Completion is the output of a model invocation.
type Completion struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// CompletionProvider invokes a language model.
type CompletionProvider interface {
	Complete(ctx context.Context, model, prompt string) (Completion, error)
}

// ContextResult is grounding material for a query.
type ContextResult struct {
	Text    string
	Sources []string
}

// ContextProvider retrieves grounding text for a query. found=false is an
// absence, not a failure.
type ContextProvider interface {
	Fetch(ctx context.Context, query, userID string) (ContextResult, bool, error)
}
