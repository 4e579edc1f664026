// Package provider - context_http.go is the context-provider client.
//
// DESIGN: The context provider (document retrieval) is consumed as a black
// box returning text plus opaque source identifiers. Any failure here is
// recoverable by the caller: a down retrieval service means "no context",
// never a failed request.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

// HTTPContext implements ContextProvider against a retrieval endpoint.
type HTTPContext struct {
	endpoint string
	client   *http.Client
}

// NewHTTPContext creates a context client with a bounded timeout.
func NewHTTPContext(endpoint string, timeout time.Duration) *HTTPContext {
	return &HTTPContext{endpoint: endpoint, client: &http.Client{Timeout: timeout}}
}

// Fetch asks the retrieval service for grounding material.
func (p *HTTPContext) Fetch(ctx context.Context, query, userID string) (ContextResult, bool, error) {
	payload, _ := json.Marshal(map[string]string{"query": query, "user_id": userID})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return ContextResult{}, false, fmt.Errorf("context fetch: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return ContextResult{}, false, fmt.Errorf("context fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return ContextResult{}, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return ContextResult{}, false, fmt.Errorf("context fetch: upstream status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ContextResult{}, false, fmt.Errorf("context fetch: read response: %w", err)
	}

	if !gjson.GetBytes(body, "found").Bool() {
		return ContextResult{}, false, nil
	}

	result := ContextResult{Text: gjson.GetBytes(body, "text").String()}
	for _, src := range gjson.GetBytes(body, "sources").Array() {
		result.Sources = append(result.Sources, src.String())
	}
	return result, result.Text != "", nil
}
