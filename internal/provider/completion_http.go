// Package provider - completion_http.go is the OpenAI-compatible HTTP
// completion client.
//
// DESIGN: Request bodies are assembled with sjson and responses read with
// gjson, so the client speaks any chat-completions-shaped endpoint without
// binding to a vendor SDK. When the upstream omits usage counts, tokens are
// estimated locally so cost recording never records zero for a real call.
package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// HTTPCompletion implements CompletionProvider against an OpenAI-compatible
// chat completions endpoint.
type HTTPCompletion struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewHTTPCompletion creates a completion client with a bounded timeout.
func NewHTTPCompletion(endpoint, apiKey string, timeout time.Duration) *HTTPCompletion {
	return &HTTPCompletion{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
	}
}

// Complete invokes the model with the given prompt.
func (p *HTTPCompletion) Complete(ctx context.Context, model, prompt string) (Completion, error) {
	body, err := buildChatBody(model, prompt)
	if err != nil {
		return Completion{}, fmt.Errorf("%w: build request: %v", ErrCompletionFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return Completion{}, fmt.Errorf("%w: %v", ErrCompletionFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Completion{}, fmt.Errorf("%w: %v", ErrCompletionFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Completion{}, fmt.Errorf("%w: read response: %v", ErrCompletionFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Debug().Int("status", resp.StatusCode).Str("model", model).
			Msg("completion upstream returned non-200")
		return Completion{}, fmt.Errorf("%w: upstream status %d", ErrCompletionFailed, resp.StatusCode)
	}

	return parseChatResponse(respBody, model, prompt)
}

func buildChatBody(model, prompt string) ([]byte, error) {
	body, err := sjson.SetBytes([]byte(`{}`), "model", model)
	if err != nil {
		return nil, err
	}
	body, err = sjson.SetBytes(body, "messages.0.role", "user")
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(body, "messages.0.content", prompt)
}

func parseChatResponse(body []byte, model, prompt string) (Completion, error) {
	text := gjson.GetBytes(body, "choices.0.message.content").String()
	if text == "" {
		return Completion{}, fmt.Errorf("%w: empty completion text", ErrCompletionFailed)
	}

	c := Completion{
		Text:         text,
		InputTokens:  int(gjson.GetBytes(body, "usage.prompt_tokens").Int()),
		OutputTokens: int(gjson.GetBytes(body, "usage.completion_tokens").Int()),
	}

	// Some OpenAI-compatible servers omit usage; estimate so the ledger
	// still records real consumption.
	if c.InputTokens == 0 && c.OutputTokens == 0 {
		c.InputTokens = EstimateTokens(model, prompt)
		c.OutputTokens = EstimateTokens(model, text)
	}
	return c, nil
}
