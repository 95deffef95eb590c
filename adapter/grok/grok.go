// Package grok implements the provider adapter for the xAI API using its
// OpenAI-compatible chat completions endpoint over plain HTTP. Search is
// requested through search_parameters (mode "on" when forced, "auto" when only
// citations are wanted); cited source URLs arrive in the top-level citations
// list. Binary attachments are not accepted over this endpoint.
package grok

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/simpleai-go/simpleai/adapter"
	"github.com/simpleai-go/simpleai/schema"
)

const (
	defaultBaseURL         = "https://api.x.ai/v1"
	defaultMaxTokens int64 = 8192
)

// groundingInstruction is prepended as a system message when search is forced.
const groundingInstruction = "You must use web search before answering and ground your response in cited sources."

// Adapter implements adapter.Adapter for the xAI chat completions API.
type Adapter struct {
	client  *http.Client
	baseURL string
	cfg     adapter.Config
}

// New returns an Adapter bound to the given config. The API key is required.
func New(cfg adapter.Config) (*Adapter, error) {
	if cfg.APIKey == "" {
		return nil, adapter.ErrMissingAPIKey
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Adapter{client: client, baseURL: baseURL, cfg: cfg}, nil
}

// Name returns the canonical provider id.
func (a *Adapter) Name() string { return "grok" }

// Capabilities reports chat completions features. File upload is not part of
// this endpoint; callers pass extracted text instead.
func (a *Adapter) Capabilities() adapter.Capabilities {
	return adapter.Capabilities{BinaryFiles: false}
}

// Execute posts the chat completion and maps the response back. 429
// rejections become *adapter.RateLimitError with the Retry-After hint.
func (a *Adapter) Execute(ctx context.Context, req *adapter.Request) (*adapter.Result, error) {
	if req == nil {
		return nil, adapter.ErrNilRequest
	}
	raw, err := a.post(ctx, a.Translate(req))
	if err != nil {
		return nil, err
	}
	text := completionText(raw)
	if text == "" {
		return nil, adapter.ErrEmptyResponse
	}
	return &adapter.Result{Text: text, Raw: raw, Usage: completionUsage(raw), Calls: 1}, nil
}

// Translate builds the chat completions payload for req.
func (a *Adapter) Translate(req *adapter.Request) map[string]any {
	maxTokens := a.cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	var messages []map[string]any
	if req.RequireSearch {
		messages = append(messages, map[string]any{"role": "system", "content": groundingInstruction})
	}
	for _, msg := range req.Messages {
		messages = append(messages, map[string]any{"role": msg.Role, "content": msg.Text})
	}

	body := map[string]any{
		"model":      req.Model,
		"messages":   messages,
		"max_tokens": maxTokens,
	}
	switch {
	case req.RequireSearch:
		body["search_parameters"] = map[string]any{
			"mode":             "on",
			"return_citations": req.ReturnCitations,
		}
	case req.ReturnCitations:
		body["search_parameters"] = map[string]any{
			"mode":             "auto",
			"return_citations": true,
		}
	}
	if req.Output != nil {
		body["response_format"] = map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   req.Output.PayloadName(),
				"schema": schema.ClosedObjects(req.Output.Schema),
				"strict": req.Output.Strict,
			},
		}
	}
	for k, v := range req.Options {
		body[k] = v
	}
	return body
}

func (a *Adapter) post(ctx context.Context, body map[string]any) (map[string]any, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("grok: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("grok: read response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &adapter.RateLimitError{
			Provider:   "grok",
			StatusCode: resp.StatusCode,
			RetryAfter: adapter.RetryAfterFromHeader(resp.Header),
			Message:    errorMessage(respBody, resp.StatusCode),
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("grok: %s", errorMessage(respBody, resp.StatusCode))
	}

	var raw map[string]any
	if err := json.Unmarshal(respBody, &raw); err != nil {
		return nil, fmt.Errorf("grok: decode response: %w", err)
	}
	return raw, nil
}

// errorMessage pulls the human-readable message out of a vendor error body,
// falling back to the status code plus raw body.
func errorMessage(body []byte, status int) string {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err == nil {
		if errObj, ok := raw["error"].(map[string]any); ok {
			if msg, ok := errObj["message"].(string); ok && msg != "" {
				return msg
			}
		}
		if msg, ok := raw["error"].(string); ok && msg != "" {
			return msg
		}
	}
	return fmt.Sprintf("HTTP %d: %s", status, string(body))
}

func completionText(raw map[string]any) string {
	choices, _ := raw["choices"].([]any)
	if len(choices) == 0 {
		return ""
	}
	choice, _ := choices[0].(map[string]any)
	message, _ := choice["message"].(map[string]any)
	text, _ := message["content"].(string)
	return text
}

func completionUsage(raw map[string]any) adapter.Usage {
	usage, _ := raw["usage"].(map[string]any)
	return adapter.Usage{
		InputTokens:  intField(usage, "prompt_tokens"),
		OutputTokens: intField(usage, "completion_tokens"),
		TotalTokens:  intField(usage, "total_tokens"),
	}
}

func intField(m map[string]any, key string) int64 {
	if f, ok := m[key].(float64); ok {
		return int64(f)
	}
	return 0
}

var _ adapter.Adapter = (*Adapter)(nil)
