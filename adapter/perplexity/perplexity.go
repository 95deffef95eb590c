// Package perplexity implements the provider adapter for the Perplexity API
// via its chat completions endpoint over plain HTTP. Every Perplexity model
// searches the web by itself, so require_search needs no request change;
// cited sources arrive in the top-level citations and search_results fields.
// Older search-preset names are aliased onto current sonar model names.
// Binary attachments are not accepted.
package perplexity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/simpleai-go/simpleai/adapter"
	"github.com/simpleai-go/simpleai/schema"
)

const (
	defaultBaseURL         = "https://api.perplexity.ai"
	defaultMaxTokens int64 = 8192
)

// presetAliases maps retired search-preset names onto current sonar models.
var presetAliases = map[string]string{
	"fast-search":   "sonar",
	"pro-search":    "sonar-pro",
	"deep-research": "sonar-deep-research",
}

// Adapter implements adapter.Adapter for the Perplexity chat completions API.
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
func (a *Adapter) Name() string { return "perplexity" }

// Capabilities reports chat completions features.
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

	messages := make([]map[string]any, 0, len(req.Messages))
	for _, msg := range req.Messages {
		messages = append(messages, map[string]any{"role": msg.Role, "content": msg.Text})
	}

	body := map[string]any{
		"model":      ResolveModel(req.Model),
		"messages":   messages,
		"max_tokens": maxTokens,
	}
	if req.Output != nil {
		body["response_format"] = map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"schema": schema.ClosedObjects(req.Output.Schema),
			},
		}
	}
	for k, v := range req.Options {
		body[k] = v
	}
	return body
}

// ResolveModel maps retired preset names onto sonar model names; everything
// else passes through unchanged.
func ResolveModel(model string) string {
	if resolved, ok := presetAliases[strings.ToLower(strings.TrimSpace(model))]; ok {
		return resolved
	}
	return model
}

func (a *Adapter) post(ctx context.Context, body map[string]any) (map[string]any, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("perplexity: encode request: %w", err)
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
		return nil, fmt.Errorf("perplexity: read response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &adapter.RateLimitError{
			Provider:   "perplexity",
			StatusCode: resp.StatusCode,
			RetryAfter: adapter.RetryAfterFromHeader(resp.Header),
			Message:    errorMessage(respBody, resp.StatusCode),
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("perplexity: %s", errorMessage(respBody, resp.StatusCode))
	}

	var raw map[string]any
	if err := json.Unmarshal(respBody, &raw); err != nil {
		return nil, fmt.Errorf("perplexity: decode response: %w", err)
	}
	return raw, nil
}

func errorMessage(body []byte, status int) string {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err == nil {
		if errObj, ok := raw["error"].(map[string]any); ok {
			if msg, ok := errObj["message"].(string); ok && msg != "" {
				return msg
			}
		}
		if msg, ok := raw["detail"].(string); ok && msg != "" {
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
	out := adapter.Usage{}
	if f, ok := usage["prompt_tokens"].(float64); ok {
		out.InputTokens = int64(f)
	}
	if f, ok := usage["completion_tokens"].(float64); ok {
		out.OutputTokens = int64(f)
	}
	if f, ok := usage["total_tokens"].(float64); ok {
		out.TotalTokens = int64(f)
	}
	return out
}

var _ adapter.Adapter = (*Adapter)(nil)
