package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/simpleai-go/simpleai/adapter"
	"github.com/simpleai-go/simpleai/schema"
)

const defaultMaxTokens int64 = 4096

// Adapter implements adapter.Adapter for the Anthropic Messages API.
type Adapter struct {
	client anthropic.Client
	cfg    adapter.Config
}

// New returns an Adapter bound to the given config. The API key is required;
// SDK-level retries are disabled because retry policy is owned by the caller.
func New(cfg adapter.Config) (*Adapter, error) {
	if cfg.APIKey == "" {
		return nil, adapter.ErrMissingAPIKey
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	return &Adapter{client: anthropic.NewClient(opts...), cfg: cfg}, nil
}

// Name returns the canonical provider id.
func (a *Adapter) Name() string { return "claude" }

// Capabilities reports Messages API features. Binary attachments are not
// accepted; callers pass extracted text instead.
func (a *Adapter) Capabilities() adapter.Capabilities {
	return adapter.Capabilities{BinaryFiles: false}
}

// Execute performs the Messages API call. When a forced search turn returns
// only tool blocks and no visible text, a follow-up synthesis call renders the
// gathered results into an answer (disabled via Config.SkipCitationFollowup).
func (a *Adapter) Execute(ctx context.Context, req *adapter.Request) (*adapter.Result, error) {
	if req == nil {
		return nil, adapter.ErrNilRequest
	}
	params, err := a.Translate(req)
	if err != nil {
		return nil, err
	}
	msg, err := a.client.Messages.New(ctx, *params, a.requestOptions(req, true)...)
	if err != nil {
		return nil, mapError(err)
	}

	raw := decodeRaw(msg.RawJSON())
	usage := adapter.Usage{
		InputTokens:  msg.Usage.InputTokens,
		OutputTokens: msg.Usage.OutputTokens,
		TotalTokens:  msg.Usage.InputTokens + msg.Usage.OutputTokens,
	}
	calls := 1
	text := extractText(raw)

	if text == "" && req.RequireSearch && hasSearchResult(raw) && !a.cfg.SkipCitationFollowup {
		synthRaw, synthUsage, err := a.synthesize(ctx, req, raw)
		if err != nil {
			return nil, err
		}
		calls++
		usage.InputTokens += synthUsage.InputTokens
		usage.OutputTokens += synthUsage.OutputTokens
		usage.TotalTokens += synthUsage.TotalTokens
		if synthText := extractText(synthRaw); synthText != "" {
			text = synthText
			raw = mergeContent(raw, synthRaw)
		}
	}

	// Schema-constrained answers sometimes surface as tool-style input.
	if text == "" && req.Output != nil {
		text = toolUseJSON(raw)
	}
	if text == "" {
		return nil, adapter.ErrEmptyResponse
	}
	return &adapter.Result{Text: text, Raw: raw, Usage: usage, Calls: calls}, nil
}

// Translate builds the typed Messages payload for req. Search tools and the
// structured-output config ride along as request options, see requestOptions.
func (a *Adapter) Translate(req *adapter.Request) (*anthropic.MessageNewParams, error) {
	maxTokens := a.cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	params := &anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: maxTokens,
	}
	var systemTexts []string
	for _, msg := range req.Messages {
		switch msg.Role {
		case "system":
			systemTexts = append(systemTexts, msg.Text)
		case "user":
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Text)))
		case "assistant":
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Text)))
		}
	}
	if len(systemTexts) > 0 {
		params.System = []anthropic.TextBlockParam{{Text: strings.Join(systemTexts, "\n\n")}}
	}
	return params, nil
}

// requestOptions injects the fields the typed params do not model: the
// web_search server tool, forced tool choice, output_config and vendor
// passthrough options.
func (a *Adapter) requestOptions(req *adapter.Request, withSearch bool) []option.RequestOption {
	var opts []option.RequestOption
	if withSearch && req.RequireSearch {
		opts = append(opts,
			option.WithJSONSet("tools", []map[string]any{{
				"name": "web_search",
				"type": "web_search_20250305",
			}}),
			option.WithJSONSet("tool_choice", map[string]any{"type": "any"}),
		)
	}
	if req.Output != nil {
		opts = append(opts, option.WithJSONSet("output_config", map[string]any{
			"format": map[string]any{
				"type":   "json_schema",
				"schema": normalizeSchema(req.Output.Schema),
			},
		}))
	}
	for k, v := range req.Options {
		if !withSearch && (k == "tools" || k == "tool_choice") {
			continue
		}
		opts = append(opts, option.WithJSONSet(k, v))
	}
	return opts
}

// normalizeSchema closes object nodes and drops the numeric/array constraint
// keywords the endpoint rejects.
func normalizeSchema(s map[string]any) map[string]any {
	return schema.StripKeywords(schema.ClosedObjects(s), schema.AnthropicUnsupportedKeywords)
}

// synthesize issues the follow-up call that turns gathered search results into
// answer text, without search tools.
func (a *Adapter) synthesize(ctx context.Context, req *adapter.Request, raw map[string]any) (map[string]any, adapter.Usage, error) {
	prompt := req.PromptText() + "\n\n" +
		"Web search results already gathered:\n" + renderSearchContext(raw) + "\n\n" +
		"Return the final answer now. If a JSON schema is required, return only valid JSON."

	maxTokens := a.cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: maxTokens,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
	}
	msg, err := a.client.Messages.New(ctx, params, a.requestOptions(req, false)...)
	if err != nil {
		return nil, adapter.Usage{}, mapError(err)
	}
	usage := adapter.Usage{
		InputTokens:  msg.Usage.InputTokens,
		OutputTokens: msg.Usage.OutputTokens,
		TotalTokens:  msg.Usage.InputTokens + msg.Usage.OutputTokens,
	}
	return decodeRaw(msg.RawJSON()), usage, nil
}

func decodeRaw(body string) map[string]any {
	var raw map[string]any
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil
	}
	return raw
}

func contentBlocks(raw map[string]any) []map[string]any {
	blocks, _ := raw["content"].([]any)
	out := make([]map[string]any, 0, len(blocks))
	for _, b := range blocks {
		if m, ok := b.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func extractText(raw map[string]any) string {
	var texts []string
	for _, block := range contentBlocks(raw) {
		if block["type"] == "text" {
			if t, ok := block["text"].(string); ok && t != "" {
				texts = append(texts, t)
			}
		}
	}
	return strings.TrimSpace(strings.Join(texts, "\n"))
}

func hasSearchResult(raw map[string]any) bool {
	for _, block := range contentBlocks(raw) {
		if block["type"] == "web_search_tool_result" {
			return true
		}
	}
	return false
}

// renderSearchContext flattens web_search_tool_result blocks into
// "title | url | page_age" lines for the synthesis prompt.
func renderSearchContext(raw map[string]any) string {
	var lines []string
	for _, block := range contentBlocks(raw) {
		if block["type"] != "web_search_tool_result" {
			continue
		}
		var items []any
		switch c := block["content"].(type) {
		case []any:
			items = c
		case map[string]any:
			items = []any{c}
		}
		for _, it := range items {
			m, ok := it.(map[string]any)
			if !ok {
				continue
			}
			var parts []string
			for _, key := range []string{"title", "url", "page_age"} {
				if s, ok := m[key].(string); ok && s != "" {
					parts = append(parts, s)
				}
			}
			if len(parts) > 0 {
				lines = append(lines, strings.Join(parts, " | "))
			}
		}
	}
	return strings.Join(lines, "\n")
}

func toolUseJSON(raw map[string]any) string {
	for _, block := range contentBlocks(raw) {
		typ, _ := block["type"].(string)
		if typ != "tool_use" && typ != "server_tool_use" {
			continue
		}
		input, ok := block["input"].(map[string]any)
		if !ok {
			continue
		}
		b, err := json.Marshal(input)
		if err != nil {
			continue
		}
		return string(b)
	}
	return ""
}

// mergeContent keeps the first call's tool-result blocks alongside the
// synthesized answer so citation extraction sees both.
func mergeContent(first, synth map[string]any) map[string]any {
	merged := make(map[string]any, len(synth))
	for k, v := range synth {
		merged[k] = v
	}
	firstContent, _ := first["content"].([]any)
	synthContent, _ := synth["content"].([]any)
	content := make([]any, 0, len(firstContent)+len(synthContent))
	content = append(content, firstContent...)
	content = append(content, synthContent...)
	merged["content"] = content
	return merged
}

func mapError(err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) && apierr.StatusCode == 429 {
		rle := &adapter.RateLimitError{
			Provider:   "claude",
			StatusCode: apierr.StatusCode,
			Message:    apierr.Error(),
		}
		if apierr.Response != nil {
			rle.RetryAfter = adapter.RetryAfterFromHeader(apierr.Response.Header)
		}
		return rle
	}
	return err
}

var _ adapter.Adapter = (*Adapter)(nil)
