package simpleai

import (
	"context"
	"strings"
	"time"

	"github.com/simpleai-go/simpleai/adapter"
	"github.com/simpleai-go/simpleai/citation"
	"github.com/simpleai-go/simpleai/schema"
)

// Response is the normalized result of one orchestrated call.
type Response struct {
	// Text is the provider's answer.
	Text string

	// Output holds the decoded JSON value when an output format was set.
	Output any

	// Citations are the normalized source references, in provider order.
	Citations []citation.Citation

	// Provider and Model name what actually served the call.
	Provider string
	Model    string

	Usage adapter.Usage

	// CallCount is the number of provider round trips, follow-ups included.
	CallCount int

	Elapsed time.Duration

	// format is the output format the call was made with, kept for Decode.
	format *schema.Format
}

// Decode unmarshals the structured output into v, rejecting unknown fields.
// It requires the call to have been made with an output format.
func (r *Response) Decode(v any) error {
	if r.format == nil {
		return wrapErr(ErrOutputFormat, r.Provider, "no output format was requested", nil)
	}
	if err := r.format.Decode(r.Text, v); err != nil {
		return wrapErr(ErrOutputFormat, r.Provider, "decode structured output", err)
	}
	return nil
}

// Run executes a single prompt through the full pipeline: settings
// resolution, provider and model resolution, file preprocessing, the provider
// call with rate-limit retries, citation normalization and structured-output
// validation.
func (c *Client) Run(ctx context.Context, prompt string, opts ...RunOption) (*Response, error) {
	return c.RunConversation(ctx, []string{prompt}, opts...)
}

// RunConversation executes a multi-turn prompt sequence. Earlier prompts are
// replayed as prior user turns; the final prompt is the one being answered.
func (c *Client) RunConversation(ctx context.Context, prompts []string, opts ...RunOption) (*Response, error) {
	rc := &runConfig{}
	for _, opt := range opts {
		opt(rc)
	}
	if len(prompts) == 0 || strings.TrimSpace(prompts[len(prompts)-1]) == "" {
		return nil, wrapErr(ErrSettings, "", "prompt must not be empty", nil)
	}

	requireSearch, err := coerceBool(rc.requireSearch, "require_search", false)
	if err != nil {
		return nil, err
	}
	binaryFiles, err := coerceBool(rc.binaryFiles, "binary_files", true)
	if err != nil {
		return nil, err
	}
	returnCitations, err := coerceBool(rc.returnCitations, "return_citations", requireSearch)
	if err != nil {
		return nil, err
	}
	if returnCitations {
		requireSearch = true
	}

	var settings *Settings
	if c.settings != nil && rc.settingsFile == "" {
		settings = c.settings.normalized()
	} else {
		settings, err = LoadSettings(rc.settingsFile)
		if err != nil {
			return nil, err
		}
	}

	provider, model, err := ResolveProviderModel(settings, rc.model)
	if err != nil {
		return nil, err
	}

	ps := settings.Provider(provider)
	a, err := c.adapterFor(ctx, provider, adapter.Config{
		APIKey:               settings.ProviderAPIKey(provider),
		BaseURL:              ps.BaseURL,
		MaxTokens:            ps.MaxTokens,
		MaxOutputTokens:      ps.MaxOutputTokens,
		MaxTurns:             ps.MaxTurns,
		SkipCitationFollowup: ps.SkipCitationFollowup,
	})
	if err != nil {
		return nil, err
	}

	req := &adapter.Request{
		Model:           model,
		RequireSearch:   requireSearch,
		ReturnCitations: returnCitations,
		Output:          rc.output,
		Options:         mergeOptions(ps.Options, rc.adapterOptions),
	}
	for _, p := range prompts {
		req.Messages = append(req.Messages, adapter.Message{Role: "user", Text: p})
	}

	if paths := collectFilePaths(rc.file, rc.files); len(paths) > 0 {
		attachments, err := prepareAttachments(ctx, paths, binaryFiles, a.Capabilities())
		if err != nil {
			return nil, err
		}
		var binary []adapter.Attachment
		var textual []adapter.Attachment
		for _, att := range attachments {
			if len(att.Data) > 0 {
				binary = append(binary, att)
			} else {
				textual = append(textual, att)
			}
		}
		req.Attachments = binary
		if len(textual) > 0 {
			last := len(req.Messages) - 1
			req.Messages[last].Text = appendFileText(req.Messages[last].Text, textual)
		}
	}

	logger := c.logger
	if logger == nil {
		logger = newPromptLogger(settings.Logging)
	}
	startedAt := time.Now()
	eventID := logger.Start(map[string]any{
		"prompt":           req.PromptText(),
		"model":            model,
		"provider":         provider,
		"require_search":   requireSearch,
		"return_citations": returnCitations,
		"output_format":    rc.output != nil,
		"files":            len(req.Attachments),
	})

	retry := newRetryController(ps.MaxRetries)
	if c.sleep != nil {
		retry.sleep = c.sleep
	}
	res, err := retry.execute(ctx, a, req)
	if err != nil {
		err = wrapErr(ErrProvider, provider, "provider call failed", err)
		logger.Error(eventID, startedAt, err, provider, model)
		return nil, err
	}

	resp := &Response{
		Text:      res.Text,
		Provider:  provider,
		Model:     model,
		Usage:     res.Usage,
		CallCount: res.Calls,
		format:    rc.output,
	}
	if returnCitations {
		resp.Citations = citation.Normalize(provider, res.Raw)
	}
	if rc.output != nil {
		value, err := rc.output.Validate(res.Text)
		if err != nil {
			err = wrapErr(ErrOutputFormat, provider, "structured output validation failed", err)
			logger.Error(eventID, startedAt, err, provider, model)
			return nil, err
		}
		resp.Output = value
	}
	resp.Elapsed = time.Since(startedAt)

	logger.End(eventID, startedAt, resp.Text, len(resp.Citations))
	return resp, nil
}

// mergeOptions lays per-call provider options over the settings-level ones.
func mergeOptions(settings, call map[string]any) map[string]any {
	if len(settings) == 0 {
		return call
	}
	merged := make(map[string]any, len(settings)+len(call))
	for k, v := range settings {
		merged[k] = v
	}
	for k, v := range call {
		merged[k] = v
	}
	return merged
}

// adapterFor returns the injected adapter for a provider, or builds one from
// the provider factory.
func (c *Client) adapterFor(ctx context.Context, provider string, cfg adapter.Config) (adapter.Adapter, error) {
	if a, ok := c.adapters[provider]; ok {
		return a, nil
	}
	return newProviderAdapter(ctx, provider, cfg)
}
