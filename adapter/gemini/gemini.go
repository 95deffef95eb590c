package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/simpleai-go/simpleai/adapter"
	"github.com/simpleai-go/simpleai/internal/cast"
)

const defaultMaxOutputTokens int32 = 8192

// groundingInstruction is set as the system instruction when search is
// required and the caller supplied no system turn of their own.
const groundingInstruction = "Use Google Search to ground your answer and provide citations to sources."

// Adapter implements adapter.Adapter for the Google Gemini (genai) API.
type Adapter struct {
	client *genai.Client
	cfg    adapter.Config
}

// New returns an Adapter bound to the given config. The API key is required.
func New(ctx context.Context, cfg adapter.Config) (*Adapter, error) {
	if cfg.APIKey == "" {
		return nil, adapter.ErrMissingAPIKey
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.HTTPClient != nil {
		cc.HTTPClient = cfg.HTTPClient
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}
	return &Adapter{client: client, cfg: cfg}, nil
}

// Name returns the canonical provider id.
func (a *Adapter) Name() string { return "gemini" }

// Capabilities reports genai features. Binary attachments ride inline as parts.
func (a *Adapter) Capabilities() adapter.Capabilities {
	return adapter.Capabilities{BinaryFiles: true}
}

// Execute translates req into contents plus config and performs the call.
// 429/RESOURCE_EXHAUSTED rejections become *adapter.RateLimitError with the
// RetryInfo delay when the error details carry one.
func (a *Adapter) Execute(ctx context.Context, req *adapter.Request) (*adapter.Result, error) {
	if req == nil {
		return nil, adapter.ErrNilRequest
	}
	contents, config, err := a.Translate(req)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		return nil, mapError(err)
	}

	var raw map[string]any
	if b, err := json.Marshal(resp); err == nil {
		_ = json.Unmarshal(b, &raw)
	}
	text := resp.Text()
	if text == "" {
		text = textFromRaw(raw)
	}

	var usage adapter.Usage
	if resp.UsageMetadata != nil {
		usage = adapter.Usage{
			InputTokens:  int64(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int64(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:  int64(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return &adapter.Result{Text: text, Raw: raw, Usage: usage, Calls: 1}, nil
}

// Translate builds the genai contents and config for req.
func (a *Adapter) Translate(req *adapter.Request) ([]*genai.Content, *genai.GenerateContentConfig, error) {
	config := &genai.GenerateContentConfig{
		MaxOutputTokens: defaultMaxOutputTokens,
	}
	if a.cfg.MaxOutputTokens > 0 {
		config.MaxOutputTokens = clampInt32(a.cfg.MaxOutputTokens)
	} else if a.cfg.MaxTokens > 0 {
		config.MaxOutputTokens = clampInt32(a.cfg.MaxTokens)
	}

	var systemTexts []string
	var contents []*genai.Content
	for i, msg := range req.Messages {
		switch msg.Role {
		case "system":
			systemTexts = append(systemTexts, msg.Text)
		case "user":
			parts := []*genai.Part{genai.NewPartFromText(msg.Text)}
			if i == len(req.Messages)-1 {
				for _, att := range req.Attachments {
					if len(att.Data) == 0 {
						continue
					}
					mime := att.MIMEType
					if mime == "" {
						mime = "application/octet-stream"
					}
					parts = append(parts, genai.NewPartFromBytes(att.Data, mime))
				}
			}
			contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))
		case "assistant":
			contents = append(contents, genai.NewContentFromText(msg.Text, genai.RoleModel))
		}
	}

	if req.RequireSearch {
		config.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
		if len(systemTexts) == 0 {
			systemTexts = append(systemTexts, groundingInstruction)
		}
	}
	if len(systemTexts) > 0 {
		config.SystemInstruction = genai.NewContentFromText(strings.Join(systemTexts, "\n\n"), genai.RoleUser)
	}
	if req.Output != nil {
		config.ResponseMIMEType = "application/json"
		if typed, err := responseSchema(req.Output.Schema); err == nil && typed != nil {
			config.ResponseSchema = typed
		} else {
			config.ResponseJsonSchema = req.Output.Schema
		}
	}
	applyOptions(config, req.Options)
	return contents, config, nil
}

// applyOptions maps vendor passthrough options onto the typed config.
// Unknown keys are ignored.
func applyOptions(config *genai.GenerateContentConfig, options map[string]any) {
	for k, v := range options {
		switch k {
		case "temperature":
			if f, ok := cast.ToFloat64(v); ok {
				t := float32(f)
				config.Temperature = &t
			}
		case "top_p":
			if f, ok := cast.ToFloat64(v); ok {
				p := float32(f)
				config.TopP = &p
			}
		case "top_k":
			if f, ok := cast.ToFloat64(v); ok {
				kk := float32(f)
				config.TopK = &kk
			}
		case "max_output_tokens":
			if i, ok := cast.ToInt64(v); ok {
				config.MaxOutputTokens = clampInt32(i)
			}
		case "stop_sequences":
			if ss, ok := cast.ToStringSlice(v); ok {
				config.StopSequences = ss
			}
		case "system_instruction":
			if s, ok := cast.ToString(v); ok {
				config.SystemInstruction = genai.NewContentFromText(s, genai.RoleUser)
			}
		}
	}
}

func clampInt32(v int64) int32 {
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(v)
}

// textFromRaw joins candidate part texts when the SDK helper returns nothing.
func textFromRaw(raw map[string]any) string {
	var chunks []string
	candidates, _ := raw["candidates"].([]any)
	for _, c := range candidates {
		cm, ok := c.(map[string]any)
		if !ok {
			continue
		}
		content, _ := cm["content"].(map[string]any)
		parts, _ := content["parts"].([]any)
		for _, p := range parts {
			pm, ok := p.(map[string]any)
			if !ok {
				continue
			}
			if t, ok := pm["text"].(string); ok && t != "" {
				chunks = append(chunks, t)
			}
		}
	}
	return strings.Join(chunks, "\n")
}

func mapError(err error) error {
	var apierr genai.APIError
	if errors.As(err, &apierr) && apierr.Code == 429 {
		return &adapter.RateLimitError{
			Provider:   "gemini",
			StatusCode: apierr.Code,
			RetryAfter: retryDelayFromDetails(apierr.Details),
			Message:    apierr.Message,
		}
	}
	return err
}

// retryDelayFromDetails reads the google.rpc.RetryInfo delay ("40s") the
// Gemini API attaches to quota errors.
func retryDelayFromDetails(details []map[string]any) time.Duration {
	for _, d := range details {
		typ, _ := d["@type"].(string)
		if !strings.HasSuffix(typ, "google.rpc.RetryInfo") {
			continue
		}
		if s, ok := d["retryDelay"].(string); ok {
			if dur, err := time.ParseDuration(s); err == nil && dur > 0 {
				return dur
			}
		}
	}
	return 0
}

var _ adapter.Adapter = (*Adapter)(nil)
