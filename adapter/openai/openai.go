package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"

	"github.com/simpleai-go/simpleai/adapter"
	"github.com/simpleai-go/simpleai/schema"
)

// webSearchSourcesInclude asks the Responses API to return the URL list a
// web_search_call consulted, which citation normalization reads.
const webSearchSourcesInclude = responses.ResponseIncludable("web_search_call.action.sources")

// Adapter implements adapter.Adapter for the OpenAI Responses API.
type Adapter struct {
	client openai.Client
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
	return &Adapter{client: openai.NewClient(opts...), cfg: cfg}, nil
}

// Name returns the canonical provider id.
func (a *Adapter) Name() string { return "openai" }

// Capabilities reports Responses API features.
func (a *Adapter) Capabilities() adapter.Capabilities {
	return adapter.Capabilities{BinaryFiles: true}
}

// Execute translates req into ResponseNewParams, performs the call and maps
// the response back. 429 rejections are returned as *adapter.RateLimitError.
func (a *Adapter) Execute(ctx context.Context, req *adapter.Request) (*adapter.Result, error) {
	if req == nil {
		return nil, adapter.ErrNilRequest
	}
	params, err := a.Translate(ctx, req)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Responses.New(ctx, *params, passthrough(req.Options)...)
	if err != nil {
		return nil, mapError(err)
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(resp.RawJSON()), &raw); err != nil {
		raw = nil
	}
	return &adapter.Result{
		Text: resp.OutputText(),
		Raw:  raw,
		Usage: adapter.Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
		Calls: 1,
	}, nil
}

// Translate builds the Responses API payload for req. Binary attachments are
// uploaded through the Files API first and referenced by id.
func (a *Adapter) Translate(ctx context.Context, req *adapter.Request) (*responses.ResponseNewParams, error) {
	params := &responses.ResponseNewParams{
		Model: shared.ResponsesModel(req.Model),
	}
	if a.cfg.MaxOutputTokens > 0 {
		params.MaxOutputTokens = openai.Int(a.cfg.MaxOutputTokens)
	} else if a.cfg.MaxTokens > 0 {
		params.MaxOutputTokens = openai.Int(a.cfg.MaxTokens)
	}

	items := make(responses.ResponseInputParam, 0, len(req.Messages))
	for i, msg := range req.Messages {
		switch msg.Role {
		case "system":
			// Responses API carries system text as instructions.
			params.Instructions = openai.String(msg.Text)
		case "user":
			content := responses.ResponseInputMessageContentListParam{
				responses.ResponseInputContentParamOfInputText(msg.Text),
			}
			if i == len(req.Messages)-1 {
				fileContent, err := a.uploadAttachments(ctx, req.Attachments)
				if err != nil {
					return nil, err
				}
				content = append(content, fileContent...)
			}
			items = append(items, responses.ResponseInputItemParamOfMessage(content, responses.EasyInputMessageRoleUser))
		case "assistant":
			items = append(items, responses.ResponseInputItemParamOfMessage(
				responses.ResponseInputMessageContentListParam{
					responses.ResponseInputContentParamOfInputText(msg.Text),
				},
				responses.EasyInputMessageRoleAssistant,
			))
		default:
			return nil, fmt.Errorf("openai: unsupported message role %q", msg.Role)
		}
	}
	params.Input = responses.ResponseNewParamsInputUnion{OfInputItemList: items}

	if req.RequireSearch || req.ReturnCitations {
		params.Tools = []responses.ToolUnionParam{
			responses.ToolParamOfWebSearch(responses.WebSearchToolTypeWebSearch),
		}
		if req.RequireSearch {
			params.ToolChoice = responses.ResponseNewParamsToolChoiceUnion{
				OfToolChoiceMode: openai.Opt(responses.ToolChoiceOptionsRequired),
			}
		}
		if req.ReturnCitations {
			params.Include = []responses.ResponseIncludable{webSearchSourcesInclude}
		}
	}

	if req.Output != nil {
		// Strict mode rejects object nodes that leave additionalProperties
		// open, so the schema is closed before submission.
		params.Text = responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Name:   req.Output.PayloadName(),
					Schema: schema.ClosedObjects(req.Output.Schema),
					Strict: openai.Bool(true),
				},
			},
		}
	}
	return params, nil
}

func (a *Adapter) uploadAttachments(ctx context.Context, attachments []adapter.Attachment) (responses.ResponseInputMessageContentListParam, error) {
	var content responses.ResponseInputMessageContentListParam
	for _, att := range attachments {
		if len(att.Data) == 0 {
			continue
		}
		file, err := a.client.Files.New(ctx, openai.FileNewParams{
			File:    openai.File(bytes.NewReader(att.Data), att.Name, att.MIMEType),
			Purpose: openai.FilePurposeUserData,
		})
		if err != nil {
			return nil, mapError(err)
		}
		content = append(content, responses.ResponseInputContentUnionParam{
			OfInputFile: &responses.ResponseInputFileParam{
				FileID: openai.String(file.ID),
			},
		})
	}
	return content, nil
}

// passthrough injects vendor options the canonical request does not model
// (temperature, top_p, reasoning effort, ...) straight into the JSON body.
func passthrough(options map[string]any) []option.RequestOption {
	if len(options) == 0 {
		return nil
	}
	opts := make([]option.RequestOption, 0, len(options))
	for k, v := range options {
		opts = append(opts, option.WithJSONSet(k, v))
	}
	return opts
}

func mapError(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) && apierr.StatusCode == 429 {
		rle := &adapter.RateLimitError{
			Provider:   "openai",
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
