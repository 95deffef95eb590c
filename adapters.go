package simpleai

import (
	"context"
	"errors"
	"fmt"

	"github.com/simpleai-go/simpleai/adapter"
	"github.com/simpleai-go/simpleai/adapter/anthropic"
	"github.com/simpleai-go/simpleai/adapter/gemini"
	"github.com/simpleai-go/simpleai/adapter/grok"
	"github.com/simpleai-go/simpleai/adapter/openai"
	"github.com/simpleai-go/simpleai/adapter/perplexity"
)

// newProviderAdapter builds the adapter for a canonical provider id.
func newProviderAdapter(ctx context.Context, provider string, cfg adapter.Config) (adapter.Adapter, error) {
	var (
		a   adapter.Adapter
		err error
	)
	switch provider {
	case "openai":
		a, err = openai.New(cfg)
	case "claude":
		a, err = anthropic.New(cfg)
	case "gemini":
		a, err = gemini.New(ctx, cfg)
	case "grok":
		a, err = grok.New(cfg)
	case "perplexity":
		a, err = perplexity.New(cfg)
	default:
		return nil, wrapErr(ErrResolution, provider, fmt.Sprintf("unknown provider %q", provider), nil)
	}
	if err != nil {
		if errors.Is(err, adapter.ErrMissingAPIKey) {
			return nil, wrapErr(ErrSettings, provider, "missing API key", err)
		}
		return nil, wrapErr(ErrProvider, provider, "adapter construction failed", err)
	}
	return a, nil
}
