package simpleai

import (
	"context"
	"fmt"
	"time"

	"github.com/simpleai-go/simpleai/adapter"
	"github.com/simpleai-go/simpleai/internal/cast"
)

// Client is the entry point for running prompts. The zero-configuration
// client discovers settings per call; options pin explicit settings, inject
// adapters or redirect logging. A Client is safe for concurrent use.
type Client struct {
	settings *Settings
	logger   *PromptLogger
	adapters map[string]adapter.Adapter
	sleep    func(context.Context, time.Duration) error
}

// New returns a configured Client.
func New(opts ...Option) *Client {
	c := &Client{
		adapters: map[string]adapter.Adapter{},
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes a single prompt and returns the normalized response.
func Run(ctx context.Context, prompt string, opts ...RunOption) (*Response, error) {
	return New().Run(ctx, prompt, opts...)
}

// coerceBool interprets boolean-like option values (native bools and string
// forms). nil returns the fallback.
func coerceBool(v any, name string, fallback bool) (bool, error) {
	if v == nil {
		return fallback, nil
	}
	b, ok := cast.ToBool(v)
	if !ok {
		return false, wrapErr(ErrSettings, "", fmt.Sprintf("%s must be a boolean value, got %v", name, v), nil)
	}
	return b, nil
}
