package simpleai

import (
	"log/slog"

	"github.com/simpleai-go/simpleai/adapter"
	"github.com/simpleai-go/simpleai/schema"
)

// Option configures a Client (functional options pattern).
type Option func(*Client)

// WithSettings pins an explicit settings object, short-circuiting file and
// default discovery for every call on this client.
func WithSettings(settings *Settings) Option {
	return func(c *Client) {
		c.settings = settings
	}
}

// WithAdapter injects a provider adapter, overriding the built-in factory for
// that provider id. Intended for tests and custom transports.
func WithAdapter(provider string, a adapter.Adapter) Option {
	return func(c *Client) {
		c.adapters[CanonicalProvider(provider)] = a
	}
}

// WithLogger routes lifecycle events to a caller-supplied slog.Logger instead
// of the file sink named in settings.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = newInjectedLogger(logger)
	}
}

// RunOption configures a single Run or RunConversation call.
type RunOption func(*runConfig)

// runConfig collects per-call options before coercion. The boolean-like
// fields accept native bools and string forms ("true", "1", "yes", "on", ...).
type runConfig struct {
	model           string
	requireSearch   any
	returnCitations any
	binaryFiles     any
	file            string
	files           []string
	output          *schema.Format
	settingsFile    string
	adapterOptions  map[string]any
}

// WithModel selects a provider alias (e.g. "openai") or a specific model id
// (e.g. "gpt-5.2").
func WithModel(model string) RunOption {
	return func(rc *runConfig) { rc.model = model }
}

// WithRequireSearch forces the provider's native search tool on. Accepts a
// bool or a boolean-like string.
func WithRequireSearch(v any) RunOption {
	return func(rc *runConfig) { rc.requireSearch = v }
}

// WithReturnCitations asks for normalized citations alongside the result.
// Defaults to the effective require_search value; true forces search on.
// Accepts a bool or a boolean-like string.
func WithReturnCitations(v any) RunOption {
	return func(rc *runConfig) { rc.returnCitations = v }
}

// WithBinaryFiles controls whether attachments ride as binary when the
// provider supports it (default true). Accepts a bool or a boolean-like string.
func WithBinaryFiles(v any) RunOption {
	return func(rc *runConfig) { rc.binaryFiles = v }
}

// WithFile attaches a single file, by local path or https URL.
func WithFile(path string) RunOption {
	return func(rc *runConfig) { rc.file = path }
}

// WithFiles attaches multiple files, by local path or https URL.
func WithFiles(paths ...string) RunOption {
	return func(rc *runConfig) { rc.files = append(rc.files, paths...) }
}

// WithOutputFormat constrains the answer to a JSON schema; the result is
// validated before it is returned.
func WithOutputFormat(format *schema.Format) RunOption {
	return func(rc *runConfig) { rc.output = format }
}

// WithSettingsFile reads settings from an explicit path for this call.
func WithSettingsFile(path string) RunOption {
	return func(rc *runConfig) { rc.settingsFile = path }
}

// WithAdapterOptions passes provider payload overrides straight through to
// the vendor request (temperature, top_p, search_recency_filter, ...).
func WithAdapterOptions(options map[string]any) RunOption {
	return func(rc *runConfig) {
		if rc.adapterOptions == nil {
			rc.adapterOptions = make(map[string]any, len(options))
		}
		for k, v := range options {
			rc.adapterOptions[k] = v
		}
	}
}

// WithProviderOption sets one provider payload override.
func WithProviderOption(key string, value any) RunOption {
	return func(rc *runConfig) {
		if rc.adapterOptions == nil {
			rc.adapterOptions = map[string]any{}
		}
		rc.adapterOptions[key] = value
	}
}
