package simpleai

import (
	"fmt"
	"strings"
)

// providerAliases maps every accepted provider spelling to its canonical id.
// Immutable after init; safe for concurrent reads.
var providerAliases = map[string]string{
	"google":       "gemini",
	"gemini":       "gemini",
	"anthropic":    "claude",
	"claude":       "claude",
	"openai":       "openai",
	"chatgpt":      "openai",
	"grok":         "grok",
	"xai":          "grok",
	"perplexity":   "perplexity",
	"perplexityai": "perplexity",
}

// providerEnvVars lists the environment variable aliases a provider's API key
// may be sourced from, in precedence order.
var providerEnvVars = map[string][]string{
	"gemini":     {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	"claude":     {"ANTHROPIC_API_KEY", "CLAUDE_API_KEY"},
	"openai":     {"OPENAI_API_KEY"},
	"grok":       {"XAI_API_KEY", "GROK_API_KEY"},
	"perplexity": {"PERPLEXITY_API_KEY", "PPLX_API_KEY"},
}

// modelPrefixes maps model id prefixes to the provider that names models that
// way, checked in order.
var modelPrefixes = []struct {
	prefix   string
	provider string
}{
	{"gpt-", "openai"},
	{"o1", "openai"},
	{"o3", "openai"},
	{"o4", "openai"},
	{"davinci", "openai"},
	{"claude", "claude"},
	{"gemini", "gemini"},
	{"grok", "grok"},
	{"sonar", "perplexity"},
	{"pplx", "perplexity"},
}

// CanonicalProvider maps a provider alias to its canonical id. Unknown names
// are returned lowercased and trimmed so user settings keys stay addressable.
func CanonicalProvider(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := providerAliases[key]; ok {
		return canonical
	}
	return key
}

// ProviderEnvVars returns the accepted environment variable names for a
// canonical provider id.
func ProviderEnvVars(provider string) []string {
	return providerEnvVars[provider]
}

// ResolveProviderModel turns an optional model token into a concrete
// (provider, model) pair:
//
//  1. empty token: the first provider in settings.defaults holding a
//     credential, with its default model;
//  2. provider alias: its canonical provider with that provider's default
//     model;
//  3. raw model id: the provider inferred from the model name prefix, or the
//     first credentialed default provider when no prefix matches.
//
// The resolved provider must hold a credential; the error names the missing
// environment variables otherwise.
func ResolveProviderModel(settings *Settings, token string) (string, string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		provider, err := firstCredentialed(settings)
		if err != nil {
			return "", "", err
		}
		return provider, settings.Provider(provider).DefaultModel, nil
	}

	if canonical, ok := providerAliases[strings.ToLower(token)]; ok {
		model := settings.Provider(canonical).DefaultModel
		if model == "" {
			return "", "", wrapErr(ErrResolution, canonical, "provider has no default_model configured", nil)
		}
		return canonical, model, requireCredential(settings, canonical)
	}

	if provider := providerForModel(token); provider != "" {
		return provider, token, requireCredential(settings, provider)
	}

	provider, err := firstCredentialed(settings)
	if err != nil {
		return "", "", err
	}
	return provider, token, nil
}

// providerForModel infers the provider from a raw model id, or "" when no
// naming prefix matches.
func providerForModel(model string) string {
	lowered := strings.ToLower(model)
	for _, p := range modelPrefixes {
		if strings.HasPrefix(lowered, p.prefix) {
			return p.provider
		}
	}
	return ""
}

// firstCredentialed walks settings.defaults and returns the first provider
// holding a credential.
func firstCredentialed(settings *Settings) (string, error) {
	for _, provider := range settings.Defaults {
		if settings.ProviderAPIKey(provider) != "" {
			return provider, nil
		}
	}
	return "", wrapErr(ErrSettings, "",
		fmt.Sprintf("no credentialed provider among defaults %v", settings.Defaults), nil)
}

func requireCredential(settings *Settings, provider string) error {
	if settings.ProviderAPIKey(provider) != "" {
		return nil
	}
	hint := strings.Join(ProviderEnvVars(provider), ", ")
	if hint == "" {
		hint = "a provider-specific env var"
	}
	return wrapErr(ErrSettings, provider,
		fmt.Sprintf("missing API key: set providers.%s.api_key or one of %s", provider, hint), nil)
}
