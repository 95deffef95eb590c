package simpleai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSettings(keys map[string]string) *Settings {
	s := &Settings{
		Defaults:  []string{"gemini", "openai", "claude", "grok", "perplexity"},
		Providers: map[string]ProviderSettings{},
	}
	defaults := map[string]string{
		"gemini":     "gemini-3-pro-preview",
		"openai":     "gpt-5.2",
		"claude":     "claude-opus-4-6",
		"grok":       "grok-4-latest",
		"perplexity": "sonar-deep-research",
	}
	for provider, model := range defaults {
		s.Providers[provider] = ProviderSettings{DefaultModel: model, APIKey: keys[provider]}
	}
	return s
}

func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, envs := range providerEnvVars {
		for _, env := range envs {
			t.Setenv(env, "")
		}
	}
}

func TestCanonicalProvider(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"google", "gemini"},
		{"gemini", "gemini"},
		{"anthropic", "claude"},
		{"claude", "claude"},
		{"openai", "openai"},
		{"chatgpt", "openai"},
		{"grok", "grok"},
		{"xai", "grok"},
		{"perplexity", "perplexity"},
		{"perplexityai", "perplexity"},
		{"  OpenAI  ", "openai"},
		{"mystery", "mystery"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanonicalProvider(tt.in), "alias %q", tt.in)
	}
}

func TestResolveProviderModelAliases(t *testing.T) {
	clearProviderEnv(t)
	s := testSettings(map[string]string{
		"gemini": "k", "openai": "k", "claude": "k", "grok": "k", "perplexity": "k",
	})

	tests := []struct {
		token        string
		wantProvider string
		wantModel    string
	}{
		{"openai", "openai", "gpt-5.2"},
		{"chatgpt", "openai", "gpt-5.2"},
		{"anthropic", "claude", "claude-opus-4-6"},
		{"google", "gemini", "gemini-3-pro-preview"},
		{"xai", "grok", "grok-4-latest"},
		{"perplexityai", "perplexity", "sonar-deep-research"},
	}
	for _, tt := range tests {
		provider, model, err := ResolveProviderModel(s, tt.token)
		require.NoError(t, err, "token %q", tt.token)
		assert.Equal(t, tt.wantProvider, provider)
		assert.Equal(t, tt.wantModel, model)
	}
}

func TestResolveProviderModelPrefixes(t *testing.T) {
	clearProviderEnv(t)
	s := testSettings(map[string]string{
		"gemini": "k", "openai": "k", "claude": "k", "grok": "k", "perplexity": "k",
	})

	tests := []struct {
		model        string
		wantProvider string
	}{
		{"gpt-4o-mini", "openai"},
		{"o3-mini", "openai"},
		{"claude-haiku-4-5", "claude"},
		{"gemini-2.5-flash", "gemini"},
		{"grok-3", "grok"},
		{"sonar-pro", "perplexity"},
		{"pplx-70b-online", "perplexity"},
		{"davinci-002", "openai"},
	}
	for _, tt := range tests {
		provider, model, err := ResolveProviderModel(s, tt.model)
		require.NoError(t, err, "model %q", tt.model)
		assert.Equal(t, tt.wantProvider, provider)
		assert.Equal(t, tt.model, model)
	}
}

func TestResolveProviderModelEmptyToken(t *testing.T) {
	clearProviderEnv(t)

	t.Run("first credentialed default wins", func(t *testing.T) {
		s := testSettings(map[string]string{"claude": "k", "grok": "k"})
		provider, model, err := ResolveProviderModel(s, "")
		require.NoError(t, err)
		assert.Equal(t, "claude", provider)
		assert.Equal(t, "claude-opus-4-6", model)
	})

	t.Run("no credentials anywhere", func(t *testing.T) {
		s := testSettings(nil)
		_, _, err := ResolveProviderModel(s, "")
		assert.ErrorIs(t, err, ErrSettings)
	})
}

func TestResolveProviderModelUnknownPrefixFallsBack(t *testing.T) {
	clearProviderEnv(t)
	s := testSettings(map[string]string{"openai": "k"})

	provider, model, err := ResolveProviderModel(s, "mystery-model-9000")
	require.NoError(t, err)
	assert.Equal(t, "openai", provider)
	assert.Equal(t, "mystery-model-9000", model)
}

func TestResolveProviderModelRequiresCredential(t *testing.T) {
	clearProviderEnv(t)
	s := testSettings(map[string]string{"openai": "k"})

	_, _, err := ResolveProviderModel(s, "claude-opus-4-6")
	require.ErrorIs(t, err, ErrSettings)
	// The error names the env vars that would satisfy the credential.
	assert.Contains(t, err.Error(), "ANTHROPIC_API_KEY")
	assert.Contains(t, err.Error(), "CLAUDE_API_KEY")
}

func TestResolveProviderModelNoDefaultModelConfigured(t *testing.T) {
	clearProviderEnv(t)
	s := &Settings{
		Defaults:  []string{"openai"},
		Providers: map[string]ProviderSettings{"openai": {APIKey: "k"}},
	}

	_, _, err := ResolveProviderModel(s, "openai")
	assert.ErrorIs(t, err, ErrResolution)
}
