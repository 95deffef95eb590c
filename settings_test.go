package simpleai

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSettingsFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSettingsDefaults(t *testing.T) {
	t.Setenv(SettingsFileEnv, "")
	t.Setenv(AppRootEnv, t.TempDir())
	t.Chdir(t.TempDir())

	s, err := LoadSettings("")
	require.NoError(t, err)

	assert.Equal(t, []string{"gemini", "openai", "claude", "grok", "perplexity"}, s.Defaults)
	assert.Equal(t, "gemini-3-pro-preview", s.Provider("gemini").DefaultModel)
	assert.Equal(t, "claude-opus-4-6", s.Provider("claude").DefaultModel)
	assert.Equal(t, int64(4096), s.Provider("claude").MaxTokens)
	require.NotNil(t, s.Provider("claude").MaxRetries)
	assert.Equal(t, 3, *s.Provider("claude").MaxRetries)
	assert.Equal(t, "gpt-5.2", s.Provider("openai").DefaultModel)
	assert.Equal(t, "grok-4-latest", s.Provider("grok").DefaultModel)
	assert.Equal(t, "sonar-deep-research", s.Provider("perplexity").DefaultModel)
	assert.False(t, s.Logging.Enabled)
}

func TestLoadSettingsExplicitFileMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeSettingsFile(t, dir, "custom.json", `{
		"defaults": ["openai"],
		"providers": {
			"openai": {"api_key": "sk-test", "max_output_tokens": 1024}
		}
	}`)

	s, err := LoadSettings(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"openai"}, s.Defaults)
	assert.Equal(t, "sk-test", s.Provider("openai").APIKey)
	assert.Equal(t, int64(1024), s.Provider("openai").MaxOutputTokens)
	// Untouched keys survive the merge.
	assert.Equal(t, "gpt-5.2", s.Provider("openai").DefaultModel)
	assert.Equal(t, "claude-opus-4-6", s.Provider("claude").DefaultModel)
}

func TestLoadSettingsExplicitFileErrors(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		_, err := LoadSettings(filepath.Join(t.TempDir(), "nope.json"))
		assert.ErrorIs(t, err, ErrSettings)
	})

	t.Run("malformed", func(t *testing.T) {
		path := writeSettingsFile(t, t.TempDir(), "bad.json", `{"defaults": [`)
		_, err := LoadSettings(path)
		assert.ErrorIs(t, err, ErrSettings)
	})
}

func TestLoadSettingsEnvFile(t *testing.T) {
	path := writeSettingsFile(t, t.TempDir(), "env.json", `{
		"providers": {"grok": {"api_key": "xai-key"}}
	}`)
	t.Setenv(SettingsFileEnv, path)

	s, err := LoadSettings("")
	require.NoError(t, err)
	assert.Equal(t, "xai-key", s.Provider("grok").APIKey)
}

func TestLoadSettingsDiscoversFromAppRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "config"), 0o755))
	writeSettingsFile(t, filepath.Join(root, "config"), "ai_settings.json", `{
		"providers": {"perplexity": {"api_key": "pplx-key"}}
	}`)
	t.Setenv(SettingsFileEnv, "")
	t.Setenv(AppRootEnv, root)
	t.Chdir(t.TempDir())

	s, err := LoadSettings("")
	require.NoError(t, err)
	assert.Equal(t, "pplx-key", s.Provider("perplexity").APIKey)
}

func TestLoadSettingsCanonicalizesAliases(t *testing.T) {
	path := writeSettingsFile(t, t.TempDir(), "aliases.json", `{
		"defaults": ["anthropic", "google"],
		"providers": {
			"anthropic": {"api_key": "ant-key"},
			"google": {"api_key": "goog-key"}
		}
	}`)

	s, err := LoadSettings(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"claude", "gemini"}, s.Defaults)
	assert.Equal(t, "ant-key", s.Provider("claude").APIKey)
	assert.Equal(t, "goog-key", s.Provider("gemini").APIKey)
}

func TestProviderAPIKeyEnvFallback(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "env-openai")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "env-google")

	s := &Settings{Providers: map[string]ProviderSettings{
		"claude": {APIKey: "configured"},
	}}

	assert.Equal(t, "configured", s.ProviderAPIKey("claude"))
	assert.Equal(t, "env-openai", s.ProviderAPIKey("openai"))
	// Second env alias is honored when the first is unset.
	assert.Equal(t, "env-google", s.ProviderAPIKey("gemini"))
	assert.Equal(t, "", s.ProviderAPIKey("unknown"))
}

func TestSettingsNormalized(t *testing.T) {
	t.Parallel()

	s := &Settings{
		Defaults: []string{"anthropic", "ChatGPT", "anthropic"},
		Providers: map[string]ProviderSettings{
			"anthropic": {APIKey: "ant-key", MaxTokens: 2048},
		},
	}
	n := s.normalized()

	assert.Equal(t, []string{"claude", "openai"}, n.Defaults)
	// Overridden fields stick, zero fields backfill from the built-ins.
	assert.Equal(t, "ant-key", n.Provider("claude").APIKey)
	assert.Equal(t, int64(2048), n.Provider("claude").MaxTokens)
	assert.Equal(t, "claude-opus-4-6", n.Provider("claude").DefaultModel)
	assert.Equal(t, "gpt-5.2", n.Provider("openai").DefaultModel)

	// Nil settings yield the built-in defaults.
	var nilSettings *Settings
	assert.Equal(t, "grok-4-latest", nilSettings.normalized().Provider("grok").DefaultModel)
}

func TestDeepMerge(t *testing.T) {
	t.Parallel()

	base := map[string]any{
		"a": 1,
		"nested": map[string]any{
			"x": "keep",
			"y": "replace",
		},
	}
	override := map[string]any{
		"nested": map[string]any{"y": "new"},
		"b":      2,
	}

	merged := deepMerge(base, override)
	assert.Equal(t, 1, merged["a"])
	assert.Equal(t, 2, merged["b"])
	nested := merged["nested"].(map[string]any)
	assert.Equal(t, "keep", nested["x"])
	assert.Equal(t, "new", nested["y"])
}
