package simpleai

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Environment variables controlling settings discovery.
const (
	// SettingsFileEnv names an explicit settings file path.
	SettingsFileEnv = "SIMPLEAI_SETTINGS_FILE"
	// AppRootEnv names an extra directory to seed settings discovery from.
	AppRootEnv = "SIMPLEAI_APP_ROOT"
)

// settingsFileName is the discovered settings file, ai_settings.json.
const settingsFileName = "ai_settings"

// appRootMarkers identify a project root during upward discovery.
var appRootMarkers = []string{"go.mod", "pyproject.toml", "package.json", ".git"}

// Settings is the resolved configuration one call runs against. Immutable
// once built; safe for concurrent reads.
type Settings struct {
	// Defaults orders the providers tried when no model is given.
	Defaults []string `json:"defaults"`

	// Providers maps canonical provider ids to their configuration.
	Providers map[string]ProviderSettings `json:"providers"`

	Logging LogSettings `json:"logging"`
}

// ProviderSettings configures one provider.
type ProviderSettings struct {
	APIKey          string `json:"api_key"`
	DefaultModel    string `json:"default_model"`
	BaseURL         string `json:"base_url"`
	MaxTokens       int64  `json:"max_tokens"`
	MaxOutputTokens int64  `json:"max_output_tokens"`

	// MaxRetries bounds rate-limit retries. Nil means the default of 3.
	MaxRetries *int `json:"max_retries"`

	MaxTurns             int  `json:"max_turns"`
	SkipCitationFollowup bool `json:"skip_citation_followup"`

	// Options are provider payload overrides applied to every call,
	// overridden key-by-key by per-call options.
	Options map[string]any `json:"options"`
}

// LogSettings configures the prompt lifecycle logger.
type LogSettings struct {
	Enabled bool   `json:"enabled"`
	File    string `json:"logfile_location"`
}

// defaultSettings returns the built-in configuration user settings merge over.
func defaultSettings() map[string]any {
	return map[string]any{
		"defaults": []any{"gemini", "openai", "claude", "grok", "perplexity"},
		"providers": map[string]any{
			"gemini": map[string]any{
				"default_model":     "gemini-3-pro-preview",
				"max_output_tokens": 8192,
			},
			"claude": map[string]any{
				"default_model":          "claude-opus-4-6",
				"max_tokens":             4096,
				"max_retries":            3,
				"skip_citation_followup": false,
			},
			"openai": map[string]any{
				"default_model":     "gpt-5.2",
				"max_output_tokens": 8192,
			},
			"grok": map[string]any{
				"default_model": "grok-4-latest",
				"max_tokens":    8192,
			},
			"perplexity": map[string]any{
				"default_model":     "sonar-deep-research",
				"max_output_tokens": 4096,
			},
		},
		"logging": map[string]any{
			"enabled":          false,
			"logfile_location": "./simpleai.log",
		},
	}
}

// LoadSettings builds Settings from an explicit file path, the
// SIMPLEAI_SETTINGS_FILE environment variable, or a discovered
// ai_settings.json, merged key-by-key over the built-in defaults. An explicit
// path that is unreadable or malformed is a hard error; absence of any
// discovered file falls back to the defaults alone.
func LoadSettings(explicit string) (*Settings, error) {
	v := viper.New()
	v.SetConfigType("json")

	path := explicit
	if path == "" {
		path = os.Getenv(SettingsFileEnv)
	}

	var user map[string]any
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, wrapErr(ErrSettings, "", fmt.Sprintf("settings file %s", path), err)
		}
		user = v.AllSettings()
	} else {
		v.SetConfigName(settingsFileName)
		for _, dir := range settingsCandidateDirs() {
			v.AddConfigPath(dir)
		}
		err := v.ReadInConfig()
		var notFound viper.ConfigFileNotFoundError
		switch {
		case err == nil:
			user = v.AllSettings()
		case errors.As(err, &notFound):
			// Defaults only.
		default:
			return nil, wrapErr(ErrSettings, "", "settings file", err)
		}
	}

	merged := deepMerge(defaultSettings(), normalizeUserSettings(user))
	settings, err := decodeSettings(merged)
	if err != nil {
		return nil, wrapErr(ErrSettings, "", "settings decode", err)
	}
	return settings, nil
}

// settingsCandidateDirs lists the directories ai_settings.json is searched in,
// in precedence order: each application root, then its config/ and settings/
// subdirectories. Roots are the working directory, the executable directory,
// SIMPLEAI_APP_ROOT and their marker-bearing ancestors.
func settingsCandidateDirs() []string {
	var seeds []string
	if wd, err := os.Getwd(); err == nil {
		seeds = append(seeds, wd)
	}
	if exe, err := os.Executable(); err == nil {
		seeds = append(seeds, filepath.Dir(exe))
	}
	if root := os.Getenv(AppRootEnv); root != "" {
		seeds = append(seeds, root)
	}

	var traversed []string
	for _, seed := range dedupe(seeds) {
		for dir := seed; ; dir = filepath.Dir(dir) {
			traversed = append(traversed, dir)
			if filepath.Dir(dir) == dir {
				break
			}
		}
	}
	traversed = dedupe(traversed)

	var marked []string
	for _, dir := range traversed {
		for _, marker := range appRootMarkers {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				marked = append(marked, dir)
				break
			}
		}
	}

	var out []string
	for _, dir := range dedupe(append(marked, traversed...)) {
		out = append(out, dir, filepath.Join(dir, "config"), filepath.Join(dir, "settings"))
	}
	return out
}

func dedupe(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		key := p
		if abs, err := filepath.Abs(p); err == nil {
			key = abs
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}

// normalizeUserSettings canonicalizes provider aliases in the providers map
// and the defaults list.
func normalizeUserSettings(raw map[string]any) map[string]any {
	if raw == nil {
		return nil
	}
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[k] = v
	}

	providersRaw, ok := out["providers"].(map[string]any)
	if !ok {
		providersRaw, _ = out["provider"].(map[string]any)
	}
	if providersRaw != nil {
		providers := make(map[string]any, len(providersRaw))
		for name, cfg := range providersRaw {
			providers[CanonicalProvider(name)] = cfg
		}
		out["providers"] = providers
	}

	if defaultsRaw, ok := out["defaults"].([]any); ok {
		var defaults []any
		seen := map[string]bool{}
		for _, item := range defaultsRaw {
			name, ok := item.(string)
			if !ok {
				continue
			}
			canonical := CanonicalProvider(name)
			if !seen[canonical] {
				seen[canonical] = true
				defaults = append(defaults, canonical)
			}
		}
		if len(defaults) > 0 {
			out["defaults"] = defaults
		}
	}
	return out
}

// deepMerge merges override into base key-by-key, recursing into nested maps
// instead of replacing them whole.
func deepMerge(base, override map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		if sub, ok := v.(map[string]any); ok {
			if baseSub, ok := merged[k].(map[string]any); ok {
				merged[k] = deepMerge(baseSub, sub)
				continue
			}
		}
		merged[k] = v
	}
	return merged
}

func decodeSettings(merged map[string]any) (*Settings, error) {
	b, err := json.Marshal(merged)
	if err != nil {
		return nil, err
	}
	var s Settings
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// normalized canonicalizes provider keys and the defaults list and backfills
// zero fields from the built-in defaults. Used for caller-supplied settings
// objects, which skip the file merge path.
func (s *Settings) normalized() *Settings {
	base, err := decodeSettings(defaultSettings())
	if err != nil || s == nil {
		return base
	}

	out := &Settings{
		Providers: make(map[string]ProviderSettings, len(base.Providers)),
		Logging:   s.Logging,
	}
	seen := map[string]bool{}
	for _, name := range s.Defaults {
		canonical := CanonicalProvider(name)
		if !seen[canonical] {
			seen[canonical] = true
			out.Defaults = append(out.Defaults, canonical)
		}
	}
	if len(out.Defaults) == 0 {
		out.Defaults = base.Defaults
	}

	for name, ps := range base.Providers {
		out.Providers[name] = ps
	}
	for name, ps := range s.Providers {
		canonical := CanonicalProvider(name)
		out.Providers[canonical] = fillProviderDefaults(out.Providers[canonical], ps)
	}
	if out.Logging.File == "" {
		out.Logging.File = base.Logging.File
	}
	return out
}

// fillProviderDefaults lays override on top of base field by field; zero
// override fields keep the base value.
func fillProviderDefaults(base, override ProviderSettings) ProviderSettings {
	if override.APIKey != "" {
		base.APIKey = override.APIKey
	}
	if override.DefaultModel != "" {
		base.DefaultModel = override.DefaultModel
	}
	if override.BaseURL != "" {
		base.BaseURL = override.BaseURL
	}
	if override.MaxTokens != 0 {
		base.MaxTokens = override.MaxTokens
	}
	if override.MaxOutputTokens != 0 {
		base.MaxOutputTokens = override.MaxOutputTokens
	}
	if override.MaxRetries != nil {
		base.MaxRetries = override.MaxRetries
	}
	if override.MaxTurns != 0 {
		base.MaxTurns = override.MaxTurns
	}
	if override.SkipCitationFollowup {
		base.SkipCitationFollowup = true
	}
	if len(override.Options) > 0 {
		merged := make(map[string]any, len(base.Options)+len(override.Options))
		for k, v := range base.Options {
			merged[k] = v
		}
		for k, v := range override.Options {
			merged[k] = v
		}
		base.Options = merged
	}
	return base
}

// Provider returns the configuration for a canonical provider id.
func (s *Settings) Provider(name string) ProviderSettings {
	if s == nil || s.Providers == nil {
		return ProviderSettings{}
	}
	return s.Providers[name]
}

// ProviderAPIKey resolves a provider's credential: configured api_key first,
// then the provider's environment variable aliases.
func (s *Settings) ProviderAPIKey(provider string) string {
	if key := s.Provider(provider).APIKey; key != "" {
		return key
	}
	for _, env := range ProviderEnvVars(provider) {
		if value := os.Getenv(env); value != "" {
			return value
		}
	}
	return ""
}
