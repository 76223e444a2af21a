// Package config loads the router configuration. Configuration is read
// once at startup; the resulting Config is treated as immutable input.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/arc-systems/promptgate/pkg/registry"
)

// Config holds everything the router needs at construction time.
type Config struct {
	DefaultProvider string   `yaml:"default_provider"`
	Disallow        []string `yaml:"disallow,omitempty"`
	PreferenceOrder []string `yaml:"preference_order,omitempty"`

	Retry     RetryConfig               `yaml:"retry,omitempty"`
	Providers map[string]ProviderConfig `yaml:"providers,omitempty"`

	// Cards overrides the built-in capability catalog when set.
	Cards []registry.Card `yaml:"cards,omitempty"`
}

// ProviderConfig configures one backend provider. Enabled acts as a
// feature flag for provider variants; it is resolved once at load and
// never re-read mid-process.
type ProviderConfig struct {
	APIKey    string `yaml:"api_key,omitempty"`
	APIKeyEnv string `yaml:"api_key_env,omitempty"`
	Enabled   *bool  `yaml:"enabled,omitempty"`
}

// RetryConfig defines the retry budget and delay window.
type RetryConfig struct {
	Retries    int `yaml:"retries,omitempty"`
	MinDelayMs int `yaml:"min_delay_ms,omitempty"`
	MaxDelayMs int `yaml:"max_delay_ms,omitempty"`
}

// Load reads configuration from a YAML file. Credentials referencing
// environment variables are resolved here, once.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)
	resolveCredentials(&cfg)
	return &cfg, nil
}

// Default returns the default configuration with credentials resolved
// from the conventional environment variables.
func Default() *Config {
	cfg := &Config{
		Providers: map[string]ProviderConfig{
			"anthropic": {APIKeyEnv: "ANTHROPIC_API_KEY"},
			"openai":    {APIKeyEnv: "OPENAI_API_KEY"},
			"google":    {APIKeyEnv: "GOOGLE_API_KEY"},
			"deepseek":  {APIKeyEnv: "DEEPSEEK_API_KEY"},
		},
	}
	applyDefaults(cfg)
	resolveCredentials(cfg)
	return cfg
}

// EnabledProviders returns the providers whose feature flag is on.
func (c *Config) EnabledProviders() map[string]ProviderConfig {
	out := make(map[string]ProviderConfig, len(c.Providers))
	for name, pc := range c.Providers {
		if pc.Enabled != nil && !*pc.Enabled {
			continue
		}
		out[name] = pc
	}
	return out
}

func applyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}
	if cfg.DefaultProvider == "" {
		cfg.DefaultProvider = "anthropic"
	}
	if len(cfg.PreferenceOrder) == 0 {
		cfg.PreferenceOrder = []string{"anthropic", "openai", "google", "deepseek"}
	}
	if cfg.Retry.Retries == 0 {
		cfg.Retry.Retries = 2
	}
	if cfg.Retry.MinDelayMs == 0 {
		cfg.Retry.MinDelayMs = 300
	}
	if cfg.Retry.MaxDelayMs == 0 {
		cfg.Retry.MaxDelayMs = 3000
	}
	if cfg.Retry.MaxDelayMs < cfg.Retry.MinDelayMs {
		cfg.Retry.MaxDelayMs = cfg.Retry.MinDelayMs
	}
	if len(cfg.Cards) == 0 {
		cfg.Cards = registry.DefaultCards()
	}
}

func resolveCredentials(cfg *Config) {
	for name, pc := range cfg.Providers {
		if pc.APIKey == "" && pc.APIKeyEnv != "" {
			pc.APIKey = os.Getenv(pc.APIKeyEnv)
			cfg.Providers[name] = pc
		}
	}
}
