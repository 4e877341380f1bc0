// Package config loads and manages planfit configuration.
// Configuration source priority (highest to lowest):
// 1. Environment variables (ASI1_API_KEY, LLM_API_KEY, LLM_BASE_URL, LLM_MODEL, ANTHROPIC_API_KEY, etc.)
// 2. Config file path specified via --config flag
// 3. ~/.config/planfit/config.yaml
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed providers_default.yaml
var defaultProvidersYAML []byte

// ProviderDefaults holds the default base URL and model for a provider.
type ProviderDefaults struct {
	BaseURL      string `yaml:"base_url"`
	DefaultModel string `yaml:"default_model"`
}

// LoadProviderDefaults parses the embedded defaults and merges any user
// overrides from ~/.config/planfit/providers.yaml.
func LoadProviderDefaults() map[string]ProviderDefaults {
	defs := make(map[string]ProviderDefaults)
	_ = yaml.Unmarshal(defaultProvidersYAML, &defs)

	home, err := os.UserHomeDir()
	if err == nil {
		userPath := filepath.Join(home, ".config", "planfit", "providers.yaml")
		if data, err := os.ReadFile(userPath); err == nil {
			userDefs := make(map[string]ProviderDefaults)
			if yaml.Unmarshal(data, &userDefs) == nil {
				for name, ud := range userDefs {
					d := defs[name]
					if ud.BaseURL != "" {
						d.BaseURL = ud.BaseURL
					}
					if ud.DefaultModel != "" {
						d.DefaultModel = ud.DefaultModel
					}
					defs[name] = d
				}
			}
		}
	}
	return defs
}

// ProviderConfig holds configuration for a single provider.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// AgentConfig identifies this agent on the chat network.
type AgentConfig struct {
	// Name is the human-readable agent name, used in startup logs.
	Name string `yaml:"name"`

	// Address is this agent's network address, stamped on outbound envelopes.
	Address string `yaml:"address"`
}

// Config is the complete configuration structure for planfit.
type Config struct {
	// Provider is the active provider name (e.g. "asi1", "openai", "anthropic").
	Provider string `yaml:"provider"`

	// Model overrides the provider's default model.
	Model string `yaml:"model"`

	// Providers holds per-provider configuration.
	Providers map[string]*ProviderConfig `yaml:"providers"`

	// ListenAddr is the HTTP listen address for inbound chat messages.
	ListenAddr string `yaml:"listen_addr"`

	// StorePath is the SQLite session store path.
	// Empty = ~/.local/share/planfit/sessions.db.
	StorePath string `yaml:"store_path"`

	// Agent identifies this agent on the network.
	Agent AgentConfig `yaml:"agent"`

	// Peers maps known agent addresses to their message endpoints.
	// Endpoints learned from inbound envelopes take precedence at runtime.
	Peers map[string]string `yaml:"peers"`

	// RequestTimeoutSeconds bounds each model call. 0 = default (90s).
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Provider:   "asi1",
		ListenAddr: ":8011",
		Providers:  make(map[string]*ProviderConfig),
		Peers:      make(map[string]string),
		Agent: AgentConfig{
			Name: "fitness-goal-planner",
		},
	}
}

// Load reads the config file and merges environment variable overrides.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Determine config file path
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			configPath = filepath.Join(home, ".config", "planfit", "config.yaml")
		}
	}

	// Read config file (use defaults if not found)
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
		}
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Initialize maps when the config file nulled them out
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]*ProviderConfig)
	}
	if cfg.Peers == nil {
		cfg.Peers = make(map[string]string)
	}

	return cfg, nil
}

// DefaultStorePath returns the session store path, creating parent directories.
func (c *Config) DefaultStorePath() (string, error) {
	if c.StorePath != "" {
		if err := os.MkdirAll(filepath.Dir(c.StorePath), 0755); err != nil {
			return "", fmt.Errorf("create store directory: %w", err)
		}
		return c.StorePath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".local", "share", "planfit")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create store directory: %w", err)
	}
	return filepath.Join(dir, "sessions.db"), nil
}

// GetProviderConfig returns the config for the named provider, or an empty config if not found.
func (c *Config) GetProviderConfig(name string) *ProviderConfig {
	if pc, ok := c.Providers[name]; ok {
		return pc
	}
	return &ProviderConfig{}
}

var (
	// KnownProviderBaseURLs maps well-known provider names to their base URLs.
	// Populated from providers_default.yaml (embedded) + user overrides.
	KnownProviderBaseURLs map[string]string

	// KnownProviderModels maps well-known provider names to their default models.
	// Populated from providers_default.yaml (embedded) + user overrides.
	KnownProviderModels map[string]string
)

func init() {
	defs := LoadProviderDefaults()
	KnownProviderBaseURLs = make(map[string]string, len(defs))
	KnownProviderModels = make(map[string]string, len(defs))
	for name, d := range defs {
		if d.BaseURL != "" {
			KnownProviderBaseURLs[name] = d.BaseURL
		}
		if d.DefaultModel != "" {
			KnownProviderModels[name] = d.DefaultModel
		}
	}
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *Config) {
	setKey := func(provider, key string) {
		if cfg.Providers[provider] == nil {
			cfg.Providers[provider] = &ProviderConfig{}
		}
		cfg.Providers[provider].APIKey = key
	}

	// Generic overrides
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		setKey(cfg.Provider, v)
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		if cfg.Providers[cfg.Provider] == nil {
			cfg.Providers[cfg.Provider] = &ProviderConfig{}
		}
		cfg.Providers[cfg.Provider].BaseURL = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.Model = v
	}

	// Provider-specific keys
	if v := os.Getenv("ASI1_API_KEY"); v != "" {
		setKey("asi1", v)
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		setKey("anthropic", v)
	}

	// Service selection
	if v := os.Getenv("PLANFIT_PROVIDER"); v != "" {
		cfg.Provider = v
	}
	if v := os.Getenv("PLANFIT_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("PLANFIT_LISTEN"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("PLANFIT_STORE"); v != "" {
		cfg.StorePath = v
	}
}
