// Package config holds cchat configuration and the model pricing table.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// DefaultTemperature is the provider-side default. Requests omit the
// temperature entirely when the configured value matches it.
const DefaultTemperature = 1.0

// MaxTokensCeiling bounds the configurable max output tokens.
const MaxTokensCeiling = 128_000

// Config holds all cchat configuration. The API credential is deliberately
// not part of this record; see the secret package.
type Config struct {
	Chat       ChatConfig       `toml:"chat"`
	Appearance AppearanceConfig `toml:"appearance"`
}

// ChatConfig holds the request parameters for every exchange.
type ChatConfig struct {
	Model        string  `toml:"model"`
	MaxTokens    int     `toml:"max_tokens"`
	Temperature  float64 `toml:"temperature"`
	SystemPrompt string  `toml:"system_prompt,omitempty"`
}

// AppearanceConfig holds theme settings.
type AppearanceConfig struct {
	Theme string `toml:"theme"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Chat: ChatConfig{
			Model:       "claude-sonnet-4-6",
			MaxTokens:   8096,
			Temperature: DefaultTemperature,
		},
		Appearance: AppearanceConfig{
			Theme: "flexoki-dark",
		},
	}
}

// ConfigDir returns the XDG-compliant config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "cchat")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "cchat")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// DataDir returns the XDG-compliant data directory where session history
// and the usage ledger live.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "cchat")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "cchat")
}

// Load reads the config file, returning defaults if it doesn't exist.
// Missing keys keep their default values.
func Load() (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// Save writes the config to disk.
func Save(cfg Config) error {
	if err := os.MkdirAll(ConfigDir(), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(ConfigPath(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	enc := toml.NewEncoder(f)
	return enc.Encode(cfg)
}

// Exists returns true if a config file exists on disk.
func Exists() bool {
	_, err := os.Stat(ConfigPath())
	return err == nil
}

// Validate checks the chat parameters before they are ever sent to the
// provider. Values rejected here never leave the process.
func (c ChatConfig) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("config: model must not be empty")
	}
	if c.MaxTokens <= 0 || c.MaxTokens > MaxTokensCeiling {
		return fmt.Errorf("config: max_tokens must be in 1..%d, got %d", MaxTokensCeiling, c.MaxTokens)
	}
	if c.Temperature < 0.0 || c.Temperature > 1.0 {
		return fmt.Errorf("config: temperature must be in 0.0..1.0, got %g", c.Temperature)
	}
	return nil
}
