// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading for chatline.
//
// Precedence, lowest to highest:
//   - Built-in defaults
//   - ~/.chatline/config.toml
//   - CHATLINE_* environment variables
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// CONFIG STRUCTURE
// =============================================================================

// Config is the complete chatline configuration. Values here are startup
// defaults; API key, model, and UI flags can later be changed at runtime
// and are then persisted as preferences, which win over these.
type Config struct {
	// BackendURL is the base URL of the chat backend.
	BackendURL string `toml:"backend_url"`

	// APIKey is forwarded to the backend with every request. Optional;
	// the backend may carry its own key.
	APIKey string `toml:"api_key"`

	// Model is the default model identifier sent on streaming requests.
	// Empty lets the backend choose.
	Model string `toml:"model"`

	// SystemPrompt is sent with every exchange when set.
	SystemPrompt string `toml:"system_prompt"`

	// TimeoutSecs bounds single-shot requests. Streaming requests are
	// never timed out; they are bound to their cancellation context.
	TimeoutSecs int `toml:"timeout_secs"`

	// LogLevel is the logrus level name for the log file.
	LogLevel string `toml:"log_level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		BackendURL:  "http://127.0.0.1:8001",
		TimeoutSecs: 60,
		LogLevel:    "info",
	}
}

// =============================================================================
// PATHS
// =============================================================================

// Dir returns the chatline home directory, ~/.chatline.
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".chatline"), nil
}

// Path returns the config file location, ~/.chatline/config.toml.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the default file location, falling back to
// defaults when the file does not exist. Environment overrides are applied
// last.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		cfg := Default()
		cfg.ApplyEnvOverrides()
		return cfg, cfg.Validate()
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific file. A missing file is
// not an error; the defaults still apply.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnvOverrides applies CHATLINE_* environment variables on top of the
// loaded values.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("CHATLINE_BACKEND_URL"); v != "" {
		c.BackendURL = v
	}
	if v := os.Getenv("CHATLINE_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("CHATLINE_MODEL"); v != "" {
		c.Model = v
	}
	if v := os.Getenv("CHATLINE_SYSTEM_PROMPT"); v != "" {
		c.SystemPrompt = v
	}
	if v := os.Getenv("CHATLINE_TIMEOUT_SECS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			c.TimeoutSecs = secs
		}
	}
	if v := os.Getenv("CHATLINE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// SetDefaults fills zero values left by a partial config file.
func (c *Config) SetDefaults() {
	def := Default()
	if c.BackendURL == "" {
		c.BackendURL = def.BackendURL
	}
	if c.TimeoutSecs <= 0 {
		c.TimeoutSecs = def.TimeoutSecs
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BackendURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend_url %q is not a valid URL", c.BackendURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("backend_url scheme %q is not http or https", u.Scheme)
	}
	if c.TimeoutSecs <= 0 {
		return fmt.Errorf("timeout_secs must be positive, got %d", c.TimeoutSecs)
	}
	return nil
}
