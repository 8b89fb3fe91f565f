// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFromPathMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.BackendURL != "http://127.0.0.1:8001" {
		t.Errorf("BackendURL = %q, want default", cfg.BackendURL)
	}
	if cfg.TimeoutSecs != 60 {
		t.Errorf("TimeoutSecs = %d, want 60", cfg.TimeoutSecs)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestLoadFromPathFileValues(t *testing.T) {
	path := writeConfig(t, `
backend_url = "http://10.0.0.5:9000"
model = "gpt-test"
timeout_secs = 30
`)

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.BackendURL != "http://10.0.0.5:9000" {
		t.Errorf("BackendURL = %q", cfg.BackendURL)
	}
	if cfg.Model != "gpt-test" {
		t.Errorf("Model = %q", cfg.Model)
	}
	if cfg.TimeoutSecs != 30 {
		t.Errorf("TimeoutSecs = %d", cfg.TimeoutSecs)
	}
	// Unset fields still fall back to defaults.
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestEnvOverridesBeatFileValues(t *testing.T) {
	path := writeConfig(t, `backend_url = "http://file-value:8001"`)

	t.Setenv("CHATLINE_BACKEND_URL", "http://env-value:8001")
	t.Setenv("CHATLINE_API_KEY", "sk-env")
	t.Setenv("CHATLINE_TIMEOUT_SECS", "15")

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.BackendURL != "http://env-value:8001" {
		t.Errorf("BackendURL = %q, want env value", cfg.BackendURL)
	}
	if cfg.APIKey != "sk-env" {
		t.Errorf("APIKey = %q, want env value", cfg.APIKey)
	}
	if cfg.TimeoutSecs != 15 {
		t.Errorf("TimeoutSecs = %d, want 15", cfg.TimeoutSecs)
	}
}

func TestEnvOverrideBadTimeoutIgnored(t *testing.T) {
	t.Setenv("CHATLINE_TIMEOUT_SECS", "not-a-number")

	cfg := Default()
	cfg.ApplyEnvOverrides()
	if cfg.TimeoutSecs != 60 {
		t.Errorf("TimeoutSecs = %d, want default 60", cfg.TimeoutSecs)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(c *Config) {}, false},
		{"https backend", func(c *Config) { c.BackendURL = "https://api.example.com" }, false},
		{"empty url", func(c *Config) { c.BackendURL = "" }, true},
		{"missing scheme", func(c *Config) { c.BackendURL = "127.0.0.1:8001" }, true},
		{"bad scheme", func(c *Config) { c.BackendURL = "ftp://host" }, true},
		{"zero timeout", func(c *Config) { c.TimeoutSecs = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromPathInvalidConfigFails(t *testing.T) {
	path := writeConfig(t, `backend_url = "not a url"`)

	if _, err := LoadFromPath(path); err == nil {
		t.Error("expected error for invalid backend_url")
	}
}
