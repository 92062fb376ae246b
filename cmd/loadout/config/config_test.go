// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "loadout.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
  shutdown_timeout: 30s
data:
  watch: false
history:
  backend: sqlite
  path: /tmp/history.db
generator:
  reroll_limit: 8
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.False(t, cfg.Data.Watch)
	assert.Equal(t, "json/helldivers_complete.json", cfg.Data.Path, "unset keys keep defaults")
	assert.Equal(t, "sqlite", cfg.History.Backend)
	assert.Equal(t, 8, cfg.Generator.RerollLimit)
	assert.Equal(t, 3, cfg.Generator.MaxDupes)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "history:\n  backend: sqlite\n  path: a.db\n")
	t.Setenv("LOADOUT_HISTORY_BACKEND", "jsonfile")
	t.Setenv("LOADOUT_HISTORY_PATH", "cache.json")
	t.Setenv("LOADOUT_GENERATOR_SEED", "42")
	t.Setenv("LOADOUT_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "jsonfile", cfg.History.Backend)
	assert.Equal(t, "cache.json", cfg.History.Path)
	assert.Equal(t, uint64(42), cfg.Generator.Seed)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_OpenAIKeyFromEnv(t *testing.T) {
	t.Setenv("LOADOUT_LLM_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
}

func TestLoad_PrefixedKeyWins(t *testing.T) {
	t.Setenv("LOADOUT_LLM_PROVIDER", "openai")
	t.Setenv("LOADOUT_LLM_API_KEY", "sk-prefixed")
	t.Setenv("OPENAI_API_KEY", "sk-plain")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-prefixed", cfg.LLM.APIKey)
}

func TestLoad_APIKeyIgnoredInYAML(t *testing.T) {
	path := writeConfig(t, "llm:\n  provider: openai\n  api_key: sk-in-file\n")
	t.Setenv("OPENAI_API_KEY", "")

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestLoad_BadYAML(t *testing.T) {
	path := writeConfig(t, "server: [")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_BadEnvValue(t *testing.T) {
	t.Setenv("LOADOUT_GENERATOR_REROLL_LIMIT", "many")
	_, err := Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"unknown backend", func(c *Config) { c.History.Backend = "redis" }, true},
		{"memory needs no path", func(c *Config) { c.History.Backend = "memory"; c.History.Path = "" }, false},
		{"badger needs path", func(c *Config) { c.History.Path = "" }, true},
		{"ollama needs base url", func(c *Config) { c.LLM.Provider = "ollama" }, true},
		{"ollama with base url", func(c *Config) {
			c.LLM.Provider = "ollama"
			c.LLM.BaseURL = "http://localhost:11434"
		}, false},
		{"openai with secret path", func(c *Config) {
			c.LLM.Provider = "openai"
			c.LLM.SecretPath = "/run/secrets/openai_api_key"
		}, false},
		{"otlp needs endpoint", func(c *Config) { c.Tracing.Exporter = "otlp" }, true},
		{"zero reroll limit", func(c *Config) { c.Generator.RerollLimit = 0 }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, true},
		{"temperature too high", func(c *Config) { c.LLM.ProposalTemperature = 3 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
