// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the loadout CLI configuration.
//
// Values are layered: built-in defaults, then the YAML file, then
// environment variables (LOADOUT_*, plus OPENAI_API_KEY), then validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LOADOUT_"

// Config is the full CLI configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" envPrefix:"SERVER_"`
	Data      DataConfig      `yaml:"data" envPrefix:"DATA_"`
	History   HistoryConfig   `yaml:"history" envPrefix:"HISTORY_"`
	LLM       LLMConfig       `yaml:"llm" envPrefix:"LLM_"`
	Generator GeneratorConfig `yaml:"generator" envPrefix:"GENERATOR_"`
	Logging   LoggingConfig   `yaml:"logging" envPrefix:"LOG_"`
	Tracing   TracingConfig   `yaml:"tracing" envPrefix:"TRACING_"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"ADDR" validate:"required"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
}

// DataConfig locates the item dataset.
type DataConfig struct {
	Path  string `yaml:"path" env:"PATH" validate:"required"`
	Watch bool   `yaml:"watch" env:"WATCH"`
}

// HistoryConfig selects the history store.
type HistoryConfig struct {
	// Backend is badger, sqlite, jsonfile or memory.
	Backend string `yaml:"backend" env:"BACKEND" validate:"oneof=badger sqlite jsonfile memory"`

	// Path is a directory for badger and a file for sqlite and jsonfile.
	Path string `yaml:"path" env:"PATH" validate:"required_unless=Backend memory"`

	// BackupPath is an optional legacy JSON file read when the live store
	// has no valid entry.
	BackupPath string `yaml:"backup_path" env:"BACKUP_PATH"`
}

// LLMConfig selects the language model backend.
type LLMConfig struct {
	// Provider is openai, ollama or none. With none, proposals come from the
	// local sampler and briefings from the static narrator.
	Provider string `yaml:"provider" env:"PROVIDER" validate:"oneof=openai ollama none"`

	Model   string `yaml:"model" env:"MODEL"`
	BaseURL string `yaml:"base_url" env:"BASE_URL" validate:"required_if=Provider ollama"`

	// APIKey is never read from YAML.
	APIKey     string `yaml:"-" env:"API_KEY"`
	SecretPath string `yaml:"secret_path" env:"SECRET_PATH"`

	RequestsPerMinute    int           `yaml:"requests_per_minute" env:"RPM" validate:"gte=0"`
	Timeout              time.Duration `yaml:"timeout" env:"TIMEOUT" validate:"gte=0"`
	MaxRetries           int           `yaml:"max_retries" env:"MAX_RETRIES" validate:"gte=1,lte=10"`
	ProposalTemperature  float32       `yaml:"proposal_temperature" env:"PROPOSAL_TEMPERATURE" validate:"gte=0,lte=2"`
	NarrationTemperature float32       `yaml:"narration_temperature" env:"NARRATION_TEMPERATURE" validate:"gte=0,lte=2"`
	NarrationMaxTokens   int           `yaml:"narration_max_tokens" env:"NARRATION_MAX_TOKENS" validate:"gte=1"`
}

// GeneratorConfig tunes the generation pipeline.
type GeneratorConfig struct {
	RerollLimit     int `yaml:"reroll_limit" env:"REROLL_LIMIT" validate:"gte=1,lte=50"`
	MaxDupes        int `yaml:"max_dupes" env:"MAX_DUPES" validate:"gte=1"`
	WarmConcurrency int `yaml:"warm_concurrency" env:"WARM_CONCURRENCY" validate:"gte=1,lte=32"`

	// Seed fixes the sampler for reproducible runs. Zero seeds from the clock.
	Seed uint64 `yaml:"seed" env:"SEED"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level string `yaml:"level" env:"LEVEL" validate:"oneof=debug info warn warning error"`
	JSON  bool   `yaml:"json" env:"JSON"`
	Dir   string `yaml:"dir" env:"DIR"`
}

// TracingConfig selects the span exporter.
type TracingConfig struct {
	Exporter    string `yaml:"exporter" env:"EXPORTER" validate:"oneof=otlp stdout none"`
	Endpoint    string `yaml:"endpoint" env:"ENDPOINT" validate:"required_if=Exporter otlp"`
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
}

// secretsEnv holds unprefixed variables honored for compatibility.
type secretsEnv struct {
	OpenAIKey string `env:"OPENAI_API_KEY"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Data: DataConfig{
			Path:  "json/helldivers_complete.json",
			Watch: true,
		},
		History: HistoryConfig{
			Backend: "badger",
			Path:    "data/history",
		},
		LLM: LLMConfig{
			Provider:             "none",
			RequestsPerMinute:    60,
			Timeout:              2 * time.Minute,
			MaxRetries:           3,
			ProposalTemperature:  0.7,
			NarrationTemperature: 0.85,
			NarrationMaxTokens:   1500,
		},
		Generator: GeneratorConfig{
			RerollLimit:     5,
			MaxDupes:        3,
			WarmConcurrency: 2,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Tracing: TracingConfig{
			Exporter:    "none",
			ServiceName: "loadoutforge",
		},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ErrMissingAPIKey is returned when the openai provider has no key source.
var ErrMissingAPIKey = errors.New("llm provider openai needs LOADOUT_LLM_API_KEY, OPENAI_API_KEY or llm.secret_path")

// Load builds the configuration.
//
// # Inputs
//
//   - path: YAML file. Empty skips the file; a missing file is an error.
//
// # Outputs
//
//   - Config: Defaults overlaid with the file and the environment.
//   - error: Non-nil on read, parse or validation failure.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	var secrets secretsEnv
	if err := env.Parse(&secrets); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = secrets.OpenAIKey
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints and cross-field rules.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.LLM.Provider == "openai" && c.LLM.APIKey == "" && c.LLM.SecretPath == "" {
		return ErrMissingAPIKey
	}
	return nil
}
