// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/AleutianAI/LoadoutForge/cmd/loadout/config"
	"github.com/AleutianAI/LoadoutForge/pkg/logging"
	"github.com/AleutianAI/LoadoutForge/services/generator"
	"github.com/AleutianAI/LoadoutForge/services/generator/observability"
	"github.com/AleutianAI/LoadoutForge/services/llm"
	"github.com/AleutianAI/LoadoutForge/services/loadout"
	"github.com/AleutianAI/LoadoutForge/services/loadout/dataset"
	"github.com/AleutianAI/LoadoutForge/services/loadout/history"
	"github.com/AleutianAI/LoadoutForge/services/loadout/proposer"
	"github.com/AleutianAI/LoadoutForge/services/loadout/storage/badger"
	"github.com/AleutianAI/LoadoutForge/services/loadout/storage/jsonfile"
	"github.com/AleutianAI/LoadoutForge/services/loadout/storage/sqlite"
	"github.com/AleutianAI/LoadoutForge/services/server"
)

// =============================================================================
// Application wiring
// =============================================================================

// app holds everything a subcommand needs. Close releases it in reverse
// order of acquisition.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	source   *dataset.Source
	store    history.Repository
	backup   history.Repository
	registry *prometheus.Registry
	gen      *generator.Generator

	closers []func() error
}

// appOptions lets tests swap the console writer.
type appOptions struct {
	service string
	console io.Writer
}

func newApp(ctx context.Context, cfg config.Config, opts appOptions) (*app, error) {
	a := &app{cfg: cfg}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Logging.Dir,
		Service: opts.service,
		JSON:    cfg.Logging.JSON,
		Output:  opts.console,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, logger.Close)
	a.logger = logger.Slog()
	slog.SetDefault(a.logger)

	shutdownTracer, err := server.InitTracer(ctx, server.TracingConfig{
		Exporter:    cfg.Tracing.Exporter,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, func() error {
		shutdownTracer(context.Background())
		return nil
	})

	if err := a.init(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) init() error {
	source, err := dataset.NewSource(a.cfg.Data.Path, a.logger)
	if err != nil {
		return fmt.Errorf("loading dataset: %w", err)
	}
	a.source = source

	store, closeStore, err := openStore(a.cfg.History, a.logger)
	if err != nil {
		return err
	}
	a.store = store
	if closeStore != nil {
		a.closers = append(a.closers, closeStore)
	}
	if a.cfg.History.BackupPath != "" {
		a.backup = jsonfile.New(a.cfg.History.BackupPath)
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	client, err := newLLMClient(a.cfg.LLM, a.logger)
	if err != nil {
		return err
	}

	sampler := loadout.NewSampler(a.cfg.Generator.Seed)
	deps := generator.Deps{
		Dataset: a.source,
		Store:   a.store,
		Backup:  a.backup,
		Sampler: sampler,
		Metrics: observability.NewMetrics(a.registry),
		Logger:  a.logger,
	}
	if client != nil {
		deps.Proposer, err = proposer.NewLLMProposer(client, proposer.LLMProposerConfig{
			MaxRetries:  a.cfg.LLM.MaxRetries,
			Temperature: a.cfg.LLM.ProposalTemperature,
			Logger:      a.logger,
		})
		if err != nil {
			return err
		}
		deps.Narrator, err = proposer.NewLLMNarrator(client, proposer.LLMNarratorConfig{
			Temperature: a.cfg.LLM.NarrationTemperature,
			MaxTokens:   a.cfg.LLM.NarrationMaxTokens,
			Logger:      a.logger,
		})
		if err != nil {
			return err
		}
	}

	a.gen, err = generator.New(generator.Config{
		RerollLimit:     a.cfg.Generator.RerollLimit,
		MaxDupes:        a.cfg.Generator.MaxDupes,
		WarmConcurrency: a.cfg.Generator.WarmConcurrency,
	}, deps)
	return err
}

// Close waits for background work, then releases resources in reverse order.
func (a *app) Close() error {
	if a.gen != nil {
		a.gen.Wait()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// openStore opens the configured history backend. The returned close func
// may be nil.
func openStore(cfg config.HistoryConfig, logger *slog.Logger) (history.Repository, func() error, error) {
	switch cfg.Backend {
	case "badger":
		bcfg := badger.DefaultConfig(cfg.Path)
		bcfg.Logger = logger
		s, err := badger.Open(bcfg)
		if err != nil {
			return nil, nil, fmt.Errorf("opening badger history: %w", err)
		}
		return s, s.Close, nil
	case "sqlite":
		s, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite history: %w", err)
		}
		return s, s.Close, nil
	case "jsonfile":
		return jsonfile.New(filepath.Clean(cfg.Path)), nil, nil
	case "memory":
		s, err := badger.OpenInMemory()
		if err != nil {
			return nil, nil, fmt.Errorf("opening in-memory history: %w", err)
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown history backend %q", cfg.Backend)
	}
}

// newLLMClient returns nil for the none provider.
func newLLMClient(cfg config.LLMConfig, logger *slog.Logger) (llm.LLMClient, error) {
	switch cfg.Provider {
	case "openai":
		return llm.NewOpenAIClient(llm.OpenAIConfig{
			APIKey:            cfg.APIKey,
			SecretPath:        cfg.SecretPath,
			Model:             cfg.Model,
			BaseURL:           cfg.BaseURL,
			RequestsPerMinute: cfg.RequestsPerMinute,
			Timeout:           cfg.Timeout,
			Logger:            logger,
		})
	case "ollama":
		return llm.NewOllamaClient(llm.OllamaConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
			Logger:  logger,
		})
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
