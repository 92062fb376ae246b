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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/LoadoutForge/pkg/ux"
	"github.com/AleutianAI/LoadoutForge/pkg/validation"
	"github.com/AleutianAI/LoadoutForge/services/generator"
	"github.com/AleutianAI/LoadoutForge/services/loadout/dataset"
	"github.com/AleutianAI/LoadoutForge/services/loadout/history"
	"github.com/AleutianAI/LoadoutForge/services/loadout/storage/jsonfile"
	"github.com/AleutianAI/LoadoutForge/services/server"
)

// withApp builds the application for cmd, runs fn and closes everything.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, opts.cfg, appOptions{
		service: "loadout-" + cmd.Name(),
		console: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	runErr := fn(ctx, a)
	return errors.Join(runErr, a.Close())
}

// =============================================================================
// serve
// =============================================================================

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve loadouts over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				opts.cfg.Server.Addr = addr
			}
			return withApp(cmd, opts, runServe)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}

func runServe(ctx context.Context, a *app) error {
	if a.cfg.Data.Watch {
		w, err := dataset.NewWatcher(a.source, func() {
			a.logger.Info("dataset reloaded", slog.String("path", a.source.Path()))
		})
		if err != nil {
			a.logger.Warn("dataset watch disabled", slog.String("error", err.Error()))
		} else {
			w.Start(ctx)
			defer w.Close()
		}
	}

	srv, err := server.New(server.Config{
		Addr:            a.cfg.Server.Addr,
		ServiceName:     a.cfg.Tracing.ServiceName,
		ShutdownTimeout: a.cfg.Server.ShutdownTimeout,
	}, a.gen, a.registry, a.logger)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}

// =============================================================================
// generate
// =============================================================================

type generateOptions struct {
	role  string
	enemy string
	json  bool
}

func newGenerateCmd(opts *rootOptions) *cobra.Command {
	g := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate one loadout and store it",
		Long: `Generate one loadout for a role and enemy. An empty role or enemy is
chosen at random, weighted by the built-in role and enemy tables.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				return runGenerate(ctx, a, g, cmd.OutOrStdout(), cmd.ErrOrStderr())
			})
		},
	}
	cmd.Flags().StringVar(&g.role, "role", "", "role to generate for (default: random)")
	cmd.Flags().StringVar(&g.enemy, "enemy", "", "enemy faction (default: random)")
	cmd.Flags().BoolVar(&g.json, "json", false, "print the full result as JSON")
	return cmd
}

func runGenerate(ctx context.Context, a *app, g *generateOptions, stdout, stderr io.Writer) error {
	role, err := validation.SanitizeOptional(g.role)
	if err != nil {
		return fmt.Errorf("--role: %w", err)
	}
	enemy, err := validation.SanitizeOptional(g.enemy)
	if err != nil {
		return fmt.Errorf("--enemy: %w", err)
	}

	mode := ux.CurrentMode()
	var res generator.Result
	err = ux.WithSpinner(stderr, mode, "Generating loadout", func() error {
		var err error
		res, err = a.gen.Generate(ctx, role, enemy)
		return err
	})
	if err != nil {
		return err
	}

	if g.json {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	p := ux.NewPrinter(stdout, mode)
	p.Loadout(res.Loadout)
	p.Violations(res.Violations)
	if res.Fallback {
		p.Warning("proposer unavailable, used the local sampler")
	}
	p.Info(fmt.Sprintf("stored as %s after %d attempt(s)", res.Key, res.Attempts))
	return nil
}

// =============================================================================
// usage
// =============================================================================

func newUsageCmd(opts *rootOptions) *cobra.Command {
	var top int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Report how often each item appears in the history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if top < 0 {
				return fmt.Errorf("--top must be non-negative")
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				rows, err := a.gen.UsageReport(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if asJSON {
					if top > 0 && top < len(rows) {
						rows = rows[:top]
					}
					return json.NewEncoder(out).Encode(rows)
				}
				p := ux.NewPrinter(out, ux.CurrentMode())
				p.Title("Item usage")
				p.Usage(rows, top)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&top, "top", 0, "show only the N most used items (0 = all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print rows as JSON")
	return cmd
}

// =============================================================================
// warm
// =============================================================================

func newWarmCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "warm",
		Short: "Generate a loadout for every role and enemy without one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				mode := ux.CurrentMode()
				var results []generator.Result
				err := ux.WithSpinner(cmd.ErrOrStderr(), mode, "Warming history", func() error {
					var err error
					results, err = a.gen.WarmAll(ctx)
					return err
				})
				p := ux.NewPrinter(cmd.OutOrStdout(), mode)
				p.Info(fmt.Sprintf("generated %d loadout(s)", len(results)))
				return err
			})
		},
	}
}

// =============================================================================
// import
// =============================================================================

// importStats counts what runImport did.
type importStats struct {
	Imported int
	Skipped  int
}

func newImportCmd(opts *rootOptions) *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Copy a legacy JSON cache file into the configured history store",
		Long: `Copy every valid loadout from a legacy JSON cache file into the
configured history store. Entries that are not loadout objects (such as
unparsed model text) are skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				stats, err := runImport(ctx, jsonfile.New(from), a.store)
				if err != nil {
					return err
				}
				p := ux.NewPrinter(cmd.OutOrStdout(), ux.CurrentMode())
				p.Success(fmt.Sprintf("imported %d loadout(s), skipped %d", stats.Imported, stats.Skipped))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "legacy JSON cache file")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}

// runImport copies valid entries from src into dst in key order.
func runImport(ctx context.Context, src, dst history.Repository) (importStats, error) {
	var stats importStats
	entries, err := src.All(ctx)
	if err != nil {
		return stats, fmt.Errorf("reading legacy cache: %w", err)
	}

	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		l, ok := entries[key].Loadout()
		if !ok {
			stats.Skipped++
			continue
		}
		if err := dst.Put(ctx, key, l); err != nil {
			return stats, fmt.Errorf("storing %s: %w", key, err)
		}
		stats.Imported++
	}
	return stats, nil
}
