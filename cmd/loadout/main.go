// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command loadout generates Helldivers 2 loadouts and serves them over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/LoadoutForge/cmd/loadout/config"
	"github.com/AleutianAI/LoadoutForge/pkg/ux"
)

type rootOptions struct {
	configPath string
	output     string
	cfg        config.Config
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "loadout",
		Short: "Generate rule-conformant Helldivers 2 loadouts",
		Long: `loadout builds randomized Helldivers 2 loadouts per role and enemy,
repairs them until they follow the loadout rules, and keeps a history so
items are not overused.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.output != "" {
				ux.SetMode(ux.ParseMode(opts.output))
			} else {
				ux.InitMode(os.Stdout)
			}
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&opts.output, "output", "", "output mode: rich, plain or machine (default: detect)")

	root.AddCommand(
		newServeCmd(opts),
		newGenerateCmd(opts),
		newUsageCmd(opts),
		newWarmCmd(opts),
		newImportCmd(opts),
	)
	root.SetErrPrefix(fmt.Sprintf("%s error:", root.Name()))
	return root
}
