// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dataset loads the item dataset and keeps it current.
//
// The dataset file is JSON shaped as {"loadout": [gear...], "stratagems":
// [stratagem...]}. Source holds the active copy; Watcher reloads it when the
// file changes on disk.
package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/LoadoutForge/services/loadout"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// ErrEmpty is returned for a dataset with no gear or no stratagems.
var ErrEmpty = errors.New("dataset has no gear or no stratagems")

// Parse decodes and validates dataset JSON.
func Parse(data []byte) (loadout.Dataset, error) {
	var ds loadout.Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return loadout.Dataset{}, fmt.Errorf("decode dataset: %w", err)
	}
	if len(ds.Gear) == 0 || len(ds.Stratagems) == 0 {
		return loadout.Dataset{}, ErrEmpty
	}
	if err := validate.Struct(ds); err != nil {
		return loadout.Dataset{}, fmt.Errorf("validate dataset: %w", err)
	}
	return ds, nil
}

// Load reads and parses the dataset at path.
func Load(path string) (loadout.Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return loadout.Dataset{}, fmt.Errorf("read dataset %s: %w", path, err)
	}
	ds, err := Parse(data)
	if err != nil {
		return loadout.Dataset{}, fmt.Errorf("%s: %w", path, err)
	}
	return ds, nil
}

// Source serves the current dataset. Reload swaps it atomically; readers
// never see a partial update.
type Source struct {
	path    string
	current atomic.Pointer[loadout.Dataset]
	logger  *slog.Logger
}

// NewSource loads path and returns a Source serving it.
func NewSource(path string, logger *slog.Logger) (*Source, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Source{path: path, logger: logger}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Static returns a Source over an in-memory dataset. Reload is a no-op.
func Static(ds loadout.Dataset) *Source {
	s := &Source{logger: slog.Default()}
	s.current.Store(&ds)
	return s
}

// Path returns the file backing the source, or "" for static sources.
func (s *Source) Path() string { return s.path }

// Current returns the active dataset.
func (s *Source) Current() loadout.Dataset {
	return *s.current.Load()
}

// Reload re-reads the file. On failure the previous dataset stays active.
func (s *Source) Reload() error {
	if s.path == "" {
		return nil
	}
	ds, err := Load(s.path)
	if err != nil {
		return err
	}
	s.current.Store(&ds)
	s.logger.Info("dataset loaded",
		slog.String("path", s.path),
		slog.Int("gear", len(ds.Gear)),
		slog.Int("stratagems", len(ds.Stratagems)))
	return nil
}
