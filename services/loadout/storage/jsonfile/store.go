// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package jsonfile reads and writes the legacy single-file loadout cache: one
// JSON object mapping history keys to stored values.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/AleutianAI/LoadoutForge/services/loadout"
	"github.com/AleutianAI/LoadoutForge/services/loadout/history"
)

// Store is a history.Repository over one JSON file. A missing file reads as
// empty. Writes replace the file atomically.
type Store struct {
	path string
	mu   sync.Mutex
}

// New returns a store for path. The file is not touched until used.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

func (s *Store) readRaw() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history file %s: %w", s.path, err)
	}
	raw := map[string]json.RawMessage{}
	if len(data) == 0 {
		return raw, nil
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse history file %s: %w", s.path, err)
	}
	return raw, nil
}

// Get implements history.Repository.
func (s *Store) Get(ctx context.Context, key string) (history.Entry, error) {
	if err := ctx.Err(); err != nil {
		return history.Invalid, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.readRaw()
	if err != nil {
		return history.Invalid, err
	}
	v, ok := raw[key]
	if !ok {
		return history.Invalid, nil
	}
	return history.Decode(v), nil
}

// All implements history.Repository.
func (s *Store) All(ctx context.Context) (map[string]history.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.readRaw()
	if err != nil {
		return nil, err
	}
	out := make(map[string]history.Entry, len(raw))
	for k, v := range raw {
		out[k] = history.Decode(v)
	}
	return out, nil
}

// Put implements history.Repository. Other keys keep their raw values,
// including legacy shapes.
func (s *Store) Put(ctx context.Context, key string, l loadout.Loadout) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := history.Encode(l)
	if err != nil {
		return fmt.Errorf("encode history %q: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.readRaw()
	if err != nil {
		return err
	}
	raw[key] = payload

	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history file: %w", err)
	}
	return writeAtomic(s.path, data)
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("create history directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".history-*.json")
	if err != nil {
		return fmt.Errorf("create temp history file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp history file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp history file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace history file %s: %w", path, err)
	}
	return nil
}

var _ history.Repository = (*Store)(nil)
