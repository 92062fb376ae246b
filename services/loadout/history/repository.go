// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package history

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/AleutianAI/LoadoutForge/services/loadout"
)

// =============================================================================
// Repository
// =============================================================================

// Repository maps "{role}_{enemy}" keys to the latest accepted loadout.
//
// # Description
//
// Implementations decode stored values with Decode (or an equivalent for
// their own encoding) so callers only ever see Entry values. A missing key
// is Invalid with a nil error; errors are reserved for storage I/O.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns the entry for key.
	Get(ctx context.Context, key string) (Entry, error)

	// Put stores l under key, replacing any previous value.
	Put(ctx context.Context, key string, l loadout.Loadout) error

	// All returns every stored entry, keyed by history key.
	All(ctx context.Context) (map[string]Entry, error)
}

// Loadouts returns the valid loadouts in entries ordered by key.
func Loadouts(entries map[string]Entry) []loadout.Loadout {
	keys := slices.Sorted(maps.Keys(entries))
	out := make([]loadout.Loadout, 0, len(keys))
	for _, k := range keys {
		if l, ok := entries[k].Loadout(); ok {
			out = append(out, l)
		}
	}
	return out
}

// =============================================================================
// In-Memory Repository
// =============================================================================

// Memory is an in-process Repository.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]Entry)}
}

// Get implements Repository.
func (m *Memory) Get(_ context.Context, key string) (Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entries[key], nil
}

// Put implements Repository.
func (m *Memory) Put(_ context.Context, key string, l loadout.Loadout) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = Valid(l.Clone())
	return nil
}

// PutEntry stores an already-decoded entry, including Invalid ones.
func (m *Memory) PutEntry(key string, e Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = e
}

// All implements Repository.
func (m *Memory) All(_ context.Context) (map[string]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.entries), nil
}

// =============================================================================
// Layered Repository
// =============================================================================

// Layered reads from a primary store and falls back to a read-only backup.
// Writes go to the primary only.
type Layered struct {
	Primary Repository
	Backup  Repository
}

// Get returns the primary entry when valid, else the backup entry.
func (l *Layered) Get(ctx context.Context, key string) (Entry, error) {
	e, err := l.Primary.Get(ctx, key)
	if err != nil {
		return Invalid, fmt.Errorf("primary history get %q: %w", key, err)
	}
	if e.IsValid() || l.Backup == nil {
		return e, nil
	}
	b, err := l.Backup.Get(ctx, key)
	if err != nil {
		return Invalid, fmt.Errorf("backup history get %q: %w", key, err)
	}
	return b, nil
}

// Put writes to the primary store.
func (l *Layered) Put(ctx context.Context, key string, lo loadout.Loadout) error {
	return l.Primary.Put(ctx, key, lo)
}

// All returns the primary entries. Usage counting covers the live history
// only; the backup is a fallback for reads.
func (l *Layered) All(ctx context.Context) (map[string]Entry, error) {
	return l.Primary.All(ctx)
}

// =============================================================================
// Used Names
// =============================================================================

// UsedNames collects every loadout_name stored across repos. With a
// non-empty role, only keys whose role prefix matches (case insensitive)
// contribute.
func UsedNames(ctx context.Context, role string, repos ...Repository) (map[string]struct{}, error) {
	used := make(map[string]struct{})
	for _, repo := range repos {
		if repo == nil {
			continue
		}
		entries, err := repo.All(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing history: %w", err)
		}
		for key, e := range entries {
			l, ok := e.Loadout()
			if !ok || l.LoadoutName == "" {
				continue
			}
			keyRole, _ := loadout.SplitKey(key)
			if role != "" && !strings.EqualFold(keyRole, role) {
				continue
			}
			used[l.LoadoutName] = struct{}{}
		}
	}
	return used, nil
}

var (
	_ Repository = (*Memory)(nil)
	_ Repository = (*Layered)(nil)
)
