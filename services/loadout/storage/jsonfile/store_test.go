// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/LoadoutForge/services/loadout"
)

const legacyCache = `{
  "Anti-Tank_terminids": [{"loadout_name": "Iron Rain", "loadout": {"primary": {"name": "Breaker"}}, "stratagems": [{"name": "Quasar Cannon"}]}, true],
  "Saboteur_automatons": [{"loadout": {}, "stratagems": []}, false],
  "Crowd Control_illuminate": {"loadout_name": "Static Field", "loadout": {}, "stratagems": []},
  "Saboteur_illuminate": "placeholder"
}`

func TestStore_MissingFileIsEmpty(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "nope.json"))

	all, err := s.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)

	e, err := s.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, e.IsValid())
}

func TestStore_ReadsLegacyShapes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte(legacyCache), 0600))
	s := New(path)

	all, err := s.All(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.True(t, all["Anti-Tank_terminids"].IsValid())
	assert.False(t, all["Saboteur_automatons"].IsValid())
	assert.True(t, all["Crowd Control_illuminate"].IsValid())
	assert.False(t, all["Saboteur_illuminate"].IsValid())
	assert.Equal(t, "Iron Rain", all["Anti-Tank_terminids"].Ptr().LoadoutName)
}

func TestStore_PutPreservesOtherKeys(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "cache.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0750))
	require.NoError(t, os.WriteFile(path, []byte(legacyCache), 0600))
	s := New(path)

	l := loadout.Loadout{Stratagems: []loadout.Item{{Name: "Orbital Laser"}}}
	l.LoadoutName = "Fresh"
	require.NoError(t, s.Put(ctx, "Saboteur_automatons", l))

	all, err := s.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Equal(t, "Fresh", all["Saboteur_automatons"].Ptr().LoadoutName)
	assert.Equal(t, "Iron Rain", all["Anti-Tank_terminids"].Ptr().LoadoutName)
}

func TestStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"broken`), 0600))
	s := New(path)

	_, err := s.All(context.Background())
	assert.Error(t, err)
	assert.Error(t, s.Put(context.Background(), "k", loadout.Loadout{}))
}
