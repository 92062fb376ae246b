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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/LoadoutForge/services/loadout"
)

const storedObject = `{
	"loadout_name": "Iron Rain",
	"role": "Anti-Tank",
	"enemy": "terminids",
	"loadout": {
		"primary": {"name": "Breaker", "Type": "Primary", "score": 8},
		"secondary": {"name": "Redeemer"},
		"grenade": {"name": "Thermite"},
		"armor_passive": {"name": "Fortified", "Damage Type": ""}
	},
	"stratagems": [{"name": "Quasar Cannon", "category": "Support Weapons"}]
}`

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		valid bool
	}{
		{"object", storedObject, true},
		{"pair true", `[` + storedObject + `, true]`, true},
		{"pair false", `[` + storedObject + `, false]`, false},
		{"pair non-bool flag", `[` + storedObject + `, "yes"]`, false},
		{"pair too long", `[` + storedObject + `, true, 1]`, false},
		{"missing stratagems", `{"loadout": {}}`, false},
		{"missing loadout", `{"stratagems": []}`, false},
		{"loadout wrong kind", `{"loadout": [], "stratagems": []}`, false},
		{"null", `null`, false},
		{"empty", ``, false},
		{"garbage", `{"loadout": `, false},
		{"string", `"Iron Rain"`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Decode([]byte(tt.raw))
			assert.Equal(t, tt.valid, e.IsValid())
		})
	}
}

func TestDecode_Fields(t *testing.T) {
	e := Decode([]byte(storedObject))

	l, ok := e.Loadout()
	require.True(t, ok)
	assert.Equal(t, "Iron Rain", l.LoadoutName)
	assert.Equal(t, "Breaker", l.Gear.Name(loadout.SlotPrimary))
	assert.Equal(t, loadout.CategoryPrimary, l.Gear.Primary.Category)
	require.Len(t, l.Stratagems, 1)
	assert.True(t, loadout.IsSupport(l.Stratagems[0]))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	e := Decode([]byte(storedObject))
	l, _ := e.Loadout()

	raw, err := Encode(l)
	require.NoError(t, err)

	back, ok := Decode(raw).Loadout()
	require.True(t, ok)
	assert.Equal(t, l, back)
}

func TestInvalidEntry(t *testing.T) {
	_, ok := Invalid.Loadout()
	assert.False(t, ok)
	assert.Nil(t, Invalid.Ptr())
}

func sample(name string) loadout.Loadout {
	l := loadout.Loadout{Stratagems: []loadout.Item{{Name: "Orbital Laser"}}}
	l.LoadoutName = name
	l.Gear.Set(loadout.SlotPrimary, loadout.Item{Name: "Breaker"})
	return l
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	e, err := m.Get(ctx, "Anti-Tank_terminids")
	require.NoError(t, err)
	assert.False(t, e.IsValid())

	require.NoError(t, m.Put(ctx, "Anti-Tank_terminids", sample("A")))
	m.PutEntry("Saboteur_illuminate", Invalid)

	e, err = m.Get(ctx, "Anti-Tank_terminids")
	require.NoError(t, err)
	l, ok := e.Loadout()
	require.True(t, ok)
	assert.Equal(t, "A", l.LoadoutName)

	all, err := m.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Len(t, Loadouts(all), 1)
}

func TestMemory_EntriesAreCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	l := sample("A")
	require.NoError(t, m.Put(ctx, "k", l))

	l.Stratagems[0].Name = "changed"

	e, _ := m.Get(ctx, "k")
	got, _ := e.Loadout()
	assert.Equal(t, "Orbital Laser", got.Stratagems[0].Name)
}

func TestLayered(t *testing.T) {
	ctx := context.Background()
	primary, backup := NewMemory(), NewMemory()
	require.NoError(t, backup.Put(ctx, "Anti-Tank_terminids", sample("backup")))
	require.NoError(t, backup.Put(ctx, "Saboteur_automatons", sample("backup-2")))
	require.NoError(t, primary.Put(ctx, "Saboteur_automatons", sample("primary")))

	layered := &Layered{Primary: primary, Backup: backup}

	e, err := layered.Get(ctx, "Anti-Tank_terminids")
	require.NoError(t, err)
	assert.Equal(t, "backup", e.Ptr().LoadoutName)

	e, err = layered.Get(ctx, "Saboteur_automatons")
	require.NoError(t, err)
	assert.Equal(t, "primary", e.Ptr().LoadoutName)

	require.NoError(t, layered.Put(ctx, "Anti-Tank_terminids", sample("fresh")))
	e, _ = backup.Get(ctx, "Anti-Tank_terminids")
	assert.Equal(t, "backup", e.Ptr().LoadoutName, "backup is never written")

	all, err := layered.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

type failingRepo struct{ Memory }

func (f *failingRepo) Get(context.Context, string) (Entry, error) {
	return Invalid, errors.New("disk on fire")
}

func (f *failingRepo) All(context.Context) (map[string]Entry, error) {
	return nil, errors.New("disk on fire")
}

func TestLayered_PropagatesErrors(t *testing.T) {
	layered := &Layered{Primary: &failingRepo{}, Backup: NewMemory()}

	_, err := layered.Get(context.Background(), "k")
	assert.ErrorContains(t, err, "disk on fire")
}

func TestUsedNames(t *testing.T) {
	ctx := context.Background()
	primary, backup := NewMemory(), NewMemory()
	require.NoError(t, primary.Put(ctx, "Anti-Tank_terminids", sample("Iron Rain")))
	require.NoError(t, primary.Put(ctx, "Saboteur_terminids", sample("Ghost Step")))
	require.NoError(t, backup.Put(ctx, "Anti-Tank_automatons", sample("Bolt Thrower")))
	require.NoError(t, backup.Put(ctx, "Anti-Tank_illuminate", sample("")))

	all, err := UsedNames(ctx, "", primary, backup)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	antiTank, err := UsedNames(ctx, "anti-tank", primary, backup, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"Iron Rain": {}, "Bolt Thrower": {}}, antiTank)

	_, err = UsedNames(ctx, "", &failingRepo{})
	assert.Error(t, err)
}
