// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/AleutianAI/LoadoutForge/services/loadout"
)

// TestMain fails the package if the GC runner or BadgerDB's own workers
// outlive Close.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func sampleLoadout(name string) loadout.Loadout {
	l := loadout.Loadout{
		Stratagems: []loadout.Item{
			{Name: "Quasar Cannon", Category: loadout.CategorySupportWeapons, Score: 9},
			{Name: "Jump Pack", IsBackpack: true, Score: 7},
		},
		Role:  "Anti-Tank",
		Enemy: "terminids",
	}
	l.LoadoutName = name
	l.HowToPlay = &loadout.HowToPlay{Solo: "stay mobile"}
	l.Gear.Set(loadout.SlotPrimary, loadout.Item{Name: "Breaker", Category: loadout.CategoryPrimary, Score: 8})
	l.Gear.Set(loadout.SlotArmorPassive, loadout.Item{Name: "Fortified", DamageType: "Fire"})
	return l
}

func TestStore_PutGet(t *testing.T) {
	ctx := context.Background()
	s, err := OpenInMemory()
	require.NoError(t, err)
	defer s.Close()

	e, err := s.Get(ctx, "Anti-Tank_terminids")
	require.NoError(t, err)
	assert.False(t, e.IsValid(), "missing key is invalid")

	want := sampleLoadout("Iron Rain")
	require.NoError(t, s.Put(ctx, "Anti-Tank_terminids", want))

	e, err = s.Get(ctx, "Anti-Tank_terminids")
	require.NoError(t, err)
	got, ok := e.Loadout()
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestStore_All(t *testing.T) {
	ctx := context.Background()
	s, err := OpenInMemory()
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put(ctx, "Anti-Tank_terminids", sampleLoadout("A")))
	require.NoError(t, s.Put(ctx, "Saboteur_illuminate", sampleLoadout("B")))
	require.NoError(t, s.Put(ctx, "Saboteur_illuminate", sampleLoadout("C")))

	all, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "C", all["Saboteur_illuminate"].Ptr().LoadoutName)
}

func TestStore_CorruptValueIsInvalid(t *testing.T) {
	ctx := context.Background()
	s, err := OpenInMemory()
	require.NoError(t, err)
	defer s.Close()

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+"Anti-Tank_terminids"), []byte{0xc1})
	})
	require.NoError(t, err)

	e, err := s.Get(ctx, "Anti-Tank_terminids")
	require.NoError(t, err)
	assert.False(t, e.IsValid())
}

func TestStore_CancelledContext(t *testing.T) {
	s, err := OpenInMemory()
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, s.Put(ctx, "k", sampleLoadout("x")), context.Canceled)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	cfg := DefaultConfig(dir)
	cfg.GCInterval = 10 * time.Millisecond
	s, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "Anti-Tank_terminids", sampleLoadout("Iron Rain")))
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, s.Close())

	s2, err := Open(cfg)
	require.NoError(t, err)
	defer s2.Close()

	e, err := s2.Get(ctx, "Anti-Tank_terminids")
	require.NoError(t, err)
	assert.Equal(t, "Iron Rain", e.Ptr().LoadoutName)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestOpen_RejectsBadRatio(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	cfg.GCDiscardRatio = 1.5
	_, err := Open(cfg)
	assert.Error(t, err)
}

func TestGCRunner_StopTwice(t *testing.T) {
	s, err := OpenInMemory()
	require.NoError(t, err)
	defer s.Close()

	r, err := newGCRunner(s.db, time.Millisecond, 0.5, s.logger)
	require.NoError(t, err)
	r.start()
	time.Sleep(5 * time.Millisecond)
	r.stop()
	r.stop()
}

func TestStore_CloseStopsGCRunner(t *testing.T) {
	before := goleak.IgnoreCurrent()
	cfg := DefaultConfig(t.TempDir())
	cfg.GCInterval = time.Millisecond
	s, err := Open(cfg)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, s.Close())

	goleak.VerifyNone(t, before)
}
