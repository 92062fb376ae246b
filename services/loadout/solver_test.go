// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package loadout

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertStructurallyValid(t *testing.T, strats []Item) {
	t.Helper()
	require.Len(t, strats, StratagemCount)
	assert.Len(t, dedupeByName(strats), StratagemCount, "names must be distinct: %v", names(strats))
	assert.Equal(t, 1, countWhere(strats, IsSupport), "exactly one support")
	assert.LessOrEqual(t, countWhere(strats, IsBackpack), 1, "at most one backpack")
}

// TestRepair_DuplicateSupportAndFiller covers two copies of S1 and two
// copies of a filler that the pool does not offer.
func TestRepair_DuplicateSupportAndFiller(t *testing.T) {
	filler := strat("Filler", 1)
	in := Loadout{Stratagems: []Item{support("S1", 9), support("S1", 9), filler, filler}}

	out := Repair(in, testPool(), "Anti-Tank")

	assertStructurallyValid(t, out.Stratagems)
	assert.Equal(t, 1, countWhere(out.Stratagems, func(i Item) bool { return i.Name == "S1" }))
	assert.Equal(t, "S1", out.Stratagems[0].Name, "support sorts first")
	assert.Contains(t, names(out.Stratagems), "Filler")
}

func TestRepair_SecondSupportDropped(t *testing.T) {
	in := Loadout{Stratagems: []Item{strat("O5a", 5), support("S1", 9), support("S2", 10), strat("O6", 6)}}

	out := Repair(in, testPool(), "")

	assertStructurallyValid(t, out.Stratagems)
	assert.Equal(t, "S1", out.Stratagems[0].Name, "first existing support wins")
	assert.NotContains(t, names(out.Stratagems), "S2")
}

func TestRepair_AddsSupportFromPool(t *testing.T) {
	in := Loadout{Stratagems: []Item{strat("O5a", 5), strat("O6", 6), strat("O7", 7), strat("O8", 8)}}

	out := Repair(in, testPool(), "")

	assertStructurallyValid(t, out.Stratagems)
	assert.Equal(t, []string{"S1", "O8", "O7", "O6"}, names(out.Stratagems))
}

func TestRepair_KeepsBestBackpackOnce(t *testing.T) {
	pool := testPool()
	pool.Stratagems = append(pool.Stratagems, backpack("B2", 6))
	in := Loadout{Stratagems: []Item{backpack("B2", 6), support("S1", 9), backpack("B1", 8), strat("O9", 9)}}

	out := Repair(in, pool, "")

	assertStructurallyValid(t, out.Stratagems)
	assert.Equal(t, 1, countWhere(out.Stratagems, func(i Item) bool { return i.Name == "B1" }))
	assert.NotContains(t, names(out.Stratagems), "B2")
	assert.Equal(t, []string{"S1", "B1", "O9", "O8"}, names(out.Stratagems))
}

func TestRepair_TopUpPrefersRole(t *testing.T) {
	pool := testPool()
	pool.Stratagems[2].SquadRole = "Anti-Tank, Crowd Control"

	out := Repair(Loadout{Stratagems: []Item{support("S1", 9)}}, pool, "anti-tank")

	assertStructurallyValid(t, out.Stratagems)
	assert.Contains(t, names(out.Stratagems), "O5a")
}

func TestRepair_EmptyProposal(t *testing.T) {
	out := Repair(Loadout{}, testPool(), "")

	assertStructurallyValid(t, out.Stratagems)
	for _, s := range Slots {
		require.NotNil(t, out.Gear.Get(s), "slot %s", s)
	}
	assert.Equal(t, "P2", out.Gear.Name(SlotPrimary))
	assert.Equal(t, "SE1", out.Gear.Name(SlotSecondary))
	assert.Equal(t, "G1", out.Gear.Name(SlotGrenade))
	assert.Equal(t, "A2", out.Gear.Name(SlotArmorPassive))
}

func TestRepair_KeepsExistingGear(t *testing.T) {
	in := Loadout{}
	in.Gear.Set(SlotPrimary, gear("P1", CategoryPrimary, 7))

	out := Repair(in, testPool(), "")

	assert.Equal(t, "P1", out.Gear.Name(SlotPrimary))
}

func TestRepair_Idempotent(t *testing.T) {
	inputs := map[string]Loadout{
		"conformant": conformant(),
		"empty":      {},
		"messy": {Stratagems: []Item{
			strat("O5a", 5), support("S1", 9), strat("O5a", 5), backpack("B1", 8), strat("O9", 9), strat("O7", 7),
		}},
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			once := Repair(in, testPool(), "Anti-Tank")
			twice := Repair(once, testPool(), "Anti-Tank")
			if diff := cmp.Diff(once.Stratagems, twice.Stratagems); diff != "" {
				t.Errorf("second repair changed stratagems (-once +twice):\n%s", diff)
			}
		})
	}
}

func TestRepair_DoesNotModifyInput(t *testing.T) {
	in := Loadout{Stratagems: []Item{support("S1", 9), support("S1", 9)}}
	before := in.Clone()

	_ = Repair(in, testPool(), "")

	assert.Equal(t, before, in)
}

func TestRepair_StarvedPoolLeavesShortList(t *testing.T) {
	pool := Pool{Stratagems: []Item{support("S1", 9), strat("O1", 4)}}

	out := Repair(Loadout{}, pool, "")

	assert.Equal(t, []string{"S1", "O1"}, names(out.Stratagems))
	assert.True(t, NeedsFix(out))
}

func TestRepair_NoSupportAnywhere(t *testing.T) {
	pool := Pool{Stratagems: []Item{strat("O1", 4), strat("O2", 5), strat("O3", 6), strat("O4", 7)}}

	out := Repair(Loadout{}, pool, "")

	assert.Len(t, out.Stratagems, StratagemCount)
	assert.Zero(t, countWhere(out.Stratagems, IsSupport))
}

func TestRepair_DisposableSupportIgnoredByCaps(t *testing.T) {
	disposable := support("EAT", 7)
	disposable.IsDisposable = true
	in := Loadout{Stratagems: []Item{disposable, support("S1", 9), strat("O9", 9), strat("O8", 8)}}

	out := Repair(in, testPool(), "")

	assertStructurallyValid(t, out.Stratagems)
	assert.Contains(t, names(out.Stratagems), "EAT")
}

func TestRepair_ReconcilesHazardArmor(t *testing.T) {
	pool := testPool()
	fireArmor := gear("A-Fire", CategoryArmorPassives, 3)
	fireArmor.DamageType = DamageFire
	pool.ArmorPassives = append(pool.ArmorPassives, fireArmor)

	l := conformant()
	l.Stratagems[2].DamageType = DamageFire
	l.Stratagems[3].DamageType = DamageFire
	require.False(t, HazardSatisfied(l))

	out := Repair(l, pool, "")

	assert.Equal(t, "A-Fire", out.Gear.Name(SlotArmorPassive))
	assert.True(t, HazardSatisfied(out))
}
