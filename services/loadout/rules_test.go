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

	"github.com/stretchr/testify/assert"
)

func TestNeedsFix_Conformant(t *testing.T) {
	assert.False(t, NeedsFix(conformant()))
	assert.Empty(t, Violations(conformant()))
}

func TestNeedsFix_FireHazardSatisfied(t *testing.T) {
	l := conformant()
	l.Gear.ArmorPassive.DamageType = DamageFire
	l.Stratagems[2].DamageType = DamageFire
	l.Stratagems[3].DamageType = DamageFire

	assert.True(t, HazardSatisfied(l))
	assert.False(t, NeedsFix(l))
}

func TestNeedsFix_ToxicGasArmorAlone(t *testing.T) {
	l := conformant()
	l.Gear.ArmorPassive.DamageType = DamageToxicGas

	assert.False(t, HazardSatisfied(l))
	assert.True(t, NeedsFix(l))
	assert.Equal(t, []Violation{ViolationHazard}, Violations(l))
}

func TestNeedsFix_Table(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(l *Loadout)
		want   Violation
	}{
		{
			name:   "duplicate name",
			mutate: func(l *Loadout) { l.Stratagems[3] = l.Stratagems[2] },
			want:   ViolationDuplicate,
		},
		{
			name:   "no support",
			mutate: func(l *Loadout) { l.Stratagems[0] = strat("O5a", 5) },
			want:   ViolationSupport,
		},
		{
			name:   "two supports",
			mutate: func(l *Loadout) { l.Stratagems[3] = support("S2", 6) },
			want:   ViolationSupport,
		},
		{
			name:   "two backpacks",
			mutate: func(l *Loadout) { l.Stratagems[3] = backpack("B2", 6) },
			want:   ViolationBackpack,
		},
		{
			name:   "three stratagems",
			mutate: func(l *Loadout) { l.Stratagems = l.Stratagems[:3] },
			want:   ViolationCount,
		},
		{
			name: "hazard without matching armor",
			mutate: func(l *Loadout) {
				l.Gear.Primary.DamageType = DamageARC
				l.Stratagems[2].DamageType = DamageARC
			},
			want: ViolationHazard,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := conformant()
			tt.mutate(&l)
			assert.True(t, NeedsFix(l))
			assert.Contains(t, Violations(l), tt.want)
		})
	}
}

func TestNeedsFix_DisposableNotCounted(t *testing.T) {
	l := conformant()
	extra := support("EAT", 5)
	extra.IsDisposable = true
	l.Stratagems[3] = extra

	assert.False(t, NeedsFix(l))
}

func TestViolations_MissingGear(t *testing.T) {
	l := conformant()
	l.Gear.Grenade = nil

	assert.False(t, NeedsFix(l))
	assert.Equal(t, []Violation{ViolationMissingGear}, Violations(l))
}

func TestHazardSatisfied_SingleHazardItemNeedsPlainArmor(t *testing.T) {
	l := conformant()
	l.Stratagems[2].DamageType = DamageFire

	assert.True(t, HazardSatisfied(l), "one fire item is not a hazard")

	l.Gear.ArmorPassive.DamageType = DamageARC
	assert.False(t, HazardSatisfied(l))
}
