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

func TestDiffersByThreeOrMore_NoOld(t *testing.T) {
	assert.True(t, DiffersByThreeOrMore(nil, conformant()))
	assert.True(t, DiffersByThreeOrMore(nil, Loadout{}))
}

func TestDiffersByThreeOrMore_Identical(t *testing.T) {
	l := conformant()
	assert.False(t, DiffersByThreeOrMore(&l, l))
	assert.Zero(t, Diff(l, l))
}

func TestDiffersByThreeOrMore_Counts(t *testing.T) {
	old := conformant()

	twoOff := conformant()
	twoOff.Gear.Set(SlotPrimary, gear("P1", CategoryPrimary, 7))
	twoOff.Stratagems[3] = strat("O7", 7)
	assert.Equal(t, 2, Diff(old, twoOff))
	assert.False(t, DiffersByThreeOrMore(&old, twoOff))

	threeOff := twoOff.Clone()
	threeOff.Gear.Set(SlotGrenade, gear("G2", CategoryThrowable, 5))
	assert.True(t, DiffersByThreeOrMore(&old, threeOff))
}

func TestDiff_OrderMatters(t *testing.T) {
	old := conformant()
	swapped := conformant()
	swapped.Stratagems[2], swapped.Stratagems[3] = swapped.Stratagems[3], swapped.Stratagems[2]

	assert.Equal(t, 2, Diff(old, swapped))
}

func TestDiff_ShortListZipped(t *testing.T) {
	old := conformant()
	short := conformant()
	short.Stratagems = short.Stratagems[:2]

	assert.Zero(t, Diff(old, short))
}

func TestDiff_MissingGearCounts(t *testing.T) {
	old := conformant()
	missing := conformant()
	missing.Gear = Gear{}

	assert.Equal(t, len(Slots), Diff(old, missing))
}
