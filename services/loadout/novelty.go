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

// MinNoveltyDiff is the number of positional differences a new loadout
// needs against the previous one for the same key.
const MinNoveltyDiff = 3

// Diff counts positional name differences over the four gear slots and the
// zipped stratagem lists. Stratagems beyond the shorter list are ignored.
func Diff(old, next Loadout) int {
	n := 0
	for _, s := range Slots {
		if old.Gear.Name(s) != next.Gear.Name(s) {
			n++
		}
	}
	for i := range min(len(old.Stratagems), len(next.Stratagems)) {
		if old.Stratagems[i].Name != next.Stratagems[i].Name {
			n++
		}
	}
	return n
}

// DiffersByThreeOrMore reports whether next is novel enough against old.
// A nil old always passes.
func DiffersByThreeOrMore(old *Loadout, next Loadout) bool {
	if old == nil {
		return true
	}
	return Diff(*old, next) >= MinNoveltyDiff
}
