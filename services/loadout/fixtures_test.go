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

// =============================================================================
// Test Fixtures
// =============================================================================

func support(name string, score float64) Item {
	return Item{Name: name, Category: CategorySupportWeapons, Score: score}
}

func backpack(name string, score float64) Item {
	return Item{Name: name, Category: "Backpacks", IsBackpack: true, Score: score}
}

func strat(name string, score float64) Item {
	return Item{Name: name, Category: "Orbital", Score: score}
}

func gear(name, category string, score float64) Item {
	return Item{Name: name, Category: category, Score: score}
}

// testPool has one Support, one Backpack and six other stratagems scored
// 5, 5, 6, 7, 8, 9.
func testPool() Pool {
	return Pool{
		Primaries:     []Item{gear("P1", CategoryPrimary, 7), gear("P2", CategoryPrimary, 9)},
		Secondaries:   []Item{gear("SE1", CategorySecondary, 6), gear("SE2", CategorySecondary, 4)},
		Grenades:      []Item{gear("G1", CategoryThrowable, 8), gear("G2", CategoryThrowable, 5)},
		ArmorPassives: []Item{gear("A1", CategoryArmorPassives, 6), gear("A2", CategoryArmorPassives, 8)},
		Stratagems: []Item{
			support("S1", 9),
			backpack("B1", 8),
			strat("O5a", 5),
			strat("O5b", 5),
			strat("O6", 6),
			strat("O7", 7),
			strat("O8", 8),
			strat("O9", 9),
		},
	}
}

// conformant builds a loadout that satisfies every rule.
func conformant() Loadout {
	l := Loadout{
		Stratagems: []Item{support("S1", 9), backpack("B1", 8), strat("O9", 9), strat("O8", 8)},
		Role:       "Anti-Tank",
		Enemy:      "terminids",
	}
	l.Gear.Set(SlotPrimary, gear("P2", CategoryPrimary, 9))
	l.Gear.Set(SlotSecondary, gear("SE1", CategorySecondary, 6))
	l.Gear.Set(SlotGrenade, gear("G1", CategoryThrowable, 8))
	l.Gear.Set(SlotArmorPassive, gear("A2", CategoryArmorPassives, 8))
	return l
}

func names(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Name
	}
	return out
}

func countWhere(items []Item, pred func(Item) bool) int {
	n := 0
	for _, it := range items {
		if pred(it) {
			n++
		}
	}
	return n
}
