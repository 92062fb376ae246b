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

// Violation names a broken loadout rule.
type Violation string

const (
	ViolationMissingGear Violation = "missing_gear"
	ViolationCount       Violation = "stratagem_count"
	ViolationDuplicate   Violation = "duplicate_stratagem"
	ViolationSupport     Violation = "support_count"
	ViolationBackpack    Violation = "backpack_count"
	ViolationHazard      Violation = "hazard"
)

// NeedsFix reports whether the stratagems or the hazard rule require repair.
// Gear presence is handled by Repair's backfill and is not considered here.
func NeedsFix(l Loadout) bool {
	seen := make(map[string]struct{}, len(l.Stratagems))
	supports, backpacks := 0, 0
	for _, s := range l.Stratagems {
		if _, dup := seen[s.Name]; dup {
			return true
		}
		seen[s.Name] = struct{}{}
		if IsSupport(s) {
			supports++
		}
		if IsBackpack(s) {
			backpacks++
		}
	}
	if supports != 1 || backpacks > 1 || len(l.Stratagems) != StratagemCount {
		return true
	}
	return !HazardSatisfied(l)
}

// Violations lists every rule the loadout breaks, including missing gear.
// An empty result means the loadout is fully conformant.
func Violations(l Loadout) []Violation {
	var out []Violation
	for _, s := range Slots {
		if l.Gear.Get(s) == nil {
			out = append(out, ViolationMissingGear)
			break
		}
	}
	if len(l.Stratagems) != StratagemCount {
		out = append(out, ViolationCount)
	}
	seen := make(map[string]struct{}, len(l.Stratagems))
	supports, backpacks, dup := 0, 0, false
	for _, s := range l.Stratagems {
		if _, ok := seen[s.Name]; ok {
			dup = true
		}
		seen[s.Name] = struct{}{}
		if IsSupport(s) {
			supports++
		}
		if IsBackpack(s) {
			backpacks++
		}
	}
	if dup {
		out = append(out, ViolationDuplicate)
	}
	if supports != 1 {
		out = append(out, ViolationSupport)
	}
	if backpacks > 1 {
		out = append(out, ViolationBackpack)
	}
	if !HazardSatisfied(l) {
		out = append(out, ViolationHazard)
	}
	return out
}

// HazardSatisfied checks the armor/damage-type rule over the gear and
// stratagems.
//
// # Description
//
// If a hazard damage type (Toxic Gas, Fire, ARC) occurs on two or more of the
// items, the armor passive's damage type must equal it. Otherwise the armor's
// damage type must not be a hazard type. When several hazards reach two, the
// armor matching any of them satisfies the rule.
//
// # Limitations
//
//   - A missing armor passive counts as carrying no damage type.
func HazardSatisfied(l Loadout) bool {
	counts := make(map[string]int, 3)
	for _, it := range l.Items() {
		if IsHazard(it.DamageType) {
			counts[it.DamageType]++
		}
	}

	armor := ""
	if l.Gear.ArmorPassive != nil {
		armor = l.Gear.ArmorPassive.DamageType
	}

	hazardPresent := false
	for dt, n := range counts {
		if n < 2 {
			continue
		}
		hazardPresent = true
		if armor == dt {
			return true
		}
	}
	if hazardPresent {
		return false
	}
	return !IsHazard(armor)
}
