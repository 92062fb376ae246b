// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package loadout implements the selection-and-repair engine that turns a
// scored item pool and an untrusted proposal into a rule-conformant loadout.
//
// # Description
//
// A loadout is four gear items (primary, secondary, grenade, armor passive)
// plus exactly four stratagems. The engine provides:
//   - Scoring and pool building from the raw item dataset
//   - Weighted sampling with adaptive reweighting for variety
//   - A fixed-point constraint solver (Repair) and its predicate (NeedsFix)
//   - Usage limiting against a history of previously accepted loadouts
//   - A novelty guard comparing successive loadouts for the same key
//
// # Thread Safety
//
// All functions are pure over their inputs except Sampler, which guards its
// random source with a mutex.
package loadout

import (
	"encoding/json"
	"strings"
)

// =============================================================================
// Categories and Damage Types
// =============================================================================

// Gear categories as they appear in the item dataset.
const (
	CategoryPrimary       = "Primary"
	CategorySecondary     = "Secondary"
	CategoryThrowable     = "Throwable"
	CategoryArmorPassives = "Armor Passives"
)

// CategorySupportWeapons is the stratagem category subject to the
// one-Support rule.
const CategorySupportWeapons = "Support Weapons"

// Hazard damage types. Two or more items sharing one of these forces the
// armor passive to carry the same damage type.
const (
	DamageToxicGas = "Toxic Gas"
	DamageFire     = "Fire"
	DamageARC      = "ARC"
)

// IsHazard reports whether the damage type is one of the hazard types.
func IsHazard(damageType string) bool {
	switch damageType {
	case DamageToxicGas, DamageFire, DamageARC:
		return true
	default:
		return false
	}
}

// =============================================================================
// Item
// =============================================================================

// Item is a scored, categorized piece of gear or a stratagem.
//
// # Description
//
// Items are immutable values. They are built fresh from the dataset on every
// pool build and copied by value into loadouts. Item is comparable, so two
// stratagem lists can be compared with slices.Equal.
//
// # Fields
//
//   - Name: Unique within its pool.
//   - Category: Gear type ("Primary", ...) or stratagem category ("Support Weapons", ...).
//   - DamageType: Used by the hazard rule.
//   - Goal: Role hint for gear, matched by the usage limiter.
//   - SquadRole: Role hint for stratagems, matched by the solver and usage limiter.
//   - Score: Effectiveness in [0, 10].
//   - IsBackpack / IsDisposable: Cap flags. Disposable items are exempt from caps.
type Item struct {
	Name          string  `json:"name"`
	Category      string  `json:"category,omitempty"`
	DamageType    string  `json:"Damage Type,omitempty"`
	SpecialTraits string  `json:"special_traits,omitempty"`
	Goal          string  `json:"goal,omitempty"`
	SquadRole     string  `json:"squad_role,omitempty"`
	Score         float64 `json:"score"`
	IsBackpack    bool    `json:"is_backpack,omitempty"`
	IsDisposable  bool    `json:"is_disposable,omitempty"`
}

// UnmarshalJSON accepts the legacy gear shape, which stores the gear type
// under "Type" instead of "category".
func (i *Item) UnmarshalJSON(data []byte) error {
	type plain Item
	var aux struct {
		plain
		Type string `json:"Type"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*i = Item(aux.plain)
	if i.Category == "" {
		i.Category = aux.Type
	}
	return nil
}

// IsSupport reports whether the item counts toward the one-Support rule.
func IsSupport(i Item) bool {
	return i.Category == CategorySupportWeapons && !i.IsDisposable
}

// IsBackpack reports whether the item counts toward the one-Backpack cap.
func IsBackpack(i Item) bool {
	return i.IsBackpack && !i.IsDisposable
}

// roleMatches reports whether field textually contains role, ignoring case.
// An empty role never matches.
func roleMatches(field, role string) bool {
	if role == "" {
		return false
	}
	return strings.Contains(strings.ToLower(field), strings.ToLower(role))
}

// bestByScore returns the highest-scoring item. Ties keep the earliest.
func bestByScore(items []Item) (Item, bool) {
	if len(items) == 0 {
		return Item{}, false
	}
	best := items[0]
	for _, it := range items[1:] {
		if it.Score > best.Score {
			best = it
		}
	}
	return best, true
}

// bestForRole picks the best item whose role field matches role, falling
// back to the best item overall when nothing matches.
func bestForRole(items []Item, role string, field func(Item) string) (Item, bool) {
	var matches []Item
	for _, it := range items {
		if roleMatches(field(it), role) {
			matches = append(matches, it)
		}
	}
	if len(matches) > 0 {
		return bestByScore(matches)
	}
	return bestByScore(items)
}

func goalOf(i Item) string      { return i.Goal }
func squadRoleOf(i Item) string { return i.SquadRole }
