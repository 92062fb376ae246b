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
	"cmp"
	"slices"
)

// MaxRepairPasses bounds the stratagem fixed-point loop.
const MaxRepairPasses = 10

// =============================================================================
// Repair
// =============================================================================

// Repair turns an arbitrary loadout into one satisfying the structural rules.
//
// # Description
//
// Repair never fails. It runs in three stages:
//
//  1. Backfill: every empty gear slot gets the best-scoring item from the
//     matching pool list. An empty pool list leaves the slot empty.
//  2. Stratagem fixed point: repairPass is applied up to MaxRepairPasses
//     times, stopping as soon as a pass leaves the list unchanged.
//  3. Armor reconciliation: if the hazard rule is broken, the armor passive
//     is swapped for the best pool armor that satisfies it, when one exists.
//
// # Inputs
//
//   - l: Candidate loadout. Not modified.
//   - pool: Replacement source for the same context.
//   - role: Role label used to prefer matching squad_role candidates. May be "".
//
// # Outputs
//
//   - Loadout: Repaired copy. With at least one Support and three other
//     non-Backpack stratagems in the pool, the result has exactly four
//     distinct stratagems, one Support and at most one Backpack. A starved
//     pool yields a short list rather than padding.
//
// # Examples
//
//	fixed := loadout.Repair(proposed, pool, "Anti-Tank")
//	if loadout.NeedsFix(fixed) {
//	    // pool starvation
//	}
func Repair(l Loadout, pool Pool, role string) Loadout {
	return repair(l, pool, role, nil)
}

// repair is Repair with a set of names to keep out. Pool picks skip avoided
// names unless nothing else qualifies.
func repair(l Loadout, pool Pool, role string, avoid nameSet) Loadout {
	out := l.Clone()
	backfillGear(&out.Gear, pool)

	strats := out.Stratagems
	for range MaxRepairPasses {
		next := repairPass(strats, pool, role, avoid)
		if slices.Equal(next, strats) {
			break
		}
		strats = next
	}
	out.Stratagems = strats

	reconcileArmor(&out, pool, avoid)
	return out
}

// nameSet is a set of item names.
type nameSet map[string]struct{}

func (n nameSet) has(name string) bool {
	_, ok := n[name]
	return ok
}

// preferFresh drops avoided items, unless that would leave nothing.
func preferFresh(items []Item, avoid nameSet) []Item {
	if len(avoid) == 0 {
		return items
	}
	var fresh []Item
	for _, it := range items {
		if !avoid.has(it.Name) {
			fresh = append(fresh, it)
		}
	}
	if len(fresh) == 0 {
		return items
	}
	return fresh
}

func backfillGear(g *Gear, pool Pool) {
	for _, s := range Slots {
		if it := g.Get(s); it != nil && it.Name != "" {
			continue
		}
		if best, ok := bestByScore(pool.ForSlot(s)); ok {
			g.Set(s, best)
		}
	}
}

// repairPass applies one dedupe, support, backpack, top-up and trim round.
// It never modifies its input.
func repairPass(in []Item, pool Pool, role string, avoid nameSet) []Item {
	strats := dedupeByName(in)
	strats = enforceSupport(strats, pool, avoid)
	strats = enforceBackpack(strats)
	strats = topUp(strats, pool, role, avoid)
	return trimToFour(strats)
}

// dedupeByName keeps one item per name at its first-seen position, using the
// highest-scoring instance.
func dedupeByName(items []Item) []Item {
	index := make(map[string]int, len(items))
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if i, ok := index[it.Name]; ok {
			if it.Score > out[i].Score {
				out[i] = it
			}
			continue
		}
		index[it.Name] = len(out)
		out = append(out, it)
	}
	return out
}

// enforceSupport leaves exactly one Support at the front of the list when
// one is available. The first existing Support wins; otherwise the best pool
// Support not already present is used. Avoided names lose to any other
// Support in both cases.
func enforceSupport(items []Item, pool Pool, avoid nameSet) []Item {
	var supports, others []Item
	for _, it := range items {
		if IsSupport(it) {
			supports = append(supports, it)
		} else {
			others = append(others, it)
		}
	}
	if len(supports) == 1 {
		return items
	}

	var chosen Item
	found := false
	if len(supports) > 0 {
		chosen, found = preferFresh(supports, avoid)[0], true
	} else {
		chosen, found = bestByScore(preferFresh(missingFrom(pool.Stratagems, items, IsSupport), avoid))
	}

	out := make([]Item, 0, len(others)+1)
	if found {
		out = append(out, chosen)
	}
	return append(out, others...)
}

// enforceBackpack keeps only the highest-scoring Backpack when there are
// several. Survivors keep their relative order.
func enforceBackpack(items []Item) []Item {
	var packs []Item
	for _, it := range items {
		if IsBackpack(it) {
			packs = append(packs, it)
		}
	}
	if len(packs) <= 1 {
		return items
	}
	best, _ := bestByScore(packs)
	out := make([]Item, 0, len(items)-len(packs)+1)
	for _, it := range items {
		if IsBackpack(it) && it != best {
			continue
		}
		out = append(out, it)
	}
	return out
}

// topUp appends non-Support, non-Backpack pool candidates until there are
// StratagemCount items, preferring squad_role matches for role. Avoided names
// are used only when no other candidate remains.
func topUp(items []Item, pool Pool, role string, avoid nameSet) []Item {
	out := slices.Clone(items)
	for len(out) < StratagemCount {
		candidates := missingFrom(pool.Stratagems, out, func(it Item) bool {
			return !IsSupport(it) && !IsBackpack(it)
		})
		pick, ok := bestForRole(preferFresh(candidates, avoid), role, squadRoleOf)
		if !ok {
			break
		}
		out = append(out, pick)
	}
	return out
}

// trimToFour orders by Support, then Backpack, then descending score, and
// keeps the first StratagemCount. The sort is stable.
func trimToFour(items []Item) []Item {
	out := slices.Clone(items)
	slices.SortStableFunc(out, func(a, b Item) int {
		if c := cmpFlag(IsSupport(a), IsSupport(b)); c != 0 {
			return c
		}
		if c := cmpFlag(IsBackpack(a), IsBackpack(b)); c != 0 {
			return c
		}
		return cmp.Compare(b.Score, a.Score)
	})
	if len(out) > StratagemCount {
		out = out[:StratagemCount]
	}
	return out
}

// cmpFlag sorts true before false.
func cmpFlag(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return -1
	default:
		return 1
	}
}

// missingFrom returns the pool items accepted by keep whose names are not in
// present.
func missingFrom(pool, present []Item, keep func(Item) bool) []Item {
	names := make(map[string]struct{}, len(present))
	for _, it := range present {
		names[it.Name] = struct{}{}
	}
	var out []Item
	for _, it := range pool {
		if _, ok := names[it.Name]; ok {
			continue
		}
		if keep == nil || keep(it) {
			out = append(out, it)
		}
	}
	return out
}

// reconcileArmor swaps the armor passive when the hazard rule is broken.
// The best-scoring pool armor that makes the rule hold is used; if none
// does, the armor is left alone. Avoided armor is used only as a last resort.
func reconcileArmor(l *Loadout, pool Pool, avoid nameSet) {
	if HazardSatisfied(*l) {
		return
	}
	var fits []Item
	for _, armor := range pool.ArmorPassives {
		trial := *l
		trial.Gear.ArmorPassive = &armor
		if HazardSatisfied(trial) {
			fits = append(fits, armor)
		}
	}
	if best, ok := bestByScore(preferFresh(fits, avoid)); ok {
		l.Gear.Set(SlotArmorPassive, best)
	}
}
