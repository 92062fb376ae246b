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

const (
	// UsageCeiling is where CountItemUsage stops counting.
	UsageCeiling = 12

	// DefaultMaxDupes is the usage count at which an item is swapped out.
	DefaultMaxDupes = 3
)

// CountItemUsage counts how often name appears across the gear and
// stratagems of every history entry. The count saturates: scanning stops
// once it reaches UsageCeiling.
func CountItemUsage(history []Loadout, name string) int {
	total := 0
	for _, l := range history {
		for _, s := range Slots {
			if l.Gear.Name(s) == name {
				total++
			}
		}
		for _, st := range l.Stratagems {
			if st.Name == name {
				total++
			}
		}
		if total >= UsageCeiling {
			break
		}
	}
	return total
}

// Replacement records one swap made by ReplaceOverused.
type Replacement struct {
	Kind string `json:"kind"` // "gear" or "stratagem"
	From string `json:"from"`
	To   string `json:"to"`
}

// ReplaceOverused swaps out items that history already uses maxDupes times.
//
// # Description
//
// Each gear slot and each stratagem whose usage count is at least maxDupes
// is replaced with the best-scoring pool candidate not already present by
// name. Gear candidates prefer a goal matching role; stratagem candidates
// must be of the same kind (Support, Backpack or other) and prefer a matching
// squad_role. When no candidate exists the item stays. Repair is applied to
// the result with the overused names held back, so it does not pull them in
// again while any other choice exists.
//
// # Inputs
//
//   - l: Loadout to check. Not modified.
//   - pool: Replacement source.
//   - history: Valid history entries.
//   - role: Role label for candidate matching.
//   - maxDupes: Usage cap. Values <= 0 use DefaultMaxDupes.
//
// # Outputs
//
//   - Loadout: Repaired result.
//   - []Replacement: Swaps that survive into the returned loadout, in order.
func ReplaceOverused(l Loadout, pool Pool, history []Loadout, role string, maxDupes int) (Loadout, []Replacement) {
	if maxDupes <= 0 {
		maxDupes = DefaultMaxDupes
	}
	out := l.Clone()
	var swaps []Replacement
	overused := make(nameSet)

	present := make(map[string]struct{}, len(Slots)+len(out.Stratagems))
	for _, s := range Slots {
		if name := out.Gear.Name(s); name != "" {
			present[name] = struct{}{}
		}
	}
	candidatesFor := func(items []Item) []Item {
		var c []Item
		for _, it := range items {
			if _, ok := present[it.Name]; !ok {
				c = append(c, it)
			}
		}
		return c
	}

	for _, s := range Slots {
		cur := out.Gear.Get(s)
		if cur == nil || CountItemUsage(history, cur.Name) < maxDupes {
			continue
		}
		overused[cur.Name] = struct{}{}
		repl, ok := bestForRole(candidatesFor(pool.ForSlot(s)), role, goalOf)
		if !ok {
			continue
		}
		out.Gear.Set(s, repl)
		present[repl.Name] = struct{}{}
	}

	for _, st := range out.Stratagems {
		present[st.Name] = struct{}{}
	}
	for i, st := range out.Stratagems {
		if CountItemUsage(history, st.Name) < maxDupes {
			continue
		}
		overused[st.Name] = struct{}{}
		var same []Item
		for _, c := range candidatesFor(pool.Stratagems) {
			if sameKind(c, st) {
				same = append(same, c)
			}
		}
		repl, ok := bestForRole(same, role, squadRoleOf)
		if !ok {
			continue
		}
		swaps = append(swaps, Replacement{Kind: "stratagem", From: st.Name, To: repl.Name})
		out.Stratagems[i] = repl
		present[repl.Name] = struct{}{}
	}

	out = repair(out, pool, role, overused)

	// Repair may move armor or refill stratagems, so report against the
	// final loadout.
	var kept []Replacement
	for _, s := range Slots {
		from, to := l.Gear.Name(s), out.Gear.Name(s)
		if overused.has(from) && to != "" && to != from {
			kept = append(kept, Replacement{Kind: "gear", From: from, To: to})
		}
	}
	final := nameSet(out.Names())
	for _, sw := range swaps {
		if final.has(sw.To) && !final.has(sw.From) {
			kept = append(kept, sw)
		}
	}
	return out, kept
}

// sameKind reports whether a and b fall under the same stratagem cap.
func sameKind(a, b Item) bool {
	return IsSupport(a) == IsSupport(b) && IsBackpack(a) == IsBackpack(b)
}

// UsageCount is one row of a usage report.
type UsageCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// UsageReport counts every item across history, exactly and without the
// ceiling, sorted by count descending then name.
func UsageReport(history []Loadout) []UsageCount {
	counts := make(map[string]int)
	for _, l := range history {
		for _, it := range l.Items() {
			counts[it.Name]++
		}
	}
	out := make([]UsageCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, UsageCount{Name: name, Count: n})
	}
	slices.SortFunc(out, func(a, b UsageCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return out
}
