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

// StratagemCount is the exact number of stratagems in a conformant loadout.
const StratagemCount = 4

// =============================================================================
// Gear Slots
// =============================================================================

// Slot identifies one of the four gear slots.
type Slot int

const (
	SlotPrimary Slot = iota
	SlotSecondary
	SlotGrenade
	SlotArmorPassive
)

// Slots lists every gear slot in canonical order.
var Slots = [...]Slot{SlotPrimary, SlotSecondary, SlotGrenade, SlotArmorPassive}

// String returns the slot's storage key.
func (s Slot) String() string {
	switch s {
	case SlotPrimary:
		return "primary"
	case SlotSecondary:
		return "secondary"
	case SlotGrenade:
		return "grenade"
	case SlotArmorPassive:
		return "armor_passive"
	default:
		return "unknown"
	}
}

// PoolCategory returns the pool list that feeds this slot.
func (s Slot) PoolCategory() PoolCategory {
	switch s {
	case SlotPrimary:
		return PoolPrimaries
	case SlotSecondary:
		return PoolSecondaries
	case SlotGrenade:
		return PoolGrenades
	case SlotArmorPassive:
		return PoolArmorPassives
	default:
		return ""
	}
}

// Gear holds the four gear slots. A nil slot is missing.
type Gear struct {
	Primary      *Item `json:"primary,omitempty"`
	Secondary    *Item `json:"secondary,omitempty"`
	Grenade      *Item `json:"grenade,omitempty"`
	ArmorPassive *Item `json:"armor_passive,omitempty"`
}

// Get returns the item in slot, or nil.
func (g *Gear) Get(s Slot) *Item {
	switch s {
	case SlotPrimary:
		return g.Primary
	case SlotSecondary:
		return g.Secondary
	case SlotGrenade:
		return g.Grenade
	case SlotArmorPassive:
		return g.ArmorPassive
	default:
		return nil
	}
}

// Set stores a copy of item in slot.
func (g *Gear) Set(s Slot, item Item) {
	p := &item
	switch s {
	case SlotPrimary:
		g.Primary = p
	case SlotSecondary:
		g.Secondary = p
	case SlotGrenade:
		g.Grenade = p
	case SlotArmorPassive:
		g.ArmorPassive = p
	}
}

// Name returns the name in slot, or "" when the slot is empty.
func (g *Gear) Name(s Slot) string {
	if it := g.Get(s); it != nil {
		return it.Name
	}
	return ""
}

// =============================================================================
// Loadout
// =============================================================================

// HowToPlay is the narrative play guide attached by the narrator.
type HowToPlay struct {
	Solo        string `json:"solo,omitempty"`
	CoOp        string `json:"co_op,omitempty"`
	Positioning string `json:"positioning,omitempty"`
	ComboFlow   string `json:"combo_flow,omitempty"`
}

// Narrative holds the descriptive fields. The engine never reads them.
type Narrative struct {
	LoadoutName string     `json:"loadout_name,omitempty"`
	HowToPlay   *HowToPlay `json:"how_to_play,omitempty"`
	Objective   string     `json:"objective,omitempty"`
	Lore        string     `json:"lore,omitempty"`
}

// Loadout is a generated bundle of gear, stratagems and narrative.
//
// # Description
//
// A Loadout is built per generation request, repaired through value-returning
// passes, and treated as immutable once committed to history.
type Loadout struct {
	Narrative
	Gear       Gear   `json:"loadout"`
	Stratagems []Item `json:"stratagems"`
	Role       string `json:"role,omitempty"`
	Enemy      string `json:"enemy,omitempty"`
}

// Clone returns a deep copy.
func (l Loadout) Clone() Loadout {
	out := l
	out.Gear = Gear{}
	for _, s := range Slots {
		if it := l.Gear.Get(s); it != nil {
			out.Gear.Set(s, *it)
		}
	}
	if l.Stratagems != nil {
		out.Stratagems = append([]Item(nil), l.Stratagems...)
	}
	if l.HowToPlay != nil {
		h := *l.HowToPlay
		out.HowToPlay = &h
	}
	return out
}

// Items returns the populated gear items followed by the stratagems.
func (l Loadout) Items() []Item {
	items := make([]Item, 0, len(Slots)+len(l.Stratagems))
	for _, s := range Slots {
		if it := l.Gear.Get(s); it != nil {
			items = append(items, *it)
		}
	}
	return append(items, l.Stratagems...)
}

// Names returns the set of every item name present in the loadout.
func (l Loadout) Names() map[string]struct{} {
	names := make(map[string]struct{}, len(Slots)+len(l.Stratagems))
	for _, it := range l.Items() {
		names[it.Name] = struct{}{}
	}
	return names
}

// Key builds the history key for a role/enemy pairing.
func Key(role, enemy string) string {
	return role + "_" + enemy
}
