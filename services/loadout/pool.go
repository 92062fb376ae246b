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
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	// GearPoolSize is the number of candidates sampled per gear category.
	GearPoolSize = 5

	// StratagemPoolSize bounds the sampled stratagem pool.
	StratagemPoolSize = 20

	// StratagemCategoryCap bounds non-disposable Support and Backpack items
	// within the sampled stratagem pool.
	StratagemCategoryCap = 5

	effectivenessSuffix = "_effectiveness"
)

// =============================================================================
// Raw Records
// =============================================================================

// Record is one raw row of the item dataset.
//
// # Description
//
// Records keep the dataset's loose field naming ("Name" or "name", "Type"
// for gear, "BackPack": "Yes") and collect every "<context>_effectiveness"
// field into Effectiveness. Effectiveness values may be JSON numbers or
// numeric strings; unparseable values are skipped.
type Record struct {
	Name          string             `json:"name" validate:"required"`
	Type          string             `json:"Type,omitempty"`
	Category      string             `json:"category,omitempty"`
	DamageType    string             `json:"Damage Type,omitempty"`
	SpecialTraits string             `json:"special_traits,omitempty"`
	Goal          string             `json:"Goal,omitempty"`
	SquadRole     string             `json:"squad_role,omitempty"`
	Backpack      bool               `json:"-"`
	Disposable    bool               `json:"-"`
	Effectiveness map[string]float64 `json:"-"`
}

// UnmarshalJSON decodes a dataset row.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding record: %w", err)
	}

	str := func(keys ...string) string {
		for _, k := range keys {
			v, ok := raw[k]
			if !ok {
				continue
			}
			var s string
			if json.Unmarshal(v, &s) == nil && s != "" {
				return s
			}
		}
		return ""
	}

	*r = Record{
		Name:          str("Name", "name"),
		Type:          str("Type"),
		Category:      str("category", "Category"),
		DamageType:    str("Damage Type", "damage_type"),
		SpecialTraits: str("special_traits"),
		Goal:          str("Goal", "goal"),
		SquadRole:     str("squad_role"),
		Backpack:      strings.EqualFold(str("BackPack", "Backpack"), "yes"),
		Disposable:    strings.EqualFold(str("Disposable"), "yes"),
		Effectiveness: make(map[string]float64),
	}

	for k, v := range raw {
		if !strings.HasSuffix(k, effectivenessSuffix) {
			continue
		}
		ctx := strings.ToLower(strings.TrimSuffix(k, effectivenessSuffix))
		if f, ok := parseScore(v); ok {
			r.Effectiveness[ctx] = f
		}
	}
	return nil
}

// parseScore accepts a JSON number or a numeric string.
func parseScore(v json.RawMessage) (float64, bool) {
	var f float64
	if err := json.Unmarshal(v, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Dataset is the full item dataset: gear rows and stratagem rows.
type Dataset struct {
	Gear       []Record `json:"loadout" validate:"dive"`
	Stratagems []Record `json:"stratagems" validate:"dive"`
}

// Score returns the record's effectiveness for context.
//
// # Description
//
// With a context, the "<context>_effectiveness" value is used (case
// insensitive). Without one, the arithmetic mean of every effectiveness
// value present is used. A record with no usable score scores 0.
func Score(r Record, context string) float64 {
	if context != "" {
		return r.Effectiveness[strings.ToLower(context)]
	}
	if len(r.Effectiveness) == 0 {
		return 0
	}
	var sum float64
	for _, v := range r.Effectiveness {
		sum += v
	}
	return sum / float64(len(r.Effectiveness))
}

func gearItem(r Record, context string) Item {
	category := r.Type
	if category == "" {
		category = r.Category
	}
	return Item{
		Name:          r.Name,
		Category:      category,
		DamageType:    r.DamageType,
		SpecialTraits: r.SpecialTraits,
		Goal:          r.Goal,
		Score:         Score(r, context),
	}
}

func stratagemItem(r Record, context string) Item {
	return Item{
		Name:          r.Name,
		Category:      r.Category,
		DamageType:    r.DamageType,
		SpecialTraits: r.SpecialTraits,
		Goal:          r.Goal,
		SquadRole:     r.SquadRole,
		Score:         Score(r, context),
		IsBackpack:    r.Backpack,
		IsDisposable:  r.Disposable,
	}
}

// =============================================================================
// Pool
// =============================================================================

// PoolCategory names one of the five candidate lists.
type PoolCategory string

const (
	PoolPrimaries     PoolCategory = "primaries"
	PoolSecondaries   PoolCategory = "secondaries"
	PoolGrenades      PoolCategory = "grenades"
	PoolArmorPassives PoolCategory = "armor_passives"
	PoolStratagems    PoolCategory = "stratagems"
)

// gearSources maps each gear pool to the dataset type it is built from.
var gearSources = map[PoolCategory]string{
	PoolPrimaries:     CategoryPrimary,
	PoolSecondaries:   CategorySecondary,
	PoolGrenades:      CategoryThrowable,
	PoolArmorPassives: CategoryArmorPassives,
}

// Pool holds the scored candidate lists for one context.
type Pool struct {
	Primaries     []Item `json:"primaries"`
	Secondaries   []Item `json:"secondaries"`
	Grenades      []Item `json:"grenades"`
	ArmorPassives []Item `json:"armor_passives"`
	Stratagems    []Item `json:"stratagems"`
}

// List returns the candidate list for c.
func (p Pool) List(c PoolCategory) []Item {
	switch c {
	case PoolPrimaries:
		return p.Primaries
	case PoolSecondaries:
		return p.Secondaries
	case PoolGrenades:
		return p.Grenades
	case PoolArmorPassives:
		return p.ArmorPassives
	case PoolStratagems:
		return p.Stratagems
	default:
		return nil
	}
}

// ForSlot returns the gear candidates feeding slot s.
func (p Pool) ForSlot(s Slot) []Item {
	return p.List(s.PoolCategory())
}

// FindGear looks up a gear item by exact name in the list feeding slot s.
func (p Pool) FindGear(s Slot, name string) (Item, bool) {
	return findByName(p.ForSlot(s), name)
}

// FindStratagem looks up a stratagem by exact name.
func (p Pool) FindStratagem(name string) (Item, bool) {
	return findByName(p.Stratagems, name)
}

func findByName(items []Item, name string) (Item, bool) {
	for _, it := range items {
		if it.Name == name {
			return it, true
		}
	}
	return Item{}, false
}

// BuildPool scores the dataset for context and samples each candidate list.
//
// # Description
//
// Each gear category contributes a weighted sample of GearPoolSize items.
// Every stratagem is scored and handed to SampleStratagems, producing up to
// StratagemPoolSize candidates.
//
// # Inputs
//
//   - ds: The raw dataset. Not modified.
//   - context: Enemy faction label, or "" to average across contexts.
//   - s: Random source for the weighted draws.
//
// # Outputs
//
//   - Pool: Freshly built; shares no memory with ds.
func BuildPool(ds Dataset, context string, s *Sampler) Pool {
	byType := make(map[string][]Item, len(gearSources))
	for _, r := range ds.Gear {
		it := gearItem(r, context)
		byType[it.Category] = append(byType[it.Category], it)
	}

	strats := make([]Item, 0, len(ds.Stratagems))
	for _, r := range ds.Stratagems {
		strats = append(strats, stratagemItem(r, context))
	}

	return Pool{
		Primaries:     s.Sample(byType[gearSources[PoolPrimaries]], GearPoolSize),
		Secondaries:   s.Sample(byType[gearSources[PoolSecondaries]], GearPoolSize),
		Grenades:      s.Sample(byType[gearSources[PoolGrenades]], GearPoolSize),
		ArmorPassives: s.Sample(byType[gearSources[PoolArmorPassives]], GearPoolSize),
		Stratagems:    s.SampleStratagems(strats),
	}
}
