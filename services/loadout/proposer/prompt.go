// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package proposer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"text/template"

	"github.com/AleutianAI/LoadoutForge/services/loadout"
)

// =============================================================================
// Prompt Builder
// =============================================================================

// maxUsedNamesInPrompt caps how many existing names the narration prompt lists.
const maxUsedNamesInPrompt = 30

const roleGuide = `Roles:
- Crowd Control: Focus on stuns, slowing effects, area denial, and killing swarms.
- Anti-Tank: Specializes in elite and heavily armored enemies; uses high-penetration or heavy explosives.
- Saboteur: Excels at destroying enemy structures, nests, and defenses; focuses on demolition tools and precision explosives.
- Stratagem Support: Provides versatile battlefield control with sentries, orbitals, shields, and utilities (not pure DPS).`

const proposalTemplate = `You are selecting a Helldivers 2 loadout for the role: {{.Role}}.
{{.RoleGuide}}

Choose:
- 1 Primary weapon
- 1 Secondary weapon
- 1 Grenade
- 1 Armor Passive
- 4 Stratagems (exactly 1 Support Weapon, max 1 Backpack unless disposable)

Rules:
- Exactly 1 Support Weapon. Items marked "is_disposable": true do not count toward the Support or Backpack limits.
- Max 1 Backpack (unless disposable).
- The remaining stratagems must be non-Support, non-Backpack (Orbital, Sentry, Eagle, Emplacement, Mine, Vehicle).
- No duplicates.
- Bias toward items whose "goal", "special_traits" or "squad_role" align with the role ({{.Role}}).
- Prefer higher "score" but keep variety: include at least one item scoring 7 or lower when possible.
- Only use names from the pool below. Do not invent gear or stratagems.
- Do NOT add lore, explanations or descriptions.

Pool:
{{.PoolJSON}}

Respond ONLY with a JSON object of this shape:
{
  "loadout": {
    "primary": {"name": "..."},
    "secondary": {"name": "..."},
    "grenade": {"name": "..."},
    "armor_passive": {"name": "..."}
  },
  "stratagems": [
    {"name": "..."}, {"name": "..."}, {"name": "..."}, {"name": "..."}
  ]
}

Allowed names:
Primaries: {{join .Names.primaries}}
Secondaries: {{join .Names.secondaries}}
Grenades: {{join .Names.grenades}}
Armor Passives: {{join .Names.armor_passives}}
Stratagems: {{join .Names.stratagems}}`

const narrationTemplate = `You are writing briefing text for a Helldivers 2 loadout. The gear and stratagems are locked: do not rename, replace or remove them.
{{.RoleGuide}}

Role: {{.Role}}
Enemy: {{.Enemy}}

Gear:
{{.GearJSON}}

Stratagems:
{{.StratagemsJSON}}

Write:
1. "how_to_play" with "solo", "co_op", "positioning" and "combo_flow".
2. "objective": 1-2 concise, role-appropriate sentences.
3. "lore": 2-3 immersive sentences reflecting the role and enemy.
4. "loadout_name": a distinctive militaristic codename.
   - 2-4 words, Title Case, no punctuation except one optional hyphen.
   - One vivid verb or adjective and one concrete noun.
   - At most 22 characters excluding spaces.
   - Skip filler words: of, the, and, strike, fury, assault, ops, operation, protocol.
{{- if .UsedNames}}
   - Avoid every word already used in these names: {{join .UsedNames}}{{if .MoreNames}}, ...{{end}}
{{- end}}

Match the tone of the Helldivers universe. Respond ONLY with JSON:
{
  "how_to_play": {"solo": "...", "co_op": "...", "positioning": "...", "combo_flow": "..."},
  "objective": "...",
  "lore": "...",
  "loadout_name": "..."
}`

// PromptBuilder renders the proposal and narration prompts.
//
// # Thread Safety
//
// Safe for concurrent use. Templates are parsed once and only executed.
type PromptBuilder struct {
	proposal  *template.Template
	narration *template.Template
}

type proposalData struct {
	Role      string
	RoleGuide string
	PoolJSON  string
	Names     map[string][]string
}

type narrationData struct {
	Role           string
	Enemy          string
	RoleGuide      string
	GearJSON       string
	StratagemsJSON string
	UsedNames      []string
	MoreNames      bool
}

// NewPromptBuilder parses the prompt templates.
func NewPromptBuilder() (*PromptBuilder, error) {
	funcs := template.FuncMap{
		"join": func(names []string) string { return strings.Join(names, ", ") },
	}
	proposal, err := template.New("proposal").Funcs(funcs).Parse(proposalTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse proposal template: %w", err)
	}
	narration, err := template.New("narration").Funcs(funcs).Parse(narrationTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse narration template: %w", err)
	}
	return &PromptBuilder{proposal: proposal, narration: narration}, nil
}

// Proposal renders the selection prompt for pool and role.
func (p *PromptBuilder) Proposal(pool loadout.Pool, role string) (string, error) {
	if role == "" {
		role = "Random"
	}
	poolJSON, err := json.MarshalIndent(pool, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode pool: %w", err)
	}

	names := make(map[string][]string, 5)
	for _, c := range []loadout.PoolCategory{
		loadout.PoolPrimaries, loadout.PoolSecondaries, loadout.PoolGrenades,
		loadout.PoolArmorPassives, loadout.PoolStratagems,
	} {
		names[string(c)] = []string{}
		for _, it := range pool.List(c) {
			names[string(c)] = append(names[string(c)], it.Name)
		}
	}

	var buf bytes.Buffer
	err = p.proposal.Execute(&buf, proposalData{
		Role:      role,
		RoleGuide: roleGuide,
		PoolJSON:  string(poolJSON),
		Names:     names,
	})
	if err != nil {
		return "", fmt.Errorf("render proposal prompt: %w", err)
	}
	return buf.String(), nil
}

// Narration renders the briefing prompt for a fixed loadout.
func (p *PromptBuilder) Narration(l loadout.Loadout, role, enemy string, used map[string]struct{}) (string, error) {
	if role == "" {
		role = "Unknown"
	}
	if enemy == "" {
		enemy = "Unknown"
	}
	gearJSON, err := json.MarshalIndent(l.Gear, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode gear: %w", err)
	}
	stratagems := l.Stratagems
	if stratagems == nil {
		stratagems = []loadout.Item{}
	}
	stratJSON, err := json.MarshalIndent(stratagems, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode stratagems: %w", err)
	}

	usedNames := make([]string, 0, len(used))
	for n := range used {
		usedNames = append(usedNames, n)
	}
	slices.Sort(usedNames)
	more := len(usedNames) > maxUsedNamesInPrompt
	if more {
		usedNames = usedNames[:maxUsedNamesInPrompt]
	}

	var buf bytes.Buffer
	err = p.narration.Execute(&buf, narrationData{
		Role:           role,
		Enemy:          enemy,
		RoleGuide:      roleGuide,
		GearJSON:       string(gearJSON),
		StratagemsJSON: string(stratJSON),
		UsedNames:      usedNames,
		MoreNames:      more,
	})
	if err != nil {
		return "", fmt.Errorf("render narration prompt: %w", err)
	}
	return buf.String(), nil
}
