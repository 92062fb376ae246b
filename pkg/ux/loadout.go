// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/AleutianAI/LoadoutForge/services/loadout"
)

// =============================================================================
// Loadout
// =============================================================================

var slotLabels = map[loadout.Slot]string{
	loadout.SlotPrimary:      "Primary",
	loadout.SlotSecondary:    "Secondary",
	loadout.SlotGrenade:      "Grenade",
	loadout.SlotArmorPassive: "Armor Passive",
}

// Loadout prints l.
func (p *Printer) Loadout(l loadout.Loadout) {
	fmt.Fprintln(p.w, RenderLoadout(l, p.mode))
}

// RenderLoadout formats a loadout.
//
// # Description
//
// Rich and plain modes show the name, the role and enemy, the gear, the
// stratagems with Support and Backpack marked, then the briefing. Machine
// mode emits one "field<TAB>value" line per entry, stratagems in order.
func RenderLoadout(l loadout.Loadout, mode Mode) string {
	if mode == ModeMachine {
		return renderLoadoutMachine(l)
	}
	rich := mode == ModeRich
	style := func(s lipgloss.Style, text string) string {
		if rich {
			return s.Render(text)
		}
		return text
	}

	var b strings.Builder
	name := l.LoadoutName
	if name == "" {
		name = "Unnamed loadout"
	}
	b.WriteString(style(Styles.Title, name))
	b.WriteString("\n")
	b.WriteString(style(Styles.Subtitle, fmt.Sprintf("%s vs %s", orDash(l.Role), orDash(l.Enemy))))
	b.WriteString("\n\n")

	for _, slot := range loadout.Slots {
		label := slotLabels[slot]
		if rich {
			label = Styles.Label.Render(label)
		} else {
			label = fmt.Sprintf("%-14s", label)
		}
		b.WriteString(label)
		b.WriteString(orDash(l.Gear.Name(slot)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(style(Styles.Bold, "Stratagems"))
	b.WriteString("\n")
	for i, s := range l.Stratagems {
		line := fmt.Sprintf("%d. %s", i+1, s.Name)
		switch {
		case loadout.IsSupport(s):
			line = style(Styles.Support, line) + style(Styles.Muted, " [support]")
		case loadout.IsBackpack(s):
			line = style(Styles.Backpack, line) + style(Styles.Muted, " [backpack]")
		}
		b.WriteString("  ")
		b.WriteString(line)
		b.WriteString("\n")
	}

	if l.Objective != "" {
		b.WriteString("\n")
		b.WriteString(style(Styles.Bold, "Objective"))
		b.WriteString("\n  ")
		b.WriteString(l.Objective)
		b.WriteString("\n")
	}
	if h := l.HowToPlay; h != nil {
		b.WriteString("\n")
		b.WriteString(style(Styles.Bold, "How to play"))
		b.WriteString("\n")
		for _, tip := range []struct{ label, text string }{
			{"Solo", h.Solo}, {"Co-op", h.CoOp}, {"Positioning", h.Positioning}, {"Combo", h.ComboFlow},
		} {
			if tip.text == "" {
				continue
			}
			fmt.Fprintf(&b, "  %s %s: %s\n", IconBullet, tip.label, tip.text)
		}
	}
	if l.Lore != "" {
		b.WriteString("\n")
		b.WriteString(style(Styles.Muted, l.Lore))
		b.WriteString("\n")
	}

	out := strings.TrimRight(b.String(), "\n")
	if rich {
		return Styles.Box.Render(out)
	}
	return out
}

func renderLoadoutMachine(l loadout.Loadout) string {
	var b strings.Builder
	fmt.Fprintf(&b, "name\t%s\n", l.LoadoutName)
	fmt.Fprintf(&b, "role\t%s\n", l.Role)
	fmt.Fprintf(&b, "enemy\t%s\n", l.Enemy)
	for _, slot := range loadout.Slots {
		fmt.Fprintf(&b, "%s\t%s\n", slot, l.Gear.Name(slot))
	}
	for _, s := range l.Stratagems {
		fmt.Fprintf(&b, "stratagem\t%s\n", s.Name)
	}
	return strings.TrimRight(b.String(), "\n")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// =============================================================================
// Violations
// =============================================================================

// Violations prints rules a committed loadout still breaks. Nothing is
// printed when the list is empty.
func (p *Printer) Violations(vs []loadout.Violation) {
	if len(vs) == 0 {
		return
	}
	names := make([]string, len(vs))
	for i, v := range vs {
		names[i] = string(v)
	}
	p.Warning("pool could not satisfy: " + strings.Join(names, ", "))
}

// =============================================================================
// Usage report
// =============================================================================

// Usage prints the usage report.
func (p *Printer) Usage(rows []loadout.UsageCount, top int) {
	fmt.Fprintln(p.w, RenderUsage(rows, top, p.mode))
}

// RenderUsage formats usage rows, limited to top when top > 0.
func RenderUsage(rows []loadout.UsageCount, top int, mode Mode) string {
	if top > 0 && len(rows) > top {
		rows = rows[:top]
	}
	if len(rows) == 0 {
		if mode == ModeMachine {
			return ""
		}
		return "No loadouts in history."
	}

	var b strings.Builder
	if mode == ModeMachine {
		for _, r := range rows {
			fmt.Fprintf(&b, "%d\t%s\n", r.Count, r.Name)
		}
		return strings.TrimRight(b.String(), "\n")
	}

	width := 0
	for _, r := range rows {
		width = max(width, lipgloss.Width(r.Name))
	}
	maxCount := rows[0].Count
	for _, r := range rows {
		fmt.Fprintf(&b, "%-*s  %3d", width, r.Name, r.Count)
		if mode == ModeRich {
			b.WriteString("  ")
			b.WriteString(Bar(r.Count, maxCount, 20))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
