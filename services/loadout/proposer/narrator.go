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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/LoadoutForge/services/llm"
	"github.com/AleutianAI/LoadoutForge/services/loadout"
)

const (
	// DefaultNarrationTemperature is higher than the proposal temperature to
	// get more varied names.
	DefaultNarrationTemperature = 0.85

	// DefaultNarrationMaxTokens bounds the briefing response.
	DefaultNarrationMaxTokens = 1500
)

// ErrNarration is returned when the narrator response could not be used.
var ErrNarration = errors.New("narration response unusable")

// Narrator writes the briefing for a fixed loadout. Only narrative fields are
// returned; gear and stratagems are never taken from a narrator.
type Narrator interface {
	Narrate(ctx context.Context, l loadout.Loadout, role, enemy string, usedNames map[string]struct{}) (loadout.Narrative, error)
}

// defaultName is the base name for a loadout without one.
func defaultName(role, enemy string) string {
	return fmt.Sprintf("%s vs %s", role, enemy)
}

// =============================================================================
// LLM Narrator
// =============================================================================

// LLMNarratorConfig configures an LLMNarrator.
type LLMNarratorConfig struct {
	Temperature float32
	MaxTokens   int
	Logger      *slog.Logger
}

// LLMNarrator asks a language model for name, objective, lore and play tips.
//
// # Description
//
// The model sees the locked gear and a sample of names already in use. The
// returned name is bumped until it collides with no used name. If the model
// returns no name, "<role> vs <enemy>" is used as the base.
type LLMNarrator struct {
	client      llm.LLMClient
	prompts     *PromptBuilder
	temperature float32
	maxTokens   int
	logger      *slog.Logger
}

// NewLLMNarrator wires a narrator around client.
func NewLLMNarrator(client llm.LLMClient, cfg LLMNarratorConfig) (*LLMNarrator, error) {
	if client == nil {
		return nil, errors.New("llm narrator requires a client")
	}
	prompts, err := NewPromptBuilder()
	if err != nil {
		return nil, err
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultNarrationTemperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultNarrationMaxTokens
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &LLMNarrator{
		client:      client,
		prompts:     prompts,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      cfg.Logger.With(slog.String("component", "llm_narrator")),
	}, nil
}

// Narrate implements Narrator.
func (n *LLMNarrator) Narrate(ctx context.Context, l loadout.Loadout, role, enemy string, usedNames map[string]struct{}) (loadout.Narrative, error) {
	ctx, span := tracer.Start(ctx, "proposer.llm.narrate")
	defer span.End()
	span.SetAttributes(
		attribute.String("loadout.role", role),
		attribute.String("loadout.enemy", enemy),
		attribute.Int("narrator.used_names", len(usedNames)),
	)

	fail := func(err error) (loadout.Narrative, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return loadout.Narrative{}, err
	}

	prompt, err := n.prompts.Narration(l, role, enemy, usedNames)
	if err != nil {
		return fail(err)
	}
	raw, err := n.client.Generate(ctx, prompt, llm.GenerationParams{
		Temperature: llm.Float32(n.temperature),
		MaxTokens:   llm.Int(n.maxTokens),
		JSONMode:    true,
	})
	if err != nil {
		return fail(fmt.Errorf("narration call: %w", err))
	}

	data, ok := ParseJSON(raw)
	if !ok {
		return fail(fmt.Errorf("%w: no JSON found", ErrNarration))
	}
	var out loadout.Narrative
	if err := json.Unmarshal(data, &out); err != nil {
		return fail(fmt.Errorf("%w: %v", ErrNarration, err))
	}

	name := strings.TrimSpace(out.LoadoutName)
	if name == "" {
		name = defaultName(role, enemy)
	}
	out.LoadoutName = loadout.UniqueName(name, usedNames)
	if out.LoadoutName != name {
		n.logger.Info("loadout name collided, bumped",
			slog.String("requested", name),
			slog.String("loadout_name", out.LoadoutName))
	}
	return out, nil
}

// =============================================================================
// Static Narrator
// =============================================================================

// StaticNarrator writes a plain briefing without a model. It is the fallback
// when the LLM narrator fails and the default when none is configured.
type StaticNarrator struct{}

// Narrate implements Narrator. The loadout's existing name, or
// "<role> vs <enemy>", is bumped until unused.
func (StaticNarrator) Narrate(_ context.Context, l loadout.Loadout, role, enemy string, usedNames map[string]struct{}) (loadout.Narrative, error) {
	base := strings.TrimSpace(l.LoadoutName)
	if base == "" {
		base = defaultName(role, enemy)
	}

	g := l.Gear
	tips := &loadout.HowToPlay{
		Solo:        fmt.Sprintf("Lead with the %s and keep the %s for close calls.", orUnknown(g.Name(loadout.SlotPrimary)), orUnknown(g.Name(loadout.SlotSecondary))),
		CoOp:        fmt.Sprintf("Call in the %s early and cover teammates while it is active.", orUnknown(firstStratagem(l))),
		Positioning: "Stay near cover and move between engagements.",
		ComboFlow:   fmt.Sprintf("Open with the %s, then follow up with stratagems.", orUnknown(g.Name(loadout.SlotGrenade))),
	}
	return loadout.Narrative{
		LoadoutName: loadout.UniqueName(base, usedNames),
		HowToPlay:   tips,
		Objective:   fmt.Sprintf("Fill the %s role against the %s.", role, enemy),
	}, nil
}

func firstStratagem(l loadout.Loadout) string {
	if len(l.Stratagems) == 0 {
		return ""
	}
	return l.Stratagems[0].Name
}

func orUnknown(name string) string {
	if name == "" {
		return "issued gear"
	}
	return name
}

var (
	_ Narrator = (*LLMNarrator)(nil)
	_ Narrator = StaticNarrator{}
)
