// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package proposer produces candidate loadouts and their briefing text.
//
// Proposals come from an untrusted source (a language model or the local
// sampler). Names in a proposal are resolved against the pool by exact match
// and anything unknown is dropped; the solver fills what is missing.
package proposer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/LoadoutForge/services/llm"
	"github.com/AleutianAI/LoadoutForge/services/loadout"
)

var tracer = otel.Tracer("loadoutforge.proposer")

const (
	// DefaultMaxRetries is how many model calls a proposal may take.
	DefaultMaxRetries = 3

	// DefaultProposalTemperature keeps selections varied without drifting off-pool.
	DefaultProposalTemperature = 0.7
)

// Proposal is a candidate loadout.
type Proposal struct {
	Loadout loadout.Loadout

	// Parsed is false when no usable JSON was obtained. Loadout is then
	// whatever could be salvaged, possibly empty.
	Parsed bool
}

// Proposer suggests a loadout for role from pool.
type Proposer interface {
	Propose(ctx context.Context, pool loadout.Pool, role string) (Proposal, error)
}

// =============================================================================
// Selection decoding
// =============================================================================

// ref is a named reference in model output. Both {"name": "X"} and "X" are
// accepted.
type ref struct {
	Name string
}

func (r *ref) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		r.Name = s
		return nil
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	r.Name = obj.Name
	return nil
}

type selection struct {
	Loadout struct {
		Primary      *ref `json:"primary"`
		Secondary    *ref `json:"secondary"`
		Grenade      *ref `json:"grenade"`
		ArmorPassive *ref `json:"armor_passive"`
	} `json:"loadout"`
	Stratagems []ref `json:"stratagems"`
}

var errNoSelection = errors.New("response is not a loadout selection")

// decodeSelection decodes raw into a selection. On a type mismatch the error
// is returned along with whatever fields did decode.
func decodeSelection(raw json.RawMessage) (selection, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return selection{}, errNoSelection
	}
	if _, ok := fields["loadout"]; !ok {
		if _, ok := fields["stratagems"]; !ok {
			return selection{}, errNoSelection
		}
	}
	var sel selection
	if err := json.Unmarshal(raw, &sel); err != nil {
		return sel, fmt.Errorf("%w: %v", errNoSelection, err)
	}
	return sel, nil
}

func (s selection) gear(slot loadout.Slot) *ref {
	switch slot {
	case loadout.SlotPrimary:
		return s.Loadout.Primary
	case loadout.SlotSecondary:
		return s.Loadout.Secondary
	case loadout.SlotGrenade:
		return s.Loadout.Grenade
	case loadout.SlotArmorPassive:
		return s.Loadout.ArmorPassive
	default:
		return nil
	}
}

// rehydrate resolves selected names to full pool items. Unknown names are
// dropped.
func rehydrate(pool loadout.Pool, sel selection) loadout.Loadout {
	var l loadout.Loadout
	for _, slot := range loadout.Slots {
		r := sel.gear(slot)
		if r == nil {
			continue
		}
		if it, ok := pool.FindGear(slot, r.Name); ok {
			l.Gear.Set(slot, it)
		}
	}
	l.Stratagems = make([]loadout.Item, 0, len(sel.Stratagems))
	for _, r := range sel.Stratagems {
		if it, ok := pool.FindStratagem(r.Name); ok {
			l.Stratagems = append(l.Stratagems, it)
		}
	}
	return l
}

// =============================================================================
// LLM Proposer
// =============================================================================

// LLMProposerConfig configures an LLMProposer.
type LLMProposerConfig struct {
	// MaxRetries bounds model calls per proposal. Default: 3.
	MaxRetries int

	// Temperature for selection calls. Default: 0.7.
	Temperature float32

	Logger *slog.Logger
}

// LLMProposer asks a language model to pick a loadout from the pool.
//
// # Description
//
// The prompt lists the pool and the selection rules. The response goes
// through ParseJSON; a response that does not parse, or does not look like a
// selection, is retried. Transport errors are retried too.
//
// # Outputs
//
// After MaxRetries the last partly decoded selection, possibly empty, is
// returned with Parsed=false. An error is returned only when no response was
// received at all.
//
// # Thread Safety
//
// Safe for concurrent use if the underlying client is.
type LLMProposer struct {
	client      llm.LLMClient
	prompts     *PromptBuilder
	maxRetries  int
	temperature float32
	logger      *slog.Logger
}

// NewLLMProposer wires a proposer around client.
func NewLLMProposer(client llm.LLMClient, cfg LLMProposerConfig) (*LLMProposer, error) {
	if client == nil {
		return nil, errors.New("llm proposer requires a client")
	}
	prompts, err := NewPromptBuilder()
	if err != nil {
		return nil, err
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultProposalTemperature
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &LLMProposer{
		client:      client,
		prompts:     prompts,
		maxRetries:  cfg.MaxRetries,
		temperature: cfg.Temperature,
		logger:      cfg.Logger.With(slog.String("component", "llm_proposer")),
	}, nil
}

// Propose implements Proposer.
func (p *LLMProposer) Propose(ctx context.Context, pool loadout.Pool, role string) (Proposal, error) {
	ctx, span := tracer.Start(ctx, "proposer.llm.propose")
	defer span.End()
	span.SetAttributes(attribute.String("loadout.role", role))

	prompt, err := p.prompts.Proposal(pool, role)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "prompt")
		return Proposal{}, err
	}

	params := llm.GenerationParams{
		Temperature: llm.Float32(p.temperature),
		JSONMode:    true,
	}

	var (
		lastErr  error
		received bool
		last     loadout.Loadout
	)
	for attempt := 1; attempt <= p.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		raw, err := p.client.Generate(ctx, prompt, params)
		if err != nil {
			lastErr = err
			p.logger.Warn("proposal call failed",
				slog.Int("attempt", attempt),
				slog.Int("max_retries", p.maxRetries),
				slog.String("error", err.Error()))
			continue
		}
		received = true

		data, ok := ParseJSON(raw)
		if !ok {
			p.logger.Warn("proposal was not valid JSON, retrying",
				slog.Int("attempt", attempt),
				slog.Int("max_retries", p.maxRetries))
			continue
		}
		sel, err := decodeSelection(data)
		if err != nil {
			last = rehydrate(pool, sel)
			p.logger.Warn("proposal JSON had the wrong shape, retrying",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
			continue
		}
		span.SetAttributes(attribute.Int("proposer.attempts", attempt))
		return Proposal{Loadout: rehydrate(pool, sel), Parsed: true}, nil
	}

	span.SetAttributes(attribute.Bool("proposer.parsed", false))
	if !received {
		err := fmt.Errorf("no proposal after %d attempts: %w", p.maxRetries, lastErr)
		span.RecordError(err)
		span.SetStatus(codes.Error, "no response")
		return Proposal{}, err
	}
	return Proposal{Loadout: last}, nil
}

// =============================================================================
// Local Proposer
// =============================================================================

// LocalProposer proposes from the pool with the weighted sampler alone. It
// needs no network and never fails.
type LocalProposer struct {
	sampler *loadout.Sampler
}

// NewLocalProposer creates a proposer drawing from s.
func NewLocalProposer(s *loadout.Sampler) *LocalProposer {
	return &LocalProposer{sampler: s}
}

// Propose implements Proposer. One Support is drawn, then the remaining
// stratagems from non-Support, non-Backpack candidates.
func (p *LocalProposer) Propose(_ context.Context, pool loadout.Pool, _ string) (Proposal, error) {
	var l loadout.Loadout
	for _, slot := range loadout.Slots {
		if picked := p.sampler.Sample(pool.ForSlot(slot), 1); len(picked) == 1 {
			l.Gear.Set(slot, picked[0])
		}
	}

	var supports, others []loadout.Item
	for _, it := range pool.Stratagems {
		switch {
		case loadout.IsSupport(it):
			supports = append(supports, it)
		case !loadout.IsBackpack(it):
			others = append(others, it)
		}
	}
	l.Stratagems = p.sampler.Sample(supports, 1)
	l.Stratagems = append(l.Stratagems, p.sampler.Sample(others, loadout.StratagemCount-len(l.Stratagems))...)
	return Proposal{Loadout: l, Parsed: true}, nil
}

var (
	_ Proposer = (*LLMProposer)(nil)
	_ Proposer = (*LocalProposer)(nil)
)
