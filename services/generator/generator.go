// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package generator runs the propose, check, repair and commit pipeline that
// produces one loadout per role and enemy.
//
// # Description
//
// A generation builds a pool for the enemy, asks the proposer for a bundle,
// rejects bundles too similar to the stored one, repairs rule violations,
// swaps out overused items, narrates the result and commits it to history.
// Generations for the same role and enemy are coalesced so that concurrent
// requests never interleave their read-modify-write on one key.
//
// # Thread Safety
//
// Generator is safe for concurrent use.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/LoadoutForge/services/generator/observability"
	"github.com/AleutianAI/LoadoutForge/services/loadout"
	"github.com/AleutianAI/LoadoutForge/services/loadout/history"
	"github.com/AleutianAI/LoadoutForge/services/loadout/proposer"
)

var tracer = otel.Tracer("loadoutforge.generator")

// =============================================================================
// Configuration
// =============================================================================

const (
	// DefaultRerollLimit is how many proposals a generation may try.
	DefaultRerollLimit = 5

	// DefaultWarmConcurrency bounds parallel generations during WarmAll.
	DefaultWarmConcurrency = 2
)

// Config tunes a Generator. Zero values take the defaults.
type Config struct {
	// RerollLimit bounds proposals per generation. Default: 5.
	RerollLimit int

	// MaxDupes is the usage count at which an item is replaced. Default: 3.
	MaxDupes int

	// WarmConcurrency bounds parallel generations in WarmAll. Default: 2.
	WarmConcurrency int
}

func (c Config) withDefaults() Config {
	if c.RerollLimit <= 0 {
		c.RerollLimit = DefaultRerollLimit
	}
	if c.MaxDupes <= 0 {
		c.MaxDupes = loadout.DefaultMaxDupes
	}
	if c.WarmConcurrency <= 0 {
		c.WarmConcurrency = DefaultWarmConcurrency
	}
	return c
}

// DatasetSource supplies the current item dataset.
type DatasetSource interface {
	Current() loadout.Dataset
}

// Deps are the Generator's collaborators.
type Deps struct {
	// Dataset supplies items. Required.
	Dataset DatasetSource

	// Store is the live history. Required.
	Store history.Repository

	// Backup is a read-only fallback for cached reads and used names.
	// Optional.
	Backup history.Repository

	// Proposer suggests bundles. Default: a LocalProposer.
	Proposer proposer.Proposer

	// Narrator writes the briefing. Default: StaticNarrator.
	Narrator proposer.Narrator

	// Sampler drives pool building and the local proposer. Default: clock
	// seeded.
	Sampler *loadout.Sampler

	// Metrics is optional.
	Metrics *observability.Metrics

	Logger *slog.Logger
}

// Result describes one generation.
type Result struct {
	// ID identifies this generation run in logs and traces.
	ID uuid.UUID `json:"id"`

	Key     string          `json:"key"`
	Loadout loadout.Loadout `json:"loadout"`

	// Attempts is the number of proposals drawn.
	Attempts int `json:"attempts"`

	// Fallback is true when every proposal failed the novelty guard and the
	// last one was accepted anyway.
	Fallback bool `json:"fallback"`

	// Violations lists the rules the committed loadout still breaks because
	// the pool could not satisfy them. Empty when conformant.
	Violations []loadout.Violation `json:"violations,omitempty"`

	// Replacements lists the overuse swaps applied.
	Replacements []loadout.Replacement `json:"replacements,omitempty"`
}

// Conformant reports whether the committed loadout satisfies every rule.
func (r Result) Conformant() bool { return len(r.Violations) == 0 }

// Generator produces and commits loadouts.
type Generator struct {
	cfg      Config
	dataset  DatasetSource
	store    history.Repository
	backup   history.Repository
	proposer proposer.Proposer
	local    proposer.Proposer
	narrator proposer.Narrator
	sampler  *loadout.Sampler
	metrics  *observability.Metrics
	logger   *slog.Logger

	flight     singleflight.Group
	background sync.WaitGroup
}

// New creates a Generator.
func New(cfg Config, deps Deps) (*Generator, error) {
	if deps.Dataset == nil {
		return nil, errors.New("generator requires a dataset source")
	}
	if deps.Store == nil {
		return nil, errors.New("generator requires a history store")
	}
	if deps.Sampler == nil {
		deps.Sampler = loadout.NewSampler(0)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	local := proposer.NewLocalProposer(deps.Sampler)
	if deps.Proposer == nil {
		deps.Proposer = local
	}
	if deps.Narrator == nil {
		deps.Narrator = proposer.StaticNarrator{}
	}
	return &Generator{
		cfg:      cfg.withDefaults(),
		dataset:  deps.Dataset,
		store:    deps.Store,
		backup:   deps.Backup,
		proposer: deps.Proposer,
		local:    local,
		narrator: deps.Narrator,
		sampler:  deps.Sampler,
		metrics:  deps.Metrics,
		logger:   deps.Logger.With(slog.String("component", "generator")),
	}, nil
}

// =============================================================================
// Generation
// =============================================================================

// Generate produces, commits and returns a new loadout for role and enemy.
//
// # Description
//
// An empty role or enemy is chosen at random with the standard weights.
// Concurrent calls for the same key share one run and its result. The shared
// run ignores cancellation, so one caller leaving does not fail the others;
// each caller still returns as soon as its own ctx is done. Wait covers runs
// whose callers have all left.
//
// # Outputs
//
//   - Result: The committed loadout and how it was reached.
//   - error: Non-nil only for history store failures or cancellation.
func (g *Generator) Generate(ctx context.Context, role, enemy string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	role, enemy = g.Resolve(role, enemy)
	key := loadout.Key(role, enemy)
	detached := context.WithoutCancel(ctx)

	done := make(chan flightResult, 1)
	g.background.Add(1)
	go func() {
		defer g.background.Done()
		v, err, dup := g.flight.Do(key, func() (any, error) {
			return g.generate(detached, role, enemy)
		})
		done <- flightResult{v: v, err: err, shared: dup}
	}()

	var fr flightResult
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case fr = <-done:
	}
	if fr.err != nil {
		return Result{}, fr.err
	}
	if fr.shared {
		g.logger.Debug("generation shared with concurrent caller", slog.String("key", key))
	}
	res := fr.v.(Result)
	res.Loadout = res.Loadout.Clone()
	return res, nil
}

type flightResult struct {
	v      any
	err    error
	shared bool
}

// Resolve fills an empty role or enemy with a weighted random choice.
func (g *Generator) Resolve(role, enemy string) (string, string) {
	if role == "" {
		role = loadout.ChooseRole(g.sampler)
	}
	if enemy == "" {
		enemy = loadout.ChooseEnemy(g.sampler)
	}
	return role, enemy
}

func (g *Generator) generate(ctx context.Context, role, enemy string) (Result, error) {
	res := Result{ID: uuid.New(), Key: loadout.Key(role, enemy)}
	start := time.Now()

	ctx, span := tracer.Start(ctx, "generator.generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("generation.id", res.ID.String()),
		attribute.String("loadout.role", role),
		attribute.String("loadout.enemy", enemy),
	)
	logger := g.logger.With(
		slog.String("generation_id", res.ID.String()),
		slog.String("role", role),
		slog.String("enemy", enemy),
	)

	fail := func(err error) (Result, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.metrics.RecordGeneration(observability.OutcomeError, time.Since(start).Seconds())
		logger.Error("generation failed", slog.String("error", err.Error()))
		return Result{}, err
	}

	previous, err := g.store.Get(ctx, res.Key)
	if err != nil {
		return fail(fmt.Errorf("reading previous loadout: %w", err))
	}
	entries, err := g.store.All(ctx)
	if err != nil {
		return fail(fmt.Errorf("reading history: %w", err))
	}
	past := history.Loadouts(entries)
	old := previous.Ptr()

	pool := loadout.BuildPool(g.dataset.Current(), enemy, g.sampler)

	var candidate loadout.Loadout
	accepted := false
	for attempt := 1; attempt <= g.cfg.RerollLimit; attempt++ {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		res.Attempts = attempt
		candidate = g.propose(ctx, pool, role, logger)

		if !loadout.DiffersByThreeOrMore(old, candidate) {
			g.metrics.RecordReroll()
			span.AddEvent("reroll", trace.WithAttributes(
				attribute.Int("attempt", attempt),
			))
			logger.Debug("proposal too close to previous loadout, rerolling",
				slog.Int("attempt", attempt),
				slog.Int("diff", loadout.Diff(*old, candidate)))
			continue
		}
		accepted = true
		break
	}
	if !accepted {
		res.Fallback = true
		logger.Warn("reroll limit reached, accepting last proposal",
			slog.Int("reroll_limit", g.cfg.RerollLimit))
	}

	candidate, res.Replacements = g.enforce(candidate, pool, past, role)
	candidate.Role = role
	candidate.Enemy = enemy

	candidate.Narrative = g.narrate(ctx, candidate, role, enemy, logger)

	res.Violations = loadout.Violations(candidate)
	if !res.Conformant() {
		g.metrics.RecordNonconformant()
		violations := make([]string, len(res.Violations))
		for i, v := range res.Violations {
			violations[i] = string(v)
		}
		logger.Warn("committing loadout that still breaks rules",
			slog.Any("violations", violations))
	}

	if err := g.store.Put(ctx, res.Key, candidate); err != nil {
		return fail(fmt.Errorf("committing loadout: %w", err))
	}
	res.Loadout = candidate

	outcome := observability.OutcomeAccepted
	if res.Fallback {
		outcome = observability.OutcomeFallback
	}
	elapsed := time.Since(start)
	g.metrics.RecordGeneration(outcome, elapsed.Seconds())
	span.SetAttributes(
		attribute.Int("generation.attempts", res.Attempts),
		attribute.Bool("generation.fallback", res.Fallback),
		attribute.Int("generation.replacements", len(res.Replacements)),
		attribute.String("loadout.name", candidate.LoadoutName),
	)
	logger.Info("loadout committed",
		slog.String("key", res.Key),
		slog.String("loadout_name", candidate.LoadoutName),
		slog.Int("attempts", res.Attempts),
		slog.Bool("fallback", res.Fallback),
		slog.Int("replacements", len(res.Replacements)),
		slog.Duration("duration", elapsed))
	return res, nil
}

// propose asks the configured proposer, falling back to the local proposer
// when it errors or returns nothing usable.
func (g *Generator) propose(ctx context.Context, pool loadout.Pool, role string, logger *slog.Logger) loadout.Loadout {
	p, err := g.proposer.Propose(ctx, pool, role)
	switch {
	case err != nil:
		g.metrics.RecordProposerFailure("error")
		logger.Warn("proposer failed, using local proposer", slog.String("error", err.Error()))
	case !p.Parsed:
		g.metrics.RecordProposerFailure("unparsed")
		logger.Warn("proposer returned no usable selection, using local proposer")
	default:
		return p.Loadout
	}
	if g.proposer == g.local {
		return p.Loadout
	}
	p, _ = g.local.Propose(ctx, pool, role)
	return p.Loadout
}

// enforce repairs rule violations, replaces overused items and repairs again.
func (g *Generator) enforce(l loadout.Loadout, pool loadout.Pool, past []loadout.Loadout, role string) (loadout.Loadout, []loadout.Replacement) {
	if loadout.NeedsFix(l) {
		g.metrics.RecordRepair(observability.StageProposal)
		l = loadout.Repair(l, pool, role)
	}
	l, replaced := loadout.ReplaceOverused(l, pool, past, role, g.cfg.MaxDupes)
	for _, r := range replaced {
		g.metrics.RecordReplacement(r.Kind)
	}
	if loadout.NeedsFix(l) {
		g.metrics.RecordRepair(observability.StageUsage)
		l = loadout.Repair(l, pool, role)
	}
	return l, replaced
}

// narrate returns briefing text, falling back to the static narrator.
func (g *Generator) narrate(ctx context.Context, l loadout.Loadout, role, enemy string, logger *slog.Logger) loadout.Narrative {
	used, err := history.UsedNames(ctx, "", g.store, g.backup)
	if err != nil {
		logger.Warn("could not list used names", slog.String("error", err.Error()))
		used = map[string]struct{}{}
	}
	n, err := g.narrator.Narrate(ctx, l, role, enemy, used)
	if err == nil {
		return n
	}
	g.metrics.RecordNarratorFallback()
	logger.Warn("narrator failed, using static narration", slog.String("error", err.Error()))
	n, _ = proposer.StaticNarrator{}.Narrate(ctx, l, role, enemy, used)
	return n
}

// =============================================================================
// Cached reads and background refresh
// =============================================================================

// Cached returns the stored loadout for role and enemy, reading the backup
// when the live store has no valid entry.
func (g *Generator) Cached(ctx context.Context, role, enemy string) (history.Entry, error) {
	repo := g.store
	if g.backup != nil {
		repo = &history.Layered{Primary: g.store, Backup: g.backup}
	}
	return repo.Get(ctx, loadout.Key(role, enemy))
}

// Refresh starts a generation for role and enemy in the background. The
// generation outlives ctx's cancellation but keeps its values. Wait blocks
// until every refresh has finished.
func (g *Generator) Refresh(ctx context.Context, role, enemy string) {
	ctx = context.WithoutCancel(ctx)
	g.background.Add(1)
	go func() {
		defer g.background.Done()
		if _, err := g.Generate(ctx, role, enemy); err != nil {
			g.logger.Error("background refresh failed",
				slog.String("key", loadout.Key(role, enemy)),
				slog.String("error", err.Error()))
		}
	}()
}

// Wait blocks until all background refreshes and detached generations have
// returned.
func (g *Generator) Wait() {
	g.background.Wait()
}

// =============================================================================
// Warm-up and reports
// =============================================================================

// WarmAll generates a loadout for every role and enemy key that has no valid
// live entry. At most Config.WarmConcurrency generations run at once.
func (g *Generator) WarmAll(ctx context.Context) ([]Result, error) {
	ctx, span := tracer.Start(ctx, "generator.warm_all")
	defer span.End()

	entries, err := g.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}

	var (
		mu      sync.Mutex
		results []Result
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.WarmConcurrency)
	for _, key := range loadout.Keys() {
		if entries[key].IsValid() {
			continue
		}
		role, enemy := loadout.SplitKey(key)
		eg.Go(func() error {
			res, err := g.Generate(egCtx, role, enemy)
			if err != nil {
				return fmt.Errorf("warming %s: %w", key, err)
			}
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "warm failed")
		return results, err
	}
	span.SetAttributes(attribute.Int("warm.generated", len(results)))
	g.logger.Info("history warmed", slog.Int("generated", len(results)))
	return results, nil
}

// UsageReport counts every item across the live history.
func (g *Generator) UsageReport(ctx context.Context) ([]loadout.UsageCount, error) {
	entries, err := g.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	return loadout.UsageReport(history.Loadouts(entries)), nil
}
