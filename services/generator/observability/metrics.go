// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for loadout generation.
//
// # Description
//
// Metrics include:
//   - Generation counters by outcome and a duration histogram
//   - Reroll, repair and usage replacement counters
//   - Proposer and narrator failure counters
//
// # Integration
//
// Metrics are registered on the registry passed to NewMetrics and exposed
// via the server's /metrics endpoint.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
// A nil *Metrics is valid and records nothing.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "loadoutforge"

// Subsystem for generator metrics
const generatorSubsystem = "generator"

// Metrics holds the generator's Prometheus collectors.
type Metrics struct {
	// GenerationsTotal counts finished generations.
	// Labels: outcome (accepted, fallback, error)
	GenerationsTotal *prometheus.CounterVec

	// RerollsTotal counts proposals rejected by the novelty guard.
	RerollsTotal prometheus.Counter

	// RepairsTotal counts solver runs.
	// Labels: stage (proposal, usage)
	RepairsTotal *prometheus.CounterVec

	// UsageReplacementsTotal counts items swapped out for overuse.
	// Labels: kind (gear, stratagem)
	UsageReplacementsTotal *prometheus.CounterVec

	// ProposerFailuresTotal counts proposer errors and unparsed proposals.
	// Labels: reason (error, unparsed)
	ProposerFailuresTotal *prometheus.CounterVec

	// NarratorFallbacksTotal counts narrations served by the static narrator
	// after the primary narrator failed.
	NarratorFallbacksTotal prometheus.Counter

	// NonconformantTotal counts committed loadouts that still break a rule
	// because the pool could not satisfy it.
	NonconformantTotal prometheus.Counter

	// GenerationDurationSeconds measures end-to-end generation time.
	// Labels: outcome
	GenerationDurationSeconds *prometheus.HistogramVec
}

// Outcome labels for GenerationsTotal.
const (
	OutcomeAccepted = "accepted"
	OutcomeFallback = "fallback"
	OutcomeError    = "error"
)

// Repair stages for RepairsTotal.
const (
	StageProposal = "proposal"
	StageUsage    = "usage"
)

// NewMetrics creates and registers the generator metrics on reg.
//
// # Limitations
//
//   - Panics if the same registry receives the metrics twice.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		GenerationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: generatorSubsystem,
				Name:      "generations_total",
				Help:      "Total loadout generations by outcome",
			},
			[]string{"outcome"},
		),

		RerollsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: generatorSubsystem,
			Name:      "rerolls_total",
			Help:      "Proposals rejected for being too similar to the previous loadout",
		}),

		RepairsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: generatorSubsystem,
				Name:      "repairs_total",
				Help:      "Constraint solver runs by stage",
			},
			[]string{"stage"},
		),

		UsageReplacementsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: generatorSubsystem,
				Name:      "usage_replacements_total",
				Help:      "Items replaced for overuse by kind",
			},
			[]string{"kind"},
		),

		ProposerFailuresTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: generatorSubsystem,
				Name:      "proposer_failures_total",
				Help:      "Proposer errors and unparsed proposals",
			},
			[]string{"reason"},
		),

		NarratorFallbacksTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: generatorSubsystem,
			Name:      "narrator_fallbacks_total",
			Help:      "Narrations served by the static narrator after a failure",
		}),

		NonconformantTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: generatorSubsystem,
			Name:      "nonconformant_total",
			Help:      "Committed loadouts that still violate a rule",
		}),

		GenerationDurationSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: generatorSubsystem,
				Name:      "generation_duration_seconds",
				Help:      "End-to-end generation duration in seconds",
				Buckets:   []float64{0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"outcome"},
		),
	}
}

// =============================================================================
// Helper Methods
// =============================================================================

// RecordGeneration records a finished generation and its duration.
func (m *Metrics) RecordGeneration(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.GenerationsTotal.WithLabelValues(outcome).Inc()
	m.GenerationDurationSeconds.WithLabelValues(outcome).Observe(seconds)
}

// RecordReroll counts one novelty rejection.
func (m *Metrics) RecordReroll() {
	if m == nil {
		return
	}
	m.RerollsTotal.Inc()
}

// RecordRepair counts one solver run at stage.
func (m *Metrics) RecordRepair(stage string) {
	if m == nil {
		return
	}
	m.RepairsTotal.WithLabelValues(stage).Inc()
}

// RecordReplacement counts one overuse replacement of kind.
func (m *Metrics) RecordReplacement(kind string) {
	if m == nil {
		return
	}
	m.UsageReplacementsTotal.WithLabelValues(kind).Inc()
}

// RecordProposerFailure counts one proposer failure. reason is "error" or
// "unparsed".
func (m *Metrics) RecordProposerFailure(reason string) {
	if m == nil {
		return
	}
	m.ProposerFailuresTotal.WithLabelValues(reason).Inc()
}

// RecordNarratorFallback counts one static narration after a failure.
func (m *Metrics) RecordNarratorFallback() {
	if m == nil {
		return
	}
	m.NarratorFallbacksTotal.Inc()
}

// RecordNonconformant counts one committed loadout that breaks a rule.
func (m *Metrics) RecordNonconformant() {
	if m == nil {
		return
	}
	m.NonconformantTotal.Inc()
}
