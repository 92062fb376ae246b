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
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

// Weight converts a score into a draw weight: max(0.5, score^1.2).
// Non-positive scores weigh 0.5.
func Weight(score float64) float64 {
	if score <= 0 {
		return 0.5
	}
	return math.Max(0.5, math.Pow(score, 1.2))
}

// Sampler draws weighted samples without replacement.
//
// # Description
//
// After each accepted draw the remaining weights are adjusted for variety:
// a low scorer (<= 6) boosts the remaining high scorers (>= 9) by 1.5x, and a
// high scorer (>= 9) boosts the remaining mid scorers (7..8) by 1.3x.
//
// # Thread Safety
//
// Safe for concurrent use.
type Sampler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSampler creates a sampler. A zero seed seeds from the clock.
func NewSampler(seed uint64) *Sampler {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Sampler{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Sample draws up to count distinct items.
func (s *Sampler) Sample(items []Item, count int) []Item {
	return s.draw(items, count, nil)
}

// SampleStratagems draws up to StratagemPoolSize stratagems, discarding
// non-disposable Support and Backpack items once StratagemCategoryCap of
// each were accepted.
func (s *Sampler) SampleStratagems(items []Item) []Item {
	supports, backpacks := 0, 0
	return s.draw(items, StratagemPoolSize, func(it Item) bool {
		support, backpack := IsSupport(it), IsBackpack(it)
		if (support && supports >= StratagemCategoryCap) || (backpack && backpacks >= StratagemCategoryCap) {
			return false
		}
		if support {
			supports++
		}
		if backpack {
			backpacks++
		}
		return true
	})
}

// PickIndex returns an index into weights chosen proportionally, or -1 when
// no weight is positive.
func (s *Sampler) PickIndex(weights []float64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pick(weights)
}

func (s *Sampler) pick(weights []float64) int {
	var total float64
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return -1
	}
	r := s.rng.Float64() * total
	for i, w := range weights {
		r -= w
		if r < 0 {
			return i
		}
	}
	return len(weights) - 1
}

// draw is the shared draw loop. A rejected item is removed from the pool
// without reweighting.
func (s *Sampler) draw(items []Item, count int, accept func(Item) bool) []Item {
	if count <= 0 || len(items) == 0 {
		return nil
	}

	remaining := append([]Item(nil), items...)
	weights := make([]float64, len(remaining))
	for i, it := range remaining {
		weights[i] = Weight(it.Score)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Item, 0, min(count, len(items)))
	for len(remaining) > 0 && len(out) < count {
		idx := s.pick(weights)
		if idx < 0 {
			break
		}
		picked := remaining[idx]
		remaining = append(remaining[:idx], remaining[idx+1:]...)
		weights = append(weights[:idx], weights[idx+1:]...)

		if accept != nil && !accept(picked) {
			continue
		}
		out = append(out, picked)
		reweight(remaining, weights, picked.Score)
	}
	return out
}

func reweight(remaining []Item, weights []float64, drawn float64) {
	switch {
	case drawn <= 6:
		for i, it := range remaining {
			if it.Score >= 9 {
				weights[i] *= 1.5
			}
		}
	case drawn >= 9:
		for i, it := range remaining {
			if it.Score >= 7 && it.Score <= 8 {
				weights[i] *= 1.3
			}
		}
	}
}
