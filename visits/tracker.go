// Package visits tracks per-state visit counts and derives adaptive
// exploration signals from them: an exploration bonus that shrinks with
// familiarity, optional per-state epsilon and learning-rate multipliers, and
// a visit priority that favors under-explored states.
package visits

import (
	"errors"
	"math"
)

// Options controls the adaptive behavior of a Tracker.
type Options struct {
	AdaptiveEpsilon      bool    // scale exploration rate per state
	AdaptiveLearningRate bool    // scale learning rate per state
	MinBonus             float64 // floor for the exploration bonus
	BonusDecay           float64 // multiplicative decay applied by DecayBonuses
}

// DefaultOptions returns the standard tracker settings.
func DefaultOptions() Options {
	return Options{
		AdaptiveEpsilon:      true,
		AdaptiveLearningRate: true,
		MinBonus:             0.01,
		BonusDecay:           0.99,
	}
}

var ErrBadStateCount = errors.New("visits: state count must be positive")

// Tracker holds the per-state visit statistics. All derived values start at
// the neutral 1.0 so an untouched tracker neither boosts nor dampens
// anything.
type Tracker struct {
	counts     []int
	bonuses    []float64
	stateEps   []float64
	stateLR    []float64
	priorities []float64

	totalVisits int
	opts        Options
}

// NewTracker creates a tracker for the given number of states.
func NewTracker(states int, opts Options) (*Tracker, error) {
	if states <= 0 {
		return nil, ErrBadStateCount
	}
	t := &Tracker{
		counts:     make([]int, states),
		bonuses:    make([]float64, states),
		stateEps:   make([]float64, states),
		stateLR:    make([]float64, states),
		priorities: make([]float64, states),
		opts:       opts,
	}
	t.Reset()
	return t, nil
}

// States returns the tracked state count.
func (t *Tracker) States() int { return len(t.counts) }

// TotalVisits returns the sum of all recorded visits.
func (t *Tracker) TotalVisits() int { return t.totalVisits }

// VisitCount returns the visit count for a state, 0 for out-of-range.
func (t *Tracker) VisitCount(state int) int {
	if state < 0 || state >= len(t.counts) {
		return 0
	}
	return t.counts[state]
}

// RecordVisit registers one visit: the count increments, the exploration
// bonus becomes max(minBonus, 1/sqrt(count+1)), the adaptive multipliers
// follow it when enabled, and all visit priorities are recalculated.
func (t *Tracker) RecordVisit(state int) {
	if state < 0 || state >= len(t.counts) {
		return
	}
	t.counts[state]++
	t.totalVisits++

	bonus := math.Max(t.opts.MinBonus, 1.0/math.Sqrt(float64(t.counts[state]+1)))
	t.bonuses[state] = bonus
	if t.opts.AdaptiveEpsilon {
		t.stateEps[state] = bonus
	}
	if t.opts.AdaptiveLearningRate {
		t.stateLR[state] = math.Min(2.0, 1.0+bonus)
	}

	t.RecalculatePriorities()
}

// RecalculatePriorities rebuilds every state's visit priority from the
// min/max-normalized counts: priority = (1 - normalized) + bonus, so
// less-visited states strictly win. When every count is equal the
// normalization degenerates and all priorities fall back to the uniform 1.0
// plus bonus.
func (t *Tracker) RecalculatePriorities() {
	lo, hi := t.counts[0], t.counts[0]
	for _, c := range t.counts[1:] {
		if c < lo {
			lo = c
		}
		if c > hi {
			hi = c
		}
	}

	if lo == hi {
		for i := range t.priorities {
			t.priorities[i] = 1.0
		}
		return
	}

	span := float64(hi - lo)
	for i := range t.priorities {
		norm := float64(t.counts[i]-lo) / span
		t.priorities[i] = (1.0 - norm) + t.bonuses[i]
	}
}

// ExplorationBonus returns the current bonus for a state, 0 for out-of-range.
func (t *Tracker) ExplorationBonus(state int) float64 {
	if state < 0 || state >= len(t.bonuses) {
		return 0
	}
	return t.bonuses[state]
}

// VisitPriority returns the current priority for a state, 0 for out-of-range.
func (t *Tracker) VisitPriority(state int) float64 {
	if state < 0 || state >= len(t.priorities) {
		return 0
	}
	return t.priorities[state]
}

// StateEpsilon applies the per-state epsilon multiplier to a base rate.
// With adaptive epsilon disabled the base passes through unchanged.
func (t *Tracker) StateEpsilon(state int, base float64) float64 {
	if !t.opts.AdaptiveEpsilon || state < 0 || state >= len(t.stateEps) {
		return base
	}
	return base * t.stateEps[state]
}

// StateLearningRate applies the per-state learning-rate multiplier to a base
// rate. With adaptive learning rate disabled the base passes through.
func (t *Tracker) StateLearningRate(state int, base float64) float64 {
	if !t.opts.AdaptiveLearningRate || state < 0 || state >= len(t.stateLR) {
		return base
	}
	return base * t.stateLR[state]
}

// LearningRateMultiplier returns the raw per-state multiplier.
func (t *Tracker) LearningRateMultiplier(state int) float64 {
	if state < 0 || state >= len(t.stateLR) {
		return 1.0
	}
	return t.stateLR[state]
}

// EpsilonMultiplier returns the raw per-state multiplier.
func (t *Tracker) EpsilonMultiplier(state int) float64 {
	if state < 0 || state >= len(t.stateEps) {
		return 1.0
	}
	return t.stateEps[state]
}

// DecayBonuses multiplies every bonus by the decay factor, floored at the
// minimum bonus.
func (t *Tracker) DecayBonuses() {
	for i := range t.bonuses {
		t.bonuses[i] = math.Max(t.opts.MinBonus, t.bonuses[i]*t.opts.BonusDecay)
	}
}

// SelectPriorityState returns the state with the highest visit priority,
// ties broken by lowest index.
func (t *Tracker) SelectPriorityState() int {
	best := 0
	for i := 1; i < len(t.priorities); i++ {
		if t.priorities[i] > t.priorities[best] {
			best = i
		}
	}
	return best
}

// ExplorationCoverage returns the fraction of states visited at least once.
func (t *Tracker) ExplorationCoverage() float64 {
	visited := 0
	for _, c := range t.counts {
		if c > 0 {
			visited++
		}
	}
	return float64(visited) / float64(len(t.counts))
}

// LeastVisitedState returns the state with the fewest visits, lowest index
// on ties.
func (t *Tracker) LeastVisitedState() int {
	best := 0
	for i := 1; i < len(t.counts); i++ {
		if t.counts[i] < t.counts[best] {
			best = i
		}
	}
	return best
}

// MostVisitedState returns the state with the most visits, lowest index on
// ties.
func (t *Tracker) MostVisitedState() int {
	best := 0
	for i := 1; i < len(t.counts); i++ {
		if t.counts[i] > t.counts[best] {
			best = i
		}
	}
	return best
}

// Reset restores every state to the untouched defaults: zero counts,
// neutral 1.0 bonuses, multipliers and priorities.
func (t *Tracker) Reset() {
	t.totalVisits = 0
	for i := range t.counts {
		t.counts[i] = 0
		t.bonuses[i] = 1.0
		t.stateEps[i] = 1.0
		t.stateLR[i] = 1.0
		t.priorities[i] = 1.0
	}
}
