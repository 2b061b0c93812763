package bh

import (
	"log/slog"
	"math"
)

// StagnationTracker watches the Markov energy of a hopping chain and detects
// when the search has gone stale: no significant new low for Patience steps.
// Callers feed it through Notify (it satisfies the Observer contract) and
// poll Stale between batches to stop early.
//
// Improvement is measured in absolute energy units rather than relatively,
// since energies are routinely negative.
type StagnationTracker struct {
	// Patience is the number of steps without significant improvement
	// before the chain is considered stale.
	Patience int

	// MinImprovement is the energy decrease required to count as progress.
	MinImprovement float64

	bestEnergy      float64
	lastSignificant float64
	staleCount      int
	stale           bool
	seen            bool
}

// NewStagnationTracker returns a tracker that reports staleness after
// patience steps without an energy decrease of at least minImprovement.
func NewStagnationTracker(patience int, minImprovement float64) *StagnationTracker {
	return &StagnationTracker{
		Patience:        patience,
		MinImprovement:  minImprovement,
		bestEnergy:      math.Inf(1),
		lastSignificant: math.Inf(1),
	}
}

// Notify implements the Observer contract: it records the step's Markov
// energy and updates the staleness state.
func (t *StagnationTracker) Notify(markovE float64, _ []float64, _ bool) {
	if t.Patience <= 0 {
		return
	}

	if markovE < t.bestEnergy {
		t.bestEnergy = markovE
	}

	if !t.seen {
		t.seen = true
		t.lastSignificant = markovE
		return
	}

	if t.lastSignificant-markovE >= t.MinImprovement {
		t.lastSignificant = markovE
		t.staleCount = 0
		return
	}

	t.staleCount++
	if t.staleCount >= t.Patience && !t.stale {
		t.stale = true
		slog.Info("Chain stagnated, eligible for early stop",
			"stale_steps", t.staleCount,
			"patience", t.Patience,
			"best_energy", t.bestEnergy,
		)
	}
}

// Stale reports whether the chain has gone Patience steps without
// significant improvement.
func (t *StagnationTracker) Stale() bool { return t.stale }

// BestEnergy returns the lowest Markov energy seen so far.
func (t *StagnationTracker) BestEnergy() float64 { return t.bestEnergy }

// StaleCount returns the current number of steps without improvement.
func (t *StagnationTracker) StaleCount() int { return t.staleCount }

// Reset clears the tracker's state.
func (t *StagnationTracker) Reset() {
	t.bestEnergy = math.Inf(1)
	t.lastSignificant = math.Inf(1)
	t.staleCount = 0
	t.stale = false
	t.seen = false
}
