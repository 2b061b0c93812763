package bh

import (
	"math"
	"math/rand"
)

// Metropolis is the thermal accept/reject criterion. A candidate with lower
// or equal energy is always accepted; a higher-energy candidate is accepted
// with probability exp(-dE/T).
//
// Each instance owns its own random source, so concurrent chains using
// separate instances do not interfere.
type Metropolis struct {
	temperature float64
	rng         *rand.Rand
}

// NewMetropolis creates a Metropolis criterion with the given temperature,
// seeding a private random source.
func NewMetropolis(temperature float64, seed int64) *Metropolis {
	return &Metropolis{
		temperature: temperature,
		rng:         rand.New(rand.NewSource(seed)),
	}
}

// Accept implements the AcceptTest contract.
func (m *Metropolis) Accept(eOld, eNew float64, _ []float64) bool {
	if eNew <= eOld {
		return true
	}
	return m.rng.Float64() < math.Exp(-(eNew-eOld)/m.temperature)
}

// Temperature returns the criterion's temperature.
func (m *Metropolis) Temperature() float64 { return m.temperature }
