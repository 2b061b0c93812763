// Package takestep provides perturbation strategies for the basin hopping
// driver.
package takestep

import "math/rand"

// RandomDisplacement kicks every coordinate by a uniform draw from
// [-stepsize, stepsize]. Each instance owns its random source.
type RandomDisplacement struct {
	stepsize float64
	rng      *rand.Rand
}

// NewRandomDisplacement creates a displacement with the given stepsize and a
// private seeded random source.
func NewRandomDisplacement(stepsize float64, seed int64) *RandomDisplacement {
	return &RandomDisplacement{
		stepsize: stepsize,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// Step implements the bh.TakeStep contract, perturbing coords in place.
func (s *RandomDisplacement) Step(coords []float64) {
	for i := range coords {
		coords[i] += s.stepsize * (2*s.rng.Float64() - 1)
	}
}

// Stepsize returns the current displacement magnitude.
func (s *RandomDisplacement) Stepsize() float64 { return s.stepsize }

// SetStepsize changes the displacement magnitude.
func (s *RandomDisplacement) SetStepsize(v float64) { s.stepsize = v }
