// Package bh implements the basin hopping global-optimization driver: a
// Markov chain over local minima built from a perturbation step, a local
// minimization ("quench"), and a set of accept/reject predicates.
package bh

// Potential evaluates the energy of a configuration. Implementations must
// treat the coords slice as read-only.
type Potential interface {
	// Energy returns the potential energy at coords.
	Energy(coords []float64) (float64, error)

	// EnergyGradient returns the energy and its gradient at coords.
	// The returned gradient is a fresh slice owned by the caller.
	EnergyGradient(coords []float64) (float64, []float64, error)
}

// GradientFunc is the combined energy+gradient evaluator handed to quench
// routines.
type GradientFunc func(coords []float64) (float64, []float64, error)

// TakeStep perturbs a configuration in place. The driver always passes a
// working copy, never its own Markov configuration.
type TakeStep func(coords []float64)

// QuenchResult is the output of a local minimization.
type QuenchResult struct {
	// Coords is the minimized configuration. Quenchers return a fresh
	// slice that does not alias their input.
	Coords []float64

	// Energy is the potential energy at Coords.
	Energy float64

	// RMS is the root-mean-square gradient at termination.
	RMS float64

	// FuncCalls is the number of energy/gradient evaluations used.
	FuncCalls int
}

// Quencher minimizes coords to a nearby local minimum using grad. A quencher
// that exhausts its iteration budget returns its best iterate together with a
// *QuenchDivergedError so the driver can still report it.
type Quencher func(coords []float64, grad GradientFunc) (QuenchResult, error)

// AcceptTest decides whether a quenched candidate continues the Markov chain.
// Tests run in registration order and all must return true for acceptance.
// A test must not mutate coords but may carry its own internal state.
type AcceptTest func(eOld, eNew float64, coords []float64) bool

// Observer is called once per step, after the accept/reject decision and any
// state mutation, with the current Markov energy and configuration. Observers
// must not mutate coords.
type Observer func(markovE float64, coords []float64, accepted bool)

// Storage receives every committed Markov state: once for the raw starting
// configuration, once after the initial quench, and once per accepted step.
type Storage func(energy float64, coords []float64)
