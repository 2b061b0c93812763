package bh

import "fmt"

// InitialStateError is returned by New when the starting configuration cannot
// be evaluated or quenched. The driver cannot proceed without an initial
// quenched Markov state.
type InitialStateError struct {
	Err error
}

func (e *InitialStateError) Error() string {
	return "invalid initial state: " + e.Err.Error()
}

func (e *InitialStateError) Unwrap() error { return e.Err }

// PotentialError wraps a failure from an energy or gradient evaluation. It is
// fatal to the Run call that encounters it.
type PotentialError struct {
	Err error
}

func (e *PotentialError) Error() string {
	return "potential evaluation: " + e.Err.Error()
}

func (e *PotentialError) Unwrap() error { return e.Err }

// QuenchDivergedError reports a quench that exhausted its iteration budget
// before reaching its convergence tolerance.
type QuenchDivergedError struct {
	RMS       float64
	FuncCalls int
}

func (e *QuenchDivergedError) Error() string {
	return fmt.Sprintf("quench did not converge after %d evaluations (rms %g)", e.FuncCalls, e.RMS)
}
