package takestep

import "log/slog"

// Stepper is the mutable-stepsize surface AdaptiveStepsize drives.
type Stepper interface {
	Stepsize() float64
	SetStepsize(float64)
}

// AdaptiveStepsize tunes a displacement toward a target acceptance ratio. It
// plugs into the driver as an observer: every interval steps the window's
// acceptance ratio is compared against the target, and the stepsize is shrunk
// when too few steps are accepted or grown when too many are.
type AdaptiveStepsize struct {
	step Stepper

	// TargetRatio is the acceptance ratio to steer toward.
	TargetRatio float64

	// Interval is the adjustment window in steps.
	Interval int

	// Factor is the multiplicative adjustment, in (0, 1).
	Factor float64

	nsteps  int
	naccept int
}

// NewAdaptiveStepsize wraps step with the conventional 0.5 target, window of
// 100 steps, and 0.9 factor.
func NewAdaptiveStepsize(step Stepper) *AdaptiveStepsize {
	return &AdaptiveStepsize{
		step:        step,
		TargetRatio: 0.5,
		Interval:    100,
		Factor:      0.9,
	}
}

// Notify implements the bh.Observer contract.
func (a *AdaptiveStepsize) Notify(_ float64, _ []float64, accepted bool) {
	a.nsteps++
	if accepted {
		a.naccept++
	}
	if a.nsteps%a.Interval == 0 {
		a.adjust()
	}
}

func (a *AdaptiveStepsize) adjust() {
	ratio := float64(a.naccept) / float64(a.nsteps)
	old := a.step.Stepsize()
	if ratio < a.TargetRatio {
		a.step.SetStepsize(old * a.Factor)
	} else {
		a.step.SetStepsize(old / a.Factor)
	}
	slog.Debug("adjusted stepsize",
		"acceptance_ratio", ratio,
		"target", a.TargetRatio,
		"old_stepsize", old,
		"new_stepsize", a.step.Stepsize(),
	)
	a.nsteps = 0
	a.naccept = 0
}
