package bh

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
)

// Driver runs the basin hopping Markov chain. It is the only component that
// holds state across steps: the currently accepted configuration, its energy,
// and the step counter.
//
// A Driver is not safe for concurrent use. Each concurrent chain needs its
// own Driver and its own accept-test/observer instances.
type Driver struct {
	pot      Potential
	takeStep TakeStep
	quench   Quencher

	acceptTests []AcceptTest
	observers   []Observer
	storage     Storage
	onDiverged  DivergencePolicy

	coords  []float64
	markovE float64
	stepNum int

	rms       float64
	funcCalls int
}

// New constructs a Driver and establishes the initial Markov state: the raw
// starting energy is evaluated and stored, then the starting configuration is
// quenched and the quenched point becomes the first link of the chain.
//
// Unless WithoutMetropolis is given, a Metropolis criterion parameterized by
// WithTemperature is appended after any caller-supplied accept tests. The
// starting coords and all option-supplied collections are copied, never
// aliased.
func New(coords []float64, pot Potential, takeStep TakeStep, quench Quencher, opts ...Option) (*Driver, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	d := &Driver{
		pot:         pot,
		takeStep:    takeStep,
		quench:      quench,
		acceptTests: slices.Clone(cfg.acceptTests),
		observers:   slices.Clone(cfg.observers),
		storage:     cfg.storage,
		onDiverged:  cfg.onDiverged,
		coords:      slices.Clone(coords),
	}

	if !cfg.noMetropolis {
		metrop := NewMetropolis(cfg.temperature, cfg.seed)
		d.acceptTests = append(d.acceptTests, metrop.Accept)
	}

	e0, err := pot.Energy(d.coords)
	if err != nil {
		return nil, &InitialStateError{Err: &PotentialError{Err: err}}
	}
	slog.Info("initial energy", "energy", e0)
	if d.storage != nil {
		d.storage(e0, d.coords)
	}

	res, err := d.quench(d.coords, d.energyGradient)
	if err != nil {
		return nil, &InitialStateError{Err: err}
	}
	d.coords = res.Coords
	d.markovE = res.Energy
	d.rms = res.RMS
	d.funcCalls = res.FuncCalls

	slog.Info("initial quench",
		"step", d.stepNum,
		"energy", res.Energy,
		"quench_steps", res.FuncCalls,
		"rms", res.RMS,
	)
	if d.storage != nil {
		d.storage(d.markovE, d.coords)
	}

	return d, nil
}

// Run executes exactly nsteps basin hopping steps. It may be called multiple
// times; the Markov state and step numbering persist across calls, which is
// how callers interleave checkpointing or cancellation checks with hopping.
//
// On error the chain is left exactly as it was before the failing step.
func (d *Driver) Run(nsteps int) error {
	for i := 0; i < nsteps; i++ {
		d.stepNum++
		accepted, res, err := d.mcStep()
		if err != nil {
			return fmt.Errorf("step %d: %w", d.stepNum, err)
		}

		slog.Debug("step",
			"step", d.stepNum,
			"energy", res.Energy,
			"quench_steps", res.FuncCalls,
			"rms", res.RMS,
			"markov_energy", d.markovE,
			"accepted", accepted,
		)

		if accepted {
			d.coords = res.Coords
			d.markovE = res.Energy
			if d.storage != nil {
				d.storage(d.markovE, d.coords)
			}
		}

		for _, obs := range d.observers {
			obs(d.markovE, d.coords, accepted)
		}
	}
	return nil
}

// mcStep produces one candidate and decides acceptance. It holds no state of
// its own: the candidate is a function only of the current Markov point.
func (d *Driver) mcStep() (bool, QuenchResult, error) {
	// The perturbation must never touch the Markov configuration, so a
	// failed or rejected step leaves the chain intact.
	working := slices.Clone(d.coords)
	d.takeStep(working)

	res, err := d.quench(working, d.energyGradient)
	if err != nil {
		var diverged *QuenchDivergedError
		if d.onDiverged == DivergenceReject && errors.As(err, &diverged) {
			d.rms = diverged.RMS
			d.funcCalls = diverged.FuncCalls
			return false, res, nil
		}
		return false, res, err
	}
	d.rms = res.RMS
	d.funcCalls = res.FuncCalls

	// Every test runs even after a false result: tests may carry
	// per-step internal state (e.g. an adaptive thermostat).
	accepted := true
	for _, test := range d.acceptTests {
		if !test(d.markovE, res.Energy, res.Coords) {
			accepted = false
		}
	}
	return accepted, res, nil
}

func (d *Driver) energyGradient(coords []float64) (float64, []float64, error) {
	e, g, err := d.pot.EnergyGradient(coords)
	if err != nil {
		return 0, nil, &PotentialError{Err: err}
	}
	return e, g, nil
}

// Coords returns a copy of the current Markov configuration.
func (d *Driver) Coords() []float64 { return slices.Clone(d.coords) }

// MarkovEnergy returns the energy of the current Markov configuration.
func (d *Driver) MarkovEnergy() float64 { return d.markovE }

// Steps returns the total number of steps taken across all Run calls.
func (d *Driver) Steps() int { return d.stepNum }

// LastQuench returns the residual and evaluation count of the most recent
// quench, for reporting.
func (d *Driver) LastQuench() (rms float64, funcCalls int) {
	return d.rms, d.funcCalls
}
