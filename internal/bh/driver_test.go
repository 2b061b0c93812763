package bh

import (
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// quadratic is the 2D bowl E(x,y) = x^2 + y^2 extended to any dimension.
type quadratic struct{}

func (quadratic) Energy(x []float64) (float64, error) {
	var e float64
	for _, v := range x {
		e += v * v
	}
	return e, nil
}

func (quadratic) EnergyGradient(x []float64) (float64, []float64, error) {
	g := make([]float64, len(x))
	var e float64
	for i, v := range x {
		e += v * v
		g[i] = 2 * v
	}
	return e, g, nil
}

// identityQuench returns its input unchanged with the potential's energy,
// residual 0.
func identityQuench(coords []float64, grad GradientFunc) (QuenchResult, error) {
	e, _, err := grad(coords)
	if err != nil {
		return QuenchResult{}, err
	}
	return QuenchResult{Coords: slices.Clone(coords), Energy: e}, nil
}

func descentOnly(eOld, eNew float64, _ []float64) bool { return eNew <= eOld }

func fixedStep(dx, dy float64) TakeStep {
	return func(coords []float64) {
		coords[0] += dx
		coords[1] += dy
	}
}

func noStep(coords []float64) {}

func TestNewEstablishesInitialMarkovState(t *testing.T) {
	d, err := New([]float64{3, 4}, quadratic{}, noStep, identityQuench)
	require.NoError(t, err)

	assert.Equal(t, []float64{3, 4}, d.Coords())
	assert.Equal(t, 25.0, d.MarkovEnergy())
	assert.Equal(t, 0, d.Steps())
}

func TestNewCopiesStartingCoords(t *testing.T) {
	start := []float64{1, 2}
	d, err := New(start, quadratic{}, noStep, identityQuench)
	require.NoError(t, err)

	start[0] = 99
	assert.Equal(t, []float64{1, 2}, d.Coords())
}

func TestUphillStepRejectedByDescentTest(t *testing.T) {
	d, err := New([]float64{0, 0}, quadratic{}, fixedStep(1, 0), identityQuench,
		WithoutMetropolis(), WithAcceptTest(descentOnly))
	require.NoError(t, err)
	require.Equal(t, 0.0, d.MarkovEnergy())

	require.NoError(t, d.Run(1))

	// Candidate (1,0) has energy 1 > 0 and must not replace the chain.
	assert.Equal(t, []float64{0, 0}, d.Coords())
	assert.Equal(t, 0.0, d.MarkovEnergy())
}

func TestDownhillStepAccepted(t *testing.T) {
	d, err := New([]float64{0.5, 0}, quadratic{}, fixedStep(-0.1, 0), identityQuench,
		WithoutMetropolis(), WithAcceptTest(descentOnly))
	require.NoError(t, err)

	require.NoError(t, d.Run(1))

	assert.InDelta(t, 0.4, d.Coords()[0], 1e-12)
	assert.InDelta(t, 0.16, d.MarkovEnergy(), 1e-12)
}

func TestAlwaysRejectLeavesStateUntouched(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	step := func(coords []float64) {
		for i := range coords {
			coords[i] += rng.Float64() - 0.5
		}
	}
	alwaysReject := func(_, _ float64, _ []float64) bool { return false }

	d, err := New([]float64{1, 2, 3}, quadratic{}, step, identityQuench,
		WithoutMetropolis(), WithAcceptTest(alwaysReject))
	require.NoError(t, err)

	before := d.Coords()
	beforeE := d.MarkovEnergy()

	require.NoError(t, d.Run(25))

	assert.Equal(t, before, d.Coords())
	assert.Equal(t, beforeE, d.MarkovEnergy())
}

func TestMonotoneDescentUnderDeterministicPredicate(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	step := func(coords []float64) {
		for i := range coords {
			coords[i] += 0.3 * (2*rng.Float64() - 1)
		}
	}

	var energies []float64
	observer := func(markovE float64, _ []float64, _ bool) {
		energies = append(energies, markovE)
	}

	d, err := New([]float64{2, -2, 1}, quadratic{}, step, identityQuench,
		WithoutMetropolis(), WithAcceptTest(descentOnly), WithObserver(observer))
	require.NoError(t, err)

	require.NoError(t, d.Run(100))

	require.Len(t, energies, 100)
	for i := 1; i < len(energies); i++ {
		assert.LessOrEqual(t, energies[i], energies[i-1], "markov energy rose at step %d", i)
	}
}

func TestStorageCallCount(t *testing.T) {
	var calls int
	storage := func(float64, []float64) { calls++ }

	var accepted int
	observer := func(_ float64, _ []float64, ok bool) {
		if ok {
			accepted++
		}
	}

	rng := rand.New(rand.NewSource(3))
	step := func(coords []float64) {
		for i := range coords {
			coords[i] += 2*rng.Float64() - 1
		}
	}

	d, err := New([]float64{1, 1}, quadratic{}, step, identityQuench,
		WithTemperature(1.0), WithSeed(5),
		WithStorage(storage), WithObserver(observer))
	require.NoError(t, err)
	require.Equal(t, 2, calls, "raw and quenched initial states must both be stored")

	require.NoError(t, d.Run(50))

	assert.Equal(t, 2+accepted, calls)
}

func TestObserverCountAndPostDecisionState(t *testing.T) {
	type record struct {
		energy   float64
		accepted bool
	}
	var records []record
	observer := func(markovE float64, _ []float64, accepted bool) {
		records = append(records, record{markovE, accepted})
	}

	// Accept everything: with no accept tests the conjunction is
	// vacuously true, so each step's candidate becomes the new state.
	d, err := New([]float64{1, 0}, quadratic{}, fixedStep(-0.1, 0), identityQuench,
		WithoutMetropolis(), WithObserver(observer))
	require.NoError(t, err)

	require.NoError(t, d.Run(4))

	require.Len(t, records, 4)
	for i, rec := range records {
		x := 1 - 0.1*float64(i+1)
		assert.True(t, rec.accepted)
		assert.InDelta(t, x*x, rec.energy, 1e-12, "observer saw stale state at step %d", i+1)
	}
}

func TestObserversRunInRegistrationOrder(t *testing.T) {
	var order []string
	first := func(float64, []float64, bool) { order = append(order, "first") }
	second := func(float64, []float64, bool) { order = append(order, "second") }

	d, err := New([]float64{1, 1}, quadratic{}, noStep, identityQuench,
		WithoutMetropolis(), WithObserver(first), WithObserver(second))
	require.NoError(t, err)

	require.NoError(t, d.Run(2))
	assert.Equal(t, []string{"first", "second", "first", "second"}, order)
}

func TestPerturbationWorksOnACopy(t *testing.T) {
	d, err := New([]float64{1, 2}, quadratic{}, noStep, identityQuench, WithoutMetropolis())
	require.NoError(t, err)

	var sawMarkovBuffer bool
	d.takeStep = func(coords []float64) {
		if &coords[0] == &d.coords[0] {
			sawMarkovBuffer = true
		}
		// Scribble over the buffer; a rejected step must not leak this.
		for i := range coords {
			coords[i] = 1e9
		}
	}
	d.acceptTests = []AcceptTest{func(_, _ float64, _ []float64) bool { return false }}

	require.NoError(t, d.Run(3))

	assert.False(t, sawMarkovBuffer, "perturbation must never alias the Markov configuration")
	assert.Equal(t, []float64{1, 2}, d.Coords())
}

func TestStepCounterPersistsAcrossRuns(t *testing.T) {
	var steps int
	observer := func(float64, []float64, bool) { steps++ }

	d, err := New([]float64{1, 1}, quadratic{}, noStep, identityQuench,
		WithoutMetropolis(), WithObserver(observer))
	require.NoError(t, err)

	require.NoError(t, d.Run(3))
	require.Equal(t, 3, d.Steps())

	require.NoError(t, d.Run(2))
	assert.Equal(t, 5, d.Steps())
	assert.Equal(t, 5, steps)
}

func TestAllAcceptTestsEvaluatedDespiteEarlyFalse(t *testing.T) {
	var laterCalls int
	alwaysFalse := func(_, _ float64, _ []float64) bool { return false }
	counting := func(_, _ float64, _ []float64) bool {
		laterCalls++
		return true
	}

	d, err := New([]float64{1, 1}, quadratic{}, noStep, identityQuench,
		WithoutMetropolis(), WithAcceptTest(alwaysFalse, counting))
	require.NoError(t, err)

	require.NoError(t, d.Run(5))
	assert.Equal(t, 5, laterCalls, "tests after a false result must still run for their side effects")
}

// failingPotential errors on every evaluation.
type failingPotential struct{}

func (failingPotential) Energy([]float64) (float64, error) {
	return 0, errors.New("boom")
}

func (failingPotential) EnergyGradient([]float64) (float64, []float64, error) {
	return 0, nil, errors.New("boom")
}

func TestNewFailsWithInitialStateError(t *testing.T) {
	_, err := New([]float64{1}, failingPotential{}, noStep, identityQuench)

	var initErr *InitialStateError
	require.ErrorAs(t, err, &initErr)
	var potErr *PotentialError
	assert.ErrorAs(t, err, &potErr)
}

// flakyPotential succeeds a fixed number of times, then errors.
type flakyPotential struct {
	remaining int
}

func (p *flakyPotential) Energy(x []float64) (float64, error) {
	return quadratic{}.Energy(x)
}

func (p *flakyPotential) EnergyGradient(x []float64) (float64, []float64, error) {
	if p.remaining <= 0 {
		return 0, nil, errors.New("evaluation budget exhausted")
	}
	p.remaining--
	return quadratic{}.EnergyGradient(x)
}

func TestRunAbortsOnPotentialErrorWithoutMutatingState(t *testing.T) {
	pot := &flakyPotential{remaining: 3}
	d, err := New([]float64{2, 2}, pot, fixedStep(-0.1, 0), identityQuench, WithoutMetropolis())
	require.NoError(t, err)

	before := d.Coords()
	beforeE := d.MarkovEnergy()

	err = d.Run(10)
	var potErr *PotentialError
	require.ErrorAs(t, err, &potErr)

	// Steps 1 and 2 committed; the aborting step 3 must not have.
	assert.NotEqual(t, before, d.Coords())
	assert.Less(t, d.MarkovEnergy(), beforeE)
	expected := d.Coords()
	assert.InDelta(t, expected[0]*expected[0]+expected[1]*expected[1], d.MarkovEnergy(), 1e-12)
}

func divergingQuench(coords []float64, grad GradientFunc) (QuenchResult, error) {
	e, g, err := grad(coords)
	if err != nil {
		return QuenchResult{}, err
	}
	var rms float64
	for _, v := range g {
		rms += v * v
	}
	res := QuenchResult{Coords: slices.Clone(coords), Energy: e, RMS: rms, FuncCalls: 1}
	return res, &QuenchDivergedError{RMS: res.RMS, FuncCalls: res.FuncCalls}
}

func TestQuenchDivergencePropagatesByDefault(t *testing.T) {
	d, err := New([]float64{1, 1}, quadratic{}, noStep, identityQuench, WithoutMetropolis())
	require.NoError(t, err)
	d.quench = divergingQuench

	err = d.Run(1)
	var diverged *QuenchDivergedError
	require.ErrorAs(t, err, &diverged)
	assert.Equal(t, 1, d.Steps())
}

func TestQuenchDivergenceRejectPolicyContinues(t *testing.T) {
	var notified int
	observer := func(_ float64, _ []float64, accepted bool) {
		notified++
		assert.False(t, accepted)
	}

	d, err := New([]float64{1, 1}, quadratic{}, noStep, identityQuench,
		WithoutMetropolis(), WithObserver(observer),
		WithDivergencePolicy(DivergenceReject))
	require.NoError(t, err)
	d.quench = divergingQuench

	before := d.Coords()
	require.NoError(t, d.Run(4))

	assert.Equal(t, 4, notified)
	assert.Equal(t, before, d.Coords())
}

func TestOptionCollectionsNotSharedBetweenDrivers(t *testing.T) {
	var aCalls, bCalls int
	mk := func(n *int) Observer {
		return func(float64, []float64, bool) { *n++ }
	}

	a, err := New([]float64{1, 1}, quadratic{}, noStep, identityQuench,
		WithoutMetropolis(), WithObserver(mk(&aCalls)))
	require.NoError(t, err)
	b, err := New([]float64{1, 1}, quadratic{}, noStep, identityQuench,
		WithoutMetropolis(), WithObserver(mk(&bCalls)))
	require.NoError(t, err)

	require.NoError(t, a.Run(3))
	require.NoError(t, b.Run(1))

	assert.Equal(t, 3, aCalls)
	assert.Equal(t, 1, bCalls)
}

func ExampleDriver() {
	step := fixedStep(-0.25, 0)
	d, err := New([]float64{1, 0}, quadratic{}, step, identityQuench,
		WithoutMetropolis(), WithAcceptTest(descentOnly))
	if err != nil {
		panic(err)
	}
	if err := d.Run(4); err != nil {
		panic(err)
	}
	fmt.Printf("E=%.2f after %d steps\n", d.MarkovEnergy(), d.Steps())
	// Output: E=0.00 after 4 steps
}
