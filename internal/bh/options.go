package bh

// DivergencePolicy selects how Run reacts when a quench reports
// non-convergence.
type DivergencePolicy int

const (
	// DivergenceAbort propagates the QuenchDivergedError, aborting the
	// in-progress Run call. This is the default.
	DivergenceAbort DivergencePolicy = iota

	// DivergenceReject treats the diverged step as rejected and continues.
	DivergenceReject
)

type config struct {
	temperature  float64
	noMetropolis bool
	seed         int64
	acceptTests  []AcceptTest
	observers    []Observer
	storage      Storage
	onDiverged   DivergencePolicy
}

func defaultConfig() config {
	return config{
		temperature: 1.0,
		seed:        1,
		onDiverged:  DivergenceAbort,
	}
}

// Option configures a Driver at construction.
type Option func(*config)

// WithTemperature sets the temperature of the default Metropolis criterion.
func WithTemperature(t float64) Option {
	return func(c *config) { c.temperature = t }
}

// WithSeed seeds the default Metropolis criterion's random source.
func WithSeed(seed int64) Option {
	return func(c *config) { c.seed = seed }
}

// WithoutMetropolis disables the default Metropolis criterion. Acceptance is
// then decided solely by tests added via WithAcceptTest.
func WithoutMetropolis() Option {
	return func(c *config) { c.noMetropolis = true }
}

// WithAcceptTest appends an accept test. Caller-supplied tests run before the
// default Metropolis criterion.
func WithAcceptTest(tests ...AcceptTest) Option {
	return func(c *config) { c.acceptTests = append(c.acceptTests, tests...) }
}

// WithObserver appends an observer notified after every step.
func WithObserver(obs ...Observer) Option {
	return func(c *config) { c.observers = append(c.observers, obs...) }
}

// WithStorage sets the sink that receives every committed Markov state.
func WithStorage(s Storage) Option {
	return func(c *config) { c.storage = s }
}

// WithDivergencePolicy sets the reaction to quench non-convergence.
func WithDivergencePolicy(p DivergencePolicy) Option {
	return func(c *config) { c.onDiverged = p }
}
