package store

import (
	"fmt"
	"time"
)

// RunConfig holds the parameters of a basin hopping run. It is embedded in
// checkpoints so a resumed run can be validated against the original, and it
// doubles as the YAML config-file schema for the CLI.
type RunConfig struct {
	// Potential selects the energy model: "lj", "quadratic" or
	// "rosenbrock".
	Potential string `json:"potential" yaml:"potential"`

	// Atoms is the cluster size for the lj potential.
	Atoms int `json:"atoms,omitempty" yaml:"atoms,omitempty"`

	// Dim is the dimensionality for the quadratic potential.
	Dim int `json:"dim,omitempty" yaml:"dim,omitempty"`

	Steps       int     `json:"steps" yaml:"steps"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
	Stepsize    float64 `json:"stepsize" yaml:"stepsize"`
	Seed        int64   `json:"seed" yaml:"seed"`

	QuenchTol     float64 `json:"quenchTol,omitempty" yaml:"quench_tol,omitempty"`
	QuenchMaxIter int     `json:"quenchMaxIter,omitempty" yaml:"quench_max_iter,omitempty"`

	// Patience stops the run early after this many steps without a
	// significant new lowest energy (0 = run all steps).
	Patience int `json:"patience,omitempty" yaml:"patience,omitempty"`

	// CheckpointInterval is the number of steps between checkpoints
	// (0 = disabled).
	CheckpointInterval int `json:"checkpointInterval,omitempty" yaml:"checkpoint_interval,omitempty"`
}

// CoordLen returns the expected coordinate-slice length for the config, or 0
// when the potential is unknown.
func (c RunConfig) CoordLen() int {
	switch c.Potential {
	case "lj":
		return 3 * c.Atoms
	case "quadratic":
		return c.Dim
	case "rosenbrock":
		return 2
	}
	return 0
}

// Checkpoint is a saved Markov state that a run can be resumed from. The
// driver re-quenches the stored coords on resume, which is idempotent since
// they already sit at a minimum.
type Checkpoint struct {
	// RunID identifies the run this checkpoint belongs to.
	RunID string `json:"runId"`

	// Coords is the Markov configuration at checkpoint time.
	Coords []float64 `json:"coords"`

	// MarkovEnergy is the energy of Coords.
	MarkovEnergy float64 `json:"markovEnergy"`

	// BestEnergy and BestCoords record the lowest minimum seen so far.
	BestEnergy float64   `json:"bestEnergy"`
	BestCoords []float64 `json:"bestCoords,omitempty"`

	// Steps is the cumulative step count across all runs of this chain,
	// so numbering continues after a resume.
	Steps int `json:"steps"`

	// Timestamp records when this checkpoint was created.
	Timestamp time.Time `json:"timestamp"`

	// Config holds the run parameters, needed for validation on resume.
	Config RunConfig `json:"config"`
}

// CheckpointInfo is checkpoint metadata without the coordinate payloads, for
// efficient listing.
type CheckpointInfo struct {
	RunID        string    `json:"runId"`
	MarkovEnergy float64   `json:"markovEnergy"`
	BestEnergy   float64   `json:"bestEnergy"`
	Steps        int       `json:"steps"`
	Timestamp    time.Time `json:"timestamp"`
	Potential    string    `json:"potential"`
	Atoms        int       `json:"atoms,omitempty"`
	Dim          int       `json:"dim,omitempty"`
}

// NewCheckpoint builds a checkpoint from runtime chain state.
func NewCheckpoint(runID string, coords []float64, markovEnergy float64, bestCoords []float64, bestEnergy float64, steps int, config RunConfig) *Checkpoint {
	return &Checkpoint{
		RunID:        runID,
		Coords:       coords,
		MarkovEnergy: markovEnergy,
		BestEnergy:   bestEnergy,
		BestCoords:   bestCoords,
		Steps:        steps,
		Timestamp:    time.Now(),
		Config:       config,
	}
}

// ToInfo converts a full Checkpoint to its metadata.
func (c *Checkpoint) ToInfo() CheckpointInfo {
	return CheckpointInfo{
		RunID:        c.RunID,
		MarkovEnergy: c.MarkovEnergy,
		BestEnergy:   c.BestEnergy,
		Steps:        c.Steps,
		Timestamp:    c.Timestamp,
		Potential:    c.Config.Potential,
		Atoms:        c.Config.Atoms,
		Dim:          c.Config.Dim,
	}
}

// Validate checks the checkpoint for structurally invalid data.
func (c *Checkpoint) Validate() error {
	if c.RunID == "" {
		return &ValidationError{Field: "RunID", Reason: "cannot be empty"}
	}
	if len(c.Coords) == 0 {
		return &ValidationError{Field: "Coords", Reason: "cannot be empty"}
	}
	if c.Steps < 0 {
		return &ValidationError{Field: "Steps", Reason: "cannot be negative"}
	}
	if c.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	if c.Config.Potential == "" {
		return &ValidationError{Field: "Config.Potential", Reason: "cannot be empty"}
	}
	if want := c.Config.CoordLen(); want > 0 && len(c.Coords) != want {
		return &ValidationError{
			Field:  "Coords",
			Reason: fmt.Sprintf("length mismatch: expected %d for potential %q", want, c.Config.Potential),
		}
	}
	if len(c.BestCoords) > 0 && len(c.BestCoords) != len(c.Coords) {
		return &ValidationError{Field: "BestCoords", Reason: "length differs from Coords"}
	}
	return nil
}

// IsCompatible checks whether this checkpoint can seed a run with the given
// config: the landscape must be identical, everything else may change.
func (c *Checkpoint) IsCompatible(config RunConfig) error {
	if c.Config.Potential != config.Potential {
		return &CompatibilityError{Field: "Potential", Expected: c.Config.Potential, Actual: config.Potential}
	}
	if c.Config.Atoms != config.Atoms {
		return &CompatibilityError{
			Field:    "Atoms",
			Expected: fmt.Sprintf("%d", c.Config.Atoms),
			Actual:   fmt.Sprintf("%d", config.Atoms),
		}
	}
	if c.Config.Dim != config.Dim {
		return &CompatibilityError{
			Field:    "Dim",
			Expected: fmt.Sprintf("%d", c.Config.Dim),
			Actual:   fmt.Sprintf("%d", config.Dim),
		}
	}
	return nil
}

// ValidationError reports a structurally invalid checkpoint field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

// CompatibilityError reports a checkpoint/config mismatch on resume.
type CompatibilityError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *CompatibilityError) Error() string {
	return "compatibility error: " + e.Field + " mismatch (expected " + e.Expected + ", got " + e.Actual + ")"
}
