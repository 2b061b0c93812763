// Package runner assembles basin hopping drivers from run configurations. It
// is the single place where the potential name, step strategy and quench
// settings of a store.RunConfig are turned into wired components, shared by
// the CLI and the job server.
package runner

import (
	"fmt"
	"math"
	"math/rand"

	"basinhop/internal/bh"
	"basinhop/internal/potential"
	"basinhop/internal/quench"
	"basinhop/internal/store"
	"basinhop/internal/takestep"
)

// DefaultStepsize is used when the config leaves the displacement size unset.
const DefaultStepsize = 0.5

// BuildPotential maps the config's potential name to an energy model.
func BuildPotential(cfg store.RunConfig) (bh.Potential, error) {
	switch cfg.Potential {
	case "lj":
		if cfg.Atoms < 2 {
			return nil, fmt.Errorf("lj potential needs at least 2 atoms, got %d", cfg.Atoms)
		}
		return potential.NewLennardJones(), nil
	case "quadratic":
		if cfg.Dim <= 0 {
			return nil, fmt.Errorf("quadratic potential needs dim > 0, got %d", cfg.Dim)
		}
		return potential.Quadratic{}, nil
	case "rosenbrock":
		return potential.NewRosenbrock(), nil
	default:
		return nil, fmt.Errorf("unknown potential %q", cfg.Potential)
	}
}

// InitialCoords draws a random starting configuration for the config's
// potential, seeded from the config so runs are reproducible.
func InitialCoords(cfg store.RunConfig) ([]float64, error) {
	rng := rand.New(rand.NewSource(cfg.Seed))
	switch cfg.Potential {
	case "lj":
		if cfg.Atoms < 2 {
			return nil, fmt.Errorf("lj potential needs at least 2 atoms, got %d", cfg.Atoms)
		}
		// Box half-width grows with cluster size to keep the density sane.
		halfWidth := math.Cbrt(float64(cfg.Atoms))
		return potential.RandomCluster(cfg.Atoms, halfWidth, rng), nil
	case "quadratic", "rosenbrock":
		n := cfg.CoordLen()
		if n <= 0 {
			return nil, fmt.Errorf("potential %q needs dim > 0", cfg.Potential)
		}
		coords := make([]float64, n)
		for i := range coords {
			coords[i] = rng.Float64()*10 - 5
		}
		return coords, nil
	default:
		return nil, fmt.Errorf("unknown potential %q", cfg.Potential)
	}
}

// NewDriver wires a driver from the config: named potential, random
// displacement with adaptive stepsize, and an LBFGS quench. Extra options are
// appended after the config-derived ones, so callers can attach storage and
// observers. The adaptive stepsize adjuster is registered as the first
// observer.
func NewDriver(cfg store.RunConfig, coords []float64, opts ...bh.Option) (*bh.Driver, error) {
	pot, err := BuildPotential(cfg)
	if err != nil {
		return nil, err
	}
	if want := cfg.CoordLen(); len(coords) != want {
		return nil, fmt.Errorf("coords length %d does not match potential %q (want %d)",
			len(coords), cfg.Potential, want)
	}

	stepsize := cfg.Stepsize
	if stepsize <= 0 {
		stepsize = DefaultStepsize
	}
	// Offset seed so the displacement stream is independent of the
	// Metropolis stream.
	displace := takestep.NewRandomDisplacement(stepsize, cfg.Seed+1)
	adaptive := takestep.NewAdaptiveStepsize(displace)

	lbfgs := quench.NewLBFGS()
	if cfg.QuenchTol > 0 {
		lbfgs.Tol = cfg.QuenchTol
	}
	if cfg.QuenchMaxIter > 0 {
		lbfgs.MaxIter = cfg.QuenchMaxIter
	}

	options := []bh.Option{bh.WithSeed(cfg.Seed)}
	if cfg.Temperature > 0 {
		options = append(options, bh.WithTemperature(cfg.Temperature))
	}
	options = append(options, bh.WithObserver(adaptive.Notify))
	options = append(options, opts...)

	return bh.New(coords, pot, displace.Step, lbfgs.Quench, options...)
}
