package potential

import (
	"fmt"
	"math"
	"math/rand"
)

// LennardJones is the pairwise 6-12 potential for an atomic cluster in
// reduced units:
//
//	E = sum_{i<j} 4*eps*[(sigma/r_ij)^12 - (sigma/r_ij)^6]
//
// Coordinates are a flat slice of length 3*N (x0,y0,z0,x1,...). The global
// minimum energy of small clusters is well tabulated, which makes this the
// standard benchmark landscape for basin hopping.
type LennardJones struct {
	Eps   float64
	Sigma float64
}

// NewLennardJones returns a Lennard-Jones potential in reduced units
// (eps = sigma = 1).
func NewLennardJones() LennardJones {
	return LennardJones{Eps: 1, Sigma: 1}
}

// Energy returns the total pairwise energy of the cluster.
func (lj LennardJones) Energy(coords []float64) (float64, error) {
	if len(coords)%3 != 0 {
		return 0, fmt.Errorf("coordinate length %d is not a multiple of 3", len(coords))
	}

	sigma6 := math.Pow(lj.Sigma, 6)
	natoms := len(coords) / 3

	var e float64
	for i := 0; i < natoms; i++ {
		for j := i + 1; j < natoms; j++ {
			r2 := dist2(coords, i, j)
			ir6 := sigma6 / (r2 * r2 * r2)
			e += 4 * lj.Eps * (ir6*ir6 - ir6)
		}
	}
	return e, nil
}

// EnergyGradient returns the total energy and the analytic gradient.
func (lj LennardJones) EnergyGradient(coords []float64) (float64, []float64, error) {
	if len(coords)%3 != 0 {
		return 0, nil, fmt.Errorf("coordinate length %d is not a multiple of 3", len(coords))
	}

	sigma6 := math.Pow(lj.Sigma, 6)
	natoms := len(coords) / 3
	grad := make([]float64, len(coords))

	var e float64
	for i := 0; i < natoms; i++ {
		for j := i + 1; j < natoms; j++ {
			r2 := dist2(coords, i, j)
			ir6 := sigma6 / (r2 * r2 * r2)
			e += 4 * lj.Eps * (ir6*ir6 - ir6)

			// dE/dr2 scaled so the per-axis term is g*(xi-xj).
			g := 4 * lj.Eps * (6*ir6 - 12*ir6*ir6) / r2
			for k := 0; k < 3; k++ {
				d := coords[3*i+k] - coords[3*j+k]
				grad[3*i+k] += g * d
				grad[3*j+k] -= g * d
			}
		}
	}
	return e, grad, nil
}

func dist2(coords []float64, i, j int) float64 {
	dx := coords[3*i] - coords[3*j]
	dy := coords[3*i+1] - coords[3*j+1]
	dz := coords[3*i+2] - coords[3*j+2]
	return dx*dx + dy*dy + dz*dz
}

// RandomCluster places natoms uniformly in a cube of the given half-width,
// drawn from rng. Used to seed basin hopping runs.
func RandomCluster(natoms int, halfWidth float64, rng *rand.Rand) []float64 {
	coords := make([]float64, 3*natoms)
	for i := range coords {
		coords[i] = halfWidth * (2*rng.Float64() - 1)
	}
	return coords
}
