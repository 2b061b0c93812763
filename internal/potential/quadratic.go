// Package potential provides energy models for the basin hopping driver.
package potential

// Quadratic is the isotropic bowl E(x) = sum x_i^2, with its single minimum
// at the origin. Useful as a smoke-test landscape.
type Quadratic struct{}

// Energy returns the sum of squared coordinates.
func (Quadratic) Energy(coords []float64) (float64, error) {
	var e float64
	for _, v := range coords {
		e += v * v
	}
	return e, nil
}

// EnergyGradient returns the energy and its gradient 2x.
func (Quadratic) EnergyGradient(coords []float64) (float64, []float64, error) {
	grad := make([]float64, len(coords))
	var e float64
	for i, v := range coords {
		e += v * v
		grad[i] = 2 * v
	}
	return e, grad, nil
}
