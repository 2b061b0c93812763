package potential

import "fmt"

// Rosenbrock is the 2D banana valley E(x,y) = (a-x)^2 + b*(y-x^2)^2 with its
// minimum at (a, a^2). Its curved, nearly flat valley floor is a classic
// stress test for quench routines.
type Rosenbrock struct {
	A float64
	B float64
}

// NewRosenbrock returns the conventional a=1, b=100 instance.
func NewRosenbrock() Rosenbrock {
	return Rosenbrock{A: 1, B: 100}
}

// Energy evaluates the Rosenbrock function.
func (r Rosenbrock) Energy(coords []float64) (float64, error) {
	if len(coords) != 2 {
		return 0, fmt.Errorf("rosenbrock is 2-dimensional, got %d coordinates", len(coords))
	}
	x, y := coords[0], coords[1]
	dx := r.A - x
	dy := y - x*x
	return dx*dx + r.B*dy*dy, nil
}

// EnergyGradient evaluates the function and its analytic gradient.
func (r Rosenbrock) EnergyGradient(coords []float64) (float64, []float64, error) {
	if len(coords) != 2 {
		return 0, nil, fmt.Errorf("rosenbrock is 2-dimensional, got %d coordinates", len(coords))
	}
	x, y := coords[0], coords[1]
	dx := r.A - x
	dy := y - x*x
	e := dx*dx + r.B*dy*dy
	grad := []float64{
		-2*dx - 4*r.B*dy*x,
		2 * r.B * dy,
	}
	return e, grad, nil
}
