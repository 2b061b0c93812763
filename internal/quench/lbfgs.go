// Package quench provides local minimization routines satisfying the
// bh.Quencher contract.
package quench

import (
	"math"
	"slices"

	"basinhop/internal/bh"
)

// LBFGS is a limited-memory BFGS minimizer with a step-length cap and
// backtracking against energy rises. Deterministic given its inputs and
// tolerance settings.
type LBFGS struct {
	// Tol is the RMS-gradient convergence target.
	Tol float64

	// MaxIter bounds the number of iterations; exceeding it yields a
	// bh.QuenchDivergedError alongside the best iterate.
	MaxIter int

	// M is the number of correction pairs kept in history.
	M int

	// MaxStep caps the Euclidean length of a single step, which keeps
	// the quench inside the basin the perturbation landed in.
	MaxStep float64

	// MaxBacktrack bounds the step halvings per iteration.
	MaxBacktrack int
}

// NewLBFGS returns an LBFGS with the defaults used throughout this repo.
func NewLBFGS() *LBFGS {
	return &LBFGS{
		Tol:          1e-4,
		MaxIter:      1000,
		M:            4,
		MaxStep:      0.1,
		MaxBacktrack: 10,
	}
}

// Quench minimizes coords under grad. The returned configuration is a fresh
// slice; the input is never mutated.
func (l *LBFGS) Quench(coords []float64, grad bh.GradientFunc) (bh.QuenchResult, error) {
	x := slices.Clone(coords)
	n := len(x)

	e, g, err := grad(x)
	if err != nil {
		return bh.QuenchResult{}, err
	}
	funcCalls := 1

	// Correction history, newest last.
	var ss, ys [][]float64
	var rhos []float64
	h0 := 0.1

	rms := rmsNorm(g)
	for iter := 0; iter < l.MaxIter; iter++ {
		if rms < l.Tol {
			return bh.QuenchResult{Coords: x, Energy: e, RMS: rms, FuncCalls: funcCalls}, nil
		}

		p := l.direction(g, ss, ys, rhos, h0)
		if norm := math.Sqrt(dot(p, p)); norm > l.MaxStep {
			scale(p, l.MaxStep/norm)
		}

		// Backtrack until the energy stops rising. The caps on step
		// length and halvings make line-search failure a divergence,
		// not an infinite loop.
		var (
			xNew  []float64
			eNew  float64
			gNew  []float64
			moved bool
		)
		for k := 0; k < l.MaxBacktrack; k++ {
			xNew = make([]float64, n)
			for i := range xNew {
				xNew[i] = x[i] + p[i]
			}
			eNew, gNew, err = grad(xNew)
			if err != nil {
				return bh.QuenchResult{}, err
			}
			funcCalls++
			if eNew <= e+1e-10 {
				moved = true
				break
			}
			scale(p, 0.5)
		}
		if !moved {
			break
		}

		s := make([]float64, n)
		y := make([]float64, n)
		for i := range s {
			s[i] = xNew[i] - x[i]
			y[i] = gNew[i] - g[i]
		}
		if sy := dot(s, y); sy > 1e-12 {
			ss = append(ss, s)
			ys = append(ys, y)
			rhos = append(rhos, 1/sy)
			h0 = sy / dot(y, y)
			if len(ss) > l.M {
				ss = ss[1:]
				ys = ys[1:]
				rhos = rhos[1:]
			}
		}

		x, e, g = xNew, eNew, gNew
		rms = rmsNorm(g)
	}

	res := bh.QuenchResult{Coords: x, Energy: e, RMS: rms, FuncCalls: funcCalls}
	return res, &bh.QuenchDivergedError{RMS: rms, FuncCalls: funcCalls}
}

// direction computes -H*g via the standard two-loop recursion.
func (l *LBFGS) direction(g []float64, ss, ys [][]float64, rhos []float64, h0 float64) []float64 {
	q := slices.Clone(g)
	m := len(ss)

	alphas := make([]float64, m)
	for i := m - 1; i >= 0; i-- {
		alphas[i] = rhos[i] * dot(ss[i], q)
		for j := range q {
			q[j] -= alphas[i] * ys[i][j]
		}
	}
	scale(q, h0)
	for i := 0; i < m; i++ {
		beta := rhos[i] * dot(ys[i], q)
		for j := range q {
			q[j] += (alphas[i] - beta) * ss[i][j]
		}
	}
	scale(q, -1)
	return q
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func scale(v []float64, f float64) {
	for i := range v {
		v[i] *= f
	}
}

func rmsNorm(g []float64) float64 {
	if len(g) == 0 {
		return 0
	}
	return math.Sqrt(dot(g, g) / float64(len(g)))
}
