package scorer

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Model is a fitted binary logistic regression. The intercept is learned as
// the weight of a constant feature and is regularised with the others.
type Model struct {
	Weights    []float64
	Intercept  float64
	Iterations int
}

// FitOptions controls the Newton solver.
type FitOptions struct {
	C       float64
	MaxIter int
	Tol     float64
}

var errNotConverged = errors.New("newton iterations did not converge")

// Fit minimises 0.5*||w||^2 + C*sum(log(1+exp(-y*w.x))) over the rows of x,
// with y in {0,1} mapped to {-1,+1} and a constant column appended to x.
func Fit(x *mat.Dense, y []float64, opts FitOptions) (*Model, error) {
	n, p := x.Dims()
	if n != len(y) {
		return nil, fmt.Errorf("have %d rows and %d labels", n, len(y))
	}

	// Augment with the bias column.
	xa := mat.NewDense(n, p+1, nil)
	xa.Slice(0, n, 0, p).(*mat.Dense).Copy(x)
	for i := 0; i < n; i++ {
		xa.Set(i, p, 1)
	}
	signs := make([]float64, n)
	for i, v := range y {
		if v > 0.5 {
			signs[i] = 1
		} else {
			signs[i] = -1
		}
	}

	k := p + 1
	w := mat.NewVecDense(k, nil)
	margins := mat.NewVecDense(n, nil)
	resid := mat.NewVecDense(n, nil)
	grad := mat.NewVecDense(k, nil)
	step := mat.NewVecDense(k, nil)
	trial := mat.NewVecDense(k, nil)
	weighted := mat.NewDense(k, n, nil)
	hess := mat.NewSymDense(k, nil)

	objective := func(v *mat.VecDense) float64 {
		margins.MulVec(xa, v)
		loss := 0.5 * mat.Dot(v, v)
		for i := 0; i < n; i++ {
			loss += opts.C * softplus(-signs[i]*margins.AtVec(i))
		}
		return loss
	}

	// gradient fills grad at w, leaves the margins of w behind and returns
	// the max-norm of the gradient.
	gradient := func() float64 {
		margins.MulVec(xa, w)
		for i := 0; i < n; i++ {
			m := signs[i] * margins.AtVec(i)
			resid.SetVec(i, (sigmoid(m)-1)*signs[i])
		}
		grad.MulVec(xa.T(), resid)
		grad.AddScaledVec(w, opts.C, grad)
		return floats.Norm(grad.RawVector().Data, math.Inf(1))
	}

	f := objective(w)
	g0 := math.Max(1, gradient())
	// Once the objective stops decreasing in floating point, a gradient
	// below this bound is as close to the optimum as the data allows.
	stallTol := math.Sqrt(opts.Tol) * g0

	for iter := 0; iter < opts.MaxIter; iter++ {
		gn := gradient()
		if gn <= opts.Tol*g0 {
			return newModel(w, p, iter), nil
		}

		// H = I + C * X' D X with D = diag(s(1-s)).
		for i := 0; i < n; i++ {
			s := sigmoid(margins.AtVec(i))
			d := math.Sqrt(s * (1 - s))
			for j := 0; j < k; j++ {
				weighted.Set(j, i, d*xa.At(i, j))
			}
		}
		hess.SymOuterK(opts.C, weighted)
		for j := 0; j < k; j++ {
			hess.SetSym(j, j, hess.At(j, j)+1)
		}

		var chol mat.Cholesky
		if ok := chol.Factorize(hess); !ok {
			return nil, errors.New("hessian is not positive definite")
		}
		if err := chol.SolveVecTo(step, grad); err != nil {
			return nil, fmt.Errorf("solve newton step: %w", err)
		}

		// Backtracking line search on the Armijo condition. A step must
		// strictly lower the objective to count as progress.
		slope := mat.Dot(grad, step)
		t := 1.0
		accepted := false
		for ls := 0; ls < 60; ls++ {
			trial.AddScaledVec(w, -t, step)
			if ft := objective(trial); ft < f && ft <= f-1e-4*t*slope {
				w.CopyVec(trial)
				f = ft
				accepted = true
				break
			}
			t *= 0.5
		}
		if !accepted {
			if gn <= stallTol {
				return newModel(w, p, iter), nil
			}
			return nil, errNotConverged
		}
	}

	if gradient() <= stallTol {
		return newModel(w, p, opts.MaxIter), nil
	}
	return nil, errNotConverged
}

func newModel(w *mat.VecDense, p, iterations int) *Model {
	raw := w.RawVector().Data
	m := &Model{
		Weights:    make([]float64, p),
		Intercept:  w.AtVec(p),
		Iterations: iterations,
	}
	copy(m.Weights, raw[:p])
	return m
}

// Probability returns P(y=1) for one feature row.
func (m *Model) Probability(row []float64) float64 {
	return sigmoid(floats.Dot(m.Weights, row) + m.Intercept)
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// softplus computes log(1+exp(z)) without overflow.
func softplus(z float64) float64 {
	if z > 0 {
		return z + math.Log1p(math.Exp(-z))
	}
	return math.Log1p(math.Exp(z))
}
