// Package irls fits penalized logistic regressions by iteratively
// reweighted least squares. It is the shared fitting kernel of the
// reference models; the threshold core never calls it directly.
package irls

import (
	"context"
	"fmt"
	"math"

	"gol50/domain/core"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	defaultMaxIterations = 50
	defaultTolerance     = 1e-8
	// minWeight keeps the working weights away from zero for fitted
	// probabilities that saturate at 0 or 1
	minWeight = 1e-10
)

// Problem is one penalized logistic fit.
type Problem struct {
	X       *mat.Dense    // n x p design
	Y       []float64     // 0/1 responses
	Penalty *mat.SymDense // p x p, nil for an unpenalized fit
	Start   []float64     // optional warm start
	MaxIter int
	Tol     float64
}

// Result is the penalized maximum-likelihood fit.
type Result struct {
	Beta []float64
	// Information is X'WX + S at the solution
	Information *mat.SymDense
	Converged   bool
	Iterations  int
	// Deviance is the penalized binomial deviance
	Deviance float64
}

// Fit runs penalized IRLS until the relative change in penalized deviance
// falls below Tol. A fit that runs out of iterations is returned with
// Converged false; a singular information matrix is an error.
func Fit(ctx context.Context, p Problem) (*Result, error) {
	n, cols := p.X.Dims()
	if len(p.Y) != n {
		return nil, fmt.Errorf("%w: %d responses for %d design rows", core.ErrInvalidDataset, len(p.Y), n)
	}
	maxIter := p.MaxIter
	if maxIter <= 0 {
		maxIter = defaultMaxIterations
	}
	tol := p.Tol
	if tol <= 0 {
		tol = defaultTolerance
	}

	beta := mat.NewVecDense(cols, nil)
	if len(p.Start) == cols {
		for i, v := range p.Start {
			beta.SetVec(i, v)
		}
	}

	eta := mat.NewVecDense(n, nil)
	weighted := mat.NewDense(n, cols, nil)
	wz := mat.NewVecDense(n, nil)
	rhs := mat.NewVecDense(cols, nil)
	info := mat.NewSymDense(cols, nil)
	next := mat.NewVecDense(cols, nil)

	devOld := math.Inf(1)
	result := &Result{}
	for iter := 1; iter <= maxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		eta.MulVec(p.X, beta)

		// Working response and weights
		for i := 0; i < n; i++ {
			mu := logistic(eta.AtVec(i))
			w := math.Max(mu*(1-mu), minWeight)
			z := eta.AtVec(i) + (p.Y[i]-mu)/w
			sw := math.Sqrt(w)
			for j := 0; j < cols; j++ {
				weighted.Set(i, j, sw*p.X.At(i, j))
			}
			wz.SetVec(i, w*z)
		}

		// (X'WX + S) beta = X'Wz
		info.SymOuterK(1, weighted.T())
		if p.Penalty != nil {
			info.AddSym(info, p.Penalty)
		}
		rhs.MulVec(p.X.T(), wz)

		var chol mat.Cholesky
		if ok := chol.Factorize(info); !ok {
			return nil, fmt.Errorf("%w: information matrix is not positive definite at iteration %d",
				core.ErrRefitNotConverged, iter)
		}
		if err := chol.SolveVecTo(next, rhs); err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrRefitNotConverged, err)
		}
		if hasNaN(next.RawVector().Data) {
			return nil, fmt.Errorf("%w: coefficients diverged at iteration %d", core.ErrRefitNotConverged, iter)
		}
		beta.CopyVec(next)

		dev := PenalizedDeviance(p.X, p.Y, p.Penalty, beta.RawVector().Data)
		result.Iterations = iter
		result.Deviance = dev
		if math.Abs(dev-devOld)/(math.Abs(dev)+0.1) < tol {
			result.Converged = true
			break
		}
		devOld = dev
	}

	result.Beta = make([]float64, cols)
	copy(result.Beta, beta.RawVector().Data)
	result.Information = mat.NewSymDense(cols, nil)
	result.Information.CopySym(info)
	return result, nil
}

// Covariance inverts an information matrix.
func Covariance(info *mat.SymDense) (*mat.SymDense, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(info); !ok {
		return nil, fmt.Errorf("information matrix is not positive definite")
	}
	cov := mat.NewSymDense(info.SymmetricDim(), nil)
	if err := chol.InverseTo(cov); err != nil {
		return nil, err
	}
	return cov, nil
}

// PenalizedDeviance is -2 log-likelihood plus beta'S beta.
func PenalizedDeviance(x *mat.Dense, y []float64, penalty *mat.SymDense, beta []float64) float64 {
	b := mat.NewVecDense(len(beta), beta)
	var eta mat.VecDense
	eta.MulVec(x, b)
	dev := 0.0
	for i, yi := range y {
		mu := clampProbability(logistic(eta.AtVec(i)))
		dev -= 2 * (yi*math.Log(mu) + (1-yi)*math.Log(1-mu))
	}
	if penalty != nil {
		var sb mat.VecDense
		sb.MulVec(penalty, b)
		dev += mat.Dot(b, &sb)
	}
	return dev
}

func logistic(eta float64) float64 {
	return 1 / (1 + math.Exp(-eta))
}

// Logistic is the inverse logit link.
func Logistic(eta float64) float64 {
	return logistic(eta)
}

func clampProbability(mu float64) float64 {
	return math.Min(math.Max(mu, 1e-15), 1-1e-15)
}

func hasNaN(v []float64) bool {
	return floats.HasNaN(v) || math.IsInf(floats.Max(v), 1) || math.IsInf(floats.Min(v), -1)
}
