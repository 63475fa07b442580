// Package additive implements logistic GLM and penalized-spline GAM models
// conforming to ports.Model.
package additive

import (
	"context"
	"fmt"
	"math/rand/v2"

	"gol50/domain/core"
	"gol50/domain/threshold"
	"gol50/internal/irls"
	"gol50/ports"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Model is a fitted additive logistic model. It is immutable after Fit.
type Model struct {
	design     *Design
	data       *threshold.Dataset
	x          *mat.Dense
	coef       threshold.CoefficientVector
	cov        *mat.SymDense
	training   threshold.Bounds
	center     float64
	iterations int
}

var _ ports.Model = (*Model)(nil)

// Fit fits the model described by spec to ds.
func Fit(ctx context.Context, ds *threshold.Dataset, spec Spec) (*Model, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	training, err := ds.Range(spec.Target)
	if err != nil {
		return nil, err
	}
	design, err := NewDesign(spec, training)
	if err != nil {
		return nil, err
	}
	return fitDesign(ctx, design, ds)
}

func fitDesign(ctx context.Context, design *Design, ds *threshold.Dataset) (*Model, error) {
	x, err := design.Matrix(ds)
	if err != nil {
		return nil, err
	}
	y, _ := ds.Column(ds.Response)

	res, err := irls.Fit(ctx, irls.Problem{X: x, Y: y, Penalty: design.Penalty()})
	if err != nil {
		return nil, err
	}
	if !res.Converged {
		return nil, fmt.Errorf("%w: %d IRLS iterations", core.ErrRefitNotConverged, res.Iterations)
	}
	cov, err := irls.Covariance(res.Information)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrRefitNotConverged, err)
	}

	target, _ := ds.Column(design.Spec().Target)
	training, err := ds.Range(design.Spec().Target)
	if err != nil {
		return nil, err
	}
	center, err := stats.Mean(target)
	if err != nil {
		return nil, err
	}

	return &Model{
		design:     design,
		data:       ds,
		x:          x,
		coef:       res.Beta,
		cov:        cov,
		training:   training,
		center:     center,
		iterations: res.Iterations,
	}, nil
}

// Name is "gam" when the target term is a spline and "glm" otherwise
func (m *Model) Name() string {
	if m.design.Spec().Knots > 0 {
		return "gam"
	}
	return "glm"
}

func (m *Model) Target() string { return m.design.Spec().Target }

func (m *Model) Covariates() []string { return m.design.Covariates() }

func (m *Model) Basis(row threshold.CovariateRow) ([]float64, error) {
	return m.design.Row(row)
}

func (m *Model) Coefficients() threshold.CoefficientVector { return m.coef.Clone() }

// Covariance is the Bayesian posterior covariance (X'WX + S)^-1
func (m *Model) Covariance() (threshold.CoefficientCovariance, error) {
	out := mat.NewSymDense(m.cov.SymmetricDim(), nil)
	out.CopySym(m.cov)
	return out, nil
}

// Simulate draws Bernoulli responses at the training covariates. The model
// has no latent effects, so conditional has no effect.
func (m *Model) Simulate(rng *rand.Rand, conditional bool) (*threshold.Dataset, error) {
	n, _ := m.x.Dims()
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		eta := floats.Dot(m.x.RawRowView(i), m.coef)
		if rng.Float64() < irls.Logistic(eta) {
			y[i] = 1
		}
	}
	return m.data.WithResponse(y), nil
}

// Refit fits a new model with the same design to ds
func (m *Model) Refit(ctx context.Context, ds *threshold.Dataset) (ports.Model, error) {
	return fitDesign(ctx, m.design, ds)
}

func (m *Model) TrainingRange() threshold.Bounds { return m.training }

func (m *Model) TargetCenter() float64 { return m.center }

// Iterations is the number of IRLS iterations the fit used
func (m *Model) Iterations() int { return m.iterations }
