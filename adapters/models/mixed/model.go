// Package mixed implements a random-intercept logistic model (GLMM) whose
// fixed part is an additive design. The model exposes no coefficient
// covariance, so its uncertainty comes from the parametric bootstrap.
package mixed

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"gol50/adapters/models/additive"
	"gol50/domain/core"
	"gol50/domain/threshold"
	"gol50/internal/irls"
	"gol50/ports"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	maxOuterIterations = 100
	varianceTolerance  = 1e-3
	// minVariance is the boundary at which the random intercepts are
	// treated as absent
	minVariance   = 1e-4
	startVariance = 1.0
)

// Model is a fitted random-intercept logistic model. Basis and
// Coefficients describe the population-level (fixed-effect) predictor.
type Model struct {
	design   *additive.Design
	data     *threshold.Dataset
	x        *mat.Dense
	levels   []string
	member   []int
	fixed    threshold.CoefficientVector
	effects  []float64
	variance float64
	training threshold.Bounds
	center   float64
}

var _ ports.Model = (*Model)(nil)

// Fit fits a GLMM with the fixed design described by spec and one random
// intercept per level of ds.Group.
func Fit(ctx context.Context, ds *threshold.Dataset, spec additive.Spec) (*Model, error) {
	training, err := ds.Range(spec.Target)
	if err != nil {
		return nil, err
	}
	design, err := additive.NewDesign(spec, training)
	if err != nil {
		return nil, err
	}
	return fit(ctx, design, ds, startVariance)
}

func fit(ctx context.Context, design *additive.Design, ds *threshold.Dataset, sigma2 float64) (*Model, error) {
	if ds.Group == "" {
		return nil, core.NewDatasetError("mixed model needs a grouping column")
	}
	x, err := design.Matrix(ds)
	if err != nil {
		return nil, err
	}
	levels, member := ds.GroupLevels()
	if len(levels) < 2 {
		return nil, core.NewDatasetError(fmt.Sprintf("grouping %q has %d levels, want at least 2", ds.Group, len(levels)))
	}
	y, _ := ds.Column(ds.Response)

	n, p := x.Dims()
	g := len(levels)
	aug := mat.NewDense(n, p+g, nil)
	aug.Slice(0, n, 0, p).(*mat.Dense).Copy(x)
	for i, k := range member {
		aug.Set(i, p+k, 1)
	}

	var (
		res       *irls.Result
		converged bool
	)
	for iter := 0; iter < maxOuterIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var start []float64
		if res != nil {
			start = res.Beta
		}
		res, err = irls.Fit(ctx, irls.Problem{
			X:       aug,
			Y:       y,
			Penalty: penalty(design.Penalty(), p, g, sigma2),
			Start:   start,
		})
		if err != nil {
			return nil, err
		}
		if !res.Converged {
			return nil, fmt.Errorf("%w: inner IRLS at outer iteration %d", core.ErrRefitNotConverged, iter)
		}
		cov, err := irls.Covariance(res.Information)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrRefitNotConverged, err)
		}

		// EM update: E[b'b] = b^ b^ + tr(Cov_bb)
		effects := res.Beta[p:]
		next := floats.Dot(effects, effects)
		for k := 0; k < g; k++ {
			next += cov.At(p+k, p+k)
		}
		next /= float64(g)

		if next < minVariance {
			sigma2 = minVariance
			converged = true
			break
		}
		if math.Abs(next-sigma2)/sigma2 < varianceTolerance {
			sigma2 = next
			converged = true
			break
		}
		sigma2 = next
	}
	if !converged {
		return nil, fmt.Errorf("%w: random-intercept variance did not settle in %d iterations",
			core.ErrRefitNotConverged, maxOuterIterations)
	}

	target, _ := ds.Column(design.Spec().Target)
	center, err := stats.Mean(target)
	if err != nil {
		return nil, err
	}
	training, err := ds.Range(design.Spec().Target)
	if err != nil {
		return nil, err
	}

	return &Model{
		design:   design,
		data:     ds,
		x:        x,
		levels:   levels,
		member:   member,
		fixed:    append(threshold.CoefficientVector(nil), res.Beta[:p]...),
		effects:  append([]float64(nil), res.Beta[p:]...),
		variance: sigma2,
		training: training,
		center:   center,
	}, nil
}

func penalty(fixed *mat.SymDense, p, g int, sigma2 float64) *mat.SymDense {
	s := mat.NewSymDense(p+g, nil)
	if fixed != nil {
		for i := 0; i < p; i++ {
			for j := i; j < p; j++ {
				s.SetSym(i, j, fixed.At(i, j))
			}
		}
	}
	for k := 0; k < g; k++ {
		s.SetSym(p+k, p+k, 1/sigma2)
	}
	return s
}

func (m *Model) Name() string { return "glmm" }

func (m *Model) Target() string { return m.design.Spec().Target }

func (m *Model) Covariates() []string { return m.design.Covariates() }

func (m *Model) Basis(row threshold.CovariateRow) ([]float64, error) {
	return m.design.Row(row)
}

func (m *Model) Coefficients() threshold.CoefficientVector { return m.fixed.Clone() }

// Covariance is not available: the fixed-effect covariance of a penalized
// GLMM fit ignores the uncertainty in the variance component.
func (m *Model) Covariance() (threshold.CoefficientCovariance, error) {
	return nil, core.NewUnsupportedModelError(m.Name(), "coefficient covariance")
}

// Simulate draws new responses at the training covariates. Conditional
// simulation keeps the fitted random intercepts; unconditional simulation
// draws fresh intercepts from N(0, variance).
func (m *Model) Simulate(rng *rand.Rand, conditional bool) (*threshold.Dataset, error) {
	effects := m.effects
	if !conditional {
		sd := math.Sqrt(m.variance)
		effects = make([]float64, len(m.levels))
		for k := range effects {
			effects[k] = rng.NormFloat64() * sd
		}
	}
	n, _ := m.x.Dims()
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		eta := floats.Dot(m.x.RawRowView(i), m.fixed) + effects[m.member[i]]
		if rng.Float64() < irls.Logistic(eta) {
			y[i] = 1
		}
	}
	return m.data.WithResponse(y), nil
}

// Refit fits the same design to ds, starting from this fit's variance.
func (m *Model) Refit(ctx context.Context, ds *threshold.Dataset) (ports.Model, error) {
	return fit(ctx, m.design, ds, m.variance)
}

func (m *Model) TrainingRange() threshold.Bounds { return m.training }

func (m *Model) TargetCenter() float64 { return m.center }

// Variance is the estimated random-intercept variance
func (m *Model) Variance() float64 { return m.variance }

// GroupEffects returns the predicted random intercept of each group level.
func (m *Model) GroupEffects() map[string]float64 {
	out := make(map[string]float64, len(m.levels))
	for k, level := range m.levels {
		out[level] = m.effects[k]
	}
	return out
}
