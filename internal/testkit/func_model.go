package testkit

import (
	"context"
	"math/rand/v2"

	"gol50/domain/core"
	"gol50/domain/threshold"
	"gol50/ports"

	"gonum.org/v1/gonum/mat"
)

// BasisFunc maps a full covariate row to a linear-predictor row
type BasisFunc func(row threshold.CovariateRow) ([]float64, error)

// FuncModel is a ports.Model whose basis is an arbitrary function. Refit
// returns a clone; Simulate returns a small design-only dataset.
type FuncModel struct {
	ModelName  string
	TargetName string
	Auxiliary  []string
	BasisFn    BasisFunc
	Coef       threshold.CoefficientVector
	Cov        *mat.SymDense
	Range      threshold.Bounds
	Center     float64
}

var _ ports.Model = (*FuncModel)(nil)

// NewLinearModel returns a model with link = coef[0] + coef[1]*target + sum(coef[k+2]*aux[k])
func NewLinearModel(target string, auxiliary []string, coef ...float64) *FuncModel {
	names := append([]string(nil), auxiliary...)
	return &FuncModel{
		ModelName:  "linear-stub",
		TargetName: target,
		Auxiliary:  names,
		BasisFn: func(row threshold.CovariateRow) ([]float64, error) {
			basis := make([]float64, 0, 2+len(names))
			basis = append(basis, 1, row[target])
			for _, name := range names {
				basis = append(basis, row[name])
			}
			return basis, nil
		},
		Coef:   threshold.CoefficientVector(coef),
		Range:  threshold.Bounds{Lower: 0, Upper: 150},
		Center: 75,
	}
}

// WithCovariance returns a copy carrying a diagonal covariance
func (m *FuncModel) WithCovariance(variances ...float64) *FuncModel {
	clone := *m
	clone.Cov = mat.NewSymDense(len(variances), nil)
	for i, v := range variances {
		clone.Cov.SetSym(i, i, v)
	}
	return &clone
}

func (m *FuncModel) Name() string {
	if m.ModelName == "" {
		return "func-stub"
	}
	return m.ModelName
}

func (m *FuncModel) Target() string { return m.TargetName }

func (m *FuncModel) Covariates() []string {
	return append([]string{m.TargetName}, m.Auxiliary...)
}

func (m *FuncModel) Basis(row threshold.CovariateRow) ([]float64, error) {
	return m.BasisFn(row)
}

func (m *FuncModel) Coefficients() threshold.CoefficientVector { return m.Coef.Clone() }

func (m *FuncModel) Covariance() (threshold.CoefficientCovariance, error) {
	if m.Cov == nil {
		return nil, core.NewUnsupportedModelError(m.Name(), "coefficient covariance")
	}
	out := mat.NewSymDense(m.Cov.SymmetricDim(), nil)
	out.CopySym(m.Cov)
	return out, nil
}

func (m *FuncModel) Simulate(rng *rand.Rand, conditional bool) (*threshold.Dataset, error) {
	n := 10
	target := make([]float64, n)
	resp := make([]float64, n)
	for i := range target {
		target[i] = m.Range.Lower + rng.Float64()*(m.Range.Upper-m.Range.Lower)
		if rng.Float64() < 0.5 {
			resp[i] = 1
		}
	}
	return &threshold.Dataset{
		Response: "y",
		Columns:  map[string][]float64{m.TargetName: target, "y": resp},
	}, nil
}

func (m *FuncModel) Refit(ctx context.Context, ds *threshold.Dataset) (ports.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clone := *m
	clone.Coef = m.Coef.Clone()
	return &clone, nil
}

func (m *FuncModel) TrainingRange() threshold.Bounds { return m.Range }

func (m *FuncModel) TargetCenter() float64 { return m.Center }
