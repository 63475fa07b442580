package additive

import (
	"fmt"
	"math"

	"gol50/domain/core"
	"gol50/domain/threshold"

	"gonum.org/v1/gonum/mat"
)

// Spec describes the linear predictor of an additive logistic model:
// intercept + s(target) + auxiliary main effects + target:auxiliary slopes.
// With Knots == 0 the target term is linear and the model is a plain GLM.
type Spec struct {
	Target       string   `json:"target" validate:"required"`
	Auxiliary    []string `json:"auxiliary"`
	Interactions []string `json:"interactions"`
	Knots        int      `json:"knots" validate:"gte=0,lte=40"`
	Lambda       float64  `json:"lambda" validate:"gte=0"`
}

// Validate checks that interactions refer to auxiliary covariates.
func (s Spec) Validate() error {
	if s.Target == "" {
		return fmt.Errorf("%w: target covariate is required", core.ErrInvalidDataset)
	}
	aux := make(map[string]bool, len(s.Auxiliary))
	for _, name := range s.Auxiliary {
		if name == s.Target {
			return fmt.Errorf("%w: %q is both target and auxiliary", core.ErrInvalidDataset, name)
		}
		aux[name] = true
	}
	for _, name := range s.Interactions {
		if !aux[name] {
			return fmt.Errorf("%w: interaction %q is not an auxiliary covariate", core.ErrInvalidDataset, name)
		}
	}
	if s.Knots < 0 || s.Lambda < 0 {
		return fmt.Errorf("%w: knots and lambda must be non-negative", core.ErrInvalidDataset)
	}
	return nil
}

// Design builds basis rows. The target is rescaled onto [0, 1] over the
// range it was constructed with; the same Design is reused on refits so
// coefficients keep their meaning across bootstrap replicates.
type Design struct {
	spec  Spec
	scale threshold.Bounds
	knots []float64
}

// NewDesign fixes the target scaling and knot positions.
func NewDesign(spec Spec, scale threshold.Bounds) (*Design, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if err := scale.Validate(); err != nil {
		return nil, fmt.Errorf("%w: target %q has no spread", core.ErrInvalidDataset, spec.Target)
	}
	knots := make([]float64, spec.Knots)
	for k := range knots {
		knots[k] = float64(k+1) / float64(spec.Knots+1)
	}
	return &Design{spec: spec, scale: scale, knots: knots}, nil
}

// Spec returns the model specification
func (d *Design) Spec() Spec { return d.spec }

// Columns is the basis width
func (d *Design) Columns() int {
	return 2 + len(d.knots) + len(d.spec.Auxiliary) + len(d.spec.Interactions)
}

// Covariates lists every covariate a row must carry
func (d *Design) Covariates() []string {
	return append([]string{d.spec.Target}, d.spec.Auxiliary...)
}

// Row returns the basis row for one covariate row.
func (d *Design) Row(row threshold.CovariateRow) ([]float64, error) {
	if err := row.Require(d.Covariates()...); err != nil {
		return nil, err
	}
	return d.fill(make([]float64, 0, d.Columns()), row), nil
}

func (d *Design) fill(dst []float64, row threshold.CovariateRow) []float64 {
	u := (row[d.spec.Target] - d.scale.Lower) / (d.scale.Upper - d.scale.Lower)
	dst = append(dst, 1, u)
	for _, k := range d.knots {
		t := math.Max(u-k, 0)
		dst = append(dst, t*t*t)
	}
	for _, name := range d.spec.Auxiliary {
		dst = append(dst, row[name])
	}
	for _, name := range d.spec.Interactions {
		dst = append(dst, u*row[name])
	}
	return dst
}

// Matrix builds the n x p design matrix for a dataset.
func (d *Design) Matrix(ds *threshold.Dataset) (*mat.Dense, error) {
	if err := ds.Validate(d.Covariates()...); err != nil {
		return nil, err
	}
	n, p := ds.Len(), d.Columns()
	x := mat.NewDense(n, p, nil)
	buf := make([]float64, 0, p)
	for i := 0; i < n; i++ {
		buf = d.fill(buf[:0], ds.Row(i))
		x.SetRow(i, buf)
	}
	return x, nil
}

// Penalty returns the ridge penalty on the spline coefficients, or nil
// when the target term is linear.
func (d *Design) Penalty() *mat.SymDense {
	if len(d.knots) == 0 || d.spec.Lambda == 0 {
		return nil
	}
	s := mat.NewSymDense(d.Columns(), nil)
	for k := range d.knots {
		s.SetSym(2+k, 2+k, d.spec.Lambda)
	}
	return s
}
