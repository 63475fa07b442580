package solver

import (
	"context"
	"fmt"

	"gol50/domain/threshold"
	"gol50/ports"

	"gonum.org/v1/gonum/floats"
)

// Objective is a scalar function of the target covariate.
type Objective func(x float64) (float64, error)

// GridObjective is a scalar function of one target value per grid row.
type GridObjective func(x []float64) (float64, error)

// LinkEvaluator evaluates a model's link-scale prediction, centered on the
// threshold, as a function of the target covariate alone.
type LinkEvaluator struct {
	model        ports.Model
	coefficients threshold.CoefficientVector
	threshold    float64
	auxiliary    []string
}

// NewLinkEvaluator binds a model to a coefficient vector and a link-scale
// threshold. The coefficients are copied.
func NewLinkEvaluator(model ports.Model, coefficients threshold.CoefficientVector, linkThreshold float64) *LinkEvaluator {
	var aux []string
	for _, name := range model.Covariates() {
		if name != model.Target() {
			aux = append(aux, name)
		}
	}
	return &LinkEvaluator{
		model:        model,
		coefficients: coefficients.Clone(),
		threshold:    linkThreshold,
		auxiliary:    aux,
	}
}

// Model returns the bound model
func (e *LinkEvaluator) Model() ports.Model {
	return e.model
}

// CheckRow verifies that the auxiliary row carries every covariate the model needs.
func (e *LinkEvaluator) CheckRow(auxiliary threshold.CovariateRow) error {
	return auxiliary.Require(e.auxiliary...)
}

// Evaluate returns link(target, auxiliary) - threshold. Model errors are
// returned unchanged.
func (e *LinkEvaluator) Evaluate(target float64, auxiliary threshold.CovariateRow) (float64, error) {
	if err := e.CheckRow(auxiliary); err != nil {
		return 0, err
	}
	basis, err := e.model.Basis(auxiliary.With(e.model.Target(), target))
	if err != nil {
		return 0, err
	}
	if len(basis) != len(e.coefficients) {
		return 0, fmt.Errorf("%s basis has %d columns but %d coefficients were supplied",
			e.model.Name(), len(basis), len(e.coefficients))
	}
	return floats.Dot(basis, e.coefficients) - e.threshold, nil
}

// Objective returns the squared centered link as a function of the target.
func (e *LinkEvaluator) Objective(auxiliary threshold.CovariateRow) (Objective, error) {
	if err := e.CheckRow(auxiliary); err != nil {
		return nil, err
	}
	row := auxiliary.Clone()
	return func(x float64) (float64, error) {
		v, err := e.Evaluate(x, row)
		if err != nil {
			return 0, err
		}
		return v * v, nil
	}, nil
}

// GridObjective returns the sum of squared centered links over all rows,
// with x[i] the target value of rows[i].
func (e *LinkEvaluator) GridObjective(rows []threshold.CovariateRow) (GridObjective, error) {
	grid := make([]threshold.CovariateRow, len(rows))
	for i, row := range rows {
		if err := e.CheckRow(row); err != nil {
			return nil, fmt.Errorf("grid row %d: %w", i, err)
		}
		grid[i] = row.Clone()
	}
	return func(x []float64) (float64, error) {
		sum := 0.0
		for i, row := range grid {
			v, err := e.Evaluate(x[i], row)
			if err != nil {
				return 0, err
			}
			sum += v * v
		}
		return sum, nil
	}, nil
}

// Solve locates the threshold crossing for one auxiliary row and flags
// solutions outside the model's training range.
func (e *LinkEvaluator) Solve(auxiliary threshold.CovariateRow, bounds threshold.Bounds, opts Options) (threshold.SolveResult, error) {
	objective, err := e.Objective(auxiliary)
	if err != nil {
		return threshold.SolveResult{}, err
	}
	result, err := Solve(objective, bounds, opts)
	if err != nil {
		return result, err
	}
	result.Extrapolated = !e.model.TrainingRange().Contains(result.TargetValue)
	return result, nil
}

// SolveGrid locates all rows' crossings at once, starting from the model's
// target center.
func (e *LinkEvaluator) SolveGrid(ctx context.Context, rows []threshold.CovariateRow, bounds []threshold.Bounds, opts Options) (GridResult, error) {
	objective, err := e.GridObjective(rows)
	if err != nil {
		return GridResult{}, err
	}
	x0 := make([]float64, len(rows))
	for i := range x0 {
		x0[i] = e.model.TargetCenter()
	}
	return SolveGrid(ctx, objective, bounds, x0, opts)
}
