package solver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"gol50/domain/core"
	"gol50/domain/threshold"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"
)

// boxMargin keeps start points strictly inside each box so the logistic
// reparametrisation stays finite
const boxMargin = 1e-6

// GridResult is the outcome of a simultaneous solve over a covariate grid.
type GridResult struct {
	TargetValues       []float64 `json:"target_values"`
	ObjectiveAtMinimum float64   `json:"objective_at_minimum"`
	Converged          bool      `json:"converged"`
	Iterations         int       `json:"iterations"`
	Status             string    `json:"status"`
	Diagnostic         string    `json:"diagnostic,omitempty"`
	// Failed is set when the objective could not be evaluated; TargetValues
	// then carry no information about the crossings.
	Failed bool `json:"failed,omitempty"`
}

// box maps an unconstrained coordinate into [lower, upper] through a
// logistic curve, which turns L-BFGS into a box-constrained method.
type box struct {
	bounds []threshold.Bounds
}

func (b box) toX(dst, u []float64) []float64 {
	for i, bd := range b.bounds {
		dst[i] = bd.Lower + (bd.Upper-bd.Lower)/(1+math.Exp(-u[i]))
	}
	return dst
}

func (b box) toU(x []float64) []float64 {
	u := make([]float64, len(x))
	for i, bd := range b.bounds {
		s := (bd.Clamp(x[i]) - bd.Lower) / (bd.Upper - bd.Lower)
		s = math.Min(math.Max(s, boxMargin), 1-boxMargin)
		u[i] = math.Log(s / (1 - s))
	}
	return u
}

// SolveGrid minimizes a grid objective with one free target value per row,
// each confined to its own bounds, using limited-memory BFGS and a
// central-difference gradient. x0 is the starting point, clamped into the box.
func SolveGrid(ctx context.Context, objective GridObjective, bounds []threshold.Bounds, x0 []float64, opts Options) (GridResult, error) {
	if len(bounds) == 0 {
		return GridResult{}, fmt.Errorf("%w: empty grid", core.ErrInvalidBounds)
	}
	if len(x0) != len(bounds) {
		return GridResult{}, fmt.Errorf("start point has %d values for %d rows", len(x0), len(bounds))
	}
	for i, b := range bounds {
		if err := b.Validate(); err != nil {
			return GridResult{}, fmt.Errorf("grid row %d: %w", i, err)
		}
	}
	opts = opts.withDefaults()
	bx := box{bounds: bounds}

	var (
		mu      sync.Mutex
		evalErr error
	)
	scratch := make([]float64, len(bounds))
	f := func(u []float64) float64 {
		mu.Lock()
		defer mu.Unlock()
		v, err := objective(bx.toX(scratch, u))
		if err != nil {
			if evalErr == nil {
				evalErr = err
			}
			return math.Inf(1)
		}
		return v
	}

	problem := optimize.Problem{
		Func: f,
		Grad: func(grad, u []float64) {
			fd.Gradient(grad, f, u, &fd.Settings{Formula: fd.Central})
		},
		Status: func() (optimize.Status, error) {
			if err := ctx.Err(); err != nil {
				return optimize.Failure, err
			}
			mu.Lock()
			defer mu.Unlock()
			if evalErr != nil {
				return optimize.Failure, evalErr
			}
			return optimize.NotTerminated, nil
		},
	}
	settings := &optimize.Settings{
		MajorIterations:   opts.MaxIterations,
		Runtime:           opts.Timeout,
		GradientThreshold: 1e-12,
		Converger: &optimize.FunctionConverge{
			Absolute:   opts.Tolerance * 1e-6,
			Iterations: 25,
		},
	}

	start := bx.toU(x0)
	res, err := optimize.Minimize(problem, start, settings, &optimize.LBFGS{})

	mu.Lock()
	predictionErr := evalErr
	mu.Unlock()
	if predictionErr != nil && !errors.Is(predictionErr, core.ErrPrediction) {
		return GridResult{}, predictionErr
	}

	if res == nil {
		x := bx.toX(make([]float64, len(bounds)), start)
		out := GridResult{TargetValues: x, ObjectiveAtMinimum: math.MaxFloat64, Status: optimize.Failure.String(), Failed: true}
		if err != nil {
			out.Diagnostic = err.Error()
		}
		return out, nil
	}

	x := bx.toX(make([]float64, len(bounds)), res.X)
	out := GridResult{
		TargetValues:       x,
		ObjectiveAtMinimum: res.F,
		Iterations:         res.Stats.MajorIterations,
		Status:             res.Status.String(),
	}
	if math.IsInf(out.ObjectiveAtMinimum, 0) || math.IsNaN(out.ObjectiveAtMinimum) {
		out.ObjectiveAtMinimum = math.MaxFloat64
	}
	out.Converged = predictionErr == nil && out.ObjectiveAtMinimum <= opts.Tolerance
	switch {
	case predictionErr != nil:
		out.Diagnostic = predictionErr.Error()
		out.Failed = true
	case !out.Converged && err != nil:
		out.Diagnostic = err.Error()
	}
	return out, nil
}

// RowResults splits a grid solve into per-row results using the row
// objectives, so each row reports its own residual.
func (r GridResult) RowResults(e *LinkEvaluator, rows []threshold.CovariateRow, bounds []threshold.Bounds, tolerance float64) []threshold.SolveResult {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	out := make([]threshold.SolveResult, len(rows))
	training := e.Model().TrainingRange()
	for i, row := range rows {
		sr := threshold.SolveResult{
			TargetValue: r.TargetValues[i],
			Bracket:     bounds[i],
			Iterations:  r.Iterations,
			Diagnostic:  r.Diagnostic,
		}
		v, err := e.Evaluate(r.TargetValues[i], row)
		if err != nil {
			sr.ObjectiveAtMinimum = math.MaxFloat64
			sr.Diagnostic = err.Error()
		} else {
			sr.ObjectiveAtMinimum = v * v
			sr.Converged = sr.ObjectiveAtMinimum <= tolerance
		}
		sr.Extrapolated = !training.Contains(sr.TargetValue)
		out[i] = sr
	}
	return out
}
