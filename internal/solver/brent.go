package solver

import (
	"errors"
	"math"
	"time"

	"gol50/domain/core"
	"gol50/domain/threshold"
)

// goldenRatio is (3 - sqrt(5)) / 2, the golden-section step fraction
var goldenRatio = (3 - math.Sqrt(5)) / 2

// sqrtEpsilon is the relative precision limit of a parabolic minimizer
var sqrtEpsilon = math.Sqrt(math.Nextafter(1, 2) - 1)

// Solve minimizes objective over [bounds.Lower, bounds.Upper] with Brent's
// derivative-free method: golden-section steps safeguarded by parabolic
// interpolation. The bracket endpoints are compared against the interior
// minimum at the end, so a root beyond the bracket yields a bound.
//
// Non-convergence is reported through SolveResult.Converged, never as an
// error. A model-side prediction error stops the search and is recorded in
// SolveResult.Diagnostic. If the objective has several minima inside the
// bracket, some local minimum is returned.
func Solve(objective Objective, bounds threshold.Bounds, opts Options) (threshold.SolveResult, error) {
	if err := bounds.Validate(); err != nil {
		return threshold.SolveResult{}, err
	}
	opts = opts.withDefaults()

	result := threshold.SolveResult{Bracket: bounds}
	var deadline time.Time
	if opts.Timeout > 0 {
		deadline = time.Now().Add(opts.Timeout)
	}

	// stop records a prediction error and returns the best point so far
	stop := func(x, fx float64, err error) (threshold.SolveResult, error) {
		if !errors.Is(err, core.ErrPrediction) {
			return threshold.SolveResult{}, err
		}
		result.TargetValue = x
		result.ObjectiveAtMinimum = fx
		result.Converged = false
		result.Diagnostic = err.Error()
		return result, nil
	}

	a, b := bounds.Lower, bounds.Upper
	x := a + goldenRatio*(b-a)
	w, v := x, x
	var d, e float64

	fx, err := objective(x)
	if err != nil {
		return stop(x, math.MaxFloat64, err)
	}
	fw, fv := fx, fx
	tol3 := opts.XTolerance / 3

	iter := 0
	for ; iter < opts.MaxIterations; iter++ {
		if !deadline.IsZero() && time.Now().After(deadline) {
			break
		}

		xm := (a + b) / 2
		tol1 := sqrtEpsilon*math.Abs(x) + tol3
		t2 := 2 * tol1
		if math.Abs(x-xm) <= t2-(b-a)/2 {
			break
		}

		var p, q, r float64
		if math.Abs(e) > tol1 {
			// Fit a parabola through x, w, v
			r = (x - w) * (fx - fv)
			q = (x - v) * (fx - fw)
			p = (x-v)*q - (x-w)*r
			q = (q - r) * 2
			if q > 0 {
				p = -p
			} else {
				q = -q
			}
			r = e
			e = d
		}

		if math.Abs(p) >= math.Abs(q*0.5*r) || p <= q*(a-x) || p >= q*(b-x) {
			// Golden-section step into the larger segment
			if x < xm {
				e = b - x
			} else {
				e = a - x
			}
			d = goldenRatio * e
		} else {
			// Parabolic interpolation step
			d = p / q
			u := x + d
			if u-a < t2 || b-u < t2 {
				d = tol1
				if x >= xm {
					d = -d
				}
			}
		}

		var u float64
		switch {
		case math.Abs(d) >= tol1:
			u = x + d
		case d > 0:
			u = x + tol1
		default:
			u = x - tol1
		}

		fu, err := objective(u)
		if err != nil {
			return stop(x, fx, err)
		}

		if fu <= fx {
			if u < x {
				b = x
			} else {
				a = x
			}
			v, fv = w, fw
			w, fw = x, fx
			x, fx = u, fu
		} else {
			if u < x {
				a = u
			} else {
				b = u
			}
			if fu <= fw || w == x {
				v, fv = w, fw
				w, fw = u, fu
			} else if fu <= fv || v == x || v == w {
				v, fv = u, fu
			}
		}
	}

	// The interior search never touches the bracket ends
	for _, end := range []float64{bounds.Lower, bounds.Upper} {
		fe, err := objective(end)
		if err != nil {
			if errors.Is(err, core.ErrPrediction) {
				continue
			}
			return threshold.SolveResult{}, err
		}
		if fe < fx {
			x, fx = end, fe
		}
	}

	result.TargetValue = x
	result.ObjectiveAtMinimum = fx
	result.Converged = fx <= opts.Tolerance
	result.Iterations = iter
	return result, nil
}
