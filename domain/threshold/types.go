package threshold

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gol50/domain/core"

	"gonum.org/v1/gonum/mat"
)

// CovariateRow maps covariate names to values. The target covariate is the
// axis being solved for; every other entry is held fixed during a solve.
type CovariateRow map[string]float64

// Clone returns an independent copy of the row.
func (r CovariateRow) Clone() CovariateRow {
	out := make(CovariateRow, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// With returns a copy of the row with name set to value.
func (r CovariateRow) With(name string, value float64) CovariateRow {
	out := r.Clone()
	out[name] = value
	return out
}

// Without returns a copy of the row without name.
func (r CovariateRow) Without(name string) CovariateRow {
	out := r.Clone()
	delete(out, name)
	return out
}

// Require checks that every name is present and finite.
func (r CovariateRow) Require(names ...string) error {
	for _, name := range names {
		v, ok := r[name]
		if !ok {
			return core.NewMissingCovariateError(name)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: covariate %q is not finite", core.ErrInvalidCovariate, name)
		}
	}
	return nil
}

// Names returns the covariate names in sorted order.
func (r CovariateRow) Names() []string {
	names := make([]string, 0, len(r))
	for k := range r {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// String renders the row as "a=1, b=2" in name order.
func (r CovariateRow) String() string {
	parts := make([]string, 0, len(r))
	for _, name := range r.Names() {
		parts = append(parts, fmt.Sprintf("%s=%g", name, r[name]))
	}
	return strings.Join(parts, ", ")
}

// CoefficientVector is the ordered parameter vector of a fitted model.
type CoefficientVector []float64

// Clone returns an independent copy.
func (c CoefficientVector) Clone() CoefficientVector {
	out := make(CoefficientVector, len(c))
	copy(out, c)
	return out
}

// CoefficientCovariance is aligned with CoefficientVector ordering.
type CoefficientCovariance = *mat.SymDense

// Bounds is a closed search interval on the target covariate's native scale.
type Bounds struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Validate checks that the bounds form a non-empty finite interval.
func (b Bounds) Validate() error {
	if math.IsNaN(b.Lower) || math.IsNaN(b.Upper) || math.IsInf(b.Lower, 0) || math.IsInf(b.Upper, 0) {
		return fmt.Errorf("%w: bounds must be finite", core.ErrInvalidBounds)
	}
	if !(b.Lower < b.Upper) {
		return core.NewBoundsError(b.Lower, b.Upper)
	}
	return nil
}

// Contains reports whether x lies inside the closed interval.
func (b Bounds) Contains(x float64) bool {
	return x >= b.Lower && x <= b.Upper
}

// Clamp projects x onto the interval.
func (b Bounds) Clamp(x float64) float64 {
	return math.Min(math.Max(x, b.Lower), b.Upper)
}

// Mid returns the midpoint of the interval.
func (b Bounds) Mid() float64 {
	return b.Lower + (b.Upper-b.Lower)/2
}

// SolveResult is the outcome of one threshold solve.
type SolveResult struct {
	TargetValue        float64 `json:"target_value"`
	ObjectiveAtMinimum float64 `json:"objective_at_minimum"`
	Converged          bool    `json:"converged"`
	Bracket            Bounds  `json:"bracket"`
	Iterations         int     `json:"iterations"`
	// Extrapolated is set when TargetValue lies outside the model's training range.
	Extrapolated bool `json:"extrapolated"`
	// Diagnostic carries the model-side reason when a prediction error stopped the solve.
	Diagnostic string `json:"diagnostic,omitempty"`
}

// IntervalMethod selects how replicate values become an interval.
type IntervalMethod string

const (
	// IntervalNormal reports point ± z·sd of the replicate values.
	IntervalNormal IntervalMethod = "normal"
	// IntervalPercentile reports empirical quantiles of the replicate values.
	IntervalPercentile IntervalMethod = "percentile"
)

// ParseIntervalMethod parses a configuration value.
func ParseIntervalMethod(s string) (IntervalMethod, error) {
	switch IntervalMethod(strings.ToLower(strings.TrimSpace(s))) {
	case IntervalNormal:
		return IntervalNormal, nil
	case IntervalPercentile:
		return IntervalPercentile, nil
	}
	return "", fmt.Errorf("unknown interval method %q (want normal or percentile)", s)
}

// Semantics records which sources of uncertainty an interval covers.
type Semantics string

const (
	SemanticsGaussian      Semantics = "gaussian"
	SemanticsConditional   Semantics = "conditional"
	SemanticsUnconditional Semantics = "unconditional"
)

// BootstrapSemantics maps the use-fitted-random-effects flag to its meaning.
func BootstrapSemantics(useFittedRandomEffects bool) Semantics {
	if useFittedRandomEffects {
		return SemanticsConditional
	}
	return SemanticsUnconditional
}

// UncertaintyInterval summarizes the resampled distribution of a threshold
// crossing. Lower <= PointEstimate <= Upper is not guaranteed: percentile
// intervals of skewed replicate sets may exclude the point estimate.
type UncertaintyInterval struct {
	PointEstimate  float64 `json:"point_estimate"`
	Lower          float64 `json:"lower"`
	Upper          float64 `json:"upper"`
	ReplicateCount int     `json:"replicate_count"`
	Dropped        int     `json:"dropped"`
	// Censored counts kept values that sit on a bound because that
	// replicate's crossing lay outside the search interval.
	Censored  int            `json:"censored"`
	Method    IntervalMethod `json:"method"`
	Level     float64        `json:"level"`
	Semantics Semantics      `json:"semantics"`
}

// Width returns Upper - Lower.
func (u UncertaintyInterval) Width() float64 {
	return u.Upper - u.Lower
}

// Covers reports whether x lies inside [Lower, Upper].
func (u UncertaintyInterval) Covers(x float64) bool {
	return x >= u.Lower && x <= u.Upper
}

// LogitThreshold converts a probability target into a logit-scale threshold.
func LogitThreshold(p float64) (float64, error) {
	if !(p > 0 && p < 1) {
		return 0, fmt.Errorf("target probability %g must lie in (0, 1)", p)
	}
	return math.Log(p / (1 - p)), nil
}
