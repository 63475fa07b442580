// Package uncertainty turns resampled threshold crossings into intervals:
// Gaussian coefficient resampling for models with a covariance, and a
// parametric bootstrap for models without one.
package uncertainty

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gol50/domain/core"
	"gol50/domain/threshold"
	"gol50/internal/solver"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	DefaultLevel              = 0.95
	DefaultMaxDroppedFraction = 0.10
	// minReplicates is the smallest replicate set an interval is built from
	minReplicates = 2
)

// Config is shared by both estimators.
type Config struct {
	// Threshold is the link-scale value whose crossing is located
	Threshold float64
	Solve     solver.Options
	// Method defaults to normal for the Gaussian estimator and percentile
	// for the bootstrap
	Method threshold.IntervalMethod
	Level  float64
	// Workers bounds concurrent solves or replicates
	Workers int
	// MaxDroppedFraction bounds the share of dropped replicates or draws
	MaxDroppedFraction float64
	// BatchTimeout bounds a whole bootstrap batch; zero means no limit
	BatchTimeout time.Duration
}

func (c Config) withDefaults(method threshold.IntervalMethod) Config {
	if c.Method == "" {
		c.Method = method
	}
	if c.Level <= 0 || c.Level >= 1 {
		c.Level = DefaultLevel
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.MaxDroppedFraction <= 0 {
		c.MaxDroppedFraction = DefaultMaxDroppedFraction
	}
	return c
}

// zValue is the two-sided standard normal quantile for level, 1.96 at 0.95
func zValue(level float64) float64 {
	return distuv.UnitNormal.Quantile(1 - (1-level)/2)
}

// summarize builds [lower, upper] from replicate values. values is sorted
// in place.
func summarize(point float64, values []float64, method threshold.IntervalMethod, level float64) (float64, float64, error) {
	if len(values) < minReplicates {
		return math.NaN(), math.NaN(), fmt.Errorf("%w: %d usable replicates", core.ErrInsufficientReplicates, len(values))
	}
	switch method {
	case threshold.IntervalNormal:
		sd, err := stats.StandardDeviationSample(values)
		if err != nil {
			return math.NaN(), math.NaN(), err
		}
		z := zValue(level)
		return point - z*sd, point + z*sd, nil
	case threshold.IntervalPercentile:
		sort.Float64s(values)
		alpha := (1 - level) / 2
		return stat.Quantile(alpha, stat.LinInterp, values, nil),
			stat.Quantile(1-alpha, stat.LinInterp, values, nil), nil
	default:
		return math.NaN(), math.NaN(), fmt.Errorf("unknown interval method %q", method)
	}
}
