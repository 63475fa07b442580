package uncertainty

import (
	"context"
	"fmt"
	"math/rand/v2"

	"gol50/domain/core"
	"gol50/domain/threshold"
	"gol50/internal"
	"gol50/internal/metrics"
	"gol50/internal/solver"
	"gol50/ports"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat/distmv"
)

// GaussianEstimator resamples coefficient vectors from N(beta, Sigma) and
// solves the threshold crossing for each draw.
type GaussianEstimator struct {
	config Config
	logger *internal.Logger
}

// NewGaussianEstimator creates an estimator. Method defaults to normal.
func NewGaussianEstimator(config Config, logger *internal.Logger) *GaussianEstimator {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &GaussianEstimator{config: config.withDefaults(threshold.IntervalNormal), logger: logger}
}

// CheckModel reports ErrUnsupportedModel when the model has no usable
// covariance, without drawing anything.
func (e *GaussianEstimator) CheckModel(model ports.Model) error {
	_, err := e.distribution(model, rand.NewPCG(0, 0))
	return err
}

func (e *GaussianEstimator) distribution(model ports.Model, src rand.Source) (*distmv.Normal, error) {
	cov, err := model.Covariance()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", core.ErrUnsupportedModel, model.Name(), err)
	}
	if cov == nil {
		return nil, core.NewUnsupportedModelError(model.Name(), "coefficient covariance")
	}
	coef := model.Coefficients()
	if cov.SymmetricDim() != len(coef) {
		return nil, fmt.Errorf("%w: %s covariance is %dx%d for %d coefficients",
			core.ErrUnsupportedModel, model.Name(), cov.SymmetricDim(), cov.SymmetricDim(), len(coef))
	}
	dist, ok := distmv.NewNormal(coef, cov, src)
	if !ok {
		return nil, fmt.Errorf("%w: %s covariance is not positive definite", core.ErrUnsupportedModel, model.Name())
	}
	return dist, nil
}

// Estimate returns the interval for one auxiliary row from nSamples draws.
// The point estimate comes from the unperturbed coefficients. A draw whose
// crossing lies outside bounds keeps the boundary value the solver stops at
// and is counted as censored. A draw whose prediction fails is dropped; more
// than MaxDroppedFraction dropped draws fail the estimate.
func (e *GaussianEstimator) Estimate(ctx context.Context, rng *rand.Rand, model ports.Model, auxiliary threshold.CovariateRow, nSamples int, bounds threshold.Bounds) (threshold.UncertaintyInterval, error) {
	if nSamples < minReplicates {
		return threshold.UncertaintyInterval{}, fmt.Errorf("%w: %d samples requested", core.ErrInsufficientReplicates, nSamples)
	}
	dist, err := e.distribution(model, rng)
	if err != nil {
		return threshold.UncertaintyInterval{}, err
	}

	point, err := solver.NewLinkEvaluator(model, model.Coefficients(), e.config.Threshold).
		Solve(auxiliary, bounds, e.config.Solve)
	if err != nil {
		return threshold.UncertaintyInterval{}, err
	}

	// draws are taken sequentially so the sample set depends only on rng
	draws := make([][]float64, nSamples)
	for i := range draws {
		draws[i] = dist.Rand(nil)
	}

	results := make([]threshold.SolveResult, nSamples)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.Workers)
	for i := range draws {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := solver.NewLinkEvaluator(model, draws[i], e.config.Threshold).
				Solve(auxiliary, bounds, e.config.Solve)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return threshold.UncertaintyInterval{}, err
	}

	used := make([]float64, 0, nSamples)
	censored := 0
	for _, res := range results {
		if res.Diagnostic != "" {
			continue
		}
		if !res.Converged {
			censored++
		}
		used = append(used, res.TargetValue)
	}
	dropped := nSamples - len(used)
	metrics.ObserveReplicates("gaussian", len(used), dropped)
	if float64(dropped)/float64(nSamples) > e.config.MaxDroppedFraction {
		return threshold.UncertaintyInterval{}, core.NewInsufficientReplicatesError(dropped, nSamples, e.config.MaxDroppedFraction)
	}
	if dropped > 0 {
		e.logger.Warn("[Gaussian] %s row %s: dropped %d of %d draws after prediction errors", model.Name(), auxiliary, dropped, nSamples)
	}
	if censored > 0 {
		e.logger.Warn("[Gaussian] %s row %s: %d of %d draws cross outside [%g, %g]; interval is censored at the bound",
			model.Name(), auxiliary, censored, len(used), bounds.Lower, bounds.Upper)
	}

	lower, upper, err := summarize(point.TargetValue, used, e.config.Method, e.config.Level)
	if err != nil {
		return threshold.UncertaintyInterval{}, err
	}
	return threshold.UncertaintyInterval{
		PointEstimate:  point.TargetValue,
		Lower:          lower,
		Upper:          upper,
		ReplicateCount: len(used),
		Dropped:        dropped,
		Censored:       censored,
		Method:         e.config.Method,
		Level:          e.config.Level,
		Semantics:      threshold.SemanticsGaussian,
	}, nil
}
