package uncertainty

import (
	"context"
	"fmt"

	"gol50/domain/core"
	"gol50/domain/threshold"
	"gol50/internal"
	"gol50/internal/metrics"
	"gol50/internal/solver"
	"gol50/ports"

	"golang.org/x/sync/errgroup"
)

// BootstrapEstimator runs the parametric bootstrap: simulate a dataset from
// the fitted model, refit, and solve every grid row against the refit.
type BootstrapEstimator struct {
	config  Config
	streams ports.RNGPort
	logger  *internal.Logger
}

// NewBootstrapEstimator creates an estimator. Method defaults to percentile.
// Replicate r always draws from streams.Stream("bootstrap", r).
func NewBootstrapEstimator(config Config, streams ports.RNGPort, logger *internal.Logger) *BootstrapEstimator {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &BootstrapEstimator{
		config:  config.withDefaults(threshold.IntervalPercentile),
		streams: streams,
		logger:  logger,
	}
}

// replicate is one worker's slot
type replicate struct {
	values []float64
	// onBound marks rows whose crossing lay outside their bounds, so the
	// value is the boundary the solver stopped at
	onBound []bool
	ok      bool
	reason  string
}

// broadcast expands one shared pair to every row, or checks that there is
// one pair per row.
func broadcast(bounds []threshold.Bounds, rows int) ([]threshold.Bounds, error) {
	switch len(bounds) {
	case 1:
		boxes := make([]threshold.Bounds, rows)
		for i := range boxes {
			boxes[i] = bounds[0]
		}
		return boxes, nil
	case rows:
		return append([]threshold.Bounds(nil), bounds...), nil
	}
	return nil, fmt.Errorf("%w: %d bound pairs for %d grid rows", core.ErrInvalidBounds, len(bounds), rows)
}

// Estimate returns one interval per grid row, in grid order. bounds holds
// one pair per row, or a single pair shared by every row. The point
// estimates come from a grid solve against the original model.
//
// A replicate is dropped only when its simulation, refit or grid solve
// fails; replicates not started before the batch timeout count as dropped
// too. A row whose crossing lies outside its bounds keeps the boundary
// value and is counted as censored.
func (e *BootstrapEstimator) Estimate(ctx context.Context, model ports.Model, grid []threshold.CovariateRow, nReplicates int, bounds []threshold.Bounds, useFittedRandomEffects bool) ([]threshold.UncertaintyInterval, error) {
	if len(grid) == 0 {
		return nil, nil
	}
	if nReplicates < minReplicates {
		return nil, fmt.Errorf("%w: %d replicates requested", core.ErrInsufficientReplicates, nReplicates)
	}
	boxes, err := broadcast(bounds, len(grid))
	if err != nil {
		return nil, err
	}
	for i, b := range boxes {
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("grid row %d: %w", i, err)
		}
	}

	point, err := solver.NewLinkEvaluator(model, model.Coefficients(), e.config.Threshold).
		SolveGrid(ctx, grid, boxes, e.config.Solve)
	if err != nil {
		return nil, err
	}
	if !point.Converged {
		e.logger.Warn("[Bootstrap] %s point grid solve did not converge (objective %g)", model.Name(), point.ObjectiveAtMinimum)
	}

	batchCtx := ctx
	if e.config.BatchTimeout > 0 {
		var cancel context.CancelFunc
		batchCtx, cancel = context.WithTimeout(ctx, e.config.BatchTimeout)
		defer cancel()
	}

	slots := make([]replicate, nReplicates)
	var g errgroup.Group
	g.SetLimit(e.config.Workers)
	started := 0
	for r := 0; r < nReplicates; r++ {
		if batchCtx.Err() != nil {
			break
		}
		started++
		g.Go(func() error {
			slots[r] = e.replicate(batchCtx, model, grid, boxes, r, useFittedRandomEffects)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if started < nReplicates {
		e.logger.Warn("[Bootstrap] batch timeout after %d of %d replicates", started, nReplicates)
	}

	perRow := make([][]float64, len(grid))
	censored := make([]int, len(grid))
	used := 0
	for _, s := range slots {
		if !s.ok {
			if s.reason != "" {
				e.logger.Trace("[Bootstrap] dropped replicate: %s", s.reason)
			}
			continue
		}
		used++
		for i, v := range s.values {
			perRow[i] = append(perRow[i], v)
			if s.onBound[i] {
				censored[i]++
			}
		}
	}
	dropped := nReplicates - used
	metrics.ObserveReplicates("bootstrap", used, dropped)
	if float64(dropped)/float64(nReplicates) > e.config.MaxDroppedFraction {
		return nil, core.NewInsufficientReplicatesError(dropped, nReplicates, e.config.MaxDroppedFraction)
	}
	if dropped > 0 {
		e.logger.Info("[Bootstrap] %s: %d of %d replicates dropped", model.Name(), dropped, nReplicates)
	}

	semantics := threshold.BootstrapSemantics(useFittedRandomEffects)
	out := make([]threshold.UncertaintyInterval, len(grid))
	for i := range grid {
		if censored[i] > 0 {
			e.logger.Warn("[Bootstrap] %s row %s: %d of %d replicates cross outside [%g, %g]; interval is censored at the bound",
				model.Name(), grid[i], censored[i], used, boxes[i].Lower, boxes[i].Upper)
		}
		lower, upper, err := summarize(point.TargetValues[i], perRow[i], e.config.Method, e.config.Level)
		if err != nil {
			return nil, err
		}
		out[i] = threshold.UncertaintyInterval{
			PointEstimate:  point.TargetValues[i],
			Lower:          lower,
			Upper:          upper,
			ReplicateCount: used,
			Dropped:        dropped,
			Censored:       censored[i],
			Method:         e.config.Method,
			Level:          e.config.Level,
			Semantics:      semantics,
		}
	}
	return out, nil
}

func (e *BootstrapEstimator) replicate(ctx context.Context, model ports.Model, grid []threshold.CovariateRow, boxes []threshold.Bounds, r int, conditional bool) replicate {
	if err := ctx.Err(); err != nil {
		return replicate{reason: err.Error()}
	}
	sim, err := model.Simulate(e.streams.Stream("bootstrap", r), conditional)
	if err != nil {
		return replicate{reason: fmt.Sprintf("replicate %d simulate: %v", r, err)}
	}
	refit, err := model.Refit(ctx, sim)
	if err != nil {
		return replicate{reason: fmt.Sprintf("replicate %d refit: %v", r, err)}
	}
	evaluator := solver.NewLinkEvaluator(refit, refit.Coefficients(), e.config.Threshold)
	res, err := evaluator.SolveGrid(ctx, grid, boxes, e.config.Solve)
	metrics.ObserveSolve("grid", res.Converged, err != nil || res.Failed, res.Iterations)
	if err != nil {
		return replicate{reason: fmt.Sprintf("replicate %d solve: %v", r, err)}
	}
	if res.Failed {
		return replicate{reason: fmt.Sprintf("replicate %d solve: %s", r, res.Diagnostic)}
	}
	if err := ctx.Err(); err != nil {
		return replicate{reason: fmt.Sprintf("replicate %d solve interrupted: %v", r, err)}
	}

	onBound := make([]bool, len(grid))
	if !res.Converged {
		for i, row := range res.RowResults(evaluator, grid, boxes, e.config.Solve.Tolerance) {
			onBound[i] = !row.Converged
		}
	}
	return replicate{values: res.TargetValues, onBound: onBound, ok: true}
}
