package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gol50/domain/core"
	"gol50/domain/threshold"
	"gol50/internal"
	"gol50/internal/config"
	apperrors "gol50/internal/errors"
	"gol50/internal/metrics"
	"gol50/internal/solver"
	"gol50/internal/uncertainty"
	"gol50/ports"

	"golang.org/x/sync/errgroup"
)

// RunConfig carries the numeric settings of one orchestrated run
type RunConfig struct {
	Threshold              float64
	Bounds                 threshold.Bounds
	Solve                  solver.Options
	GaussianSamples        int
	BootstrapReplicates    int
	UseFittedRandomEffects bool
	Level                  float64
	GaussianInterval       threshold.IntervalMethod
	BootstrapInterval      threshold.IntervalMethod
	MaxDroppedFraction     float64
	BatchTimeout           time.Duration
	Workers                int
}

// RunConfigFromAnalysis converts the analysis section of the configuration.
func RunConfigFromAnalysis(a config.AnalysisConfig) (RunConfig, error) {
	gaussian, err := threshold.ParseIntervalMethod(a.GaussianInterval)
	if err != nil {
		return RunConfig{}, apperrors.WithCode(apperrors.CodeConfigInvalid, err)
	}
	bootstrap, err := threshold.ParseIntervalMethod(a.BootstrapInterval)
	if err != nil {
		return RunConfig{}, apperrors.WithCode(apperrors.CodeConfigInvalid, err)
	}
	return RunConfig{
		Threshold: a.Threshold,
		Bounds:    threshold.Bounds{Lower: a.Lower, Upper: a.Upper},
		Solve: solver.Options{
			Tolerance:     a.Tolerance,
			MaxIterations: a.MaxIterations,
			Timeout:       a.SolveTimeout,
		},
		GaussianSamples:        a.GaussianSamples,
		BootstrapReplicates:    a.BootstrapReplicates,
		UseFittedRandomEffects: a.UseFittedRandomEffects,
		Level:                  a.ConfidenceLevel,
		GaussianInterval:       gaussian,
		BootstrapInterval:      bootstrap,
		MaxDroppedFraction:     a.MaxDroppedFraction,
		BatchTimeout:           a.BatchTimeout,
		Workers:                a.Workers,
	}, nil
}

func (c RunConfig) estimatorConfig(method threshold.IntervalMethod) uncertainty.Config {
	return uncertainty.Config{
		Threshold:          c.Threshold,
		Solve:              c.Solve,
		Method:             method,
		Level:              c.Level,
		Workers:            c.Workers,
		MaxDroppedFraction: c.MaxDroppedFraction,
		BatchTimeout:       c.BatchTimeout,
	}
}

// Orchestrator solves a grid of auxiliary rows against one model and
// attaches the requested uncertainty estimate.
type Orchestrator struct {
	rng    ports.RNGPort
	logger *internal.Logger
}

// NewOrchestrator creates an orchestrator drawing randomness from rng
func NewOrchestrator(rng ports.RNGPort, logger *internal.Logger) *Orchestrator {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Orchestrator{rng: rng, logger: logger}
}

// Run produces one result row per grid row, in grid order. Rows with an
// invalid covariate carry Err and take no part in uncertainty estimation;
// the rest of the batch continues. Gaussian mode fails before any solve
// when the model has no usable covariance.
func (o *Orchestrator) Run(ctx context.Context, model ports.Model, grid []threshold.CovariateRow, mode threshold.Mode, cfg RunConfig) (table *threshold.ResultTable, err error) {
	started := time.Now()
	defer func() {
		metrics.ObserveRun(string(mode), started)
		if err != nil {
			metrics.RunFailed(apperrors.GetCode(err))
		}
	}()

	if err := cfg.Bounds.Validate(); err != nil {
		return nil, err
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	var gaussian *uncertainty.GaussianEstimator
	switch mode {
	case threshold.ModePointOnly, threshold.ModeBootstrap:
	case threshold.ModeGaussian:
		gaussian = uncertainty.NewGaussianEstimator(cfg.estimatorConfig(cfg.GaussianInterval), o.logger)
		if err := gaussian.CheckModel(model); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown mode %q", mode)
	}

	o.logger.Info("[Orchestrator] %s: solving %d rows for %s (mode %s)", model.Name(), len(grid), model.Target(), mode)

	rows, err := o.solveRows(ctx, model, grid, cfg)
	if err != nil {
		return nil, err
	}

	switch mode {
	case threshold.ModeGaussian:
		for i := range rows {
			if !rows[i].OK() {
				continue
			}
			interval, err := gaussian.Estimate(ctx, o.rng.Stream("gaussian", i), model, grid[i], cfg.GaussianSamples, cfg.Bounds)
			if errors.Is(err, core.ErrInsufficientReplicates) {
				rows[i].Err = err.Error()
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("gaussian interval for row %d: %w", i, err)
			}
			rows[i].Interval = &interval
		}
	case threshold.ModeBootstrap:
		var valid []int
		var validGrid []threshold.CovariateRow
		for i, row := range rows {
			if row.OK() {
				valid = append(valid, i)
				validGrid = append(validGrid, grid[i])
			}
		}
		if len(valid) > 0 {
			est := uncertainty.NewBootstrapEstimator(cfg.estimatorConfig(cfg.BootstrapInterval), o.rng, o.logger)
			intervals, err := est.Estimate(ctx, model, validGrid, cfg.BootstrapReplicates, []threshold.Bounds{cfg.Bounds}, cfg.UseFittedRandomEffects)
			if err != nil {
				return nil, err
			}
			for k, i := range valid {
				rows[i].Interval = &intervals[k]
			}
		}
	}

	table = threshold.NewResultTable(threshold.TableHeader{
		Model:     model.Name(),
		Target:    model.Target(),
		Threshold: cfg.Threshold,
		Mode:      mode,
	}, rows)
	o.logger.Info("[Orchestrator] run %s finished in %s (%d rows, %d failed)",
		table.RunID, time.Since(started).Round(time.Millisecond), len(table.Rows), table.Failed())
	return table, nil
}

// solveRows runs the point solves in parallel; each worker writes only its slot.
func (o *Orchestrator) solveRows(ctx context.Context, model ports.Model, grid []threshold.CovariateRow, cfg RunConfig) ([]threshold.ResultRow, error) {
	evaluator := solver.NewLinkEvaluator(model, model.Coefficients(), cfg.Threshold)
	rows := make([]threshold.ResultRow, len(grid))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i := range grid {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rows[i].Auxiliary = grid[i].Clone()
			res, err := evaluator.Solve(grid[i], cfg.Bounds, cfg.Solve)
			if core.IsInputError(err) {
				rows[i].Err = err.Error()
				metrics.ObserveSolve("row", false, true, 0)
				o.logger.Warn("[Orchestrator] row %d skipped: %v", i, err)
				return nil
			}
			if err != nil {
				return fmt.Errorf("row %d: %w", i, err)
			}
			metrics.ObserveSolve("row", res.Converged, res.Diagnostic != "", res.Iterations)
			if res.Extrapolated {
				o.logger.Warn("[Orchestrator] row %d: %s crossing %.4g lies outside the training range", i, model.Target(), res.TargetValue)
			}
			if !res.Converged {
				o.logger.Debug("[Orchestrator] row %d did not converge (objective %g) %s", i, res.ObjectiveAtMinimum, res.Diagnostic)
			}
			rows[i].Solve = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}
