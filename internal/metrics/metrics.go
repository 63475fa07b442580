// Package metrics holds the Prometheus instruments of the L50 pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// solvesTotal counts threshold solves by kind and outcome
	solvesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "l50_solves_total",
		Help: "Threshold solves by kind (row, grid) and outcome (converged, not_converged, failed)",
	}, []string{"kind", "outcome"})

	// solveIterations tracks optimizer iterations per solve
	solveIterations = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "l50_solve_iterations",
		Help:    "Optimizer iterations per threshold solve",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500},
	}, []string{"kind"})

	// replicatesTotal counts resampling replicates by estimator and outcome
	replicatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "l50_replicates_total",
		Help: "Uncertainty replicates by estimator (gaussian, bootstrap) and outcome (used, dropped)",
	}, []string{"estimator", "outcome"})

	// runDuration tracks orchestrated run latency
	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "l50_run_duration_seconds",
		Help:    "Run duration in seconds by mode",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10), // 1ms to ~4.4min
	}, []string{"mode"})

	// runErrors counts failed runs by error code
	runErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "l50_run_errors_total",
		Help: "Failed runs by error code",
	}, []string{"code"})
)

// ObserveSolve records one solve
func ObserveSolve(kind string, converged bool, failed bool, iterations int) {
	outcome := "converged"
	switch {
	case failed:
		outcome = "failed"
	case !converged:
		outcome = "not_converged"
	}
	solvesTotal.WithLabelValues(kind, outcome).Inc()
	solveIterations.WithLabelValues(kind).Observe(float64(iterations))
}

// ObserveReplicates records used and dropped replicate counts
func ObserveReplicates(estimator string, used, dropped int) {
	replicatesTotal.WithLabelValues(estimator, "used").Add(float64(used))
	replicatesTotal.WithLabelValues(estimator, "dropped").Add(float64(dropped))
}

// ObserveRun records a run's duration
func ObserveRun(mode string, started time.Time) {
	runDuration.WithLabelValues(mode).Observe(time.Since(started).Seconds())
}

// RunFailed counts a failed run
func RunFailed(code string) {
	runErrors.WithLabelValues(code).Inc()
}
