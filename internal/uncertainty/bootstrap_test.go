package uncertainty

import (
	"context"
	"testing"
	"time"

	"gol50/adapters/models/additive"
	"gol50/adapters/models/mixed"
	"gol50/adapters/rng"
	"gol50/domain/core"
	"gol50/domain/threshold"
	"gol50/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sexGrid = []threshold.CovariateRow{{"sex": 0}, {"sex": 1}}

var sharedBounds = []threshold.Bounds{searchBounds}

func TestBootstrap_TooManyFailedRefits(t *testing.T) {
	base := testkit.NewLinearModel("length", []string{"sex"}, 2.0, -0.04, 0.5)
	flaky := testkit.NewFlakyModel(base, 20)
	est := NewBootstrapEstimator(Config{Workers: 4}, rng.NewStreamAdapter(1), nil)

	_, err := est.Estimate(context.Background(), flaky, sexGrid, 150, sharedBounds, false)
	assert.ErrorIs(t, err, core.ErrInsufficientReplicates)
	assert.Equal(t, int64(150), flaky.Calls())
}

func TestBootstrap_ToleratesFewFailedRefits(t *testing.T) {
	base := testkit.NewLinearModel("length", []string{"sex"}, 2.0, -0.04, 0.5)
	flaky := testkit.NewFlakyModel(base, 10)
	est := NewBootstrapEstimator(Config{Workers: 4}, rng.NewStreamAdapter(1), nil)

	intervals, err := est.Estimate(context.Background(), flaky, sexGrid, 150, sharedBounds, true)
	require.NoError(t, err)
	require.Len(t, intervals, 2)

	for _, iv := range intervals {
		assert.Equal(t, 140, iv.ReplicateCount)
		assert.Equal(t, 10, iv.Dropped)
		assert.Equal(t, threshold.IntervalPercentile, iv.Method)
		assert.Equal(t, threshold.SemanticsConditional, iv.Semantics)
	}
	// refits of the stub keep its coefficients, so every replicate agrees
	assert.InDelta(t, 50.0, intervals[0].PointEstimate, 1e-2)
	assert.InDelta(t, 62.5, intervals[1].PointEstimate, 1e-2)
	assert.InDelta(t, 0, intervals[0].Width(), 1e-2)
}

func TestBootstrap_RowOutsideBoundsKeepsReplicates(t *testing.T) {
	// sex=1 crosses at 62.5, past the upper bound
	base := testkit.NewLinearModel("length", []string{"sex"}, 2.0, -0.04, 0.5)
	est := NewBootstrapEstimator(Config{Workers: 4}, rng.NewStreamAdapter(1), nil)

	intervals, err := est.Estimate(context.Background(), base, sexGrid, 50,
		[]threshold.Bounds{{Lower: 0, Upper: 60}}, false)
	require.NoError(t, err)
	require.Len(t, intervals, 2)

	assert.Equal(t, 50, intervals[0].ReplicateCount)
	assert.Equal(t, 0, intervals[0].Dropped)
	assert.Equal(t, 0, intervals[0].Censored)
	assert.InDelta(t, 50.0, intervals[0].PointEstimate, 1e-2)

	assert.Equal(t, 50, intervals[1].ReplicateCount)
	assert.Equal(t, 50, intervals[1].Censored)
	assert.InDelta(t, 60.0, intervals[1].PointEstimate, 0.5)
	assert.InDelta(t, 60.0, intervals[1].Upper, 0.5)
}

func TestBootstrap_PerRowBounds(t *testing.T) {
	base := testkit.NewLinearModel("length", []string{"sex"}, 2.0, -0.04, 0.5)
	est := NewBootstrapEstimator(Config{Workers: 2}, rng.NewStreamAdapter(1), nil)

	intervals, err := est.Estimate(context.Background(), base, sexGrid, 20,
		[]threshold.Bounds{{Lower: 0, Upper: 60}, {Lower: 55, Upper: 150}}, false)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, intervals[0].PointEstimate, 1e-2)
	assert.InDelta(t, 62.5, intervals[1].PointEstimate, 1e-2)
	assert.Equal(t, 0, intervals[0].Censored+intervals[1].Censored)

	_, err = est.Estimate(context.Background(), base, sexGrid, 20,
		[]threshold.Bounds{searchBounds, searchBounds, searchBounds}, false)
	assert.ErrorIs(t, err, core.ErrInvalidBounds)

	_, err = est.Estimate(context.Background(), base, sexGrid, 20,
		[]threshold.Bounds{searchBounds, {Lower: 9, Upper: 1}}, false)
	assert.ErrorIs(t, err, core.ErrInvalidBounds)
}

func TestBootstrap_BatchTimeoutDropsUnstarted(t *testing.T) {
	base := testkit.NewLinearModel("length", []string{"sex"}, 2.0, -0.04, 0.5)
	est := NewBootstrapEstimator(Config{BatchTimeout: time.Nanosecond}, rng.NewStreamAdapter(1), nil)

	_, err := est.Estimate(context.Background(), base, sexGrid, 50, sharedBounds, false)
	assert.ErrorIs(t, err, core.ErrInsufficientReplicates)
}

func TestBootstrap_CancelledContext(t *testing.T) {
	base := testkit.NewLinearModel("length", []string{"sex"}, 2.0, -0.04, 0.5)
	est := NewBootstrapEstimator(Config{}, rng.NewStreamAdapter(1), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := est.Estimate(ctx, base, sexGrid, 50, sharedBounds, false)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBootstrap_DeterministicAcrossWorkerCounts(t *testing.T) {
	ds := testkit.NewMaturityDataGenerator(testkit.DefaultMaturityConfig()).Generate()
	model, err := additive.Fit(context.Background(), ds, additive.Spec{Target: "length", Auxiliary: []string{"sex"}})
	require.NoError(t, err)

	one, err := NewBootstrapEstimator(Config{Workers: 1}, rng.NewStreamAdapter(5), nil).
		Estimate(context.Background(), model, sexGrid, 40, sharedBounds, false)
	require.NoError(t, err)
	many, err := NewBootstrapEstimator(Config{Workers: 8}, rng.NewStreamAdapter(5), nil).
		Estimate(context.Background(), model, sexGrid, 40, sharedBounds, false)
	require.NoError(t, err)

	for i := range one {
		assert.InDelta(t, one[i].Lower, many[i].Lower, 1e-9)
		assert.InDelta(t, one[i].Upper, many[i].Upper, 1e-9)
	}
}

func TestBootstrap_ConditionalNarrowerThanUnconditional(t *testing.T) {
	if testing.Short() {
		t.Skip("fits many mixed models")
	}
	cfg := testkit.DefaultMaturityConfig()
	cfg.Observations = 800
	cfg.GroupCount = 8
	cfg.GroupSD = 1.2
	ds := testkit.NewMaturityDataGenerator(cfg).Generate()
	model, err := mixed.Fit(context.Background(), ds, additive.Spec{Target: "length", Auxiliary: []string{"sex"}})
	require.NoError(t, err)

	est := NewBootstrapEstimator(Config{Workers: 4, MaxDroppedFraction: 0.2}, rng.NewStreamAdapter(21), nil)
	grid := []threshold.CovariateRow{{"sex": 0}}

	conditional, err := est.Estimate(context.Background(), model, grid, 60, sharedBounds, true)
	require.NoError(t, err)
	unconditional, err := est.Estimate(context.Background(), model, grid, 60, sharedBounds, false)
	require.NoError(t, err)

	assert.Equal(t, threshold.SemanticsConditional, conditional[0].Semantics)
	assert.Equal(t, threshold.SemanticsUnconditional, unconditional[0].Semantics)
	assert.LessOrEqual(t, conditional[0].Width(), unconditional[0].Width())
}

func TestBootstrap_Calibration(t *testing.T) {
	if testing.Short() {
		t.Skip("calibration study")
	}
	const simulations = 30
	spec := additive.Spec{Target: "length", Auxiliary: []string{"sex"}}

	covered := 0
	for s := 0; s < simulations; s++ {
		cfg := testkit.DefaultMaturityConfig()
		cfg.Seed = uint64(2000 + s)
		ds := testkit.NewMaturityDataGenerator(cfg).Generate()
		model, err := additive.Fit(context.Background(), ds, spec)
		require.NoError(t, err)

		est := NewBootstrapEstimator(Config{Workers: 4}, rng.NewStreamAdapter(uint64(s)), nil)
		intervals, err := est.Estimate(context.Background(), model, []threshold.CovariateRow{{"sex": 0}}, 100, sharedBounds, false)
		require.NoError(t, err)
		if intervals[0].Covers(cfg.TrueL50(0)) {
			covered++
		}
	}
	coverage := float64(covered) / simulations
	t.Logf("bootstrap coverage %.3f", coverage)
	assert.GreaterOrEqual(t, coverage, 0.85)
}

func TestSummarize(t *testing.T) {
	values := []float64{5, 1, 4, 2, 3}
	lo, hi, err := summarize(3, values, threshold.IntervalPercentile, 0.5)
	require.NoError(t, err)
	assert.True(t, lo >= 1 && lo < 3, "lower %g", lo)
	assert.True(t, hi > 3 && hi <= 5, "upper %g", hi)
	assert.Equal(t, []float64{1, 2, 3, 4, 5}, values)

	lo, hi, err = summarize(10, []float64{1, 3}, threshold.IntervalNormal, 0.95)
	require.NoError(t, err)
	assert.InDelta(t, 10-1.959964*1.414214, lo, 1e-4)
	assert.InDelta(t, 10+1.959964*1.414214, hi, 1e-4)

	_, _, err = summarize(0, []float64{1}, threshold.IntervalNormal, 0.95)
	assert.ErrorIs(t, err, core.ErrInsufficientReplicates)
}
