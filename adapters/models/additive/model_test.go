package additive

import (
	"context"
	"math/rand/v2"
	"testing"

	"gol50/domain/core"
	"gol50/domain/threshold"
	"gol50/internal/solver"
	"gol50/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func maturityData(t *testing.T, n int) (*threshold.Dataset, testkit.MaturityGeneratorConfig) {
	t.Helper()
	cfg := testkit.DefaultMaturityConfig()
	cfg.Observations = n
	return testkit.NewMaturityDataGenerator(cfg).Generate(), cfg
}

func TestSpecValidate(t *testing.T) {
	tests := []struct {
		name    string
		spec    Spec
		wantErr bool
	}{
		{"glm", Spec{Target: "length", Auxiliary: []string{"sex"}}, false},
		{"gam with interaction", Spec{Target: "length", Auxiliary: []string{"sex"}, Interactions: []string{"sex"}, Knots: 4, Lambda: 1}, false},
		{"missing target", Spec{Auxiliary: []string{"sex"}}, true},
		{"target repeated as auxiliary", Spec{Target: "length", Auxiliary: []string{"length"}}, true},
		{"interaction without main effect", Spec{Target: "length", Interactions: []string{"sex"}}, true},
		{"negative lambda", Spec{Target: "length", Knots: 3, Lambda: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, core.ErrInvalidDataset)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestDesignRow(t *testing.T) {
	d, err := NewDesign(Spec{Target: "length", Auxiliary: []string{"sex"}, Interactions: []string{"sex"}, Knots: 1},
		threshold.Bounds{Lower: 0, Upper: 100})
	require.NoError(t, err)
	assert.Equal(t, 5, d.Columns())

	row, err := d.Row(threshold.CovariateRow{"length": 75, "sex": 1})
	require.NoError(t, err)
	// u = 0.75, knot at 0.5
	assert.InDeltaSlice(t, []float64{1, 0.75, 0.015625, 1, 0.75}, row, 1e-12)

	_, err = d.Row(threshold.CovariateRow{"length": 75})
	assert.ErrorIs(t, err, core.ErrInvalidCovariate)
}

func TestFitGLMRecoversL50(t *testing.T) {
	ds, cfg := maturityData(t, 3000)
	m, err := Fit(context.Background(), ds, Spec{Target: "length", Auxiliary: []string{"sex"}})
	require.NoError(t, err)
	assert.Equal(t, "glm", m.Name())
	assert.Len(t, m.Coefficients(), 3)

	eval := solver.NewLinkEvaluator(m, m.Coefficients(), 0)
	for _, sex := range []float64{0, 1} {
		res, err := eval.Solve(threshold.CovariateRow{"sex": sex}, threshold.Bounds{Lower: 0, Upper: 150}, solver.DefaultOptions())
		require.NoError(t, err)
		assert.True(t, res.Converged)
		assert.InDelta(t, cfg.TrueL50(sex), res.TargetValue, 4.0)
	}
}

func TestFitGAMCovariance(t *testing.T) {
	ds, _ := maturityData(t, 1500)
	m, err := Fit(context.Background(), ds, Spec{Target: "length", Auxiliary: []string{"sex"}, Knots: 4, Lambda: 5})
	require.NoError(t, err)
	assert.Equal(t, "gam", m.Name())

	cov, err := m.Covariance()
	require.NoError(t, err)
	assert.Equal(t, len(m.Coefficients()), cov.SymmetricDim())
	for i := 0; i < cov.SymmetricDim(); i++ {
		assert.Greater(t, cov.At(i, i), 0.0)
	}

	// the returned covariance is a copy
	cov.SetSym(0, 0, -1)
	again, err := m.Covariance()
	require.NoError(t, err)
	assert.Greater(t, again.At(0, 0), 0.0)
}

func TestSimulateRefit(t *testing.T) {
	ds, _ := maturityData(t, 800)
	m, err := Fit(context.Background(), ds, Spec{Target: "length", Auxiliary: []string{"sex"}, Knots: 3, Lambda: 1})
	require.NoError(t, err)

	sim, err := m.Simulate(rand.New(rand.NewPCG(1, 2)), true)
	require.NoError(t, err)
	require.NoError(t, sim.Validate("length", "sex"))
	assert.Equal(t, ds.Len(), sim.Len())

	refit, err := m.Refit(context.Background(), sim)
	require.NoError(t, err)
	assert.NotSame(t, m, refit)
	assert.Len(t, refit.Coefficients(), len(m.Coefficients()))
	assert.Equal(t, m.TrainingRange(), refit.TrainingRange())

	// the original model is untouched by refitting
	orig, _ := ds.Column("mature")
	same, _ := m.data.Column("mature")
	assert.Equal(t, orig, same)
}

func TestFitRejectsBadData(t *testing.T) {
	ds := &threshold.Dataset{
		Response: "mature",
		Columns: map[string][]float64{
			"length": {10, 20, 30},
			"mature": {0, 2, 1},
		},
	}
	_, err := Fit(context.Background(), ds, Spec{Target: "length"})
	assert.ErrorIs(t, err, core.ErrInvalidDataset)
}
