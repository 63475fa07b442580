package threshold

import (
	"math"
	"testing"

	"gol50/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCovariateRowCopies(t *testing.T) {
	row := CovariateRow{"sex": 1, "area": 2}

	with := row.With("length", 40)
	without := row.Without("area")

	assert.Len(t, row, 2)
	assert.Equal(t, 40.0, with["length"])
	assert.NotContains(t, without, "area")
	assert.Equal(t, []string{"area", "sex"}, row.Names())
}

func TestCovariateRowRequire(t *testing.T) {
	row := CovariateRow{"sex": 1, "bad": math.NaN()}

	assert.NoError(t, row.Require("sex"))
	assert.ErrorIs(t, row.Require("area"), core.ErrInvalidCovariate)
	assert.ErrorIs(t, row.Require("bad"), core.ErrInvalidCovariate)
}

func TestBounds(t *testing.T) {
	b := Bounds{Lower: 10, Upper: 90}
	require.NoError(t, b.Validate())
	assert.True(t, b.Contains(10))
	assert.False(t, b.Contains(90.5))
	assert.Equal(t, 10.0, b.Clamp(-3))
	assert.Equal(t, 50.0, b.Mid())

	for _, bad := range []Bounds{
		{Lower: 5, Upper: 5},
		{Lower: 9, Upper: 1},
		{Lower: math.Inf(-1), Upper: 1},
		{Lower: 0, Upper: math.NaN()},
	} {
		assert.ErrorIs(t, bad.Validate(), core.ErrInvalidBounds, "%+v", bad)
	}
}

func TestParseIntervalMethod(t *testing.T) {
	m, err := ParseIntervalMethod(" Percentile ")
	require.NoError(t, err)
	assert.Equal(t, IntervalPercentile, m)

	_, err = ParseIntervalMethod("bca")
	assert.Error(t, err)
}

func TestBootstrapSemantics(t *testing.T) {
	assert.Equal(t, SemanticsConditional, BootstrapSemantics(true))
	assert.Equal(t, SemanticsUnconditional, BootstrapSemantics(false))
}

func TestLogitThreshold(t *testing.T) {
	v, err := LogitThreshold(0.5)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)

	v, err = LogitThreshold(0.9)
	require.NoError(t, err)
	assert.InDelta(t, math.Log(9), v, 1e-12)

	for _, p := range []float64{0, 1, -0.2, math.NaN()} {
		_, err := LogitThreshold(p)
		assert.Error(t, err, "p=%v", p)
	}
}

func TestUncertaintyInterval(t *testing.T) {
	u := UncertaintyInterval{PointEstimate: 50, Lower: 45, Upper: 56}
	assert.Equal(t, 11.0, u.Width())
	assert.True(t, u.Covers(45))
	assert.False(t, u.Covers(57))
}
