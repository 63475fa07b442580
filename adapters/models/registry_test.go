package models

import (
	"context"
	"testing"

	"gol50/adapters/models/additive"
	"gol50/domain/core"
	"gol50/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" GAM ")
	require.NoError(t, err)
	assert.Equal(t, KindGAM, k)

	_, err = ParseKind("random-forest")
	assert.ErrorIs(t, err, core.ErrUnsupportedModel)
}

func TestFitEachKind(t *testing.T) {
	cfg := testkit.DefaultMaturityConfig()
	cfg.GroupCount = 6
	cfg.GroupSD = 0.8
	ds := testkit.NewMaturityDataGenerator(cfg).Generate()
	spec := additive.Spec{Target: "length", Auxiliary: []string{"sex"}}

	for _, kind := range Kinds() {
		t.Run(string(kind), func(t *testing.T) {
			m, err := Fit(context.Background(), kind, ds, spec)
			require.NoError(t, err)
			assert.Equal(t, string(kind), m.Name())
			assert.Equal(t, "length", m.Target())

			_, covErr := m.Covariance()
			if kind == KindGLMM {
				assert.ErrorIs(t, covErr, core.ErrUnsupportedModel)
			} else {
				assert.NoError(t, covErr)
			}
		})
	}
}

func TestFitUnknownKind(t *testing.T) {
	_, err := Fit(context.Background(), Kind("tree"), nil, additive.Spec{})
	assert.ErrorIs(t, err, core.ErrUnsupportedModel)
}
