package threshold

import (
	"testing"

	"gol50/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() *Dataset {
	return &Dataset{
		Response: "mature",
		Columns: map[string][]float64{
			"mature": {0, 1, 1, 0},
			"length": {20, 55, 70, 31},
			"sex":    {0, 1, 0, 1},
		},
		Group:  "site",
		Groups: []string{"b", "a", "b", "c"},
	}
}

func TestDatasetAccessors(t *testing.T) {
	ds := sampleDataset()
	require.NoError(t, ds.Validate("length", "sex"))
	assert.Equal(t, 4, ds.Len())
	assert.Equal(t, CovariateRow{"length": 55, "sex": 1}, ds.Row(1))

	r, err := ds.Range("length")
	require.NoError(t, err)
	assert.Equal(t, Bounds{Lower: 20, Upper: 70}, r)

	_, err = ds.Range("weight")
	assert.ErrorIs(t, err, core.ErrInvalidDataset)

	levels, member := ds.GroupLevels()
	assert.Equal(t, []string{"a", "b", "c"}, levels)
	assert.Equal(t, []int{1, 0, 1, 2}, member)
}

func TestDatasetWithResponse(t *testing.T) {
	ds := sampleDataset()
	y := []float64{1, 1, 0, 0}
	sim := ds.WithResponse(y)

	y[0] = 0
	assert.Equal(t, 1.0, sim.Columns["mature"][0])
	assert.Equal(t, 0.0, ds.Columns["mature"][0])
	assert.Equal(t, ds.Groups, sim.Groups)
}

func TestDatasetValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Dataset)
	}{
		{"missing response", func(d *Dataset) { delete(d.Columns, "mature") }},
		{"ragged column", func(d *Dataset) { d.Columns["sex"] = []float64{0} }},
		{"non-binary response", func(d *Dataset) { d.Columns["mature"][2] = 0.5 }},
		{"group labels short", func(d *Dataset) { d.Groups = d.Groups[:2] }},
		{"empty", func(d *Dataset) {
			d.Columns = map[string][]float64{"mature": {}}
			d.Group = ""
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := sampleDataset()
			tt.mutate(ds)
			assert.ErrorIs(t, ds.Validate(), core.ErrInvalidDataset)
		})
	}

	assert.ErrorIs(t, sampleDataset().Validate("weight"), core.ErrInvalidDataset)
	var nilDS *Dataset
	assert.ErrorIs(t, nilDS.Validate(), core.ErrInvalidDataset)
}
