package rng

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func draw(a *StreamAdapter, name string, index, n int) []float64 {
	r := a.Stream(name, index)
	out := make([]float64, n)
	for i := range out {
		out[i] = r.Float64()
	}
	return out
}

func TestStreamAdapter_Deterministic(t *testing.T) {
	a := NewStreamAdapter(42)
	b := NewStreamAdapter(42)

	assert.Equal(t, draw(a, "bootstrap", 3, 10), draw(b, "bootstrap", 3, 10))
	assert.Equal(t, uint64(42), a.Seed())
}

func TestStreamAdapter_StreamsDiffer(t *testing.T) {
	a := NewStreamAdapter(42)

	assert.NotEqual(t, draw(a, "bootstrap", 0, 5), draw(a, "bootstrap", 1, 5))
	assert.NotEqual(t, draw(a, "bootstrap", 0, 5), draw(a, "gaussian", 0, 5))
	assert.NotEqual(t, draw(a, "bootstrap", 0, 5), draw(NewStreamAdapter(7), "bootstrap", 0, 5))
}
