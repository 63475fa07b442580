package testkit

import (
	"context"
	"fmt"
	"sync/atomic"

	"gol50/domain/core"
	"gol50/domain/threshold"
	"gol50/ports"
)

// FlakyModel wraps a model and makes the first FailRefits refits fail with
// core.ErrRefitNotConverged. The counter is shared by every refit call,
// whichever worker makes it.
type FlakyModel struct {
	ports.Model
	FailRefits int64
	calls      *atomic.Int64
}

// NewFlakyModel wraps model so that exactly failRefits refits fail
func NewFlakyModel(model ports.Model, failRefits int64) *FlakyModel {
	return &FlakyModel{Model: model, FailRefits: failRefits, calls: &atomic.Int64{}}
}

// Refit fails until the failure budget is spent, then delegates
func (m *FlakyModel) Refit(ctx context.Context, ds *threshold.Dataset) (ports.Model, error) {
	if n := m.calls.Add(1); n <= m.FailRefits {
		return nil, fmt.Errorf("%w: forced failure %d", core.ErrRefitNotConverged, n)
	}
	return m.Model.Refit(ctx, ds)
}

// Calls returns how many refits were attempted
func (m *FlakyModel) Calls() int64 {
	return m.calls.Load()
}
