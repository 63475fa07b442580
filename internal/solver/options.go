package solver

import (
	"time"
)

const (
	// DefaultTolerance is the link-scale objective level counted as a root
	DefaultTolerance = 1e-6
	// DefaultXTolerance bounds the final bracket width of the 1-D search
	DefaultXTolerance = 1e-9
	// DefaultMaxIterations caps both the 1-D and the grid search
	DefaultMaxIterations = 500
)

// Options configures a solve. Zero fields take the defaults above.
type Options struct {
	Tolerance     float64
	XTolerance    float64
	MaxIterations int
	// Timeout is a wall-clock budget; exceeding it ends the solve unconverged
	Timeout time.Duration
}

// DefaultOptions returns the default solve options
func DefaultOptions() Options {
	return Options{
		Tolerance:     DefaultTolerance,
		XTolerance:    DefaultXTolerance,
		MaxIterations: DefaultMaxIterations,
	}
}

func (o Options) withDefaults() Options {
	if o.Tolerance <= 0 {
		o.Tolerance = DefaultTolerance
	}
	if o.XTolerance <= 0 {
		o.XTolerance = DefaultXTolerance
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	return o
}
