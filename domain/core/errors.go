package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Input errors
	ErrInvalidCovariate = errors.New("invalid covariate row")
	ErrInvalidBounds    = errors.New("invalid search bounds")
	ErrInvalidDataset   = errors.New("invalid dataset")

	// Model errors
	ErrPrediction        = errors.New("model cannot evaluate prediction")
	ErrUnsupportedModel  = errors.New("model does not support this operation")
	ErrRefitNotConverged = errors.New("model refit did not converge")

	// Resampling errors
	ErrInsufficientReplicates = errors.New("insufficient bootstrap replicates")
)

// Error constructors with context
func NewMissingCovariateError(name string) error {
	return fmt.Errorf("%w: missing covariate %q", ErrInvalidCovariate, name)
}

func NewPredictionError(model string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrPrediction, model, reason)
}

func NewUnsupportedModelError(model string, operation string) error {
	return fmt.Errorf("%w: %s does not provide %s", ErrUnsupportedModel, model, operation)
}

func NewInsufficientReplicatesError(dropped, requested int, maxFraction float64) error {
	return fmt.Errorf("%w: dropped %d of %d replicates (max fraction %.2f)",
		ErrInsufficientReplicates, dropped, requested, maxFraction)
}

func NewBoundsError(lower, upper float64) error {
	return fmt.Errorf("%w: lower %g must be below upper %g", ErrInvalidBounds, lower, upper)
}

func NewDatasetError(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidDataset, reason)
}

// Error checking helpers
func IsInputError(err error) bool {
	return errors.Is(err, ErrInvalidCovariate) ||
		errors.Is(err, ErrInvalidBounds) ||
		errors.Is(err, ErrInvalidDataset)
}

func IsPredictionError(err error) bool {
	return errors.Is(err, ErrPrediction)
}

// IsFatalEstimatorError reports errors that abort a whole estimator call.
func IsFatalEstimatorError(err error) bool {
	return errors.Is(err, ErrUnsupportedModel) ||
		errors.Is(err, ErrInsufficientReplicates)
}
