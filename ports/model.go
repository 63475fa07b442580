package ports

import (
	"context"
	"math/rand/v2"

	"gol50/domain/threshold"
)

// Model is the capability interface the threshold core is written against.
// Implementations are read-only once fitted; Refit returns a new instance.
type Model interface {
	// Name identifies the model family (e.g. "gam", "glmm")
	Name() string

	// Target is the covariate the threshold is solved for
	Target() string

	// Covariates lists every covariate Basis needs, target included
	Covariates() []string

	// Basis returns the linear-predictor row at a covariate row.
	// The link value is the inner product with the coefficient vector.
	Basis(row threshold.CovariateRow) ([]float64, error)

	// Coefficients returns a copy of the fitted coefficient vector
	Coefficients() threshold.CoefficientVector

	// Covariance returns the coefficient covariance, or core.ErrUnsupportedModel
	Covariance() (threshold.CoefficientCovariance, error)

	// Simulate draws a new response dataset from the fitted model. When
	// conditional is true latent effects stay at their fitted values,
	// otherwise they are redrawn from their estimated distribution.
	Simulate(rng *rand.Rand, conditional bool) (*threshold.Dataset, error)

	// Refit fits a fresh instance to ds without touching the receiver
	Refit(ctx context.Context, ds *threshold.Dataset) (Model, error)

	// TrainingRange is the observed range of the target covariate
	TrainingRange() threshold.Bounds

	// TargetCenter is the target value the centering convention maps to zero
	TargetCenter() float64
}
