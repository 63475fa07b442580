package api

import (
	"gol50/domain/threshold"
)

// L50Request fits a model to the posted dataset and solves every grid row.
// Threshold is on the link scale; Probability, when set, overrides it with
// logit(Probability).
type L50Request struct {
	Dataset      *threshold.Dataset       `json:"dataset" validate:"required"`
	Model        string                   `json:"model" validate:"required,oneof=glm gam glmm"`
	Target       string                   `json:"target" validate:"required"`
	Auxiliary    []string                 `json:"auxiliary"`
	Interactions []string                 `json:"interactions"`
	Knots        int                      `json:"knots" validate:"gte=0,lte=40"`
	Lambda       float64                  `json:"lambda" validate:"gte=0"`
	Grid         []threshold.CovariateRow `json:"grid" validate:"required,min=1,max=1000"`
	Mode         string                   `json:"mode" validate:"omitempty,oneof=point_only gaussian bootstrap"`
	Threshold    *float64                 `json:"threshold"`
	Probability  *float64                 `json:"probability" validate:"omitempty,gt=0,lt=1"`
	Lower        *float64                 `json:"lower"`
	Upper        *float64                 `json:"upper"`
	Samples      int                      `json:"samples" validate:"gte=0,lte=100000"`
	Replicates   int                      `json:"replicates" validate:"gte=0,lte=10000"`
	Conditional  *bool                    `json:"use_fitted_random_effects"`
	Seed         *uint64                  `json:"seed"`
}

// ErrorResponse is the body of every non-2xx answer
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HealthResponse is the body of /healthz
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
