// Package models selects and fits the reference model implementations.
package models

import (
	"context"
	"fmt"
	"strings"

	"gol50/adapters/models/additive"
	"gol50/adapters/models/mixed"
	"gol50/domain/core"
	"gol50/domain/threshold"
	"gol50/ports"
)

// Kind names a reference model
type Kind string

const (
	KindGLM  Kind = "glm"
	KindGAM  Kind = "gam"
	KindGLMM Kind = "glmm"
)

const (
	defaultKnots  = 5
	defaultLambda = 1.0
)

// Kinds lists every supported model kind
func Kinds() []Kind {
	return []Kind{KindGLM, KindGAM, KindGLMM}
}

// ParseKind parses a model kind name.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds() {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: unknown model kind %q", core.ErrUnsupportedModel, s)
}

// Fit fits a model of the given kind. A glm ignores Knots; a gam without
// knots gets the default basis size.
func Fit(ctx context.Context, kind Kind, ds *threshold.Dataset, spec additive.Spec) (ports.Model, error) {
	switch kind {
	case KindGLM:
		spec.Knots = 0
		return additive.Fit(ctx, ds, spec)
	case KindGAM:
		if spec.Knots == 0 {
			spec.Knots = defaultKnots
		}
		if spec.Lambda == 0 {
			spec.Lambda = defaultLambda
		}
		return additive.Fit(ctx, ds, spec)
	case KindGLMM:
		return mixed.Fit(ctx, ds, spec)
	default:
		return nil, fmt.Errorf("%w: %q", core.ErrUnsupportedModel, kind)
	}
}
