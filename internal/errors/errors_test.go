package errors

import (
	"fmt"
	"net/http"
	"testing"

	"gol50/domain/core"

	"github.com/stretchr/testify/assert"
)

func TestWrapClassifiesDomainErrors(t *testing.T) {
	tests := []struct {
		err    error
		code   string
		status int
	}{
		{core.NewMissingCovariateError("sex"), CodeInvalidInput, http.StatusBadRequest},
		{core.NewDatasetError("empty"), CodeInvalidInput, http.StatusBadRequest},
		{core.NewUnsupportedModelError("glmm", "coefficient covariance"), CodeUnsupportedModel, http.StatusUnprocessableEntity},
		{core.NewInsufficientReplicatesError(20, 150, 0.1), CodeInsufficientReplicates, http.StatusUnprocessableEntity},
		{fmt.Errorf("boom"), CodeInternalError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		wrapped := Wrap(tt.err, "run failed")
		assert.Equal(t, tt.code, GetCode(wrapped), tt.err.Error())
		assert.Equal(t, tt.status, HTTPStatus(wrapped), tt.err.Error())
		assert.ErrorIs(t, wrapped, tt.err)
	}
}

func TestGetCodeOnBareErrors(t *testing.T) {
	assert.Equal(t, CodeUnsupportedModel, GetCode(core.NewUnsupportedModelError("m", "op")))
	assert.Equal(t, "UNKNOWN", GetCode(fmt.Errorf("plain")))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(NotFound("run")))
}

func TestWrapKeepsAppErrorCode(t *testing.T) {
	inner := ConfigInvalid("bad level")
	outer := Wrapf(inner, "loading %s", "analysis")
	assert.Equal(t, CodeConfigInvalid, GetCode(outer))
	assert.Equal(t, "loading analysis: bad level", outer.Error())
	assert.Nil(t, Wrap(nil, "nothing"))
}

func TestWithCode(t *testing.T) {
	err := WithCode(CodeNotFound, fmt.Errorf("run 123"))
	assert.True(t, IsAppError(err))
	assert.Equal(t, CodeNotFound, GetCode(err))
	assert.Equal(t, "run 123", err.Error())

	recoded := WithCode(CodeValidationError, InvalidInput("bad grid"))
	assert.Equal(t, CodeValidationError, GetCode(recoded))
	assert.Equal(t, "bad grid", recoded.Error())
}

func TestWrapFindsAppErrorBehindFmtWrapping(t *testing.T) {
	inner := fmt.Errorf("gaussian interval for row 2: %w", New(CodeInsufficientReplicates, "too few draws"))
	outer := Wrap(inner, "run failed")

	assert.Equal(t, CodeInsufficientReplicates, GetCode(outer))
	assert.Equal(t, http.StatusUnprocessableEntity, HTTPStatus(outer))
	assert.Equal(t, "run failed: gaussian interval for row 2: too few draws", outer.Error())

	recoded := WithCode(CodeNotFound, fmt.Errorf("lookup: %w", ConfigInvalid("no url")))
	assert.Equal(t, CodeNotFound, GetCode(recoded))
	assert.Equal(t, "lookup: no url", recoded.Error())
}
