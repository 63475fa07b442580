package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gol50/adapters/memory"
	"gol50/domain/threshold"
	"gol50/internal/config"
	"gol50/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *memory.ResultStore) {
	t.Helper()
	store := memory.NewResultStore(10)
	cfg := config.Defaults()
	cfg.Analysis.Workers = 2
	return NewServer(cfg, store, nil), store
}

func post(t *testing.T, s *Server, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/l50", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func get(s *Server, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func maturityRequest() L50Request {
	cfg := testkit.DefaultMaturityConfig()
	cfg.Observations = 1500
	return L50Request{
		Dataset:   testkit.NewMaturityDataGenerator(cfg).Generate(),
		Model:     "glm",
		Target:    "length",
		Auxiliary: []string{"sex"},
		Grid: []threshold.CovariateRow{
			{"sex": 0},
			{"sex": 1},
		},
	}
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(s, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(s, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRunPointOnlyAndFetch(t *testing.T) {
	s, store := newTestServer(t)

	rec := post(t, s, maturityRequest())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var table threshold.ResultTable
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &table))
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "glm", table.Model)
	assert.Equal(t, threshold.ModePointOnly, table.Mode)
	assert.InDelta(t, 50.0, table.Rows[0].Solve.TargetValue, 6)
	assert.InDelta(t, 60.0, table.Rows[1].Solve.TargetValue, 6)

	runs, err := store.List(context.Background(), 0, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	list := get(s, "/api/v1/runs")
	assert.Equal(t, http.StatusOK, list.Code)
	assert.Contains(t, list.Body.String(), table.RunID.String())

	for format, marker := range map[string]string{
		"json": `"run_id"`,
		"md":   "| sex |",
		"html": "<table>",
	} {
		t.Run(format, func(t *testing.T) {
			rec := get(s, "/api/v1/runs/"+table.RunID.String()+"?format="+format)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), marker)
		})
	}

	xlsx := get(s, "/api/v1/runs/"+table.RunID.String()+"?format=xlsx")
	assert.Equal(t, http.StatusOK, xlsx.Code)
	assert.True(t, bytes.HasPrefix(xlsx.Body.Bytes(), []byte("PK")))

	bad := get(s, "/api/v1/runs/"+table.RunID.String()+"?format=pdf")
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestRunProbabilityOverridesThreshold(t *testing.T) {
	s, _ := newTestServer(t)
	req := maturityRequest()
	p := 0.5
	th := 3.0
	req.Probability = &p
	req.Threshold = &th

	rec := post(t, s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var table threshold.ResultTable
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &table))
	assert.InDelta(t, 0.0, table.Threshold, 1e-12)
}

func TestRunGaussian(t *testing.T) {
	s, _ := newTestServer(t)
	req := maturityRequest()
	req.Mode = "gaussian"
	req.Samples = 200
	seed := uint64(7)
	req.Seed = &seed

	first := post(t, s, req)
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	second := post(t, s, req)
	require.Equal(t, http.StatusOK, second.Code)

	var a, b threshold.ResultTable
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &a))
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &b))
	require.NotNil(t, a.Rows[0].Interval)
	assert.Less(t, a.Rows[0].Interval.Lower, a.Rows[0].Solve.TargetValue)
	assert.Greater(t, a.Rows[0].Interval.Upper, a.Rows[0].Solve.TargetValue)
	assert.Equal(t, a.Rows[0].Interval.Lower, b.Rows[0].Interval.Lower)
	assert.Equal(t, a.Rows[0].Interval.Upper, b.Rows[0].Interval.Upper)
}

func TestRunGaussianOnGLMMIsUnsupported(t *testing.T) {
	s, _ := newTestServer(t)
	cfg := testkit.DefaultMaturityConfig()
	cfg.GroupCount = 6
	cfg.GroupSD = 0.8
	req := maturityRequest()
	req.Dataset = testkit.NewMaturityDataGenerator(cfg).Generate()
	req.Model = "glmm"
	req.Mode = "gaussian"

	rec := post(t, s, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "UNSUPPORTED_MODEL")
}

func TestRunRejectsBadRequests(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name   string
		mutate func(*L50Request)
		code   int
	}{
		{"unknown model", func(r *L50Request) { r.Model = "forest" }, http.StatusBadRequest},
		{"empty grid", func(r *L50Request) { r.Grid = nil }, http.StatusBadRequest},
		{"bad mode", func(r *L50Request) { r.Mode = "jackknife" }, http.StatusBadRequest},
		{"inverted bounds", func(r *L50Request) {
			lo, hi := 100.0, 10.0
			r.Lower, r.Upper = &lo, &hi
		}, http.StatusBadRequest},
		{"probability out of range", func(r *L50Request) {
			p := 1.5
			r.Probability = &p
		}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := maturityRequest()
			tt.mutate(&req)
			rec := post(t, s, req)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Code)
		})
	}
}

func TestRunMalformedBody(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/l50", strings.NewReader("{"))
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetUnknownRun(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(s, "/api/v1/runs/00000000-0000-0000-0000-000000000000")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
