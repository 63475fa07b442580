package api

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"gol50/adapters/excel"
	"gol50/adapters/models"
	"gol50/adapters/models/additive"
	"gol50/adapters/report"
	"gol50/adapters/rng"
	"gol50/app"
	"gol50/domain/core"
	"gol50/domain/threshold"
	"gol50/internal/config"
	"gol50/internal/errors"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Version: Version})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req L50Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errors.InvalidInput(fmt.Sprintf("malformed request body: %v", err)))
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		s.writeError(w, validationError(err))
		return
	}

	analysis := s.merge(req)
	if analysis.Lower >= analysis.Upper {
		s.writeError(w, core.NewBoundsError(analysis.Lower, analysis.Upper))
		return
	}
	mode, err := threshold.ParseMode(analysis.Mode)
	if err != nil {
		s.writeError(w, errors.WithCode(errors.CodeInvalidInput, err))
		return
	}
	runCfg, err := app.RunConfigFromAnalysis(analysis)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if req.Probability != nil {
		if runCfg.Threshold, err = threshold.LogitThreshold(*req.Probability); err != nil {
			s.writeError(w, errors.WithCode(errors.CodeInvalidInput, err))
			return
		}
	}

	kind, err := models.ParseKind(req.Model)
	if err != nil {
		s.writeError(w, err)
		return
	}
	model, err := models.Fit(r.Context(), kind, req.Dataset, additive.Spec{
		Target:       req.Target,
		Auxiliary:    req.Auxiliary,
		Interactions: req.Interactions,
		Knots:        req.Knots,
		Lambda:       req.Lambda,
	})
	if err != nil {
		s.writeError(w, errors.Wrapf(err, "failed to fit %s model", kind))
		return
	}

	orchestrator := app.NewOrchestrator(rng.NewStreamAdapter(analysis.Seed), s.logger)
	table, err := orchestrator.Run(r.Context(), model, req.Grid, mode, runCfg)
	if err != nil {
		s.writeError(w, errors.Wrap(err, "run failed"))
		return
	}

	if s.results != nil {
		if err := s.results.Save(r.Context(), table); err != nil {
			s.logger.Warn("[API] run %s not persisted: %v", table.RunID, err)
		}
	}
	writeJSON(w, http.StatusOK, table)
}

// merge overlays request fields on the configured analysis defaults
func (s *Server) merge(req L50Request) (a config.AnalysisConfig) {
	a = s.analysis
	a.Model = req.Model
	a.Target = req.Target
	a.Auxiliary = req.Auxiliary
	if req.Mode != "" {
		a.Mode = req.Mode
	}
	if req.Threshold != nil {
		a.Threshold = *req.Threshold
	}
	if req.Lower != nil {
		a.Lower = *req.Lower
	}
	if req.Upper != nil {
		a.Upper = *req.Upper
	}
	if req.Samples > 0 {
		a.GaussianSamples = req.Samples
	}
	if req.Replicates > 0 {
		a.BootstrapReplicates = req.Replicates
	}
	if req.Conditional != nil {
		a.UseFittedRandomEffects = *req.Conditional
	}
	if req.Seed != nil {
		a.Seed = *req.Seed
	}
	return a
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.results == nil {
		s.writeError(w, errors.NotFound("result store"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	runs, err := s.results.List(r.Context(), limit, offset)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.results == nil {
		s.writeError(w, errors.NotFound("result store"))
		return
	}
	runID, err := core.ParseRunID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, errors.WithCode(errors.CodeInvalidInput, err))
		return
	}
	table, err := s.results.Get(r.Context(), runID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	switch strings.ToLower(r.URL.Query().Get("format")) {
	case "", "json":
		writeJSON(w, http.StatusOK, table)
	case "md", "markdown":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Write(report.Markdown(table))
	case "html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(report.HTML(table))
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=l50-%s.xlsx", runID))
		if err := excel.WriteResultTable(w, table); err != nil {
			s.logger.Error("[API] xlsx export of %s failed: %v", runID, err)
		}
	default:
		s.writeError(w, errors.InvalidInput("format must be json, md, html or xlsx"))
	}
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) {
		return errors.ValidationError(err.Error())
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
	}
	return errors.ValidationError(strings.Join(msgs, "; "))
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("[API] %v", err)
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Code: errors.GetCode(err)})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
