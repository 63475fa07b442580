// Package api serves L50 runs over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"gol50/internal"
	"gol50/internal/config"
	"gol50/ports"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Version is reported by /healthz
var Version = "dev"

// Server holds the router and the run dependencies
type Server struct {
	router   *chi.Mux
	analysis config.AnalysisConfig
	server   config.ServerConfig
	results  ports.ResultRepository
	validate *validator.Validate
	logger   *internal.Logger
}

// NewServer creates the HTTP API. Request fields left empty fall back to analysis.
func NewServer(cfg *config.Config, results ports.ResultRepository, logger *internal.Logger) *Server {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	s := &Server{
		router:   chi.NewRouter(),
		analysis: cfg.Analysis,
		server:   cfg.Server,
		results:  results,
		validate: validator.New(),
		logger:   logger,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/l50", s.handleRun)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
	})
}

// Handler exposes the router
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         ":" + s.server.Port,
		Handler:      s.router,
		ReadTimeout:  s.server.ReadTimeout,
		WriteTimeout: s.server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("[API] listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("[API] shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
