// Package api provides the HTTP server for Searchlight: run triggers,
// ticket and plan management, sample ingestion, and health/metrics.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/searchlight-io/searchlight/internal/app/fixplan"
	"github.com/searchlight-io/searchlight/internal/domain"
	"github.com/searchlight-io/searchlight/internal/health"
	"github.com/searchlight-io/searchlight/internal/infra/sqlite"
)

// Version is reported by /api/version.
const Version = "0.1.0"

// RunService triggers diagnostic runs.
type RunService interface {
	Execute(ctx context.Context, siteID string, force bool) (*domain.RunSummary, error)
}

// PlanService manages fix-plan lifecycle.
type PlanService interface {
	GeneratePlan(ctx context.Context, siteID, topic string) (*domain.FixPlan, error)
	ExecutePlan(ctx context.Context, planID string, opts fixplan.ExecuteOptions) (*domain.ExecutionResult, error)
	RejectPlan(planID string) error
}

// Server is the Searchlight HTTP API server.
type Server struct {
	db             *sqlite.DB
	runs           RunService
	plans          PlanService
	health         *health.Checker // optional
	metricsEnabled bool
}

// NewServer creates a new API server.
func NewServer(db *sqlite.DB, runs RunService, plans PlanService) *Server {
	return &Server{db: db, runs: runs, plans: plans}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetHealth attaches the health checker backing /health.
func (s *Server) SetHealth(h *health.Checker) { s.health = h }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(2 * time.Minute))

	r.Get("/health", s.handleHealth)

	r.Get("/api/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"version": Version})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/runs", s.handleCreateRun)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)

		r.Get("/tickets", s.handleListTickets)
		r.Get("/tickets/{id}", s.handleGetTicket)
		r.Patch("/tickets/{id}", s.handleUpdateTicket)

		r.Post("/plans", s.handleCreatePlan)
		r.Get("/plans/{id}", s.handleGetPlan)
		r.Post("/plans/{id}/execute", s.handleExecutePlan)
		r.Post("/plans/{id}/reject", s.handleRejectPlan)

		r.Post("/samples", s.handleIngestSamples)
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// handleHealth reports check statuses; 503 when anything is failing.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	status := http.StatusOK
	overall := "ok"
	if !s.health.IsHealthy() {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}
	writeJSON(w, status, map[string]any{
		"status": overall,
		"checks": s.health.Statuses(),
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    "error",
		},
	})
}
