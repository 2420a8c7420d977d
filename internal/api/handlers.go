package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/searchlight-io/searchlight/internal/app/fixplan"
	"github.com/searchlight-io/searchlight/internal/domain"
)

// ─── Runs ───────────────────────────────────────────────────────────────────

type createRunRequest struct {
	SiteID string `json:"site_id"`
	Force  bool   `json:"force"`
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SiteID == "" {
		writeError(w, http.StatusBadRequest, "site_id is required")
		return
	}

	run, err := s.runs.Execute(r.Context(), req.SiteID, req.Force)
	if errors.Is(err, domain.ErrAllSourcesFailed) {
		// The failed run record is still returned so the caller can see it.
		writeJSON(w, http.StatusBadGateway, run)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	siteID := r.URL.Query().Get("site_id")
	if siteID == "" {
		writeError(w, http.StatusBadRequest, "site_id is required")
		return
	}
	runs, err := s.db.ListRuns(siteID, queryLimit(r, 20))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// handleGetRun returns the run with its anomalies and ranked hypotheses.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := s.db.GetRun(id)
	if errors.Is(err, domain.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	anomalies, err := s.db.AnomaliesForRun(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	hypotheses, err := s.db.HypothesesForRun(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run":        run,
		"anomalies":  anomalies,
		"hypotheses": hypotheses,
	})
}

// ─── Tickets ────────────────────────────────────────────────────────────────

func (s *Server) handleListTickets(w http.ResponseWriter, r *http.Request) {
	siteID := r.URL.Query().Get("site_id")
	if siteID == "" {
		writeError(w, http.StatusBadRequest, "site_id is required")
		return
	}
	status := domain.TicketStatus(r.URL.Query().Get("status"))
	if status != "" && !domain.ValidTicketStatus(status) {
		writeError(w, http.StatusBadRequest, "unknown ticket status")
		return
	}
	tickets, err := s.db.ListTickets(siteID, status, queryLimit(r, 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tickets": tickets})
}

func (s *Server) handleGetTicket(w http.ResponseWriter, r *http.Request) {
	t, err := s.db.GetTicket(chi.URLParam(r, "id"))
	if errors.Is(err, domain.ErrTicketNotFound) {
		writeError(w, http.StatusNotFound, "ticket not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type updateTicketRequest struct {
	Status domain.TicketStatus `json:"status"`
	Owner  string              `json:"owner"`
}

// handleUpdateTicket applies the one mutation tickets allow: status (and
// owner) set by an operator.
func (s *Server) handleUpdateTicket(w http.ResponseWriter, r *http.Request) {
	var req updateTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !domain.ValidTicketStatus(req.Status) {
		writeError(w, http.StatusBadRequest, "unknown ticket status")
		return
	}

	id := chi.URLParam(r, "id")
	err := s.db.UpdateTicketStatus(id, req.Status, req.Owner)
	if errors.Is(err, domain.ErrTicketNotFound) {
		writeError(w, http.StatusNotFound, "ticket not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	t, err := s.db.GetTicket(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// ─── Fix Plans ──────────────────────────────────────────────────────────────

type createPlanRequest struct {
	SiteID string `json:"site_id"`
	Topic  string `json:"topic"`
}

func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	var req createPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SiteID == "" || req.Topic == "" {
		writeError(w, http.StatusBadRequest, "site_id and topic are required")
		return
	}
	plan, err := s.plans.GeneratePlan(r.Context(), req.SiteID, req.Topic)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := s.db.GetPlan(chi.URLParam(r, "id"))
	if errors.Is(err, domain.ErrPlanNotFound) {
		writeError(w, http.StatusNotFound, "plan not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

type executePlanRequest struct {
	MaxItems         int    `json:"max_items"`
	OverrideCooldown bool   `json:"override_cooldown"`
	OverrideReason   string `json:"override_reason"`
}

func (s *Server) handleExecutePlan(w http.ResponseWriter, r *http.Request) {
	var req executePlanRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	result, err := s.plans.ExecutePlan(r.Context(), chi.URLParam(r, "id"), fixplan.ExecuteOptions{
		MaxItems:         req.MaxItems,
		OverrideCooldown: req.OverrideCooldown,
		OverrideReason:   req.OverrideReason,
	})
	switch {
	case errors.Is(err, domain.ErrPlanNotFound):
		writeError(w, http.StatusNotFound, "plan not found")
	case errors.Is(err, domain.ErrCooldownActive):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrPlanExpired):
		writeError(w, http.StatusGone, err.Error())
	case errors.Is(err, domain.ErrInvalidState):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, result)
	}
}

func (s *Server) handleRejectPlan(w http.ResponseWriter, r *http.Request) {
	err := s.plans.RejectPlan(chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, domain.ErrPlanNotFound):
		writeError(w, http.StatusNotFound, "plan not found")
	case errors.Is(err, domain.ErrInvalidState):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
	}
}

// ─── Sample Ingestion ───────────────────────────────────────────────────────

type ingestSamplesRequest struct {
	SiteID    string `json:"site_id"`
	Source    string `json:"source"`
	MetricKey string `json:"metric_key"`
	Samples   []struct {
		Date  string  `json:"date"`
		Value float64 `json:"value"`
	} `json:"samples"`
}

// handleIngestSamples accepts daily readings pushed by providers that
// cannot be polled. Re-ingesting a day overwrites it.
func (s *Server) handleIngestSamples(w http.ResponseWriter, r *http.Request) {
	var req ingestSamplesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SiteID == "" || req.Source == "" || req.MetricKey == "" {
		writeError(w, http.StatusBadRequest, "site_id, source, and metric_key are required")
		return
	}
	samples := make([]domain.Sample, 0, len(req.Samples))
	for _, raw := range req.Samples {
		day, err := time.Parse("2006-01-02", raw.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "sample dates must be YYYY-MM-DD")
			return
		}
		samples = append(samples, domain.Sample{Date: day, Value: raw.Value})
	}

	if err := s.db.UpsertSamples(req.SiteID, domain.Source(req.Source), req.MetricKey, samples); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"ingested": len(samples)})
}

// queryLimit parses ?limit= with a default and a hard cap.
func queryLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > 500 {
		return 500
	}
	return n
}
