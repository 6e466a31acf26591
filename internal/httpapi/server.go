package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/antoniostano/gembot/internal/config"
	"github.com/antoniostano/gembot/internal/observability"
	"github.com/antoniostano/gembot/internal/ratelimit"
)

// Server exposes operational endpoints next to the Telegram poller:
// health, Prometheus metrics, the rolling latency window and per-user
// quota inspection.
type Server struct {
	cfg     config.Config
	limits  *ratelimit.Registry
	metrics *observability.Metrics
}

func New(cfg config.Config, limits *ratelimit.Registry, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:     cfg,
		limits:  limits,
		metrics: metrics,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Get("/v1/perf/latency", s.handlePerfLatency)
	r.Get("/v1/limits/{userID}", s.handleUserLimits)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"history_store": s.cfg.HistoryStore,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":        "ready",
		"tracked_users": s.limits.TrackedUsers(),
	})
}

type userLimitsResponse struct {
	UserID          int64 `json:"user_id"`
	MinuteLimit     int   `json:"minute_limit"`
	MinuteRemaining int   `json:"minute_remaining"`
	DayLimit        int   `json:"day_limit"`
	DayRemaining    int   `json:"day_remaining"`
}

func (s *Server) handleUserLimits(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_user_id", "userID must be an integer")
		return
	}
	minute, day := s.limits.Remaining(userID)
	quota := s.limits.Quota()
	respondJSON(w, http.StatusOK, userLimitsResponse{
		UserID:          userID,
		MinuteLimit:     quota.Minute,
		MinuteRemaining: minute,
		DayLimit:        quota.Day,
		DayRemaining:    day,
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
