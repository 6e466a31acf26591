package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/antoniostano/gembot/internal/config"
	"github.com/antoniostano/gembot/internal/observability"
	"github.com/antoniostano/gembot/internal/ratelimit"
)

var testMetrics = observability.NewMetrics("gembot_httpapi_test")

func newTestServer() (*Server, *ratelimit.Registry) {
	limits := ratelimit.NewRegistry(ratelimit.Quota{Minute: 10, Day: 250})
	cfg := config.Config{HistoryStore: "memory"}
	return New(cfg, limits, testMetrics), limits
}

func TestHealthEndpoints(t *testing.T) {
	s, _ := newTestServer()
	router := s.Router()

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s = %d, want 200", path, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Fatalf("GET %s Content-Type = %q", path, ct)
		}
	}
}

func TestUserLimitsEndpoint(t *testing.T) {
	s, limits := newTestServer()
	router := s.Router()
	limits.Record(77)
	limits.Record(77)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/limits/77", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp userLimitsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.UserID != 77 || resp.MinuteRemaining != 8 || resp.DayRemaining != 248 {
		t.Fatalf("response = %+v", resp)
	}
	if resp.MinuteLimit != 10 || resp.DayLimit != 250 {
		t.Fatalf("limits = %+v", resp)
	}
}

func TestUserLimitsRejectsBadID(t *testing.T) {
	s, _ := newTestServer()
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/limits/abc", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestPerfLatencyEndpoint(t *testing.T) {
	s, _ := newTestServer()
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/perf/latency", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var snap observability.TurnStageSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.WindowSize == 0 {
		t.Fatalf("window size = 0, want configured window")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer()
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
