package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSnapshotCounters(t *testing.T) {
	m := New()

	m.IncrementRequests(true, 10)
	m.IncrementRequests(false, 30)
	m.IncrementValidation(true)
	m.IncrementValidation(false)
	m.IncrementCalculation()
	m.IncrementAggregation(4)
	m.IncrementAggregation(2)
	m.IncrementCache(true)
	m.IncrementCache(false)
	m.IncrementLinearCall("projects", false)
	m.TrackEndpoint("/api/v1/pert/calculate", "POST", 200, 5)
	m.TrackEndpoint("/api/v1/pert/calculate", "POST", 400, 15)

	s := m.Snapshot()

	if s.Requests.Total != 2 || s.Requests.Failed != 1 || s.Requests.AvgLatencyMs != 20 {
		t.Errorf("unexpected request metrics: %+v", s.Requests)
	}
	if s.Pert.Validations != 2 || s.Pert.ValidationFailures != 1 || s.Pert.Calculations != 1 {
		t.Errorf("unexpected pert metrics: %+v", s.Pert)
	}
	if s.Pert.Aggregations != 2 || s.Pert.AvgAggregateSize != 3 {
		t.Errorf("unexpected aggregation metrics: %+v", s.Pert)
	}
	if s.Cache.HitRate != 50 {
		t.Errorf("HitRate = %v, want 50", s.Cache.HitRate)
	}
	if s.Linear.Calls != 1 || s.Linear.Errors != 1 {
		t.Errorf("unexpected linear metrics: %+v", s.Linear)
	}

	em, ok := s.Endpoints["POST /api/v1/pert/calculate"]
	if !ok {
		t.Fatalf("endpoint metrics missing: %+v", s.Endpoints)
	}
	if em.Requests != 2 || em.ErrorRate != 50 || em.AvgLatencyMs != 10 {
		t.Errorf("unexpected endpoint metrics: %+v", em)
	}
}

func TestDetermineOverallStatus(t *testing.T) {
	tests := []struct {
		components map[string]HealthStatus
		want       string
	}{
		{map[string]HealthStatus{"a": {Status: "healthy"}}, "healthy"},
		{map[string]HealthStatus{"a": {Status: "healthy"}, "b": {Status: "degraded"}}, "degraded"},
		{map[string]HealthStatus{"a": {Status: "degraded"}, "b": {Status: "unhealthy"}}, "unhealthy"},
		{map[string]HealthStatus{}, "healthy"},
	}

	for _, tt := range tests {
		if got := DetermineOverallStatus(tt.components); got != tt.want {
			t.Errorf("DetermineOverallStatus(%v) = %q, want %q", tt.components, got, tt.want)
		}
	}
}

func TestCheckDatabaseHealthNil(t *testing.T) {
	if got := CheckDatabaseHealth(context.Background(), nil); got.Status != StatusUnhealthy {
		t.Errorf("CheckDatabaseHealth(nil) = %+v", got)
	}
}

func TestCheckMemoryHealth(t *testing.T) {
	if got := CheckMemoryHealth(1 << 20); got.Status != StatusHealthy {
		t.Errorf("CheckMemoryHealth(1TiB) = %+v", got)
	}
}

func TestSnapshotDerivedCounters(t *testing.T) {
	m := New()
	m.IncrementLogin(true)
	m.IncrementLogin(false)
	m.IncrementReportExported(true)
	m.IncrementReportExported(false)
	m.IncrementWSConnection()
	m.DecrementWSConnection()

	s := m.Snapshot()
	if s.Auth.LoginAttempts != 2 || s.Auth.LoginSuccesses != 1 || s.Auth.LoginFailures != 1 {
		t.Errorf("unexpected auth metrics: %+v", s.Auth)
	}
	if s.Reports.Exported != 1 || s.Reports.Errors != 1 {
		t.Errorf("unexpected report metrics: %+v", s.Reports)
	}
	if s.WebSocket.Connections != 0 {
		t.Errorf("Connections = %d, want 0", s.WebSocket.Connections)
	}
	if s.Endpoints != nil {
		t.Errorf("Endpoints = %v, want nil", s.Endpoints)
	}
}

func TestPrometheusHandler(t *testing.T) {
	ObserveHTTP("GET", "/health/live", 200, 3*time.Millisecond)
	New().IncrementCalculation()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	body := w.Body.String()
	for _, want := range []string{
		"linear_pert_http_requests_total",
		"linear_pert_operations_total{kind=\"calculate\"}",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}
