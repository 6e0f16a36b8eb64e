package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/basherkella/cardstudio/internal/domain"
	"github.com/basherkella/cardstudio/internal/services"
)

func TestHealthzReportsBuild(t *testing.T) {
	start := time.Date(2026, 2, 21, 0, 0, 0, 0, time.UTC)
	h := NewHealthHandlers(
		WithHealthBuildInfo(services.BuildInfo{Version: "2.0.1", CommitSHA: "beef", StartedAt: start}),
		WithHealthClock(func() time.Time { return start.Add(45 * time.Second) }),
	)
	rr := httptest.NewRecorder()
	h.Healthz(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["status"] != domain.HealthStatusOK || body["version"] != "2.0.1" || body["commitSha"] != "beef" || body["uptime"] != "45s" {
		t.Fatalf("unexpected liveness payload %v", body)
	}
	if _, ok := body["capabilities"]; ok {
		t.Fatalf("liveness must not probe capabilities")
	}
}

func TestReadyzStatusCodes(t *testing.T) {
	now := time.Date(2026, 2, 21, 0, 1, 0, 0, time.UTC)
	cases := []struct {
		name   string
		report services.SystemHealthReport
		status int
		detail string
	}{
		{
			name: "ok",
			report: services.SystemHealthReport{
				Status: domain.HealthStatusOK,
				Checks: map[string]domain.SystemHealthCheck{
					"firestore": {Status: domain.HealthStatusOK, Latency: 12 * time.Millisecond, CheckedAt: now},
				},
				Capabilities: domain.Capabilities{AIProvider: "anthropic", Capture: true},
			},
			status: http.StatusOK,
		},
		{
			name: "degraded keeps serving",
			report: services.SystemHealthReport{
				Status: domain.HealthStatusDegraded,
				Checks: map[string]domain.SystemHealthCheck{
					"rasterizer": {Status: domain.HealthStatusError, Error: "connection refused"},
				},
				Unavailable: []string{"capture"},
			},
			status: http.StatusOK,
			detail: "rasterizer: connection refused",
		},
		{
			name: "required failure",
			report: services.SystemHealthReport{
				Status: domain.HealthStatusError,
				Checks: map[string]domain.SystemHealthCheck{
					"localStore": {Status: domain.HealthStatusError, Error: "disk I/O error"},
				},
			},
			status: http.StatusServiceUnavailable,
			detail: "localStore: disk I/O error",
		},
	}
	for _, tc := range cases {
		h := NewHealthHandlers(
			WithHealthSystemService(&stubSystemService{report: tc.report}),
			WithHealthClock(func() time.Time { return now }),
		)
		rr := httptest.NewRecorder()
		h.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		if rr.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.status, rr.Code)
		}
		body := decodeBody(t, rr)
		details, _ := body["details"].([]any)
		if tc.detail == "" && len(details) != 0 {
			t.Fatalf("%s: expected no details, got %v", tc.name, details)
		}
		if tc.detail != "" && (len(details) != 1 || details[0] != tc.detail) {
			t.Fatalf("%s: expected detail %q, got %v", tc.name, tc.detail, details)
		}
		if _, ok := body["capabilities"].(map[string]any); !ok {
			t.Fatalf("%s: expected capabilities block", tc.name)
		}
	}
}

func TestReadyzCapabilitiesPayload(t *testing.T) {
	h := NewHealthHandlers(WithHealthSystemService(&stubSystemService{report: services.SystemHealthReport{
		Status: domain.HealthStatusOK,
		Checks: map[string]domain.SystemHealthCheck{
			"firestore": {Status: domain.HealthStatusOK, Latency: 12 * time.Millisecond},
		},
		Capabilities: domain.Capabilities{AIProvider: "gemini", Export: true},
	}}))
	rr := httptest.NewRecorder()
	h.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	body := decodeBody(t, rr)
	caps := body["capabilities"].(map[string]any)
	if caps["aiProvider"] != "gemini" || caps["export"] != true || caps["capture"] != false {
		t.Fatalf("unexpected capabilities %v", caps)
	}
	checks := body["checks"].(map[string]any)
	if fs := checks["firestore"].(map[string]any); fs["latencyMs"] != float64(12) {
		t.Fatalf("expected latency 12ms, got %v", fs)
	}
}

func TestReadyzServiceError(t *testing.T) {
	h := NewHealthHandlers(WithHealthSystemService(&stubSystemService{err: errors.New("boom")}))
	rr := httptest.NewRecorder()
	h.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if code := errorCode(t, rr); code != "health_unavailable" {
		t.Fatalf("expected health_unavailable, got %s", code)
	}
}
