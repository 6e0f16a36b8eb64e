package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/basherkella/cardstudio/internal/domain"
)

type stubHealthRepository struct {
	report domain.SystemHealthReport
	err    error
}

func (s *stubHealthRepository) Collect(context.Context) (domain.SystemHealthReport, error) {
	return s.report, s.err
}

func TestNewSystemServiceRequiresRepository(t *testing.T) {
	if _, err := NewSystemService(SystemServiceDeps{}); err == nil {
		t.Fatalf("expected error without a health repository")
	}
}

func TestSystemServiceFillsBuildAndCapabilities(t *testing.T) {
	start := time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)
	now := start.Add(90 * time.Second)
	caps := domain.Capabilities{AIProvider: "gemini", AIModel: "gemini-2.5-flash", Capture: true}
	svc, err := NewSystemService(SystemServiceDeps{
		HealthRepository: &stubHealthRepository{report: domain.SystemHealthReport{
			Checks: map[string]domain.SystemHealthCheck{
				"firestore":  {Status: domain.HealthStatusOK},
				"localStore": {Status: domain.HealthStatusOK},
				"rasterizer": {Status: domain.HealthStatusOK},
			},
		}},
		Capabilities: caps,
		Clock:        func() time.Time { return now },
		Build:        BuildInfo{Version: "2.1.0", CommitSHA: "f00d", Environment: "staging", StartedAt: start},
	})
	if err != nil {
		t.Fatalf("NewSystemService: %v", err)
	}

	report, err := svc.HealthReport(context.Background())
	if err != nil {
		t.Fatalf("HealthReport: %v", err)
	}
	if report.Status != domain.HealthStatusOK || !report.Serving() {
		t.Fatalf("expected ok report, got %s", report.Status)
	}
	if report.Version != "2.1.0" || report.CommitSHA != "f00d" || report.Environment != "staging" {
		t.Fatalf("build info not applied: %+v", report)
	}
	if report.Uptime != 90*time.Second || !report.GeneratedAt.Equal(now) {
		t.Fatalf("unexpected timing uptime=%s generated=%s", report.Uptime, report.GeneratedAt)
	}
	if report.Capabilities != caps {
		t.Fatalf("expected capabilities %+v, got %+v", caps, report.Capabilities)
	}
	if len(report.Unavailable) != 0 {
		t.Fatalf("expected every feature available, got %v", report.Unavailable)
	}
}

func TestSystemServiceReportsUnavailableFeatures(t *testing.T) {
	var events []string
	var unavailable []string
	svc, err := NewSystemService(SystemServiceDeps{
		HealthRepository: &stubHealthRepository{report: domain.SystemHealthReport{
			Checks: map[string]domain.SystemHealthCheck{
				"firestore":  {Status: domain.HealthStatusOK},
				"localStore": {Status: domain.HealthStatusOK},
				"rasterizer": {Status: domain.HealthStatusError, Error: "connection refused"},
			},
		}},
		Capabilities: domain.Capabilities{Capture: true},
		Logger: func(_ context.Context, event string, fields map[string]any) {
			events = append(events, event)
			unavailable, _ = fields["unavailable"].([]string)
		},
	})
	if err != nil {
		t.Fatalf("NewSystemService: %v", err)
	}

	report, err := svc.HealthReport(context.Background())
	if err != nil {
		t.Fatalf("HealthReport: %v", err)
	}
	if report.Status != domain.HealthStatusError {
		t.Fatalf("expected derived error status, got %s", report.Status)
	}
	if len(report.Unavailable) != 1 || report.Unavailable[0] != "capture" {
		t.Fatalf("expected capture unavailable, got %v", report.Unavailable)
	}
	if len(events) != 1 || events[0] != "system.health.degraded" || len(unavailable) != 1 {
		t.Fatalf("expected one degraded event, got %v %v", events, unavailable)
	}
}

func TestSystemServiceKeepsRepositoryStatus(t *testing.T) {
	svc, err := NewSystemService(SystemServiceDeps{
		HealthRepository: &stubHealthRepository{report: domain.SystemHealthReport{
			Status: domain.HealthStatusDegraded,
			Checks: map[string]domain.SystemHealthCheck{
				"rasterizer": {Status: domain.HealthStatusError},
			},
		}},
	})
	if err != nil {
		t.Fatalf("NewSystemService: %v", err)
	}
	report, err := svc.HealthReport(context.Background())
	if err != nil {
		t.Fatalf("HealthReport: %v", err)
	}
	if report.Status != domain.HealthStatusDegraded || !report.Serving() {
		t.Fatalf("optional failure must keep the instance serving, got %s", report.Status)
	}
	if len(report.Unavailable) != 0 {
		t.Fatalf("capture disabled, nothing to report; got %v", report.Unavailable)
	}
}

func TestSystemServicePropagatesCollectError(t *testing.T) {
	want := errors.New("collect failed")
	svc, err := NewSystemService(SystemServiceDeps{HealthRepository: &stubHealthRepository{err: want}})
	if err != nil {
		t.Fatalf("NewSystemService: %v", err)
	}
	if _, err := svc.HealthReport(context.Background()); !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}
