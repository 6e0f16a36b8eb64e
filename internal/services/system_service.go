package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/basherkella/cardstudio/internal/domain"
	"github.com/basherkella/cardstudio/internal/repositories"
)

// BuildInfo captures runtime metadata exposed via health endpoints.
type BuildInfo struct {
	Version     string
	CommitSHA   string
	Environment string
	StartedAt   time.Time
}

// SystemServiceDeps bundles collaborators required to construct a system service.
type SystemServiceDeps struct {
	HealthRepository repositories.HealthRepository
	Capabilities     domain.Capabilities
	Clock            func() time.Time
	Build            BuildInfo
	Logger           Logger
}

// featureChecks maps each optional feature to the dependency probe it needs.
var featureChecks = []struct {
	feature string
	check   string
	enabled func(domain.Capabilities) bool
}{
	{"capture", "rasterizer", func(c domain.Capabilities) bool { return c.Capture }},
	{"cloudGallery", "firestore", func(c domain.Capabilities) bool { return c.CloudGallery }},
	{"signIn", "firestore", func(domain.Capabilities) bool { return true }},
	{"devicePreferences", "localStore", func(domain.Capabilities) bool { return true }},
}

type systemService struct {
	health       repositories.HealthRepository
	capabilities domain.Capabilities
	clock        func() time.Time
	build        BuildInfo
	logger       Logger
}

var _ SystemService = (*systemService)(nil)

// NewSystemService assembles the readiness reporter.
func NewSystemService(deps SystemServiceDeps) (SystemService, error) {
	if deps.HealthRepository == nil {
		return nil, errors.New("system service: health repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	build := deps.Build
	if build.StartedAt.IsZero() {
		build.StartedAt = clock()
	}
	return &systemService{
		health:       deps.HealthRepository,
		capabilities: deps.Capabilities,
		clock:        func() time.Time { return clock().UTC() },
		build:        build,
		logger:       deps.Logger,
	}, nil
}

func (s *systemService) HealthReport(ctx context.Context) (SystemHealthReport, error) {
	report, err := s.health.Collect(ctx)
	if err != nil {
		return SystemHealthReport{}, err
	}

	now := s.clock()
	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = now
	}
	report.GeneratedAt = report.GeneratedAt.UTC()
	if report.Version == "" {
		report.Version = s.build.Version
	}
	if report.CommitSHA == "" {
		report.CommitSHA = s.build.CommitSHA
	}
	if report.Environment == "" {
		report.Environment = s.build.Environment
	}
	if report.Uptime <= 0 {
		report.Uptime = now.Sub(s.build.StartedAt)
	}
	if report.Checks == nil {
		report.Checks = map[string]domain.SystemHealthCheck{}
	}
	if strings.TrimSpace(report.Status) == "" {
		report.Status = worstStatus(report.Checks)
	}
	report.Capabilities = s.capabilities
	report.Unavailable = unavailableFeatures(s.capabilities, report.Checks)

	if report.Status != domain.HealthStatusOK {
		failing := make([]string, 0, len(report.Checks))
		for name, check := range report.Checks {
			if check.Status != domain.HealthStatusOK {
				failing = append(failing, name)
			}
		}
		sort.Strings(failing)
		s.log(ctx, "system.health.degraded", map[string]any{
			"status":      report.Status,
			"failing":     failing,
			"unavailable": report.Unavailable,
		})
	}
	return report, nil
}

func (s *systemService) log(ctx context.Context, event string, fields map[string]any) {
	if s.logger != nil {
		s.logger(ctx, event, fields)
	}
}

func unavailableFeatures(caps domain.Capabilities, checks map[string]domain.SystemHealthCheck) []string {
	var out []string
	for _, fc := range featureChecks {
		if !fc.enabled(caps) {
			continue
		}
		check, ok := checks[fc.check]
		if ok && check.Status != domain.HealthStatusOK {
			out = append(out, fc.feature)
		}
	}
	return out
}

func worstStatus(checks map[string]domain.SystemHealthCheck) string {
	status := domain.HealthStatusOK
	for _, check := range checks {
		switch check.Status {
		case domain.HealthStatusOK, "":
		case domain.HealthStatusError:
			return domain.HealthStatusError
		default:
			status = domain.HealthStatusDegraded
		}
	}
	return status
}
