package domain

import "time"

const (
	// HealthStatusOK indicates all dependencies responded.
	HealthStatusOK = "ok"
	// HealthStatusDegraded indicates an optional dependency failed; the
	// instance still serves but some features are unavailable.
	HealthStatusDegraded = "degraded"
	// HealthStatusError indicates a required dependency is unavailable.
	HealthStatusError = "error"
)

// SystemHealthCheck is the outcome of one dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// Capabilities describes the optional features an instance was started with.
type Capabilities struct {
	AIProvider      string
	AIModel         string
	Capture         bool
	Export          bool
	CloudGallery    bool
	GuestGeneration bool
}

// SystemHealthReport aggregates dependency probes for /readyz.
type SystemHealthReport struct {
	Status       string
	Checks       map[string]SystemHealthCheck
	Capabilities Capabilities
	// Unavailable names enabled features whose backing dependency failed.
	Unavailable []string
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}

// Serving reports whether the instance should receive traffic.
func (r SystemHealthReport) Serving() bool {
	return r.Status != HealthStatusError
}
