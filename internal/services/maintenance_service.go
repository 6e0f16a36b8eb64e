package services

import (
	"context"
	"errors"
	"time"

	"github.com/basherkella/cardstudio/internal/repositories"
)

const defaultGuestRetention = 90 * 24 * time.Hour

// MaintenanceServiceDeps bundles the dependencies of the maintenance service.
type MaintenanceServiceDeps struct {
	Devices        repositories.DeviceRepository
	GuestRetention time.Duration
	Clock          func() time.Time
	Logger         Logger
}

type maintenanceService struct {
	devices   repositories.DeviceRepository
	retention time.Duration
	clock     func() time.Time
	logger    Logger
}

var _ MaintenanceService = (*maintenanceService)(nil)

// NewMaintenanceService wires device store upkeep.
func NewMaintenanceService(deps MaintenanceServiceDeps) (MaintenanceService, error) {
	if deps.Devices == nil {
		return nil, errors.New("maintenance service: device repository is required")
	}
	retention := deps.GuestRetention
	if retention <= 0 {
		retention = defaultGuestRetention
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &maintenanceService{
		devices:   deps.Devices,
		retention: retention,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: deps.Logger,
	}, nil
}

func (s *maintenanceService) PruneDevices(ctx context.Context) (PruneResult, error) {
	cutoff := s.clock().Add(-s.retention)
	removed, err := s.devices.PruneInactive(ctx, cutoff)
	if err != nil {
		return PruneResult{}, err
	}
	if s.logger != nil {
		s.logger(ctx, "maintenance.devices_pruned", map[string]any{
			"cutoff":  cutoff.Format(time.RFC3339),
			"devices": removed,
		})
	}
	return PruneResult{Cutoff: cutoff, Devices: removed}, nil
}
