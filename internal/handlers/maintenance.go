package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/basherkella/cardstudio/internal/platform/auth"
	"github.com/basherkella/cardstudio/internal/platform/httpx"
	"github.com/basherkella/cardstudio/internal/platform/requestctx"
	"github.com/basherkella/cardstudio/internal/services"
)

// MaintenanceHandlers exposes scheduler-driven upkeep. The /internal group
// is expected to carry OIDC verification middleware.
type MaintenanceHandlers struct {
	maintenance services.MaintenanceService
}

// NewMaintenanceHandlers constructs the maintenance handlers.
func NewMaintenanceHandlers(maintenance services.MaintenanceService) *MaintenanceHandlers {
	return &MaintenanceHandlers{maintenance: maintenance}
}

// Routes wires the /internal/maintenance endpoints.
func (h *MaintenanceHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/maintenance/prune-devices", h.pruneDevices)
}

func (h *MaintenanceHandlers) pruneDevices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.maintenance == nil {
		writeUnavailable(ctx, w, "maintenance_unavailable", "maintenance service is unavailable")
		return
	}
	result, err := h.maintenance.PruneDevices(ctx)
	if err != nil {
		writeStoreError(ctx, w, err)
		return
	}
	if caller, ok := auth.ServiceIdentityFromContext(ctx); ok {
		requestctx.Logger(ctx).Info("device prune requested",
			zap.String("caller", caller.Email),
			zap.Int("devices", result.Devices),
		)
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"cutoff":  formatTime(result.Cutoff),
		"devices": result.Devices,
	})
}
