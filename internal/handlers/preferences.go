package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/basherkella/cardstudio/internal/platform/httpx"
	"github.com/basherkella/cardstudio/internal/platform/requestctx"
	"github.com/basherkella/cardstudio/internal/services"
)

// PreferenceHandlers exposes per-device settings.
type PreferenceHandlers struct {
	gate        *AccessGate
	preferences services.PreferenceService
}

// NewPreferenceHandlers constructs the preference handlers.
func NewPreferenceHandlers(gate *AccessGate, preferences services.PreferenceService) *PreferenceHandlers {
	return &PreferenceHandlers{gate: gate, preferences: preferences}
}

// Routes wires the /preferences endpoints.
func (h *PreferenceHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Use(h.gate.Device())
	r.Get("/", h.get)
	r.Put("/", h.update)
}

type preferencesPayload struct {
	DeviceID        string `json:"deviceId"`
	Theme           string `json:"theme"`
	CustomLogo      string `json:"customLogo,omitempty"`
	DefaultTemplate string `json:"defaultTemplate,omitempty"`
	DefaultFont     string `json:"defaultFont,omitempty"`
	UpdatedAt       string `json:"updatedAt,omitempty"`
}

func buildPreferencesPayload(prefs services.DevicePreferences) preferencesPayload {
	return preferencesPayload{
		DeviceID:        prefs.DeviceID,
		Theme:           string(prefs.Theme),
		CustomLogo:      prefs.CustomLogo,
		DefaultTemplate: prefs.DefaultTemplate,
		DefaultFont:     prefs.DefaultFont,
		UpdatedAt:       formatTime(prefs.UpdatedAt),
	}
}

func (h *PreferenceHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.preferences == nil {
		writeUnavailable(ctx, w, "preferences_unavailable", "preference service is unavailable")
		return
	}
	prefs, err := h.preferences.Get(ctx, requestctx.DeviceID(ctx))
	if err != nil {
		writePreferenceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildPreferencesPayload(prefs))
}

// updatePreferencesRequest uses pointers so omitted fields stay unchanged
// and an empty customLogo clears the brand mark.
type updatePreferencesRequest struct {
	Theme           *string `json:"theme"`
	CustomLogo      *string `json:"customLogo"`
	DefaultTemplate *string `json:"defaultTemplate"`
	DefaultFont     *string `json:"defaultFont"`
}

func (h *PreferenceHandlers) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.preferences == nil {
		writeUnavailable(ctx, w, "preferences_unavailable", "preference service is unavailable")
		return
	}
	var req updatePreferencesRequest
	if !decodeJSONBody(w, r, maxUploadBodySize, &req) {
		return
	}
	if req.Theme == nil && req.CustomLogo == nil && req.DefaultTemplate == nil && req.DefaultFont == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "no editable fields provided", http.StatusBadRequest))
		return
	}
	prefs, err := h.preferences.Update(ctx, services.UpdatePreferencesCommand{
		DeviceID:        requestctx.DeviceID(ctx),
		Theme:           req.Theme,
		CustomLogo:      req.CustomLogo,
		DefaultTemplate: req.DefaultTemplate,
		DefaultFont:     req.DefaultFont,
	})
	if err != nil {
		writePreferenceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildPreferencesPayload(prefs))
}

func writePreferenceError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidTheme):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_theme", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrUnknownTemplate):
		httpx.WriteError(ctx, w, httpx.NewError("unknown_template", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrUnknownFont):
		httpx.WriteError(ctx, w, httpx.NewError("unknown_font", err.Error(), http.StatusBadRequest))
	default:
		writeGalleryError(ctx, w, err)
	}
}
