package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/basherkella/cardstudio/internal/domain"
	"github.com/basherkella/cardstudio/internal/platform/auth"
	"github.com/basherkella/cardstudio/internal/platform/httpx"
	"github.com/basherkella/cardstudio/internal/services"
)

// MeHandlers exposes the signed-in caller's session bookkeeping and access state.
type MeHandlers struct {
	authn  *auth.Authenticator
	access services.AccessService
}

// NewMeHandlers constructs handlers enforcing Firebase authentication before invoking the access service.
func NewMeHandlers(authn *auth.Authenticator, access services.AccessService) *MeHandlers {
	return &MeHandlers{
		authn:  authn,
		access: access,
	}
}

// Routes wires the /me endpoints onto the provided router.
func (h *MeHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.getAccess)
	r.Post("/session", h.createSession)
}

type profilePayload struct {
	UID         string `json:"uid"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	PhotoURL    string `json:"photoUrl,omitempty"`
	Role        string `json:"role"`
	Status      string `json:"status"`
	CreatedAt   string `json:"createdAt,omitempty"`
	LastLogin   string `json:"lastLogin,omitempty"`
}

type accessPayload struct {
	Authenticated bool            `json:"authenticated"`
	Gate          string          `json:"gate"`
	Admin         bool            `json:"admin"`
	Profile       *profilePayload `json:"profile,omitempty"`
}

func buildProfilePayload(profile services.UserProfile) profilePayload {
	return profilePayload{
		UID:         profile.UID,
		Email:       profile.Email,
		Phone:       profile.Phone,
		DisplayName: profile.DisplayName,
		PhotoURL:    profile.PhotoURL,
		Role:        string(profile.Role),
		Status:      string(profile.Status),
		CreatedAt:   formatTime(profile.CreatedAt),
		LastLogin:   formatTime(profile.LastLogin),
	}
}

func buildAccessPayload(state services.AccessState) accessPayload {
	payload := accessPayload{
		Authenticated: state.Authenticated,
		Gate:          string(state.Gate),
		Admin:         state.IsAdmin(),
	}
	if state.Profile != nil {
		profile := buildProfilePayload(*state.Profile)
		payload.Profile = &profile
	}
	return payload
}

func (h *MeHandlers) getAccess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.identity(ctx, w)
	if !ok {
		return
	}
	state := h.access.Resolve(ctx, identity)
	status := http.StatusOK
	if state.Gate == domain.GateUnavailable {
		status = http.StatusServiceUnavailable
	}
	httpx.WriteJSON(w, status, buildAccessPayload(state))
}

func (h *MeHandlers) createSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.identity(ctx, w)
	if !ok {
		return
	}
	profile, err := h.access.SignIn(ctx, identity)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrAccessIdentityRequired):
			httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		case errors.Is(err, services.ErrAccessProfileUnavailable):
			writeUnavailable(ctx, w, "profile_unavailable", "profile could not be loaded, try again")
		default:
			writeStoreError(ctx, w, err)
		}
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildAccessPayload(services.AccessState{
		Authenticated: true,
		Profile:       &profile,
		Gate:          domain.GateFor(profile),
	}))
}

func (h *MeHandlers) identity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	if h.access == nil {
		writeUnavailable(ctx, w, "access_unavailable", "access service is unavailable")
		return nil, false
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}
