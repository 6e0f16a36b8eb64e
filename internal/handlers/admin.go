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

// AdminHandlers exposes the user roster console.
type AdminHandlers struct {
	gate  *AccessGate
	admin services.AdminService
}

// NewAdminHandlers constructs the admin handlers.
func NewAdminHandlers(gate *AccessGate, admin services.AdminService) *AdminHandlers {
	return &AdminHandlers{gate: gate, admin: admin}
}

// Routes wires the /admin endpoints.
func (h *AdminHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Use(h.gate.Admin())
	r.Route("/users", func(rt chi.Router) {
		rt.Get("/", h.listUsers)
		rt.Put("/{uid}/status", h.setStatus)
		rt.Put("/{uid}/role", h.setRole)
		rt.Delete("/{uid}", h.deleteUser)
	})
}

type rosterPayload struct {
	Users    []profilePayload `json:"users"`
	Pending  int              `json:"pending"`
	Total    int              `json:"total"`
	LoadedAt string           `json:"loadedAt,omitempty"`
}

// listUsers refreshes the roster from the store unless a search term is
// given, in which case it filters the cached roster. refresh=true forces a
// reload before filtering.
func (h *AdminHandlers) listUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.admin == nil {
		writeUnavailable(ctx, w, "admin_unavailable", "admin service is unavailable")
		return
	}
	query := r.URL.Query()
	term := strings.TrimSpace(query.Get("q"))

	var roster services.Roster
	cached := h.admin.Search("")
	if term == "" || cached.LoadedAt.IsZero() || query.Get("refresh") == "true" {
		var err error
		if roster, err = h.admin.List(ctx); err != nil {
			writeAdminError(ctx, w, err)
			return
		}
		cached = roster
	}
	if term != "" {
		roster = h.admin.Search(term)
	}

	users := make([]profilePayload, 0, len(roster.Users))
	for _, profile := range roster.Users {
		users = append(users, buildProfilePayload(profile))
	}
	httpx.WriteJSON(w, http.StatusOK, rosterPayload{
		Users:    users,
		Pending:  roster.Pending,
		Total:    len(cached.Users),
		LoadedAt: formatTime(roster.LoadedAt),
	})
}

type setStatusRequest struct {
	Status string `json:"status"`
}

func (h *AdminHandlers) setStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(ctx, w)
	if !ok {
		return
	}
	var req setStatusRequest
	if !decodeJSONBody(w, r, defaultBodyLimit, &req) {
		return
	}
	status, err := domain.ParseProfileStatus(req.Status)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_status", err.Error(), http.StatusBadRequest))
		return
	}
	updated, err := h.admin.SetStatus(ctx, services.SetStatusCommand{
		ActorID: actor,
		UID:     chi.URLParam(r, "uid"),
		Status:  status,
	})
	if err != nil {
		writeAdminError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildProfilePayload(updated))
}

type setRoleRequest struct {
	Role    string `json:"role"`
	Confirm bool   `json:"confirm"`
}

func (h *AdminHandlers) setRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(ctx, w)
	if !ok {
		return
	}
	var req setRoleRequest
	if !decodeJSONBody(w, r, defaultBodyLimit, &req) {
		return
	}
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_role", err.Error(), http.StatusBadRequest))
		return
	}
	updated, err := h.admin.SetRole(ctx, services.SetRoleCommand{
		ActorID:   actor,
		UID:       chi.URLParam(r, "uid"),
		Role:      role,
		Confirmed: req.Confirm,
	})
	if err != nil {
		writeAdminError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildProfilePayload(updated))
}

// deleteUser reads confirmation from ?confirm=true since DELETE bodies are
// unreliable through proxies.
func (h *AdminHandlers) deleteUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(ctx, w)
	if !ok {
		return
	}
	err := h.admin.Delete(ctx, services.DeleteUserCommand{
		ActorID:   actor,
		UID:       chi.URLParam(r, "uid"),
		Confirmed: r.URL.Query().Get("confirm") == "true",
	})
	if err != nil {
		writeAdminError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandlers) actor(ctx context.Context, w http.ResponseWriter) (string, bool) {
	if h.admin == nil {
		writeUnavailable(ctx, w, "admin_unavailable", "admin service is unavailable")
		return "", false
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return "", false
	}
	return identity.UID, true
}

func writeAdminError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrConfirmationRequired):
		httpx.WriteError(ctx, w, httpx.NewError("confirmation_required", "resend with confirm set to true", http.StatusPreconditionRequired))
	case errors.Is(err, services.ErrSelfMutation):
		httpx.WriteError(ctx, w, httpx.NewError("self_mutation", "admins cannot demote, block or delete themselves", http.StatusForbidden))
	case errors.Is(err, services.ErrUserNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("user_not_found", "user not found", http.StatusNotFound))
	default:
		writeStoreError(ctx, w, err)
	}
}
