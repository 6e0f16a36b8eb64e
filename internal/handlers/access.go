package handlers

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/basherkella/cardstudio/internal/domain"
	"github.com/basherkella/cardstudio/internal/platform/auth"
	"github.com/basherkella/cardstudio/internal/platform/httpx"
	"github.com/basherkella/cardstudio/internal/platform/requestctx"
	"github.com/basherkella/cardstudio/internal/services"
)

type accessStateKey struct{}

func withAccessState(ctx context.Context, state services.AccessState) context.Context {
	return context.WithValue(ctx, accessStateKey{}, state)
}

// accessStateFrom returns the state resolved by the access gate.
func accessStateFrom(ctx context.Context) (services.AccessState, bool) {
	state, ok := ctx.Value(accessStateKey{}).(services.AccessState)
	return state, ok
}

// AccessGate resolves the caller's authorization state and fails closed.
type AccessGate struct {
	authn   *auth.Authenticator
	access  services.AccessService
	devices services.PreferenceService
}

// NewAccessGate builds the gate. devices may be nil, in which case guest
// requests are not recorded against the device store.
func NewAccessGate(authn *auth.Authenticator, access services.AccessService, devices services.PreferenceService) *AccessGate {
	return &AccessGate{authn: authn, access: access, devices: devices}
}

type gatePolicy struct {
	guests    bool
	adminOnly bool
}

// Approved admits approved users only.
func (g *AccessGate) Approved() func(http.Handler) http.Handler {
	return g.middleware(gatePolicy{})
}

// ApprovedOrGuest admits approved users and guests carrying a device id.
func (g *AccessGate) ApprovedOrGuest() func(http.Handler) http.Handler {
	return g.middleware(gatePolicy{guests: true})
}

// Admin admits users whose stored profile carries the admin role.
func (g *AccessGate) Admin() func(http.Handler) http.Handler {
	return g.middleware(gatePolicy{adminOnly: true})
}

// Device admits any caller with a valid device id, signed in or not. It
// skips profile resolution: device state belongs to the device whatever the
// account status.
func (g *AccessGate) Device() func(http.Handler) http.Handler {
	requireDevice := auth.RequireDeviceID()
	return func(next http.Handler) http.Handler {
		gate := requireDevice(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			g.touch(r.Context(), requestctx.DeviceID(r.Context()))
			next.ServeHTTP(w, r)
		}))
		if g != nil && g.authn != nil {
			return g.authn.OptionalFirebaseAuth()(gate)
		}
		return gate
	}
}

func (g *AccessGate) middleware(policy gatePolicy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		gate := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			deviceID := strings.TrimSpace(r.Header.Get(auth.DeviceHeader))
			if auth.ValidDeviceID(deviceID) {
				ctx = requestctx.WithDeviceID(ctx, deviceID)
			} else {
				deviceID = ""
			}

			if g == nil || g.access == nil {
				writeUnavailable(ctx, w, "access_unavailable", "access control is not configured")
				return
			}

			identity, _ := auth.IdentityFromContext(ctx)
			state := g.access.Resolve(ctx, identity)
			ctx = withAccessState(ctx, state)

			switch state.Gate {
			case domain.GateGuest:
				if !policy.guests {
					httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "sign in required", http.StatusUnauthorized))
					return
				}
				if deviceID == "" {
					httpx.WriteError(ctx, w, httpx.NewError("device_id_required", "X-Device-ID header missing or malformed", http.StatusBadRequest))
					return
				}
			case domain.GatePending:
				httpx.WriteError(ctx, w, httpx.NewError("account_pending", "account is awaiting approval", http.StatusForbidden))
				return
			case domain.GateBlocked:
				httpx.WriteError(ctx, w, httpx.NewError("account_blocked", "account has been blocked", http.StatusForbidden))
				return
			case domain.GateApproved:
				if policy.adminOnly && !state.IsAdmin() {
					httpx.WriteError(ctx, w, httpx.NewError("admin_required", "admin role required", http.StatusForbidden))
					return
				}
			default:
				writeUnavailable(ctx, w, "profile_unavailable", "profile could not be loaded, try again")
				return
			}

			if deviceID != "" {
				g.touch(ctx, deviceID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
		if g != nil && g.authn != nil {
			return g.authn.OptionalFirebaseAuth()(gate)
		}
		return gate
	}
}

func (g *AccessGate) touch(ctx context.Context, deviceID string) {
	if g == nil || g.devices == nil {
		return
	}
	if err := g.devices.Touch(ctx, deviceID); err != nil {
		requestctx.Logger(ctx).Warn("device touch failed", zap.Error(err))
	}
}
