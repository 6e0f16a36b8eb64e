package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/basherkella/cardstudio/internal/platform/auth"
	"github.com/basherkella/cardstudio/internal/platform/requestctx"
)

func TestGuestRateLimitIgnoresRotatedDeviceIDs(t *testing.T) {
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	prefs := newStubPreferences()
	gate := NewAccessGate(nil, &stubAccessService{profiles: testProfiles()}, prefs)
	h := NewGalleryHandlers(gate, &stubGalleryService{}, WithUploadRateLimit(1, clock))
	router := NewRouter(WithMiddlewares(withCaller("")), WithGalleryRoutes(h.Routes))

	upload := func(device, forwardedFor string) int {
		headers := map[string]string{auth.DeviceHeader: device}
		if forwardedFor != "" {
			headers["X-Forwarded-For"] = forwardedFor
		}
		return doRequest(t, router, http.MethodPost, "/api/v1/gallery", `{"data":"data:image/png;base64,iVBORw0KGgo="}`, headers).Code
	}

	if code := upload("device-0001", ""); code != http.StatusCreated {
		t.Fatalf("expected first upload accepted, got %d", code)
	}
	if code := upload("device-0002", ""); code != http.StatusTooManyRequests {
		t.Fatalf("expected rotated device on the same address to be limited, got %d", code)
	}
	if code := upload("device-0002", "203.0.113.7"); code != http.StatusCreated {
		t.Fatalf("expected another address to have its own budget, got %d", code)
	}
}

func TestActorKeyScopesGuestsByAddressAndDevice(t *testing.T) {
	guest := func(device, addr string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = addr
		return r.WithContext(requestctx.WithDeviceID(r.Context(), device))
	}

	a := actorKey(guest("device-0001", "198.51.100.4:5000"))
	if a != "device:198.51.100.4/device-0001" {
		t.Fatalf("unexpected guest key %q", a)
	}
	if b := actorKey(guest("device-0001", "198.51.100.5:5000")); b == a {
		t.Fatalf("expected different addresses to yield different keys")
	}
	if limiterKey(guest("device-0001", "198.51.100.4:5000")) != limiterKey(guest("device-0009", "198.51.100.4:6000")) {
		t.Fatalf("expected guests on one address to share a limiter key")
	}

	r := guest("device-0001", "198.51.100.4:5000")
	r = r.WithContext(auth.WithIdentity(r.Context(), &auth.Identity{UID: "editor"}))
	if actorKey(r) != "user:editor" || limiterKey(r) != "user:editor" {
		t.Fatalf("expected signed-in callers keyed by uid, got %q %q", actorKey(r), limiterKey(r))
	}
}
