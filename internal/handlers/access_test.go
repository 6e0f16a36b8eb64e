package handlers

import (
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
)

func gateRouter(uid string, mw func(*AccessGate) func(http.Handler) http.Handler, access *stubAccessService, prefs *stubPreferenceService) (http.Handler, *bool) {
	reached := new(bool)
	gate := NewAccessGate(nil, access, prefs)
	router := NewRouter(
		WithMiddlewares(withCaller(uid)),
		WithGalleryRoutes(func(r chi.Router) {
			r.Use(mw(gate))
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				*reached = true
				w.WriteHeader(http.StatusOK)
			})
		}),
	)
	return router, reached
}

func TestAccessGateApprovedOrGuest(t *testing.T) {
	cases := []struct {
		name    string
		uid     string
		headers map[string]string
		status  int
		code    string
	}{
		{name: "guest with device", headers: deviceHeader, status: http.StatusOK},
		{name: "guest without device", status: http.StatusBadRequest, code: "device_id_required"},
		{name: "guest with malformed device", headers: map[string]string{"X-Device-ID": "bad id"}, status: http.StatusBadRequest, code: "device_id_required"},
		{name: "approved", uid: "editor", status: http.StatusOK},
		{name: "admin", uid: "admin", status: http.StatusOK},
		{name: "pending", uid: "pending", headers: deviceHeader, status: http.StatusForbidden, code: "account_pending"},
		{name: "blocked", uid: "blocked", headers: deviceHeader, status: http.StatusForbidden, code: "account_blocked"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router, reached := gateRouter(tc.uid, (*AccessGate).ApprovedOrGuest, &stubAccessService{profiles: testProfiles()}, newStubPreferences())
			rr := doRequest(t, router, http.MethodGet, "/api/v1/gallery", "", tc.headers)
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rr.Code, rr.Body.String())
			}
			if tc.code != "" {
				if code := errorCode(t, rr); code != tc.code {
					t.Fatalf("expected %s, got %s", tc.code, code)
				}
			}
			if *reached != (tc.status == http.StatusOK) {
				t.Fatalf("handler reached = %v", *reached)
			}
		})
	}
}

func TestAccessGateFailsClosedWhenProfileUnavailable(t *testing.T) {
	router, reached := gateRouter("editor", (*AccessGate).ApprovedOrGuest, &stubAccessService{profiles: testProfiles(), unavailable: true}, nil)
	rr := doRequest(t, router, http.MethodGet, "/api/v1/gallery", "", deviceHeader)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if code := errorCode(t, rr); code != "profile_unavailable" {
		t.Fatalf("expected profile_unavailable, got %s", code)
	}
	if *reached {
		t.Fatalf("handler must not run")
	}
}

func TestAccessGateApprovedRejectsGuests(t *testing.T) {
	router, _ := gateRouter("", (*AccessGate).Approved, &stubAccessService{profiles: testProfiles()}, nil)
	rr := doRequest(t, router, http.MethodGet, "/api/v1/gallery", "", deviceHeader)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestAccessGateAdmin(t *testing.T) {
	access := &stubAccessService{profiles: testProfiles()}
	for uid, want := range map[string]int{
		"admin":  http.StatusOK,
		"editor": http.StatusForbidden,
		"":       http.StatusUnauthorized,
	} {
		router, _ := gateRouter(uid, (*AccessGate).Admin, access, nil)
		rr := doRequest(t, router, http.MethodGet, "/api/v1/gallery", "", nil)
		if rr.Code != want {
			t.Fatalf("uid %q: expected %d, got %d", uid, want, rr.Code)
		}
	}
}

func TestAccessGateDeviceSkipsProfileAndTouches(t *testing.T) {
	prefs := newStubPreferences()
	// A nil access service would fail any profile lookup.
	gate := NewAccessGate(nil, nil, prefs)
	router := NewRouter(
		WithMiddlewares(withCaller("blocked")),
		WithPreferenceRoutes(func(r chi.Router) {
			r.Use(gate.Device())
			r.Get("/", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
		}),
	)

	rr := doRequest(t, router, http.MethodGet, "/api/v1/preferences", "", deviceHeader)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(prefs.touches) != 1 || prefs.touches[0] != testDevice {
		t.Fatalf("expected device touched, got %v", prefs.touches)
	}

	rr = doRequest(t, router, http.MethodGet, "/api/v1/preferences", "", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without device, got %d", rr.Code)
	}
	if code := errorCode(t, rr); code != "device_id_required" {
		t.Fatalf("expected device_id_required, got %s", code)
	}
	if len(prefs.touches) != 1 {
		t.Fatalf("rejected request must not touch, got %v", prefs.touches)
	}
}
