package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/basherkella/cardstudio/internal/services"
)

func preferenceRouter(prefs *stubPreferenceService) http.Handler {
	gate := NewAccessGate(nil, nil, prefs)
	h := NewPreferenceHandlers(gate, prefs)
	return NewRouter(WithPreferenceRoutes(h.Routes))
}

func TestPreferencesGetAndUpdate(t *testing.T) {
	prefs := newStubPreferences()
	router := preferenceRouter(prefs)

	rr := doRequest(t, router, http.MethodGet, "/api/v1/preferences", "", deviceHeader)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if body := decodeBody(t, rr); body["theme"] != "dark" || body["deviceId"] != testDevice {
		t.Fatalf("unexpected defaults %v", body)
	}

	rr = doRequest(t, router, http.MethodPut, "/api/v1/preferences", `{"theme":"light","defaultFont":"galada"}`, deviceHeader)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	cmd := prefs.updates[0]
	if cmd.DeviceID != testDevice || cmd.Theme == nil || *cmd.Theme != "light" || cmd.CustomLogo != nil || cmd.DefaultTemplate != nil {
		t.Fatalf("expected only provided fields forwarded, got %+v", cmd)
	}
}

func TestPreferencesUpdateValidation(t *testing.T) {
	prefs := newStubPreferences()
	router := preferenceRouter(prefs)

	rr := doRequest(t, router, http.MethodPut, "/api/v1/preferences", `{}`, deviceHeader)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty update, got %d", rr.Code)
	}

	prefs.err = fmt.Errorf("%w: %q", services.ErrUnknownTemplate, "nope")
	rr = doRequest(t, router, http.MethodPut, "/api/v1/preferences", `{"defaultTemplate":"nope"}`, deviceHeader)
	if code := errorCode(t, rr); rr.Code != http.StatusBadRequest || code != "unknown_template" {
		t.Fatalf("expected unknown_template, got %d %s", rr.Code, code)
	}

	prefs.err = services.ErrAssetTooLarge
	rr = doRequest(t, router, http.MethodPut, "/api/v1/preferences", `{"customLogo":"data:image/png;base64,AAAA"}`, deviceHeader)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rr.Code)
	}
}
