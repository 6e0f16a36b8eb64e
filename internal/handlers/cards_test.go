package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/basherkella/cardstudio/internal/domain"
	"github.com/basherkella/cardstudio/internal/services"
)

var fakePNG = []byte("\x89PNG\r\n\x1a\nfake")

func cardRouter(uid string, svc *stubCardService, opts ...CardOption) http.Handler {
	gate := NewAccessGate(nil, &stubAccessService{profiles: testProfiles()}, nil)
	opts = append([]CardOption{WithCardClock(func() time.Time { return time.Unix(1700000000, 0) })}, opts...)
	h := NewCardHandlers(gate, svc, opts...)
	return NewRouter(WithMiddlewares(withCaller(uid)), WithCardRoutes(h.Routes))
}

func TestCardRenderForwardsDeviceAndInput(t *testing.T) {
	svc := &stubCardService{}
	router := cardRouter("", svc)

	rr := doRequest(t, router, http.MethodPost, "/api/v1/cards:render",
		`{"kind":"quote","template":"bk-quote-modern","headline":"সত্য বলো","body":"রবীন্দ্রনাথ, কবি","date":"2026-03-26"}`,
		deviceHeader)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	layout, _ := decodeBody(t, rr)["layout"].(map[string]any)
	if layout["template"] != "bk-quote-modern" || layout["kind"] != "quote" {
		t.Fatalf("unexpected layout %v", layout)
	}
	cmd := svc.renders[0]
	if cmd.DeviceID != testDevice {
		t.Fatalf("expected device forwarded, got %q", cmd.DeviceID)
	}
	if cmd.Input.Kind != domain.CardKindQuote || cmd.Input.Date.Day() != 26 {
		t.Fatalf("unexpected input %+v", cmd.Input)
	}
}

func TestCardRenderRejectsBadInput(t *testing.T) {
	router := cardRouter("editor", &stubCardService{})
	for _, body := range []string{
		`{"kind":"poster"}`,
		`{"kind":"news","date":"26/03/2026"}`,
		`not json`,
	} {
		rr := doRequest(t, router, http.MethodPost, "/api/v1/cards:render", body, nil)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", body, rr.Code)
		}
	}
}

func TestCardCaptureModes(t *testing.T) {
	svc := &stubCardService{capture: services.Capture{PNG: fakePNG, Width: 600, Height: 750, Scale: 2, Template: "bk-classic-center"}}
	router := cardRouter("editor", svc)

	rr := doRequest(t, router, http.MethodPost, "/api/v1/cards:capture", `{"kind":"news","headline":"x","scale":3}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("expected png, got %s", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment;") || !strings.Contains(cd, "card-bk-classic-center-1700000000.png") {
		t.Fatalf("unexpected disposition %s", cd)
	}
	if !bytes.Equal(rr.Body.Bytes(), fakePNG) {
		t.Fatalf("expected png body")
	}
	if svc.captures[0].Scale != 3 {
		t.Fatalf("expected scale forwarded, got %v", svc.captures[0].Scale)
	}

	rr = doRequest(t, router, http.MethodPost, "/api/v1/cards:capture?mode=preview", `{"kind":"news"}`, nil)
	if cd := rr.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "inline;") {
		t.Fatalf("expected inline preview, got %s", cd)
	}

	rr = doRequest(t, router, http.MethodPost, "/api/v1/cards:capture?mode=print", `{"kind":"news"}`, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown mode, got %d", rr.Code)
	}
}

func TestCardCaptureExport(t *testing.T) {
	svc := &stubCardService{enabled: true, capture: services.Capture{PNG: fakePNG, Width: 600, Height: 600, Scale: 2, Template: "bk-classic-center"}}

	rr := doRequest(t, cardRouter("editor", svc), http.MethodPost, "/api/v1/cards:capture?mode=export", `{"kind":"news"}`, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["url"] != "https://storage.example.com/signed" || body["expiresAt"] != "2026-01-01T01:00:00Z" {
		t.Fatalf("unexpected export payload %v", body)
	}
	if svc.exports[0].ActorID != "editor" {
		t.Fatalf("expected actor forwarded, got %q", svc.exports[0].ActorID)
	}

	rr = doRequest(t, cardRouter("", svc), http.MethodPost, "/api/v1/cards:capture?mode=export", `{"kind":"news"}`, deviceHeader)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected guests unable to export, got %d", rr.Code)
	}
}

func TestCardCaptureErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{services.ErrRasterizerUnavailable, http.StatusServiceUnavailable, "rasterizer_unavailable"},
		{fmt.Errorf("%w: status 500", services.ErrCaptureFailed), http.StatusBadGateway, "capture_failed"},
		{services.ErrExportDisabled, http.StatusForbidden, "exports_disabled"},
	}
	for _, tc := range cases {
		rr := doRequest(t, cardRouter("editor", &stubCardService{err: tc.err}), http.MethodPost, "/api/v1/cards:capture", `{"kind":"news"}`, nil)
		if rr.Code != tc.status {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.status, rr.Code)
		}
		if code := errorCode(t, rr); code != tc.code {
			t.Fatalf("%v: expected %s, got %s", tc.err, tc.code, code)
		}
	}
}

func TestCardCaptureRateLimitSetsRetryAfter(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 10, 0, time.UTC)
	svc := &stubCardService{capture: services.Capture{PNG: fakePNG}}
	router := cardRouter("editor", svc, WithCaptureRateLimit(1, func() time.Time { return now }))

	if rr := doRequest(t, router, http.MethodPost, "/api/v1/cards:capture", `{"kind":"news"}`, nil); rr.Code != http.StatusOK {
		t.Fatalf("expected first capture allowed, got %d", rr.Code)
	}
	rr := doRequest(t, router, http.MethodPost, "/api/v1/cards:capture", `{"kind":"news"}`, nil)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if got := rr.Header().Get("Retry-After"); got != "60" {
		t.Fatalf("expected Retry-After 60, got %q", got)
	}
}
