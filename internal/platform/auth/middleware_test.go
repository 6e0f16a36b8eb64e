package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	firebaseauth "firebase.google.com/go/v4/auth"

	"github.com/basherkella/cardstudio/internal/platform/requestctx"
)

type stubTokenVerifier struct {
	token    *firebaseauth.Token
	err      error
	received string
}

func (s *stubTokenVerifier) VerifyIDToken(_ context.Context, idToken string) (*firebaseauth.Token, error) {
	s.received = idToken
	if s.err != nil {
		return nil, s.err
	}
	return s.token, nil
}

type stubUserGetter struct {
	record *firebaseauth.UserRecord
	calls  int
}

func (s *stubUserGetter) GetUser(context.Context, string) (*firebaseauth.UserRecord, error) {
	s.calls++
	return s.record, nil
}

func validToken() *firebaseauth.Token {
	return &firebaseauth.Token{
		UID: "uid-123",
		Claims: map[string]any{
			"email":          "Reporter@Example.com",
			"email_verified": true,
			"name":           "রিপোর্টার",
			"phone_number":   "+8801700000000",
			"role":           "Editor",
		},
		Firebase: firebaseauth.FirebaseInfo{SignInProvider: "google.com"},
	}
}

func TestRequireFirebaseAuthBuildsIdentity(t *testing.T) {
	verifier := &stubTokenVerifier{token: validToken()}
	users := &stubUserGetter{record: &firebaseauth.UserRecord{UserInfo: &firebaseauth.UserInfo{UID: "uid-123"}}}
	authn := NewAuthenticator(verifier, WithUserGetter(users))

	called := false
	handler := authn.RequireFirebaseAuth()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			t.Fatalf("expected identity in context")
		}
		if identity.Email != "reporter@example.com" || !identity.EmailVerified {
			t.Fatalf("expected lower-cased verified email, got %q verified=%v", identity.Email, identity.EmailVerified)
		}
		if identity.ClaimRole != "editor" || identity.Provider != "google.com" || identity.Phone != "+8801700000000" {
			t.Fatalf("unexpected identity %+v", identity)
		}
		for i := 0; i < 2; i++ {
			if _, err := identity.User(r.Context()); err != nil {
				t.Fatalf("load user: %v", err)
			}
		}
		if users.calls != 1 {
			t.Fatalf("expected memoised user load, got %d calls", users.calls)
		}
		if requestctx.Logger(r.Context()) == requestctx.NoopLogger() {
			t.Fatalf("expected request logger to carry user id")
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer token-abc")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !called {
		t.Fatalf("expected handler to be called")
	}
	if verifier.received != "token-abc" {
		t.Fatalf("expected token to be forwarded, got %q", verifier.received)
	}
}

func TestRequireFirebaseAuthRejects(t *testing.T) {
	cases := []struct {
		name   string
		header string
		err    error
		code   string
	}{
		{"missing header", "", nil, "unauthenticated"},
		{"wrong scheme", "Basic abc", nil, "unauthenticated"},
		{"verification failure", "Bearer bad", errors.New("boom"), "invalid_token"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			authn := NewAuthenticator(&stubTokenVerifier{token: validToken(), err: tc.err})
			handler := authn.RequireFirebaseAuth()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				t.Fatalf("handler must not run")
			}))
			req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401 got %d", rec.Code)
			}
			var body map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body["error"] != tc.code {
				t.Fatalf("expected code %s got %v", tc.code, body["error"])
			}
		})
	}
}

func TestOptionalFirebaseAuth(t *testing.T) {
	authn := NewAuthenticator(&stubTokenVerifier{err: errors.New("bad token")})

	var sawIdentity bool
	handler := authn.OptionalFirebaseAuth()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawIdentity = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/gallery", nil))
	if rec.Code != http.StatusNoContent || sawIdentity {
		t.Fatalf("expected anonymous pass-through, got %d identity=%v", rec.Code, sawIdentity)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/gallery", nil)
	req.Header.Set("Authorization", "Bearer broken")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected invalid token to be rejected, got %d", rec.Code)
	}
}

func TestRequireDeviceID(t *testing.T) {
	var device string
	handler := RequireDeviceID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		device = requestctx.DeviceID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/preferences", nil)
	req.Header.Set(DeviceHeader, "device_0123-abcd")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if device != "device_0123-abcd" {
		t.Fatalf("expected device id in context, got %q", device)
	}

	for _, bad := range []string{"", "short", "has spaces in it", "../../etc/passwd"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/preferences", nil)
		req.Header.Set(DeviceHeader, bad)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %q got %d", bad, rec.Code)
		}
	}
}
