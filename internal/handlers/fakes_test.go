package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/basherkella/cardstudio/internal/cards"
	"github.com/basherkella/cardstudio/internal/domain"
	"github.com/basherkella/cardstudio/internal/platform/auth"
	"github.com/basherkella/cardstudio/internal/services"
)

const testDevice = "device-0001"

// withCaller injects a verified identity the way the Firebase middleware would.
func withCaller(uid string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if uid != "" {
				r = r.WithContext(auth.WithIdentity(r.Context(), &auth.Identity{UID: uid, Email: uid + "@example.com"}))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func doRequest(t *testing.T, h http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response %q: %v", rr.Body.String(), err)
	}
	return body
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	code, _ := decodeBody(t, rr)["error"].(string)
	return code
}

var deviceHeader = map[string]string{auth.DeviceHeader: testDevice}

// stubAccessService resolves every identity to the profile under its uid.
type stubAccessService struct {
	profiles    map[string]services.UserProfile
	unavailable bool
	signInErr   error
	signIns     []string
}

func (s *stubAccessService) SignIn(_ context.Context, identity *auth.Identity) (services.UserProfile, error) {
	if s.signInErr != nil {
		return services.UserProfile{}, s.signInErr
	}
	s.signIns = append(s.signIns, identity.UID)
	if profile, ok := s.profiles[identity.UID]; ok {
		return profile, nil
	}
	return services.UserProfile{UID: identity.UID, Role: domain.RoleUser, Status: domain.StatusPending}, nil
}

func (s *stubAccessService) Resolve(_ context.Context, identity *auth.Identity) services.AccessState {
	if identity == nil {
		return services.AccessState{Gate: domain.GateGuest}
	}
	if s.unavailable {
		return services.AccessState{Authenticated: true, Gate: domain.GateUnavailable}
	}
	profile, ok := s.profiles[identity.UID]
	if !ok {
		profile = services.UserProfile{UID: identity.UID, Role: domain.RoleUser, Status: domain.StatusPending}
	}
	return services.AccessState{Authenticated: true, Profile: &profile, Gate: domain.GateFor(profile)}
}

func testProfiles() map[string]services.UserProfile {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return map[string]services.UserProfile{
		"admin":   {UID: "admin", Email: "admin@basherkella.com", Role: domain.RoleAdmin, Status: domain.StatusApproved, CreatedAt: created},
		"editor":  {UID: "editor", Email: "editor@example.com", Role: domain.RoleEditor, Status: domain.StatusApproved, CreatedAt: created},
		"pending": {UID: "pending", Role: domain.RoleUser, Status: domain.StatusPending, CreatedAt: created},
		"blocked": {UID: "blocked", Role: domain.RoleUser, Status: domain.StatusBlocked, CreatedAt: created},
	}
}

type stubPreferenceService struct {
	mu      sync.Mutex
	prefs   map[string]services.DevicePreferences
	touches []string
	err     error
	updates []services.UpdatePreferencesCommand
}

func newStubPreferences() *stubPreferenceService {
	return &stubPreferenceService{prefs: map[string]services.DevicePreferences{}}
}

func (s *stubPreferenceService) Get(_ context.Context, deviceID string) (services.DevicePreferences, error) {
	if s.err != nil {
		return services.DevicePreferences{}, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if prefs, ok := s.prefs[deviceID]; ok {
		return prefs, nil
	}
	return services.DevicePreferences{DeviceID: deviceID, Theme: domain.ThemeDark}, nil
}

func (s *stubPreferenceService) Update(_ context.Context, cmd services.UpdatePreferencesCommand) (services.DevicePreferences, error) {
	if s.err != nil {
		return services.DevicePreferences{}, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, cmd)
	prefs := s.prefs[cmd.DeviceID]
	prefs.DeviceID = cmd.DeviceID
	if cmd.Theme != nil {
		prefs.Theme = domain.Theme(*cmd.Theme)
	}
	if cmd.CustomLogo != nil {
		prefs.CustomLogo = *cmd.CustomLogo
	}
	if cmd.DefaultTemplate != nil {
		prefs.DefaultTemplate = *cmd.DefaultTemplate
	}
	if cmd.DefaultFont != nil {
		prefs.DefaultFont = *cmd.DefaultFont
	}
	s.prefs[cmd.DeviceID] = prefs
	return prefs, nil
}

func (s *stubPreferenceService) SetCustomLogo(ctx context.Context, deviceID, logo string) (services.DevicePreferences, error) {
	return s.Update(ctx, services.UpdatePreferencesCommand{DeviceID: deviceID, CustomLogo: &logo})
}

func (s *stubPreferenceService) Touch(_ context.Context, deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touches = append(s.touches, deviceID)
	return nil
}

type stubContentService struct {
	output   services.ToolOutput
	err      error
	commands []services.GenerateCommand
}

func (s *stubContentService) Generate(_ context.Context, cmd services.GenerateCommand) (services.ToolOutput, error) {
	s.commands = append(s.commands, cmd)
	return s.output, s.err
}

type stubCardService struct {
	renders  []services.RenderCommand
	captures []services.CaptureCommand
	exports  []services.ExportCommand
	capture  services.Capture
	err      error
	enabled  bool
}

func (s *stubCardService) Render(_ context.Context, cmd services.RenderCommand) (cards.Layout, error) {
	s.renders = append(s.renders, cmd)
	if s.err != nil {
		return cards.Layout{}, s.err
	}
	return cards.Render(cmd.Input), nil
}

func (s *stubCardService) Capture(_ context.Context, cmd services.CaptureCommand) (services.Capture, error) {
	s.captures = append(s.captures, cmd)
	return s.capture, s.err
}

func (s *stubCardService) Export(_ context.Context, cmd services.ExportCommand) (services.CardExport, error) {
	s.exports = append(s.exports, cmd)
	if s.err != nil {
		return services.CardExport{}, s.err
	}
	return services.CardExport{
		Capture:   s.capture,
		Object:    "exports/" + cmd.ActorID + "/card.png",
		URL:       "https://storage.example.com/signed",
		ExpiresAt: time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC),
	}, nil
}

func (s *stubCardService) ExportsEnabled() bool { return s.enabled }

type stubGalleryService struct {
	items    []services.StorageItem
	owners   []services.Owner
	uploads  []services.UploadCommand
	deleted  []string
	selected []string
	err      error
}

func (s *stubGalleryService) List(_ context.Context, owner services.Owner) ([]services.StorageItem, error) {
	s.owners = append(s.owners, owner)
	return s.items, s.err
}

func (s *stubGalleryService) Upload(_ context.Context, owner services.Owner, cmd services.UploadCommand) (services.StorageItem, error) {
	s.owners = append(s.owners, owner)
	s.uploads = append(s.uploads, cmd)
	if s.err != nil {
		return services.StorageItem{}, s.err
	}
	return services.StorageItem{ID: "01HZX", Name: cmd.Name, Data: cmd.Data, Date: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Size: 10}, nil
}

func (s *stubGalleryService) Delete(_ context.Context, owner services.Owner, id string) error {
	s.owners = append(s.owners, owner)
	s.deleted = append(s.deleted, id)
	return s.err
}

func (s *stubGalleryService) Select(_ context.Context, owner services.Owner, id string) (services.DevicePreferences, error) {
	s.owners = append(s.owners, owner)
	s.selected = append(s.selected, id)
	if s.err != nil {
		return services.DevicePreferences{}, s.err
	}
	return services.DevicePreferences{DeviceID: owner.DeviceID, Theme: domain.ThemeDark, CustomLogo: "data:image/png;base64,AAAA"}, nil
}

type stubAdminService struct {
	roster   services.Roster
	searched []string
	lists    int
	listErr  error
	err      error
	statuses []services.SetStatusCommand
	roles    []services.SetRoleCommand
	deletes  []services.DeleteUserCommand
}

func (s *stubAdminService) List(context.Context) (services.Roster, error) {
	s.lists++
	if s.listErr != nil {
		return services.Roster{}, s.listErr
	}
	s.roster.LoadedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return s.roster, nil
}

func (s *stubAdminService) Search(term string) services.Roster {
	if term == "" {
		return s.roster
	}
	s.searched = append(s.searched, term)
	out := services.Roster{Pending: s.roster.Pending, LoadedAt: s.roster.LoadedAt}
	for _, p := range s.roster.Users {
		if strings.Contains(strings.ToLower(p.Email), strings.ToLower(term)) {
			out.Users = append(out.Users, p)
		}
	}
	return out
}

func (s *stubAdminService) SetStatus(_ context.Context, cmd services.SetStatusCommand) (services.UserProfile, error) {
	s.statuses = append(s.statuses, cmd)
	if s.err != nil {
		return services.UserProfile{}, s.err
	}
	return services.UserProfile{UID: cmd.UID, Role: domain.RoleUser, Status: cmd.Status}, nil
}

func (s *stubAdminService) SetRole(_ context.Context, cmd services.SetRoleCommand) (services.UserProfile, error) {
	s.roles = append(s.roles, cmd)
	if s.err != nil {
		return services.UserProfile{}, s.err
	}
	if !cmd.Confirmed {
		return services.UserProfile{}, services.ErrConfirmationRequired
	}
	return services.UserProfile{UID: cmd.UID, Role: cmd.Role, Status: domain.StatusApproved}, nil
}

func (s *stubAdminService) Delete(_ context.Context, cmd services.DeleteUserCommand) error {
	s.deletes = append(s.deletes, cmd)
	if s.err != nil {
		return s.err
	}
	if !cmd.Confirmed {
		return services.ErrConfirmationRequired
	}
	return nil
}

type stubMaintenanceService struct {
	result services.PruneResult
	err    error
	calls  int
}

func (s *stubMaintenanceService) PruneDevices(context.Context) (services.PruneResult, error) {
	s.calls++
	return s.result, s.err
}

type stubSystemService struct {
	report services.SystemHealthReport
	err    error
}

func (s *stubSystemService) HealthReport(context.Context) (services.SystemHealthReport, error) {
	return s.report, s.err
}

var (
	_ services.AccessService      = (*stubAccessService)(nil)
	_ services.PreferenceService  = (*stubPreferenceService)(nil)
	_ services.ContentService     = (*stubContentService)(nil)
	_ services.CardService        = (*stubCardService)(nil)
	_ services.GalleryService     = (*stubGalleryService)(nil)
	_ services.AdminService       = (*stubAdminService)(nil)
	_ services.MaintenanceService = (*stubMaintenanceService)(nil)
	_ services.SystemService      = (*stubSystemService)(nil)
)
