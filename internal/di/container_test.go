package di

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/basherkella/cardstudio/internal/domain"
	"github.com/basherkella/cardstudio/internal/platform/config"
	"github.com/basherkella/cardstudio/internal/platform/localdb"
	"github.com/basherkella/cardstudio/internal/repositories/local"
	"github.com/basherkella/cardstudio/internal/services"
)

type memoryProfiles struct {
	mu       sync.Mutex
	profiles map[string]domain.UserProfile
}

func (m *memoryProfiles) Get(_ context.Context, uid string) (domain.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	profile, ok := m.profiles[uid]
	if !ok {
		return domain.UserProfile{}, errors.New("not found")
	}
	return profile, nil
}

func (m *memoryProfiles) Create(_ context.Context, profile domain.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[profile.UID] = profile
	return nil
}

func (m *memoryProfiles) TouchLogin(context.Context, string, time.Time) error { return nil }

func (m *memoryProfiles) UpdateStatus(_ context.Context, uid string, status domain.ProfileStatus) (domain.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	profile := m.profiles[uid]
	profile.Status = status
	m.profiles[uid] = profile
	return profile, nil
}

func (m *memoryProfiles) UpdateRole(_ context.Context, uid string, role domain.Role) (domain.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	profile := m.profiles[uid]
	profile.Role = role
	m.profiles[uid] = profile
	return profile, nil
}

func (m *memoryProfiles) Delete(_ context.Context, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.profiles, uid)
	return nil
}

func (m *memoryProfiles) List(context.Context) ([]domain.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.UserProfile, 0, len(m.profiles))
	for _, profile := range m.profiles {
		out = append(out, profile)
	}
	return out, nil
}

func testConfig() config.Config {
	return config.Config{
		AI: config.AIConfig{Provider: "gemini", Timeout: time.Second, MaxInputRunes: 1000},
		Rasterizer: config.RasterizerConfig{
			Scale: 2,
		},
		Gallery: config.GalleryConfig{
			MaxItemBytes:  1024,
			GuestMaxItems: 4,
			GuestMaxBytes: 4096,
			GuestPolicy:   "reject",
			UserMaxItems:  10,
		},
		LocalStore: config.LocalStoreConfig{GuestRetention: 24 * time.Hour},
		RateLimits: config.RateLimitConfig{GenerationPerMinute: 5, CapturePerMinute: 5, UploadPerMinute: 5},
		Security:   config.SecurityConfig{BootstrapAdmins: []string{"admin@basherkella.com"}},
	}
}

func localBackends(t *testing.T) Backends {
	t.Helper()
	db, err := localdb.Open(context.Background(), filepath.Join(t.TempDir(), "devices.db"))
	if err != nil {
		t.Fatalf("open local store: %v", err)
	}
	devices, err := local.NewDeviceRepository(db)
	if err != nil {
		t.Fatalf("device repository: %v", err)
	}
	guests, err := local.NewGalleryRepository(db)
	if err != nil {
		t.Fatalf("gallery repository: %v", err)
	}
	return Backends{
		Profiles:     &memoryProfiles{profiles: map[string]domain.UserProfile{}},
		Devices:      devices,
		GuestGallery: guests,
		Closers: []func(context.Context) error{
			func(context.Context) error { return db.Close() },
		},
	}
}

func TestNewContainerRequiresStores(t *testing.T) {
	if _, err := NewContainer(testConfig(), Backends{}, services.BuildInfo{}, nil); err == nil {
		t.Fatalf("expected error without a profile repository")
	}
	b := localBackends(t)
	defer func() {
		c := &Container{backends: b}
		_ = c.Close(context.Background())
	}()
	b.Devices = nil
	if _, err := NewContainer(testConfig(), b, services.BuildInfo{}, nil); err == nil {
		t.Fatalf("expected error without a device repository")
	}
}

func TestContainerRouterServesDevicePreferences(t *testing.T) {
	container, err := NewContainer(testConfig(), localBackends(t), services.BuildInfo{Version: "test"}, nil)
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Close(context.Background()); err != nil {
			t.Errorf("close: %v", err)
		}
	})
	if container.Services.Gallery != nil {
		t.Fatalf("gallery requires a cloud repository")
	}
	router := container.Router()

	do := func(method, target, body string) *httptest.ResponseRecorder {
		var req *http.Request
		if body == "" {
			req = httptest.NewRequest(method, target, nil)
		} else {
			req = httptest.NewRequest(method, target, strings.NewReader(body))
		}
		req.Header.Set("X-Device-ID", "device-container-1")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	if rr := do(http.MethodGet, "/api/v1/public/templates", ""); rr.Code != http.StatusOK {
		t.Fatalf("expected catalog, got %d", rr.Code)
	}

	if rr := do(http.MethodPut, "/api/v1/preferences", `{"theme":"light"}`); rr.Code != http.StatusOK {
		t.Fatalf("expected update, got %d: %s", rr.Code, rr.Body.String())
	}
	rr := do(http.MethodGet, "/api/v1/preferences", "")
	var prefs map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &prefs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if prefs["theme"] != "light" {
		t.Fatalf("expected stored theme, got %v", prefs)
	}

	if rr := do(http.MethodPost, "/internal/maintenance/prune-devices", ""); rr.Code != http.StatusOK {
		t.Fatalf("expected prune, got %d: %s", rr.Code, rr.Body.String())
	}
}

type okHealth struct{}

func (okHealth) Collect(context.Context) (domain.SystemHealthReport, error) {
	return domain.SystemHealthReport{Checks: map[string]domain.SystemHealthCheck{
		"localStore": {Status: domain.HealthStatusOK},
	}}, nil
}

func TestContainerReadinessReportsCapabilities(t *testing.T) {
	b := localBackends(t)
	b.Health = okHealth{}
	container, err := NewContainer(testConfig(), b, services.BuildInfo{Version: "test"}, nil)
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}
	t.Cleanup(func() { _ = container.Close(context.Background()) })

	rr := httptest.NewRecorder()
	container.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected ready, got %d: %s", rr.Code, rr.Body.String())
	}
	var body struct {
		Capabilities map[string]any `json:"capabilities"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Capabilities["capture"] != false || body.Capabilities["cloudGallery"] != false {
		t.Fatalf("no rasterizer or cloud gallery configured, got %v", body.Capabilities)
	}
	if _, ok := body.Capabilities["aiProvider"]; ok {
		t.Fatalf("content generation is not configured, got %v", body.Capabilities)
	}
}
