package local

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/basherkella/cardstudio/internal/domain"
	"github.com/basherkella/cardstudio/internal/platform/localdb"
	"github.com/basherkella/cardstudio/internal/repositories"
)

func openStore(t *testing.T) *localdb.DB {
	t.Helper()
	db, err := localdb.Open(context.Background(), filepath.Join(t.TempDir(), "devices.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestGalleryRepositoryOrdersNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo, _ := NewGalleryRepository(openStore(t))
	base := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	for _, item := range []domain.StorageItem{
		{ID: "01A", Name: "old", Data: "data:image/png;base64,AA==", Size: 1, Date: base},
		{ID: "01C", Name: "new", Data: "data:image/png;base64,AA==", Size: 1, Date: base.Add(time.Hour)},
		{ID: "01B", Name: "old-tie", Data: "data:image/png;base64,AA==", Size: 1, Date: base},
	} {
		if err := repo.Insert(ctx, "device-123", item); err != nil {
			t.Fatalf("insert %s: %v", item.ID, err)
		}
	}

	items, err := repo.List(ctx, "device-123")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	got := []string{items[0].ID, items[1].ID, items[2].ID}
	if got[0] != "01C" || got[1] != "01B" || got[2] != "01A" {
		t.Fatalf("unexpected order %v", got)
	}
	if other, _ := repo.List(ctx, "device-999"); len(other) != 0 {
		t.Fatalf("expected galleries to be isolated per device")
	}

	if err := repo.Insert(ctx, "device-123", domain.StorageItem{ID: "01A", Date: base}); !repositories.IsConflict(err) {
		t.Fatalf("expected conflict on duplicate id, got %v", err)
	}
	if err := repo.Delete(ctx, "device-123", "01A"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.Delete(ctx, "device-123", "01A"); !repositories.IsNotFound(err) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
	if _, err := repo.Get(ctx, "device-123", "01A"); !repositories.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeviceRepositoryPreferencesAndPrune(t *testing.T) {
	ctx := context.Background()
	db := openStore(t)
	devices, _ := NewDeviceRepository(db)
	gallery, _ := NewGalleryRepository(db)
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	if _, err := devices.GetPreferences(ctx, "device-a"); !repositories.IsNotFound(err) {
		t.Fatalf("expected not found before save, got %v", err)
	}

	prefs := domain.DevicePreferences{DeviceID: "device-a", Theme: domain.ThemeLight, DefaultFont: "galada", UpdatedAt: now}
	if err := devices.SavePreferences(ctx, prefs); err != nil {
		t.Fatalf("save: %v", err)
	}
	prefs.DefaultTemplate = "bk-dark-studio"
	if err := devices.SavePreferences(ctx, prefs); err != nil {
		t.Fatalf("save again: %v", err)
	}
	got, err := devices.GetPreferences(ctx, "device-a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Theme != domain.ThemeLight || got.DefaultTemplate != "bk-dark-studio" || !got.UpdatedAt.Equal(now) {
		t.Fatalf("unexpected preferences %+v", got)
	}

	if err := gallery.Insert(ctx, "device-a", domain.StorageItem{ID: "x", Data: "d", Date: now}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := devices.Touch(ctx, "device-b", now.Add(48*time.Hour)); err != nil {
		t.Fatalf("touch: %v", err)
	}

	pruned, err := devices.PruneInactive(ctx, now.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("expected 1 device pruned, got %d", pruned)
	}
	if items, _ := gallery.List(ctx, "device-a"); len(items) != 0 {
		t.Fatalf("expected pruned device gallery to cascade")
	}
	if _, err := devices.GetPreferences(ctx, "device-a"); !repositories.IsNotFound(err) {
		t.Fatalf("expected pruned preferences to cascade, got %v", err)
	}
}
