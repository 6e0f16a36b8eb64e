//go:build integration

package firestore_test

import (
	"context"
	"os"
	"testing"
	"time"

	pconfig "github.com/basherkella/cardstudio/internal/platform/config"
	pfirestore "github.com/basherkella/cardstudio/internal/platform/firestore"
)

type sampleEntity struct {
	Name  string `firestore:"name"`
	Count int    `firestore:"count"`
}

// Requires FIRESTORE_EMULATOR_HOST, e.g. from `gcloud emulators firestore start`.
func TestRepositoryAgainstEmulator(t *testing.T) {
	host := os.Getenv("FIRESTORE_EMULATOR_HOST")
	if host == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	provider := pfirestore.NewProvider(pconfig.FirestoreConfig{ProjectID: "test-project", EmulatorHost: host})
	t.Cleanup(func() { _ = provider.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := provider.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	repo := pfirestore.NewBaseRepository[sampleEntity](provider, "users", nil, nil).Child("u1", "assets")
	if err := repo.Create(ctx, "a1", sampleEntity{Name: "logo", Count: 1}); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := repo.Create(ctx, "a1", sampleEntity{Name: "dup"})
	var repoErr *pfirestore.Error
	if !asError(err, &repoErr) || !repoErr.IsConflict() {
		t.Fatalf("expected conflict on duplicate create, got %v", err)
	}

	doc, err := repo.Get(ctx, "a1")
	if err != nil || doc.Data.Name != "logo" {
		t.Fatalf("get: %+v %v", doc, err)
	}

	deleted, err := repo.DeleteAll(ctx)
	if err != nil || deleted != 1 {
		t.Fatalf("delete all: %d %v", deleted, err)
	}
	if _, err := repo.Get(ctx, "a1"); !asError(err, &repoErr) || !repoErr.IsNotFound() {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func asError(err error, target **pfirestore.Error) bool {
	e, ok := err.(*pfirestore.Error)
	if ok {
		*target = e
	}
	return ok
}
