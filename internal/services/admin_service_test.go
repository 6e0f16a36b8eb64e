package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/basherkella/cardstudio/internal/domain"
)

func seededProfiles() []domain.UserProfile {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return []domain.UserProfile{
		{UID: "admin", Email: "admin@basherkella.com", DisplayName: "Admin", Role: domain.RoleAdmin, Status: domain.StatusApproved, CreatedAt: base},
		{UID: "rahim", Email: "rahim@example.com", DisplayName: "Rahim Uddin", Role: domain.RoleUser, Status: domain.StatusPending, CreatedAt: base.Add(time.Hour)},
		{UID: "karim", Email: "KARIM@example.com", DisplayName: "করিম", Role: domain.RoleEditor, Status: domain.StatusApproved, CreatedAt: base.Add(2 * time.Hour)},
		{UID: "nadia", Email: "nadia@example.com", DisplayName: "Nadia", Role: domain.RoleUser, Status: domain.StatusPending, CreatedAt: base.Add(3 * time.Hour)},
	}
}

func newTestAdminService(t *testing.T) (AdminService, *memoryProfileRepo, *fakeIdentityAdmin, *recordingPublisher) {
	t.Helper()
	repo := newMemoryProfileRepo(seededProfiles()...)
	identity := &fakeIdentityAdmin{}
	events := &recordingPublisher{}
	svc, err := NewAdminService(AdminServiceDeps{Profiles: repo, Identity: identity, Events: events})
	if err != nil {
		t.Fatalf("NewAdminService: %v", err)
	}
	if _, err := svc.List(context.Background()); err != nil {
		t.Fatalf("List: %v", err)
	}
	return svc, repo, identity, events
}

func TestAdminServiceListOrdersAndCountsPending(t *testing.T) {
	svc, _, _, _ := newTestAdminService(t)
	roster := svc.Search("")
	if len(roster.Users) != 4 || roster.Users[0].UID != "nadia" || roster.Users[3].UID != "admin" {
		t.Fatalf("expected createdAt descending, got %+v", roster.Users)
	}
	if roster.Pending != 2 {
		t.Fatalf("expected two pending, got %d", roster.Pending)
	}
	if roster.LoadedAt.IsZero() {
		t.Fatalf("expected loaded roster")
	}
}

func TestAdminServiceSearchUsesCachedRoster(t *testing.T) {
	svc, repo, _, _ := newTestAdminService(t)
	repo.getErr = errors.New("store must not be queried")

	cases := map[string][]string{
		"karim":   {"karim"},
		"UDDIN":   {"rahim"},
		"করিম":    {"karim"},
		"example": {"nadia", "karim", "rahim"},
		"nobody":  {},
	}
	for term, want := range cases {
		got := svc.Search(term)
		if len(got.Users) != len(want) {
			t.Fatalf("term %q: expected %v, got %+v", term, want, got.Users)
		}
		for i, uid := range want {
			if got.Users[i].UID != uid {
				t.Fatalf("term %q: expected %v, got %+v", term, want, got.Users)
			}
		}
	}
}

func TestAdminServiceSetStatusUpdatesOnlyTarget(t *testing.T) {
	svc, _, identity, events := newTestAdminService(t)

	updated, err := svc.SetStatus(context.Background(), SetStatusCommand{ActorID: "admin", UID: "rahim", Status: domain.StatusBlocked})
	if err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if updated.Status != domain.StatusBlocked {
		t.Fatalf("expected blocked, got %s", updated.Status)
	}
	roster := svc.Search("")
	for _, p := range roster.Users {
		switch p.UID {
		case "rahim":
			if p.Status != domain.StatusBlocked {
				t.Fatalf("expected roster entry updated")
			}
		case "nadia":
			if p.Status != domain.StatusPending {
				t.Fatalf("other entries must be unchanged")
			}
		}
	}
	if len(identity.revoked) != 1 || identity.revoked[0] != "rahim" {
		t.Fatalf("expected sessions revoked on block, got %v", identity.revoked)
	}
	if got := events.types(); len(got) != 1 || got[0] != domain.EventProfileStatusChange {
		t.Fatalf("expected status event, got %v", got)
	}
}

func TestAdminServiceFailedMutationLeavesRoster(t *testing.T) {
	svc, repo, _, events := newTestAdminService(t)
	repo.updateErr = &fakeRepoError{err: errors.New("unavailable"), unavailable: true}

	if _, err := svc.SetStatus(context.Background(), SetStatusCommand{ActorID: "admin", UID: "rahim", Status: domain.StatusApproved}); err == nil {
		t.Fatalf("expected store failure")
	}
	for _, p := range svc.Search("rahim").Users {
		if p.Status != domain.StatusPending {
			t.Fatalf("roster must be untouched on failure")
		}
	}
	if len(events.types()) != 0 {
		t.Fatalf("no event on failure")
	}

	repo.updateErr = nil
	if _, err := svc.SetStatus(context.Background(), SetStatusCommand{ActorID: "admin", UID: "ghost", Status: domain.StatusApproved}); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}
}

func TestAdminServiceSetRoleRequiresConfirmation(t *testing.T) {
	svc, repo, identity, _ := newTestAdminService(t)

	if _, err := svc.SetRole(context.Background(), SetRoleCommand{ActorID: "admin", UID: "karim", Role: domain.RoleAdmin}); !errors.Is(err, ErrConfirmationRequired) {
		t.Fatalf("expected confirmation required, got %v", err)
	}
	if repo.store["karim"].Role != domain.RoleEditor {
		t.Fatalf("unconfirmed change must not persist")
	}

	updated, err := svc.SetRole(context.Background(), SetRoleCommand{ActorID: "admin", UID: "karim", Role: domain.RoleAdmin, Confirmed: true})
	if err != nil {
		t.Fatalf("SetRole: %v", err)
	}
	if updated.Role != domain.RoleAdmin || identity.claims["karim"] != "admin" {
		t.Fatalf("expected role and claim synced, got %s claims=%v", updated.Role, identity.claims)
	}

	if _, err := svc.SetRole(context.Background(), SetRoleCommand{ActorID: "admin", UID: "karim", Role: "owner", Confirmed: true}); err == nil {
		t.Fatalf("expected unknown role rejected")
	}
}

func TestAdminServiceRejectsSelfMutation(t *testing.T) {
	svc, repo, _, _ := newTestAdminService(t)
	ctx := context.Background()

	if _, err := svc.SetStatus(ctx, SetStatusCommand{ActorID: "admin", UID: "admin", Status: domain.StatusBlocked}); !errors.Is(err, ErrSelfMutation) {
		t.Fatalf("expected self block rejected, got %v", err)
	}
	if _, err := svc.SetRole(ctx, SetRoleCommand{ActorID: "admin", UID: "admin", Role: domain.RoleUser, Confirmed: true}); !errors.Is(err, ErrSelfMutation) {
		t.Fatalf("expected self demotion rejected, got %v", err)
	}
	if err := svc.Delete(ctx, DeleteUserCommand{ActorID: "admin", UID: "admin", Confirmed: true}); !errors.Is(err, ErrSelfMutation) {
		t.Fatalf("expected self delete rejected, got %v", err)
	}
	if p := repo.store["admin"]; p.Role != domain.RoleAdmin || p.Status != domain.StatusApproved {
		t.Fatalf("admin profile must be unchanged, got %+v", p)
	}
}

func TestAdminServiceDelete(t *testing.T) {
	svc, repo, _, events := newTestAdminService(t)
	ctx := context.Background()

	if err := svc.Delete(ctx, DeleteUserCommand{ActorID: "admin", UID: "nadia"}); !errors.Is(err, ErrConfirmationRequired) {
		t.Fatalf("expected confirmation required, got %v", err)
	}
	if err := svc.Delete(ctx, DeleteUserCommand{ActorID: "admin", UID: "nadia", Confirmed: true}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := repo.store["nadia"]; ok {
		t.Fatalf("expected profile removed")
	}
	roster := svc.Search("")
	if len(roster.Users) != 3 || roster.Pending != 1 {
		t.Fatalf("expected roster without nadia, got %+v", roster)
	}
	if got := events.types(); len(got) != 1 || got[0] != domain.EventProfileDeleted {
		t.Fatalf("expected delete event, got %v", got)
	}
}
