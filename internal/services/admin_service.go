package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/basherkella/cardstudio/internal/domain"
	"github.com/basherkella/cardstudio/internal/platform/textutil"
	"github.com/basherkella/cardstudio/internal/repositories"
)

var (
	errAdminActorRequired   = errors.New("admin: actor is required")
	errAdminUIDRequired     = errors.New("admin: user id is required")
	errConfirmationRequired = errors.New("admin: confirmation required")
	errSelfMutation         = errors.New("admin: cannot demote, block or delete yourself")
	errUserNotFound         = errors.New("admin: user not found")
)

var (
	// ErrConfirmationRequired indicates a destructive mutation without confirm: true.
	ErrConfirmationRequired = errConfirmationRequired
	// ErrSelfMutation indicates an admin targeting their own access.
	ErrSelfMutation = errSelfMutation
	// ErrUserNotFound indicates the target profile does not exist.
	ErrUserNotFound = errUserNotFound
)

// AdminServiceDeps bundles the dependencies of the admin service.
type AdminServiceDeps struct {
	Profiles repositories.ProfileRepository
	Identity IdentityAdmin
	Events   EventPublisher
	Clock    func() time.Time
	Logger   Logger
}

type adminService struct {
	profiles repositories.ProfileRepository
	identity IdentityAdmin
	events   EventPublisher
	clock    func() time.Time
	logger   Logger

	mu     sync.RWMutex
	roster []UserProfile
	loaded time.Time
}

var _ AdminService = (*adminService)(nil)

// NewAdminService wires the admin console.
func NewAdminService(deps AdminServiceDeps) (AdminService, error) {
	if deps.Profiles == nil {
		return nil, errors.New("admin service: profile repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &adminService{
		profiles: deps.Profiles,
		identity: deps.Identity,
		events:   deps.Events,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: deps.Logger,
	}, nil
}

func (s *adminService) List(ctx context.Context) (Roster, error) {
	profiles, err := s.profiles.List(ctx)
	if err != nil {
		return Roster{}, err
	}
	s.mu.Lock()
	s.roster = profiles
	s.loaded = s.clock()
	s.mu.Unlock()
	return s.Search(""), nil
}

func (s *adminService) Search(term string) Roster {
	term = strings.TrimSpace(term)
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := Roster{Users: make([]UserProfile, 0, len(s.roster)), LoadedAt: s.loaded}
	for _, p := range s.roster {
		if p.Status == domain.StatusPending && !p.IsAdmin() {
			out.Pending++
		}
		if term == "" || textutil.ContainsFold(p.DisplayName, term) || textutil.ContainsFold(p.Email, term) {
			out.Users = append(out.Users, p)
		}
	}
	return out
}

func (s *adminService) SetStatus(ctx context.Context, cmd SetStatusCommand) (UserProfile, error) {
	if err := validateTarget(cmd.ActorID, cmd.UID); err != nil {
		return UserProfile{}, err
	}
	if _, err := domain.ParseProfileStatus(string(cmd.Status)); err != nil {
		return UserProfile{}, err
	}
	if cmd.ActorID == cmd.UID && cmd.Status != domain.StatusApproved {
		return UserProfile{}, errSelfMutation
	}

	updated, err := s.profiles.UpdateStatus(ctx, cmd.UID, cmd.Status)
	if err != nil {
		return UserProfile{}, notFoundAs(err, errUserNotFound)
	}
	s.replace(updated)

	if cmd.Status == domain.StatusBlocked && s.identity != nil {
		if err := s.identity.RevokeSessions(ctx, cmd.UID); err != nil {
			s.log(ctx, "admin.revoke_failed", map[string]any{"uid": cmd.UID, "error": err.Error()})
		}
	}
	s.publish(ctx, domain.EventProfileStatusChange, cmd.ActorID, cmd.UID, map[string]any{"status": string(cmd.Status)})
	return updated, nil
}

func (s *adminService) SetRole(ctx context.Context, cmd SetRoleCommand) (UserProfile, error) {
	if err := validateTarget(cmd.ActorID, cmd.UID); err != nil {
		return UserProfile{}, err
	}
	if _, err := domain.ParseRole(string(cmd.Role)); err != nil {
		return UserProfile{}, err
	}
	if cmd.ActorID == cmd.UID && cmd.Role != domain.RoleAdmin {
		return UserProfile{}, errSelfMutation
	}
	if !cmd.Confirmed {
		return UserProfile{}, errConfirmationRequired
	}

	updated, err := s.profiles.UpdateRole(ctx, cmd.UID, cmd.Role)
	if err != nil {
		return UserProfile{}, notFoundAs(err, errUserNotFound)
	}
	s.replace(updated)

	if s.identity != nil {
		if err := s.identity.SetRoleClaim(ctx, cmd.UID, string(cmd.Role)); err != nil {
			s.log(ctx, "admin.role_claim_failed", map[string]any{"uid": cmd.UID, "error": err.Error()})
		}
	}
	s.publish(ctx, domain.EventProfileRoleChange, cmd.ActorID, cmd.UID, map[string]any{"role": string(cmd.Role)})
	return updated, nil
}

func (s *adminService) Delete(ctx context.Context, cmd DeleteUserCommand) error {
	if err := validateTarget(cmd.ActorID, cmd.UID); err != nil {
		return err
	}
	if cmd.ActorID == cmd.UID {
		return errSelfMutation
	}
	if !cmd.Confirmed {
		return errConfirmationRequired
	}

	if err := s.profiles.Delete(ctx, cmd.UID); err != nil {
		return notFoundAs(err, errUserNotFound)
	}
	s.mu.Lock()
	s.roster = slices.DeleteFunc(s.roster, func(p UserProfile) bool { return p.UID == cmd.UID })
	s.mu.Unlock()

	if s.identity != nil {
		if err := s.identity.RevokeSessions(ctx, cmd.UID); err != nil {
			s.log(ctx, "admin.revoke_failed", map[string]any{"uid": cmd.UID, "error": err.Error()})
		}
	}
	s.publish(ctx, domain.EventProfileDeleted, cmd.ActorID, cmd.UID, nil)
	return nil
}

// replace swaps one roster entry after the store confirmed the write.
func (s *adminService) replace(updated UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.roster {
		if s.roster[i].UID == updated.UID {
			s.roster[i] = updated
			return
		}
	}
}

func validateTarget(actor, uid string) error {
	if strings.TrimSpace(actor) == "" {
		return errAdminActorRequired
	}
	if strings.TrimSpace(uid) == "" {
		return errAdminUIDRequired
	}
	return nil
}

func notFoundAs(err, sentinel error) error {
	if repositories.IsNotFound(err) {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return err
}

func (s *adminService) publish(ctx context.Context, eventType, actor, subject string, payload map[string]any) {
	s.log(ctx, eventType, map[string]any{"actor": actor, "uid": subject})
	if s.events == nil {
		return
	}
	event := domain.Event{
		Type:       eventType,
		SubjectID:  subject,
		ActorID:    actor,
		Payload:    payload,
		OccurredAt: s.clock(),
	}
	if _, err := s.events.Publish(ctx, event); err != nil {
		s.log(ctx, "admin.event_publish_failed", map[string]any{"type": eventType, "error": err.Error()})
	}
}

func (s *adminService) log(ctx context.Context, event string, fields map[string]any) {
	if s.logger != nil {
		s.logger(ctx, event, fields)
	}
}
