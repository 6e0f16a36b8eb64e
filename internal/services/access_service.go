package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/basherkella/cardstudio/internal/domain"
	"github.com/basherkella/cardstudio/internal/platform/auth"
	"github.com/basherkella/cardstudio/internal/repositories"
)

var (
	errIdentityRequired   = errors.New("access: identity is required")
	errProfileUnavailable = errors.New("access: profile unavailable")
)

var (
	// ErrAccessIdentityRequired indicates a sign-in without a verified identity.
	ErrAccessIdentityRequired = errIdentityRequired
	// ErrAccessProfileUnavailable indicates the profile store could not be read or written.
	ErrAccessProfileUnavailable = errProfileUnavailable
)

// AccessServiceDeps bundles the dependencies of the access service.
type AccessServiceDeps struct {
	Profiles repositories.ProfileRepository
	// Identity syncs the role claim for bootstrap admins. Optional.
	Identity IdentityAdmin
	Events   EventPublisher
	// BootstrapAdmins are emails that receive an approved admin profile on
	// first sign-in.
	BootstrapAdmins []string
	Clock           func() time.Time
	Logger          Logger
}

type accessService struct {
	profiles  repositories.ProfileRepository
	identity  IdentityAdmin
	events    EventPublisher
	bootstrap map[string]struct{}
	clock     func() time.Time
	logger    Logger
}

var _ AccessService = (*accessService)(nil)

// NewAccessService wires the authorization state machine.
func NewAccessService(deps AccessServiceDeps) (AccessService, error) {
	if deps.Profiles == nil {
		return nil, errors.New("access service: profile repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	bootstrap := make(map[string]struct{}, len(deps.BootstrapAdmins))
	for _, email := range deps.BootstrapAdmins {
		if email = strings.ToLower(strings.TrimSpace(email)); email != "" {
			bootstrap[email] = struct{}{}
		}
	}
	return &accessService{
		profiles:  deps.Profiles,
		identity:  deps.Identity,
		events:    deps.Events,
		bootstrap: bootstrap,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: deps.Logger,
	}, nil
}

func (s *accessService) SignIn(ctx context.Context, identity *auth.Identity) (UserProfile, error) {
	if identity == nil || strings.TrimSpace(identity.UID) == "" {
		return UserProfile{}, errIdentityRequired
	}

	profile, err := s.profiles.Get(ctx, identity.UID)
	switch {
	case err == nil:
		return s.touch(ctx, profile), nil
	case repositories.IsNotFound(err):
		return s.create(ctx, identity)
	default:
		return UserProfile{}, fmt.Errorf("%w: %w", errProfileUnavailable, err)
	}
}

// touch runs after the read completes. A failed bump only leaves a stale
// lastLogin behind.
func (s *accessService) touch(ctx context.Context, profile UserProfile) UserProfile {
	now := s.clock()
	if err := s.profiles.TouchLogin(ctx, profile.UID, now); err != nil {
		s.log(ctx, "access.touch_login_failed", map[string]any{"uid": profile.UID, "error": err.Error()})
		return profile
	}
	profile.LastLogin = now
	return profile
}

func (s *accessService) create(ctx context.Context, identity *auth.Identity) (UserProfile, error) {
	now := s.clock()
	profile := UserProfile{
		UID:         identity.UID,
		Email:       strings.ToLower(strings.TrimSpace(identity.Email)),
		Phone:       identity.Phone,
		DisplayName: identity.DisplayName,
		PhotoURL:    identity.PhotoURL,
		Role:        domain.RoleUser,
		Status:      domain.StatusPending,
		CreatedAt:   now,
		LastLogin:   now,
	}
	verified := s.fillFromUserRecord(ctx, identity, &profile)

	// Bootstrap elevation needs proof of mailbox ownership; anyone can
	// register an unverified password account for the address.
	if _, ok := s.bootstrap[profile.Email]; ok && profile.Email != "" && verified {
		profile.Role = domain.RoleAdmin
		profile.Status = domain.StatusApproved
	}

	if err := s.profiles.Create(ctx, profile); err != nil {
		if repositories.IsConflict(err) {
			// A concurrent sign-in won the create; keep what it stored.
			existing, getErr := s.profiles.Get(ctx, identity.UID)
			if getErr != nil {
				return UserProfile{}, fmt.Errorf("%w: %w", errProfileUnavailable, getErr)
			}
			return existing, nil
		}
		return UserProfile{}, fmt.Errorf("%w: %w", errProfileUnavailable, err)
	}

	if profile.IsAdmin() && s.identity != nil {
		if err := s.identity.SetRoleClaim(ctx, profile.UID, string(profile.Role)); err != nil {
			s.log(ctx, "access.role_claim_failed", map[string]any{"uid": profile.UID, "error": err.Error()})
		}
	}
	s.log(ctx, "access.profile_created", map[string]any{
		"uid":    profile.UID,
		"role":   string(profile.Role),
		"status": string(profile.Status),
	})
	s.publish(ctx, domain.Event{
		Type:       domain.EventProfileCreated,
		SubjectID:  profile.UID,
		Payload:    map[string]any{"role": string(profile.Role), "status": string(profile.Status)},
		OccurredAt: now,
	})
	return profile, nil
}

// fillFromUserRecord completes fields the ID token did not carry, such as
// the email of a phone sign-in linked later.
// fillFromUserRecord completes missing fields from the Firebase user record
// and reports whether the resulting email is verified.
func (s *accessService) fillFromUserRecord(ctx context.Context, identity *auth.Identity, profile *UserProfile) bool {
	verified := profile.Email != "" && identity.EmailVerified
	if profile.Email != "" && profile.DisplayName != "" {
		return verified
	}
	record, err := identity.User(ctx)
	if err != nil || record == nil || record.UserInfo == nil {
		return verified
	}
	if profile.Email == "" {
		profile.Email = strings.ToLower(strings.TrimSpace(record.Email))
		verified = profile.Email != "" && record.EmailVerified
	}
	if profile.DisplayName == "" {
		profile.DisplayName = record.DisplayName
	}
	if profile.Phone == "" {
		profile.Phone = record.PhoneNumber
	}
	if profile.PhotoURL == "" {
		profile.PhotoURL = record.PhotoURL
	}
	return verified
}

func (s *accessService) Resolve(ctx context.Context, identity *auth.Identity) AccessState {
	if identity == nil || strings.TrimSpace(identity.UID) == "" {
		return AccessState{Gate: domain.GateGuest}
	}

	profile, err := s.profiles.Get(ctx, identity.UID)
	if repositories.IsNotFound(err) {
		// First request before the client posted its session.
		profile, err = s.create(ctx, identity)
	}
	if err != nil {
		s.log(ctx, "access.profile_unavailable", map[string]any{"uid": identity.UID, "error": err.Error()})
		return AccessState{Authenticated: true, Gate: domain.GateUnavailable}
	}
	return AccessState{
		Authenticated: true,
		Profile:       &profile,
		Gate:          domain.GateFor(profile),
	}
}

func (s *accessService) publish(ctx context.Context, event domain.Event) {
	if s.events == nil {
		return
	}
	if _, err := s.events.Publish(ctx, event); err != nil {
		s.log(ctx, "access.event_publish_failed", map[string]any{"type": event.Type, "error": err.Error()})
	}
}

func (s *accessService) log(ctx context.Context, event string, fields map[string]any) {
	if s.logger != nil {
		s.logger(ctx, event, fields)
	}
}
