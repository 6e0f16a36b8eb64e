package domain

import (
	"fmt"
	"strings"
	"time"
)

// Role is the authorization role stored on a user profile.
type Role string

const (
	RoleUser   Role = "user"
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
)

// ParseRole normalises and validates a role value.
func ParseRole(value string) (Role, error) {
	switch role := Role(strings.ToLower(strings.TrimSpace(value))); role {
	case RoleUser, RoleEditor, RoleAdmin:
		return role, nil
	default:
		return "", fmt.Errorf("domain: unknown role %q", value)
	}
}

// ProfileStatus is the approval status of a user profile.
type ProfileStatus string

const (
	StatusPending  ProfileStatus = "pending"
	StatusApproved ProfileStatus = "approved"
	StatusBlocked  ProfileStatus = "blocked"
)

// ParseProfileStatus normalises and validates a status value.
func ParseProfileStatus(value string) (ProfileStatus, error) {
	switch status := ProfileStatus(strings.ToLower(strings.TrimSpace(value))); status {
	case StatusPending, StatusApproved, StatusBlocked:
		return status, nil
	default:
		return "", fmt.Errorf("domain: unknown profile status %q", value)
	}
}

// UserProfile is the stored authorization record for an authenticated user.
type UserProfile struct {
	UID         string
	Email       string
	Phone       string
	DisplayName string
	PhotoURL    string
	Role        Role
	Status      ProfileStatus
	CreatedAt   time.Time
	LastLogin   time.Time
}

// IsAdmin reports whether the profile carries the admin role.
func (p UserProfile) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// IsApproved reports whether the profile may use the application.
// Admins are approved regardless of their stored status.
func (p UserProfile) IsApproved() bool {
	return p.IsAdmin() || p.Status == StatusApproved
}

// AccessGate classifies what a caller may do.
type AccessGate string

const (
	GateGuest       AccessGate = "guest"
	GatePending     AccessGate = "pending"
	GateBlocked     AccessGate = "blocked"
	GateApproved    AccessGate = "approved"
	GateUnavailable AccessGate = "unavailable"
)

// AccessState is the resolved authorization state of a caller.
type AccessState struct {
	Authenticated bool
	Profile       *UserProfile
	Gate          AccessGate
}

// GateFor derives the gate for a loaded profile.
func GateFor(profile UserProfile) AccessGate {
	switch {
	case profile.IsApproved():
		return GateApproved
	case profile.Status == StatusBlocked:
		return GateBlocked
	default:
		return GatePending
	}
}

// Allowed reports whether the state grants access to approved-only features.
func (s AccessState) Allowed() bool {
	return s.Gate == GateApproved
}

// IsAdmin reports whether the state belongs to an admin profile.
func (s AccessState) IsAdmin() bool {
	return s.Profile != nil && s.Profile.IsAdmin()
}
