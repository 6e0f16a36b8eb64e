package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/basherkella/cardstudio/internal/domain"
)

// RepositoryError categorises persistence failures for services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// IsNotFound reports whether err is a RepositoryError for a missing record.
func IsNotFound(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

// IsConflict reports whether err is a RepositoryError for an existing record.
func IsConflict(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsConflict()
}

// IsUnavailable reports whether err is a transient backend failure.
func IsUnavailable(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsUnavailable()
}

// ProfileRepository stores user profiles at users/{uid}.
type ProfileRepository interface {
	Get(ctx context.Context, uid string) (domain.UserProfile, error)
	// Create fails with a conflict when the profile already exists.
	Create(ctx context.Context, profile domain.UserProfile) error
	TouchLogin(ctx context.Context, uid string, at time.Time) error
	UpdateStatus(ctx context.Context, uid string, status domain.ProfileStatus) (domain.UserProfile, error)
	UpdateRole(ctx context.Context, uid string, role domain.Role) (domain.UserProfile, error)
	// Delete removes the profile and its gallery subcollection.
	Delete(ctx context.Context, uid string) error
	// List returns every profile ordered by createdAt descending.
	List(ctx context.Context) ([]domain.UserProfile, error)
}

// GalleryRepository stores brand mark images for one kind of owner.
type GalleryRepository interface {
	// List returns items newest first, ties broken by id descending.
	List(ctx context.Context, owner string) ([]domain.StorageItem, error)
	Get(ctx context.Context, owner, id string) (domain.StorageItem, error)
	Insert(ctx context.Context, owner string, item domain.StorageItem) error
	Delete(ctx context.Context, owner, id string) error
}

// DeviceRepository stores per-device state in the local store.
type DeviceRepository interface {
	Touch(ctx context.Context, deviceID string, at time.Time) error
	GetPreferences(ctx context.Context, deviceID string) (domain.DevicePreferences, error)
	SavePreferences(ctx context.Context, prefs domain.DevicePreferences) error
	// PruneInactive removes devices last seen before cutoff together with
	// their gallery and preferences.
	PruneInactive(ctx context.Context, cutoff time.Time) (int, error)
}

// HealthRepository collects dependency health.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
