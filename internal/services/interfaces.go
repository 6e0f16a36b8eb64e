package services

import (
	"context"
	"time"

	"github.com/basherkella/cardstudio/internal/cards"
	"github.com/basherkella/cardstudio/internal/domain"
	"github.com/basherkella/cardstudio/internal/platform/auth"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	UserProfile        = domain.UserProfile
	AccessState        = domain.AccessState
	StorageItem        = domain.StorageItem
	DevicePreferences  = domain.DevicePreferences
	SystemHealthReport = domain.SystemHealthReport
	ToolOutput         = domain.ToolOutput
	Owner              = domain.Owner
)

// Logger receives structured service events. observability.ServiceLogger
// adapts it to zap.
type Logger func(ctx context.Context, event string, fields map[string]any)

// EventPublisher emits domain events. A nil publisher disables events.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) (string, error)
}

// IdentityAdmin mutates identity-provider state that mirrors profiles.
type IdentityAdmin interface {
	SetRoleClaim(ctx context.Context, uid, role string) error
	RevokeSessions(ctx context.Context, uid string) error
}

// SystemService reports service health.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// AccessService owns profile creation and the authorization state machine.
// It is the only writer of profiles outside the admin console.
type AccessService interface {
	// SignIn creates the profile on first sign-in and bumps lastLogin otherwise.
	SignIn(ctx context.Context, identity *auth.Identity) (UserProfile, error)
	// Resolve never fails; errors collapse into the unavailable gate.
	Resolve(ctx context.Context, identity *auth.Identity) AccessState
}

// GenerateCommand is one AI generation request.
type GenerateCommand struct {
	Kind     domain.ToolKind
	CardKind domain.CardKind
	Text     string
	// ActorKey identifies the caller for duplicate submission checks.
	ActorKey string
	// CredentialOverride replaces the configured API key for this call.
	CredentialOverride string
}

// ContentService runs the AI tools.
type ContentService interface {
	Generate(ctx context.Context, cmd GenerateCommand) (ToolOutput, error)
}

// RenderCommand lays out a card. Empty template, font and logo fall back to
// the device preferences of DeviceID when set.
type RenderCommand struct {
	Input    cards.RenderInput
	DeviceID string
}

// CaptureCommand rasterizes a card.
type CaptureCommand struct {
	RenderCommand
	// Scale overrides the configured device scale factor when positive.
	Scale float64
}

// Capture is a rasterized card.
type Capture struct {
	PNG      []byte
	Width    int
	Height   int
	Scale    float64
	Template cards.TemplateID
	Fallback bool
}

// ExportCommand captures a card and stores it for download.
type ExportCommand struct {
	CaptureCommand
	ActorID string
}

// CardExport is a stored card with a signed download URL.
type CardExport struct {
	Capture
	Object    string
	URL       string
	ExpiresAt time.Time
}

// CardService renders and rasterizes cards.
type CardService interface {
	Render(ctx context.Context, cmd RenderCommand) (cards.Layout, error)
	Capture(ctx context.Context, cmd CaptureCommand) (Capture, error)
	Export(ctx context.Context, cmd ExportCommand) (CardExport, error)
	ExportsEnabled() bool
}

// UploadCommand adds an image to a gallery. Data is a data URL or bare base64.
type UploadCommand struct {
	Name        string
	Data        string
	ContentType string
}

// GalleryService manages brand mark images for users and guest devices.
type GalleryService interface {
	List(ctx context.Context, owner Owner) ([]StorageItem, error)
	Upload(ctx context.Context, owner Owner, cmd UploadCommand) (StorageItem, error)
	Delete(ctx context.Context, owner Owner, id string) error
	// Select stores the asset as the device's active brand mark.
	Select(ctx context.Context, owner Owner, id string) (DevicePreferences, error)
}

// UpdatePreferencesCommand carries the fields to change. Nil fields are kept.
type UpdatePreferencesCommand struct {
	DeviceID        string
	Theme           *string
	CustomLogo      *string
	DefaultTemplate *string
	DefaultFont     *string
}

// PreferenceService reads and writes device preferences.
type PreferenceService interface {
	Get(ctx context.Context, deviceID string) (DevicePreferences, error)
	Update(ctx context.Context, cmd UpdatePreferencesCommand) (DevicePreferences, error)
	SetCustomLogo(ctx context.Context, deviceID, logo string) (DevicePreferences, error)
	// Touch records device activity for retention.
	Touch(ctx context.Context, deviceID string) error
}

// Roster is the admin console's view of all profiles.
type Roster struct {
	Users   []UserProfile
	Pending int
	// LoadedAt is zero until the roster has been fetched once.
	LoadedAt time.Time
}

// SetStatusCommand changes a profile's approval status.
type SetStatusCommand struct {
	ActorID string
	UID     string
	Status  domain.ProfileStatus
}

// SetRoleCommand changes a profile's role.
type SetRoleCommand struct {
	ActorID   string
	UID       string
	Role      domain.Role
	Confirmed bool
}

// DeleteUserCommand removes a profile and its gallery.
type DeleteUserCommand struct {
	ActorID   string
	UID       string
	Confirmed bool
}

// AdminService backs the admin console.
type AdminService interface {
	List(ctx context.Context) (Roster, error)
	// Search filters the cached roster without touching the store.
	Search(term string) Roster
	SetStatus(ctx context.Context, cmd SetStatusCommand) (UserProfile, error)
	SetRole(ctx context.Context, cmd SetRoleCommand) (UserProfile, error)
	Delete(ctx context.Context, cmd DeleteUserCommand) error
}

// PruneResult reports a device store cleanup.
type PruneResult struct {
	Cutoff  time.Time
	Devices int
}

// MaintenanceService runs scheduled upkeep.
type MaintenanceService interface {
	PruneDevices(ctx context.Context) (PruneResult, error)
}
