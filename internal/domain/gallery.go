package domain

import "time"

// MaxAssetBytes is the largest decoded image accepted into a gallery.
const MaxAssetBytes = 500 * 1024

// StorageItem is a saved brand mark image.
type StorageItem struct {
	ID   string
	Name string
	// Data is a base64 data URL.
	Data string
	Date time.Time
	// Size is the decoded byte length of Data.
	Size int
}

// Owner selects which gallery an operation targets. Exactly one of UserID
// and DeviceID is set.
type Owner struct {
	UserID   string
	DeviceID string
}

// IsGuest reports whether the owner is an unauthenticated device.
func (o Owner) IsGuest() bool {
	return o.UserID == ""
}

// Key identifies the owner in logs and rate limiter buckets.
func (o Owner) Key() string {
	if o.UserID != "" {
		return "user:" + o.UserID
	}
	return "device:" + o.DeviceID
}

// CapacityPolicy decides what happens when a gallery is full.
type CapacityPolicy string

const (
	CapacityReject      CapacityPolicy = "reject"
	CapacityEvictOldest CapacityPolicy = "evict-oldest"
)

// GalleryLimits bounds a gallery's size.
type GalleryLimits struct {
	MaxItems int
	MaxBytes int
	Policy   CapacityPolicy
}

// Theme is the UI color scheme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// DevicePreferences are per-device settings that persist across sessions.
type DevicePreferences struct {
	DeviceID        string
	Theme           Theme
	CustomLogo      string
	DefaultTemplate string
	DefaultFont     string
	UpdatedAt       time.Time
}
