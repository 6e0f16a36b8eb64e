package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/basherkella/cardstudio/internal/cards"
	"github.com/basherkella/cardstudio/internal/domain"
	"github.com/basherkella/cardstudio/internal/platform/auth"
	"github.com/basherkella/cardstudio/internal/repositories"
)

const defaultTouchInterval = time.Minute

var (
	errDeviceRequired  = errors.New("preferences: valid device id is required")
	errInvalidTheme    = errors.New("preferences: theme must be light or dark")
	errUnknownTemplate = errors.New("preferences: unknown template")
	errUnknownFont     = errors.New("preferences: unknown font")
)

var (
	// ErrDeviceRequired indicates a missing or malformed device id.
	ErrDeviceRequired = errDeviceRequired
	// ErrInvalidTheme indicates a theme other than light or dark.
	ErrInvalidTheme = errInvalidTheme
	// ErrUnknownTemplate indicates a default template id outside the catalog.
	ErrUnknownTemplate = errUnknownTemplate
	// ErrUnknownFont indicates a default font id outside the catalog.
	ErrUnknownFont = errUnknownFont
)

// PreferenceServiceDeps bundles the dependencies of the preference service.
type PreferenceServiceDeps struct {
	Devices      repositories.DeviceRepository
	MaxLogoBytes int
	// TouchInterval throttles last_seen writes per device.
	TouchInterval time.Duration
	Clock         func() time.Time
	Logger        Logger
}

type preferenceService struct {
	devices       repositories.DeviceRepository
	maxLogoBytes  int
	touchInterval time.Duration
	clock         func() time.Time
	logger        Logger

	mu      sync.Mutex
	touched map[string]time.Time
}

var _ PreferenceService = (*preferenceService)(nil)

// NewPreferenceService wires device preference persistence.
func NewPreferenceService(deps PreferenceServiceDeps) (PreferenceService, error) {
	if deps.Devices == nil {
		return nil, errors.New("preference service: device repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	maxLogo := deps.MaxLogoBytes
	if maxLogo <= 0 {
		maxLogo = domain.MaxAssetBytes
	}
	interval := deps.TouchInterval
	if interval <= 0 {
		interval = defaultTouchInterval
	}
	return &preferenceService{
		devices:       deps.Devices,
		maxLogoBytes:  maxLogo,
		touchInterval: interval,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger:  deps.Logger,
		touched: map[string]time.Time{},
	}, nil
}

func defaultPreferences(deviceID string) DevicePreferences {
	return DevicePreferences{
		DeviceID:        deviceID,
		Theme:           domain.ThemeDark,
		DefaultTemplate: string(cards.DefaultNewsTemplate),
		DefaultFont:     string(cards.DefaultFont),
	}
}

func (s *preferenceService) Get(ctx context.Context, deviceID string) (DevicePreferences, error) {
	if !auth.ValidDeviceID(deviceID) {
		return DevicePreferences{}, errDeviceRequired
	}
	prefs, err := s.devices.GetPreferences(ctx, deviceID)
	if repositories.IsNotFound(err) {
		return defaultPreferences(deviceID), nil
	}
	if err != nil {
		return DevicePreferences{}, err
	}
	if prefs.Theme == "" {
		prefs.Theme = domain.ThemeDark
	}
	return prefs, nil
}

func (s *preferenceService) Update(ctx context.Context, cmd UpdatePreferencesCommand) (DevicePreferences, error) {
	prefs, err := s.Get(ctx, cmd.DeviceID)
	if err != nil {
		return DevicePreferences{}, err
	}

	if cmd.Theme != nil {
		theme := domain.Theme(strings.ToLower(strings.TrimSpace(*cmd.Theme)))
		if theme != domain.ThemeLight && theme != domain.ThemeDark {
			return DevicePreferences{}, errInvalidTheme
		}
		prefs.Theme = theme
	}
	if cmd.CustomLogo != nil {
		logo := strings.TrimSpace(*cmd.CustomLogo)
		if logo != "" {
			asset, err := decodeImage(logo, "", s.maxLogoBytes)
			if err != nil {
				return DevicePreferences{}, err
			}
			logo = asset.dataURL()
		}
		prefs.CustomLogo = logo
	}
	if cmd.DefaultTemplate != nil {
		id := strings.TrimSpace(*cmd.DefaultTemplate)
		if _, ok := cards.LookupTemplate(id); !ok {
			return DevicePreferences{}, fmt.Errorf("%w: %q", errUnknownTemplate, id)
		}
		prefs.DefaultTemplate = id
	}
	if cmd.DefaultFont != nil {
		id := strings.TrimSpace(*cmd.DefaultFont)
		if _, ok := cards.LookupFont(id); !ok {
			return DevicePreferences{}, fmt.Errorf("%w: %q", errUnknownFont, id)
		}
		prefs.DefaultFont = id
	}

	return s.save(ctx, prefs)
}

func (s *preferenceService) SetCustomLogo(ctx context.Context, deviceID, logo string) (DevicePreferences, error) {
	return s.Update(ctx, UpdatePreferencesCommand{DeviceID: deviceID, CustomLogo: &logo})
}

func (s *preferenceService) save(ctx context.Context, prefs DevicePreferences) (DevicePreferences, error) {
	prefs.UpdatedAt = s.clock()
	if err := s.devices.SavePreferences(ctx, prefs); err != nil {
		return DevicePreferences{}, err
	}
	s.markTouched(prefs.DeviceID, prefs.UpdatedAt)
	return prefs, nil
}

func (s *preferenceService) Touch(ctx context.Context, deviceID string) error {
	if !auth.ValidDeviceID(deviceID) {
		return errDeviceRequired
	}
	now := s.clock()
	s.mu.Lock()
	last, ok := s.touched[deviceID]
	s.mu.Unlock()
	if ok && now.Sub(last) < s.touchInterval {
		return nil
	}
	if err := s.devices.Touch(ctx, deviceID, now); err != nil {
		s.log(ctx, "preferences.touch_failed", map[string]any{"error": err.Error()})
		return err
	}
	s.markTouched(deviceID, now)
	return nil
}

func (s *preferenceService) markTouched(deviceID string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Entries older than the interval are useless; drop them as the map grows.
	if len(s.touched) > 10000 {
		for id, seen := range s.touched {
			if at.Sub(seen) >= s.touchInterval {
				delete(s.touched, id)
			}
		}
	}
	s.touched[deviceID] = at
}

func (s *preferenceService) log(ctx context.Context, event string, fields map[string]any) {
	if s.logger != nil {
		s.logger(ctx, event, fields)
	}
}
