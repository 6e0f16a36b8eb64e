package local

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/basherkella/cardstudio/internal/domain"
	"github.com/basherkella/cardstudio/internal/platform/localdb"
	"github.com/basherkella/cardstudio/internal/repositories"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DeviceRepository stores device activity and preferences.
type DeviceRepository struct {
	db *localdb.DB
}

var _ repositories.DeviceRepository = (*DeviceRepository)(nil)

// NewDeviceRepository builds a DeviceRepository.
func NewDeviceRepository(db *localdb.DB) (*DeviceRepository, error) {
	if db == nil {
		return nil, errors.New("device repository requires local store")
	}
	return &DeviceRepository{db: db}, nil
}

// Touch records activity for deviceID, creating the device on first sight.
func (r *DeviceRepository) Touch(ctx context.Context, deviceID string, at time.Time) error {
	return wrap("devices.touch", touch(ctx, r.db.DB, deviceID, at))
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func touch(ctx context.Context, db execer, deviceID string, at time.Time) error {
	ts := at.UTC().Format(timeLayout)
	_, err := db.ExecContext(ctx, `INSERT INTO devices (device_id, first_seen, last_seen) VALUES (?, ?, ?)
        ON CONFLICT (device_id) DO UPDATE SET last_seen = excluded.last_seen`, deviceID, ts, ts)
	return err
}

// GetPreferences loads stored preferences.
func (r *DeviceRepository) GetPreferences(ctx context.Context, deviceID string) (domain.DevicePreferences, error) {
	var (
		prefs   domain.DevicePreferences
		theme   string
		updated string
	)
	err := r.db.QueryRowContext(ctx, `SELECT device_id, theme, custom_logo, default_template, default_font, updated_at
        FROM device_prefs WHERE device_id = ?`, deviceID).
		Scan(&prefs.DeviceID, &theme, &prefs.CustomLogo, &prefs.DefaultTemplate, &prefs.DefaultFont, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DevicePreferences{}, notFound("device_prefs.get", "preferences")
	}
	if err != nil {
		return domain.DevicePreferences{}, wrap("device_prefs.get", err)
	}
	prefs.Theme = domain.Theme(theme)
	prefs.UpdatedAt, _ = time.Parse(timeLayout, updated)
	return prefs, nil
}

// SavePreferences upserts every field.
func (r *DeviceRepository) SavePreferences(ctx context.Context, prefs domain.DevicePreferences) error {
	if strings.TrimSpace(prefs.DeviceID) == "" {
		return errors.New("device id is required")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return wrap("device_prefs.save", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := touch(ctx, tx, prefs.DeviceID, prefs.UpdatedAt); err != nil {
		return wrap("device_prefs.save", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO device_prefs (device_id, theme, custom_logo, default_template, default_font, updated_at)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT (device_id) DO UPDATE SET
            theme = excluded.theme,
            custom_logo = excluded.custom_logo,
            default_template = excluded.default_template,
            default_font = excluded.default_font,
            updated_at = excluded.updated_at`,
		prefs.DeviceID, string(prefs.Theme), prefs.CustomLogo, prefs.DefaultTemplate, prefs.DefaultFont,
		prefs.UpdatedAt.UTC().Format(timeLayout))
	if err != nil {
		return wrap("device_prefs.save", err)
	}
	return wrap("device_prefs.save", tx.Commit())
}

// PruneInactive deletes devices idle since before cutoff. Assets and
// preferences go with them through ON DELETE CASCADE.
func (r *DeviceRepository) PruneInactive(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE last_seen < ?`, cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, wrap("devices.prune", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrap("devices.prune", err)
	}
	return int(n), nil
}
