package local

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/basherkella/cardstudio/internal/domain"
	"github.com/basherkella/cardstudio/internal/platform/localdb"
	"github.com/basherkella/cardstudio/internal/repositories"
)

// GalleryRepository stores guest assets keyed by device id.
type GalleryRepository struct {
	db *localdb.DB
}

var _ repositories.GalleryRepository = (*GalleryRepository)(nil)

// NewGalleryRepository builds a GalleryRepository.
func NewGalleryRepository(db *localdb.DB) (*GalleryRepository, error) {
	if db == nil {
		return nil, errors.New("gallery repository requires local store")
	}
	return &GalleryRepository{db: db}, nil
}

// List returns the device's items newest first.
func (r *GalleryRepository) List(ctx context.Context, deviceID string) ([]domain.StorageItem, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, data, size, created_at FROM guest_assets
        WHERE device_id = ? ORDER BY created_at DESC, id DESC`, deviceID)
	if err != nil {
		return nil, wrap("guest_assets.list", err)
	}
	defer rows.Close()

	var items []domain.StorageItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, wrap("guest_assets.list", err)
		}
		items = append(items, item)
	}
	return items, wrap("guest_assets.list", rows.Err())
}

// Get loads one item.
func (r *GalleryRepository) Get(ctx context.Context, deviceID, id string) (domain.StorageItem, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, name, data, size, created_at FROM guest_assets
        WHERE device_id = ? AND id = ?`, deviceID, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.StorageItem{}, notFound("guest_assets.get", "asset")
	}
	return item, wrap("guest_assets.get", err)
}

// Insert stores item, registering the device if needed.
func (r *GalleryRepository) Insert(ctx context.Context, deviceID string, item domain.StorageItem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return wrap("guest_assets.insert", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := touch(ctx, tx, deviceID, item.Date); err != nil {
		return wrap("guest_assets.insert", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO guest_assets (id, device_id, name, data, size, created_at)
        VALUES (?, ?, ?, ?, ?, ?)`,
		item.ID, deviceID, item.Name, item.Data, item.Size, item.Date.UTC().Format(timeLayout))
	if err != nil {
		return wrap("guest_assets.insert", err)
	}
	return wrap("guest_assets.insert", tx.Commit())
}

// Delete removes one item.
func (r *GalleryRepository) Delete(ctx context.Context, deviceID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM guest_assets WHERE device_id = ? AND id = ?`, deviceID, id)
	if err != nil {
		return wrap("guest_assets.delete", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound("guest_assets.delete", "asset")
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (domain.StorageItem, error) {
	var (
		item    domain.StorageItem
		created string
	)
	if err := row.Scan(&item.ID, &item.Name, &item.Data, &item.Size, &created); err != nil {
		return domain.StorageItem{}, err
	}
	ts, err := time.Parse(timeLayout, created)
	if err != nil {
		return domain.StorageItem{}, err
	}
	item.Date = ts.UTC()
	return item, nil
}
