package firestore

import (
	"context"
	"errors"
	"sort"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/basherkella/cardstudio/internal/domain"
	pfirestore "github.com/basherkella/cardstudio/internal/platform/firestore"
	"github.com/basherkella/cardstudio/internal/repositories"
)

type assetDocument struct {
	Name string    `firestore:"name"`
	Data string    `firestore:"data"`
	Date time.Time `firestore:"date"`
	Size int       `firestore:"size"`
}

// GalleryRepository stores assets at users/{uid}/assets/{id}.
type GalleryRepository struct {
	users *pfirestore.BaseRepository[assetDocument]
}

var _ repositories.GalleryRepository = (*GalleryRepository)(nil)

// NewGalleryRepository builds a GalleryRepository.
func NewGalleryRepository(provider *pfirestore.Provider) (*GalleryRepository, error) {
	if provider == nil {
		return nil, errors.New("gallery repository requires firestore provider")
	}
	return &GalleryRepository{
		users: pfirestore.NewBaseRepository[assetDocument](provider, userCollection, nil, nil),
	}, nil
}

func (r *GalleryRepository) assets(uid string) *pfirestore.BaseRepository[assetDocument] {
	return r.users.Child(uid, assetCollection)
}

// List returns uid's assets newest first.
func (r *GalleryRepository) List(ctx context.Context, uid string) ([]domain.StorageItem, error) {
	docs, err := r.assets(uid).Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("date", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}
	items := make([]domain.StorageItem, 0, len(docs))
	for _, doc := range docs {
		items = append(items, toItem(doc.ID, doc.Data))
	}
	// Firestore orders by date only; settle ties by id.
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Date.Equal(items[j].Date) {
			return items[i].ID > items[j].ID
		}
		return items[i].Date.After(items[j].Date)
	})
	return items, nil
}

// Get loads one asset.
func (r *GalleryRepository) Get(ctx context.Context, uid, id string) (domain.StorageItem, error) {
	doc, err := r.assets(uid).Get(ctx, id)
	if err != nil {
		return domain.StorageItem{}, err
	}
	return toItem(doc.ID, doc.Data), nil
}

// Insert creates the asset under its id.
func (r *GalleryRepository) Insert(ctx context.Context, uid string, item domain.StorageItem) error {
	return r.assets(uid).Create(ctx, item.ID, assetDocument{
		Name: item.Name,
		Data: item.Data,
		Date: item.Date.UTC(),
		Size: item.Size,
	})
}

// Delete removes the asset, reporting not found for unknown ids.
func (r *GalleryRepository) Delete(ctx context.Context, uid, id string) error {
	ref, err := r.assets(uid).DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx, firestore.Exists); err != nil {
		return pfirestore.WrapError("assets.delete", err)
	}
	return nil
}

func toItem(id string, doc assetDocument) domain.StorageItem {
	return domain.StorageItem{ID: id, Name: doc.Name, Data: doc.Data, Date: doc.Date.UTC(), Size: doc.Size}
}
