package services

import (
	"context"
	"crypto/rand"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"github.com/basherkella/cardstudio/internal/domain"
	"github.com/basherkella/cardstudio/internal/platform/auth"
	"github.com/basherkella/cardstudio/internal/platform/textutil"
	"github.com/basherkella/cardstudio/internal/repositories"
)

const (
	defaultAssetName  = "logo"
	maxAssetNameRunes = 120
	ownerLockStripes  = 64
)

var (
	errOwnerRequired = errors.New("gallery: owner is required")
	errAssetNotFound = errors.New("gallery: asset not found")
	errGalleryFull   = errors.New("gallery: gallery is full")
	errAssetIDEmpty  = errors.New("gallery: asset id is required")
)

var (
	// ErrGalleryOwnerRequired indicates neither a user nor a valid device id.
	ErrGalleryOwnerRequired = errOwnerRequired
	// ErrAssetNotFound indicates the asset does not exist for the owner.
	ErrAssetNotFound = errAssetNotFound
	// ErrGalleryFull indicates the owner's capacity is exhausted under the reject policy.
	ErrGalleryFull = errGalleryFull
)

// UploadRecorder records upload outcomes.
type UploadRecorder interface {
	RecordUpload(ctx context.Context, target, outcome string)
}

// GalleryServiceDeps bundles the dependencies of the gallery service.
type GalleryServiceDeps struct {
	// Users is the cloud gallery at users/{uid}/assets.
	Users repositories.GalleryRepository
	// Guests is the device-local gallery.
	Guests       repositories.GalleryRepository
	Preferences  PreferenceService
	Metrics      UploadRecorder
	MaxItemBytes int
	GuestLimits  domain.GalleryLimits
	UserLimits   domain.GalleryLimits
	Clock        func() time.Time
	Logger       Logger
}

type galleryService struct {
	users        repositories.GalleryRepository
	guests       repositories.GalleryRepository
	preferences  PreferenceService
	metrics      UploadRecorder
	maxItemBytes int
	guestLimits  domain.GalleryLimits
	userLimits   domain.GalleryLimits
	clock        func() time.Time
	logger       Logger

	locks   [ownerLockStripes]sync.Mutex
	idMu    sync.Mutex
	entropy *ulid.MonotonicEntropy
}

var _ GalleryService = (*galleryService)(nil)

// NewGalleryService wires both gallery targets.
func NewGalleryService(deps GalleryServiceDeps) (GalleryService, error) {
	if deps.Users == nil {
		return nil, errors.New("gallery service: user gallery repository is required")
	}
	if deps.Guests == nil {
		return nil, errors.New("gallery service: guest gallery repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	maxItem := deps.MaxItemBytes
	if maxItem <= 0 {
		maxItem = domain.MaxAssetBytes
	}
	guest := deps.GuestLimits
	if guest.Policy == "" {
		guest.Policy = domain.CapacityReject
	}
	user := deps.UserLimits
	// Users never evict silently.
	user.Policy = domain.CapacityReject
	return &galleryService{
		users:        deps.Users,
		guests:       deps.Guests,
		preferences:  deps.Preferences,
		metrics:      deps.Metrics,
		maxItemBytes: maxItem,
		guestLimits:  guest,
		userLimits:   user,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger:  deps.Logger,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}, nil
}

type galleryTarget struct {
	repo   repositories.GalleryRepository
	key    string
	name   string
	limits domain.GalleryLimits
}

func (s *galleryService) target(owner Owner) (galleryTarget, error) {
	if uid := strings.TrimSpace(owner.UserID); uid != "" {
		return galleryTarget{repo: s.users, key: uid, name: "user", limits: s.userLimits}, nil
	}
	if auth.ValidDeviceID(owner.DeviceID) {
		return galleryTarget{repo: s.guests, key: owner.DeviceID, name: "guest", limits: s.guestLimits}, nil
	}
	return galleryTarget{}, errOwnerRequired
}

func (s *galleryService) List(ctx context.Context, owner Owner) ([]StorageItem, error) {
	target, err := s.target(owner)
	if err != nil {
		return nil, err
	}
	items, err := target.repo.List(ctx, target.key)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []StorageItem{}
	}
	return items, nil
}

func (s *galleryService) Upload(ctx context.Context, owner Owner, cmd UploadCommand) (StorageItem, error) {
	target, err := s.target(owner)
	if err != nil {
		return StorageItem{}, err
	}
	item, err := s.upload(ctx, target, cmd)
	if s.metrics != nil {
		s.metrics.RecordUpload(ctx, target.name, uploadOutcome(err))
	}
	return item, err
}

func (s *galleryService) upload(ctx context.Context, target galleryTarget, cmd UploadCommand) (StorageItem, error) {
	// Size and type checks come before any store access.
	image, err := decodeImage(cmd.Data, cmd.ContentType, s.maxItemBytes)
	if err != nil {
		return StorageItem{}, err
	}

	now := s.clock()
	item := StorageItem{
		ID:   s.newID(now),
		Name: assetName(cmd.Name),
		Data: image.dataURL(),
		Date: now,
		Size: len(image.data),
	}

	lock := s.lockFor(target.name + ":" + target.key)
	lock.Lock()
	defer lock.Unlock()

	evict, err := s.makeRoom(ctx, target, item.Size)
	if err != nil {
		return StorageItem{}, err
	}
	// Insert before evicting so a failed write never costs stored items.
	if err := target.repo.Insert(ctx, target.key, item); err != nil {
		return StorageItem{}, err
	}
	for _, old := range evict {
		if err := target.repo.Delete(ctx, target.key, old.ID); err != nil && !repositories.IsNotFound(err) {
			// The new item is stored; the next upload retries the eviction.
			s.log(ctx, "gallery.evict_failed", map[string]any{"target": target.name, "assetId": old.ID, "error": err.Error()})
			continue
		}
		s.log(ctx, "gallery.evicted", map[string]any{"target": target.name, "assetId": old.ID})
	}
	return item, nil
}

// makeRoom returns the items to evict so one more item of size fits, or
// errGalleryFull under the reject policy.
func (s *galleryService) makeRoom(ctx context.Context, target galleryTarget, size int) ([]StorageItem, error) {
	limits := target.limits
	if limits.MaxItems <= 0 && limits.MaxBytes <= 0 {
		return nil, nil
	}
	if limits.MaxBytes > 0 && size > limits.MaxBytes {
		return nil, errGalleryFull
	}
	items, err := target.repo.List(ctx, target.key)
	if err != nil {
		return nil, err
	}
	total := 0
	for _, item := range items {
		total += item.Size
	}
	fits := func(count, bytes int) bool {
		if limits.MaxItems > 0 && count+1 > limits.MaxItems {
			return false
		}
		return limits.MaxBytes <= 0 || bytes+size <= limits.MaxBytes
	}
	if fits(len(items), total) {
		return nil, nil
	}
	if limits.Policy != domain.CapacityEvictOldest {
		return nil, errGalleryFull
	}

	// items are newest first, so evict from the tail.
	var evict []StorageItem
	count := len(items)
	for i := len(items) - 1; i >= 0 && !fits(count, total); i-- {
		evict = append(evict, items[i])
		count--
		total -= items[i].Size
	}
	return evict, nil
}

func (s *galleryService) Delete(ctx context.Context, owner Owner, id string) error {
	target, err := s.target(owner)
	if err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return errAssetIDEmpty
	}
	lock := s.lockFor(target.name + ":" + target.key)
	lock.Lock()
	defer lock.Unlock()
	if err := target.repo.Delete(ctx, target.key, id); err != nil {
		if repositories.IsNotFound(err) {
			return errAssetNotFound
		}
		return err
	}
	return nil
}

func (s *galleryService) Select(ctx context.Context, owner Owner, id string) (DevicePreferences, error) {
	if s.preferences == nil {
		return DevicePreferences{}, errors.New("gallery: preferences not configured")
	}
	if !auth.ValidDeviceID(owner.DeviceID) {
		return DevicePreferences{}, errDeviceRequired
	}
	target, err := s.target(owner)
	if err != nil {
		return DevicePreferences{}, err
	}
	item, err := target.repo.Get(ctx, target.key, strings.TrimSpace(id))
	if err != nil {
		if repositories.IsNotFound(err) {
			return DevicePreferences{}, errAssetNotFound
		}
		return DevicePreferences{}, err
	}
	return s.preferences.SetCustomLogo(ctx, owner.DeviceID, item.Data)
}

func (s *galleryService) lockFor(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &s.locks[h.Sum32()%ownerLockStripes]
}

func (s *galleryService) newID(at time.Time) string {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), s.entropy).String()
}

func assetName(name string) string {
	name = textutil.Normalize(name)
	if name == "" {
		return defaultAssetName
	}
	if utf8.RuneCountInString(name) > maxAssetNameRunes {
		name = string([]rune(name)[:maxAssetNameRunes])
	}
	return name
}

func uploadOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, errAssetTooLarge):
		return "too_large"
	case errors.Is(err, errGalleryFull):
		return "full"
	case errors.Is(err, errUnsupportedImage), errors.Is(err, errInvalidImageData):
		return "rejected"
	default:
		return "failed"
	}
}

func (s *galleryService) log(ctx context.Context, event string, fields map[string]any) {
	if s.logger != nil {
		s.logger(ctx, event, fields)
	}
}
