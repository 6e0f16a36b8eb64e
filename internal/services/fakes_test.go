package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/basherkella/cardstudio/internal/domain"
)

type fakeRepoError struct {
	err         error
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *fakeRepoError) Error() string       { return e.err.Error() }
func (e *fakeRepoError) Unwrap() error       { return e.err }
func (e *fakeRepoError) IsNotFound() bool    { return e.notFound }
func (e *fakeRepoError) IsConflict() bool    { return e.conflict }
func (e *fakeRepoError) IsUnavailable() bool { return e.unavailable }

func notFoundErr(what string) error {
	return &fakeRepoError{err: errors.New(what + " not found"), notFound: true}
}

type memoryProfileRepo struct {
	mu        sync.Mutex
	store     map[string]domain.UserProfile
	getErr    error
	createErr error
	updateErr error
	deleteErr error
	touches   int
	creates   int
}

func newMemoryProfileRepo(profiles ...domain.UserProfile) *memoryProfileRepo {
	repo := &memoryProfileRepo{store: map[string]domain.UserProfile{}}
	for _, p := range profiles {
		repo.store[p.UID] = p
	}
	return repo
}

func (r *memoryProfileRepo) Get(_ context.Context, uid string) (domain.UserProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return domain.UserProfile{}, r.getErr
	}
	p, ok := r.store[uid]
	if !ok {
		return domain.UserProfile{}, notFoundErr("profile")
	}
	return p, nil
}

func (r *memoryProfileRepo) Create(_ context.Context, profile domain.UserProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creates++
	if r.createErr != nil {
		return r.createErr
	}
	if _, ok := r.store[profile.UID]; ok {
		return &fakeRepoError{err: errors.New("exists"), conflict: true}
	}
	r.store[profile.UID] = profile
	return nil
}

func (r *memoryProfileRepo) TouchLogin(_ context.Context, uid string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.store[uid]
	if !ok {
		return notFoundErr("profile")
	}
	r.touches++
	p.LastLogin = at
	r.store[uid] = p
	return nil
}

func (r *memoryProfileRepo) UpdateStatus(_ context.Context, uid string, status domain.ProfileStatus) (domain.UserProfile, error) {
	return r.update(uid, func(p *domain.UserProfile) { p.Status = status })
}

func (r *memoryProfileRepo) UpdateRole(_ context.Context, uid string, role domain.Role) (domain.UserProfile, error) {
	return r.update(uid, func(p *domain.UserProfile) { p.Role = role })
}

func (r *memoryProfileRepo) update(uid string, mutate func(*domain.UserProfile)) (domain.UserProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return domain.UserProfile{}, r.updateErr
	}
	p, ok := r.store[uid]
	if !ok {
		return domain.UserProfile{}, notFoundErr("profile")
	}
	mutate(&p)
	r.store[uid] = p
	return p, nil
}

func (r *memoryProfileRepo) Delete(_ context.Context, uid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteErr != nil {
		return r.deleteErr
	}
	if _, ok := r.store[uid]; !ok {
		return notFoundErr("profile")
	}
	delete(r.store, uid)
	return nil
}

func (r *memoryProfileRepo) List(context.Context) ([]domain.UserProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	out := make([]domain.UserProfile, 0, len(r.store))
	for _, p := range r.store {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type memoryGalleryRepo struct {
	mu        sync.Mutex
	items     map[string][]domain.StorageItem
	insertErr error
	deleteErr error
	inserts   int
	lists     int
}

func newMemoryGalleryRepo() *memoryGalleryRepo {
	return &memoryGalleryRepo{items: map[string][]domain.StorageItem{}}
}

func (r *memoryGalleryRepo) List(_ context.Context, owner string) ([]domain.StorageItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lists++
	out := append([]domain.StorageItem(nil), r.items[owner]...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].ID > out[j].ID
		}
		return out[i].Date.After(out[j].Date)
	})
	return out, nil
}

func (r *memoryGalleryRepo) Get(_ context.Context, owner, id string) (domain.StorageItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.items[owner] {
		if item.ID == id {
			return item, nil
		}
	}
	return domain.StorageItem{}, notFoundErr("asset")
}

func (r *memoryGalleryRepo) Insert(_ context.Context, owner string, item domain.StorageItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inserts++
	if r.insertErr != nil {
		return r.insertErr
	}
	r.items[owner] = append(r.items[owner], item)
	return nil
}

func (r *memoryGalleryRepo) Delete(_ context.Context, owner, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteErr != nil {
		return r.deleteErr
	}
	items := r.items[owner]
	for i, item := range items {
		if item.ID == id {
			r.items[owner] = append(items[:i:i], items[i+1:]...)
			return nil
		}
	}
	return notFoundErr("asset")
}

type memoryDeviceRepo struct {
	mu      sync.Mutex
	seen    map[string]time.Time
	prefs   map[string]domain.DevicePreferences
	touches int
	saveErr error
}

func newMemoryDeviceRepo() *memoryDeviceRepo {
	return &memoryDeviceRepo{seen: map[string]time.Time{}, prefs: map[string]domain.DevicePreferences{}}
}

func (r *memoryDeviceRepo) Touch(_ context.Context, deviceID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touches++
	r.seen[deviceID] = at
	return nil
}

func (r *memoryDeviceRepo) GetPreferences(_ context.Context, deviceID string) (domain.DevicePreferences, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.prefs[deviceID]
	if !ok {
		return domain.DevicePreferences{}, notFoundErr("preferences")
	}
	return p, nil
}

func (r *memoryDeviceRepo) SavePreferences(_ context.Context, prefs domain.DevicePreferences) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.prefs[prefs.DeviceID] = prefs
	return nil
}

func (r *memoryDeviceRepo) PruneInactive(_ context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, at := range r.seen {
		if at.Before(cutoff) {
			delete(r.seen, id)
			delete(r.prefs, id)
			removed++
		}
	}
	return removed, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event domain.Event) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.events = append(p.events, event)
	return "msg-1", nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fakeIdentityAdmin struct {
	mu       sync.Mutex
	claims   map[string]string
	revoked  []string
	claimErr error
}

func (f *fakeIdentityAdmin) SetRoleClaim(_ context.Context, uid, role string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimErr != nil {
		return f.claimErr
	}
	if f.claims == nil {
		f.claims = map[string]string{}
	}
	f.claims[uid] = role
	return nil
}

func (f *fakeIdentityAdmin) RevokeSessions(_ context.Context, uid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, uid)
	return nil
}

type recordingLogger struct {
	mu     sync.Mutex
	events []string
}

func (l *recordingLogger) log(_ context.Context, event string, _ map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *recordingLogger) has(event string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.events {
		if e == event {
			return true
		}
	}
	return false
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
