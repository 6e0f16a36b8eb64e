package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/basherkella/cardstudio/internal/domain"
	pfirestore "github.com/basherkella/cardstudio/internal/platform/firestore"
	"github.com/basherkella/cardstudio/internal/repositories"
)

const (
	userCollection  = "users"
	assetCollection = "assets"

	// maxTransactionWrites is Firestore's per-transaction write limit.
	maxTransactionWrites = 500
	profileTxAttempts    = 3
	profileTxTimeout     = 10 * time.Second
)

var errCascadeTooLarge = errors.New("profile delete exceeds one transaction")

type profileDocument struct {
	UID         string    `firestore:"uid"`
	Email       string    `firestore:"email"`
	Phone       string    `firestore:"phone"`
	DisplayName string    `firestore:"displayName"`
	PhotoURL    string    `firestore:"photoURL"`
	Role        string    `firestore:"role"`
	Status      string    `firestore:"status"`
	CreatedAt   time.Time `firestore:"createdAt"`
	LastLogin   time.Time `firestore:"lastLogin"`
}

// ProfileRepository stores profiles at users/{uid}.
type ProfileRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[profileDocument]
}

var _ repositories.ProfileRepository = (*ProfileRepository)(nil)

// NewProfileRepository builds a ProfileRepository.
func NewProfileRepository(provider *pfirestore.Provider) (*ProfileRepository, error) {
	if provider == nil {
		return nil, errors.New("profile repository requires firestore provider")
	}
	return &ProfileRepository{
		provider: provider,
		base:     pfirestore.NewBaseRepository[profileDocument](provider, userCollection, nil, nil),
	}, nil
}

// Get loads uid.
func (r *ProfileRepository) Get(ctx context.Context, uid string) (domain.UserProfile, error) {
	doc, err := r.base.Get(ctx, uid)
	if err != nil {
		return domain.UserProfile{}, err
	}
	return toProfile(doc.ID, doc.Data), nil
}

// Create writes profile only when absent.
func (r *ProfileRepository) Create(ctx context.Context, profile domain.UserProfile) error {
	if strings.TrimSpace(profile.UID) == "" {
		return errors.New("profile uid is required")
	}
	return r.base.Create(ctx, profile.UID, fromProfile(profile))
}

// TouchLogin bumps lastLogin.
func (r *ProfileRepository) TouchLogin(ctx context.Context, uid string, at time.Time) error {
	return r.base.Update(ctx, uid, []firestore.Update{{Path: "lastLogin", Value: at.UTC()}})
}

// UpdateStatus sets status and returns the stored profile.
func (r *ProfileRepository) UpdateStatus(ctx context.Context, uid string, status domain.ProfileStatus) (domain.UserProfile, error) {
	return r.updateField(ctx, uid, "status", string(status))
}

// UpdateRole sets role and returns the stored profile.
func (r *ProfileRepository) UpdateRole(ctx context.Context, uid string, role domain.Role) (domain.UserProfile, error) {
	return r.updateField(ctx, uid, "role", string(role))
}

// updateField reads and writes in one transaction so the returned profile
// is exactly what was committed.
func (r *ProfileRepository) updateField(ctx context.Context, uid, field, value string) (domain.UserProfile, error) {
	ref, err := r.base.DocumentRef(ctx, uid)
	if err != nil {
		return domain.UserProfile{}, err
	}
	var updated domain.UserProfile
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return pfirestore.WrapError("users.get", err)
		}
		doc, err := r.base.Decode(ctx, snap)
		if err != nil {
			return err
		}
		next, err := applyProfileField(doc.Data, field, value)
		if err != nil {
			return err
		}
		if err := tx.Update(ref, []firestore.Update{{Path: field, Value: value}}); err != nil {
			return err
		}
		updated = toProfile(doc.ID, next)
		return nil
	}, pfirestore.WithTxAttempts(profileTxAttempts), pfirestore.WithTxTimeout(profileTxTimeout))
	if err != nil {
		return domain.UserProfile{}, err
	}
	return updated, nil
}

func applyProfileField(doc profileDocument, field, value string) (profileDocument, error) {
	switch field {
	case "status":
		doc.Status = value
	case "role":
		doc.Role = value
	default:
		return doc, fmt.Errorf("profile field %q is not updatable", field)
	}
	return doc, nil
}

// Delete removes the profile and its assets subcollection atomically. A
// gallery too large for one transaction is bulk-deleted first.
func (r *ProfileRepository) Delete(ctx context.Context, uid string) error {
	err := r.deleteCascade(ctx, uid)
	if !errors.Is(err, errCascadeTooLarge) {
		return err
	}
	if _, err := r.base.Child(uid, assetCollection).DeleteAll(ctx); err != nil {
		return err
	}
	return r.deleteCascade(ctx, uid)
}

func (r *ProfileRepository) deleteCascade(ctx context.Context, uid string) error {
	ref, err := r.base.DocumentRef(ctx, uid)
	if err != nil {
		return err
	}
	assets, err := r.base.Child(uid, assetCollection).CollectionRef(ctx)
	if err != nil {
		return err
	}
	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(ref); err != nil {
			return pfirestore.WrapError("users.get", err)
		}
		refs, err := tx.DocumentRefs(assets).GetAll()
		if err != nil {
			return err
		}
		if len(refs)+1 > maxTransactionWrites {
			return errCascadeTooLarge
		}
		for _, asset := range refs {
			if err := tx.Delete(asset); err != nil {
				return err
			}
		}
		return tx.Delete(ref)
	}, pfirestore.WithTxAttempts(profileTxAttempts), pfirestore.WithTxTimeout(profileTxTimeout))
}

// List returns all profiles newest first.
func (r *ProfileRepository) List(ctx context.Context) ([]domain.UserProfile, error) {
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("createdAt", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}
	profiles := make([]domain.UserProfile, 0, len(docs))
	for _, doc := range docs {
		profiles = append(profiles, toProfile(doc.ID, doc.Data))
	}
	return profiles, nil
}

func toProfile(id string, doc profileDocument) domain.UserProfile {
	role, err := domain.ParseRole(doc.Role)
	if err != nil {
		role = domain.RoleUser
	}
	// Unknown stored statuses stay pending so they never grant access.
	status, err := domain.ParseProfileStatus(doc.Status)
	if err != nil {
		status = domain.StatusPending
	}
	uid := doc.UID
	if uid == "" {
		uid = id
	}
	return domain.UserProfile{
		UID:         uid,
		Email:       doc.Email,
		Phone:       doc.Phone,
		DisplayName: doc.DisplayName,
		PhotoURL:    doc.PhotoURL,
		Role:        role,
		Status:      status,
		CreatedAt:   doc.CreatedAt.UTC(),
		LastLogin:   doc.LastLogin.UTC(),
	}
}

func fromProfile(p domain.UserProfile) profileDocument {
	return profileDocument{
		UID:         p.UID,
		Email:       p.Email,
		Phone:       p.Phone,
		DisplayName: p.DisplayName,
		PhotoURL:    p.PhotoURL,
		Role:        string(p.Role),
		Status:      string(p.Status),
		CreatedAt:   p.CreatedAt.UTC(),
		LastLogin:   p.LastLogin.UTC(),
	}
}
