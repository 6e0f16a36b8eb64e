package storage

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/oklog/ulid/v2"
)

const (
	defaultSignedURLTTL = 15 * time.Minute
	maxSignedURLTTL     = 7 * 24 * time.Hour
	pngContentType      = "image/png"
)

var (
	// ErrExportDisabled is returned when no bucket is configured.
	ErrExportDisabled = errors.New("storage: exports are disabled")
	errOwnerRequired  = errors.New("storage: owner id is required")
	errEmptyPayload   = errors.New("storage: payload is empty")
)

// ObjectStore writes immutable objects.
type ObjectStore interface {
	Write(ctx context.Context, bucket, object, contentType string, data []byte) error
}

// GCSStore writes objects with the Cloud Storage client.
type GCSStore struct {
	client *gcs.Client
}

// NewGCSStore wraps client.
func NewGCSStore(client *gcs.Client) *GCSStore {
	return &GCSStore{client: client}
}

// Write uploads data, failing if the object already exists.
func (s *GCSStore) Write(ctx context.Context, bucket, object, contentType string, data []byte) error {
	if s == nil || s.client == nil {
		return errors.New("storage: client is not initialised")
	}
	w := s.client.Bucket(bucket).Object(object).If(gcs.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "private, max-age=0"
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return fmt.Errorf("storage: write %s: %w", object, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("storage: finalize %s: %w", object, err)
	}
	return nil
}

// ExportResult describes an uploaded card.
type ExportResult struct {
	Object    string
	URL       string
	ExpiresAt time.Time
}

// Exporter uploads rendered cards and returns signed download URLs.
type Exporter struct {
	store  ObjectStore
	signer Signer
	bucket string
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entropy io.Reader
}

// ExporterOption customises an Exporter.
type ExporterOption func(*Exporter)

// WithSignedURLTTL overrides the download URL lifetime.
func WithSignedURLTTL(ttl time.Duration) ExporterOption {
	return func(e *Exporter) {
		if ttl > 0 && ttl <= maxSignedURLTTL {
			e.ttl = ttl
		}
	}
}

// WithClock injects the time source.
func WithClock(now func() time.Time) ExporterOption {
	return func(e *Exporter) {
		if now != nil {
			e.now = now
		}
	}
}

// NewExporter builds an Exporter. An empty bucket yields a disabled exporter
// whose Export always returns ErrExportDisabled.
func NewExporter(store ObjectStore, signer Signer, bucket string, opts ...ExporterOption) (*Exporter, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket != "" {
		if store == nil {
			return nil, errors.New("storage: object store is required")
		}
		if signer == nil || strings.TrimSpace(signer.Email()) == "" {
			return nil, errors.New("storage: signer is required")
		}
	}
	e := &Exporter{
		store:   store,
		signer:  signer,
		bucket:  bucket,
		ttl:     defaultSignedURLTTL,
		now:     time.Now,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e, nil
}

// Enabled reports whether exports are configured.
func (e *Exporter) Enabled() bool { return e != nil && e.bucket != "" }

// Export uploads a PNG for ownerID and signs a GET URL for it.
func (e *Exporter) Export(ctx context.Context, ownerID string, png []byte) (ExportResult, error) {
	if !e.Enabled() {
		return ExportResult{}, ErrExportDisabled
	}
	if len(png) == 0 {
		return ExportResult{}, errEmptyPayload
	}
	now := e.now().UTC()
	object, err := ExportObjectPath(ownerID, now, e.newID(now))
	if err != nil {
		return ExportResult{}, err
	}
	if err := e.store.Write(ctx, e.bucket, object, pngContentType, png); err != nil {
		return ExportResult{}, err
	}

	expires := now.Add(e.ttl)
	url, err := gcs.SignedURL(e.bucket, object, &gcs.SignedURLOptions{
		GoogleAccessID: e.signer.Email(),
		Method:         "GET",
		Expires:        expires,
		Scheme:         gcs.SigningSchemeV4,
		SignBytes: func(payload []byte) ([]byte, error) {
			return e.signer.SignBytes(ctx, payload)
		},
	})
	if err != nil {
		return ExportResult{}, fmt.Errorf("storage: sign download url: %w", err)
	}
	return ExportResult{Object: object, URL: url, ExpiresAt: expires}, nil
}

func (e *Exporter) newID(at time.Time) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), e.entropy).String()
}

// ExportObjectPath returns exports/{owner}/{yyyy}/{mm}/{id}.png.
func ExportObjectPath(ownerID string, at time.Time, id string) (string, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return "", errOwnerRequired
	}
	if strings.ContainsAny(ownerID, "/\\") || strings.Contains(ownerID, "..") {
		return "", fmt.Errorf("storage: owner id %q contains path characters", ownerID)
	}
	id = strings.TrimSpace(id)
	if id == "" || strings.ContainsAny(id, "/\\.") {
		return "", fmt.Errorf("storage: invalid object id %q", id)
	}
	at = at.UTC()
	return fmt.Sprintf("exports/%s/%04d/%02d/%s.png", ownerID, at.Year(), int(at.Month()), id), nil
}
