package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/basherkella/cardstudio/internal/platform/httpx"
	"github.com/basherkella/cardstudio/internal/services"
)

// Base64 of a 500 KB image plus JSON framing.
const maxUploadBodySize = 1024 * 1024

// GalleryHandlers exposes the brand mark gallery. Signed-in users get their
// cloud gallery; guests get the gallery of their device.
type GalleryHandlers struct {
	gate    *AccessGate
	gallery services.GalleryService
	limiter rateLimiter
}

// GalleryOption customises GalleryHandlers.
type GalleryOption func(*GalleryHandlers)

// WithUploadRateLimit caps uploads per caller per minute.
func WithUploadRateLimit(perMinute int, clock func() time.Time) GalleryOption {
	return func(h *GalleryHandlers) {
		h.limiter = newSimpleRateLimiter(perMinute, time.Minute, clock)
	}
}

// NewGalleryHandlers constructs the gallery handlers.
func NewGalleryHandlers(gate *AccessGate, gallery services.GalleryService, opts ...GalleryOption) *GalleryHandlers {
	h := &GalleryHandlers{gate: gate, gallery: gallery}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes wires the /gallery endpoints.
func (h *GalleryHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Use(h.gate.ApprovedOrGuest())
	r.Get("/", h.list)
	r.Post("/", h.upload)
	r.Delete("/{assetId}", h.delete)
	r.Post("/{assetId}:select", h.selectAsset)
}

type storageItemPayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Data string `json:"data"`
	Date string `json:"date"`
	Size int    `json:"size"`
}

func buildStorageItemPayload(item services.StorageItem) storageItemPayload {
	return storageItemPayload{
		ID:   item.ID,
		Name: item.Name,
		Data: item.Data,
		Date: formatTime(item.Date),
		Size: item.Size,
	}
}

func (h *GalleryHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.gallery == nil {
		writeUnavailable(ctx, w, "gallery_unavailable", "gallery service is unavailable")
		return
	}
	owner := requestOwner(ctx)
	items, err := h.gallery.List(ctx, owner)
	if err != nil {
		writeGalleryError(ctx, w, err)
		return
	}
	payload := make([]storageItemPayload, 0, len(items))
	for _, item := range items {
		payload = append(payload, buildStorageItemPayload(item))
	}
	target := "cloud"
	if owner.IsGuest() {
		target = "device"
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"items":  payload,
		"target": target,
	})
}

type uploadRequest struct {
	Name        string `json:"name"`
	Data        string `json:"data"`
	ContentType string `json:"contentType"`
}

func (h *GalleryHandlers) upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.gallery == nil {
		writeUnavailable(ctx, w, "gallery_unavailable", "gallery service is unavailable")
		return
	}
	if !allowRequest(w, r, h.limiter) {
		return
	}
	var req uploadRequest
	if !decodeJSONBody(w, r, maxUploadBodySize, &req) {
		return
	}
	item, err := h.gallery.Upload(ctx, requestOwner(ctx), services.UploadCommand{
		Name:        req.Name,
		Data:        req.Data,
		ContentType: req.ContentType,
	})
	if err != nil {
		writeGalleryError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, buildStorageItemPayload(item))
}

func (h *GalleryHandlers) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.gallery == nil {
		writeUnavailable(ctx, w, "gallery_unavailable", "gallery service is unavailable")
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "assetId"))
	if err := h.gallery.Delete(ctx, requestOwner(ctx), id); err != nil {
		writeGalleryError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *GalleryHandlers) selectAsset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.gallery == nil {
		writeUnavailable(ctx, w, "gallery_unavailable", "gallery service is unavailable")
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "assetId"))
	prefs, err := h.gallery.Select(ctx, requestOwner(ctx), id)
	if err != nil {
		writeGalleryError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildPreferencesPayload(prefs))
}

func writeGalleryError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrGalleryOwnerRequired), errors.Is(err, services.ErrDeviceRequired):
		httpx.WriteError(ctx, w, httpx.NewError("device_id_required", "X-Device-ID header missing or malformed", http.StatusBadRequest))
	case errors.Is(err, services.ErrAssetNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("asset_not_found", "asset not found", http.StatusNotFound))
	case errors.Is(err, services.ErrGalleryFull):
		httpx.WriteError(ctx, w, httpx.NewError("gallery_full", "gallery is full, delete an item first", http.StatusConflict))
	case errors.Is(err, services.ErrAssetTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("asset_too_large", err.Error(), http.StatusRequestEntityTooLarge))
	case errors.Is(err, services.ErrUnsupportedImage):
		httpx.WriteError(ctx, w, httpx.NewError("unsupported_image", err.Error(), http.StatusUnsupportedMediaType))
	case errors.Is(err, services.ErrInvalidImageData):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_image", err.Error(), http.StatusBadRequest))
	default:
		writeStoreError(ctx, w, err)
	}
}
