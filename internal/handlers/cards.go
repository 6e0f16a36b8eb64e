package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/basherkella/cardstudio/internal/cards"
	"github.com/basherkella/cardstudio/internal/domain"
	"github.com/basherkella/cardstudio/internal/platform/auth"
	"github.com/basherkella/cardstudio/internal/platform/httpx"
	"github.com/basherkella/cardstudio/internal/platform/requestctx"
	"github.com/basherkella/cardstudio/internal/services"
)

const (
	// Cards carry inline data URL images.
	maxCardBodySize = 8 * 1024 * 1024

	captureModeDownload = "download"
	captureModePreview  = "preview"
	captureModeExport   = "export"
)

// CardHandlers exposes layout and capture endpoints.
type CardHandlers struct {
	gate    *AccessGate
	cards   services.CardService
	limiter rateLimiter
	clock   func() time.Time
}

// CardOption customises CardHandlers.
type CardOption func(*CardHandlers)

// WithCaptureRateLimit caps captures per caller per minute.
func WithCaptureRateLimit(perMinute int, clock func() time.Time) CardOption {
	return func(h *CardHandlers) {
		h.limiter = newSimpleRateLimiter(perMinute, time.Minute, clock)
	}
}

// WithCardClock overrides the clock used for download file names.
func WithCardClock(clock func() time.Time) CardOption {
	return func(h *CardHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// NewCardHandlers constructs the card handlers.
func NewCardHandlers(gate *AccessGate, svc services.CardService, opts ...CardOption) *CardHandlers {
	h := &CardHandlers{gate: gate, cards: svc, clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers /cards:render and /cards:capture on the API root.
func (h *CardHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.With(h.gate.ApprovedOrGuest()).Post("/cards:render", h.render)
	r.With(h.gate.ApprovedOrGuest()).Post("/cards:capture", h.capture)
}

type cardRequest struct {
	Kind             string   `json:"kind"`
	Template         string   `json:"template"`
	Headline         string   `json:"headline"`
	Body             string   `json:"body"`
	Source           string   `json:"source"`
	Images           []string `json:"images"`
	Logo             string   `json:"logo"`
	Font             string   `json:"font"`
	QuoteIcon        int      `json:"quoteIcon"`
	ImageTransparent bool     `json:"imageTransparent"`
	// Date is YYYY-MM-DD; empty means today.
	Date  string  `json:"date"`
	Scale float64 `json:"scale"`
}

func (req cardRequest) command(ctx context.Context) (services.RenderCommand, error) {
	kind, err := domain.ParseCardKind(req.Kind)
	if err != nil {
		return services.RenderCommand{}, err
	}
	var date time.Time
	if value := strings.TrimSpace(req.Date); value != "" {
		date, err = time.Parse(time.DateOnly, value)
		if err != nil {
			return services.RenderCommand{}, fmt.Errorf("date must be YYYY-MM-DD: %w", err)
		}
	}
	return services.RenderCommand{
		Input: cards.RenderInput{
			Kind:             kind,
			Template:         strings.TrimSpace(req.Template),
			Headline:         req.Headline,
			Body:             req.Body,
			Source:           req.Source,
			Images:           req.Images,
			Logo:             req.Logo,
			Font:             strings.TrimSpace(req.Font),
			QuoteIcon:        req.QuoteIcon,
			ImageTransparent: req.ImageTransparent,
			Date:             date,
		},
		DeviceID: requestctx.DeviceID(ctx),
	}, nil
}

func (h *CardHandlers) decode(w http.ResponseWriter, r *http.Request) (cardRequest, services.RenderCommand, bool) {
	ctx := r.Context()
	if h.cards == nil {
		writeUnavailable(ctx, w, "cards_unavailable", "card service is unavailable")
		return cardRequest{}, services.RenderCommand{}, false
	}
	var req cardRequest
	if !decodeJSONBody(w, r, maxCardBodySize, &req) {
		return cardRequest{}, services.RenderCommand{}, false
	}
	cmd, err := req.command(ctx)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return cardRequest{}, services.RenderCommand{}, false
	}
	return req, cmd, true
}

func (h *CardHandlers) render(w http.ResponseWriter, r *http.Request) {
	_, cmd, ok := h.decode(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	layout, err := h.cards.Render(ctx, cmd)
	if err != nil {
		writeCardError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"layout": layout})
}

func (h *CardHandlers) capture(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	mode := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("mode")))
	if mode == "" {
		mode = captureModeDownload
	}
	switch mode {
	case captureModeDownload, captureModePreview, captureModeExport:
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_mode", "mode must be download, preview or export", http.StatusBadRequest))
		return
	}
	if !allowRequest(w, r, h.limiter) {
		return
	}
	req, render, ok := h.decode(w, r)
	if !ok {
		return
	}
	capture := services.CaptureCommand{RenderCommand: render, Scale: req.Scale}

	if mode == captureModeExport {
		h.export(w, r, capture)
		return
	}

	result, err := h.cards.Capture(ctx, capture)
	if err != nil {
		writeCardError(ctx, w, err)
		return
	}
	disposition := "inline"
	if mode == captureModeDownload {
		disposition = "attachment"
	}
	name := fmt.Sprintf("card-%s-%d.png", result.Template, h.clock().Unix())
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, name))
	w.Header().Set("Content-Length", strconv.Itoa(len(result.PNG)))
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Card-Template", string(result.Template))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.PNG)
}

type exportPayload struct {
	Object    string  `json:"object"`
	URL       string  `json:"url"`
	ExpiresAt string  `json:"expiresAt"`
	Template  string  `json:"template"`
	Fallback  bool    `json:"fallback"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	Scale     float64 `json:"scale"`
}

func (h *CardHandlers) export(w http.ResponseWriter, r *http.Request, capture services.CaptureCommand) {
	ctx := r.Context()
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || identity.UID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "sign in to export cards", http.StatusUnauthorized))
		return
	}
	result, err := h.cards.Export(ctx, services.ExportCommand{CaptureCommand: capture, ActorID: identity.UID})
	if err != nil {
		writeCardError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, exportPayload{
		Object:    result.Object,
		URL:       result.URL,
		ExpiresAt: formatTime(result.ExpiresAt),
		Template:  string(result.Template),
		Fallback:  result.Fallback,
		Width:     result.Width,
		Height:    result.Height,
		Scale:     result.Scale,
	})
}

func writeCardError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrRasterizerUnavailable):
		writeUnavailable(ctx, w, "rasterizer_unavailable", "card capture is not configured")
	case errors.Is(err, services.ErrExportDisabled):
		httpx.WriteError(ctx, w, httpx.NewError("exports_disabled", "card export is disabled", http.StatusForbidden))
	case errors.Is(err, services.ErrExportActorRequired):
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "sign in to export cards", http.StatusUnauthorized))
	case errors.Is(err, context.DeadlineExceeded):
		httpx.WriteError(ctx, w, httpx.NewError("capture_timeout", "card capture timed out", http.StatusGatewayTimeout))
	case errors.Is(err, services.ErrCaptureFailed):
		httpx.WriteError(ctx, w, httpx.NewError("capture_failed", "card capture failed, try again", http.StatusBadGateway))
	default:
		writeStoreError(ctx, w, err)
	}
}
