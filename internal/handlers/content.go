package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/basherkella/cardstudio/internal/domain"
	"github.com/basherkella/cardstudio/internal/platform/httpx"
	"github.com/basherkella/cardstudio/internal/services"
)

const (
	// CredentialHeader carries a caller-selected AI key for a retry after
	// an ai_credential_invalid response.
	CredentialHeader = "X-AI-Credential"

	maxGenerateBodySize = 256 * 1024
)

// ContentHandlers exposes the AI generation endpoint.
type ContentHandlers struct {
	gate        *AccessGate
	content     services.ContentService
	limiter     rateLimiter
	allowGuests bool
}

// ContentOption customises ContentHandlers.
type ContentOption func(*ContentHandlers)

// WithContentRateLimit caps generations per caller per minute.
func WithContentRateLimit(perMinute int, clock func() time.Time) ContentOption {
	return func(h *ContentHandlers) {
		h.limiter = newSimpleRateLimiter(perMinute, time.Minute, clock)
	}
}

// WithGuestGeneration lets signed-out devices call the AI tools.
func WithGuestGeneration(enabled bool) ContentOption {
	return func(h *ContentHandlers) {
		h.allowGuests = enabled
	}
}

// NewContentHandlers constructs the content handlers.
func NewContentHandlers(gate *AccessGate, content services.ContentService, opts ...ContentOption) *ContentHandlers {
	h := &ContentHandlers{gate: gate, content: content}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers POST /content:generate on the API root.
func (h *ContentHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	gate := h.gate.Approved()
	if h.allowGuests {
		gate = h.gate.ApprovedOrGuest()
	}
	r.With(gate).Post("/content:generate", h.generate)
}

type generateRequest struct {
	Tool     string `json:"tool"`
	CardKind string `json:"cardKind"`
	Text     string `json:"text"`
}

type generateResponse struct {
	Tool   domain.ToolKind `json:"tool"`
	Output json.RawMessage `json:"output"`
}

func (h *ContentHandlers) generate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.content == nil {
		writeUnavailable(ctx, w, "content_unavailable", "content service is unavailable")
		return
	}
	if !allowRequest(w, r, h.limiter) {
		return
	}

	var req generateRequest
	if !decodeJSONBody(w, r, maxGenerateBodySize, &req) {
		return
	}
	kind, err := domain.ParseToolKind(req.Tool)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_tool", err.Error(), http.StatusBadRequest))
		return
	}
	cardKind, err := domain.ParseCardKind(req.CardKind)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_card_kind", err.Error(), http.StatusBadRequest))
		return
	}

	output, err := h.content.Generate(ctx, services.GenerateCommand{
		Kind:               kind,
		CardKind:           cardKind,
		Text:               req.Text,
		ActorKey:           actorKey(r),
		CredentialOverride: strings.TrimSpace(r.Header.Get(CredentialHeader)),
	})
	if err != nil {
		writeContentError(ctx, w, err)
		return
	}
	body, err := domain.MarshalToolOutput(output)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "failed to encode output", http.StatusInternalServerError))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, generateResponse{Tool: kind, Output: body})
}

func writeContentError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrContentTextRequired):
		httpx.WriteError(ctx, w, httpx.NewError("text_required", "text is required", http.StatusBadRequest))
	case errors.Is(err, services.ErrContentTextTooLong):
		httpx.WriteError(ctx, w, httpx.NewError("text_too_long", err.Error(), http.StatusRequestEntityTooLarge))
	case errors.Is(err, services.ErrContentUnknownTool):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_tool", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCredentialInvalid):
		httpx.WriteError(ctx, w, httpx.NewError("ai_credential_invalid", "the AI credential was rejected, select another key", http.StatusFailedDependency))
	case errors.Is(err, services.ErrGenerationInFlight):
		httpx.WriteError(ctx, w, httpx.NewError("generation_in_flight", "the same request is already running", http.StatusConflict))
	case errors.Is(err, services.ErrGenerationInvalid):
		httpx.WriteError(ctx, w, httpx.NewError("generation_invalid", "the model returned an unusable response", http.StatusUnprocessableEntity))
	case errors.Is(err, context.DeadlineExceeded):
		httpx.WriteError(ctx, w, httpx.NewError("generation_timeout", "generation timed out", http.StatusGatewayTimeout))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("generation_failed", "generation failed, try again", http.StatusBadGateway))
	}
}
