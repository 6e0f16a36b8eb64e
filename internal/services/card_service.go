package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/basherkella/cardstudio/internal/cards"
	"github.com/basherkella/cardstudio/internal/domain"
	"github.com/basherkella/cardstudio/internal/platform/observability"
	"github.com/basherkella/cardstudio/internal/platform/raster"
	"github.com/basherkella/cardstudio/internal/platform/storage"
)

const (
	defaultCaptureScale = 2
	maxCaptureScale     = 4
)

var (
	errCaptureFailed    = errors.New("cards: could not produce image")
	errExportDisabled   = errors.New("cards: exports are disabled")
	errExportActor      = errors.New("cards: export requires a signed-in user")
	errRasterizerAbsent = errors.New("cards: rasterizer not configured")
)

var (
	// ErrCaptureFailed indicates the rasterizer did not return an image.
	ErrCaptureFailed = errCaptureFailed
	// ErrExportDisabled indicates no exports bucket is configured.
	ErrExportDisabled = errExportDisabled
	// ErrExportActorRequired indicates an export without an authenticated user.
	ErrExportActorRequired = errExportActor
	// ErrRasterizerUnavailable indicates capture is not configured.
	ErrRasterizerUnavailable = errRasterizerAbsent
)

// Rasterizer turns markup into PNG bytes.
type Rasterizer interface {
	Screenshot(ctx context.Context, job raster.Job) ([]byte, error)
}

// CardExporter stores PNGs and signs download URLs.
type CardExporter interface {
	Enabled() bool
	Export(ctx context.Context, ownerID string, png []byte) (storage.ExportResult, error)
}

// CaptureRecorder records capture outcomes.
type CaptureRecorder interface {
	RecordCapture(ctx context.Context, kind, outcome string)
}

// CardServiceDeps bundles the dependencies of the card service.
type CardServiceDeps struct {
	Rasterizer  Rasterizer
	Exporter    CardExporter
	Preferences PreferenceService
	Events      EventPublisher
	Metrics     CaptureRecorder
	Scale       float64
	// Location sets the calendar day printed on cards. Defaults to Dhaka.
	Location *time.Location
	Clock    func() time.Time
	Logger   Logger
}

type cardService struct {
	rasterizer  Rasterizer
	exporter    CardExporter
	preferences PreferenceService
	events      EventPublisher
	metrics     CaptureRecorder
	scale       float64
	location    *time.Location
	clock       func() time.Time
	logger      Logger
}

var _ CardService = (*cardService)(nil)

// NewCardService wires rendering, capture and export.
func NewCardService(deps CardServiceDeps) (CardService, error) {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	scale := deps.Scale
	if scale <= 0 {
		scale = defaultCaptureScale
	}
	location := deps.Location
	if location == nil {
		location = cards.DefaultLocation
	}
	return &cardService{
		location:    location,
		rasterizer:  deps.Rasterizer,
		exporter:    deps.Exporter,
		preferences: deps.Preferences,
		events:      deps.Events,
		metrics:     deps.Metrics,
		scale:       scale,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: deps.Logger,
	}, nil
}

func (s *cardService) Render(ctx context.Context, cmd RenderCommand) (cards.Layout, error) {
	in := s.applyDefaults(ctx, cmd)
	return cards.Render(in), nil
}

// applyDefaults fills template, font and logo from device preferences and
// pins the date, so Render itself stays a pure function of its input.
func (s *cardService) applyDefaults(ctx context.Context, cmd RenderCommand) cards.RenderInput {
	in := cmd.Input
	if in.Date.IsZero() {
		in.Date = s.clock()
	}
	in.Date = in.Date.In(s.location)
	if s.preferences == nil || strings.TrimSpace(cmd.DeviceID) == "" {
		return in
	}
	if in.Template != "" && in.Font != "" && in.Logo != "" {
		return in
	}
	prefs, err := s.preferences.Get(ctx, cmd.DeviceID)
	if err != nil {
		s.log(ctx, "cards.preferences_unavailable", map[string]any{"error": err.Error()})
		return in
	}
	if in.Template == "" {
		// A default saved for the other card kind is skipped, not treated
		// as a fallback.
		if t, ok := cards.LookupTemplate(prefs.DefaultTemplate); ok && t.Kind == cardKind(in.Kind) {
			in.Template = prefs.DefaultTemplate
		}
	}
	if in.Font == "" {
		in.Font = prefs.DefaultFont
	}
	if in.Logo == "" {
		in.Logo = prefs.CustomLogo
	}
	return in
}

func cardKind(kind domain.CardKind) domain.CardKind {
	if kind == domain.CardKindQuote {
		return kind
	}
	return domain.CardKindNews
}

func (s *cardService) Capture(ctx context.Context, cmd CaptureCommand) (Capture, error) {
	if s.rasterizer == nil {
		return Capture{}, errRasterizerAbsent
	}
	layout, err := s.Render(ctx, cmd.RenderCommand)
	if err != nil {
		return Capture{}, err
	}
	markup, err := cards.Markup(layout)
	if err != nil {
		return Capture{}, fmt.Errorf("%w: %w", errCaptureFailed, err)
	}

	scale := cmd.Scale
	if scale <= 0 {
		scale = s.scale
	}
	if scale > maxCaptureScale {
		scale = maxCaptureScale
	}

	ctx, span := observability.StartSpan(ctx, "cards.capture",
		attribute.String("card.template", string(layout.Template)),
		attribute.Float64("card.scale", scale),
	)
	png, err := s.rasterizer.Screenshot(ctx, raster.Job{
		HTML:   markup,
		Width:  layout.Width,
		Height: layout.Height,
		Scale:  scale,
	})
	observability.EndSpan(span, err)

	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	if s.metrics != nil {
		s.metrics.RecordCapture(ctx, string(layout.Kind), outcome)
	}
	if err != nil {
		s.log(ctx, "cards.capture_failed", map[string]any{"template": string(layout.Template), "error": err.Error()})
		return Capture{}, fmt.Errorf("%w: %w", errCaptureFailed, err)
	}

	return Capture{
		PNG:      png,
		Width:    layout.Width,
		Height:   layout.Height,
		Scale:    scale,
		Template: layout.Template,
		Fallback: layout.Fallback,
	}, nil
}

func (s *cardService) ExportsEnabled() bool {
	return s.exporter != nil && s.exporter.Enabled()
}

func (s *cardService) Export(ctx context.Context, cmd ExportCommand) (CardExport, error) {
	if !s.ExportsEnabled() {
		return CardExport{}, errExportDisabled
	}
	if strings.TrimSpace(cmd.ActorID) == "" {
		return CardExport{}, errExportActor
	}
	capture, err := s.Capture(ctx, cmd.CaptureCommand)
	if err != nil {
		return CardExport{}, err
	}
	result, err := s.exporter.Export(ctx, cmd.ActorID, capture.PNG)
	if err != nil {
		if errors.Is(err, storage.ErrExportDisabled) {
			return CardExport{}, errExportDisabled
		}
		return CardExport{}, fmt.Errorf("cards: export: %w", err)
	}

	if s.events != nil {
		event := domain.Event{
			Type:      domain.EventCardExported,
			SubjectID: result.Object,
			ActorID:   cmd.ActorID,
			Payload: map[string]any{
				"template": string(capture.Template),
				"width":    capture.Width,
				"height":   capture.Height,
				"scale":    capture.Scale,
			},
			OccurredAt: s.clock(),
		}
		if _, err := s.events.Publish(ctx, event); err != nil {
			s.log(ctx, "cards.event_publish_failed", map[string]any{"error": err.Error()})
		}
	}

	return CardExport{
		Capture:   capture,
		Object:    result.Object,
		URL:       result.URL,
		ExpiresAt: result.ExpiresAt,
	}, nil
}

func (s *cardService) log(ctx context.Context, event string, fields map[string]any) {
	if s.logger != nil {
		s.logger(ctx, event, fields)
	}
}
