package di

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/basherkella/cardstudio/internal/cards"
	"github.com/basherkella/cardstudio/internal/domain"
	"github.com/basherkella/cardstudio/internal/handlers"
	"github.com/basherkella/cardstudio/internal/platform/auth"
	"github.com/basherkella/cardstudio/internal/platform/config"
	"github.com/basherkella/cardstudio/internal/platform/llm"
	"github.com/basherkella/cardstudio/internal/platform/observability"
	"github.com/basherkella/cardstudio/internal/repositories"
	"github.com/basherkella/cardstudio/internal/services"
)

// deviceTouchInterval throttles last-seen writes for a device.
const deviceTouchInterval = time.Minute

// Backends carries the concrete infrastructure the services run on. The
// entrypoint builds the production set; tests supply fakes. Optional
// collaborators are left nil.
type Backends struct {
	Profiles     repositories.ProfileRepository
	UserGallery  repositories.GalleryRepository
	GuestGallery repositories.GalleryRepository
	Devices      repositories.DeviceRepository
	Health       repositories.HealthRepository

	Generator  llm.Generator
	Rasterizer services.Rasterizer
	Exporter   services.CardExporter
	Events     services.EventPublisher
	Identity   services.IdentityAdmin
	Metrics    *observability.Metrics

	// Authenticator verifies Firebase ID tokens. Nil disables bearer auth,
	// which only tests should do.
	Authenticator *auth.Authenticator
	// InternalAuth guards /internal routes.
	InternalAuth func(http.Handler) http.Handler

	// Closers run in reverse order on Close.
	Closers []func(context.Context) error
}

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	Access      services.AccessService
	Admin       services.AdminService
	Content     services.ContentService
	Cards       services.CardService
	Gallery     services.GalleryService
	Preferences services.PreferenceService
	Maintenance services.MaintenanceService
	System      services.SystemService
}

// Container is the application state: configuration, services and the
// infrastructure they hold open.
type Container struct {
	Config   config.Config
	Build    services.BuildInfo
	Services Services

	backends Backends
	logger   *zap.Logger
}

// NewContainer wires services over backends.
func NewContainer(cfg config.Config, backends Backends, build services.BuildInfo, logger *zap.Logger) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc, err := buildServices(cfg, backends, logger)
	if err != nil {
		return nil, err
	}
	if backends.Health != nil {
		system, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: backends.Health,
			Capabilities:     capabilities(cfg, backends, svc),
			Clock:            time.Now,
			Build:            build,
			Logger:           observability.ServiceLogger(logger.Named("system")),
		})
		if err != nil {
			return nil, fmt.Errorf("build system service: %w", err)
		}
		svc.System = system
	}
	return &Container{
		Config:   cfg,
		Build:    build,
		Services: svc,
		backends: backends,
		logger:   logger,
	}, nil
}

func buildServices(cfg config.Config, b Backends, logger *zap.Logger) (Services, error) {
	var svc Services
	if b.Profiles == nil {
		return svc, errors.New("profile repository is required")
	}
	if b.Devices == nil {
		return svc, errors.New("device repository is required")
	}

	events := b.Events
	// Metrics is a pointer; a typed nil must not reach the interface fields.
	var (
		generationMetrics services.GenerationRecorder
		captureMetrics    services.CaptureRecorder
		uploadMetrics     services.UploadRecorder
	)
	if b.Metrics != nil {
		generationMetrics, captureMetrics, uploadMetrics = b.Metrics, b.Metrics, b.Metrics
	}

	preferences, err := services.NewPreferenceService(services.PreferenceServiceDeps{
		Devices:       b.Devices,
		MaxLogoBytes:  cfg.Gallery.MaxItemBytes,
		TouchInterval: deviceTouchInterval,
		Clock:         time.Now,
		Logger:        observability.ServiceLogger(logger.Named("preferences")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build preference service: %w", err)
	}
	svc.Preferences = preferences

	access, err := services.NewAccessService(services.AccessServiceDeps{
		Profiles:        b.Profiles,
		Identity:        b.Identity,
		Events:          events,
		BootstrapAdmins: cfg.Security.BootstrapAdmins,
		Clock:           time.Now,
		Logger:          observability.ServiceLogger(logger.Named("access")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build access service: %w", err)
	}
	svc.Access = access

	admin, err := services.NewAdminService(services.AdminServiceDeps{
		Profiles: b.Profiles,
		Identity: b.Identity,
		Events:   events,
		Clock:    time.Now,
		Logger:   observability.ServiceLogger(logger.Named("admin")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build admin service: %w", err)
	}
	svc.Admin = admin

	if b.Generator != nil {
		content, err := services.NewContentService(services.ContentServiceDeps{
			Generator:     b.Generator,
			Metrics:       generationMetrics,
			Timeout:       cfg.AI.Timeout,
			MaxInputRunes: cfg.AI.MaxInputRunes,
			Clock:         time.Now,
			Logger:        observability.ServiceLogger(logger.Named("content")),
		})
		if err != nil {
			return Services{}, fmt.Errorf("build content service: %w", err)
		}
		svc.Content = content
	}

	location := cards.DefaultLocation
	if cfg.Render.TimeZone != "" {
		if location, err = cfg.Render.Location(); err != nil {
			return Services{}, fmt.Errorf("card time zone: %w", err)
		}
	}
	cardsSvc, err := services.NewCardService(services.CardServiceDeps{
		Rasterizer:  b.Rasterizer,
		Exporter:    b.Exporter,
		Preferences: preferences,
		Events:      events,
		Metrics:     captureMetrics,
		Scale:       float64(cfg.Rasterizer.Scale),
		Location:    location,
		Clock:       time.Now,
		Logger:      observability.ServiceLogger(logger.Named("cards")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build card service: %w", err)
	}
	svc.Cards = cardsSvc

	if b.UserGallery != nil && b.GuestGallery != nil {
		gallery, err := services.NewGalleryService(services.GalleryServiceDeps{
			Users:        b.UserGallery,
			Guests:       b.GuestGallery,
			Preferences:  preferences,
			Metrics:      uploadMetrics,
			MaxItemBytes: cfg.Gallery.MaxItemBytes,
			GuestLimits: domain.GalleryLimits{
				MaxItems: cfg.Gallery.GuestMaxItems,
				MaxBytes: cfg.Gallery.GuestMaxBytes,
				Policy:   domain.CapacityPolicy(cfg.Gallery.GuestPolicy),
			},
			UserLimits: domain.GalleryLimits{
				MaxItems: cfg.Gallery.UserMaxItems,
				Policy:   domain.CapacityReject,
			},
			Clock:  time.Now,
			Logger: observability.ServiceLogger(logger.Named("gallery")),
		})
		if err != nil {
			return Services{}, fmt.Errorf("build gallery service: %w", err)
		}
		svc.Gallery = gallery
	}

	maintenance, err := services.NewMaintenanceService(services.MaintenanceServiceDeps{
		Devices:        b.Devices,
		GuestRetention: cfg.LocalStore.GuestRetention,
		Clock:          time.Now,
		Logger:         observability.ServiceLogger(logger.Named("maintenance")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build maintenance service: %w", err)
	}
	svc.Maintenance = maintenance

	return svc, nil
}

func capabilities(cfg config.Config, b Backends, svc Services) domain.Capabilities {
	caps := domain.Capabilities{
		Capture:      b.Rasterizer != nil,
		Export:       b.Rasterizer != nil && b.Exporter != nil && cfg.Features.Exports,
		CloudGallery: svc.Gallery != nil,
	}
	if svc.Content != nil {
		caps.AIProvider = cfg.AI.Provider
		caps.AIModel = cfg.AI.Model
		caps.GuestGeneration = cfg.Features.GuestGeneration
	}
	return caps
}

// Router assembles the HTTP surface. middlewares run on every request.
func (c *Container) Router(middlewares ...func(http.Handler) http.Handler) http.Handler {
	cfg := c.Config
	authn := c.backends.Authenticator
	gate := handlers.NewAccessGate(authn, c.Services.Access, c.Services.Preferences)

	health := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(c.Build),
		handlers.WithHealthSystemService(c.Services.System),
	)
	content := handlers.NewContentHandlers(gate, c.Services.Content,
		handlers.WithContentRateLimit(cfg.RateLimits.GenerationPerMinute, time.Now),
		handlers.WithGuestGeneration(cfg.Features.GuestGeneration),
	)
	cardHandlers := handlers.NewCardHandlers(gate, c.Services.Cards,
		handlers.WithCaptureRateLimit(cfg.RateLimits.CapturePerMinute, time.Now),
	)
	gallery := handlers.NewGalleryHandlers(gate, c.Services.Gallery,
		handlers.WithUploadRateLimit(cfg.RateLimits.UploadPerMinute, time.Now),
	)

	opts := []handlers.Option{
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(health),
		handlers.WithPublicRoutes(handlers.NewPublicHandlers().Routes),
		handlers.WithMeRoutes(handlers.NewMeHandlers(authn, c.Services.Access).Routes),
		handlers.WithContentRoutes(content.Routes),
		handlers.WithCardRoutes(cardHandlers.Routes),
		handlers.WithGalleryRoutes(gallery.Routes),
		handlers.WithPreferenceRoutes(handlers.NewPreferenceHandlers(gate, c.Services.Preferences).Routes),
		handlers.WithAdminRoutes(handlers.NewAdminHandlers(gate, c.Services.Admin).Routes),
		handlers.WithInternalRoutes(handlers.NewMaintenanceHandlers(c.Services.Maintenance).Routes),
	}
	if c.backends.InternalAuth != nil {
		opts = append(opts, handlers.WithInternalMiddlewares(c.backends.InternalAuth))
	}
	return handlers.NewRouter(opts...)
}

// Close releases backend resources in reverse acquisition order.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	var errs []error
	for i := len(c.backends.Closers) - 1; i >= 0; i-- {
		if closer := c.backends.Closers[i]; closer != nil {
			if err := closer(ctx); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
