package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	cloudstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/basherkella/cardstudio/internal/di"
	"github.com/basherkella/cardstudio/internal/platform/auth"
	"github.com/basherkella/cardstudio/internal/platform/config"
	pfirestore "github.com/basherkella/cardstudio/internal/platform/firestore"
	"github.com/basherkella/cardstudio/internal/platform/jobs"
	"github.com/basherkella/cardstudio/internal/platform/llm"
	"github.com/basherkella/cardstudio/internal/platform/localdb"
	"github.com/basherkella/cardstudio/internal/platform/observability"
	"github.com/basherkella/cardstudio/internal/platform/raster"
	"github.com/basherkella/cardstudio/internal/platform/secrets"
	platformstorage "github.com/basherkella/cardstudio/internal/platform/storage"
	"github.com/basherkella/cardstudio/internal/repositories"
	firestoreRepo "github.com/basherkella/cardstudio/internal/repositories/firestore"
	localRepo "github.com/basherkella/cardstudio/internal/repositories/local"
	"github.com/basherkella/cardstudio/internal/services"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger("cardstudio-api")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(fetcher),
		config.WithRequiredSecrets(requiredSecretNames(envValues)...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Error(missing))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	backends, err := buildBackends(ctx, logger, cfg, fetcher)
	if err != nil {
		logger.Fatal("failed to initialise backends", zap.Error(err))
	}

	build := services.BuildInfo{
		Version:     cfg.Server.Version,
		CommitSHA:   cfg.Server.CommitSHA,
		Environment: cfg.Security.Environment,
		StartedAt:   startedAt,
	}
	container, err := di.NewContainer(cfg, backends, build, logger)
	if err != nil {
		logger.Fatal("failed to build container", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("container close error", zap.Error(err))
		}
	}()

	projectID := strings.TrimSpace(cfg.Firebase.ProjectID)
	router := container.Router(
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("card studio api listening",
			zap.String("aiProvider", cfg.AI.Provider),
			zap.Bool("capture", cfg.Rasterizer.Endpoint != ""),
			zap.Bool("exports", cfg.Features.Exports && cfg.Storage.ExportsBucket != ""),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// buildBackends opens every external dependency. Optional integrations
// (capture, exports, events) stay nil when unconfigured.
func buildBackends(ctx context.Context, logger *zap.Logger, cfg config.Config, fetcher *secrets.Fetcher) (di.Backends, error) {
	var b di.Backends
	var clientOpts []option.ClientOption
	if cfg.Firebase.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.Firebase.CredentialsFile))
	}

	firebaseClient, err := auth.NewFirebaseClient(ctx, cfg.Firebase, auth.WithFirebaseTimeout(cfg.Firebase.CallTimeout))
	if err != nil {
		return b, fmt.Errorf("firebase: %w", err)
	}
	b.Identity = firebaseClient
	b.Authenticator = auth.NewAuthenticator(firebaseClient, auth.WithUserGetter(firebaseClient))

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore, pfirestore.WithClientOptions(clientOpts...))
	b.Closers = append(b.Closers, func(context.Context) error { return firestoreProvider.Close() })
	profiles, err := firestoreRepo.NewProfileRepository(firestoreProvider)
	if err != nil {
		return b, fmt.Errorf("profile repository: %w", err)
	}
	b.Profiles = profiles
	userGallery, err := firestoreRepo.NewGalleryRepository(firestoreProvider)
	if err != nil {
		return b, fmt.Errorf("gallery repository: %w", err)
	}
	b.UserGallery = userGallery

	db, err := localdb.Open(ctx, cfg.LocalStore.Path)
	if err != nil {
		return b, fmt.Errorf("local store: %w", err)
	}
	b.Closers = append(b.Closers, func(context.Context) error { return db.Close() })
	logger.Info("local device store opened; guest galleries and device preferences live on this instance only",
		zap.String("path", cfg.LocalStore.Path))
	devices, err := localRepo.NewDeviceRepository(db)
	if err != nil {
		return b, fmt.Errorf("device repository: %w", err)
	}
	b.Devices = devices
	guests, err := localRepo.NewGalleryRepository(db)
	if err != nil {
		return b, fmt.Errorf("guest gallery repository: %w", err)
	}
	b.GuestGallery = guests

	b.Generator = newGenerator(cfg.AI)

	var rasterizer *raster.Client
	if endpoint := strings.TrimSpace(cfg.Rasterizer.Endpoint); endpoint != "" {
		rasterizer = raster.NewClient(endpoint,
			raster.WithToken(cfg.Rasterizer.Token),
			raster.WithSettleDelay(cfg.Rasterizer.SettleDelay),
			raster.WithHTTPClient(&http.Client{Timeout: cfg.Rasterizer.Timeout}),
		)
		b.Rasterizer = rasterizer
	} else {
		logger.Warn("rasterizer endpoint not configured; card capture disabled")
	}

	if cfg.Features.Exports && strings.TrimSpace(cfg.Storage.ExportsBucket) != "" {
		exporter, closeStorage, err := newExporter(ctx, cfg.Storage, clientOpts)
		if err != nil {
			return b, fmt.Errorf("card exporter: %w", err)
		}
		b.Exporter = exporter
		b.Closers = append(b.Closers, closeStorage)
	}

	if topicName := strings.TrimSpace(cfg.PubSub.EventsTopic); topicName != "" {
		psClient, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID, clientOpts...)
		if err != nil {
			return b, fmt.Errorf("pubsub: %w", err)
		}
		publisher, err := jobs.NewEventPublisher(psClient.Topic(topicName))
		if err != nil {
			_ = psClient.Close()
			return b, fmt.Errorf("event publisher: %w", err)
		}
		b.Events = publisher
		b.Closers = append(b.Closers, func(context.Context) error {
			publisher.Stop()
			return psClient.Close()
		})
	}

	metrics, err := observability.NewMetrics()
	if err != nil {
		logger.Warn("metrics unavailable", zap.Error(err))
	} else {
		b.Metrics = metrics
	}

	keys := auth.NewKeySet(cfg.Security.OIDC.JWKSURL, &http.Client{Timeout: 5 * time.Second})
	if strings.TrimSpace(cfg.Security.OIDC.Audience) == "" {
		logger.Warn("auth: OIDC audience not configured; internal routes will reject requests")
	}
	b.InternalAuth = auth.NewOIDCValidator(keys).RequireOIDC(auth.OIDCPolicy{
		Audience:      cfg.Security.OIDC.Audience,
		Issuers:       cfg.Security.OIDC.Issuers,
		AllowedEmails: cfg.Security.OIDC.AllowedEmails,
	})

	health, err := newHealthRepository(firestoreProvider, db, rasterizer, fetcher)
	if err != nil {
		logger.Warn("health: readiness checks unavailable", zap.Error(err))
	} else {
		b.Health = health
	}
	return b, nil
}

func newGenerator(cfg config.AIConfig) llm.Generator {
	if cfg.Provider == "anthropic" {
		return llm.NewAnthropicGenerator(cfg.APIKey, cfg.Model)
	}
	return llm.NewGeminiGenerator(cfg.APIKey, cfg.Model)
}

func newExporter(ctx context.Context, cfg config.StorageConfig, clientOpts []option.ClientOption) (*platformstorage.Exporter, func(context.Context) error, error) {
	signer, err := platformstorage.NewKeySigner([]byte(cfg.SignerCredentials))
	if err != nil {
		return nil, nil, fmt.Errorf("parse signer credentials: %w", err)
	}
	client, err := cloudstorage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, nil, err
	}
	exporter, err := platformstorage.NewExporter(platformstorage.NewGCSStore(client), signer, cfg.ExportsBucket,
		platformstorage.WithSignedURLTTL(cfg.SignedURLTTL),
	)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return exporter, func(context.Context) error { return client.Close() }, nil
}

func newHealthRepository(provider *pfirestore.Provider, db *localdb.DB, rasterizer *raster.Client, fetcher *secrets.Fetcher) (repositories.HealthRepository, error) {
	checks := []repositories.DependencyCheck{
		{Name: "firestore", Timeout: 1500 * time.Millisecond, Check: provider.Ping},
		{Name: "localStore", Timeout: 500 * time.Millisecond, Check: db.Ping},
	}
	if rasterizer != nil {
		checks = append(checks, repositories.DependencyCheck{
			Name:     "rasterizer",
			Timeout:  2 * time.Second,
			Optional: true,
			Check:    rasterizer.Ping,
		})
	}
	if fetcher != nil {
		const secretHealthReference = "secret://system-healthz?version=latest"
		checks = append(checks, repositories.DependencyCheck{
			Name:     "secretManager",
			Timeout:  time.Second,
			Optional: true,
			Check: func(ctx context.Context) error {
				_, err := fetcher.Resolve(ctx, secretHealthReference)
				if err == nil || status.Code(err) == codes.NotFound {
					return nil
				}
				return err
			},
		})
	}
	return repositories.NewDependencyHealthRepository(checks)
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		return strings.TrimSpace(env["CARDS_"+key])
	}

	project := lookup("SECRETS_DEFAULT_PROJECT")
	if project == "" {
		project = lookup("FIREBASE_PROJECT_ID")
	}
	fallbackPath := lookup("SECRETS_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}

	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
	}
	if project != "" {
		opts = append(opts, secrets.WithDefaultProject(project))
	}
	if ttl, err := time.ParseDuration(lookup("SECRETS_CACHE_TTL")); err == nil && ttl > 0 {
		opts = append(opts, secrets.WithCacheTTL(ttl))
	}
	if credentialsFile := lookup("FIREBASE_CREDENTIALS_FILE"); credentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}
	return secrets.NewFetcher(ctx, opts...)
}

// requiredSecretNames lists secrets that must resolve before serving. Local
// runs may rely on per-request AI credentials instead.
func requiredSecretNames(env map[string]string) []string {
	environment := strings.ToLower(strings.TrimSpace(env["CARDS_SECURITY_ENVIRONMENT"]))
	if environment == "" || environment == "local" {
		return nil
	}
	required := []string{"AI.APIKey"}
	if strings.TrimSpace(env["CARDS_RASTERIZER_ENDPOINT"]) != "" {
		required = append(required, "Rasterizer.Token")
	}
	if strings.TrimSpace(env["CARDS_STORAGE_EXPORTS_BUCKET"]) != "" {
		required = append(required, "Storage.SignerCredentials")
	}
	return required
}
