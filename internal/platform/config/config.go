package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
	// Card dates resolve IANA zones on hosts without zoneinfo.
	_ "time/tzdata"
)

const (
	envPrefix = "CARDS_"

	defaultPort            = "8080"
	defaultReadTimeout     = 15 * time.Second
	defaultWriteTimeout    = 60 * time.Second
	defaultIdleTimeout     = 120 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultFirebaseTimeout = 5 * time.Second

	defaultAIProvider      = "gemini"
	defaultGeminiModel     = "gemini-2.5-flash"
	defaultAnthropicModel  = "claude-sonnet-4-5"
	defaultAITimeout       = 45 * time.Second
	defaultAIMaxInputRunes = 20000

	defaultSettleDelay    = 300 * time.Millisecond
	defaultCaptureScale   = 2
	defaultCaptureTimeout = 20 * time.Second
	defaultSignedURLTTL   = 15 * time.Minute
	defaultCardTimeZone   = "Asia/Dhaka"

	defaultMaxItemBytes   = 500 * 1024
	defaultGuestMaxItems  = 24
	defaultGuestMaxBytes  = 4 << 20
	defaultGuestPolicy    = "reject"
	defaultUserMaxItems   = 200
	defaultLocalStorePath = "data/devices.db"
	defaultGuestRetention = 90 * 24 * time.Hour

	defaultGenerationPerMinute = 10
	defaultCapturePerMinute    = 30
	defaultUploadPerMinute     = 20

	defaultSecurityEnvironment = "local"
	defaultBootstrapAdmin      = "admin@basherkella.com"
	defaultOIDCJWKSURL         = "https://www.googleapis.com/oauth2/v3/certs"
	defaultOIDCIssuer          = "https://accounts.google.com"
	defaultSecretCacheTTL      = 5 * time.Minute
)

// Config is the full runtime configuration, grouped by concern.
type Config struct {
	Server     ServerConfig
	Firebase   FirebaseConfig
	Firestore  FirestoreConfig
	Storage    StorageConfig
	PubSub     PubSubConfig
	AI         AIConfig
	Rasterizer RasterizerConfig
	Render     RenderConfig
	Gallery    GalleryConfig
	LocalStore LocalStoreConfig
	RateLimits RateLimitConfig
	Features   FeatureFlags
	Security   SecurityConfig
	Secrets    SecretsConfig
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	Version         string
	CommitSHA       string
}

// FirebaseConfig stores Firebase project settings.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
	// CallTimeout bounds each Admin SDK call (user lookups, claim writes).
	CallTimeout time.Duration
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// StorageConfig configures exported card artifacts. Exports are disabled
// when ExportsBucket is empty.
type StorageConfig struct {
	ExportsBucket string
	// SignerCredentials is a service account JSON used to sign download URLs.
	SignerCredentials string
	SignedURLTTL      time.Duration
}

// PubSubConfig configures domain event publishing. Publishing is disabled
// when EventsTopic is empty.
type PubSubConfig struct {
	ProjectID   string
	EventsTopic string
}

// AIConfig selects and configures the content generator.
type AIConfig struct {
	Provider      string
	Model         string
	APIKey        string
	Timeout       time.Duration
	MaxInputRunes int
}

// RenderConfig configures card layout.
type RenderConfig struct {
	// TimeZone is the IANA zone whose calendar day is printed on cards.
	TimeZone string
}

// Location resolves TimeZone.
func (c RenderConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.TimeZone)
}

// RasterizerConfig configures the remote HTML-to-PNG renderer.
type RasterizerConfig struct {
	Endpoint    string
	Token       string
	SettleDelay time.Duration
	Scale       int
	Timeout     time.Duration
}

// GalleryConfig bounds gallery sizes.
type GalleryConfig struct {
	MaxItemBytes  int
	GuestMaxItems int
	GuestMaxBytes int
	GuestPolicy   string
	UserMaxItems  int
}

// LocalStoreConfig configures the embedded device store. The store is a
// SQLite file guarded by a process lock, so guest galleries and device
// preferences are visible to one API instance only. Deployments must run a
// single replica with Path on a persistent volume.
type LocalStoreConfig struct {
	Path           string
	GuestRetention time.Duration
}

// RateLimitConfig holds per-actor request budgets.
type RateLimitConfig struct {
	GenerationPerMinute int
	CapturePerMinute    int
	UploadPerMinute     int
}

// FeatureFlags toggle optional behaviour.
type FeatureFlags struct {
	GuestGeneration bool
	Exports         bool
}

// SecurityConfig groups access control settings.
type SecurityConfig struct {
	Environment     string
	BootstrapAdmins []string
	OIDC            OIDCConfig
}

// OIDCConfig protects internal maintenance routes.
type OIDCConfig struct {
	JWKSURL       string
	Audience      string
	Issuers       []string
	AllowedEmails []string
}

// SecretsConfig configures Secret Manager resolution.
type SecretsConfig struct {
	DefaultProject string
	FallbackFile   string
	CacheTTL       time.Duration
}

// Load assembles configuration from defaults, .env, the OS environment and
// explicit overrides, then resolves secret references.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := defaultLoaderOptions()
	for _, opt := range opts {
		opt(&options)
	}

	dotEnv, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}
	lookup := func(key string) (string, bool) {
		key = envPrefix + key
		if value, ok := options.envMap[key]; ok {
			return value, true
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		value, ok := dotEnv[key]
		return value, ok
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            stringWithDefault(lookup, "SERVER_PORT", defaultPort),
			ReadTimeout:     durationWithDefault(lookup, "SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:    durationWithDefault(lookup, "SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:     durationWithDefault(lookup, "SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			ShutdownTimeout: durationWithDefault(lookup, "SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
			Version:         stringWithDefault(lookup, "SERVER_VERSION", "dev"),
			CommitSHA:       stringWithDefault(lookup, "SERVER_COMMIT_SHA", ""),
		},
		Firebase: FirebaseConfig{
			ProjectID:       stringWithDefault(lookup, "FIREBASE_PROJECT_ID", ""),
			CredentialsFile: stringWithDefault(lookup, "FIREBASE_CREDENTIALS_FILE", ""),
			CallTimeout:     durationWithDefault(lookup, "FIREBASE_CALL_TIMEOUT", defaultFirebaseTimeout),
		},
		Firestore: FirestoreConfig{
			ProjectID:    stringWithDefault(lookup, "FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "FIRESTORE_EMULATOR_HOST", ""),
		},
		Storage: StorageConfig{
			ExportsBucket:     stringWithDefault(lookup, "STORAGE_EXPORTS_BUCKET", ""),
			SignerCredentials: stringWithDefault(lookup, "STORAGE_SIGNER_CREDENTIALS", ""),
			SignedURLTTL:      durationWithDefault(lookup, "STORAGE_SIGNED_URL_TTL", defaultSignedURLTTL),
		},
		PubSub: PubSubConfig{
			ProjectID:   stringWithDefault(lookup, "PUBSUB_PROJECT_ID", ""),
			EventsTopic: stringWithDefault(lookup, "PUBSUB_EVENTS_TOPIC", ""),
		},
		AI: AIConfig{
			Provider:      strings.ToLower(stringWithDefault(lookup, "AI_PROVIDER", defaultAIProvider)),
			Model:         stringWithDefault(lookup, "AI_MODEL", ""),
			APIKey:        stringWithDefault(lookup, "AI_API_KEY", ""),
			Timeout:       durationWithDefault(lookup, "AI_TIMEOUT", defaultAITimeout),
			MaxInputRunes: intWithDefault(lookup, "AI_MAX_INPUT_RUNES", defaultAIMaxInputRunes),
		},
		Rasterizer: RasterizerConfig{
			Endpoint:    stringWithDefault(lookup, "RASTERIZER_ENDPOINT", ""),
			Token:       stringWithDefault(lookup, "RASTERIZER_TOKEN", ""),
			SettleDelay: durationWithDefault(lookup, "RASTERIZER_SETTLE_DELAY", defaultSettleDelay),
			Scale:       intWithDefault(lookup, "RASTERIZER_SCALE", defaultCaptureScale),
			Timeout:     durationWithDefault(lookup, "RASTERIZER_TIMEOUT", defaultCaptureTimeout),
		},
		Render: RenderConfig{
			TimeZone: stringWithDefault(lookup, "RENDER_TIMEZONE", defaultCardTimeZone),
		},
		Gallery: GalleryConfig{
			MaxItemBytes:  intWithDefault(lookup, "GALLERY_MAX_ITEM_BYTES", defaultMaxItemBytes),
			GuestMaxItems: intWithDefault(lookup, "GALLERY_GUEST_MAX_ITEMS", defaultGuestMaxItems),
			GuestMaxBytes: intWithDefault(lookup, "GALLERY_GUEST_MAX_BYTES", defaultGuestMaxBytes),
			GuestPolicy:   strings.ToLower(stringWithDefault(lookup, "GALLERY_GUEST_POLICY", defaultGuestPolicy)),
			UserMaxItems:  intWithDefault(lookup, "GALLERY_USER_MAX_ITEMS", defaultUserMaxItems),
		},
		LocalStore: LocalStoreConfig{
			Path:           stringWithDefault(lookup, "LOCALSTORE_PATH", defaultLocalStorePath),
			GuestRetention: durationWithDefault(lookup, "LOCALSTORE_GUEST_RETENTION", defaultGuestRetention),
		},
		RateLimits: RateLimitConfig{
			GenerationPerMinute: intWithDefault(lookup, "RATELIMIT_GENERATION_PER_MIN", defaultGenerationPerMinute),
			CapturePerMinute:    intWithDefault(lookup, "RATELIMIT_CAPTURE_PER_MIN", defaultCapturePerMinute),
			UploadPerMinute:     intWithDefault(lookup, "RATELIMIT_UPLOAD_PER_MIN", defaultUploadPerMinute),
		},
		Features: FeatureFlags{
			GuestGeneration: boolWithDefault(lookup, "FEATURE_GUEST_GENERATION", false),
			Exports:         boolWithDefault(lookup, "FEATURE_EXPORTS", true),
		},
		Security: SecurityConfig{
			Environment:     strings.ToLower(stringWithDefault(lookup, "SECURITY_ENVIRONMENT", defaultSecurityEnvironment)),
			BootstrapAdmins: lowerAll(csvWithDefault(lookup, "SECURITY_BOOTSTRAP_ADMINS", defaultBootstrapAdmin)),
			OIDC: OIDCConfig{
				JWKSURL:       stringWithDefault(lookup, "SECURITY_OIDC_JWKS_URL", defaultOIDCJWKSURL),
				Audience:      stringWithDefault(lookup, "SECURITY_OIDC_AUDIENCE", ""),
				Issuers:       csvWithDefault(lookup, "SECURITY_OIDC_ISSUERS", defaultOIDCIssuer),
				AllowedEmails: lowerAll(csvWithDefault(lookup, "SECURITY_OIDC_ALLOWED_EMAILS", "")),
			},
		},
		Secrets: SecretsConfig{
			DefaultProject: stringWithDefault(lookup, "SECRETS_DEFAULT_PROJECT", ""),
			FallbackFile:   stringWithDefault(lookup, "SECRETS_FALLBACK_FILE", ""),
			CacheTTL:       durationWithDefault(lookup, "SECRETS_CACHE_TTL", defaultSecretCacheTTL),
		},
	}

	if cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = cfg.Firebase.ProjectID
	}
	if cfg.PubSub.ProjectID == "" {
		cfg.PubSub.ProjectID = cfg.Firebase.ProjectID
	}
	if cfg.Secrets.DefaultProject == "" {
		cfg.Secrets.DefaultProject = cfg.Firebase.ProjectID
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = defaultGeminiModel
		if cfg.AI.Provider == "anthropic" {
			cfg.AI.Model = defaultAnthropicModel
		}
	}

	resolved := make(map[string]string)
	for _, target := range []struct {
		name  string
		field *string
	}{
		{"AI.APIKey", &cfg.AI.APIKey},
		{"Rasterizer.Token", &cfg.Rasterizer.Token},
		{"Storage.SignerCredentials", &cfg.Storage.SignerCredentials},
	} {
		value, err := resolveSecret(ctx, *target.field, options.secret)
		if err != nil {
			return Config{}, err
		}
		*target.field = value
		resolved[target.name] = strings.TrimSpace(value)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	if missing := findMissingSecrets(options.requiredSecrets, resolved); missing != nil {
		return Config{}, missing
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	var invalid []string
	check := func(ok bool, field string) {
		if !ok {
			invalid = append(invalid, field)
		}
	}

	check(cfg.Server.Port != "", "Server.Port")
	check(cfg.Firebase.ProjectID != "", "Firebase.ProjectID")
	check(cfg.Firebase.CallTimeout > 0, "Firebase.CallTimeout")
	check(cfg.AI.Provider == "gemini" || cfg.AI.Provider == "anthropic", "AI.Provider")
	check(cfg.AI.MaxInputRunes > 0, "AI.MaxInputRunes")
	check(cfg.Rasterizer.Scale >= 1 && cfg.Rasterizer.Scale <= 4, "Rasterizer.Scale")
	check(cfg.Rasterizer.SettleDelay >= 0, "Rasterizer.SettleDelay")
	_, tzErr := cfg.Render.Location()
	check(tzErr == nil, "Render.TimeZone")
	check(cfg.Gallery.MaxItemBytes > 0, "Gallery.MaxItemBytes")
	check(cfg.Gallery.GuestMaxItems > 0, "Gallery.GuestMaxItems")
	check(cfg.Gallery.GuestMaxBytes >= cfg.Gallery.MaxItemBytes, "Gallery.GuestMaxBytes")
	check(cfg.Gallery.GuestPolicy == "reject" || cfg.Gallery.GuestPolicy == "evict-oldest", "Gallery.GuestPolicy")
	check(cfg.Gallery.UserMaxItems > 0, "Gallery.UserMaxItems")
	check(cfg.LocalStore.Path != "", "LocalStore.Path")
	check(cfg.RateLimits.GenerationPerMinute > 0, "RateLimits.GenerationPerMinute")
	check(cfg.RateLimits.CapturePerMinute > 0, "RateLimits.CapturePerMinute")
	check(cfg.RateLimits.UploadPerMinute > 0, "RateLimits.UploadPerMinute")
	check(len(cfg.Security.BootstrapAdmins) > 0, "Security.BootstrapAdmins")

	if len(invalid) > 0 {
		return &ValidationError{fields: invalid}
	}
	return nil
}

// ValidationError lists missing or invalid configuration fields.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the offending field names.
func (e *ValidationError) Fields() []string {
	return append([]string(nil), e.fields...)
}

func lowerAll(values []string) []string {
	for i, value := range values {
		values[i] = strings.ToLower(value)
	}
	return values
}
