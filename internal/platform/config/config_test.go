package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func load(t *testing.T, env map[string]string, opts ...Option) (Config, error) {
	t.Helper()
	base := []Option{WithEnvMap(env), WithoutSystemEnv(), WithEnvFile("")}
	return Load(context.Background(), append(base, opts...)...)
}

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := load(t, map[string]string{"CARDS_FIREBASE_PROJECT_ID": "bk-dev"})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Firestore.ProjectID != "bk-dev" || cfg.PubSub.ProjectID != "bk-dev" {
		t.Errorf("expected project ids to default to firebase project, got %q/%q", cfg.Firestore.ProjectID, cfg.PubSub.ProjectID)
	}
	if cfg.AI.Provider != "gemini" || cfg.AI.Model != "gemini-2.5-flash" {
		t.Errorf("unexpected ai defaults %+v", cfg.AI)
	}
	if cfg.Rasterizer.SettleDelay != 300*time.Millisecond || cfg.Rasterizer.Scale != 2 {
		t.Errorf("unexpected capture defaults %+v", cfg.Rasterizer)
	}
	if cfg.Firebase.CallTimeout != 5*time.Second {
		t.Errorf("expected 5s firebase call timeout, got %s", cfg.Firebase.CallTimeout)
	}
	loc, err := cfg.Render.Location()
	if err != nil || loc.String() != "Asia/Dhaka" {
		t.Errorf("expected Asia/Dhaka card zone, got %v (%v)", loc, err)
	}
	if cfg.Gallery.MaxItemBytes != 500*1024 {
		t.Errorf("unexpected max item bytes %d", cfg.Gallery.MaxItemBytes)
	}
	if cfg.Gallery.GuestPolicy != "reject" {
		t.Errorf("expected reject policy, got %s", cfg.Gallery.GuestPolicy)
	}
	if len(cfg.Security.BootstrapAdmins) != 1 || cfg.Security.BootstrapAdmins[0] != "admin@basherkella.com" {
		t.Errorf("unexpected bootstrap admins %v", cfg.Security.BootstrapAdmins)
	}
	if cfg.Features.GuestGeneration {
		t.Errorf("expected guest generation disabled by default")
	}
	if len(cfg.Security.OIDC.Issuers) != 1 || cfg.Security.OIDC.JWKSURL != defaultOIDCJWKSURL {
		t.Errorf("unexpected oidc defaults %+v", cfg.Security.OIDC)
	}
}

func TestLoadWithOverridesAndSecrets(t *testing.T) {
	env := map[string]string{
		"CARDS_SERVER_PORT":               "9090",
		"CARDS_SERVER_IDLE_TIMEOUT":       "2m",
		"CARDS_FIREBASE_CALL_TIMEOUT":     "1500ms",
		"CARDS_FIREBASE_PROJECT_ID":       "bk-prod",
		"CARDS_FIRESTORE_PROJECT_ID":      "bk-data",
		"CARDS_AI_PROVIDER":               "Anthropic",
		"CARDS_AI_API_KEY":                "sm://ai-key",
		"CARDS_RASTERIZER_ENDPOINT":       "https://raster.internal",
		"CARDS_RASTERIZER_TOKEN":          "secret://raster-token",
		"CARDS_RASTERIZER_SCALE":          "3",
		"CARDS_GALLERY_GUEST_POLICY":      "evict-oldest",
		"CARDS_SECURITY_BOOTSTRAP_ADMINS": "Admin@BasherKella.com, desk@basherkella.com",
		"CARDS_FEATURE_GUEST_GENERATION":  "yes",
	}
	secrets := map[string]string{
		"secret://ai-key":       "anthropic-key",
		"secret://raster-token": "raster-token",
	}
	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if v, ok := secrets[ref]; ok {
			return v, nil
		}
		return "", errors.New("not found")
	})

	cfg, err := load(t, env, WithSecretResolver(resolver), WithRequiredSecrets("AI.APIKey"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Server.IdleTimeout != 2*time.Minute {
		t.Errorf("unexpected server config %+v", cfg.Server)
	}
	if cfg.Firebase.CallTimeout != 1500*time.Millisecond {
		t.Errorf("expected firebase call timeout override, got %s", cfg.Firebase.CallTimeout)
	}
	if cfg.Firestore.ProjectID != "bk-data" {
		t.Errorf("expected explicit firestore project, got %s", cfg.Firestore.ProjectID)
	}
	if cfg.AI.Provider != "anthropic" || cfg.AI.Model != defaultAnthropicModel || cfg.AI.APIKey != "anthropic-key" {
		t.Errorf("unexpected ai config %+v", cfg.AI)
	}
	if cfg.Rasterizer.Token != "raster-token" || cfg.Rasterizer.Scale != 3 {
		t.Errorf("unexpected rasterizer config %+v", cfg.Rasterizer)
	}
	if cfg.Gallery.GuestPolicy != "evict-oldest" {
		t.Errorf("expected evict-oldest policy, got %s", cfg.Gallery.GuestPolicy)
	}
	if got := cfg.Security.BootstrapAdmins; len(got) != 2 || got[0] != "admin@basherkella.com" {
		t.Errorf("expected lower-cased bootstrap admins, got %v", got)
	}
	if !cfg.Features.GuestGeneration {
		t.Errorf("expected guest generation enabled")
	}
}

func TestLoadValidation(t *testing.T) {
	_, err := load(t, map[string]string{
		"CARDS_AI_PROVIDER":           "openai",
		"CARDS_GALLERY_GUEST_POLICY":  "shrug",
		"CARDS_RENDER_TIMEZONE":       "Mars/Olympus",
		"CARDS_FIREBASE_CALL_TIMEOUT": "-1s",
	})
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	want := map[string]bool{"Firebase.ProjectID": true, "AI.Provider": true, "Gallery.GuestPolicy": true, "Render.TimeZone": true, "Firebase.CallTimeout": true}
	for _, field := range validation.Fields() {
		delete(want, field)
	}
	if len(want) != 0 {
		t.Fatalf("expected fields %v to be reported, got %v", want, validation.Fields())
	}
}

func TestLoadSecretErrors(t *testing.T) {
	env := map[string]string{
		"CARDS_FIREBASE_PROJECT_ID": "bk-dev",
		"CARDS_AI_API_KEY":          "secret://missing",
	}
	_, err := load(t, env)
	var secretErr *SecretError
	if !errors.As(err, &secretErr) || secretErr.Ref != "secret://missing" {
		t.Fatalf("expected SecretError for missing resolver, got %v", err)
	}

	_, err = load(t, map[string]string{"CARDS_FIREBASE_PROJECT_ID": "bk-dev"}, WithRequiredSecrets("AI.APIKey"))
	var missing *MissingSecretsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingSecretsError, got %v", err)
	}
	if names := missing.Names(); len(names) != 1 || names[0] != "AI.APIKey" {
		t.Fatalf("unexpected missing names %v", names)
	}
}

func TestLoadDotEnvAndPrecedence(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "# local\nexport CARDS_SERVER_PORT=7070\nCARDS_FIREBASE_PROJECT_ID=\"bk-dot\"\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write dotenv: %v", err)
	}

	cfg, err := Load(context.Background(), WithEnvFile(envPath), WithoutSystemEnv(),
		WithEnvMap(map[string]string{"CARDS_SERVER_PORT": "6060"}))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != "6060" {
		t.Errorf("expected explicit map to win over dotenv, got %s", cfg.Server.Port)
	}
	if cfg.Firebase.ProjectID != "bk-dot" {
		t.Errorf("expected quoted dotenv value to be unwrapped, got %s", cfg.Firebase.ProjectID)
	}

	values, err := EnvironmentValues(WithEnvFile(envPath), WithoutSystemEnv(),
		WithEnvMap(map[string]string{"CARDS_SECRETS_FALLBACK_FILE": ".secrets.local"}))
	if err != nil {
		t.Fatalf("EnvironmentValues returned error: %v", err)
	}
	if values["CARDS_SERVER_PORT"] != "7070" || values["CARDS_SECRETS_FALLBACK_FILE"] != ".secrets.local" {
		t.Fatalf("unexpected merged values %v", values)
	}
}
