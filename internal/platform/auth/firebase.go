package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/basherkella/cardstudio/internal/platform/config"
)

var errFirebaseUnavailable = errors.New("auth: firebase client not initialised")

// FirebaseClient wraps the Admin SDK auth client with bounded calls.
type FirebaseClient struct {
	client  *firebaseauth.Client
	timeout time.Duration
}

// FirebaseOption customises FirebaseClient.
type FirebaseOption func(*FirebaseClient)

// WithFirebaseTimeout overrides the per-call timeout.
func WithFirebaseTimeout(d time.Duration) FirebaseOption {
	return func(c *FirebaseClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewFirebaseClient initialises the Admin SDK for cfg.ProjectID.
func NewFirebaseClient(ctx context.Context, cfg config.FirebaseConfig, opts ...FirebaseOption) (*FirebaseClient, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("firebase project id is required")
	}
	var clientOpts []option.ClientOption
	if cfg.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase app: %w", err)
	}
	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase auth client: %w", err)
	}

	c := &FirebaseClient{client: authClient, timeout: defaultVerifyTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// VerifyIDToken checks a Firebase ID token.
func (c *FirebaseClient) VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error) {
	if c == nil || c.client == nil {
		return nil, errFirebaseUnavailable
	}
	ctx, cancel := c.bounded(ctx)
	defer cancel()
	return c.client.VerifyIDToken(ctx, idToken)
}

// GetUser loads the user record for uid.
func (c *FirebaseClient) GetUser(ctx context.Context, uid string) (*firebaseauth.UserRecord, error) {
	if c == nil || c.client == nil {
		return nil, errFirebaseUnavailable
	}
	ctx, cancel := c.bounded(ctx)
	defer cancel()
	return c.client.GetUser(ctx, uid)
}

// SetRoleClaim replaces the "role" custom claim for uid. Existing claims
// other than role are preserved.
func (c *FirebaseClient) SetRoleClaim(ctx context.Context, uid, role string) error {
	if c == nil || c.client == nil {
		return errFirebaseUnavailable
	}
	ctx, cancel := c.bounded(ctx)
	defer cancel()

	record, err := c.client.GetUser(ctx, uid)
	if err != nil {
		return fmt.Errorf("load user %s: %w", uid, err)
	}
	claims := make(map[string]any, len(record.CustomClaims)+1)
	for k, v := range record.CustomClaims {
		claims[k] = v
	}
	claims[defaultRoleClaim] = role
	return c.client.SetCustomUserClaims(ctx, uid, claims)
}

// RevokeSessions invalidates every refresh token issued to uid.
func (c *FirebaseClient) RevokeSessions(ctx context.Context, uid string) error {
	if c == nil || c.client == nil {
		return errFirebaseUnavailable
	}
	ctx, cancel := c.bounded(ctx)
	defer cancel()
	return c.client.RevokeRefreshTokens(ctx, uid)
}

func (c *FirebaseClient) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}
