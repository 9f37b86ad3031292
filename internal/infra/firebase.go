// README: Firebase Admin SDK initialisation; token verifier, identity, RTDB and FCM clients.
package infra

import (
	"context"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"firebase.google.com/go/v4/db"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"commute/internal/config"
	"commute/internal/types"
)

// FirebaseToken holds the verified token data used by downstream middleware.
type FirebaseToken struct {
	UID    string
	Claims map[string]interface{}
}

// TokenVerifier verifies a raw Firebase ID token string and returns token data.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*FirebaseToken, error)
}

// Firebase wraps the initialised app and its auth client.
type Firebase struct {
	app         *firebase.App
	auth        *auth.Client
	databaseURL string
}

// NewFirebase initialises the Admin SDK. If CredentialsFile is empty,
// application-default credentials / GOOGLE_APPLICATION_CREDENTIALS are used.
func NewFirebase(ctx context.Context, cfg config.FirebaseConfig) (*Firebase, error) {
	opts := []option.ClientOption{}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{
		ProjectID:   cfg.ProjectID,
		DatabaseURL: cfg.DatabaseURL,
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase.NewApp: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase app.Auth: %w", err)
	}
	return &Firebase{app: app, auth: client, databaseURL: cfg.DatabaseURL}, nil
}

// HasDatabase reports whether a Realtime Database URL was configured.
func (f *Firebase) HasDatabase() bool {
	return f.databaseURL != ""
}

func (f *Firebase) Database(ctx context.Context) (*db.Client, error) {
	c, err := f.app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase RTDB client: %w", err)
	}
	return c, nil
}

func (f *Firebase) Messaging(ctx context.Context) (*messaging.Client, error) {
	c, err := f.app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase messaging client: %w", err)
	}
	return c, nil
}

func (f *Firebase) Verifier() TokenVerifier {
	return &firebaseVerifier{client: f.auth}
}

func (f *Firebase) Identity() *Identity {
	return &Identity{client: f.auth}
}

type firebaseVerifier struct {
	client *auth.Client
}

func (v *firebaseVerifier) VerifyIDToken(ctx context.Context, idToken string) (*FirebaseToken, error) {
	token, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, err
	}
	return &FirebaseToken{UID: token.UID, Claims: token.Claims}, nil
}

// Identity resolves user profile data from Firebase Auth.
type Identity struct {
	client *auth.Client
}

// FirstName is the first word of the user's display name.
func (i *Identity) FirstName(ctx context.Context, userID types.ID) (string, error) {
	u, err := i.client.GetUser(ctx, string(userID))
	if err != nil {
		return "", fmt.Errorf("get user %s: %w", userID, err)
	}
	return firstName(u.DisplayName), nil
}

func firstName(displayName string) string {
	fields := strings.Fields(displayName)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
