package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	gc "github.com/joshsymonds/footprint/internal/gmail"
)

// Credential files expected in the auth directory. The layout matches gmailctl's
// so an existing OAuth client can be reused.
const (
	CredentialsFile = "credentials.json"
	TokenFile       = "token.json"
)

// NewGmailClient builds a read-only Gmail client from the OAuth client and the
// refresh token stored in cfgDir.
func NewGmailClient(ctx context.Context, cfgDir string) (gc.Client, error) {
	ts, err := TokenSource(ctx, cfgDir)
	if err != nil {
		return nil, err
	}
	svc, err := gmail.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return NewGoogleAPIClient(svc), nil
}

// TokenSource loads the OAuth client config and the persisted token. The
// returned source refreshes the access token as needed.
func TokenSource(ctx context.Context, cfgDir string) (oauth2.TokenSource, error) {
	credPath := filepath.Join(cfgDir, CredentialsFile)
	raw, err := os.ReadFile(credPath) // #nosec G304 - path chosen by the operator
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", credPath, err)
	}
	cfg, err := google.ConfigFromJSON(raw, gmail.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", credPath, err)
	}
	tok, err := readToken(filepath.Join(cfgDir, TokenFile))
	if err != nil {
		return nil, err
	}
	return cfg.TokenSource(ctx, tok), nil
}

func readToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path) // #nosec G304 - path chosen by the operator
	if err != nil {
		return nil, fmt.Errorf("open token: %w", err)
	}
	defer func() { _ = f.Close() }()
	var tok oauth2.Token
	if err := json.NewDecoder(f).Decode(&tok); err != nil {
		return nil, fmt.Errorf("decode token %s: %w", path, err)
	}
	if tok.RefreshToken == "" && tok.AccessToken == "" {
		return nil, fmt.Errorf("token %s holds no credentials", path)
	}
	return &tok, nil
}

func DefaultLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
