package mailauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"taxfolio/pkg/domain"
)

// GmailScopeReadonly is the only scope the scanner needs.
const GmailScopeReadonly = "https://www.googleapis.com/auth/gmail.readonly"

// ErrNotConfigured indicates OAuth client credentials are missing.
var ErrNotConfigured = errors.New("oauth credentials for gmail are not configured")

// GoogleProvider implements Provider against Google's OAuth2 endpoints.
type GoogleProvider struct {
	config *oauth2.Config
}

// GoogleOption overrides provider defaults; tests point the endpoint at a
// local server.
type GoogleOption func(*oauth2.Config)

// WithEndpoint replaces the token/authorize endpoint.
func WithEndpoint(endpoint oauth2.Endpoint) GoogleOption {
	return func(cfg *oauth2.Config) {
		cfg.Endpoint = endpoint
	}
}

// NewGoogleProvider builds the Gmail OAuth provider.
// redirectURL must match the URI registered with the OAuth client.
func NewGoogleProvider(clientID, clientSecret, redirectURL string, opts ...GoogleOption) (*GoogleProvider, error) {
	if strings.TrimSpace(clientID) == "" || strings.TrimSpace(clientSecret) == "" {
		return nil, ErrNotConfigured
	}
	cfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     google.Endpoint,
		Scopes:       []string{GmailScopeReadonly},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return &GoogleProvider{config: cfg}, nil
}

func (p *GoogleProvider) Name() domain.Provider {
	return domain.ProviderGmail
}

// AuthURL builds the consent URL. access_type=offline makes Google return a
// refresh token on first consent.
func (p *GoogleProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for tokens.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	return token, nil
}

// Refresh renews an access token from the stored refresh token.
func (p *GoogleProvider) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, errors.New("refresh token required")
	}
	token, err := p.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("refresh access token: %w", err)
	}
	return token, nil
}
