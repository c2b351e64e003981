package mailauth

import (
	"context"

	"golang.org/x/oauth2"
	"taxfolio/pkg/domain"
)

// Provider drives the OAuth flow for one mail provider.
type Provider interface {
	// Name returns the provider identifier ("gmail").
	Name() domain.Provider

	// AuthURL returns the authorization URL carrying the opaque state token.
	AuthURL(state string) string

	// Exchange trades an authorization code for tokens.
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)

	// Refresh renews an expired access token using the stored refresh token.
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}
