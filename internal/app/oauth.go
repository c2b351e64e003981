package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"taxfolio/internal/util"
	"taxfolio/pkg/domain"
	"taxfolio/pkg/store"
)

// ConnectMailbox starts the OAuth flow for a mailbox and returns the consent
// URL the user is sent to. The state token in the URL is opaque; the
// mailbox identity lives server-side until the callback consumes it.
func (a *App) ConnectMailbox(user domain.User, email string, provider domain.Provider) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", fmt.Errorf("%w: email", ErrMissingParameter)
	}
	if provider != domain.ProviderGmail {
		return "", fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	if a.mailProvider == nil {
		return "", ErrNotConfigured
	}
	state := util.NewStateToken()
	if err := a.authStates.SaveState(domain.AuthState{
		State:     state,
		UserID:    user.ID,
		Provider:  provider,
		Email:     email,
		CreatedAt: a.now().UTC(),
	}); err != nil {
		return "", fmt.Errorf("save auth state: %w", err)
	}
	return a.mailProvider.AuthURL(state), nil
}

// HandleOAuthCallback completes the OAuth flow: it validates and consumes
// the state, exchanges the authorization code, and stores the credentials
// for the mailbox the state was issued for.
//
// The state is consumed before the code exchange so a replayed callback can
// never trigger a second exchange.
func (a *App) HandleOAuthCallback(ctx context.Context, code, state string) (domain.AuthState, error) {
	if strings.TrimSpace(code) == "" {
		return domain.AuthState{}, fmt.Errorf("%w: code", ErrMissingParameter)
	}
	if strings.TrimSpace(state) == "" {
		return domain.AuthState{}, fmt.Errorf("%w: state", ErrMissingParameter)
	}
	if a.mailProvider == nil {
		return domain.AuthState{}, ErrNotConfigured
	}
	pending, err := a.authStates.ConsumeState(state)
	if err != nil {
		if errors.Is(err, store.ErrStateNotFound) {
			return domain.AuthState{}, ErrInvalidState
		}
		return domain.AuthState{}, fmt.Errorf("consume auth state: %w", err)
	}
	token, err := a.mailProvider.Exchange(ctx, code)
	if err != nil {
		return domain.AuthState{}, fmt.Errorf("exchange code: %w", err)
	}
	record := domain.TokenRecord{
		UserID:       pending.UserID,
		Provider:     pending.Provider,
		Email:        pending.Email,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
		UpdatedAt:    a.now().UTC(),
	}
	// Google omits the refresh token on repeat consent; keep the one we have.
	if record.RefreshToken == "" {
		if existing, ok, err := a.store.GetToken(pending.UserID, pending.Provider, pending.Email); err == nil && ok {
			record.RefreshToken = existing.RefreshToken
		}
	}
	if err := a.store.UpsertToken(record); err != nil {
		return domain.AuthState{}, fmt.Errorf("store token: %w", err)
	}
	return pending, nil
}
