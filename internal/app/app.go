// Package app implements the core application logic: accounts, the mailbox
// OAuth flow, email scanning, and the document extraction pipeline.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"taxfolio/internal/util"
	"taxfolio/pkg/ai"
	"taxfolio/pkg/auth"
	"taxfolio/pkg/domain"
	"taxfolio/pkg/gmail"
	"taxfolio/pkg/mailauth"
	"taxfolio/pkg/storage"
	"taxfolio/pkg/store"
)

const defaultTokenSkew = 30 * time.Second

// MailClient lists a mailbox's recent messages with a bearer access token.
type MailClient interface {
	ListRecentMessages(ctx context.Context, accessToken string) ([]gmail.Message, error)
}

// Config holds the dependencies and tunables for the core application.
type Config struct {
	Store        store.Store
	AuthStates   store.AuthStateStore
	Sessions     store.SessionStore
	MailProvider mailauth.Provider
	Mail         MailClient
	Generator    ai.TextGenerator
	Objects      storage.ObjectStore

	// TokenSkew is how close to expiry an access token gets refreshed
	// before use.
	TokenSkew time.Duration
	Now       func() time.Time
}

// App is the core application service wiring together storage, the mail
// provider, and the model client.
type App struct {
	store        store.Store
	authStates   store.AuthStateStore
	sessions     store.SessionStore
	mailProvider mailauth.Provider
	mail         MailClient
	generator    ai.TextGenerator
	objects      storage.ObjectStore
	tokenSkew    time.Duration
	now          func() time.Time
}

// New constructs the application. Store, AuthStates, and Sessions are
// required; the mail and model dependencies may be nil, in which case the
// operations needing them fail with a configuration error.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store required")
	}
	if cfg.AuthStates == nil {
		return nil, fmt.Errorf("auth state store required")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session store required")
	}
	if cfg.TokenSkew <= 0 {
		cfg.TokenSkew = defaultTokenSkew
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Objects == nil {
		cfg.Objects = storage.NewMemoryStore()
	}
	return &App{
		store:        cfg.Store,
		authStates:   cfg.AuthStates,
		sessions:     cfg.Sessions,
		mailProvider: cfg.MailProvider,
		mail:         cfg.Mail,
		generator:    cfg.Generator,
		objects:      cfg.Objects,
		tokenSkew:    cfg.TokenSkew,
		now:          cfg.Now,
	}, nil
}

// SignUp registers a new user with default role user. The first account
// becomes admin.
func (a *App) SignUp(email, password string) (domain.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return domain.User{}, "", ErrEmailAndPasswordRequired
	}
	if err := auth.ValidatePassword(password); err != nil {
		return domain.User{}, "", err
	}
	exists, err := a.store.HasUserEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.User{}, "", ErrEmailAlreadyExists
	}
	count, err := a.store.UserCount()
	if err != nil {
		return domain.User{}, "", fmt.Errorf("count users: %w", err)
	}
	role := domain.RoleUser
	if count == 0 {
		role = domain.RoleAdmin
	}
	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("hash password: %w", err)
	}
	now := a.now().UTC()
	user := domain.User{
		ID:           util.NewID(),
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		Status:       domain.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, "", fmt.Errorf("save user: %w", err)
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("create session: %w", err)
	}
	return user, token, nil
}

// Login validates credentials and issues a session token.
func (a *App) Login(email, password string) (domain.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, "", ErrInvalidCredentials
	}
	if user.Status == domain.StatusDisabled {
		return domain.User{}, "", ErrUserDisabled
	}
	if !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("create session: %w", err)
	}
	return user, token, nil
}

// Logout revokes a session token.
func (a *App) Logout(token string) error {
	return a.sessions.DeleteSession(token)
}

// UserFromToken resolves a user from a session token.
func (a *App) UserFromToken(token string) (domain.User, bool) {
	uid, ok, err := a.sessions.GetUserIDByToken(token)
	if err != nil || !ok {
		return domain.User{}, false
	}
	user, ok, err := a.store.GetUserByID(uid)
	if err != nil || !ok {
		return domain.User{}, false
	}
	if user.Status == domain.StatusDisabled {
		return domain.User{}, false
	}
	return user, true
}
