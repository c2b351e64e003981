package store

import (
	"errors"
	"time"

	"taxfolio/pkg/domain"
)

var (
	// ErrStateNotFound indicates the OAuth state is unknown, expired, or
	// already consumed.
	ErrStateNotFound = errors.New("auth state not found")
	// ErrTokenNotFound indicates no stored credentials for the mailbox.
	ErrTokenNotFound = errors.New("token record not found")
	// ErrEmailNotFound indicates the email record does not exist for the user.
	ErrEmailNotFound = errors.New("email not found")
	// ErrDocumentNotFound indicates the tax document does not exist for the
	// user.
	ErrDocumentNotFound = errors.New("tax document not found")
)

// Store defines persistence operations for users, mailbox tokens, emails,
// and extracted tax documents.
type Store interface {
	// users
	SaveUser(domain.User) error
	HasUserEmail(email string) (bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)
	UserCount() (int, error)

	// mailbox tokens
	UpsertToken(domain.TokenRecord) error
	GetToken(userID string, provider domain.Provider, email string) (domain.TokenRecord, bool, error)

	// emails
	SaveEmails(userID string, emails []domain.Email) error
	ListEmails(userID string) ([]domain.Email, error)
	UpdateEmail(userID, emailID string, read, starred *bool) (domain.Email, error)
	MarkTaxDocument(userID, emailID, documentType string) error
	DeleteEmails(userID string, emailIDs []string) error

	// tax documents
	SaveTaxDocument(domain.TaxDocument) error
	GetTaxDocument(userID, documentID string) (domain.TaxDocument, error)
	ListTaxDocuments(userID string) ([]domain.TaxDocument, error)
	DeleteTaxDocument(userID, documentID string) error
}

// AuthStateStore persists pending OAuth states. A state is opaque and
// single-use: Consume returns the payload at most once.
type AuthStateStore interface {
	SaveState(state domain.AuthState) error
	ConsumeState(state string) (domain.AuthState, error)
}

// SessionStore persists session tokens.
type SessionStore interface {
	NewSession(userID string) (string, error)
	GetUserIDByToken(token string) (string, bool, error)
	DeleteSession(token string) error
}

// Clock abstracts time for stores that enforce TTLs; tests override it.
type Clock func() time.Time
