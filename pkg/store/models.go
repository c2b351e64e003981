package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"not null"`
	Status       string
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

// TokenModel holds mailbox OAuth credentials, one row per
// (user, provider, email). Repeated connects overwrite the row.
type TokenModel struct {
	UserID       string `gorm:"primaryKey"`
	Provider     string `gorm:"primaryKey"`
	Email        string `gorm:"primaryKey"`
	AccessToken  string `gorm:"not null"`
	RefreshToken string
	ExpiresAt    time.Time
	UpdatedAt    time.Time `gorm:"not null"`
}

// EmailModel rows are keyed per user: two accounts fetching the same
// mailbox (or colliding provider IDs) never share a row.
type EmailModel struct {
	UserID         string    `gorm:"primaryKey"`
	ID             string    `gorm:"primaryKey"`
	FromAddress    string    `gorm:"not null"`
	Subject        string    `gorm:"not null"`
	Date           time.Time `gorm:"not null;index"`
	Preview        string    `gorm:"type:text"`
	Read           bool
	Starred        bool
	HasTaxDocument bool
	DocumentType   string
}

type TaxDocumentModel struct {
	ID            string         `gorm:"primaryKey"`
	UserID        string         `gorm:"not null;index"`
	DocumentType  string         `gorm:"not null"`
	Issuer        string
	TaxYear       string
	FinancialData datatypes.JSON `gorm:"type:jsonb"`
	SourceEmailID string
	SourceName    string
	StorageKey    string
	CreatedAt     time.Time `gorm:"not null;index"`
}
