package domain

import "time"

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

type UserStatus string

const (
	StatusActive   UserStatus = "active"
	StatusDisabled UserStatus = "disabled"
)

// Provider identifies a connected mail provider. Gmail is the only one
// supported today.
type Provider string

const ProviderGmail Provider = "gmail"

type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         UserRole   `json:"role"`
	Status       UserStatus `json:"status"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// AuthState is the server-side payload behind an opaque OAuth state token.
// A state is consumed at most once and expires after a TTL.
type AuthState struct {
	State     string    `json:"state"`
	UserID    string    `json:"userId"`
	Provider  Provider  `json:"provider"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// TokenRecord holds OAuth credentials for one connected mailbox.
type TokenRecord struct {
	UserID       string    `json:"userId"`
	Provider     Provider  `json:"provider"`
	Email        string    `json:"email"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expiresAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Expired reports whether the access token is expired or expires within skew.
func (t TokenRecord) Expired(now time.Time, skew time.Duration) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(skew).Before(t.ExpiresAt)
}

type Email struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	FromAddress    string    `json:"from_address"`
	Subject        string    `json:"subject"`
	Date           time.Time `json:"date"`
	Preview        string    `json:"preview"`
	Read           bool      `json:"read"`
	Starred        bool      `json:"starred"`
	HasTaxDocument bool      `json:"has_tax_document"`
	DocumentType   string    `json:"document_type,omitempty"`
}

// EmailDocument is one scan hit: an email the model flagged as likely
// carrying a tax document.
type EmailDocument struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Sender  string `json:"sender"`
	Date    string `json:"date"`
	Subject string `json:"subject"`
	Preview string `json:"preview"`
}

// TaxDocument is an extracted document record. It is written once and never
// mutated afterwards.
type TaxDocument struct {
	ID            string            `json:"id"`
	UserID        string            `json:"userId"`
	DocumentType  string            `json:"documentType"`
	Issuer        string            `json:"issuer"`
	TaxYear       string            `json:"taxYear"`
	FinancialData map[string]string `json:"financialData"`
	SourceEmailID string            `json:"sourceEmailId,omitempty"`
	SourceName    string            `json:"sourceName,omitempty"`
	StorageKey    string            `json:"-"`
	CreatedAt     time.Time         `json:"createdAt"`
}

// FilingRequirement is the model's answer to an IRS filing-requirement query.
type FilingRequirement struct {
	MustFile                bool     `json:"mustFile"`
	FilingRequirementReason string   `json:"filingRequirementReason"`
	RequiredFederalForms    []string `json:"requiredFederalForms"`
	RequiredStateForms      []string `json:"requiredStateForms"`
	TaxRates                string   `json:"taxRates"`
	Deadlines               string   `json:"deadlines"`
	SourceExcerpt           string   `json:"sourceExcerpt"`
	SourceURL               string   `json:"sourceUrl"`
}

type Transaction struct {
	Date        string  `json:"date"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

type Expense struct {
	ID          string  `json:"id"`
	Date        string  `json:"date"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	Deductible  bool    `json:"deductible"`
	Confidence  float64 `json:"confidence"`
}

type ExpenseSummary struct {
	TotalExpenses   float64        `json:"totalExpenses"`
	TotalDeductible float64        `json:"totalDeductible"`
	CategoryCounts  map[string]int `json:"categoryCounts"`
}

type ClassificationResult struct {
	Expenses []Expense      `json:"expenses"`
	Summary  ExpenseSummary `json:"summary"`
}
