package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"taxfolio/internal/docparse"
	"taxfolio/internal/tax"
	"taxfolio/internal/util"
	"taxfolio/pkg/ai"
	"taxfolio/pkg/domain"
	"taxfolio/pkg/store"
)

// accessTokenFor returns a usable access token for the mailbox, refreshing
// and persisting it first when it is expired or about to expire.
func (a *App) accessTokenFor(ctx context.Context, user domain.User, email string) (string, error) {
	record, ok, err := a.store.GetToken(user.ID, domain.ProviderGmail, email)
	if err != nil {
		return "", fmt.Errorf("fetch token: %w", err)
	}
	if !ok || record.AccessToken == "" {
		return "", ErrMailboxNotConnected
	}
	if !record.Expired(a.now(), a.tokenSkew) {
		return record.AccessToken, nil
	}
	if a.mailProvider == nil {
		return "", ErrNotConfigured
	}
	if record.RefreshToken == "" {
		return "", ErrMailboxNotConnected
	}
	refreshed, err := a.mailProvider.Refresh(ctx, record.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("refresh token: %w", err)
	}
	record.AccessToken = refreshed.AccessToken
	if refreshed.RefreshToken != "" {
		record.RefreshToken = refreshed.RefreshToken
	}
	record.ExpiresAt = refreshed.Expiry
	record.UpdatedAt = a.now().UTC()
	if err := a.store.UpsertToken(record); err != nil {
		return "", fmt.Errorf("store refreshed token: %w", err)
	}
	return record.AccessToken, nil
}

// FetchEmails pulls recent messages from the connected mailbox, stores them,
// and returns the user's stored emails. Re-fetching never clears scan flags
// on emails already stored.
func (a *App) FetchEmails(ctx context.Context, user domain.User, email string) ([]domain.Email, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email", ErrMissingParameter)
	}
	if a.mail == nil {
		return nil, ErrNotConfigured
	}
	accessToken, err := a.accessTokenFor(ctx, user, email)
	if err != nil {
		return nil, err
	}
	messages, err := a.mail.ListRecentMessages(ctx, accessToken)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	emails := make([]domain.Email, 0, len(messages))
	for _, msg := range messages {
		emails = append(emails, domain.Email{
			ID:          msg.ID,
			UserID:      user.ID,
			FromAddress: msg.From,
			Subject:     msg.Subject,
			Date:        msg.Date,
			Preview:     msg.Snippet,
			Read:        msg.Read,
			Starred:     msg.Starred,
		})
	}
	if err := a.store.SaveEmails(user.ID, emails); err != nil {
		return nil, fmt.Errorf("save emails: %w", err)
	}
	stored, err := a.store.ListEmails(user.ID)
	if err != nil {
		return nil, fmt.Errorf("list emails: %w", err)
	}
	return stored, nil
}

// scanEmailSummary is the per-email shape fed to the model during a scan.
type scanEmailSummary struct {
	ID      string `json:"id"`
	From    string `json:"from"`
	Subject string `json:"subject"`
	Date    string `json:"date"`
	Preview string `json:"preview"`
}

// ScanEmails asks the model which stored emails likely carry tax documents
// and flags the matches. Matches for email IDs the user does not have are
// dropped.
func (a *App) ScanEmails(ctx context.Context, user domain.User) ([]domain.EmailDocument, error) {
	if a.generator == nil {
		return nil, ErrNotConfigured
	}
	emails, err := a.store.ListEmails(user.ID)
	if err != nil {
		return nil, fmt.Errorf("list emails: %w", err)
	}
	if len(emails) == 0 {
		return nil, ErrNoEmails
	}
	summaries := make([]scanEmailSummary, 0, len(emails))
	for _, e := range emails {
		summaries = append(summaries, scanEmailSummary{
			ID:      e.ID,
			From:    e.FromAddress,
			Subject: e.Subject,
			Date:    e.Date.Format("2006-01-02"),
			Preview: e.Preview,
		})
	}
	payload, err := json.Marshal(summaries)
	if err != nil {
		return nil, fmt.Errorf("marshal emails: %w", err)
	}
	response, err := a.generator.GenerateText(ctx, tax.ScanSystemPrompt, tax.ScanPrompt(string(payload)))
	if err != nil {
		return nil, fmt.Errorf("scan emails: %w", err)
	}
	var documents []domain.EmailDocument
	if err := ai.DecodeJSON(response, &documents); err != nil {
		return nil, err
	}
	matched := documents[:0]
	for _, doc := range documents {
		err := a.store.MarkTaxDocument(user.ID, doc.ID, doc.Type)
		if errors.Is(err, store.ErrEmailNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("flag email: %w", err)
		}
		matched = append(matched, doc)
	}
	return matched, nil
}

// ListEmails returns the user's stored emails, newest first.
func (a *App) ListEmails(user domain.User) ([]domain.Email, error) {
	return a.store.ListEmails(user.ID)
}

// UpdateEmail sets the read or starred flag on one of the user's emails.
func (a *App) UpdateEmail(user domain.User, emailID string, read, starred *bool) (domain.Email, error) {
	if strings.TrimSpace(emailID) == "" {
		return domain.Email{}, fmt.Errorf("%w: id", ErrMissingParameter)
	}
	return a.store.UpdateEmail(user.ID, emailID, read, starred)
}

// DeleteEmails removes the given emails from the user's stored set.
func (a *App) DeleteEmails(user domain.User, emailIDs []string) error {
	if len(emailIDs) == 0 {
		return fmt.Errorf("%w: ids", ErrMissingParameter)
	}
	return a.store.DeleteEmails(user.ID, emailIDs)
}

// AnalyzeEmailContent extracts tax document fields from pasted email text or
// HTML and stores the extracted record.
func (a *App) AnalyzeEmailContent(ctx context.Context, user domain.User, content string) (domain.TaxDocument, error) {
	if strings.TrimSpace(content) == "" {
		return domain.TaxDocument{}, fmt.Errorf("%w: content", ErrMissingParameter)
	}
	if a.generator == nil {
		return domain.TaxDocument{}, ErrNotConfigured
	}
	text, err := docparse.ExtractHTMLText(content)
	if err != nil || text == "" {
		text = strings.TrimSpace(content)
	}
	response, err := a.generator.GenerateText(ctx, tax.DocumentSystemPrompt, tax.EmailContentPrompt(text))
	if err != nil {
		return domain.TaxDocument{}, fmt.Errorf("analyze email content: %w", err)
	}
	extracted, err := decodeExtractedDocument(response)
	if err != nil {
		return domain.TaxDocument{}, err
	}
	doc := domain.TaxDocument{
		ID:            util.NewID(),
		UserID:        user.ID,
		DocumentType:  extracted.DocumentType,
		Issuer:        extracted.Issuer,
		TaxYear:       extracted.TaxYear,
		FinancialData: extracted.FinancialData,
		SourceName:    "Pasted Email Content",
		CreatedAt:     a.now().UTC(),
	}
	if err := a.store.SaveTaxDocument(doc); err != nil {
		return domain.TaxDocument{}, fmt.Errorf("save tax document: %w", err)
	}
	return doc, nil
}
