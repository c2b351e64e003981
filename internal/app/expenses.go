package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"taxfolio/internal/docparse"
	"taxfolio/internal/tax"
	"taxfolio/internal/util"
	"taxfolio/pkg/ai"
	"taxfolio/pkg/domain"
)

// ClassifyExpenses extracts transactions from an uploaded statement and has
// the model classify each one for tax purposes. The summary totals are
// computed here, not taken from the model.
func (a *App) ClassifyExpenses(ctx context.Context, user domain.User, upload DocumentUpload) (domain.ClassificationResult, error) {
	if a.generator == nil {
		return domain.ClassificationResult{}, ErrNotConfigured
	}
	if len(upload.Data) == 0 {
		return domain.ClassificationResult{}, ErrNoFiles
	}
	transactions, err := a.extractTransactions(ctx, upload)
	if err != nil {
		return domain.ClassificationResult{}, err
	}
	payload, err := json.Marshal(transactions)
	if err != nil {
		return domain.ClassificationResult{}, fmt.Errorf("marshal transactions: %w", err)
	}
	response, err := a.generator.GenerateText(ctx, tax.ExpenseSystemPrompt, tax.ExpensePrompt(string(payload)))
	if err != nil {
		return domain.ClassificationResult{}, fmt.Errorf("classify expenses: %w", err)
	}
	var classified struct {
		Expenses []domain.Expense `json:"expenses"`
	}
	if err := ai.DecodeJSON(response, &classified); err != nil {
		return domain.ClassificationResult{}, err
	}
	for i := range classified.Expenses {
		if classified.Expenses[i].ID == "" {
			classified.Expenses[i].ID = util.NewID()
		}
	}
	return domain.ClassificationResult{
		Expenses: classified.Expenses,
		Summary:  summarizeExpenses(classified.Expenses),
	}, nil
}

// extractTransactions turns an uploaded statement into transactions. CSV and
// PDF content both go through the model to normalize bank-specific formats.
func (a *App) extractTransactions(ctx context.Context, upload DocumentUpload) ([]domain.Transaction, error) {
	var systemPrompt, userPrompt string
	switch uploadKind(upload) {
	case "pdf":
		text, err := docparse.ExtractPDFText(upload.Data)
		if err != nil {
			return nil, err
		}
		systemPrompt = tax.PDFSystemPrompt
		userPrompt = tax.PDFTransactionsPrompt(text)
	case "csv":
		records, err := docparse.ParseCSVRecords(bytes.NewReader(upload.Data))
		if err != nil {
			return nil, err
		}
		rows, err := json.Marshal(records)
		if err != nil {
			return nil, fmt.Errorf("marshal csv rows: %w", err)
		}
		systemPrompt = tax.CSVSystemPrompt
		userPrompt = tax.CSVStandardizePrompt(string(rows))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, upload.Filename)
	}
	response, err := a.generator.GenerateText(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("extract transactions: %w", err)
	}
	var transactions []domain.Transaction
	if err := ai.DecodeJSON(response, &transactions); err != nil {
		return nil, err
	}
	if len(transactions) == 0 {
		return nil, fmt.Errorf("%w: no transactions found", ai.ErrMalformedResponse)
	}
	return transactions, nil
}

func summarizeExpenses(expenses []domain.Expense) domain.ExpenseSummary {
	summary := domain.ExpenseSummary{CategoryCounts: map[string]int{}}
	for _, e := range expenses {
		summary.TotalExpenses += e.Amount
		if e.Deductible {
			summary.TotalDeductible += e.Amount
		}
		if e.Category != "" {
			summary.CategoryCounts[e.Category]++
		}
	}
	return summary
}
