package app

import (
	"context"
	"fmt"
	"strings"

	"taxfolio/internal/tax"
	"taxfolio/pkg/ai"
	"taxfolio/pkg/domain"
)

// FilingQuery is the taxpayer profile for a filing-requirement check.
type FilingQuery struct {
	State        string  `json:"state"`
	Age          int     `json:"age"`
	Income       float64 `json:"income"`
	FilingStatus string  `json:"filingStatus"`
}

// CheckFilingRequirements asks the model whether the given taxpayer must
// file federal and state taxes.
func (a *App) CheckFilingRequirements(ctx context.Context, query FilingQuery) (domain.FilingRequirement, error) {
	if strings.TrimSpace(query.State) == "" {
		return domain.FilingRequirement{}, fmt.Errorf("%w: state", ErrMissingParameter)
	}
	if strings.TrimSpace(query.FilingStatus) == "" {
		return domain.FilingRequirement{}, fmt.Errorf("%w: filingStatus", ErrMissingParameter)
	}
	if query.Age <= 0 {
		return domain.FilingRequirement{}, fmt.Errorf("%w: age", ErrMissingParameter)
	}
	if query.Income < 0 {
		return domain.FilingRequirement{}, fmt.Errorf("%w: income", ErrMissingParameter)
	}
	if a.generator == nil {
		return domain.FilingRequirement{}, ErrNotConfigured
	}
	prompt := tax.FilingPrompt(
		tax.StateFullName(strings.ToUpper(strings.TrimSpace(query.State))),
		query.Age,
		query.Income,
		tax.FilingStatusName(query.FilingStatus),
	)
	response, err := a.generator.GenerateText(ctx, tax.FilingSystemPrompt, prompt)
	if err != nil {
		return domain.FilingRequirement{}, fmt.Errorf("check filing requirements: %w", err)
	}
	var requirement domain.FilingRequirement
	if err := ai.DecodeJSON(response, &requirement); err != nil {
		return domain.FilingRequirement{}, err
	}
	return requirement, nil
}
