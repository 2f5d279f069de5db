package postgrest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/rmaia/budget-calendar-go/internal/domain"
)

// profileRow maps the budget_profiles table columns to our domain. Fixed
// expenses and overrides live in jsonb columns.
type profileRow struct {
	UserID        string                     `json:"user_id"`
	MonthlyIncome decimal.Decimal            `json:"monthly_income"`
	Region        string                     `json:"region"`
	FixedExpenses []fixedExpenseRow          `json:"fixed_expenses"`
	Overrides     map[string]decimal.Decimal `json:"category_overrides"`
}

type fixedExpenseRow struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// GetProfile fetches a user's budget profile. Implements port.ProfileFetcher.
func (c *Client) GetProfile(ctx context.Context, userID string) (*domain.BudgetProfile, error) {
	ctx, span := tracer.Start(ctx, "PostgREST.GetProfile")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	path := fmt.Sprintf("budget_profiles?user_id=eq.%s&limit=1", url.QueryEscape(userID))

	var rows []profileRow
	err := c.execute(ctx, func() error {
		body, err := c.doGet(ctx, path)
		if err != nil {
			return err
		}
		rows = nil
		if body == nil || string(body) == "[]" {
			return nil
		}
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode profile: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "postgrest/profile", Err: err}
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "profile", ID: userID}
	}

	r := rows[0]
	profile := &domain.BudgetProfile{
		UserID:        r.UserID,
		MonthlyIncome: r.MonthlyIncome,
		Region:        r.Region,
		Overrides:     r.Overrides,
	}
	for _, e := range r.FixedExpenses {
		profile.FixedExpenses = append(profile.FixedExpenses, domain.FixedExpense{
			Name:   e.Name,
			Amount: e.Amount,
		})
	}
	return profile, nil
}
