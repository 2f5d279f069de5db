// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/rmaia/budget-calendar-go/internal/domain"
)

// ProfileFetcher retrieves the onboarding data the engine consumes.
type ProfileFetcher interface {
	GetProfile(ctx context.Context, userID string) (*domain.BudgetProfile, error)
}

// PlanStore persists calendar plans: per-day entries plus the per-category
// monthly baselines redistribution reconciles against.
type PlanStore interface {
	// ReplaceMonth atomically swaps a user's month: all prior entries and
	// baselines for (user, year, month) are removed and the document is
	// written in their place.
	ReplaceMonth(ctx context.Context, doc *domain.PlanDocument) error

	// ListMonth returns every entry for (user, year, month), date then
	// category ascending. Empty slice when no plan exists.
	ListMonth(ctx context.Context, userID string, year, month int) ([]domain.PlanEntry, error)

	// GetBaselines returns the persisted per-category baselines for the
	// month. domain.ErrNotFound when the month was never planned.
	GetBaselines(ctx context.Context, userID string, year, month int) (map[string]decimal.Decimal, error)

	// UpdateBaselines rewrites the baselines for the categories present
	// in the map, leaving others untouched.
	UpdateBaselines(ctx context.Context, userID string, year, month int, baselines map[string]decimal.Decimal) error

	// GetEntry fetches one (user, date, category) entry.
	GetEntry(ctx context.Context, userID, date, category string) (*domain.PlanEntry, error)

	// UpsertEntry writes one entry keyed by (user, date, category).
	UpsertEntry(ctx context.Context, entry *domain.PlanEntry) error

	// UpdateEntries writes the planned/spent/status of already-existing
	// entries in one batch.
	UpdateEntries(ctx context.Context, entries []*domain.PlanEntry) error

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
