// Package domain defines the core business entities for the daily budget
// calendar. These models are independent of external services and represent
// the canonical data structures used throughout the engine.
package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire format for calendar dates. Lexicographic order on
// these strings matches chronological order.
const DateLayout = "2006-01-02"

// ============================================================
// Income tiers
// ============================================================

// Tier is a coarse income/cost-of-living bracket used to select default
// budget weights and cooldown lengths.
type Tier int

const (
	TierLow Tier = iota
	TierLowerMid
	TierMid
	TierUpperMid
	TierHigh
)

var tierNames = [...]string{"low", "lower_mid", "mid", "upper_mid", "high"}

func (t Tier) String() string {
	if t < TierLow || t > TierHigh {
		return "unknown"
	}
	return tierNames[t]
}

// MarshalText lets tiers serialize as their snake_case names.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText parses a snake_case tier name, e.g. from a config file.
func (t *Tier) UnmarshalText(text []byte) error {
	for i, name := range tierNames {
		if name == string(text) {
			*t = Tier(i)
			return nil
		}
	}
	return fmt.Errorf("unknown income tier %q", string(text))
}

// ============================================================
// User profile (onboarding data, owned elsewhere)
// ============================================================

// FixedExpense is a single non-negotiable monthly expense.
type FixedExpense struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// BudgetProfile holds the onboarding data the engine consumes: income, fixed
// expenses, region, and optional explicit per-category monthly allocations.
type BudgetProfile struct {
	UserID        string                     `json:"user_id"`
	MonthlyIncome decimal.Decimal            `json:"monthly_income"`
	FixedExpenses []FixedExpense             `json:"fixed_expenses"`
	Region        string                     `json:"region"`
	Overrides     map[string]decimal.Decimal `json:"overrides,omitempty"`
}

// TotalFixedExpenses sums the fixed expenses.
func (p *BudgetProfile) TotalFixedExpenses() decimal.Decimal {
	total := decimal.Zero
	for _, e := range p.FixedExpenses {
		total = total.Add(e.Amount)
	}
	return total
}

// ============================================================
// Plan entries
// ============================================================

// EntryStatus is the derived traffic-light state of a plan entry.
type EntryStatus string

const (
	StatusGreen  EntryStatus = "green"
	StatusYellow EntryStatus = "yellow"
	StatusRed    EntryStatus = "red"
)

// PlanEntry is the persisted unit: one row per (user, date, category).
// The triple is unique; Planned and Spent carry two decimal places.
type PlanEntry struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Date      string          `json:"date"` // YYYY-MM-DD
	Category  string          `json:"category"`
	Planned   decimal.Decimal `json:"planned"`
	Spent     decimal.Decimal `json:"spent"`
	Status    EntryStatus     `json:"status"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Key returns the uniqueness key for the entry.
func (e *PlanEntry) Key() string {
	return e.UserID + "|" + e.Date + "|" + e.Category
}

// StatusOf derives the entry status from planned and spent amounts.
// green if spent/planned < 0.80, yellow in [0.80, 1.00), red at or above
// 1.00. A zero plan is green until any spending arrives, then red.
func StatusOf(planned, spent decimal.Decimal) EntryStatus {
	if planned.IsZero() {
		if spent.IsPositive() {
			return StatusRed
		}
		return StatusGreen
	}
	// spent/planned < 0.8  <=>  5*spent < 4*planned (planned > 0)
	if spent.Mul(decimal.NewFromInt(5)).LessThan(planned.Mul(decimal.NewFromInt(4))) {
		return StatusGreen
	}
	if spent.LessThan(planned) {
		return StatusYellow
	}
	return StatusRed
}

// Recompute refreshes the derived status from the current amounts.
func (e *PlanEntry) Recompute() {
	e.Status = StatusOf(e.Planned, e.Spent)
}

// ============================================================
// Plan documents
// ============================================================

// PlanDocument is a full month of a user's calendar: the per-category
// monthly totals (the redistribution baselines) plus every day entry.
type PlanDocument struct {
	UserID    string                     `json:"user_id"`
	Year      int                        `json:"year"`
	Month     int                        `json:"month"`
	Baselines map[string]decimal.Decimal `json:"baselines"`
	Entries   []PlanEntry                `json:"entries"`
}

// PlanPreview is the result of generating a plan without persisting it.
type PlanPreview struct {
	UserID        string                     `json:"user_id"`
	Year          int                        `json:"year"`
	Month         int                        `json:"month"`
	Tier          Tier                       `json:"tier"`
	Region        string                     `json:"region"`
	Discretionary decimal.Decimal            `json:"discretionary"`
	Baselines     map[string]decimal.Decimal `json:"baselines"`
	Entries       []PlanEntry                `json:"entries"`
}

// CategorySummary aggregates one category over a month.
type CategorySummary struct {
	Category  string          `json:"category"`
	Planned   decimal.Decimal `json:"planned"`
	Spent     decimal.Decimal `json:"spent"`
	Remaining decimal.Decimal `json:"remaining"`
	Status    EntryStatus     `json:"status"`
}

// PlanSummary is the month-level rollup consumed by the calendar screen.
type PlanSummary struct {
	UserID     string            `json:"user_id"`
	Year       int               `json:"year"`
	Month      int               `json:"month"`
	Categories []CategorySummary `json:"categories"`
	Planned    decimal.Decimal   `json:"planned"`
	Spent      decimal.Decimal   `json:"spent"`
}

// ============================================================
// Spending events
// ============================================================

// SpendingEvent is an incoming transaction aggregate for one user/day/category.
// Amount is added to the entry's spent total; with Correction set, Amount
// replaces the spent total instead (the only way spent may decrease).
type SpendingEvent struct {
	Date       string          `json:"date"`
	Category   string          `json:"category"`
	Amount     decimal.Decimal `json:"amount"`
	Correction bool            `json:"correction,omitempty"`
}

// SpendingResult is returned from an applied spending event.
type SpendingResult struct {
	Entry         PlanEntry             `json:"entry"`
	Redistributed bool                  `json:"redistributed"`
	Result        *RedistributionResult `json:"result,omitempty"`
}

// ============================================================
// Redistribution
// ============================================================

// CategoryAdjustment describes what redistribution did to one category.
type CategoryAdjustment struct {
	Category string `json:"category"`
	// Applied is the net amount moved off (positive) or onto (negative)
	// the category's future days.
	Applied decimal.Decimal `json:"applied"`
	// Unrecoverable is the residual deficit that no remaining day could
	// absorb. A terminal business state, not an error.
	Unrecoverable decimal.Decimal `json:"unrecoverable"`
	// TransferredIn is surplus drawn from other categories, when enabled.
	TransferredIn decimal.Decimal `json:"transferred_in"`
	FutureDays    int             `json:"future_days"`
}

// RedistributionResult is the structured outcome of one redistribution pass.
type RedistributionResult struct {
	UserID      string               `json:"user_id"`
	Year        int                  `json:"year"`
	Month       int                  `json:"month"`
	Adjustments []CategoryAdjustment `json:"adjustments"`
	Changed     bool                 `json:"changed"`
}

// ============================================================
// Engine metrics snapshot
// ============================================================

// EngineMetrics is the JSON snapshot served by GET /v1/metrics/engine.
type EngineMetrics struct {
	PlansGenerated     int64   `json:"plans_generated"`
	PlansSaved         int64   `json:"plans_saved"`
	SpendingEvents     int64   `json:"spending_events"`
	Redistributions    int64   `json:"redistributions"`
	UnrecoverableCents int64   `json:"unrecoverable_cents"`
	StoreErrors        int64   `json:"store_errors"`
	CacheHitRate       float64 `json:"cache_hit_rate"`
}

// ============================================================
// Health
// ============================================================

// ServiceHealth reports one dependency's health.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latency_ms"`
	LastChecked string `json:"last_checked"`
}

// HealthStatus is the /healthz response.
type HealthStatus struct {
	Status   string          `json:"status"`
	Services []ServiceHealth `json:"services"`
}
