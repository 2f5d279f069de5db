package engine

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rmaia/budget-calendar-go/internal/domain"
)

// MonthlyBudget is the per-category discretionary total for one month.
// It exists transiently between budget construction and day allocation,
// and is persisted alongside the plan entries as the redistribution
// baseline.
type MonthlyBudget struct {
	Tier          domain.Tier
	Region        string
	Discretionary decimal.Decimal
	Categories    map[string]decimal.Decimal
}

// BuildMonthlyBudget computes the discretionary total per category for a
// month. Input problems are normalized, never raised: negative income counts
// as zero, and fixed expenses beyond income floor discretionary at zero. The
// result's category amounts always sum to at most the rounded discretionary
// total, and exactly to it on the weight-table path.
func BuildMonthlyBudget(cfg *Config, profile *domain.BudgetProfile, tier domain.Tier, daysInMonth int, logger *zap.Logger) *MonthlyBudget {
	income := profile.MonthlyIncome
	if income.IsNegative() {
		income = decimal.Zero
	}

	discretionary := income.Sub(profile.TotalFixedExpenses())
	if discretionary.IsNegative() {
		discretionary = decimal.Zero
	}
	discretionary = discretionary.Round(2)

	budget := &MonthlyBudget{
		Tier:          tier,
		Region:        profile.Region,
		Discretionary: discretionary,
		Categories:    make(map[string]decimal.Decimal, len(cfg.Categories)),
	}

	if amounts, ok := applyOverrides(cfg, profile, discretionary, logger); ok {
		budget.Categories = amounts
		return budget
	}

	regionIdx := cfg.RegionIndex(profile.Region)

	// Raw share per category, then floors, then exact-cent rounding.
	names := make([]string, 0, len(cfg.Categories))
	raw := make([]decimal.Decimal, 0, len(cfg.Categories))
	monthFloors := make([]decimal.Decimal, 0, len(cfg.Categories))
	floorSum := decimal.Zero
	for i := range cfg.Categories {
		p := &cfg.Categories[i]
		names = append(names, p.Name)
		raw = append(raw, discretionary.Mul(decimal.NewFromFloat(p.Share[tier])))
		mf := monthlyFloor(p, tier, regionIdx, daysInMonth)
		monthFloors = append(monthFloors, mf)
		floorSum = floorSum.Add(mf)
	}

	amounts := make([]decimal.Decimal, len(raw))
	if floorSum.GreaterThan(discretionary) {
		// Floors cannot all be honored: scale every floored category down
		// proportionally. Degraded data quality, not a failure.
		logger.Warn("category floors exceed discretionary income, scaling down",
			zap.String("user_id", profile.UserID),
			zap.String("floor_sum", floorSum.String()),
			zap.String("discretionary", discretionary.String()),
		)
		copy(amounts, SplitWeighted(discretionary, monthFloors))
	} else {
		overshoot := decimal.Zero
		headroom := decimal.Zero
		for i := range raw {
			if raw[i].LessThan(monthFloors[i]) {
				overshoot = overshoot.Add(monthFloors[i].Sub(raw[i]))
				amounts[i] = monthFloors[i]
			} else {
				headroom = headroom.Add(raw[i].Sub(monthFloors[i]))
				amounts[i] = raw[i]
			}
		}
		if overshoot.IsPositive() && headroom.IsPositive() {
			// Absorb the floor lift by shrinking the categories above
			// their floors, proportionally to their headroom.
			factor := overshoot.Div(headroom)
			for i := range amounts {
				if raw[i].GreaterThanOrEqual(monthFloors[i]) {
					give := raw[i].Sub(monthFloors[i]).Mul(factor)
					amounts[i] = amounts[i].Sub(give)
				}
			}
		}
		amounts = SplitWeighted(discretionary, amounts)
	}

	for i, name := range names {
		budget.Categories[name] = amounts[i]
	}
	return budget
}

// applyOverrides uses the user's explicit per-category monthly amounts when
// present and within tolerance of discretionary income.
func applyOverrides(cfg *Config, profile *domain.BudgetProfile, discretionary decimal.Decimal, logger *zap.Logger) (map[string]decimal.Decimal, bool) {
	if len(profile.Overrides) == 0 {
		return nil, false
	}

	sum := decimal.Zero
	for _, v := range profile.Overrides {
		if v.IsNegative() {
			logger.Warn("negative category override ignored, falling back to tier weights",
				zap.String("user_id", profile.UserID),
			)
			return nil, false
		}
		sum = sum.Add(v)
	}

	limit := discretionary.Mul(decimal.NewFromFloat(1 + cfg.OverrideTolerance))
	if sum.GreaterThan(limit) {
		logger.Warn("category overrides exceed discretionary income, falling back to tier weights",
			zap.String("user_id", profile.UserID),
			zap.String("override_sum", sum.String()),
			zap.String("discretionary", discretionary.String()),
		)
		return nil, false
	}

	amounts := make(map[string]decimal.Decimal, len(profile.Overrides))
	for name, v := range profile.Overrides {
		amounts[name] = v.Round(2)
	}
	return amounts, true
}

// monthlyFloor is the month-level minimum for a category: the daily floor
// times the number of days the category will actually plan on.
func monthlyFloor(p *CategoryPolicy, tier domain.Tier, regionIdx float64, daysInMonth int) decimal.Decimal {
	days := daysInMonth
	if p.Behavior.Mode == ModeCluster && p.Behavior.MaxSlots > 0 && p.Behavior.MaxSlots < days {
		days = p.Behavior.MaxSlots
	}
	return p.Floor(tier, regionIdx).Mul(decimal.NewFromInt(int64(days)))
}
