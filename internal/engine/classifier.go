package engine

import (
	"github.com/shopspring/decimal"

	"github.com/rmaia/budget-calendar-go/internal/domain"
)

// Classify maps monthly income and region to an income tier.
// Total and deterministic: every (income, region) pair classifies, with
// negative income treated as TierLow and unknown regions using a neutral
// cost index.
func Classify(cfg *Config, monthlyIncome decimal.Decimal, region string) domain.Tier {
	if monthlyIncome.IsNegative() {
		return domain.TierLow
	}

	idx := decimal.NewFromFloat(cfg.RegionIndex(region))
	for i, threshold := range cfg.TierThresholds {
		if monthlyIncome.LessThan(threshold.Mul(idx)) {
			return domain.Tier(i)
		}
	}
	return domain.TierHigh
}
