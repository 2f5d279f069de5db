// Package engine implements the daily budget calendar core: income tier
// classification, monthly budget construction, behavioral day allocation,
// and deficit/surplus redistribution. All functions are pure computation
// over explicitly passed configuration; nothing in this package touches
// storage or the network.
package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rmaia/budget-calendar-go/internal/domain"
)

// AllocationMode selects how a category's monthly total is laid out over
// the month.
type AllocationMode string

const (
	// ModeSpread divides the total evenly across every day of the month.
	// Used for daily-use categories such as groceries.
	ModeSpread AllocationMode = "spread"
	// ModeCluster concentrates the total on a bounded number of
	// high-likelihood days, enforcing a cooldown between them.
	ModeCluster AllocationMode = "cluster"
)

// BehavioralProfile describes when a category is likely to be used.
// Bias is indexed by time.Weekday (Sunday = 0) and is purely relative;
// it is not required to sum to anything.
type BehavioralProfile struct {
	Mode     AllocationMode `json:"mode"`
	Bias     [7]float64     `json:"bias"`
	MaxSlots int            `json:"max_slots"`
}

// CategoryPolicy is the per-category configuration: discretionary share and
// daily floor per tier, plus the behavioral profile driving allocation.
type CategoryPolicy struct {
	Name       string                          `json:"name"`
	Behavior   BehavioralProfile               `json:"behavior"`
	Share      map[domain.Tier]float64         `json:"share"`
	DailyFloor map[domain.Tier]decimal.Decimal `json:"daily_floor"`
}

// RegionProfile adjusts nominal amounts for cost of living.
type RegionProfile struct {
	CostIndex float64 `json:"cost_index"`
}

// Config is the versioned tier/weight table. It is passed explicitly into
// every engine call so that regenerating an old month with the weights that
// were current at the time stays possible.
type Config struct {
	Version string `json:"version"`
	// TierThresholds are the nominal upper bounds (exclusive) for the
	// first four tiers, multiplied by the region cost index before use.
	TierThresholds [4]decimal.Decimal       `json:"tier_thresholds"`
	Regions        map[string]RegionProfile `json:"regions"`
	Categories     []CategoryPolicy         `json:"categories"`
	CooldownDays   map[domain.Tier]int      `json:"cooldown_days"`
	// OverrideTolerance is the fraction by which user overrides may exceed
	// discretionary income and still be accepted as-is.
	OverrideTolerance float64 `json:"override_tolerance"`
}

// RegionIndex returns the cost-of-living index for a region, defaulting to
// 1.0 for unknown or empty regions so classification stays total.
func (c *Config) RegionIndex(region string) float64 {
	if r, ok := c.Regions[region]; ok && r.CostIndex > 0 {
		return r.CostIndex
	}
	return 1.0
}

// Policy returns the policy for a category name, or nil.
func (c *Config) Policy(name string) *CategoryPolicy {
	for i := range c.Categories {
		if c.Categories[i].Name == name {
			return &c.Categories[i]
		}
	}
	return nil
}

// Cooldown returns the cooldown length in days for a tier.
func (c *Config) Cooldown(tier domain.Tier) int {
	return c.CooldownDays[tier]
}

// Floor returns the region-adjusted daily floor for a category and tier,
// rounded to the cent.
func (p *CategoryPolicy) Floor(tier domain.Tier, regionIndex float64) decimal.Decimal {
	base, ok := p.DailyFloor[tier]
	if !ok {
		return decimal.Zero
	}
	return base.Mul(decimal.NewFromFloat(regionIndex)).Round(2)
}

// LoadConfig reads a weight table from a JSON file, falling back to the
// built-in defaults when path is empty.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read budget config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse budget config %s: %w", path, err)
	}
	if cfg.Version == "" {
		return nil, fmt.Errorf("budget config %s: version is required", path)
	}
	if len(cfg.Categories) == 0 {
		return nil, fmt.Errorf("budget config %s: at least one category is required", path)
	}
	if cfg.OverrideTolerance <= 0 {
		cfg.OverrideTolerance = defaultOverrideTolerance
	}
	return &cfg, nil
}

const defaultOverrideTolerance = 0.01

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic("engine: bad default config constant: " + s)
	}
	return d
}

func shares(low, lowerMid, mid, upperMid, high float64) map[domain.Tier]float64 {
	return map[domain.Tier]float64{
		domain.TierLow:      low,
		domain.TierLowerMid: lowerMid,
		domain.TierMid:      mid,
		domain.TierUpperMid: upperMid,
		domain.TierHigh:     high,
	}
}

func floors(low, lowerMid, mid, upperMid, high string) map[domain.Tier]decimal.Decimal {
	return map[domain.Tier]decimal.Decimal{
		domain.TierLow:      dec(low),
		domain.TierLowerMid: dec(lowerMid),
		domain.TierMid:      dec(mid),
		domain.TierUpperMid: dec(upperMid),
		domain.TierHigh:     dec(high),
	}
}

// DefaultConfig returns the built-in weight table. Shares sum to 1.0 within
// each tier so the full discretionary amount is assigned.
func DefaultConfig() *Config {
	return &Config{
		Version: "2024-10",
		TierThresholds: [4]decimal.Decimal{
			dec("2000"), dec("3500"), dec("6000"), dec("10000"),
		},
		Regions: map[string]RegionProfile{
			"metro":    {CostIndex: 1.25},
			"urban":    {CostIndex: 1.0},
			"suburban": {CostIndex: 0.9},
			"rural":    {CostIndex: 0.75},
		},
		CooldownDays: map[domain.Tier]int{
			domain.TierLow:      4,
			domain.TierLowerMid: 3,
			domain.TierMid:      3,
			domain.TierUpperMid: 2,
			domain.TierHigh:     2,
		},
		OverrideTolerance: defaultOverrideTolerance,
		Categories: []CategoryPolicy{
			{
				Name:       "groceries",
				Behavior:   BehavioralProfile{Mode: ModeSpread},
				Share:      shares(0.34, 0.30, 0.26, 0.22, 0.18),
				DailyFloor: floors("4.00", "5.00", "6.00", "7.00", "8.00"),
			},
			{
				Name:       "utilities",
				Behavior:   BehavioralProfile{Mode: ModeSpread},
				Share:      shares(0.18, 0.16, 0.14, 0.12, 0.10),
				DailyFloor: floors("2.00", "2.50", "3.00", "3.50", "4.00"),
			},
			{
				Name:       "transport",
				Behavior:   BehavioralProfile{Mode: ModeSpread},
				Share:      shares(0.12, 0.12, 0.11, 0.10, 0.09),
				DailyFloor: floors("1.50", "2.00", "2.50", "3.00", "3.50"),
			},
			{
				Name: "dining",
				Behavior: BehavioralProfile{
					Mode:     ModeCluster,
					Bias:     [7]float64{1.4, 0.8, 0.8, 0.9, 1.0, 1.6, 1.8},
					MaxSlots: 8,
				},
				Share:      shares(0.08, 0.10, 0.12, 0.14, 0.15),
				DailyFloor: floors("2.00", "3.00", "4.00", "5.00", "6.00"),
			},
			{
				Name: "entertainment",
				Behavior: BehavioralProfile{
					Mode:     ModeCluster,
					Bias:     [7]float64{1.2, 0.3, 0.3, 0.4, 0.6, 1.7, 2.0},
					MaxSlots: 4,
				},
				Share:      shares(0.05, 0.07, 0.09, 0.11, 0.13),
				DailyFloor: floors("0", "0", "0", "0", "0"),
			},
			{
				Name: "shopping",
				Behavior: BehavioralProfile{
					Mode:     ModeCluster,
					Bias:     [7]float64{1.0, 0.6, 0.6, 0.7, 0.8, 1.3, 1.5},
					MaxSlots: 6,
				},
				Share:      shares(0.06, 0.08, 0.10, 0.12, 0.14),
				DailyFloor: floors("0", "0", "0", "0", "0"),
			},
			{
				Name:       "health",
				Behavior:   BehavioralProfile{Mode: ModeSpread},
				Share:      shares(0.09, 0.08, 0.08, 0.07, 0.07),
				DailyFloor: floors("1.00", "1.00", "1.50", "1.50", "2.00"),
			},
			{
				Name:       "savings",
				Behavior:   BehavioralProfile{Mode: ModeSpread},
				Share:      shares(0.08, 0.09, 0.10, 0.12, 0.14),
				DailyFloor: floors("0", "0", "0", "0", "0"),
			},
		},
	}
}

// DaysInMonth returns the number of calendar days in a month.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// StartWeekday returns the weekday of the first day of a month.
func StartWeekday(year int, month time.Month) time.Weekday {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Weekday()
}
