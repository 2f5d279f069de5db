package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// Allocate lays a category's monthly total out over the days of a month and
// returns the amount per zero-based day index. The amounts always sum to the
// total exactly; leaving money unallocated is a correctness bug.
//
// Spread mode assigns every day an equal part, remainder cents on the
// earliest days. Cluster mode greedily picks the highest-bias days, keeping
// at least cooldownDays between picks while that is feasible, bounded by the
// profile's MaxSlots.
func Allocate(total decimal.Decimal, daysInMonth int, startWeekday time.Weekday, profile BehavioralProfile, cooldownDays int) map[int]decimal.Decimal {
	if daysInMonth <= 0 {
		return map[int]decimal.Decimal{}
	}

	days := clusterDays(daysInMonth, startWeekday, profile, cooldownDays)
	if profile.Mode != ModeCluster || len(days) == 0 {
		// Flat categories, and cluster profiles whose bias selects
		// nothing, spread across the whole month.
		days = make([]int, daysInMonth)
		for d := range days {
			days[d] = d
		}
	}

	parts := SplitEven(total, len(days))
	out := make(map[int]decimal.Decimal, len(days))
	for i, d := range days {
		out[d] = parts[i]
	}
	return out
}

// clusterDays selects the allocation days for a cluster-mode profile,
// ascending. Selection is a priority scan over per-day scores with a
// suppression window of cooldownDays on both sides of every pick. When the
// window leaves no positive-score day but slots remain, suppression is
// relaxed so money is never left without a home.
func clusterDays(daysInMonth int, startWeekday time.Weekday, profile BehavioralProfile, cooldownDays int) []int {
	if profile.Mode != ModeCluster {
		return nil
	}

	scores := make([]float64, daysInMonth)
	for d := range scores {
		scores[d] = profile.Bias[(int(startWeekday)+d)%7]
	}

	slots := profile.MaxSlots
	if slots <= 0 || slots > daysInMonth {
		slots = daysInMonth
	}

	selected := make([]bool, daysInMonth)
	suppressed := make([]bool, daysInMonth)
	count := 0

	for count < slots {
		best := bestDay(scores, selected, suppressed)
		if best < 0 {
			// Cooldown window exhausted the month; pick the best
			// remaining day regardless of suppression.
			best = bestDay(scores, selected, nil)
		}
		if best < 0 {
			break // every unselected day has zero bias
		}

		selected[best] = true
		count++
		// Suppress every day closer than cooldownDays in either
		// direction; a day exactly cooldownDays away is allowed.
		for d := best - cooldownDays + 1; d < best+cooldownDays; d++ {
			if d >= 0 && d < daysInMonth {
				suppressed[d] = true
			}
		}
	}

	days := make([]int, 0, count)
	for d, ok := range selected {
		if ok {
			days = append(days, d)
		}
	}
	return days
}

// bestDay returns the unselected day with the highest positive score,
// earliest day on ties, honoring the suppression mask when given.
func bestDay(scores []float64, selected, suppressed []bool) int {
	best := -1
	for d, s := range scores {
		if selected[d] || s <= 0 {
			continue
		}
		if suppressed != nil && suppressed[d] {
			continue
		}
		if best < 0 || s > scores[best] {
			best = d
		}
	}
	return best
}
