package engine

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/rmaia/budget-calendar-go/internal/domain"
)

// Redistribution reconciles a month's plan with observed spending. For each
// category the future days (strictly after today) are re-planned so that
// their planned sum equals
//
//	baseline − spent on days up to and including today
//
// which is exactly the §-deficit formulation spread forward, and is
// naturally idempotent: a second pass with unchanged spending finds the
// future sum already on target and applies nothing.
//
// Past and current-day entries are never rewritten.

// CategoryOutcome reports what one category's pass did. Future entries are
// mutated in place; the caller persists the ones whose Planned changed.
type CategoryOutcome struct {
	// Applied is the net amount removed from (positive) or added to
	// (negative) future days, transfers excluded.
	Applied decimal.Decimal
	// Unrecoverable is the deficit residue no future day could absorb
	// without breaking its floor. A terminal business state.
	Unrecoverable decimal.Decimal
	TransferredIn decimal.Decimal
	FutureDays    int
	Changed       bool
	// BaselineChanged marks a cross-category transfer: the category's
	// persisted monthly baseline moved and must be written back.
	BaselineChanged bool
}

// RedistributeCategory re-plans one category's future days. entries must be
// the category's full month; today is a YYYY-MM-DD date (lexicographic
// comparison matches chronology). floor is the category's region-adjusted
// daily floor.
func RedistributeCategory(entries []*domain.PlanEntry, baseline decimal.Decimal, today string, floor decimal.Decimal) CategoryOutcome {
	pastSpent := decimal.Zero
	var future []*domain.PlanEntry
	for _, e := range entries {
		if e.Date > today {
			future = append(future, e)
		} else {
			pastSpent = pastSpent.Add(e.Spent)
		}
	}
	sort.Slice(future, func(i, j int) bool { return future[i].Date < future[j].Date })

	out := CategoryOutcome{FutureDays: len(future)}

	target := baseline.Sub(pastSpent)
	current := decimal.Zero
	for _, e := range future {
		current = current.Add(e.Planned)
	}
	delta := current.Sub(target).Round(2)

	switch {
	case len(future) == 0:
		// Nothing left to re-plan; a positive delta is the month's
		// unrecoverable overage.
		if delta.IsPositive() {
			out.Unrecoverable = delta
		}
	case delta.IsPositive():
		residual := subtractWithFloors(future, delta, floor)
		out.Applied = delta.Sub(residual)
		out.Unrecoverable = residual
		out.Changed = out.Applied.IsPositive()
	case delta.IsNegative():
		// Surplus: raise future days evenly, exact to the cent.
		parts := SplitEven(delta.Neg(), len(future))
		for i, e := range future {
			e.Planned = e.Planned.Add(parts[i])
			e.Recompute()
		}
		out.Applied = delta
		out.Changed = true
	}
	return out
}

// subtractWithFloors removes amount from the future entries, capping each
// day at its floor and reflowing the shortfall across the remaining
// uncapped days until stable. Returns the residual that could not be
// removed. A day already planned below its floor contributes nothing.
func subtractWithFloors(future []*domain.PlanEntry, amount, floor decimal.Decimal) decimal.Decimal {
	remaining := amount
	for remaining.IsPositive() {
		var open []*domain.PlanEntry
		for _, e := range future {
			if e.Planned.GreaterThan(dayFloor(e, floor)) {
				open = append(open, e)
			}
		}
		if len(open) == 0 {
			break
		}

		parts := SplitEven(remaining, len(open))
		progressed := false
		for i, e := range open {
			cut := parts[i]
			if room := e.Planned.Sub(dayFloor(e, floor)); cut.GreaterThan(room) {
				cut = room
			}
			if cut.IsPositive() {
				e.Planned = e.Planned.Sub(cut)
				e.Recompute()
				remaining = remaining.Sub(cut)
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}
	return remaining
}

// dayFloor is the effective floor for one entry: a day generated below the
// configured floor is not raised, only protected from further cuts.
func dayFloor(e *domain.PlanEntry, floor decimal.Decimal) decimal.Decimal {
	if e.Planned.LessThan(floor) {
		return e.Planned
	}
	return floor
}

// MonthInput is everything RedistributeMonth needs for one category.
// Baseline is mutated when a cross-category transfer moves budget between
// categories; the caller persists it alongside the changed entries.
type MonthInput struct {
	Entries  []*domain.PlanEntry
	Baseline decimal.Decimal
	Floor    decimal.Decimal
}

// RedistributeMonth runs redistribution over a set of categories, processed
// in name order for determinism. When allowTransfers is set, surplus that
// was handed back to a category's future days may instead cover another
// category's unrecoverable deficit: donors are tapped
// largest-available-surplus first, ties by name, never below their floors.
// A transfer moves the granted amount between the two categories' monthly
// baselines, so a later pass does not undo it.
func RedistributeMonth(categories map[string]*MonthInput, today string, allowTransfers bool) map[string]CategoryOutcome {
	names := make([]string, 0, len(categories))
	for name := range categories {
		names = append(names, name)
	}
	sort.Strings(names)

	outcomes := make(map[string]CategoryOutcome, len(names))
	surplus := make(map[string]decimal.Decimal)
	for _, name := range names {
		in := categories[name]
		out := RedistributeCategory(in.Entries, in.Baseline, today, in.Floor)
		if out.Applied.IsNegative() {
			surplus[name] = out.Applied.Neg()
		}
		outcomes[name] = out
	}

	if !allowTransfers {
		return outcomes
	}

	for _, name := range names {
		out := outcomes[name]
		if !out.Unrecoverable.IsPositive() {
			continue
		}
		for _, donor := range donorOrder(surplus) {
			if !out.Unrecoverable.IsPositive() {
				break
			}
			avail := surplus[donor]
			take := decimal.Min(avail, out.Unrecoverable)
			// The donor's surplus sits on its own future days; claw the
			// grant back from there, floors still binding.
			in := categories[donor]
			residual := redoFutureCut(in.Entries, take, in.Floor, today)
			granted := take.Sub(residual)
			if !granted.IsPositive() {
				continue
			}

			surplus[donor] = avail.Sub(granted)
			in.Baseline = in.Baseline.Sub(granted)
			dOut := outcomes[donor]
			dOut.Applied = dOut.Applied.Add(granted)
			dOut.Changed = true
			dOut.BaselineChanged = true
			outcomes[donor] = dOut

			categories[name].Baseline = categories[name].Baseline.Add(granted)
			out.Unrecoverable = out.Unrecoverable.Sub(granted)
			out.TransferredIn = out.TransferredIn.Add(granted)
			out.BaselineChanged = true
		}
		outcomes[name] = out
	}
	return outcomes
}

func redoFutureCut(entries []*domain.PlanEntry, amount, floor decimal.Decimal, today string) decimal.Decimal {
	var future []*domain.PlanEntry
	for _, e := range entries {
		if e.Date > today {
			future = append(future, e)
		}
	}
	sort.Slice(future, func(i, j int) bool { return future[i].Date < future[j].Date })
	if len(future) == 0 {
		return amount
	}
	return subtractWithFloors(future, amount, floor)
}

// donorOrder sorts surplus categories by available amount descending,
// name ascending on ties.
func donorOrder(surplus map[string]decimal.Decimal) []string {
	names := make([]string, 0, len(surplus))
	for name, avail := range surplus {
		if avail.IsPositive() {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := surplus[names[i]], surplus[names[j]]
		if !a.Equal(b) {
			return a.GreaterThan(b)
		}
		return names[i] < names[j]
	})
	return names
}
