package engine_test

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/rmaia/budget-calendar-go/internal/domain"
	"github.com/rmaia/budget-calendar-go/internal/engine"
)

// monthEntries builds a full month of entries for one category with a flat
// daily plan. Dates run 2026-04-01 through 2026-04-<days>.
func monthEntries(category string, days int, planned string) []*domain.PlanEntry {
	entries := make([]*domain.PlanEntry, days)
	for d := 0; d < days; d++ {
		e := &domain.PlanEntry{
			UserID:   "u-1",
			Date:     fmt.Sprintf("2026-04-%02d", d+1),
			Category: category,
			Planned:  decimal.RequireFromString(planned),
		}
		e.Recompute()
		entries[d] = e
	}
	return entries
}

func plannedSum(entries []*domain.PlanEntry, after string) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		if e.Date > after {
			total = total.Add(e.Planned)
		}
	}
	return total
}

func TestRedistributeCategory_OverspendSpreadsDeficitForward(t *testing.T) {
	// $50 planned daily, $70 spent on day 1: the $20 deficit comes out of
	// the 29 future days, 69 cents off most of them with one day catching
	// the leftover cent.
	entries := monthEntries("groceries", 30, "50.00")
	entries[0].Spent = dec(t, "70.00")
	entries[0].Recompute()
	baseline := dec(t, "1500.00")

	out := engine.RedistributeCategory(entries, baseline, "2026-04-01", dec(t, "6.00"))

	if !out.Applied.Equal(dec(t, "20.00")) {
		t.Errorf("applied = %s, want 20.00", out.Applied)
	}
	if !out.Unrecoverable.IsZero() {
		t.Errorf("unrecoverable = %s, want 0", out.Unrecoverable)
	}
	if out.FutureDays != 29 {
		t.Errorf("future days = %d, want 29", out.FutureDays)
	}
	if !out.Changed {
		t.Error("expected Changed to be set")
	}

	// Day 1 is in the past and keeps its plan.
	if !entries[0].Planned.Equal(dec(t, "50.00")) {
		t.Errorf("past day planned = %s, want untouched 50.00", entries[0].Planned)
	}
	// Future planned sum equals baseline minus everything spent so far.
	if got := plannedSum(entries, "2026-04-01"); !got.Equal(dec(t, "1430.00")) {
		t.Errorf("future planned sum = %s, want 1430.00", got)
	}
	// Per-day cuts differ by at most one cent.
	sawLow, sawHigh := false, false
	for _, e := range entries[1:] {
		switch {
		case e.Planned.Equal(dec(t, "49.31")):
			sawLow = true
		case e.Planned.Equal(dec(t, "49.32")):
			sawHigh = true
		default:
			t.Errorf("day %s planned = %s, want 49.31 or 49.32", e.Date, e.Planned)
		}
	}
	if !sawLow || !sawHigh {
		t.Error("expected a mix of 49.31 and 49.32 days")
	}
}

func TestRedistributeCategory_Idempotent(t *testing.T) {
	entries := monthEntries("groceries", 30, "50.00")
	entries[0].Spent = dec(t, "70.00")
	entries[0].Recompute()
	baseline := dec(t, "1500.00")

	first := engine.RedistributeCategory(entries, baseline, "2026-04-01", dec(t, "6.00"))
	if !first.Changed {
		t.Fatal("first pass should change the plan")
	}

	snapshot := make(map[string]decimal.Decimal, len(entries))
	for _, e := range entries {
		snapshot[e.Date] = e.Planned
	}

	second := engine.RedistributeCategory(entries, baseline, "2026-04-01", dec(t, "6.00"))
	if second.Changed {
		t.Error("second pass with unchanged spending should be a no-op")
	}
	if !second.Applied.IsZero() {
		t.Errorf("second pass applied = %s, want 0", second.Applied)
	}
	for _, e := range entries {
		if !e.Planned.Equal(snapshot[e.Date]) {
			t.Errorf("day %s moved on the second pass: %s -> %s", e.Date, snapshot[e.Date], e.Planned)
		}
	}
}

func TestRedistributeCategory_UnderspendHandsSurplusForward(t *testing.T) {
	// $50 planned, only $20 spent on day 1: the $30 surplus tops up the
	// remaining days.
	entries := monthEntries("groceries", 30, "50.00")
	entries[0].Spent = dec(t, "20.00")
	entries[0].Recompute()
	baseline := dec(t, "1500.00")

	out := engine.RedistributeCategory(entries, baseline, "2026-04-01", dec(t, "6.00"))

	if !out.Applied.Equal(dec(t, "-30.00")) {
		t.Errorf("applied = %s, want -30.00", out.Applied)
	}
	if got := plannedSum(entries, "2026-04-01"); !got.Equal(dec(t, "1480.00")) {
		t.Errorf("future planned sum = %s, want 1480.00", got)
	}
}

func TestRedistributeCategory_FloorsLeaveResidualUnrecoverable(t *testing.T) {
	// Three remaining days at $7.00 with a $6.00 floor can only give up
	// $3.00 of a $10.00 deficit.
	entries := monthEntries("groceries", 4, "7.00")
	entries[0].Spent = dec(t, "17.00")
	entries[0].Recompute()
	baseline := dec(t, "28.00")

	out := engine.RedistributeCategory(entries, baseline, "2026-04-01", dec(t, "6.00"))

	if !out.Applied.Equal(dec(t, "3.00")) {
		t.Errorf("applied = %s, want 3.00", out.Applied)
	}
	if !out.Unrecoverable.Equal(dec(t, "7.00")) {
		t.Errorf("unrecoverable = %s, want 7.00", out.Unrecoverable)
	}
	for _, e := range entries[1:] {
		if !e.Planned.Equal(dec(t, "6.00")) {
			t.Errorf("day %s planned = %s, want cut to floor 6.00", e.Date, e.Planned)
		}
	}
}

func TestRedistributeCategory_ReflowsWhenOneDayCapsOut(t *testing.T) {
	// Uneven plans: the shallow day caps at its floor and the deeper days
	// absorb the reflowed remainder.
	entries := monthEntries("groceries", 3, "6.50")
	entries[1].Planned = dec(t, "20.00")
	entries[1].Recompute()
	entries[0].Spent = dec(t, "13.50")
	entries[0].Recompute()
	baseline := dec(t, "33.00") // 6.50 + 20.00 + 6.50

	// Deficit is 7.00. An even split wants 3.50 per day, but the third
	// day only has 0.50 above the floor.
	out := engine.RedistributeCategory(entries, baseline, "2026-04-01", dec(t, "6.00"))

	if !out.Applied.Equal(dec(t, "7.00")) {
		t.Errorf("applied = %s, want 7.00", out.Applied)
	}
	if !out.Unrecoverable.IsZero() {
		t.Errorf("unrecoverable = %s, want 0", out.Unrecoverable)
	}
	if !entries[2].Planned.Equal(dec(t, "6.00")) {
		t.Errorf("shallow day = %s, want floor 6.00", entries[2].Planned)
	}
	if !entries[1].Planned.Equal(dec(t, "13.50")) {
		t.Errorf("deep day = %s, want 13.50", entries[1].Planned)
	}
}

func TestRedistributeCategory_NoFutureDaysReportsOverage(t *testing.T) {
	entries := monthEntries("groceries", 3, "10.00")
	for _, e := range entries {
		e.Spent = dec(t, "15.00")
		e.Recompute()
	}
	baseline := dec(t, "30.00")

	out := engine.RedistributeCategory(entries, baseline, "2026-04-03", dec(t, "6.00"))

	if out.FutureDays != 0 {
		t.Fatalf("future days = %d, want 0", out.FutureDays)
	}
	if !out.Unrecoverable.Equal(dec(t, "15.00")) {
		t.Errorf("unrecoverable = %s, want 15.00", out.Unrecoverable)
	}
	if out.Changed {
		t.Error("no entries should change when nothing is re-plannable")
	}
}

func TestRedistributeCategory_DayBelowFloorIsNotRaised(t *testing.T) {
	// A generated plan can sit below the configured floor. A deficit pass
	// must not cut it further, and must not raise it either.
	entries := monthEntries("groceries", 3, "4.00")
	entries[0].Spent = dec(t, "10.00")
	entries[0].Recompute()
	baseline := dec(t, "12.00")

	out := engine.RedistributeCategory(entries, baseline, "2026-04-01", dec(t, "6.00"))

	if !entries[1].Planned.Equal(dec(t, "4.00")) || !entries[2].Planned.Equal(dec(t, "4.00")) {
		t.Errorf("sub-floor days moved: %s, %s", entries[1].Planned, entries[2].Planned)
	}
	if !out.Unrecoverable.Equal(dec(t, "6.00")) {
		t.Errorf("unrecoverable = %s, want 6.00", out.Unrecoverable)
	}
}

func TestRedistributeCategory_StatusesRecomputed(t *testing.T) {
	entries := monthEntries("groceries", 2, "50.00")
	entries[1].Spent = dec(t, "41.00")
	entries[1].Recompute()
	entries[0].Spent = dec(t, "60.00")
	entries[0].Recompute()
	baseline := dec(t, "100.00")

	engine.RedistributeCategory(entries, baseline, "2026-04-01", decimal.Zero)

	// Day 2's plan dropped to 40.00 against 41.00 spent: red.
	if !entries[1].Planned.Equal(dec(t, "40.00")) {
		t.Fatalf("day 2 planned = %s, want 40.00", entries[1].Planned)
	}
	if entries[1].Status != domain.StatusRed {
		t.Errorf("day 2 status = %s, want red after cut", entries[1].Status)
	}
}

func TestRedistributeMonth_TransfersCoverUnrecoverableDeficit(t *testing.T) {
	// groceries is pinned at its floor and cannot absorb its deficit;
	// dining is underspent and donates.
	groceries := monthEntries("groceries", 4, "6.00")
	groceries[0].Spent = dec(t, "16.00")
	groceries[0].Recompute()

	dining := monthEntries("dining", 4, "25.00")
	dining[0].Spent = dec(t, "5.00")
	dining[0].Recompute()

	categories := map[string]*engine.MonthInput{
		"groceries": {Entries: groceries, Baseline: dec(t, "24.00"), Floor: dec(t, "6.00")},
		"dining":    {Entries: dining, Baseline: dec(t, "100.00"), Floor: dec(t, "4.00")},
	}

	outcomes := engine.RedistributeMonth(categories, "2026-04-01", true)

	g := outcomes["groceries"]
	if !g.Unrecoverable.IsZero() {
		t.Errorf("groceries unrecoverable = %s, want 0 after transfer", g.Unrecoverable)
	}
	if !g.TransferredIn.Equal(dec(t, "10.00")) {
		t.Errorf("groceries transferred in = %s, want 10.00", g.TransferredIn)
	}
	if !g.BaselineChanged {
		t.Error("groceries baseline should be marked changed")
	}
	if !categories["groceries"].Baseline.Equal(dec(t, "34.00")) {
		t.Errorf("groceries baseline = %s, want 34.00", categories["groceries"].Baseline)
	}
	if !categories["dining"].Baseline.Equal(dec(t, "90.00")) {
		t.Errorf("dining baseline = %s, want 90.00", categories["dining"].Baseline)
	}

	// Dining's future days gave up the grant on top of re-absorbing its
	// own surplus baseline math.
	if got := plannedSum(dining, "2026-04-01"); !got.Equal(dec(t, "85.00")) {
		t.Errorf("dining future planned sum = %s, want 85.00", got)
	}
}

func TestRedistributeMonth_TransfersIdempotentAcrossPasses(t *testing.T) {
	groceries := monthEntries("groceries", 4, "6.00")
	groceries[0].Spent = dec(t, "16.00")
	groceries[0].Recompute()

	dining := monthEntries("dining", 4, "25.00")
	dining[0].Spent = dec(t, "5.00")
	dining[0].Recompute()

	categories := map[string]*engine.MonthInput{
		"groceries": {Entries: groceries, Baseline: dec(t, "24.00"), Floor: dec(t, "6.00")},
		"dining":    {Entries: dining, Baseline: dec(t, "100.00"), Floor: dec(t, "4.00")},
	}

	engine.RedistributeMonth(categories, "2026-04-01", true)

	snapshot := make(map[string]decimal.Decimal)
	for name, in := range categories {
		for _, e := range in.Entries {
			snapshot[name+"|"+e.Date] = e.Planned
		}
	}

	second := engine.RedistributeMonth(categories, "2026-04-01", true)
	for name, out := range second {
		if out.Changed {
			t.Errorf("category %s changed on the second pass", name)
		}
	}
	for name, in := range categories {
		for _, e := range in.Entries {
			if !e.Planned.Equal(snapshot[name+"|"+e.Date]) {
				t.Errorf("%s %s moved on the second pass", name, e.Date)
			}
		}
	}
}

func TestRedistributeMonth_NoTransfersWhenDisabled(t *testing.T) {
	groceries := monthEntries("groceries", 4, "6.00")
	groceries[0].Spent = dec(t, "16.00")
	groceries[0].Recompute()

	dining := monthEntries("dining", 4, "25.00")
	dining[0].Spent = dec(t, "5.00")
	dining[0].Recompute()

	categories := map[string]*engine.MonthInput{
		"groceries": {Entries: groceries, Baseline: dec(t, "24.00"), Floor: dec(t, "6.00")},
		"dining":    {Entries: dining, Baseline: dec(t, "100.00"), Floor: dec(t, "4.00")},
	}

	outcomes := engine.RedistributeMonth(categories, "2026-04-01", false)

	g := outcomes["groceries"]
	if !g.Unrecoverable.Equal(dec(t, "10.00")) {
		t.Errorf("groceries unrecoverable = %s, want 10.00 with transfers off", g.Unrecoverable)
	}
	if !g.TransferredIn.IsZero() {
		t.Errorf("groceries transferred in = %s, want 0", g.TransferredIn)
	}
	if !categories["dining"].Baseline.Equal(dec(t, "100.00")) {
		t.Errorf("dining baseline = %s, want untouched 100.00", categories["dining"].Baseline)
	}
}

func TestRedistributeMonth_LargestSurplusDonatesFirst(t *testing.T) {
	needy := monthEntries("groceries", 2, "5.00")
	needy[0].Spent = dec(t, "11.00")
	needy[0].Recompute()

	small := monthEntries("dining", 2, "10.00")
	small[0].Spent = dec(t, "8.00")
	small[0].Recompute()

	big := monthEntries("shopping", 2, "30.00")
	big[0].Spent = dec(t, "10.00")
	big[0].Recompute()

	categories := map[string]*engine.MonthInput{
		"groceries": {Entries: needy, Baseline: dec(t, "10.00"), Floor: dec(t, "5.00")},
		"dining":    {Entries: small, Baseline: dec(t, "20.00"), Floor: decimal.Zero},
		"shopping":  {Entries: big, Baseline: dec(t, "60.00"), Floor: decimal.Zero},
	}

	outcomes := engine.RedistributeMonth(categories, "2026-04-01", true)

	// groceries needs 6.00; shopping holds the larger surplus (20.00 vs
	// 2.00) and covers it alone.
	if !outcomes["shopping"].BaselineChanged {
		t.Error("shopping should have donated")
	}
	if outcomes["dining"].BaselineChanged {
		t.Error("dining should not have been tapped")
	}
	if !categories["shopping"].Baseline.Equal(dec(t, "54.00")) {
		t.Errorf("shopping baseline = %s, want 54.00", categories["shopping"].Baseline)
	}
	if !outcomes["groceries"].TransferredIn.Equal(dec(t, "6.00")) {
		t.Errorf("groceries transferred in = %s, want 6.00", outcomes["groceries"].TransferredIn)
	}
}
