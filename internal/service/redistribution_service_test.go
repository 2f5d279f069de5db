package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/rmaia/budget-calendar-go/internal/domain"
)

func TestRedistribute_IdempotentAcrossCalls(t *testing.T) {
	svc, doc := savedMonth(t)
	ctx := context.Background()

	for day := 1; day <= 10; day++ {
		date := fmt.Sprintf("2026-04-%02d", day)
		entry := findEntry(t, doc, date, "groceries")
		amount := entry.Planned
		if day == 10 {
			amount = amount.Add(decimal.RequireFromString("30.00"))
		}
		// Correction writes avoid the automatic pass so this test drives
		// redistribution explicitly.
		if _, err := svc.UpdateSpending(ctx, "u-1", &domain.SpendingEvent{
			Date:       date,
			Category:   "groceries",
			Amount:     amount,
			Correction: true,
		}); err != nil {
			t.Fatalf("spend day %d: %v", day, err)
		}
	}

	first, err := svc.Redistribute(ctx, "u-1", 2026, 4)
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}
	if !first.Changed {
		t.Fatal("first pass should re-plan the month")
	}

	second, err := svc.Redistribute(ctx, "u-1", 2026, 4)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if second.Changed {
		t.Error("second pass with unchanged spending should be a no-op")
	}
	for _, adj := range second.Adjustments {
		if !adj.Applied.IsZero() {
			t.Errorf("category %s applied %s on the second pass, want 0", adj.Category, adj.Applied)
		}
	}
}

func TestRedistribute_FutureSumsMatchBaselineMinusSpent(t *testing.T) {
	svc, doc := savedMonth(t)
	ctx := context.Background()

	entry := findEntry(t, doc, "2026-04-10", "groceries")
	overspend := entry.Planned.Add(decimal.RequireFromString("25.00"))
	if _, err := svc.UpdateSpending(ctx, "u-1", &domain.SpendingEvent{
		Date: "2026-04-10", Category: "groceries", Amount: overspend, Correction: true,
	}); err != nil {
		t.Fatalf("spend: %v", err)
	}

	if _, err := svc.Redistribute(ctx, "u-1", 2026, 4); err != nil {
		t.Fatalf("redistribute: %v", err)
	}

	after, err := svc.Fetch(ctx, "u-1", 2026, 4)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	spent := decimal.Zero
	future := decimal.Zero
	for i := range after.Entries {
		e := &after.Entries[i]
		if e.Category != "groceries" {
			continue
		}
		if e.Date > "2026-04-10" {
			future = future.Add(e.Planned)
		} else {
			spent = spent.Add(e.Spent)
		}
	}
	want := after.Baselines["groceries"].Sub(spent)
	if !future.Equal(want) {
		t.Errorf("future planned sum = %s, want baseline minus spent = %s", future, want)
	}

	// Past entries keep their original plan.
	before := findEntry(t, doc, "2026-04-10", "groceries")
	afterEntry := findEntry(t, after, "2026-04-10", "groceries")
	if !afterEntry.Planned.Equal(before.Planned) {
		t.Errorf("past day planned moved: %s -> %s", before.Planned, afterEntry.Planned)
	}
}

func TestRedistribute_ScopedToTriggerCategory(t *testing.T) {
	svc, doc := savedMonth(t)
	ctx := context.Background()

	entry := findEntry(t, doc, "2026-04-10", "groceries")
	overspend := entry.Planned.Add(decimal.RequireFromString("25.00"))
	if _, err := svc.UpdateSpending(ctx, "u-1", &domain.SpendingEvent{
		Date: "2026-04-10", Category: "groceries", Amount: overspend, Correction: true,
	}); err != nil {
		t.Fatalf("spend: %v", err)
	}

	result, err := svc.RedistributeWith(ctx, "u-1", 2026, 4, false, "groceries")
	if err != nil {
		t.Fatalf("scoped pass: %v", err)
	}
	if len(result.Adjustments) != 1 || result.Adjustments[0].Category != "groceries" {
		t.Fatalf("scoped pass should report only groceries, got %+v", result.Adjustments)
	}

	// Other categories keep their original plan.
	after, err := svc.Fetch(ctx, "u-1", 2026, 4)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	for i := range after.Entries {
		e := &after.Entries[i]
		if e.Category == "groceries" {
			continue
		}
		before := findEntry(t, doc, e.Date, e.Category)
		if !e.Planned.Equal(before.Planned) {
			t.Fatalf("%s/%s planned moved in a groceries-scoped pass: %s -> %s",
				e.Date, e.Category, before.Planned, e.Planned)
		}
	}

	var notFound *domain.ErrNotFound
	if _, err := svc.RedistributeWith(ctx, "u-1", 2026, 4, false, "yachts"); !errors.As(err, &notFound) {
		t.Errorf("unknown trigger category should be not found, got %v", err)
	}
}

func TestRedistribute_MissingPlan(t *testing.T) {
	svc, _ := savedMonth(t)

	var notFound *domain.ErrNotFound
	if _, err := svc.Redistribute(context.Background(), "u-1", 2026, 7); !errors.As(err, &notFound) {
		t.Errorf("expected not found for an unplanned month, got %v", err)
	}
}

func TestRedistribute_ValidatesMonth(t *testing.T) {
	svc, _ := savedMonth(t)

	var validation *domain.ErrValidation
	if _, err := svc.Redistribute(context.Background(), "u-1", 2026, 0); !errors.As(err, &validation) {
		t.Errorf("expected validation error, got %v", err)
	}
}
