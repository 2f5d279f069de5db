package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/rmaia/budget-calendar-go/internal/domain"
	"github.com/rmaia/budget-calendar-go/internal/infra/memory"
)

func aprilDoc(userID string) *domain.PlanDocument {
	return &domain.PlanDocument{
		UserID: userID,
		Year:   2026,
		Month:  4,
		Baselines: map[string]decimal.Decimal{
			"groceries": decimal.RequireFromString("600.00"),
		},
		Entries: []domain.PlanEntry{
			{UserID: userID, Date: "2026-04-01", Category: "groceries", Planned: decimal.RequireFromString("20.00"), Status: domain.StatusGreen},
			{UserID: userID, Date: "2026-04-02", Category: "groceries", Planned: decimal.RequireFromString("20.00"), Status: domain.StatusGreen},
		},
	}
}

func TestStore_ReplaceMonthAndList(t *testing.T) {
	s := memory.NewStore()
	ctx := context.Background()

	if err := s.ReplaceMonth(ctx, aprilDoc("u-1")); err != nil {
		t.Fatalf("replace month: %v", err)
	}

	entries, err := s.ListMonth(ctx, "u-1", 2026, 4)
	if err != nil {
		t.Fatalf("list month: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Date != "2026-04-01" || entries[1].Date != "2026-04-02" {
		t.Errorf("entries not date-ordered: %s, %s", entries[0].Date, entries[1].Date)
	}
	if entries[0].ID == "" {
		t.Error("expected an assigned entry ID")
	}

	// Replacing again drops the old entries entirely.
	doc := aprilDoc("u-1")
	doc.Entries = doc.Entries[:1]
	if err := s.ReplaceMonth(ctx, doc); err != nil {
		t.Fatalf("second replace: %v", err)
	}
	entries, _ = s.ListMonth(ctx, "u-1", 2026, 4)
	if len(entries) != 1 {
		t.Errorf("got %d entries after replace, want 1", len(entries))
	}
}

func TestStore_ReplaceMonthRejectsDuplicates(t *testing.T) {
	s := memory.NewStore()
	doc := aprilDoc("u-1")
	doc.Entries = append(doc.Entries, doc.Entries[0])

	err := s.ReplaceMonth(context.Background(), doc)
	var dup *domain.ErrDuplicateEntry
	if !errors.As(err, &dup) {
		t.Fatalf("expected ErrDuplicateEntry, got %v", err)
	}
}

func TestStore_Baselines(t *testing.T) {
	s := memory.NewStore()
	ctx := context.Background()

	if _, err := s.GetBaselines(ctx, "u-1", 2026, 4); err == nil {
		t.Fatal("expected not found before any plan")
	}

	if err := s.ReplaceMonth(ctx, aprilDoc("u-1")); err != nil {
		t.Fatalf("replace month: %v", err)
	}

	baselines, err := s.GetBaselines(ctx, "u-1", 2026, 4)
	if err != nil {
		t.Fatalf("get baselines: %v", err)
	}
	if !baselines["groceries"].Equal(decimal.RequireFromString("600.00")) {
		t.Errorf("groceries baseline = %s, want 600.00", baselines["groceries"])
	}

	update := map[string]decimal.Decimal{"groceries": decimal.RequireFromString("550.00")}
	if err := s.UpdateBaselines(ctx, "u-1", 2026, 4, update); err != nil {
		t.Fatalf("update baselines: %v", err)
	}
	baselines, _ = s.GetBaselines(ctx, "u-1", 2026, 4)
	if !baselines["groceries"].Equal(decimal.RequireFromString("550.00")) {
		t.Errorf("groceries baseline = %s after update, want 550.00", baselines["groceries"])
	}
}

func TestStore_EntryRoundTrip(t *testing.T) {
	s := memory.NewStore()
	ctx := context.Background()

	if _, err := s.GetEntry(ctx, "u-1", "2026-04-01", "dining"); err == nil {
		t.Fatal("expected not found for missing entry")
	}

	entry := &domain.PlanEntry{
		UserID:   "u-1",
		Date:     "2026-04-01",
		Category: "dining",
		Planned:  decimal.RequireFromString("25.00"),
		Spent:    decimal.RequireFromString("10.00"),
		Status:   domain.StatusGreen,
	}
	if err := s.UpsertEntry(ctx, entry); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.GetEntry(ctx, "u-1", "2026-04-01", "dining")
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	if !got.Spent.Equal(decimal.RequireFromString("10.00")) {
		t.Errorf("spent = %s, want 10.00", got.Spent)
	}
	firstID := got.ID

	// A second upsert for the same key keeps the assigned ID.
	entry.Spent = decimal.RequireFromString("12.00")
	if err := s.UpsertEntry(ctx, entry); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	got, _ = s.GetEntry(ctx, "u-1", "2026-04-01", "dining")
	if got.ID != firstID {
		t.Errorf("ID changed across upserts: %s -> %s", firstID, got.ID)
	}
}

func TestStore_GetProfile(t *testing.T) {
	s := memory.NewStore()

	if _, err := s.GetProfile(context.Background(), "u-1"); err == nil {
		t.Fatal("expected not found for unseeded profile")
	}

	s.SeedProfile(&domain.BudgetProfile{
		UserID:        "u-1",
		MonthlyIncome: decimal.RequireFromString("5000.00"),
		Region:        "urban",
	})

	p, err := s.GetProfile(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if !p.MonthlyIncome.Equal(decimal.RequireFromString("5000.00")) {
		t.Errorf("income = %s, want 5000.00", p.MonthlyIncome)
	}
}
