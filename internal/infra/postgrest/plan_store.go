package postgrest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/rmaia/budget-calendar-go/internal/domain"
)

// planEntryRow maps the plan_entries table columns to our domain.
type planEntryRow struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Date      string          `json:"date"`
	Category  string          `json:"category"`
	Planned   decimal.Decimal `json:"planned"`
	Spent     decimal.Decimal `json:"spent"`
	Status    string          `json:"status"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (r planEntryRow) toDomain() domain.PlanEntry {
	return domain.PlanEntry{
		ID:        r.ID,
		UserID:    r.UserID,
		Date:      r.Date,
		Category:  r.Category,
		Planned:   r.Planned,
		Spent:     r.Spent,
		Status:    domain.EntryStatus(r.Status),
		UpdatedAt: r.UpdatedAt,
	}
}

func entryRow(e *domain.PlanEntry) planEntryRow {
	return planEntryRow{
		ID:        e.ID,
		UserID:    e.UserID,
		Date:      e.Date,
		Category:  e.Category,
		Planned:   e.Planned,
		Spent:     e.Spent,
		Status:    string(e.Status),
		UpdatedAt: e.UpdatedAt,
	}
}

// baselineRow maps the plan_baselines table columns.
type baselineRow struct {
	UserID   string          `json:"user_id"`
	Year     int             `json:"year"`
	Month    int             `json:"month"`
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

// ReplaceMonth atomically swaps a user's month through the
// replace_plan_month database function, so concurrent readers never see a
// half-written plan.
func (c *Client) ReplaceMonth(ctx context.Context, doc *domain.PlanDocument) error {
	ctx, span := tracer.Start(ctx, "PostgREST.ReplaceMonth")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", doc.UserID),
		attribute.Int("plan.year", doc.Year),
		attribute.Int("plan.month", doc.Month),
	)

	baselines := make([]baselineRow, 0, len(doc.Baselines))
	for category, amount := range doc.Baselines {
		baselines = append(baselines, baselineRow{
			UserID:   doc.UserID,
			Year:     doc.Year,
			Month:    doc.Month,
			Category: category,
			Amount:   amount,
		})
	}
	entries := make([]planEntryRow, 0, len(doc.Entries))
	for i := range doc.Entries {
		entries = append(entries, entryRow(&doc.Entries[i]))
	}

	payload := map[string]any{
		"p_user_id":   doc.UserID,
		"p_year":      doc.Year,
		"p_month":     doc.Month,
		"p_baselines": baselines,
		"p_entries":   entries,
	}

	err := c.execute(ctx, func() error {
		_, err := c.doPost(ctx, "rpc/replace_plan_month", payload, "")
		return err
	})
	if err != nil {
		return &domain.ErrExternalService{Service: "postgrest/plan", Err: err}
	}
	return nil
}

// ListMonth returns every entry for (user, year, month), date then category
// ascending.
func (c *Client) ListMonth(ctx context.Context, userID string, year, month int) ([]domain.PlanEntry, error) {
	ctx, span := tracer.Start(ctx, "PostgREST.ListMonth")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	first, last := monthBounds(year, month)
	path := fmt.Sprintf("plan_entries?user_id=eq.%s&date=gte.%s&date=lte.%s&order=date.asc,category.asc",
		url.QueryEscape(userID), first, last)

	var rows []planEntryRow
	err := c.execute(ctx, func() error {
		body, err := c.doGet(ctx, path)
		if err != nil {
			return err
		}
		rows = nil
		if body == nil || string(body) == "[]" {
			return nil
		}
		return json.Unmarshal(body, &rows)
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "postgrest/plan", Err: err}
	}

	entries := make([]domain.PlanEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, r.toDomain())
	}
	return entries, nil
}

// GetBaselines returns the persisted per-category monthly baselines.
func (c *Client) GetBaselines(ctx context.Context, userID string, year, month int) (map[string]decimal.Decimal, error) {
	ctx, span := tracer.Start(ctx, "PostgREST.GetBaselines")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	path := fmt.Sprintf("plan_baselines?user_id=eq.%s&year=eq.%d&month=eq.%d",
		url.QueryEscape(userID), year, month)

	var rows []baselineRow
	err := c.execute(ctx, func() error {
		body, err := c.doGet(ctx, path)
		if err != nil {
			return err
		}
		rows = nil
		if body == nil || string(body) == "[]" {
			return nil
		}
		return json.Unmarshal(body, &rows)
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "postgrest/plan", Err: err}
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "plan", ID: fmt.Sprintf("%s/%d-%02d", userID, year, month)}
	}

	baselines := make(map[string]decimal.Decimal, len(rows))
	for _, r := range rows {
		baselines[r.Category] = r.Amount
	}
	return baselines, nil
}

// UpdateBaselines rewrites the baselines for the categories present in the
// map, leaving others untouched.
func (c *Client) UpdateBaselines(ctx context.Context, userID string, year, month int, baselines map[string]decimal.Decimal) error {
	ctx, span := tracer.Start(ctx, "PostgREST.UpdateBaselines")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	for category, amount := range baselines {
		path := fmt.Sprintf("plan_baselines?user_id=eq.%s&year=eq.%d&month=eq.%d&category=eq.%s",
			url.QueryEscape(userID), year, month, url.QueryEscape(category))
		err := c.execute(ctx, func() error {
			return c.doPatch(ctx, path, map[string]any{"amount": amount})
		})
		if err != nil {
			return &domain.ErrExternalService{Service: "postgrest/plan", Err: err}
		}
	}
	return nil
}

// GetEntry fetches one (user, date, category) entry.
func (c *Client) GetEntry(ctx context.Context, userID, date, category string) (*domain.PlanEntry, error) {
	ctx, span := tracer.Start(ctx, "PostgREST.GetEntry")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.String("entry.date", date),
		attribute.String("entry.category", category),
	)

	path := fmt.Sprintf("plan_entries?user_id=eq.%s&date=eq.%s&category=eq.%s&limit=1",
		url.QueryEscape(userID), date, url.QueryEscape(category))

	var rows []planEntryRow
	err := c.execute(ctx, func() error {
		body, err := c.doGet(ctx, path)
		if err != nil {
			return err
		}
		rows = nil
		if body == nil || string(body) == "[]" {
			return nil
		}
		return json.Unmarshal(body, &rows)
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "postgrest/plan", Err: err}
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "plan_entry", ID: userID + "|" + date + "|" + category}
	}

	entry := rows[0].toDomain()
	return &entry, nil
}

// UpsertEntry writes one entry keyed by (user, date, category).
func (c *Client) UpsertEntry(ctx context.Context, entry *domain.PlanEntry) error {
	ctx, span := tracer.Start(ctx, "PostgREST.UpsertEntry")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", entry.UserID))

	err := c.execute(ctx, func() error {
		_, err := c.doPost(ctx, "plan_entries?on_conflict=user_id,date,category",
			[]planEntryRow{entryRow(entry)},
			"resolution=merge-duplicates,return=minimal")
		return err
	})
	if err != nil {
		return &domain.ErrExternalService{Service: "postgrest/plan", Err: err}
	}
	return nil
}

// UpdateEntries writes the planned/spent/status of already-existing entries
// in one batch.
func (c *Client) UpdateEntries(ctx context.Context, entries []*domain.PlanEntry) error {
	ctx, span := tracer.Start(ctx, "PostgREST.UpdateEntries")
	defer span.End()
	span.SetAttributes(attribute.Int("entry.count", len(entries)))

	rows := make([]planEntryRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, entryRow(e))
	}

	err := c.execute(ctx, func() error {
		_, err := c.doPost(ctx, "plan_entries?on_conflict=user_id,date,category",
			rows, "resolution=merge-duplicates,return=minimal")
		return err
	})
	if err != nil {
		return &domain.ErrExternalService{Service: "postgrest/plan", Err: err}
	}
	return nil
}

// Ping verifies the store is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/rest/v1/plan_entries?limit=1", c.baseURL), nil)
	if err != nil {
		return err
	}
	c.setHeaders(req, "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("postgrest ping returned %d", resp.StatusCode)
	}
	return nil
}

// monthBounds returns the first and last dates of a month in wire format.
func monthBounds(year, month int) (string, string) {
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return first.Format(domain.DateLayout), last.Format(domain.DateLayout)
}
