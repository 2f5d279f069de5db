package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/rmaia/budget-calendar-go/internal/domain"
)

// UpdateSpending applies one spending event to its (user, date, category)
// entry. Amounts accumulate; only a correction event may lower the spent
// total. When the event pushes the entry over its plan, a redistribution
// pass runs in the same lock scope so the rest of the month absorbs the
// deficit immediately.
func (s *Calendar) UpdateSpending(ctx context.Context, userID string, event *domain.SpendingEvent) (*domain.SpendingResult, error) {
	ctx, span := tracer.Start(ctx, "Calendar.UpdateSpending")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.String("entry.date", event.Date),
		attribute.String("entry.category", event.Category),
	)

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("spending", time.Since(start))
	}()

	date, err := time.Parse(domain.DateLayout, event.Date)
	if err != nil {
		return nil, &domain.ErrValidation{Field: "date", Message: "must be YYYY-MM-DD"}
	}
	if event.Category == "" {
		return nil, &domain.ErrValidation{Field: "category", Message: "is required"}
	}
	if event.Amount.IsNegative() {
		return nil, &domain.ErrValidation{Field: "amount", Message: "must not be negative"}
	}

	year, month := date.Year(), int(date.Month())
	release, ok := s.locks.TryAcquire(lockKey(userID, year, month))
	if !ok {
		return nil, &domain.ErrPlanLocked{UserID: userID, Year: year, Month: month}
	}
	defer release()

	entry, err := s.store.GetEntry(ctx, userID, event.Date, event.Category)
	if err != nil {
		var notFound *domain.ErrNotFound
		if !errors.As(err, &notFound) {
			s.metrics.IncrStoreError("postgrest")
		}
		return nil, err
	}

	if event.Correction {
		entry.Spent = event.Amount.Round(2)
	} else {
		entry.Spent = entry.Spent.Add(event.Amount).Round(2)
	}
	entry.UpdatedAt = s.now().UTC()
	entry.Recompute()

	if err := s.store.UpsertEntry(ctx, entry); err != nil {
		s.metrics.IncrStoreError("postgrest")
		return nil, err
	}
	s.cache.Delete(planCacheKey(userID, year, month))
	s.metrics.IncrSpendingEvent()

	result := &domain.SpendingResult{Entry: *entry}

	// Overspending triggers an automatic pass; underspend reconciliation
	// and corrections wait for the explicit endpoint so quiet days and
	// bookkeeping fixes stay cheap.
	if !event.Correction && entry.Spent.GreaterThan(entry.Planned) {
		redist, err := s.redistributeLocked(ctx, userID, year, month, false, event.Category)
		if err != nil {
			// The spending write already landed; report it with a
			// degraded pass rather than failing the whole call.
			s.logger.Error("automatic redistribution failed",
				zap.String("user_id", userID),
				zap.String("date", event.Date),
				zap.Error(err),
			)
			s.metrics.IncrRedistribution("degraded")
			return result, nil
		}
		result.Redistributed = redist.Changed
		result.Result = redist
	}

	return result, nil
}
