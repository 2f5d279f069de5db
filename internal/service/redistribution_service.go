package service

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rmaia/budget-calendar-go/internal/domain"
	"github.com/rmaia/budget-calendar-go/internal/engine"
)

// Redistribute reconciles a stored month with its observed spending,
// re-planning future days category by category. Safe to call repeatedly;
// a pass over an already-reconciled month changes nothing.
func (s *Calendar) Redistribute(ctx context.Context, userID string, year, month int) (*domain.RedistributionResult, error) {
	return s.RedistributeWith(ctx, userID, year, month, s.allowTransfers, "")
}

// RedistributeWith runs a pass with an explicit cross-category transfer
// policy, optionally scoped to the single category that triggered it.
// An empty triggerCategory reconciles the whole month.
func (s *Calendar) RedistributeWith(ctx context.Context, userID string, year, month int, allowTransfers bool, triggerCategory string) (*domain.RedistributionResult, error) {
	ctx, span := tracer.Start(ctx, "Calendar.Redistribute")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.Int("plan.year", year),
		attribute.Int("plan.month", month),
	)

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("redistribute", time.Since(start))
	}()

	if err := validateMonth(year, month); err != nil {
		return nil, err
	}

	release, ok := s.locks.TryAcquire(lockKey(userID, year, month))
	if !ok {
		return nil, &domain.ErrPlanLocked{UserID: userID, Year: year, Month: month}
	}
	defer release()

	return s.redistributeLocked(ctx, userID, year, month, allowTransfers, triggerCategory)
}

// redistributeLocked runs one pass. The caller must hold the month lock.
func (s *Calendar) redistributeLocked(ctx context.Context, userID string, year, month int, allowTransfers bool, triggerCategory string) (*domain.RedistributionResult, error) {
	var (
		entries   []domain.PlanEntry
		baselines map[string]decimal.Decimal
		profile   *domain.BudgetProfile
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		entries, err = s.store.ListMonth(gCtx, userID, year, month)
		return err
	})
	g.Go(func() error {
		var err error
		baselines, err = s.store.GetBaselines(gCtx, userID, year, month)
		return err
	})
	g.Go(func() error {
		var err error
		profile, err = s.profiles.GetProfile(gCtx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, &domain.ErrNotFound{Resource: "plan", ID: lockKey(userID, year, month)}
	}

	tier := engine.Classify(s.cfg, profile.MonthlyIncome, profile.Region)
	regionIdx := s.cfg.RegionIndex(profile.Region)

	// Group the month by category, with pointers so the engine mutates
	// the same entries we later persist.
	byCategory := make(map[string]*engine.MonthInput)
	for i := range entries {
		e := &entries[i]
		in, ok := byCategory[e.Category]
		if !ok {
			floor := decimal.Zero
			if policy := s.cfg.Policy(e.Category); policy != nil {
				floor = policy.Floor(tier, regionIdx)
			}
			in = &engine.MonthInput{Baseline: baselines[e.Category], Floor: floor}
			byCategory[e.Category] = in
		}
		in.Entries = append(in.Entries, e)
	}

	if triggerCategory != "" {
		in, ok := byCategory[triggerCategory]
		if !ok {
			return nil, &domain.ErrNotFound{Resource: "category", ID: triggerCategory}
		}
		byCategory = map[string]*engine.MonthInput{triggerCategory: in}
	}

	today := s.today()
	outcomes := engine.RedistributeMonth(byCategory, today, allowTransfers)

	result := &domain.RedistributionResult{UserID: userID, Year: year, Month: month}
	var changed []*domain.PlanEntry
	changedBaselines := make(map[string]decimal.Decimal)
	degraded := false

	names := make([]string, 0, len(outcomes))
	for name := range outcomes {
		names = append(names, name)
	}
	sort.Strings(names)

	now := s.now().UTC()
	for _, name := range names {
		out := outcomes[name]
		result.Adjustments = append(result.Adjustments, domain.CategoryAdjustment{
			Category:      name,
			Applied:       out.Applied,
			Unrecoverable: out.Unrecoverable,
			TransferredIn: out.TransferredIn,
			FutureDays:    out.FutureDays,
		})
		if out.Unrecoverable.IsPositive() {
			degraded = true
			s.metrics.AddUnrecoverableCents(engine.Cents(out.Unrecoverable))
			s.logger.Warn("deficit exceeds remaining capacity",
				zap.String("user_id", userID),
				zap.String("category", name),
				zap.String("unrecoverable", out.Unrecoverable.String()),
			)
		}
		if out.Changed {
			result.Changed = true
			for _, e := range byCategory[name].Entries {
				if e.Date > today {
					e.UpdatedAt = now
					changed = append(changed, e)
				}
			}
		}
		if out.BaselineChanged {
			changedBaselines[name] = byCategory[name].Baseline
		}
	}

	if len(changed) > 0 {
		if err := s.store.UpdateEntries(ctx, changed); err != nil {
			s.metrics.IncrStoreError("postgrest")
			return nil, err
		}
	}
	if len(changedBaselines) > 0 {
		if err := s.store.UpdateBaselines(ctx, userID, year, month, changedBaselines); err != nil {
			s.metrics.IncrStoreError("postgrest")
			return nil, err
		}
	}
	if len(changed) > 0 || len(changedBaselines) > 0 {
		s.cache.Delete(planCacheKey(userID, year, month))
	}

	switch {
	case degraded:
		s.metrics.IncrRedistribution("degraded")
	case result.Changed:
		s.metrics.IncrRedistribution("changed")
	default:
		s.metrics.IncrRedistribution("noop")
	}
	return result, nil
}
