package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rmaia/budget-calendar-go/internal/domain"
	"github.com/rmaia/budget-calendar-go/internal/engine"
	"github.com/rmaia/budget-calendar-go/internal/infra/lock"
	"github.com/rmaia/budget-calendar-go/internal/infra/observability"
	"github.com/rmaia/budget-calendar-go/internal/port"
)

var tracer = otel.Tracer("service/calendar")

// Calendar orchestrates plan generation, spending updates, and
// redistribution over the store and the pure engine.
type Calendar struct {
	store    port.PlanStore
	profiles port.ProfileFetcher
	cache    port.Cache[any]
	locks    *lock.Keyed
	metrics  *observability.Metrics
	logger   *zap.Logger
	cfg      *engine.Config

	// allowTransfers enables cross-category rebalancing in explicit
	// redistribution passes.
	allowTransfers bool

	// now is injectable so tests can pin "today".
	now func() time.Time
}

// NewCalendar creates the calendar service with all dependencies injected.
func NewCalendar(
	store port.PlanStore,
	profiles port.ProfileFetcher,
	cache port.Cache[any],
	metrics *observability.Metrics,
	logger *zap.Logger,
	cfg *engine.Config,
	allowTransfers bool,
) *Calendar {
	return &Calendar{
		store:          store,
		profiles:       profiles,
		cache:          cache,
		locks:          lock.NewKeyed(),
		metrics:        metrics,
		logger:         logger,
		cfg:            cfg,
		allowTransfers: allowTransfers,
		now:            time.Now,
	}
}

// WithNow replaces the service clock. Test hook.
func (s *Calendar) WithNow(now func() time.Time) *Calendar {
	s.now = now
	return s
}

func (s *Calendar) today() string {
	return s.now().UTC().Format(domain.DateLayout)
}

func lockKey(userID string, year, month int) string {
	return fmt.Sprintf("%s|%d|%02d", userID, year, month)
}

func planCacheKey(userID string, year, month int) string {
	return fmt.Sprintf("plan:%s:%d-%02d", userID, year, month)
}

func validateMonth(year, month int) error {
	if year < 2000 || year > 2200 {
		return &domain.ErrValidation{Field: "year", Message: "out of range"}
	}
	if month < 1 || month > 12 {
		return &domain.ErrValidation{Field: "month", Message: "must be between 1 and 12"}
	}
	return nil
}

// Generate computes a full month plan for a user without persisting it.
func (s *Calendar) Generate(ctx context.Context, userID string, year, month int) (*domain.PlanPreview, error) {
	ctx, span := tracer.Start(ctx, "Calendar.Generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.Int("plan.year", year),
		attribute.Int("plan.month", month),
	)

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("generate", time.Since(start))
	}()

	if err := validateMonth(year, month); err != nil {
		return nil, err
	}

	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		s.metrics.IncrStoreError("postgrest")
		return nil, err
	}

	preview := s.buildPlan(profile, year, month)
	s.metrics.IncrPlanGenerated()
	return preview, nil
}

// buildPlan runs the engine pipeline: classify, budget, allocate.
func (s *Calendar) buildPlan(profile *domain.BudgetProfile, year, month int) *domain.PlanPreview {
	tier := engine.Classify(s.cfg, profile.MonthlyIncome, profile.Region)
	days := engine.DaysInMonth(year, time.Month(month))
	startWd := engine.StartWeekday(year, time.Month(month))
	cooldown := s.cfg.Cooldown(tier)

	budget := engine.BuildMonthlyBudget(s.cfg, profile, tier, days, s.logger)

	now := s.now().UTC()
	preview := &domain.PlanPreview{
		UserID:        profile.UserID,
		Year:          year,
		Month:         month,
		Tier:          tier,
		Region:        profile.Region,
		Discretionary: budget.Discretionary,
		Baselines:     budget.Categories,
	}

	for _, policy := range s.cfg.Categories {
		total, ok := budget.Categories[policy.Name]
		if !ok {
			continue
		}
		alloc := engine.Allocate(total, days, startWd, policy.Behavior, cooldown)
		for day := 0; day < days; day++ {
			amount, ok := alloc[day]
			if !ok {
				continue
			}
			entry := domain.PlanEntry{
				ID:        uuid.NewString(),
				UserID:    profile.UserID,
				Date:      fmt.Sprintf("%04d-%02d-%02d", year, month, day+1),
				Category:  policy.Name,
				Planned:   amount,
				Spent:     decimal.Zero,
				UpdatedAt: now,
			}
			entry.Recompute()
			preview.Entries = append(preview.Entries, entry)
		}
	}

	// Overrides may name categories outside the weight table; they get a
	// flat spread since no behavioral profile exists for them.
	for name, total := range budget.Categories {
		if s.cfg.Policy(name) != nil {
			continue
		}
		alloc := engine.Allocate(total, days, startWd, engine.BehavioralProfile{Mode: engine.ModeSpread}, 0)
		for day := 0; day < days; day++ {
			entry := domain.PlanEntry{
				ID:        uuid.NewString(),
				UserID:    profile.UserID,
				Date:      fmt.Sprintf("%04d-%02d-%02d", year, month, day+1),
				Category:  name,
				Planned:   alloc[day],
				Spent:     decimal.Zero,
				UpdatedAt: now,
			}
			entry.Recompute()
			preview.Entries = append(preview.Entries, entry)
		}
	}

	return preview
}

// GenerateAndSave computes a month plan and atomically replaces whatever was
// stored for that month.
func (s *Calendar) GenerateAndSave(ctx context.Context, userID string, year, month int) (*domain.PlanDocument, error) {
	ctx, span := tracer.Start(ctx, "Calendar.GenerateAndSave")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.Int("plan.year", year),
		attribute.Int("plan.month", month),
	)

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("save", time.Since(start))
	}()

	if err := validateMonth(year, month); err != nil {
		return nil, err
	}

	release, ok := s.locks.TryAcquire(lockKey(userID, year, month))
	if !ok {
		return nil, &domain.ErrPlanLocked{UserID: userID, Year: year, Month: month}
	}
	defer release()

	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		s.metrics.IncrStoreError("postgrest")
		return nil, err
	}

	preview := s.buildPlan(profile, year, month)
	doc := &domain.PlanDocument{
		UserID:    userID,
		Year:      year,
		Month:     month,
		Baselines: preview.Baselines,
		Entries:   preview.Entries,
	}

	if err := s.store.ReplaceMonth(ctx, doc); err != nil {
		s.metrics.IncrStoreError("postgrest")
		return nil, err
	}

	s.cache.Delete(planCacheKey(userID, year, month))
	s.metrics.IncrPlanGenerated()
	s.metrics.IncrPlanSaved()
	s.logger.Info("plan saved",
		zap.String("user_id", userID),
		zap.Int("year", year),
		zap.Int("month", month),
		zap.Int("entries", len(doc.Entries)),
		zap.String("tier", preview.Tier.String()),
	)
	return doc, nil
}

// Fetch loads a stored month: entries and baselines, concurrently.
func (s *Calendar) Fetch(ctx context.Context, userID string, year, month int) (*domain.PlanDocument, error) {
	ctx, span := tracer.Start(ctx, "Calendar.Fetch")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	if err := validateMonth(year, month); err != nil {
		return nil, err
	}

	cacheKey := planCacheKey(userID, year, month)
	if cached, ok := s.cache.Get(cacheKey); ok {
		if doc, ok := cached.(*domain.PlanDocument); ok {
			s.metrics.IncrCacheHit("plan")
			return doc, nil
		}
	}
	s.metrics.IncrCacheMiss("plan")

	var (
		entries   []domain.PlanEntry
		baselines map[string]decimal.Decimal
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
	if err := g.Wait(); err != nil {
		return nil, err
	}

	doc := &domain.PlanDocument{
		UserID:    userID,
		Year:      year,
		Month:     month,
		Baselines: baselines,
		Entries:   entries,
	}
	s.cache.Set(cacheKey, doc)
	return doc, nil
}

// Summary rolls a stored month up per category.
func (s *Calendar) Summary(ctx context.Context, userID string, year, month int) (*domain.PlanSummary, error) {
	ctx, span := tracer.Start(ctx, "Calendar.Summary")
	defer span.End()

	doc, err := s.Fetch(ctx, userID, year, month)
	if err != nil {
		return nil, err
	}

	type agg struct {
		planned decimal.Decimal
		spent   decimal.Decimal
	}
	perCategory := make(map[string]*agg)
	order := make([]string, 0)
	for i := range doc.Entries {
		e := &doc.Entries[i]
		a, ok := perCategory[e.Category]
		if !ok {
			a = &agg{planned: decimal.Zero, spent: decimal.Zero}
			perCategory[e.Category] = a
			order = append(order, e.Category)
		}
		a.planned = a.planned.Add(e.Planned)
		a.spent = a.spent.Add(e.Spent)
	}
	sort.Strings(order)

	summary := &domain.PlanSummary{
		UserID:  userID,
		Year:    year,
		Month:   month,
		Planned: decimal.Zero,
		Spent:   decimal.Zero,
	}
	for _, category := range order {
		a := perCategory[category]
		summary.Categories = append(summary.Categories, domain.CategorySummary{
			Category:  category,
			Planned:   a.planned,
			Spent:     a.spent,
			Remaining: a.planned.Sub(a.spent),
			Status:    domain.StatusOf(a.planned, a.spent),
		})
		summary.Planned = summary.Planned.Add(a.planned)
		summary.Spent = summary.Spent.Add(a.spent)
	}
	return summary, nil
}
