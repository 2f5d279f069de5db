package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"

	"github.com/rmaia/budget-calendar-go/internal/domain"
)

// Metrics holds all Prometheus metrics for the budget calendar service.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration    *prometheus.HistogramVec
	storeErrors        *prometheus.CounterVec
	cacheHits          *prometheus.CounterVec
	cacheMisses        *prometheus.CounterVec
	plansTotal         *prometheus.CounterVec
	spendingEvents     prometheus.Counter
	redistributions    *prometheus.CounterVec
	unrecoverableCents prometheus.Counter
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "budget_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		storeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "budget_store_errors_total",
				Help: "Total errors from external stores.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "budget_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "budget_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		plansTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "budget_plans_total",
				Help: "Total plan operations by kind (generated, saved).",
			},
			[]string{"kind"},
		),
		spendingEvents: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "budget_spending_events_total",
				Help: "Total spending events applied.",
			},
		),
		redistributions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "budget_redistributions_total",
				Help: "Total redistribution passes by outcome (changed, noop, degraded).",
			},
			[]string{"outcome"},
		),
		unrecoverableCents: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "budget_unrecoverable_cents_total",
				Help: "Total deficit cents no future day could absorb.",
			},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrStoreError increments the store error counter.
func (m *Metrics) IncrStoreError(service string) {
	m.storeErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrPlanGenerated counts a plan computed in memory.
func (m *Metrics) IncrPlanGenerated() {
	m.plansTotal.WithLabelValues("generated").Inc()
}

// IncrPlanSaved counts a plan persisted to the store.
func (m *Metrics) IncrPlanSaved() {
	m.plansTotal.WithLabelValues("saved").Inc()
}

// IncrSpendingEvent counts an applied spending event.
func (m *Metrics) IncrSpendingEvent() {
	m.spendingEvents.Inc()
}

// IncrRedistribution counts a redistribution pass by outcome.
func (m *Metrics) IncrRedistribution(outcome string) {
	m.redistributions.WithLabelValues(outcome).Inc()
}

// AddUnrecoverableCents accumulates deficit that could not be re-planned.
func (m *Metrics) AddUnrecoverableCents(cents int64) {
	if cents > 0 {
		m.unrecoverableCents.Add(float64(cents))
	}
}

// GetEngineSnapshot returns a snapshot of engine metrics suitable for the
// GET /v1/metrics/engine endpoint.
func (m *Metrics) GetEngineSnapshot() *domain.EngineMetrics {
	// Gather current values from Prometheus counters.
	// Note: Prometheus counters expose cumulative values.
	generated := getCounterValue(m.plansTotal, "generated")
	saved := getCounterValue(m.plansTotal, "saved")
	redistributions := getCounterValue(m.redistributions, "changed") +
		getCounterValue(m.redistributions, "noop") +
		getCounterValue(m.redistributions, "degraded")
	storeErrors := getCounterValue(m.storeErrors, "postgrest")
	cacheHits := getCounterValue(m.cacheHits, "plan")
	cacheMisses := getCounterValue(m.cacheMisses, "plan")

	cacheHitRate := float64(0)
	if cacheHits+cacheMisses > 0 {
		cacheHitRate = cacheHits / (cacheHits + cacheMisses)
	}

	return &domain.EngineMetrics{
		PlansGenerated:     int64(generated),
		PlansSaved:         int64(saved),
		SpendingEvents:     int64(getPlainCounterValue(m.spendingEvents)),
		Redistributions:    int64(redistributions),
		UnrecoverableCents: int64(getPlainCounterValue(m.unrecoverableCents)),
		StoreErrors:        int64(storeErrors),
		CacheHitRate:       cacheHitRate,
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

func getPlainCounterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
