package service

import (
	"context"
	"time"

	"github.com/rmaia/budget-calendar-go/internal/domain"
)

// Health pings the plan store and reports per-dependency status.
func (s *Calendar) Health(ctx context.Context) *domain.HealthStatus {
	status := &domain.HealthStatus{Status: "ok"}

	start := time.Now()
	storeStatus := "ok"
	if err := s.store.Ping(ctx); err != nil {
		storeStatus = "unavailable"
		status.Status = "degraded"
	}
	status.Services = append(status.Services, domain.ServiceHealth{
		Name:        "plan_store",
		Status:      storeStatus,
		LatencyMs:   time.Since(start).Milliseconds(),
		LastChecked: s.now().UTC().Format(time.RFC3339),
	})

	return status
}

// EngineSnapshot returns the cumulative engine metrics.
func (s *Calendar) EngineSnapshot() *domain.EngineMetrics {
	return s.metrics.GetEngineSnapshot()
}
