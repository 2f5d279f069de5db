package handler

import (
	"encoding/json"
	"net/http"

	"github.com/rmaia/budget-calendar-go/internal/domain"
	"github.com/rmaia/budget-calendar-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Plans
// /v1/users/{userId}/plans/{year}/{month}
// ============================================================

func previewPlanHandler(svc *service.Calendar, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/users/{userId}/plans/{year}/{month}/preview")
		defer span.End()

		userID := chi.URLParam(r, "userId")
		if err := checkUserAccess(r, userID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		year, month, err := pathYearMonth(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(
			attribute.String("user.id", userID),
			attribute.Int("plan.year", year),
			attribute.Int("plan.month", month),
		)

		preview, err := svc.Generate(ctx, userID, year, month)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, preview)
	}
}

func savePlanHandler(svc *service.Calendar, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/users/{userId}/plans/{year}/{month}")
		defer span.End()

		userID := chi.URLParam(r, "userId")
		if err := checkUserAccess(r, userID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		year, month, err := pathYearMonth(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(
			attribute.String("user.id", userID),
			attribute.Int("plan.year", year),
			attribute.Int("plan.month", month),
		)

		doc, err := svc.GenerateAndSave(ctx, userID, year, month)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	}
}

func getPlanHandler(svc *service.Calendar, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/users/{userId}/plans/{year}/{month}")
		defer span.End()

		userID := chi.URLParam(r, "userId")
		if err := checkUserAccess(r, userID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		year, month, err := pathYearMonth(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		doc, err := svc.Fetch(ctx, userID, year, month)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	}
}

func planSummaryHandler(svc *service.Calendar, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/users/{userId}/plans/{year}/{month}/summary")
		defer span.End()

		userID := chi.URLParam(r, "userId")
		if err := checkUserAccess(r, userID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		year, month, err := pathYearMonth(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		summary, err := svc.Summary(ctx, userID, year, month)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

// ============================================================
// Spending
// POST /v1/users/{userId}/spending
// ============================================================

func spendingHandler(svc *service.Calendar, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/users/{userId}/spending")
		defer span.End()

		userID := chi.URLParam(r, "userId")
		if err := checkUserAccess(r, userID); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		var event domain.SpendingEvent
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		span.SetAttributes(
			attribute.String("user.id", userID),
			attribute.String("spending.category", event.Category),
			attribute.String("spending.date", event.Date),
		)

		result, err := svc.UpdateSpending(ctx, userID, &event)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// ============================================================
// Redistribution
// POST /v1/users/{userId}/plans/{year}/{month}/redistribute
// ============================================================

func redistributeHandler(svc *service.Calendar, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/users/{userId}/plans/{year}/{month}/redistribute")
		defer span.End()

		userID := chi.URLParam(r, "userId")
		if err := checkUserAccess(r, userID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		year, month, err := pathYearMonth(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(
			attribute.String("user.id", userID),
			attribute.Int("plan.year", year),
			attribute.Int("plan.month", month),
		)

		category := r.URL.Query().Get("category")
		var result *domain.RedistributionResult
		if v := r.URL.Query().Get("transfers"); v != "" {
			result, err = svc.RedistributeWith(ctx, userID, year, month, v == "true", category)
		} else if category != "" {
			result, err = svc.RedistributeWith(ctx, userID, year, month, false, category)
		} else {
			result, err = svc.Redistribute(ctx, userID, year, month)
		}
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// ============================================================
// Operational endpoints
// ============================================================

func engineMetricsHandler(svc *service.Calendar, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.EngineSnapshot())
	}
}

func healthzHandler(svc *service.Calendar, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := svc.Health(r.Context())
		writeJSON(w, http.StatusOK, status)
	}
}

func readyzHandler(svc *service.Calendar) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := svc.Health(r.Context())
		if status.Status != "ok" {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}
