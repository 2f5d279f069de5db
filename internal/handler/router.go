package handler

import (
	"net/http"

	"github.com/rmaia/budget-calendar-go/internal/infra/observability"
	"github.com/rmaia/budget-calendar-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
// A nil jwtSecret disables authentication; otherwise every /v1 route
// requires a valid Bearer token whose subject matches the path user.
func NewRouter(svc *service.Calendar, metrics *observability.Metrics, jwtSecret []byte, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svc, logger))
	r.Get("/readyz", readyzHandler(svc))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		if len(jwtSecret) > 0 {
			r.Use(JWTAuthMiddleware(jwtSecret, logger))
		}

		// =============================================
		// Plan lifecycle
		// POST /v1/users/{userId}/plans/{year}/{month}/preview
		// PUT  /v1/users/{userId}/plans/{year}/{month}
		// GET  /v1/users/{userId}/plans/{year}/{month}
		// GET  /v1/users/{userId}/plans/{year}/{month}/summary
		// =============================================
		r.Post("/users/{userId}/plans/{year}/{month}/preview", previewPlanHandler(svc, logger))
		r.Put("/users/{userId}/plans/{year}/{month}", savePlanHandler(svc, logger))
		r.Get("/users/{userId}/plans/{year}/{month}", getPlanHandler(svc, logger))
		r.Get("/users/{userId}/plans/{year}/{month}/summary", planSummaryHandler(svc, logger))

		// =============================================
		// Spending events
		// POST /v1/users/{userId}/spending
		// =============================================
		r.Post("/users/{userId}/spending", spendingHandler(svc, logger))

		// =============================================
		// Redistribution
		// POST /v1/users/{userId}/plans/{year}/{month}/redistribute
		// =============================================
		r.Post("/users/{userId}/plans/{year}/{month}/redistribute", redistributeHandler(svc, logger))

		// =============================================
		// Engine metrics
		// GET /v1/metrics/engine
		// =============================================
		r.Get("/metrics/engine", engineMetricsHandler(svc, logger))
	})

	return r
}
