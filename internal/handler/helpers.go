package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rmaia/budget-calendar-go/internal/domain"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// pathYearMonth pulls the {year}/{month} route params. Range validation
// stays in the service; this only rejects non-numeric input.
func pathYearMonth(r *http.Request) (year, month int, err error) {
	year, err = strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		return 0, 0, &domain.ErrValidation{Field: "year", Message: "must be an integer"}
	}
	month, err = strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil {
		return 0, 0, &domain.ErrValidation{Field: "month", Message: "must be an integer"}
	}
	return year, month, nil
}

// checkUserAccess enforces that the authenticated subject matches the
// path user. A request that never passed the JWT middleware carries no
// subject and is allowed through (auth disabled).
func checkUserAccess(r *http.Request, userID string) error {
	sub := UserIDFromContext(r.Context())
	if sub != "" && sub != userID {
		return &domain.ErrForbidden{Action: "access plans of another user"}
	}
	return nil
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var notFound *domain.ErrNotFound
	var validation *domain.ErrValidation
	var planLocked *domain.ErrPlanLocked
	var duplicate *domain.ErrDuplicateEntry
	var external *domain.ErrExternalService
	var timeout *domain.ErrTimeout
	var circuitOpen *domain.ErrCircuitOpen
	var unauthorized *domain.ErrUnauthorized
	var forbidden *domain.ErrForbidden

	switch {
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &planLocked):
		logger.Debug("plan locked", zap.String("error", err.Error()))
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &duplicate):
		logger.Debug("duplicate entry", zap.String("error", err.Error()))
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &timeout):
		logger.Error("request timeout", zap.Error(err))
		writeError(w, http.StatusGatewayTimeout, err.Error())
	case errors.As(err, &external):
		logger.Error("external service failure", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &unauthorized):
		logger.Warn("unauthorized", zap.String("error", err.Error()))
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &forbidden):
		logger.Warn("forbidden access", zap.String("error", err.Error()))
		writeError(w, http.StatusForbidden, err.Error())
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
