package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/iho/kasa/internal/adapter/http/dto"
	"github.com/iho/kasa/internal/adapter/http/middleware"
	"github.com/iho/kasa/internal/domain"
	"github.com/iho/kasa/internal/usecase"
)

// anonymousActor is recorded in audit logs when auth is disabled.
const anonymousActor = "api"

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(dto.ErrorResponse{
		Error:   message,
		Message: details,
	})
}

// writeDomainError writes err with the status mapDomainError picks.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	writeError(w, mapDomainError(err), message, err.Error())
}

// mapDomainError maps domain errors to HTTP status codes.
func mapDomainError(err error) int {
	switch {
	case errors.Is(err, domain.ErrPeriodNotFound),
		errors.Is(err, domain.ErrNoSettlement):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidMonth),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidHolder),
		errors.Is(err, domain.ErrDuplicateHolder),
		errors.Is(err, domain.ErrUnknownPolicy):
		return http.StatusBadRequest
	case domain.IsConfigurationError(err),
		errors.Is(err, domain.ErrMissingData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrPeriodAlreadyClosed),
		errors.Is(err, domain.ErrPeriodOutOfOrder),
		errors.Is(err, domain.ErrPeriodLocked),
		errors.Is(err, usecase.ErrInconsistentLedger):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody decodes a JSON body into v. An empty body leaves v untouched
// when allowEmpty is set.
func decodeBody(r *http.Request, v any, allowEmpty bool) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if allowEmpty && errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func monthParam(r *http.Request) string {
	return chi.URLParam(r, "month")
}

func actor(r *http.Request) string {
	if user, ok := middleware.GetUserFromContext(r.Context()); ok && user.ID != "" {
		return user.ID
	}
	return anonymousActor
}

func requestID(r *http.Request) string {
	return chimiddleware.GetReqID(r.Context())
}
