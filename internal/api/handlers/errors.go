package handlers

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/expense-insights/internal/api/middleware"
	"github.com/dvloznov/expense-insights/internal/domain"
	"github.com/dvloznov/expense-insights/internal/jobs"
	"github.com/dvloznov/expense-insights/internal/session"
	"github.com/dvloznov/expense-insights/internal/source"
)

// statusFor maps an error to its HTTP status. Client-facing errors keep
// their message; anything unrecognised is reported as a 500.
func statusFor(err error) int {
	var (
		formatErr    *domain.FileFormatError
		coerceErr    *domain.ValueCoercionError
		integrityErr *domain.DataIntegrityError
		selectionErr *domain.EmptySelectionError
		remoteErr    *domain.RemoteServiceError
	)
	switch {
	case errors.As(err, &formatErr),
		errors.Is(err, domain.ErrNegativeBudget),
		errors.Is(err, domain.ErrNoCurrentData),
		errors.Is(err, source.ErrWarehouseCurrent),
		errors.Is(err, source.ErrNoBackend):
		return http.StatusBadRequest
	case errors.As(err, &coerceErr),
		errors.As(err, &integrityErr),
		errors.As(err, &selectionErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrNotFound),
		errors.Is(err, jobs.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, jobs.ErrJobFinished):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNarrativeDisabled),
		errors.Is(err, jobs.ErrQueueClosed):
		return http.StatusServiceUnavailable
	case errors.As(err, &remoteErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeFailure logs err and writes the mapped error response.
func writeFailure(w http.ResponseWriter, log zerolog.Logger, err error, msg string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", status).Msg(msg)
	} else {
		log.Warn().Err(err).Int("status", status).Msg(msg)
	}

	if status == http.StatusInternalServerError {
		middleware.WriteError(w, status, msg)
		return
	}
	middleware.WriteError(w, status, err.Error())
}
