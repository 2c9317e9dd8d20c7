package handler

// RESPONSE HELPERS:
// Pages show errors inline or as flash notices, so the only JSON left is the
// health check. statusFor and userMessage are the single place a domain error
// becomes an HTTP status and a sentence a user may read.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/yrajput/closet-organizer/internal/apperror"
)

// writeJSON sends a JSON response with the given status code.
// Headers and status go out before the body; later header changes are lost.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// statusFor maps a domain error onto an HTTP status.
//
// errors.Is walks the chain, so a sentinel wrapped by fmt.Errorf("...: %w")
// or carried inside an *apperror.AppError still matches.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperror.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// userMessage is the text shown for err. Validation messages are written for
// users and pass through; store failures get a fixed sentence so driver
// errors, paths and queries never reach the page.
func userMessage(err error) string {
	var appErr *apperror.AppError
	switch {
	case errors.Is(err, apperror.ErrValidation) && errors.As(err, &appErr):
		return appErr.Message
	case errors.Is(err, apperror.ErrUnavailable):
		return "The photo store is unavailable right now. Please try again later."
	case errors.Is(err, apperror.ErrCorrupt):
		return "A stored photo could not be read."
	case errors.Is(err, apperror.ErrUnauthorized):
		return "You must be logged in to do that."
	default:
		return "An internal error occurred."
	}
}
