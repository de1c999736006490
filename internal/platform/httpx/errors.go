package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/invoiceapp/invoiceapp/internal/shared"
)

// StatusFor maps domain errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, shared.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrInsufficientStock),
		errors.Is(err, shared.ErrInvalidTransition),
		errors.Is(err, shared.ErrDuplicate),
		errors.Is(err, shared.ErrIdempotencyConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func titleFor(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "Validation failed"
	case http.StatusNotFound:
		return "Not found"
	case http.StatusConflict:
		return "Conflict"
	default:
		return "Internal error"
	}
}

// RespondError maps domain errors to failed envelopes. Internal errors are logged and
// their detail withheld from the client.
func RespondError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("request failed", slog.Any("error", err))
		Fail(w, status, titleFor(status), "")
		return
	}
	Fail(w, status, titleFor(status), err.Error())
}
