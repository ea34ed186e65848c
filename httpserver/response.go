package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/isdmx/pohrun/apperror"
)

func writeJSON(logger *zap.Logger, w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent.
			logger.Error("failed to encode JSON response", zap.Error(err))
		}
	}
}

// statusFor maps a dispatch error to the HTTP status of the execution route.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, apperror.ErrThrottled):
		return http.StatusTooManyRequests
	case errors.Is(err, apperror.ErrNotImplemented):
		return http.StatusNotImplemented
	case errors.Is(err, apperror.ErrAtCapacity):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
