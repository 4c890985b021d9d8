// Package handlers is the HTTP surface: public availability/booking/token
// endpoints, the business-facing edit endpoint and the internal scheduler
// trigger.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tareq-mahmood/schedulr/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy onto HTTP statuses. Anything outside the
// taxonomy is a 500 with a generic body; the detail goes to the log only.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, apperr.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, apperr.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, apperr.ErrExpired):
		http.Error(w, err.Error(), http.StatusGone)
	case errors.Is(err, apperr.ErrAlreadyProcessed):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, apperr.ErrDependency):
		logger.Error("dependency failure", "err", err)
		http.Error(w, "temporarily unavailable", http.StatusServiceUnavailable)
	default:
		logger.Error("request failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
