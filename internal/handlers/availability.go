package handlers

import (
	"log/slog"
	"net/http"

	"github.com/tareq-mahmood/schedulr/internal/availability"
)

type AvailabilityHandler struct {
	calc   *availability.Calculator
	logger *slog.Logger
}

func NewAvailabilityHandler(calc *availability.Calculator, logger *slog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{calc: calc, logger: logger}
}

func (h *AvailabilityHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	day, err := h.calc.ComputeSlots(r.Context(),
		q.Get("business_id"), q.Get("service_id"), q.Get("date"), q.Get("staff_id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, day)
}
