package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tareq-mahmood/schedulr/internal/edits"
	"github.com/tareq-mahmood/schedulr/internal/model"
)

type EditHandler struct {
	flow   *edits.Workflow
	logger *slog.Logger
}

func NewEditHandler(flow *edits.Workflow, logger *slog.Logger) *EditHandler {
	return &EditHandler{flow: flow, logger: logger}
}

type editResponse struct {
	EditID    string `json:"edit_id"`
	Status    string `json:"status"`
	ExpiresAt string `json:"expires_at"`
}

func toEditResponse(e model.PendingAppointmentEdit) editResponse {
	return editResponse{
		EditID:    e.ID,
		Status:    string(e.Status),
		ExpiresAt: e.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// Propose is the business-facing endpoint: stage a change, mail the customer.
func (h *EditHandler) Propose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req edits.ProposeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	edit, err := h.flow.Propose(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEditResponse(edit))
}

type confirmEditResponse struct {
	Status    string `json:"status"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
}

// Confirm is the customer's token link. A superseded outcome still renders a
// meaningful body alongside the 409.
func (h *EditHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	out, err := h.flow.Confirm(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		if out.Edit.Status == model.EditSuperseded {
			writeJSON(w, http.StatusConflict, confirmEditResponse{Status: string(out.Edit.Status)})
			return
		}
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, confirmEditResponse{
		Status:    string(out.Edit.Status),
		StartTime: out.Appointment.StartTime.UTC().Format("2006-01-02T15:04:05Z07:00"),
		EndTime:   out.Appointment.EndTime.UTC().Format("2006-01-02T15:04:05Z07:00"),
	})
}

func (h *EditHandler) Reject(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	edit, err := h.flow.Reject(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toEditResponse(edit))
}
