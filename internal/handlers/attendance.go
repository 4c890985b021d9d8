package handlers

import (
	"log/slog"
	"net/http"

	"github.com/tareq-mahmood/schedulr/internal/attendance"
)

type AttendanceHandler struct {
	flow   *attendance.Workflow
	logger *slog.Logger
}

func NewAttendanceHandler(flow *attendance.Workflow, logger *slog.Logger) *AttendanceHandler {
	return &AttendanceHandler{flow: flow, logger: logger}
}

type attendanceResponse struct {
	Status            string `json:"status"`
	AppointmentStatus string `json:"appointment_status,omitempty"`
}

func (h *AttendanceHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	conf, err := h.flow.Confirm(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, attendanceResponse{Status: string(conf.Status)})
}

func (h *AttendanceHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	out, err := h.flow.Cancel(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, attendanceResponse{
		Status:            string(out.Confirmation.Status),
		AppointmentStatus: string(out.Appointment.Status),
	})
}
