package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/tareq-mahmood/schedulr/internal/apperr"
	"github.com/tareq-mahmood/schedulr/internal/model"
)

// AdminStore is the calendar and settings surface the dashboard writes
// through. The storage.Repository implements it.
type AdminStore interface {
	SaveBusinessHours(ctx context.Context, h model.BusinessHours) error
	SaveSlotPolicy(ctx context.Context, p model.SlotPolicy) error
	CreateTimeOff(ctx context.Context, t model.TimeOff) (model.TimeOff, error)
	DeleteTimeOff(ctx context.Context, businessID, timeOffID string) error
	TimeOffBetween(ctx context.Context, businessID string, from, to time.Time) ([]model.TimeOff, error)
	NotificationSettings(ctx context.Context, businessID string) (model.NotificationSettings, error)
	SaveNotificationSettings(ctx context.Context, s model.NotificationSettings) error
	Notifications(ctx context.Context, businessID string, limit int) ([]model.Notification, error)
}

type AdminHandler struct {
	store  AdminStore
	logger *slog.Logger
}

func NewAdminHandler(store AdminStore, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{store: store, logger: logger}
}

// businessIDFromHeader reads the tenant the dashboard acts for. The gateway
// in front of this service resolves it from the session.
func businessIDFromHeader(r *http.Request) (string, error) {
	id := r.Header.Get("X-Business-Id")
	if id == "" {
		return "", apperr.Validationf("missing X-Business-Id header")
	}
	return id, nil
}

type hoursRequest struct {
	Weekday     int  `json:"weekday"`
	OpenMinute  int  `json:"open_minute"`
	CloseMinute int  `json:"close_minute"`
	Active      bool `json:"active"`
}

func (h *AdminHandler) UpsertHours(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	businessID, err := businessIDFromHeader(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req hoursRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.Weekday < 0 || req.Weekday > 6 {
		writeError(w, h.logger, apperr.Validationf("weekday must be 0..6"))
		return
	}
	if req.OpenMinute < 0 || req.OpenMinute > 1440 || req.CloseMinute < 0 || req.CloseMinute > 1440 {
		writeError(w, h.logger, apperr.Validationf("minutes must be 0..1440"))
		return
	}
	if req.Active && req.CloseMinute <= req.OpenMinute {
		writeError(w, h.logger, apperr.Validationf("close_minute must be after open_minute"))
		return
	}
	err = h.store.SaveBusinessHours(r.Context(), model.BusinessHours{
		BusinessID:  businessID,
		Weekday:     req.Weekday,
		OpenMinute:  req.OpenMinute,
		CloseMinute: req.CloseMinute,
		Active:      req.Active,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type slotPolicyRequest struct {
	Timezone            string `json:"timezone"`
	DefaultDurationMins int    `json:"default_duration_minutes"`
	DefaultGapMins      int    `json:"default_gap_minutes"`
	AdvanceWindowDays   int    `json:"advance_window_days"`
	SameDayBooking      bool   `json:"same_day_booking"`
	Rounding            string `json:"rounding_strategy"`
}

func (h *AdminHandler) UpsertSlotPolicy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	businessID, err := businessIDFromHeader(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req slotPolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if _, err := time.LoadLocation(req.Timezone); err != nil {
		writeError(w, h.logger, apperr.Validationf("unknown timezone %q", req.Timezone))
		return
	}
	if req.DefaultDurationMins <= 0 || req.AdvanceWindowDays <= 0 || req.DefaultGapMins < 0 {
		writeError(w, h.logger, apperr.Validationf("duration and advance window must be positive, gap non-negative"))
		return
	}
	switch model.RoundingStrategy(req.Rounding) {
	case model.RoundingContinuous, model.RoundingOnTheHour, model.RoundingEvery15, model.RoundingEvery30:
	default:
		writeError(w, h.logger, apperr.Validationf("unknown rounding strategy %q", req.Rounding))
		return
	}
	err = h.store.SaveSlotPolicy(r.Context(), model.SlotPolicy{
		BusinessID:          businessID,
		Timezone:            req.Timezone,
		DefaultDurationMins: req.DefaultDurationMins,
		DefaultGapMins:      req.DefaultGapMins,
		AdvanceWindowDays:   req.AdvanceWindowDays,
		SameDayBooking:      req.SameDayBooking,
		Rounding:            model.RoundingStrategy(req.Rounding),
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type timeOffRequest struct {
	Scope     string `json:"scope"`
	OwnerID   string `json:"owner_id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Reason    string `json:"reason"`
}

// TimeOff multiplexes the blackout-window collection: POST creates, GET lists
// a window, DELETE removes by id.
func (h *AdminHandler) TimeOff(w http.ResponseWriter, r *http.Request) {
	businessID, err := businessIDFromHeader(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	switch r.Method {
	case http.MethodPost:
		h.createTimeOff(w, r, businessID)
	case http.MethodGet:
		h.listTimeOff(w, r, businessID)
	case http.MethodDelete:
		h.deleteTimeOff(w, r, businessID)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *AdminHandler) createTimeOff(w http.ResponseWriter, r *http.Request, businessID string) {
	var req timeOffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		writeError(w, h.logger, apperr.Validationf("start_time must be RFC3339"))
		return
	}
	end, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		writeError(w, h.logger, apperr.Validationf("end_time must be RFC3339"))
		return
	}
	if !end.After(start) {
		writeError(w, h.logger, apperr.Validationf("end_time must be after start_time"))
		return
	}
	scope := model.TimeOffScope(req.Scope)
	switch scope {
	case model.ScopeBusiness:
	case model.ScopeStaff, model.ScopeBranch:
		if req.OwnerID == "" {
			writeError(w, h.logger, apperr.Validationf("owner_id is required for %s scope", scope))
			return
		}
	default:
		writeError(w, h.logger, apperr.Validationf("unknown scope %q", req.Scope))
		return
	}
	created, err := h.store.CreateTimeOff(r.Context(), model.TimeOff{
		BusinessID: businessID,
		Scope:      scope,
		OwnerID:    req.OwnerID,
		StartTime:  start,
		EndTime:    end,
		Reason:     req.Reason,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": created.ID})
}

func (h *AdminHandler) listTimeOff(w http.ResponseWriter, r *http.Request, businessID string) {
	q := r.URL.Query()
	from, err := time.Parse(time.RFC3339, q.Get("from"))
	if err != nil {
		writeError(w, h.logger, apperr.Validationf("from must be RFC3339"))
		return
	}
	to, err := time.Parse(time.RFC3339, q.Get("to"))
	if err != nil {
		writeError(w, h.logger, apperr.Validationf("to must be RFC3339"))
		return
	}
	entries, err := h.store.TimeOffBetween(r.Context(), businessID, from, to)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if entries == nil {
		entries = []model.TimeOff{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *AdminHandler) deleteTimeOff(w http.ResponseWriter, r *http.Request, businessID string) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, h.logger, apperr.Validationf("id is required"))
		return
	}
	if err := h.store.DeleteTimeOff(r.Context(), businessID, id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type settingsRequest struct {
	RemindersEnabled        bool `json:"reminders_enabled"`
	ReminderHoursBefore     int  `json:"reminder_hours_before"`
	ConfirmationsEnabled    bool `json:"confirmations_enabled"`
	ConfirmationHoursBefore int  `json:"confirmation_hours_before"`
}

// Settings serves the reminder/confirmation toggles: GET reads, PUT upserts.
func (h *AdminHandler) Settings(w http.ResponseWriter, r *http.Request) {
	businessID, err := businessIDFromHeader(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	switch r.Method {
	case http.MethodGet:
		s, err := h.store.NotificationSettings(r.Context(), businessID)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, settingsRequest{
			RemindersEnabled:        s.RemindersEnabled,
			ReminderHoursBefore:     s.ReminderHoursBefore,
			ConfirmationsEnabled:    s.ConfirmationsEnabled,
			ConfirmationHoursBefore: s.ConfirmationHoursBefore,
		})
	case http.MethodPut:
		var req settingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		if req.ReminderHoursBefore <= 0 || req.ConfirmationHoursBefore <= 0 {
			writeError(w, h.logger, apperr.Validationf("hours_before must be positive"))
			return
		}
		err = h.store.SaveNotificationSettings(r.Context(), model.NotificationSettings{
			BusinessID:              businessID,
			RemindersEnabled:        req.RemindersEnabled,
			ReminderHoursBefore:     req.ReminderHoursBefore,
			ConfirmationsEnabled:    req.ConfirmationsEnabled,
			ConfirmationHoursBefore: req.ConfirmationHoursBefore,
		})
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// Notifications lists the business's dashboard feed, newest first.
func (h *AdminHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	businessID, err := businessIDFromHeader(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := h.store.Notifications(r.Context(), businessID, limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if items == nil {
		items = []model.Notification{}
	}
	writeJSON(w, http.StatusOK, items)
}
