package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/tareq-mahmood/schedulr/internal/apperr"
	"github.com/tareq-mahmood/schedulr/internal/model"
)

type fakeAdminStore struct {
	hours    map[int]model.BusinessHours
	policy   model.SlotPolicy
	timeOff  map[string]model.TimeOff
	settings map[string]model.NotificationSettings
	feed     []model.Notification
	nextID   int
}

func newFakeAdminStore() *fakeAdminStore {
	return &fakeAdminStore{
		hours:    map[int]model.BusinessHours{},
		timeOff:  map[string]model.TimeOff{},
		settings: map[string]model.NotificationSettings{},
	}
}

func (s *fakeAdminStore) SaveBusinessHours(_ context.Context, h model.BusinessHours) error {
	s.hours[h.Weekday] = h
	return nil
}

func (s *fakeAdminStore) SaveSlotPolicy(_ context.Context, p model.SlotPolicy) error {
	s.policy = p
	return nil
}

func (s *fakeAdminStore) CreateTimeOff(_ context.Context, t model.TimeOff) (model.TimeOff, error) {
	s.nextID++
	t.ID = "off-" + strconv.Itoa(s.nextID)
	s.timeOff[t.ID] = t
	return t, nil
}

func (s *fakeAdminStore) DeleteTimeOff(_ context.Context, businessID, timeOffID string) error {
	entry, ok := s.timeOff[timeOffID]
	if !ok || entry.BusinessID != businessID {
		return apperr.NotFoundf("time off %s", timeOffID)
	}
	delete(s.timeOff, timeOffID)
	return nil
}

func (s *fakeAdminStore) TimeOffBetween(_ context.Context, businessID string, from, to time.Time) ([]model.TimeOff, error) {
	var out []model.TimeOff
	for _, t := range s.timeOff {
		if t.BusinessID == businessID && t.StartTime.Before(to) && t.EndTime.After(from) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *fakeAdminStore) NotificationSettings(_ context.Context, businessID string) (model.NotificationSettings, error) {
	cfg, ok := s.settings[businessID]
	if !ok {
		return model.NotificationSettings{}, apperr.NotFoundf("notification settings for %s", businessID)
	}
	return cfg, nil
}

func (s *fakeAdminStore) SaveNotificationSettings(_ context.Context, cfg model.NotificationSettings) error {
	s.settings[cfg.BusinessID] = cfg
	return nil
}

func (s *fakeAdminStore) Notifications(_ context.Context, businessID string, limit int) ([]model.Notification, error) {
	var out []model.Notification
	for _, n := range s.feed {
		if n.BusinessID == businessID {
			out = append(out, n)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func newAdminHandler(store *fakeAdminStore) *AdminHandler {
	return NewAdminHandler(store, slog.New(slog.DiscardHandler))
}

func adminRequest(method, target, body string) *http.Request {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	r.Header.Set("X-Business-Id", "biz-1")
	return r
}

func TestUpsertHoursSaves(t *testing.T) {
	store := newFakeAdminStore()
	h := newAdminHandler(store)

	rec := httptest.NewRecorder()
	h.UpsertHours(rec, adminRequest(http.MethodPut, "/api/v1/hours",
		`{"weekday":2,"open_minute":540,"close_minute":1080,"active":true}`))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204 (%s)", rec.Code, rec.Body.String())
	}
	saved, ok := store.hours[2]
	if !ok {
		t.Fatal("no hours row saved for weekday 2")
	}
	if saved.BusinessID != "biz-1" || saved.OpenMinute != 540 || saved.CloseMinute != 1080 || !saved.Active {
		t.Errorf("saved = %+v", saved)
	}
}

func TestUpsertHoursValidation(t *testing.T) {
	h := newAdminHandler(newFakeAdminStore())
	cases := []struct {
		name string
		body string
	}{
		{"weekday out of range", `{"weekday":7,"open_minute":540,"close_minute":1080,"active":true}`},
		{"negative minute", `{"weekday":1,"open_minute":-1,"close_minute":1080,"active":true}`},
		{"minute past midnight", `{"weekday":1,"open_minute":540,"close_minute":1441,"active":true}`},
		{"close before open", `{"weekday":1,"open_minute":1080,"close_minute":540,"active":true}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.UpsertHours(rec, adminRequest(http.MethodPut, "/api/v1/hours", tc.body))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestUpsertHoursRequiresBusinessHeader(t *testing.T) {
	h := newAdminHandler(newFakeAdminStore())
	req := httptest.NewRequest(http.MethodPut, "/api/v1/hours",
		strings.NewReader(`{"weekday":1,"open_minute":540,"close_minute":1080,"active":true}`))
	rec := httptest.NewRecorder()
	h.UpsertHours(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 without X-Business-Id", rec.Code)
	}
}

func TestUpsertSlotPolicy(t *testing.T) {
	store := newFakeAdminStore()
	h := newAdminHandler(store)

	rec := httptest.NewRecorder()
	h.UpsertSlotPolicy(rec, adminRequest(http.MethodPut, "/api/v1/slot-policy",
		`{"timezone":"Europe/Berlin","default_duration_minutes":45,"default_gap_minutes":5,
		  "advance_window_days":14,"same_day_booking":false,"rounding_strategy":"every_30"}`))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204 (%s)", rec.Code, rec.Body.String())
	}
	if store.policy.Timezone != "Europe/Berlin" || store.policy.Rounding != model.RoundingEvery30 {
		t.Errorf("policy = %+v", store.policy)
	}

	bad := []struct {
		name string
		body string
	}{
		{"unknown timezone", `{"timezone":"Mars/Olympus","default_duration_minutes":30,"advance_window_days":30,"rounding_strategy":"continuous"}`},
		{"unknown rounding", `{"timezone":"UTC","default_duration_minutes":30,"advance_window_days":30,"rounding_strategy":"every_7"}`},
		{"zero duration", `{"timezone":"UTC","default_duration_minutes":0,"advance_window_days":30,"rounding_strategy":"continuous"}`},
	}
	for _, tc := range bad {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.UpsertSlotPolicy(rec, adminRequest(http.MethodPut, "/api/v1/slot-policy", tc.body))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestTimeOffCreateListDelete(t *testing.T) {
	store := newFakeAdminStore()
	h := newAdminHandler(store)

	rec := httptest.NewRecorder()
	h.TimeOff(rec, adminRequest(http.MethodPost, "/api/v1/time-off",
		`{"scope":"business","start_time":"2026-03-01T00:00:00Z","end_time":"2026-03-02T00:00:00Z","reason":"holiday"}`))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201 (%s)", rec.Code, rec.Body.String())
	}
	var created map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("create body: %v", err)
	}
	if created["id"] == "" {
		t.Fatal("create returned no id")
	}

	rec = httptest.NewRecorder()
	h.TimeOff(rec, adminRequest(http.MethodGet,
		"/api/v1/time-off?from=2026-02-28T00:00:00Z&to=2026-03-03T00:00:00Z", ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d (%s)", rec.Code, rec.Body.String())
	}
	var listed []model.TimeOff
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("list body: %v", err)
	}
	if len(listed) != 1 || listed[0].Reason != "holiday" {
		t.Errorf("listed = %+v", listed)
	}

	rec = httptest.NewRecorder()
	h.TimeOff(rec, adminRequest(http.MethodDelete, "/api/v1/time-off?id="+created["id"], ""))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if len(store.timeOff) != 0 {
		t.Errorf("time off still present after delete: %+v", store.timeOff)
	}

	rec = httptest.NewRecorder()
	h.TimeOff(rec, adminRequest(http.MethodDelete, "/api/v1/time-off?id="+created["id"], ""))
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestTimeOffValidation(t *testing.T) {
	h := newAdminHandler(newFakeAdminStore())
	cases := []struct {
		name string
		body string
	}{
		{"end before start", `{"scope":"business","start_time":"2026-03-02T00:00:00Z","end_time":"2026-03-01T00:00:00Z"}`},
		{"bad timestamp", `{"scope":"business","start_time":"tomorrow","end_time":"2026-03-02T00:00:00Z"}`},
		{"unknown scope", `{"scope":"galaxy","start_time":"2026-03-01T00:00:00Z","end_time":"2026-03-02T00:00:00Z"}`},
		{"staff scope without owner", `{"scope":"staff","start_time":"2026-03-01T00:00:00Z","end_time":"2026-03-02T00:00:00Z"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.TimeOff(rec, adminRequest(http.MethodPost, "/api/v1/time-off", tc.body))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestTimeOffListEmptyIsArray(t *testing.T) {
	h := newAdminHandler(newFakeAdminStore())
	rec := httptest.NewRecorder()
	h.TimeOff(rec, adminRequest(http.MethodGet,
		"/api/v1/time-off?from=2026-02-28T00:00:00Z&to=2026-03-03T00:00:00Z", ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("empty list body = %q, want []", got)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	store := newFakeAdminStore()
	h := newAdminHandler(store)

	rec := httptest.NewRecorder()
	h.Settings(rec, adminRequest(http.MethodGet, "/api/v1/notification-settings", ""))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get before save = %d, want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Settings(rec, adminRequest(http.MethodPut, "/api/v1/notification-settings",
		`{"reminders_enabled":true,"reminder_hours_before":24,"confirmations_enabled":true,"confirmation_hours_before":48}`))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("put status = %d (%s)", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.Settings(rec, adminRequest(http.MethodGet, "/api/v1/notification-settings", ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var got settingsRequest
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("get body: %v", err)
	}
	if !got.RemindersEnabled || got.ReminderHoursBefore != 24 || got.ConfirmationHoursBefore != 48 {
		t.Errorf("settings = %+v", got)
	}

	rec = httptest.NewRecorder()
	h.Settings(rec, adminRequest(http.MethodPut, "/api/v1/notification-settings",
		`{"reminders_enabled":true,"reminder_hours_before":0,"confirmations_enabled":false,"confirmation_hours_before":48}`))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("zero hours_before status = %d, want 400", rec.Code)
	}
}

func TestNotificationsList(t *testing.T) {
	store := newFakeAdminStore()
	store.feed = []model.Notification{
		{ID: "n-1", BusinessID: "biz-1", Event: "appointment_booked", Channel: "dashboard"},
		{ID: "n-2", BusinessID: "biz-2", Event: "appointment_booked", Channel: "dashboard"},
	}
	h := newAdminHandler(store)

	rec := httptest.NewRecorder()
	h.Notifications(rec, adminRequest(http.MethodGet, "/api/v1/notifications", ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got []model.Notification
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("body: %v", err)
	}
	if len(got) != 1 || got[0].ID != "n-1" {
		t.Errorf("feed = %+v, want only biz-1 rows", got)
	}
}
