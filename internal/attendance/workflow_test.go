package attendance

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/tareq-mahmood/schedulr/internal/apperr"
	"github.com/tareq-mahmood/schedulr/internal/model"
	"github.com/tareq-mahmood/schedulr/internal/notify"
)

var fixedNow = time.Date(2026, 2, 4, 8, 0, 0, 0, time.UTC)

type fakeStore struct {
	appointments  map[string]model.Appointment
	customers     map[string]model.Customer
	confirmations map[string]model.AppointmentConfirmation // by token
	failCancel    bool                                     // simulate a mid-transaction failure
	seq           int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		appointments:  map[string]model.Appointment{},
		customers:     map[string]model.Customer{},
		confirmations: map[string]model.AppointmentConfirmation{},
	}
}

func (s *fakeStore) AppointmentByID(_ context.Context, id string) (model.Appointment, error) {
	a, ok := s.appointments[id]
	if !ok {
		return model.Appointment{}, apperr.NotFoundf("appointment %s", id)
	}
	return a, nil
}

func (s *fakeStore) CustomerByID(_ context.Context, id string) (model.Customer, error) {
	c, ok := s.customers[id]
	if !ok {
		return model.Customer{}, apperr.NotFoundf("customer %s", id)
	}
	return c, nil
}

func (s *fakeStore) LatestConfirmation(_ context.Context, appointmentID string) (model.AppointmentConfirmation, error) {
	var latest model.AppointmentConfirmation
	found := false
	for _, c := range s.confirmations {
		if c.AppointmentID == appointmentID && (!found || c.CreatedAt.After(latest.CreatedAt)) {
			latest = c
			found = true
		}
	}
	if !found {
		return model.AppointmentConfirmation{}, apperr.NotFoundf("no confirmation for %s", appointmentID)
	}
	return latest, nil
}

func (s *fakeStore) CreateConfirmation(_ context.Context, conf model.AppointmentConfirmation) (model.AppointmentConfirmation, error) {
	s.seq++
	conf.ID = "conf-" + string(rune('a'+s.seq))
	conf.CreatedAt = fixedNow
	s.confirmations[conf.Token] = conf
	return conf, nil
}

func (s *fakeStore) claim(tok string, now time.Time) (model.AppointmentConfirmation, error) {
	conf, ok := s.confirmations[tok]
	if !ok {
		return model.AppointmentConfirmation{}, apperr.ErrNotFound
	}
	if conf.Status != model.ConfirmationPending {
		return model.AppointmentConfirmation{}, apperr.ErrAlreadyProcessed
	}
	if now.After(conf.ExpiresAt) {
		conf.Status = model.ConfirmationExpired
		s.confirmations[tok] = conf
		return model.AppointmentConfirmation{}, apperr.ErrExpired
	}
	return conf, nil
}

func (s *fakeStore) ConfirmAttendance(_ context.Context, tok string, now time.Time) (model.AppointmentConfirmation, error) {
	conf, err := s.claim(tok, now)
	if err != nil {
		return model.AppointmentConfirmation{}, err
	}
	conf.Status = model.ConfirmationConfirmed
	conf.ConfirmedAt = &now
	s.confirmations[tok] = conf
	return conf, nil
}

func (s *fakeStore) CancelAttendance(_ context.Context, tok string, now time.Time) (Cancellation, error) {
	conf, err := s.claim(tok, now)
	if err != nil {
		return Cancellation{}, err
	}
	if s.failCancel {
		// a real store rolls back: neither row changes
		return Cancellation{}, apperr.Dependencyf("storage failure")
	}
	conf.Status = model.ConfirmationCanceled
	conf.CanceledAt = &now
	s.confirmations[tok] = conf
	appt := s.appointments[conf.AppointmentID]
	appt.Status = model.StatusCanceled
	appt.CanceledAt = &now
	s.appointments[conf.AppointmentID] = appt
	return Cancellation{Confirmation: conf, Appointment: appt}, nil
}

type recordingNotifier struct {
	messages []notify.Message
}

func (n *recordingNotifier) Send(_ context.Context, msg notify.Message) error {
	n.messages = append(n.messages, msg)
	return nil
}

func seed(s *fakeStore) {
	s.appointments["appt-1"] = model.Appointment{
		ID:         "appt-1",
		BusinessID: "biz-1",
		ServiceID:  "cut",
		CustomerID: "cust-1",
		StartTime:  time.Date(2026, 2, 4, 10, 0, 0, 0, time.UTC),
		EndTime:    time.Date(2026, 2, 4, 10, 45, 0, 0, time.UTC),
		Status:     model.StatusPending,
	}
	s.customers["cust-1"] = model.Customer{ID: "cust-1", BusinessID: "biz-1", Name: "Dana", Phone: "+15550001111"}
}

func newTestWorkflow(s *fakeStore, n notify.Sender) *Workflow {
	logger := slog.New(slog.DiscardHandler)
	return NewWorkflow(s, n, logger, "https://book.example.com").WithClock(func() time.Time { return fixedNow })
}

func TestCreateForAppointment(t *testing.T) {
	store := newFakeStore()
	seed(store)
	notifier := &recordingNotifier{}
	w := newTestWorkflow(store, notifier)

	conf, err := w.CreateForAppointment(context.Background(), "appt-1")
	if err != nil {
		t.Fatalf("CreateForAppointment: %v", err)
	}
	if conf.Status != model.ConfirmationPending {
		t.Errorf("status = %s, want pending", conf.Status)
	}
	// the token dies when the appointment starts
	if !conf.ExpiresAt.Equal(store.appointments["appt-1"].StartTime) {
		t.Errorf("expires at = %v, want appointment start", conf.ExpiresAt)
	}
	if len(notifier.messages) != 1 || notifier.messages[0].Event != notify.EventAttendanceRequested {
		t.Fatalf("notifications = %+v, want one attendance_requested", notifier.messages)
	}
	if notifier.messages[0].Variables["cancel_url"] == "" {
		t.Error("request notification missing cancel link")
	}
}

func TestCreateSkipsRecentRequest(t *testing.T) {
	store := newFakeStore()
	seed(store)
	notifier := &recordingNotifier{}
	w := newTestWorkflow(store, notifier)

	if _, err := w.CreateForAppointment(context.Background(), "appt-1"); err != nil {
		t.Fatalf("first create: %v", err)
	}
	notifier.messages = nil

	conf, err := w.CreateForAppointment(context.Background(), "appt-1")
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if conf.ID != "" {
		t.Errorf("second create issued a confirmation %q within the resend guard", conf.ID)
	}
	if len(notifier.messages) != 0 {
		t.Errorf("second create sent %d notifications, want none", len(notifier.messages))
	}
}

func TestCreateSkipsTerminalAndPastAppointments(t *testing.T) {
	store := newFakeStore()
	seed(store)
	w := newTestWorkflow(store, &recordingNotifier{})

	appt := store.appointments["appt-1"]
	appt.Status = model.StatusCanceled
	store.appointments["appt-1"] = appt
	if conf, err := w.CreateForAppointment(context.Background(), "appt-1"); err != nil || conf.ID != "" {
		t.Errorf("canceled appointment: conf=%q err=%v, want no-op", conf.ID, err)
	}

	appt.Status = model.StatusPending
	appt.StartTime = fixedNow.Add(-time.Hour)
	store.appointments["appt-1"] = appt
	if conf, err := w.CreateForAppointment(context.Background(), "appt-1"); err != nil || conf.ID != "" {
		t.Errorf("past appointment: conf=%q err=%v, want no-op", conf.ID, err)
	}
}

func TestConfirmMarksAttendance(t *testing.T) {
	store := newFakeStore()
	seed(store)
	notifier := &recordingNotifier{}
	w := newTestWorkflow(store, notifier)

	conf, err := w.CreateForAppointment(context.Background(), "appt-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	notifier.messages = nil

	got, err := w.Confirm(context.Background(), conf.Token)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if got.Status != model.ConfirmationConfirmed {
		t.Errorf("status = %s, want confirmed", got.Status)
	}
	// a positive answer never rewrites the appointment itself
	if store.appointments["appt-1"].Status != model.StatusPending {
		t.Errorf("appointment status = %s, want untouched pending", store.appointments["appt-1"].Status)
	}
	if len(notifier.messages) != 1 || notifier.messages[0].Event != notify.EventAttendanceConfirmed {
		t.Fatalf("notifications = %+v, want one attendance_confirmed", notifier.messages)
	}
}

func TestConfirmTokenIsSingleUse(t *testing.T) {
	store := newFakeStore()
	seed(store)
	w := newTestWorkflow(store, &recordingNotifier{})

	conf, err := w.CreateForAppointment(context.Background(), "appt-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := w.Confirm(context.Background(), conf.Token); err != nil {
		t.Fatalf("first Confirm: %v", err)
	}
	if _, err := w.Confirm(context.Background(), conf.Token); !errors.Is(err, apperr.ErrAlreadyProcessed) {
		t.Fatalf("second Confirm err = %v, want already processed", err)
	}
}

func TestConfirmExpiredAtStartTime(t *testing.T) {
	store := newFakeStore()
	seed(store)
	w := newTestWorkflow(store, &recordingNotifier{})

	conf, err := w.CreateForAppointment(context.Background(), "appt-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// one second past the appointment start
	w.WithClock(func() time.Time { return conf.ExpiresAt.Add(time.Second) })
	if _, err := w.Confirm(context.Background(), conf.Token); !errors.Is(err, apperr.ErrExpired) {
		t.Fatalf("err = %v, want expired", err)
	}
	if store.confirmations[conf.Token].Status != model.ConfirmationExpired {
		t.Errorf("status = %s, want expired after lazy transition", store.confirmations[conf.Token].Status)
	}
}

func TestCancelReleasesAppointment(t *testing.T) {
	store := newFakeStore()
	seed(store)
	notifier := &recordingNotifier{}
	w := newTestWorkflow(store, notifier)

	conf, err := w.CreateForAppointment(context.Background(), "appt-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	notifier.messages = nil

	out, err := w.Cancel(context.Background(), conf.Token)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if out.Confirmation.Status != model.ConfirmationCanceled {
		t.Errorf("confirmation status = %s, want canceled", out.Confirmation.Status)
	}
	if out.Appointment.Status != model.StatusCanceled {
		t.Errorf("appointment status = %s, want canceled", out.Appointment.Status)
	}
	if out.Appointment.CanceledAt == nil {
		t.Error("appointment canceled_at not set")
	}
	if len(notifier.messages) != 1 || notifier.messages[0].Event != notify.EventAttendanceCanceled {
		t.Fatalf("notifications = %+v, want one attendance_canceled", notifier.messages)
	}
}

func TestCancelIsAtomic(t *testing.T) {
	store := newFakeStore()
	seed(store)
	w := newTestWorkflow(store, &recordingNotifier{})

	conf, err := w.CreateForAppointment(context.Background(), "appt-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	store.failCancel = true

	if _, err := w.Cancel(context.Background(), conf.Token); !errors.Is(err, apperr.ErrDependency) {
		t.Fatalf("err = %v, want dependency failure", err)
	}
	// neither row moved
	if store.confirmations[conf.Token].Status != model.ConfirmationPending {
		t.Errorf("confirmation status = %s, want still pending", store.confirmations[conf.Token].Status)
	}
	if store.appointments["appt-1"].Status != model.StatusPending {
		t.Errorf("appointment status = %s, want still pending", store.appointments["appt-1"].Status)
	}

	// and the token remains usable once the failure clears
	store.failCancel = false
	if _, err := w.Cancel(context.Background(), conf.Token); err != nil {
		t.Fatalf("retry Cancel: %v", err)
	}
}

func TestEmptyTokenIsValidation(t *testing.T) {
	store := newFakeStore()
	seed(store)
	w := newTestWorkflow(store, &recordingNotifier{})

	if _, err := w.Confirm(context.Background(), "  "); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("Confirm err = %v, want validation", err)
	}
	if _, err := w.Cancel(context.Background(), ""); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("Cancel err = %v, want validation", err)
	}
}
