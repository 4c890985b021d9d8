// Package attendance implements "are you still coming?" confirmations: a
// tokenized request sent ahead of the appointment that the customer answers
// by confirming or canceling. A cancel releases the slot atomically.
package attendance

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/tareq-mahmood/schedulr/internal/apperr"
	"github.com/tareq-mahmood/schedulr/internal/model"
	"github.com/tareq-mahmood/schedulr/internal/notify"
	"github.com/tareq-mahmood/schedulr/internal/token"
)

// resendGuard suppresses a fresh request when one was already created for the
// same appointment recently, so restarts and overlapping sweeps don't spam.
const resendGuard = 24 * time.Hour

// Cancellation carries both rows rewritten by a customer cancel.
type Cancellation struct {
	Confirmation model.AppointmentConfirmation
	Appointment  model.Appointment
}

type Store interface {
	AppointmentByID(ctx context.Context, appointmentID string) (model.Appointment, error)
	CustomerByID(ctx context.Context, customerID string) (model.Customer, error)
	LatestConfirmation(ctx context.Context, appointmentID string) (model.AppointmentConfirmation, error)
	CreateConfirmation(ctx context.Context, conf model.AppointmentConfirmation) (model.AppointmentConfirmation, error)

	// ConfirmAttendance claims the pending confirmation by token and marks it
	// confirmed. Lazy-expires a pending row past its deadline (ErrExpired);
	// a non-pending row answers ErrAlreadyProcessed.
	ConfirmAttendance(ctx context.Context, tok string, now time.Time) (model.AppointmentConfirmation, error)

	// CancelAttendance marks the confirmation canceled AND cancels the
	// appointment in the same transaction, releasing the calendar interval.
	CancelAttendance(ctx context.Context, tok string, now time.Time) (Cancellation, error)
}

type Workflow struct {
	store    Store
	notifier notify.Sender
	logger   *slog.Logger
	now      func() time.Time
	linkBase string
}

func NewWorkflow(store Store, notifier notify.Sender, logger *slog.Logger, linkBase string) *Workflow {
	return &Workflow{
		store:    store,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
		linkBase: strings.TrimRight(linkBase, "/"),
	}
}

func (w *Workflow) WithClock(now func() time.Time) *Workflow {
	w.now = now
	return w
}

// CreateForAppointment issues a confirmation request for an upcoming
// appointment. Returns (zero, nil) when the appointment doesn't need one:
// already terminal, or a request went out within the resend guard. The token
// expires at the appointment's start time, after which answering it is moot.
func (w *Workflow) CreateForAppointment(ctx context.Context, appointmentID string) (model.AppointmentConfirmation, error) {
	appt, err := w.store.AppointmentByID(ctx, appointmentID)
	if err != nil {
		return model.AppointmentConfirmation{}, err
	}
	if appt.Status.Terminal() {
		return model.AppointmentConfirmation{}, nil
	}
	now := w.now()
	if !appt.StartTime.After(now) {
		return model.AppointmentConfirmation{}, nil
	}

	prev, err := w.store.LatestConfirmation(ctx, appt.ID)
	switch {
	case err == nil:
		if prev.CreatedAt.After(now.Add(-resendGuard)) {
			return model.AppointmentConfirmation{}, nil
		}
	case errors.Is(err, apperr.ErrNotFound):
		// first request for this appointment
	default:
		return model.AppointmentConfirmation{}, err
	}

	tok, err := token.New()
	if err != nil {
		return model.AppointmentConfirmation{}, err
	}
	conf, err := w.store.CreateConfirmation(ctx, model.AppointmentConfirmation{
		AppointmentID: appt.ID,
		Token:         tok,
		Status:        model.ConfirmationPending,
		ExpiresAt:     appt.StartTime,
	})
	if err != nil {
		return model.AppointmentConfirmation{}, err
	}

	w.notifyCustomer(ctx, appt, notify.EventAttendanceRequested, map[string]string{
		"date":        appt.StartTime.Format("2006-01-02"),
		"time":        appt.StartTime.Format("15:04"),
		"confirm_url": w.link("attendance/confirm", tok),
		"cancel_url":  w.link("attendance/cancel", tok),
	})
	return conf, nil
}

// Confirm records that the customer intends to show up.
func (w *Workflow) Confirm(ctx context.Context, tok string) (model.AppointmentConfirmation, error) {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return model.AppointmentConfirmation{}, apperr.Validationf("token is required")
	}
	conf, err := w.store.ConfirmAttendance(ctx, tok, w.now())
	if err != nil {
		return model.AppointmentConfirmation{}, err
	}
	if appt, err := w.store.AppointmentByID(ctx, conf.AppointmentID); err == nil {
		w.notifyCustomer(ctx, appt, notify.EventAttendanceConfirmed, map[string]string{
			"date": appt.StartTime.Format("2006-01-02"),
			"time": appt.StartTime.Format("15:04"),
		})
	}
	return conf, nil
}

// Cancel releases the appointment. Confirmation row and appointment row
// change together or not at all.
func (w *Workflow) Cancel(ctx context.Context, tok string) (Cancellation, error) {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return Cancellation{}, apperr.Validationf("token is required")
	}
	out, err := w.store.CancelAttendance(ctx, tok, w.now())
	if err != nil {
		return Cancellation{}, err
	}
	w.notifyCustomer(ctx, out.Appointment, notify.EventAttendanceCanceled, map[string]string{
		"date": out.Appointment.StartTime.Format("2006-01-02"),
		"time": out.Appointment.StartTime.Format("15:04"),
	})
	return out, nil
}

func (w *Workflow) link(action, tok string) string {
	return w.linkBase + "/" + action + "?token=" + tok
}

func (w *Workflow) notifyCustomer(ctx context.Context, appt model.Appointment, event string, vars map[string]string) {
	cust, err := w.store.CustomerByID(ctx, appt.CustomerID)
	if err != nil {
		w.logger.Error("attendance notification skipped: customer lookup failed", "err", err, "appointment_id", appt.ID)
		return
	}
	vars["customer_name"] = cust.Name
	if err := w.notifier.Send(ctx, notify.Message{
		BusinessID:    appt.BusinessID,
		Event:         event,
		Recipient:     notify.Recipient{Phone: cust.Phone, Email: cust.Email},
		Variables:     vars,
		AppointmentID: appt.ID,
		CustomerID:    cust.ID,
	}); err != nil {
		w.logger.Error("attendance notification failed", "err", err, "event", event, "appointment_id", appt.ID)
	}
}
