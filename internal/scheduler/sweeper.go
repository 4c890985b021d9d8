// Package scheduler runs the periodic sweeps that send appointment reminders
// and issue attendance-confirmation requests ahead of upcoming appointments.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/tareq-mahmood/schedulr/internal/model"
	"github.com/tareq-mahmood/schedulr/internal/notify"
)

// lookahead is the width of each sweep window. With a sweep interval at or
// below this, every appointment falls into at least one window; the
// per-appointment guard keeps a double hit from double-sending.
const lookahead = time.Hour

// resendGuard suppresses a reminder when one already went out recently, so
// overlapping sweeps stay idempotent.
const resendGuard = 24 * time.Hour

type Store interface {
	// BusinessesWithNotifications lists businesses with reminders or
	// confirmations switched on.
	BusinessesWithNotifications(ctx context.Context) ([]model.NotificationSettings, error)
	AppointmentsStartingBetween(ctx context.Context, businessID string, from, to time.Time) ([]model.Appointment, error)
	// LastNotifiedAt reports when an event was last sent for an appointment.
	// Zero time means never.
	LastNotifiedAt(ctx context.Context, appointmentID, event string) (time.Time, error)
	CustomerByID(ctx context.Context, customerID string) (model.Customer, error)
}

// AttendanceCreator issues confirmation requests. It carries its own resend
// guard, so the sweeper only has to find the candidates.
type AttendanceCreator interface {
	CreateForAppointment(ctx context.Context, appointmentID string) (model.AppointmentConfirmation, error)
}

// Result summarizes one sweep.
type Result struct {
	Reminders     int
	Confirmations int
	Errors        int
}

type Sweeper struct {
	store      Store
	notifier   notify.Sender
	attendance AttendanceCreator
	logger     *slog.Logger
	now        func() time.Time
}

func NewSweeper(store Store, notifier notify.Sender, attendance AttendanceCreator, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		store:      store,
		notifier:   notifier,
		attendance: attendance,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// RunOnce performs a single sweep over every enabled business. One bad
// appointment or one failed send never aborts the sweep; failures are
// counted and logged.
func (s *Sweeper) RunOnce(ctx context.Context) (Result, error) {
	var res Result
	settings, err := s.store.BusinessesWithNotifications(ctx)
	if err != nil {
		return res, err
	}
	now := s.now()
	for _, st := range settings {
		if st.RemindersEnabled {
			s.sweepReminders(ctx, st, now, &res)
		}
		if st.ConfirmationsEnabled {
			s.sweepConfirmations(ctx, st, now, &res)
		}
	}
	s.logger.Info("sweep complete",
		"reminders", res.Reminders, "confirmations", res.Confirmations, "errors", res.Errors)
	return res, nil
}

func (s *Sweeper) sweepReminders(ctx context.Context, st model.NotificationSettings, now time.Time, res *Result) {
	// 1h lookahead band offset by the business's hours-before setting
	from := now.Add(time.Duration(st.ReminderHoursBefore) * time.Hour)
	appts, err := s.store.AppointmentsStartingBetween(ctx, st.BusinessID, from, from.Add(lookahead))
	if err != nil {
		s.logger.Error("reminder sweep: listing appointments failed", "err", err, "business_id", st.BusinessID)
		res.Errors++
		return
	}
	for _, appt := range appts {
		if appt.Status.Terminal() {
			continue
		}
		last, err := s.store.LastNotifiedAt(ctx, appt.ID, notify.EventAppointmentReminder)
		if err != nil {
			s.logger.Error("reminder sweep: guard lookup failed", "err", err, "appointment_id", appt.ID)
			res.Errors++
			continue
		}
		if !last.IsZero() && last.After(now.Add(-resendGuard)) {
			continue
		}
		if err := s.sendReminder(ctx, appt); err != nil {
			s.logger.Error("reminder send failed", "err", err, "appointment_id", appt.ID)
			res.Errors++
			continue
		}
		res.Reminders++
	}
}

func (s *Sweeper) sendReminder(ctx context.Context, appt model.Appointment) error {
	cust, err := s.store.CustomerByID(ctx, appt.CustomerID)
	if err != nil {
		return err
	}
	return s.notifier.Send(ctx, notify.Message{
		BusinessID: appt.BusinessID,
		Event:      notify.EventAppointmentReminder,
		Recipient:  notify.Recipient{Phone: cust.Phone, Email: cust.Email},
		Variables: map[string]string{
			"customer_name": cust.Name,
			"date":          appt.StartTime.Format("2006-01-02"),
			"time":          appt.StartTime.Format("15:04"),
		},
		AppointmentID: appt.ID,
		CustomerID:    cust.ID,
	})
}

func (s *Sweeper) sweepConfirmations(ctx context.Context, st model.NotificationSettings, now time.Time, res *Result) {
	from := now.Add(time.Duration(st.ConfirmationHoursBefore) * time.Hour)
	appts, err := s.store.AppointmentsStartingBetween(ctx, st.BusinessID, from, from.Add(lookahead))
	if err != nil {
		s.logger.Error("confirmation sweep: listing appointments failed", "err", err, "business_id", st.BusinessID)
		res.Errors++
		return
	}
	for _, appt := range appts {
		if appt.Status.Terminal() {
			continue
		}
		conf, err := s.attendance.CreateForAppointment(ctx, appt.ID)
		if err != nil {
			s.logger.Error("confirmation request failed", "err", err, "appointment_id", appt.ID)
			res.Errors++
			continue
		}
		if conf.ID != "" {
			res.Confirmations++
		}
	}
}

// Run sweeps on a fixed interval until the context ends. An immediate first
// sweep catches anything missed while the process was down.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("sweep failed", "err", err)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.Error("sweep failed", "err", err)
			}
		}
	}
}
