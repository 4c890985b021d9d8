package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tareq-mahmood/schedulr/internal/apperr"
	"github.com/tareq-mahmood/schedulr/internal/attendance"
	"github.com/tareq-mahmood/schedulr/internal/model"
	"github.com/tareq-mahmood/schedulr/internal/token"
)

const confColumns = `id::text, appointment_id::text, token, status,
	expires_at, confirmed_at, canceled_at, created_at`

func scanConfirmation(row pgx.Row) (model.AppointmentConfirmation, error) {
	var c model.AppointmentConfirmation
	err := row.Scan(&c.ID, &c.AppointmentID, &c.Token, &c.Status,
		&c.ExpiresAt, &c.ConfirmedAt, &c.CanceledAt, &c.CreatedAt)
	return c, err
}

func (r *Repository) LatestConfirmation(ctx context.Context, appointmentID string) (model.AppointmentConfirmation, error) {
	c, err := scanConfirmation(r.pool.QueryRow(ctx, `
		SELECT `+confColumns+`
		FROM appointment_confirmations
		WHERE appointment_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, appointmentID))
	if err != nil {
		return model.AppointmentConfirmation{}, notFound(err, "confirmation for appointment %s", appointmentID)
	}
	return c, nil
}

func (r *Repository) CreateConfirmation(ctx context.Context, conf model.AppointmentConfirmation) (model.AppointmentConfirmation, error) {
	return scanConfirmation(r.pool.QueryRow(ctx, `
		INSERT INTO appointment_confirmations (id, appointment_id, token, status, expires_at)
		VALUES ($1, $2, $3, 'pending', $4)
		RETURNING `+confColumns,
		uuid.NewString(), conf.AppointmentID, conf.Token, conf.ExpiresAt))
}

// claimConfirmation locks the row for the token and checks it is still
// answerable, lazy-expiring a pending row past its deadline.
func claimConfirmation(ctx context.Context, tx pgx.Tx, tok string, now time.Time) (model.AppointmentConfirmation, error) {
	conf, err := scanConfirmation(tx.QueryRow(ctx, `
		SELECT `+confColumns+`
		FROM appointment_confirmations
		WHERE token = $1
		FOR UPDATE
	`, tok))
	if err != nil {
		return model.AppointmentConfirmation{}, notFound(err, "confirmation request")
	}
	if conf.Status != model.ConfirmationPending {
		return model.AppointmentConfirmation{}, apperr.ErrAlreadyProcessed
	}
	if token.Expired(now, conf.ExpiresAt) {
		if _, err := tx.Exec(ctx,
			`UPDATE appointment_confirmations SET status = 'expired' WHERE id = $1`, conf.ID); err != nil {
			return model.AppointmentConfirmation{}, err
		}
		if err := tx.Commit(ctx); err != nil {
			return model.AppointmentConfirmation{}, err
		}
		return model.AppointmentConfirmation{}, apperr.ErrExpired
	}
	return conf, nil
}

func (r *Repository) ConfirmAttendance(ctx context.Context, tok string, now time.Time) (model.AppointmentConfirmation, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.AppointmentConfirmation{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	conf, err := claimConfirmation(ctx, tx, tok, now)
	if err != nil {
		return model.AppointmentConfirmation{}, err
	}

	conf, err = scanConfirmation(tx.QueryRow(ctx, `
		UPDATE appointment_confirmations
		SET status = 'confirmed', confirmed_at = $2
		WHERE id = $1
		RETURNING `+confColumns, conf.ID, now))
	if err != nil {
		return model.AppointmentConfirmation{}, err
	}

	// the appointment itself is untouched; the answer only feeds the dashboard
	appt, err := scanAppointment(tx.QueryRow(ctx,
		`SELECT `+apptColumns+` FROM appointments WHERE id = $1`, conf.AppointmentID))
	if err != nil {
		return model.AppointmentConfirmation{}, err
	}
	if err := insertNotificationTx(ctx, tx, model.Notification{
		BusinessID:    appt.BusinessID,
		AppointmentID: appt.ID,
		CustomerID:    appt.CustomerID,
		Event:         "attendance_confirmed",
		Channel:       "dashboard",
		Recipient:     appt.BusinessID,
		Payload:       []byte(`{"source":"confirmation_link"}`),
		Status:        "created",
	}); err != nil {
		return model.AppointmentConfirmation{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.AppointmentConfirmation{}, err
	}
	return conf, nil
}

// CancelAttendance resolves the token and cancels the appointment in the same
// transaction, so the calendar interval frees up exactly when the
// confirmation row flips.
func (r *Repository) CancelAttendance(ctx context.Context, tok string, now time.Time) (attendance.Cancellation, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return attendance.Cancellation{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	conf, err := claimConfirmation(ctx, tx, tok, now)
	if err != nil {
		return attendance.Cancellation{}, err
	}

	conf, err = scanConfirmation(tx.QueryRow(ctx, `
		UPDATE appointment_confirmations
		SET status = 'canceled', canceled_at = $2
		WHERE id = $1
		RETURNING `+confColumns, conf.ID, now))
	if err != nil {
		return attendance.Cancellation{}, err
	}

	appt, err := scanAppointment(tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'canceled', canceled_at = $2
		WHERE id = $1
		RETURNING `+apptColumns, conf.AppointmentID, now))
	if err != nil {
		return attendance.Cancellation{}, err
	}

	if err := insertNotificationTx(ctx, tx, model.Notification{
		BusinessID:    appt.BusinessID,
		AppointmentID: appt.ID,
		CustomerID:    appt.CustomerID,
		Event:         "attendance_canceled",
		Channel:       "dashboard",
		Recipient:     appt.BusinessID,
		Payload:       []byte(`{"source":"confirmation_link"}`),
		Status:        "created",
	}); err != nil {
		return attendance.Cancellation{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return attendance.Cancellation{}, err
	}
	return attendance.Cancellation{Confirmation: conf, Appointment: appt}, nil
}
