package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tareq-mahmood/schedulr/internal/apperr"
	"github.com/tareq-mahmood/schedulr/internal/edits"
	"github.com/tareq-mahmood/schedulr/internal/model"
	"github.com/tareq-mahmood/schedulr/internal/token"
)

const editColumns = `id::text, appointment_id::text, new_start_time, new_end_time,
	new_service_id::text, COALESCE(new_staff_id::text, ''), token, status,
	expires_at, confirmed_at, rejected_at, created_at`

func scanEdit(row pgx.Row) (model.PendingAppointmentEdit, error) {
	var e model.PendingAppointmentEdit
	err := row.Scan(&e.ID, &e.AppointmentID, &e.NewStartTime, &e.NewEndTime,
		&e.NewServiceID, &e.NewStaffID, &e.Token, &e.Status,
		&e.ExpiresAt, &e.ConfirmedAt, &e.RejectedAt, &e.CreatedAt)
	return e, err
}

func (r *Repository) CreateEdit(ctx context.Context, edit model.PendingAppointmentEdit) (model.PendingAppointmentEdit, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO pending_appointment_edits
			(id, appointment_id, new_start_time, new_end_time, new_service_id, new_staff_id, token, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, '')::uuid, $7, 'pending', $8)
		RETURNING `+editColumns,
		uuid.NewString(), edit.AppointmentID, edit.NewStartTime, edit.NewEndTime,
		edit.NewServiceID, edit.NewStaffID, edit.Token, edit.ExpiresAt)
	return scanEdit(row)
}

// claimEdit locks the row for the token and checks it is still answerable.
// A pending row past its deadline is flipped to expired inside the same
// transaction before ErrExpired comes back.
func claimEdit(ctx context.Context, tx pgx.Tx, tok string, now time.Time) (model.PendingAppointmentEdit, error) {
	edit, err := scanEdit(tx.QueryRow(ctx, `
		SELECT `+editColumns+`
		FROM pending_appointment_edits
		WHERE token = $1
		FOR UPDATE
	`, tok))
	if err != nil {
		return model.PendingAppointmentEdit{}, notFound(err, "edit request")
	}
	if edit.Status != model.EditPending {
		return model.PendingAppointmentEdit{}, apperr.ErrAlreadyProcessed
	}
	if token.Expired(now, edit.ExpiresAt) {
		if _, err := tx.Exec(ctx,
			`UPDATE pending_appointment_edits SET status = 'expired' WHERE id = $1`, edit.ID); err != nil {
			return model.PendingAppointmentEdit{}, err
		}
		if err := tx.Commit(ctx); err != nil {
			return model.PendingAppointmentEdit{}, err
		}
		return model.PendingAppointmentEdit{}, apperr.ErrExpired
	}
	return edit, nil
}

// ConfirmEdit applies the proposed change if the target interval is still
// free. A conflict marks the edit superseded (that outcome commits) and
// returns ErrConflict with the untouched appointment, so the caller can tell
// the business their proposal died.
func (r *Repository) ConfirmEdit(ctx context.Context, tok string, now time.Time) (edits.ConfirmOutcome, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return edits.ConfirmOutcome{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	edit, err := claimEdit(ctx, tx, tok, now)
	if err != nil {
		return edits.ConfirmOutcome{}, err
	}

	// A staff-less target interval needs the same per-business/day advisory
	// lock CreateBooking takes, and in the same order: advisory lock first,
	// row locks after. The business id is read without a lock just to derive
	// the key; the locked read follows.
	if edit.NewStaffID == "" {
		var businessID string
		if err := tx.QueryRow(ctx,
			`SELECT business_id::text FROM appointments WHERE id = $1`, edit.AppointmentID).Scan(&businessID); err != nil {
			return edits.ConfirmOutcome{}, notFound(err, "appointment %s", edit.AppointmentID)
		}
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`,
			staffLessLockKey(businessID, edit.NewStartTime)); err != nil {
			return edits.ConfirmOutcome{}, err
		}
	}

	appt, err := scanAppointment(tx.QueryRow(ctx,
		`SELECT `+apptColumns+` FROM appointments WHERE id = $1 FOR UPDATE`, edit.AppointmentID))
	if err != nil {
		return edits.ConfirmOutcome{}, notFound(err, "appointment %s", edit.AppointmentID)
	}

	var blocking string
	err = tx.QueryRow(ctx, `
		SELECT id::text FROM appointments
		WHERE business_id = $1
			AND id <> $2
			AND status IN ('pending', 'confirmed')
			AND start_time < $4 AND end_time > $3
			AND ($5 = '' OR staff_id::text = $5)
		LIMIT 1
		FOR UPDATE
	`, appt.BusinessID, appt.ID, edit.NewStartTime, edit.NewEndTime, edit.NewStaffID).Scan(&blocking)
	switch {
	case err == nil:
		// slot raced away while the customer deliberated
		if _, err := tx.Exec(ctx,
			`UPDATE pending_appointment_edits SET status = 'superseded' WHERE id = $1`, edit.ID); err != nil {
			return edits.ConfirmOutcome{}, err
		}
		if err := tx.Commit(ctx); err != nil {
			return edits.ConfirmOutcome{}, err
		}
		edit.Status = model.EditSuperseded
		return edits.ConfirmOutcome{Edit: edit, Appointment: appt},
			apperr.Conflictf("proposed slot no longer available")
	case !errors.Is(err, pgx.ErrNoRows):
		return edits.ConfirmOutcome{}, err
	}

	appt, err = scanAppointment(tx.QueryRow(ctx, `
		UPDATE appointments
		SET start_time = $2, end_time = $3, service_id = $4, staff_id = NULLIF($5, '')::uuid
		WHERE id = $1
		RETURNING `+apptColumns,
		appt.ID, edit.NewStartTime, edit.NewEndTime, edit.NewServiceID, edit.NewStaffID))
	if err != nil {
		// exclusion constraint backstop: a concurrent insert beat the re-check
		if pgCode(err) == pgExclusionViolation {
			return edits.ConfirmOutcome{}, apperr.Conflictf("proposed slot no longer available")
		}
		return edits.ConfirmOutcome{}, err
	}

	edit, err = scanEdit(tx.QueryRow(ctx, `
		UPDATE pending_appointment_edits
		SET status = 'confirmed', confirmed_at = $2
		WHERE id = $1
		RETURNING `+editColumns, edit.ID, now))
	if err != nil {
		return edits.ConfirmOutcome{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return edits.ConfirmOutcome{}, err
	}
	return edits.ConfirmOutcome{Edit: edit, Appointment: appt}, nil
}

func (r *Repository) RejectEdit(ctx context.Context, tok string, now time.Time) (model.PendingAppointmentEdit, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.PendingAppointmentEdit{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	edit, err := claimEdit(ctx, tx, tok, now)
	if err != nil {
		return model.PendingAppointmentEdit{}, err
	}

	edit, err = scanEdit(tx.QueryRow(ctx, `
		UPDATE pending_appointment_edits
		SET status = 'rejected', rejected_at = $2
		WHERE id = $1
		RETURNING `+editColumns, edit.ID, now))
	if err != nil {
		return model.PendingAppointmentEdit{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.PendingAppointmentEdit{}, err
	}
	return edit, nil
}
