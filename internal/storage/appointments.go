package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tareq-mahmood/schedulr/internal/apperr"
	"github.com/tareq-mahmood/schedulr/internal/availability"
	"github.com/tareq-mahmood/schedulr/internal/booking"
	"github.com/tareq-mahmood/schedulr/internal/model"
)

const apptColumns = `id::text, business_id::text, COALESCE(branch_id::text, ''), service_id::text,
	COALESCE(staff_id::text, ''), customer_id::text, start_time, end_time, status,
	confirmation_code, COALESCE(payment_status, ''), COALESCE(notes, ''), canceled_at, created_at`

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var a model.Appointment
	err := row.Scan(&a.ID, &a.BusinessID, &a.BranchID, &a.ServiceID, &a.StaffID, &a.CustomerID,
		&a.StartTime, &a.EndTime, &a.Status, &a.ConfirmationCode, &a.PaymentStatus,
		&a.Notes, &a.CanceledAt, &a.CreatedAt)
	return a, err
}

func (r *Repository) AppointmentByID(ctx context.Context, appointmentID string) (model.Appointment, error) {
	a, err := scanAppointment(r.pool.QueryRow(ctx,
		`SELECT `+apptColumns+` FROM appointments WHERE id = $1`, appointmentID))
	if err != nil {
		return model.Appointment{}, notFound(err, "appointment %s", appointmentID)
	}
	return a, nil
}

func (r *Repository) CustomerByID(ctx context.Context, customerID string) (model.Customer, error) {
	var c model.Customer
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, business_id::text, name, phone, COALESCE(email, '')
		FROM customers
		WHERE id = $1
	`, customerID).Scan(&c.ID, &c.BusinessID, &c.Name, &c.Phone, &c.Email)
	if err != nil {
		return model.Customer{}, notFound(err, "customer %s", customerID)
	}
	return c, nil
}

// BookedIntervals lists the occupied [start, end) intervals of non-terminal
// appointments intersecting [from, to). With a staff id, only that staff's
// rows count; without one, every appointment of the business does.
func (r *Repository) BookedIntervals(ctx context.Context, businessID, staffID string, from, to time.Time) ([]availability.Interval, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT start_time, end_time
		FROM appointments
		WHERE business_id = $1
			AND status IN ('pending', 'confirmed')
			AND start_time < $3 AND end_time > $2
			AND ($4 = '' OR staff_id::text = $4)
		ORDER BY start_time
	`, businessID, from, to, staffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []availability.Interval
	for rows.Next() {
		var iv availability.Interval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return nil, err
		}
		out = append(out, iv)
	}
	return out, rows.Err()
}

func (r *Repository) AppointmentsStartingBetween(ctx context.Context, businessID string, from, to time.Time) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE business_id = $1 AND start_time >= $2 AND start_time < $3
		ORDER BY start_time
	`, businessID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CreateBooking commits the booking as one transaction: conflict re-check
// under row locks, customer find-or-create by (business, phone), appointment
// insert and the monthly usage-counter bump. The staff exclusion constraint
// backstops the re-check; staff-less bookings are serialized per business/day
// with an advisory transaction lock because the constraint skips NULL staff.
func (r *Repository) CreateBooking(ctx context.Context, params booking.CreateParams) (booking.CreateResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return booking.CreateResult{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if params.StaffID == "" {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`,
			staffLessLockKey(params.BusinessID, params.StartTime)); err != nil {
			return booking.CreateResult{}, err
		}
	}

	var blocking string
	err = tx.QueryRow(ctx, `
		SELECT id::text FROM appointments
		WHERE business_id = $1
			AND status IN ('pending', 'confirmed')
			AND start_time < $3 AND end_time > $2
			AND ($4 = '' OR staff_id::text = $4)
		LIMIT 1
		FOR UPDATE
	`, params.BusinessID, params.StartTime, params.EndTime, params.StaffID).Scan(&blocking)
	if err == nil {
		return booking.CreateResult{}, apperr.Conflictf("slot %s no longer available", params.StartTime.Format(time.RFC3339))
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return booking.CreateResult{}, err
	}

	var customerID string
	err = tx.QueryRow(ctx, `
		INSERT INTO customers (id, business_id, name, phone, email)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''))
		ON CONFLICT (business_id, phone) DO UPDATE SET
			name = EXCLUDED.name,
			email = COALESCE(EXCLUDED.email, customers.email)
		RETURNING id::text
	`, uuid.NewString(), params.BusinessID, params.CustomerName, params.CustomerPhone, params.CustomerEmail).Scan(&customerID)
	if err != nil {
		return booking.CreateResult{}, err
	}

	appointmentID := uuid.NewString()
	_, err = tx.Exec(ctx, `
		INSERT INTO appointments (id, business_id, branch_id, service_id, staff_id, customer_id,
			start_time, end_time, status, confirmation_code, notes)
		VALUES ($1, $2, NULLIF($3, '')::uuid, $4, NULLIF($5, '')::uuid, $6, $7, $8, 'confirmed', $9, $10)
	`, appointmentID, params.BusinessID, params.BranchID, params.ServiceID, params.StaffID,
		customerID, params.StartTime, params.EndTime, params.ConfirmationCode, params.Notes)
	if err != nil {
		return booking.CreateResult{}, classifyInsertError(err, params)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO usage_counters (business_id, period_month, appointments_count)
		VALUES ($1, date_trunc('month', $2::timestamptz)::date, 1)
		ON CONFLICT (business_id, period_month) DO UPDATE SET
			appointments_count = usage_counters.appointments_count + 1
	`, params.BusinessID, params.StartTime)
	if err != nil {
		return booking.CreateResult{}, err
	}

	// dashboard feed row; the outbound message goes through the notifier
	if err := insertNotificationTx(ctx, tx, model.Notification{
		BusinessID:    params.BusinessID,
		AppointmentID: appointmentID,
		CustomerID:    customerID,
		Event:         "appointment_booked",
		Channel:       "dashboard",
		Recipient:     params.BusinessID,
		Payload:       []byte(fmt.Sprintf(`{"start_time":%q}`, params.StartTime.Format(time.RFC3339))),
		Status:        "created",
	}); err != nil {
		return booking.CreateResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return booking.CreateResult{}, classifyInsertError(err, params)
	}
	return booking.CreateResult{AppointmentID: appointmentID, CustomerID: customerID}, nil
}

// classifyInsertError separates the two expected insert failures: the staff
// exclusion constraint firing (slot raced away) and the confirmation-code
// unique index colliding (retry with a fresh code).
func classifyInsertError(err error, params booking.CreateParams) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgExclusionViolation:
		return apperr.Conflictf("slot %s no longer available", params.StartTime.Format(time.RFC3339))
	case pgUniqueViolation:
		if pgErr.ConstraintName == "appointments_confirmation_code_key" {
			return booking.ErrCodeCollision
		}
	}
	return err
}
