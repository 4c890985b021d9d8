package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tareq-mahmood/schedulr/internal/model"
)

func insertNotificationTx(ctx context.Context, tx pgx.Tx, n model.Notification) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO notifications (id, business_id, appointment_id, customer_id, event, channel, recipient, payload, status)
		VALUES ($1, $2, NULLIF($3, '')::uuid, NULLIF($4, '')::uuid, $5, $6, $7, $8, $9)
	`, uuid.NewString(), n.BusinessID, n.AppointmentID, n.CustomerID, n.Event, n.Channel, n.Recipient, n.Payload, n.Status)
	return err
}

// LastNotifiedAt is the scheduler's idempotency guard: when was this event
// last recorded for this appointment. Zero time means never.
func (r *Repository) LastNotifiedAt(ctx context.Context, appointmentID, event string) (time.Time, error) {
	var at time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT created_at FROM notifications
		WHERE appointment_id = $1 AND event = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, appointmentID, event).Scan(&at)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return at, nil
}

// Notifications lists a business's feed, newest first.
func (r *Repository) Notifications(ctx context.Context, businessID string, limit int) ([]model.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, business_id::text, COALESCE(appointment_id::text, ''), COALESCE(customer_id::text, ''),
			event, channel, recipient, payload, status, created_at
		FROM notifications
		WHERE business_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, businessID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.BusinessID, &n.AppointmentID, &n.CustomerID,
			&n.Event, &n.Channel, &n.Recipient, &n.Payload, &n.Status, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
