package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tareq-mahmood/schedulr/internal/apperr"
	"github.com/tareq-mahmood/schedulr/internal/model"
)

func (r *Repository) BusinessHours(ctx context.Context, businessID string, weekday int) (model.BusinessHours, bool, error) {
	var h model.BusinessHours
	err := r.pool.QueryRow(ctx, `
		SELECT business_id::text, weekday, open_minute, close_minute, active
		FROM business_hours
		WHERE business_id = $1 AND weekday = $2
	`, businessID, weekday).Scan(&h.BusinessID, &h.Weekday, &h.OpenMinute, &h.CloseMinute, &h.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.BusinessHours{}, false, nil
	}
	if err != nil {
		return model.BusinessHours{}, false, err
	}
	return h, true, nil
}

func (r *Repository) SaveBusinessHours(ctx context.Context, h model.BusinessHours) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO business_hours (business_id, weekday, open_minute, close_minute, active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (business_id, weekday) DO UPDATE SET
			open_minute = EXCLUDED.open_minute,
			close_minute = EXCLUDED.close_minute,
			active = EXCLUDED.active
	`, h.BusinessID, h.Weekday, h.OpenMinute, h.CloseMinute, h.Active)
	return err
}

// SlotPolicy falls back to the defaults for businesses that never saved one.
func (r *Repository) SlotPolicy(ctx context.Context, businessID string) (model.SlotPolicy, error) {
	var p model.SlotPolicy
	err := r.pool.QueryRow(ctx, `
		SELECT business_id::text, timezone, default_duration_minutes, default_gap_minutes,
			advance_window_days, same_day_booking, rounding_strategy
		FROM slot_policies
		WHERE business_id = $1
	`, businessID).Scan(&p.BusinessID, &p.Timezone, &p.DefaultDurationMins, &p.DefaultGapMins,
		&p.AdvanceWindowDays, &p.SameDayBooking, &p.Rounding)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.DefaultSlotPolicy(businessID), nil
	}
	if err != nil {
		return model.SlotPolicy{}, err
	}
	return p, nil
}

func (r *Repository) SaveSlotPolicy(ctx context.Context, p model.SlotPolicy) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO slot_policies (business_id, timezone, default_duration_minutes, default_gap_minutes,
			advance_window_days, same_day_booking, rounding_strategy)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (business_id) DO UPDATE SET
			timezone = EXCLUDED.timezone,
			default_duration_minutes = EXCLUDED.default_duration_minutes,
			default_gap_minutes = EXCLUDED.default_gap_minutes,
			advance_window_days = EXCLUDED.advance_window_days,
			same_day_booking = EXCLUDED.same_day_booking,
			rounding_strategy = EXCLUDED.rounding_strategy
	`, p.BusinessID, p.Timezone, p.DefaultDurationMins, p.DefaultGapMins,
		p.AdvanceWindowDays, p.SameDayBooking, p.Rounding)
	return err
}

func (r *Repository) CreateTimeOff(ctx context.Context, t model.TimeOff) (model.TimeOff, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO time_off (id, business_id, scope, owner_id, start_time, end_time, reason)
		VALUES ($1, $2, $3, NULLIF($4, '')::uuid, $5, $6, NULLIF($7, ''))
		RETURNING id::text, business_id::text, scope, COALESCE(owner_id::text, ''), start_time, end_time, COALESCE(reason, '')
	`, uuid.NewString(), t.BusinessID, t.Scope, t.OwnerID, t.StartTime, t.EndTime, t.Reason)
	var out model.TimeOff
	err := row.Scan(&out.ID, &out.BusinessID, &out.Scope, &out.OwnerID, &out.StartTime, &out.EndTime, &out.Reason)
	return out, err
}

func (r *Repository) DeleteTimeOff(ctx context.Context, businessID, timeOffID string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM time_off WHERE id = $1 AND business_id = $2`, timeOffID, businessID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFoundf("time off %s", timeOffID)
	}
	return nil
}

// TimeOffBetween returns blackout rows intersecting [from, to), any scope.
func (r *Repository) TimeOffBetween(ctx context.Context, businessID string, from, to time.Time) ([]model.TimeOff, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, business_id::text, scope, COALESCE(owner_id::text, ''), start_time, end_time, COALESCE(reason, '')
		FROM time_off
		WHERE business_id = $1 AND start_time < $3 AND end_time > $2
		ORDER BY start_time
	`, businessID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TimeOff
	for rows.Next() {
		var t model.TimeOff
		if err := rows.Scan(&t.ID, &t.BusinessID, &t.Scope, &t.OwnerID, &t.StartTime, &t.EndTime, &t.Reason); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repository) ServiceByID(ctx context.Context, businessID, serviceID string) (model.Service, error) {
	var s model.Service
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, business_id::text, name, duration_minutes, buffer_after_minutes, price_cents
		FROM services
		WHERE id = $1 AND business_id = $2
	`, serviceID, businessID).Scan(&s.ID, &s.BusinessID, &s.Name, &s.DurationMins, &s.BufferAfterMins, &s.PriceCents)
	if err != nil {
		return model.Service{}, notFound(err, "service %s", serviceID)
	}
	return s, nil
}

func (r *Repository) NotificationSettings(ctx context.Context, businessID string) (model.NotificationSettings, error) {
	var s model.NotificationSettings
	err := r.pool.QueryRow(ctx, `
		SELECT business_id::text, reminders_enabled, reminder_hours_before,
			confirmations_enabled, confirmation_hours_before
		FROM notification_settings
		WHERE business_id = $1
	`, businessID).Scan(&s.BusinessID, &s.RemindersEnabled, &s.ReminderHoursBefore,
		&s.ConfirmationsEnabled, &s.ConfirmationHoursBefore)
	if err != nil {
		return model.NotificationSettings{}, notFound(err, "notification settings for %s", businessID)
	}
	return s, nil
}

func (r *Repository) SaveNotificationSettings(ctx context.Context, s model.NotificationSettings) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notification_settings (business_id, reminders_enabled, reminder_hours_before,
			confirmations_enabled, confirmation_hours_before)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (business_id) DO UPDATE SET
			reminders_enabled = EXCLUDED.reminders_enabled,
			reminder_hours_before = EXCLUDED.reminder_hours_before,
			confirmations_enabled = EXCLUDED.confirmations_enabled,
			confirmation_hours_before = EXCLUDED.confirmation_hours_before
	`, s.BusinessID, s.RemindersEnabled, s.ReminderHoursBefore,
		s.ConfirmationsEnabled, s.ConfirmationHoursBefore)
	return err
}

func (r *Repository) BusinessesWithNotifications(ctx context.Context) ([]model.NotificationSettings, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT business_id::text, reminders_enabled, reminder_hours_before,
			confirmations_enabled, confirmation_hours_before
		FROM notification_settings
		WHERE reminders_enabled OR confirmations_enabled
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.NotificationSettings
	for rows.Next() {
		var s model.NotificationSettings
		if err := rows.Scan(&s.BusinessID, &s.RemindersEnabled, &s.ReminderHoursBefore,
			&s.ConfirmationsEnabled, &s.ConfirmationHoursBefore); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
