// Package availability computes which start times are actually bookable for a
// service on a given day, from business hours, time off, the slot policy and
// the existing non-terminal appointments.
package availability

import (
	"context"
	"strings"
	"time"

	"github.com/tareq-mahmood/schedulr/internal/apperr"
	"github.com/tareq-mahmood/schedulr/internal/model"
)

// Blocked-day reasons surfaced alongside an empty slot list.
const (
	ReasonHoliday          = "holiday"
	ReasonStaffUnavailable = "staff_unavailable"
	ReasonOutsideWindow    = "outside_window"
	ReasonSameDayDisabled  = "same_day_disabled"
)

const dateLayout = "2006-01-02"

type CalendarStore interface {
	BusinessHours(ctx context.Context, businessID string, weekday int) (model.BusinessHours, bool, error)
	SlotPolicy(ctx context.Context, businessID string) (model.SlotPolicy, error)
	TimeOffBetween(ctx context.Context, businessID string, from, to time.Time) ([]model.TimeOff, error)
	ServiceByID(ctx context.Context, businessID, serviceID string) (model.Service, error)
}

type AppointmentStore interface {
	// BookedIntervals returns the occupied intervals of non-terminal
	// appointments intersecting [from, to), optionally scoped to one staff.
	BookedIntervals(ctx context.Context, businessID, staffID string, from, to time.Time) ([]Interval, error)
}

// Day is the availability query result: bookable HH:mm start times, or an
// empty list with a reason when the day is blocked.
type Day struct {
	Date   string   `json:"date"`
	Slots  []string `json:"slots"`
	Reason string   `json:"reason,omitempty"`
}

type Calculator struct {
	calendar     CalendarStore
	appointments AppointmentStore
	now          func() time.Time
}

func NewCalculator(calendar CalendarStore, appointments AppointmentStore) *Calculator {
	return &Calculator{
		calendar:     calendar,
		appointments: appointments,
		now:          time.Now,
	}
}

// WithClock overrides the wall clock, for deterministic tests.
func (c *Calculator) WithClock(now func() time.Time) *Calculator {
	c.now = now
	return c
}

// ComputeSlots is read-only: it never mutates anything.
func (c *Calculator) ComputeSlots(ctx context.Context, businessID, serviceID, date, staffID string) (Day, error) {
	businessID = strings.TrimSpace(businessID)
	serviceID = strings.TrimSpace(serviceID)
	date = strings.TrimSpace(date)
	staffID = strings.TrimSpace(staffID)
	if businessID == "" || serviceID == "" || date == "" {
		return Day{}, apperr.Validationf("business_id, service_id and date are required")
	}

	policy, err := c.calendar.SlotPolicy(ctx, businessID)
	if err != nil {
		return Day{}, err
	}
	loc := locationOrUTC(policy.Timezone)

	day, err := time.ParseInLocation(dateLayout, date, loc)
	if err != nil {
		return Day{}, apperr.Validationf("date must be YYYY-MM-DD")
	}
	out := Day{Date: date, Slots: []string{}}

	now := c.now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	if day.Before(today) {
		return out, nil
	}
	if policy.AdvanceWindowDays > 0 && day.After(today.AddDate(0, 0, policy.AdvanceWindowDays)) {
		out.Reason = ReasonOutsideWindow
		return out, nil
	}
	if day.Equal(today) && !policy.SameDayBooking {
		out.Reason = ReasonSameDayDisabled
		return out, nil
	}

	svc, err := c.calendar.ServiceByID(ctx, businessID, serviceID)
	if err != nil {
		return Day{}, err
	}

	hours, ok, err := c.calendar.BusinessHours(ctx, businessID, int(day.Weekday()))
	if err != nil {
		return Day{}, err
	}
	if !ok || !hours.Active || hours.CloseMinute <= hours.OpenMinute {
		return out, nil // closed that weekday
	}

	dayStart := day
	dayEnd := day.AddDate(0, 0, 1)
	offs, err := c.calendar.TimeOffBetween(ctx, businessID, dayStart, dayEnd)
	if err != nil {
		return Day{}, err
	}
	// Business-wide time off blocks the whole day for every staff member and
	// short-circuits the staff check.
	for _, off := range offs {
		if off.Scope == model.ScopeBusiness {
			out.Reason = ReasonHoliday
			return out, nil
		}
	}
	if staffID != "" {
		for _, off := range offs {
			if off.Scope == model.ScopeStaff && off.OwnerID == staffID {
				out.Reason = ReasonStaffUnavailable
				return out, nil
			}
		}
	}

	busy, err := c.appointments.BookedIntervals(ctx, businessID, staffID, dayStart, dayEnd)
	if err != nil {
		return Day{}, err
	}

	open := day.Add(time.Duration(hours.OpenMinute) * time.Minute)
	close := day.Add(time.Duration(hours.CloseMinute) * time.Minute)
	occupied := time.Duration(svc.OccupiedMins()) * time.Minute

	cutoff := time.Time{}
	if day.Equal(today) {
		cutoff = now
	}

	for _, t := range GridSlots(open, close, occupied, policy.Rounding, busy, cutoff) {
		out.Slots = append(out.Slots, t.Format("15:04"))
	}
	return out, nil
}

func locationOrUTC(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
