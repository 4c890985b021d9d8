// Package model holds the persistent domain rows shared across the engine.
package model

import "time"

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCanceled  AppointmentStatus = "canceled"
	StatusNoShow    AppointmentStatus = "no_show"
)

// Terminal statuses no longer occupy the calendar.
func (s AppointmentStatus) Terminal() bool {
	return s == StatusCanceled || s == StatusCompleted || s == StatusNoShow
}

type Appointment struct {
	ID               string
	BusinessID       string
	BranchID         string
	ServiceID        string
	StaffID          string
	CustomerID       string
	StartTime        time.Time
	EndTime          time.Time // derived: start + duration + buffer, never edited directly
	Status           AppointmentStatus
	ConfirmationCode string
	PaymentStatus    string
	Notes            string
	CanceledAt       *time.Time
	CreatedAt        time.Time
}

// BusinessHours is one weekday's opening window. A missing or inactive row
// means the business is closed that day. Minutes are counted from midnight.
type BusinessHours struct {
	BusinessID  string
	Weekday     int // 0=Sunday .. 6=Saturday, matching time.Weekday
	OpenMinute  int
	CloseMinute int
	Active      bool
}

type TimeOffScope string

const (
	ScopeBusiness TimeOffScope = "business"
	ScopeStaff    TimeOffScope = "staff"
	ScopeBranch   TimeOffScope = "branch"
)

// TimeOff is a blackout interval. Intervals may overlap and are never merged.
type TimeOff struct {
	ID         string
	BusinessID string
	Scope      TimeOffScope
	OwnerID    string // staff or branch id for scoped rows, empty for business scope
	StartTime  time.Time
	EndTime    time.Time
	Reason     string
}

type RoundingStrategy string

const (
	RoundingContinuous RoundingStrategy = "continuous"
	RoundingOnTheHour  RoundingStrategy = "on_the_hour"
	RoundingEvery15    RoundingStrategy = "every_15"
	RoundingEvery30    RoundingStrategy = "every_30"
)

// SlotPolicy governs slot-grid generation, independent of per-service duration.
type SlotPolicy struct {
	BusinessID          string
	Timezone            string
	DefaultDurationMins int
	DefaultGapMins      int
	AdvanceWindowDays   int
	SameDayBooking      bool
	Rounding            RoundingStrategy
}

// DefaultSlotPolicy is used when a business never configured one.
func DefaultSlotPolicy(businessID string) SlotPolicy {
	return SlotPolicy{
		BusinessID:          businessID,
		Timezone:            "UTC",
		DefaultDurationMins: 30,
		DefaultGapMins:      0,
		AdvanceWindowDays:   30,
		SameDayBooking:      true,
		Rounding:            RoundingContinuous,
	}
}

type Service struct {
	ID              string
	BusinessID      string
	Name            string
	DurationMins    int
	BufferAfterMins int
	PriceCents      int
}

// OccupiedMins is the length of the calendar interval a booking of this
// service blocks: duration plus the cleanup buffer.
func (s Service) OccupiedMins() int {
	return s.DurationMins + s.BufferAfterMins
}

type Customer struct {
	ID         string
	BusinessID string
	Name       string
	Phone      string // dedup key within a business, not a strict identity
	Email      string
}

type EditStatus string

const (
	EditPending    EditStatus = "pending"
	EditConfirmed  EditStatus = "confirmed"
	EditRejected   EditStatus = "rejected"
	EditExpired    EditStatus = "expired"
	EditSuperseded EditStatus = "superseded"
)

// PendingAppointmentEdit is one proposed change to an appointment. The
// underlying appointment is untouched until the customer confirms.
type PendingAppointmentEdit struct {
	ID            string
	AppointmentID string
	NewStartTime  time.Time
	NewEndTime    time.Time
	NewServiceID  string
	NewStaffID    string
	Token         string
	Status        EditStatus
	ExpiresAt     time.Time
	ConfirmedAt   *time.Time
	RejectedAt    *time.Time
	CreatedAt     time.Time
}

type ConfirmationStatus string

const (
	ConfirmationPending   ConfirmationStatus = "pending"
	ConfirmationConfirmed ConfirmationStatus = "confirmed"
	ConfirmationCanceled  ConfirmationStatus = "canceled"
	ConfirmationExpired   ConfirmationStatus = "expired"
)

// AppointmentConfirmation is a pending attendance-confirmation request.
type AppointmentConfirmation struct {
	ID            string
	AppointmentID string
	Token         string
	Status        ConfirmationStatus
	ExpiresAt     time.Time
	ConfirmedAt   *time.Time
	CanceledAt    *time.Time
	CreatedAt     time.Time
}

// NotificationSettings controls the reminder/confirmation sweeps per business.
type NotificationSettings struct {
	BusinessID              string
	RemindersEnabled        bool
	ReminderHoursBefore     int
	ConfirmationsEnabled    bool
	ConfirmationHoursBefore int
}

type Notification struct {
	ID            string
	BusinessID    string
	AppointmentID string
	CustomerID    string
	Event         string
	Channel       string
	Recipient     string
	Payload       []byte
	Status        string
	CreatedAt     time.Time
}

type UsageCounter struct {
	BusinessID        string
	PeriodMonth       time.Time // first day of the month
	AppointmentsCount int
}
