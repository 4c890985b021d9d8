// Package notify delivers customer/business messages for the scheduling
// engine. Delivery is fire-and-forget from the caller's point of view: a
// failed send is a dependency failure to log and count, never a reason to
// fail the booking or workflow transition that triggered it.
package notify

import "context"

// Events with a typed template in templates.go.
const (
	EventAppointmentBooked   = "appointment_booked"
	EventAppointmentReminder = "appointment_reminder"
	EventEditProposed        = "edit_proposed"
	EventEditConfirmed       = "edit_confirmed"
	EventEditSuperseded      = "edit_superseded"
	EventAttendanceRequested = "attendance_requested"
	EventAttendanceConfirmed = "attendance_confirmed"
	EventAttendanceCanceled  = "attendance_canceled"
)

const (
	ChannelSMS   = "sms"
	ChannelEmail = "email"
)

type Recipient struct {
	Phone string
	Email string
}

type Message struct {
	BusinessID    string
	Event         string
	Channels      []string // empty: derived from the recipient's contact points
	Recipient     Recipient
	Variables     map[string]string
	AppointmentID string
	CustomerID    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// channels resolves the effective channel list for a message.
func (m Message) channels() []string {
	if len(m.Channels) > 0 {
		return m.Channels
	}
	var out []string
	if m.Recipient.Phone != "" {
		out = append(out, ChannelSMS)
	}
	if m.Recipient.Email != "" {
		out = append(out, ChannelEmail)
	}
	return out
}

func (m Message) recipientFor(channel string) string {
	switch channel {
	case ChannelSMS:
		return m.Recipient.Phone
	case ChannelEmail:
		return m.Recipient.Email
	default:
		return ""
	}
}
