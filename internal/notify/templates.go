package notify

import "fmt"

// Render produces the subject and body for an event from its closed set of
// named variables. Unknown events are an error; a missing variable renders as
// an empty string rather than leaking a placeholder. There is deliberately no
// open-ended template interpolation from untrusted input here.
func Render(event string, vars map[string]string) (subject string, body string, err error) {
	v := func(key string) string { return vars[key] }

	switch event {
	case EventAppointmentBooked:
		subject = "Your appointment is booked"
		body = fmt.Sprintf("Hi %s, your %s appointment on %s at %s is confirmed. Confirmation code: %s.",
			v("customer_name"), v("service_name"), v("date"), v("time"), v("confirmation_code"))
	case EventAppointmentReminder:
		subject = "Appointment reminder"
		body = fmt.Sprintf("Hi %s, this is a reminder of your %s appointment on %s at %s.",
			v("customer_name"), v("service_name"), v("date"), v("time"))
	case EventEditProposed:
		subject = "Your appointment needs a new time"
		body = fmt.Sprintf("Hi %s, we'd like to move your appointment to %s at %s. Confirm: %s. Or keep the original time: %s",
			v("customer_name"), v("date"), v("time"), v("confirm_url"), v("reject_url"))
	case EventEditConfirmed:
		subject = "Appointment change confirmed"
		body = fmt.Sprintf("The appointment change to %s at %s has been confirmed.",
			v("date"), v("time"))
	case EventEditSuperseded:
		subject = "Proposed appointment time no longer available"
		body = fmt.Sprintf("The proposed slot %s at %s was taken before the customer confirmed. The original appointment is unchanged.",
			v("date"), v("time"))
	case EventAttendanceRequested:
		subject = "Please confirm your appointment"
		body = fmt.Sprintf("Hi %s, please confirm your appointment on %s at %s. Confirm: %s. Can't make it? Cancel: %s",
			v("customer_name"), v("date"), v("time"), v("confirm_url"), v("cancel_url"))
	case EventAttendanceConfirmed:
		subject = "Attendance confirmed"
		body = fmt.Sprintf("%s confirmed the appointment on %s at %s.",
			v("customer_name"), v("date"), v("time"))
	case EventAttendanceCanceled:
		subject = "Appointment canceled"
		body = fmt.Sprintf("%s canceled the appointment on %s at %s.",
			v("customer_name"), v("date"), v("time"))
	default:
		return "", "", fmt.Errorf("unknown notification event %q", event)
	}
	return subject, body, nil
}
