// Package edits implements the pending-edit workflow: a business proposes a
// new time/service/staff for an existing appointment, and the appointment is
// only rewritten once the customer confirms via a single-use token link.
package edits

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tareq-mahmood/schedulr/internal/apperr"
	"github.com/tareq-mahmood/schedulr/internal/model"
	"github.com/tareq-mahmood/schedulr/internal/notify"
	"github.com/tareq-mahmood/schedulr/internal/token"
)

// TTL of an edit-request token. The customer has a week to respond.
const TokenTTL = 7 * 24 * time.Hour

// ConfirmOutcome carries the resolved edit and, when the edit was applied,
// the rewritten appointment. On ErrConflict the edit is returned in its
// superseded state and the appointment is the untouched original.
type ConfirmOutcome struct {
	Edit        model.PendingAppointmentEdit
	Appointment model.Appointment
}

type Store interface {
	AppointmentByID(ctx context.Context, appointmentID string) (model.Appointment, error)
	ServiceByID(ctx context.Context, businessID, serviceID string) (model.Service, error)
	SlotPolicy(ctx context.Context, businessID string) (model.SlotPolicy, error)
	CustomerByID(ctx context.Context, customerID string) (model.Customer, error)
	CreateEdit(ctx context.Context, edit model.PendingAppointmentEdit) (model.PendingAppointmentEdit, error)

	// ConfirmEdit atomically claims the pending row and applies the proposed
	// change. A pending row past its deadline is flipped to expired as a side
	// effect and ErrExpired returned. If the proposed interval now collides
	// with another appointment the edit is marked superseded, the appointment
	// left untouched, and ErrConflict returned.
	ConfirmEdit(ctx context.Context, tok string, now time.Time) (ConfirmOutcome, error)

	// RejectEdit claims the pending row and marks it rejected. Same expiry and
	// single-use semantics as ConfirmEdit.
	RejectEdit(ctx context.Context, tok string, now time.Time) (model.PendingAppointmentEdit, error)
}

type ProposeRequest struct {
	BusinessID    string `json:"business_id" validate:"required"`
	AppointmentID string `json:"appointment_id" validate:"required"`
	Date          string `json:"date" validate:"required,datetime=2006-01-02"`
	Time          string `json:"time" validate:"required,datetime=15:04"`
	ServiceID     string `json:"service_id"` // empty keeps the current service
	StaffID       string `json:"staff_id"`   // empty keeps the current staff
}

type Workflow struct {
	store    Store
	notifier notify.Sender
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
	linkBase string
}

func NewWorkflow(store Store, notifier notify.Sender, logger *slog.Logger, linkBase string) *Workflow {
	return &Workflow{
		store:    store,
		notifier: notifier,
		validate: validator.New(),
		logger:   logger,
		now:      time.Now,
		linkBase: strings.TrimRight(linkBase, "/"),
	}
}

// WithClock overrides the wall clock, for deterministic tests.
func (w *Workflow) WithClock(now func() time.Time) *Workflow {
	w.now = now
	return w
}

// Propose creates a pending edit for an appointment the acting business owns.
// Cross-tenant lookups answer not-found rather than revealing the row exists.
func (w *Workflow) Propose(ctx context.Context, req ProposeRequest) (model.PendingAppointmentEdit, error) {
	req.BusinessID = strings.TrimSpace(req.BusinessID)
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	req.StaffID = strings.TrimSpace(req.StaffID)
	if err := w.validate.Struct(req); err != nil {
		return model.PendingAppointmentEdit{}, apperr.Validationf("invalid edit request: %v", err)
	}

	appt, err := w.store.AppointmentByID(ctx, req.AppointmentID)
	if err != nil {
		return model.PendingAppointmentEdit{}, err
	}
	if appt.BusinessID != req.BusinessID {
		return model.PendingAppointmentEdit{}, apperr.NotFoundf("appointment %s", req.AppointmentID)
	}
	if appt.Status.Terminal() {
		return model.PendingAppointmentEdit{}, apperr.Conflictf("appointment %s is no longer editable", req.AppointmentID)
	}

	serviceID := req.ServiceID
	if serviceID == "" {
		serviceID = appt.ServiceID
	}
	staffID := req.StaffID
	if staffID == "" {
		staffID = appt.StaffID
	}
	svc, err := w.store.ServiceByID(ctx, req.BusinessID, serviceID)
	if err != nil {
		return model.PendingAppointmentEdit{}, err
	}
	policy, err := w.store.SlotPolicy(ctx, req.BusinessID)
	if err != nil {
		return model.PendingAppointmentEdit{}, err
	}
	loc := time.UTC
	if policy.Timezone != "" {
		if l, err := time.LoadLocation(policy.Timezone); err == nil {
			loc = l
		}
	}
	newStart, err := time.ParseInLocation("2006-01-02 15:04", req.Date+" "+req.Time, loc)
	if err != nil {
		return model.PendingAppointmentEdit{}, apperr.Validationf("invalid date/time")
	}

	tok, err := token.New()
	if err != nil {
		return model.PendingAppointmentEdit{}, err
	}
	edit := model.PendingAppointmentEdit{
		AppointmentID: appt.ID,
		NewStartTime:  newStart,
		NewEndTime:    newStart.Add(time.Duration(svc.OccupiedMins()) * time.Minute),
		NewServiceID:  serviceID,
		NewStaffID:    staffID,
		Token:         tok,
		Status:        model.EditPending,
		ExpiresAt:     w.now().Add(TokenTTL),
	}
	edit, err = w.store.CreateEdit(ctx, edit)
	if err != nil {
		return model.PendingAppointmentEdit{}, err
	}

	w.notifyCustomer(ctx, appt, notify.EventEditProposed, map[string]string{
		"date":        req.Date,
		"time":        req.Time,
		"confirm_url": w.link("edit-requests/confirm", tok),
		"reject_url":  w.link("edit-requests/reject", tok),
	})
	return edit, nil
}

// Confirm resolves the token and applies the proposed change. The token is
// the credential; no session is required.
func (w *Workflow) Confirm(ctx context.Context, tok string) (ConfirmOutcome, error) {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return ConfirmOutcome{}, apperr.Validationf("token is required")
	}

	out, err := w.store.ConfirmEdit(ctx, tok, w.now())
	if errors.Is(err, apperr.ErrConflict) {
		// The proposed slot was taken while the customer deliberated. The edit
		// is terminal (superseded); tell the business instead of applying it.
		w.notifyBusinessOnly(ctx, out, notify.EventEditSuperseded)
		return out, err
	}
	if err != nil {
		return ConfirmOutcome{}, err
	}

	vars := map[string]string{
		"date": out.Appointment.StartTime.Format("2006-01-02"),
		"time": out.Appointment.StartTime.Format("15:04"),
	}
	w.notifyCustomer(ctx, out.Appointment, notify.EventEditConfirmed, vars)
	w.notifyBusinessOnly(ctx, out, notify.EventEditConfirmed)
	return out, nil
}

// Reject marks a pending edit rejected and leaves the appointment untouched.
func (w *Workflow) Reject(ctx context.Context, tok string) (model.PendingAppointmentEdit, error) {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return model.PendingAppointmentEdit{}, apperr.Validationf("token is required")
	}
	return w.store.RejectEdit(ctx, tok, w.now())
}

func (w *Workflow) link(action, tok string) string {
	return w.linkBase + "/" + action + "?token=" + tok
}

func (w *Workflow) notifyCustomer(ctx context.Context, appt model.Appointment, event string, vars map[string]string) {
	cust, err := w.store.CustomerByID(ctx, appt.CustomerID)
	if err != nil {
		w.logger.Error("edit notification skipped: customer lookup failed", "err", err, "appointment_id", appt.ID)
		return
	}
	if vars == nil {
		vars = map[string]string{}
	}
	vars["customer_name"] = cust.Name
	if err := w.notifier.Send(ctx, notify.Message{
		BusinessID:    appt.BusinessID,
		Event:         event,
		Recipient:     notify.Recipient{Phone: cust.Phone, Email: cust.Email},
		Variables:     vars,
		AppointmentID: appt.ID,
		CustomerID:    cust.ID,
	}); err != nil {
		w.logger.Error("edit notification failed", "err", err, "event", event, "appointment_id", appt.ID)
	}
}

func (w *Workflow) notifyBusinessOnly(ctx context.Context, out ConfirmOutcome, event string) {
	if err := w.notifier.Send(ctx, notify.Message{
		BusinessID: out.Appointment.BusinessID,
		Event:      event,
		Channels:   []string{notify.ChannelEmail},
		Recipient:  notify.Recipient{Email: "dashboard"},
		Variables: map[string]string{
			"date": out.Edit.NewStartTime.Format("2006-01-02"),
			"time": out.Edit.NewStartTime.Format("15:04"),
		},
		AppointmentID: out.Appointment.ID,
	}); err != nil {
		w.logger.Error("business notification failed", "err", err, "event", event, "appointment_id", out.Appointment.ID)
	}
}
