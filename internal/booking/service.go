// Package booking commits appointments. The conflict predicate here is the
// same half-open overlap rule the availability calculator filters with; the
// store re-checks it inside the write transaction because time passes between
// the availability query and submission.
package booking

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
)

// ErrCodeCollision reports that a generated confirmation code already exists.
// The store returns it so Book can retry with a fresh code.
var ErrCodeCollision = errors.New("confirmation code collision")

const codeRetries = 5

// CreateParams is the atomic unit of work the store commits: customer upsert
// by (business, phone), conflict-checked appointment insert and the monthly
// usage counter increment, all or none.
type CreateParams struct {
	BusinessID       string
	BranchID         string
	ServiceID        string
	StaffID          string
	StartTime        time.Time
	EndTime          time.Time
	CustomerName     string
	CustomerPhone    string
	CustomerEmail    string
	Notes            string
	ConfirmationCode string
}

type CreateResult struct {
	AppointmentID string
	CustomerID    string
}

type Store interface {
	ServiceByID(ctx context.Context, businessID, serviceID string) (model.Service, error)
	SlotPolicy(ctx context.Context, businessID string) (model.SlotPolicy, error)
	CreateBooking(ctx context.Context, params CreateParams) (CreateResult, error)
}

type Request struct {
	BusinessID    string `json:"business_id" validate:"required"`
	BranchID      string `json:"branch_id"`
	ServiceID     string `json:"service_id" validate:"required"`
	StaffID       string `json:"staff_id"`
	Date          string `json:"date" validate:"required,datetime=2006-01-02"`
	Time          string `json:"time" validate:"required,datetime=15:04"`
	CustomerName  string `json:"customer_name" validate:"required"`
	CustomerPhone string `json:"customer_phone" validate:"required"`
	CustomerEmail string `json:"customer_email" validate:"omitempty,email"`
	Notes         string `json:"notes"`
}

type Result struct {
	AppointmentID    string `json:"appointment_id"`
	ConfirmationCode string `json:"confirmation_code"`
}

type Service struct {
	store    Store
	notifier notify.Sender
	validate *validator.Validate
	logger   *slog.Logger
}

func NewService(store Store, notifier notify.Sender, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		validate: validator.New(),
		logger:   logger,
	}
}

func (s *Service) Book(ctx context.Context, req Request) (Result, error) {
	req.trim()
	if err := s.validate.Struct(req); err != nil {
		return Result{}, apperr.Validationf("invalid booking request: %v", err)
	}

	svc, err := s.store.ServiceByID(ctx, req.BusinessID, req.ServiceID)
	if err != nil {
		return Result{}, err
	}
	policy, err := s.store.SlotPolicy(ctx, req.BusinessID)
	if err != nil {
		return Result{}, err
	}

	loc := time.UTC
	if policy.Timezone != "" {
		if l, err := time.LoadLocation(policy.Timezone); err == nil {
			loc = l
		}
	}
	start, err := time.ParseInLocation("2006-01-02 15:04", req.Date+" "+req.Time, loc)
	if err != nil {
		return Result{}, apperr.Validationf("invalid date/time")
	}
	// end_time is derived: service duration plus cleanup buffer. The buffer is
	// part of the stored interval so the next booking cannot start inside it.
	end := start.Add(time.Duration(svc.OccupiedMins()) * time.Minute)

	var res CreateResult
	var code string
	for attempt := 0; ; attempt++ {
		code, err = NewConfirmationCode()
		if err != nil {
			return Result{}, err
		}
		res, err = s.store.CreateBooking(ctx, CreateParams{
			BusinessID:       req.BusinessID,
			BranchID:         req.BranchID,
			ServiceID:        req.ServiceID,
			StaffID:          req.StaffID,
			StartTime:        start,
			EndTime:          end,
			CustomerName:     req.CustomerName,
			CustomerPhone:    req.CustomerPhone,
			CustomerEmail:    req.CustomerEmail,
			Notes:            req.Notes,
			ConfirmationCode: code,
		})
		if errors.Is(err, ErrCodeCollision) && attempt < codeRetries {
			continue
		}
		break
	}
	if err != nil {
		return Result{}, err
	}

	// Fire-and-forget: delivery failure must not fail the booking.
	if err := s.notifier.Send(ctx, notify.Message{
		BusinessID: req.BusinessID,
		Event:      notify.EventAppointmentBooked,
		Recipient:  notify.Recipient{Phone: req.CustomerPhone, Email: req.CustomerEmail},
		Variables: map[string]string{
			"customer_name":     req.CustomerName,
			"service_name":      svc.Name,
			"date":              req.Date,
			"time":              req.Time,
			"confirmation_code": code,
		},
		AppointmentID: res.AppointmentID,
		CustomerID:    res.CustomerID,
	}); err != nil {
		s.logger.Error("booking notification failed", "err", err, "appointment_id", res.AppointmentID)
	}

	return Result{AppointmentID: res.AppointmentID, ConfirmationCode: code}, nil
}

func (r *Request) trim() {
	r.BusinessID = strings.TrimSpace(r.BusinessID)
	r.BranchID = strings.TrimSpace(r.BranchID)
	r.ServiceID = strings.TrimSpace(r.ServiceID)
	r.StaffID = strings.TrimSpace(r.StaffID)
	r.Date = strings.TrimSpace(r.Date)
	r.Time = strings.TrimSpace(r.Time)
	r.CustomerName = strings.TrimSpace(r.CustomerName)
	r.CustomerPhone = strings.TrimSpace(r.CustomerPhone)
	r.CustomerEmail = strings.TrimSpace(r.CustomerEmail)
	r.Notes = strings.TrimSpace(r.Notes)
}
