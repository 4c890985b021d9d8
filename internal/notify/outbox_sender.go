package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tareq-mahmood/schedulr/internal/apperr"
	"github.com/tareq-mahmood/schedulr/internal/outbox"
	"github.com/tareq-mahmood/schedulr/libs/db"
)

// OutboxSender renders the message, records it on the business's notification
// feed and enqueues an outbox event for the Kafka publisher in one local
// transaction, so a crash never loses a rendered message. Actual delivery to
// SMS/email providers happens downstream of the topic.
type OutboxSender struct {
	pool   *db.Pool
	outbox *outbox.Repository
	logger *slog.Logger
}

func NewOutboxSender(pool *db.Pool, outboxRepo *outbox.Repository, logger *slog.Logger) *OutboxSender {
	return &OutboxSender{pool: pool, outbox: outboxRepo, logger: logger}
}

func (s *OutboxSender) Send(ctx context.Context, msg Message) error {
	subject, body, err := Render(msg.Event, msg.Variables)
	if err != nil {
		return apperr.Dependencyf("render %s: %v", msg.Event, err)
	}

	channels := msg.channels()
	if len(channels) == 0 {
		s.logger.Warn("notification skipped: recipient has no contact points",
			"event", msg.Event, "appointment_id", msg.AppointmentID)
		return nil
	}

	payload, err := json.Marshal(map[string]any{
		"subject":   subject,
		"body":      body,
		"variables": msg.Variables,
	})
	if err != nil {
		return apperr.Dependencyf("marshal %s payload: %v", msg.Event, err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return apperr.Dependencyf("begin notification tx: %v", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, channel := range channels {
		recipient := msg.recipientFor(channel)
		if recipient == "" {
			continue
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO notifications (id, business_id, appointment_id, customer_id, event, channel, recipient, payload, status)
			VALUES ($1, $2, NULLIF($3, '')::uuid, NULLIF($4, '')::uuid, $5, $6, $7, $8, 'queued')
		`, uuid.NewString(), msg.BusinessID, msg.AppointmentID, msg.CustomerID, msg.Event, channel, recipient, payload); err != nil {
			return apperr.Dependencyf("record notification: %v", err)
		}
	}

	eventPayload, err := json.Marshal(map[string]any{
		"business_id":    msg.BusinessID,
		"appointment_id": msg.AppointmentID,
		"customer_id":    msg.CustomerID,
		"event":          msg.Event,
		"channels":       channels,
		"phone":          msg.Recipient.Phone,
		"email":          msg.Recipient.Email,
		"subject":        subject,
		"body":           body,
	})
	if err != nil {
		return apperr.Dependencyf("marshal %s event: %v", msg.Event, err)
	}
	if err := s.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   msg.AppointmentID,
		EventType:     "scheduling.notification." + msg.Event + ".v1",
		Payload:       eventPayload,
	}); err != nil {
		return apperr.Dependencyf("enqueue notification event: %v", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return apperr.Dependencyf("commit notification: %v", err)
	}
	return nil
}
