package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jwalitptl/booking-api/internal/email"
	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/worker"
)

// EventTypeEmail marks outbox events carrying an email.Message.
const EventTypeEmail = "notification.email"

// Service records notifications and domain events in the outbox. Delivery
// happens later in the outbox processor.
type Service struct {
	outbox      repository.OutboxRepository
	defaultFrom string
	logger      *logger.Logger
}

func NewService(outbox repository.OutboxRepository, defaultFrom string, l *logger.Logger) *Service {
	return &Service{
		outbox:      outbox,
		defaultFrom: defaultFrom,
		logger:      l.With("notification"),
	}
}

// Enqueue stores msg for asynchronous delivery.
func (s *Service) Enqueue(ctx context.Context, msg email.Message) error {
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("invalid notification: %w", err)
	}
	if msg.From == "" {
		msg.From = s.defaultFrom
	}

	if err := s.write(ctx, EventTypeEmail, msg); err != nil {
		return err
	}
	s.logger.Debug("email queued", "to", msg.To, "subject", msg.Subject)
	return nil
}

// Publish stores a domain event; the outbox processor forwards it to the broker.
func (s *Service) Publish(ctx context.Context, eventType string, payload interface{}) error {
	return s.write(ctx, eventType, payload)
}

func (s *Service) write(ctx context.Context, eventType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", eventType, err)
	}

	if err := s.outbox.Create(ctx, &model.OutboxEvent{EventType: eventType, Payload: body}); err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", eventType, err)
	}
	return nil
}

// DeliveryHandler sends queued emails through mailer.
func DeliveryHandler(mailer email.Mailer) worker.EventHandler {
	return worker.EventHandlerFunc(func(ctx context.Context, event *model.OutboxEvent) error {
		var msg email.Message
		if err := json.Unmarshal(event.Payload, &msg); err != nil {
			return fmt.Errorf("decode email event %s: %w", event.ID, err)
		}
		return mailer.Send(ctx, msg)
	})
}
