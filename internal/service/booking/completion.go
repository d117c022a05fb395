package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/internal/scheduler"
)

// completionPayload is captured when the task is scheduled; later edits to
// names or emails do not change the completion email.
type completionPayload struct {
	BookingID     uuid.UUID `json:"bookingId"`
	CustomerName  string    `json:"customerName"`
	CustomerEmail string    `json:"customerEmail"`
	OwnerName     string    `json:"ownerName"`
	OwnerEmail    string    `json:"ownerEmail"`
	ServiceName   string    `json:"serviceName"`
}

func (s *Service) scheduleCompletion(ctx context.Context, details *model.BookingDetails) error {
	if _, err := s.scheduler.CancelForBooking(ctx, details.ID, CompletionTaskKind); err != nil {
		return fmt.Errorf("cancel previous completion: %w", err)
	}

	payload := completionPayload{
		BookingID:     details.ID,
		CustomerName:  details.Customer.Name,
		CustomerEmail: details.Customer.Email,
		OwnerName:     details.Owner.Name,
		OwnerEmail:    details.Owner.Email,
		ServiceName:   details.Service.Name,
	}
	if _, err := s.scheduler.ScheduleAfter(ctx, CompletionTaskKind, details.ID, s.config.CompletionDelay, payload); err != nil {
		return fmt.Errorf("schedule completion: %w", err)
	}
	return nil
}

func (s *Service) cancelCompletion(ctx context.Context, bookingID uuid.UUID) {
	if _, err := s.scheduler.CancelForBooking(ctx, bookingID, CompletionTaskKind); err != nil {
		s.logger.Error(err, "failed to cancel completion", "booking_id", bookingID.String())
	}
}

// CompletionHandler runs the completion task for the scheduler.
func (s *Service) CompletionHandler() scheduler.Handler {
	return scheduler.HandlerFunc(s.HandleCompletion)
}

// HandleCompletion marks the booking completed and queues the completion
// email. A booking deleted in the meantime is skipped.
func (s *Service) HandleCompletion(ctx context.Context, task *model.DeferredTask) error {
	var p completionPayload
	if err := json.Unmarshal(task.Payload, &p); err != nil {
		return fmt.Errorf("decode completion payload: %w", err)
	}

	booking, err := s.bookings.Get(ctx, task.BookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Info("booking gone, skipping completion", "booking_id", task.BookingID.String())
			return nil
		}
		return err
	}

	previous := booking.Status
	booking.Status = model.BookingStatusCompleted
	if err := s.bookings.Update(ctx, booking); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("complete booking: %w", err)
	}
	s.metrics.BookingStatusChanges.WithLabelValues(string(model.BookingStatusCompleted)).Inc()

	if err := s.notifier.Enqueue(ctx, completedEmail(p)); err != nil {
		return fmt.Errorf("queue completion email: %w", err)
	}
	s.publish(ctx, EventBookingCompleted, eventFor(booking, previous))

	s.logger.Info("booking auto-completed", "booking_id", booking.ID.String())
	return nil
}
