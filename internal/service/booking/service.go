package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/email"
	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	apperrors "github.com/jwalitptl/booking-api/pkg/errors"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/metrics"
)

const (
	// CompletionTaskKind is the deferred task that auto-completes a booking.
	CompletionTaskKind     = "booking.complete"
	DefaultCompletionDelay = 35 * time.Minute

	EventBookingCreated       = "booking.created"
	EventBookingStatusChanged = "booking.status_changed"
	EventBookingCompleted     = "booking.completed"
)

var ErrNotParticipant = errors.New("caller is not a participant of the booking")

// Notifier queues emails and domain events.
type Notifier interface {
	Enqueue(ctx context.Context, msg email.Message) error
	Publish(ctx context.Context, eventType string, payload interface{}) error
}

// TaskScheduler persists deferred work.
type TaskScheduler interface {
	ScheduleAfter(ctx context.Context, kind string, bookingID uuid.UUID, delay time.Duration, payload interface{}) (*model.DeferredTask, error)
	CancelForBooking(ctx context.Context, bookingID uuid.UUID, kind string) (int64, error)
}

type Config struct {
	CompletionDelay time.Duration
	// StrictTransitions limits status changes to forward moves.
	StrictTransitions bool
}

// Event is the payload of every booking domain event.
type Event struct {
	BookingID      uuid.UUID           `json:"bookingId"`
	CustomerID     uuid.UUID           `json:"customerId"`
	OwnerID        uuid.UUID           `json:"ownerId"`
	ServiceID      uuid.UUID           `json:"serviceId"`
	Status         model.BookingStatus `json:"status"`
	PreviousStatus model.BookingStatus `json:"previousStatus,omitempty"`
}

func eventFor(b *model.Booking, previous model.BookingStatus) Event {
	return Event{
		BookingID:      b.ID,
		CustomerID:     b.CustomerID,
		OwnerID:        b.OwnerID,
		ServiceID:      b.ServiceID,
		Status:         b.Status,
		PreviousStatus: previous,
	}
}

type Service struct {
	bookings  repository.BookingRepository
	services  repository.ServiceRepository
	users     repository.UserRepository
	notifier  Notifier
	scheduler TaskScheduler
	config    Config
	logger    *logger.Logger
	metrics   *metrics.Metrics
}

func NewService(
	bookings repository.BookingRepository,
	services repository.ServiceRepository,
	users repository.UserRepository,
	notifier Notifier,
	scheduler TaskScheduler,
	config Config,
	l *logger.Logger,
	m *metrics.Metrics,
) *Service {
	if config.CompletionDelay <= 0 {
		config.CompletionDelay = DefaultCompletionDelay
	}
	return &Service{
		bookings:  bookings,
		services:  services,
		users:     users,
		notifier:  notifier,
		scheduler: scheduler,
		config:    config,
		logger:    l.With("booking"),
		metrics:   m,
	}
}

// Create books serviceID for customerID and notifies the service owner.
func (s *Service) Create(ctx context.Context, customerID uuid.UUID, req *model.CreateBookingRequest) (*model.Booking, error) {
	svc, err := s.services.Get(ctx, req.ServiceID)
	if err != nil {
		return nil, notFoundOr(err, "Service")
	}

	owner, err := s.users.Get(ctx, svc.OwnerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.InvalidState("Service owner not found")
		}
		return nil, apperrors.Internal(err)
	}

	booking := &model.Booking{
		CustomerID: customerID,
		OwnerID:    svc.OwnerID,
		ServiceID:  svc.ID,
		Date:       req.Date,
		Status:     model.BookingStatusPending,
	}
	if err := s.bookings.Create(ctx, booking); err != nil {
		return nil, apperrors.Internal(fmt.Errorf("create booking: %w", err))
	}
	s.metrics.BookingsCreated.Inc()

	if err := s.notifier.Enqueue(ctx, newBookingEmail(owner.Email, svc.Name, booking.Date)); err != nil {
		return nil, apperrors.Internal(fmt.Errorf("queue new booking email: %w", err))
	}
	s.publish(ctx, EventBookingCreated, eventFor(booking, ""))

	s.logger.Info("booking created",
		"booking_id", booking.ID.String(),
		"service_id", svc.ID.String(),
		"customer_id", customerID.String())
	return booking, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.BookingDetails, error) {
	details, err := s.bookings.GetDetails(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "Booking")
	}
	return details, nil
}

func (s *Service) ListForCustomer(ctx context.Context, customerID uuid.UUID) ([]*model.BookingDetails, error) {
	list, err := s.bookings.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return list, nil
}

func (s *Service) ListForOwner(ctx context.Context, ownerID uuid.UUID) ([]*model.BookingDetails, error) {
	list, err := s.bookings.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return list, nil
}

// UpdateByCustomer applies the non-empty fields of req. ownerId is never
// re-derived, even when the service changes.
func (s *Service) UpdateByCustomer(ctx context.Context, id, callerID uuid.UUID, req *model.UpdateBookingRequest) (*model.Booking, error) {
	booking, err := s.bookings.Get(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "Booking")
	}
	if booking.CustomerID != callerID {
		return nil, forbidden()
	}

	previous := booking.Status
	if req.ServiceID != uuid.Nil && req.ServiceID != booking.ServiceID {
		if _, err := s.services.Get(ctx, req.ServiceID); err != nil {
			return nil, notFoundOr(err, "Service")
		}
		booking.ServiceID = req.ServiceID
	}
	if !req.Date.IsZero() {
		booking.Date = req.Date
	}
	if req.Status != "" {
		if err := s.checkTransition(previous, req.Status); err != nil {
			return nil, err
		}
		booking.Status = req.Status
	}

	if err := s.bookings.Update(ctx, booking); err != nil {
		return nil, notFoundOr(err, "Booking")
	}

	if booking.Status != previous {
		s.metrics.BookingStatusChanges.WithLabelValues(string(booking.Status)).Inc()
		s.publish(ctx, EventBookingStatusChanged, eventFor(booking, previous))
		if booking.Status != model.BookingStatusReadyForDelivery {
			s.cancelCompletion(ctx, booking.ID)
		}
	}
	return booking, nil
}

// UpdateStatusByOwner sets the status, emails the customer and, for
// "ready for delivery", schedules the automatic completion.
func (s *Service) UpdateStatusByOwner(ctx context.Context, id, callerID uuid.UUID, status model.BookingStatus) (*model.Booking, error) {
	details, err := s.bookings.GetDetails(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "Booking")
	}
	if details.Service == nil || details.Owner == nil {
		return nil, apperrors.NotFound("Service or owner", nil)
	}
	if details.OwnerID != callerID {
		return nil, forbidden()
	}
	if details.Customer == nil {
		return nil, apperrors.NotFound("Customer", nil)
	}

	booking := details.Booking
	previous := booking.Status
	if err := s.checkTransition(previous, status); err != nil {
		return nil, err
	}

	booking.Status = status
	if err := s.bookings.Update(ctx, &booking); err != nil {
		return nil, notFoundOr(err, "Booking")
	}
	s.metrics.BookingStatusChanges.WithLabelValues(string(status)).Inc()

	// the completion follows the stored status even when the email cannot be queued
	if status == model.BookingStatusReadyForDelivery {
		if err := s.scheduleCompletion(ctx, details); err != nil {
			return nil, apperrors.Internal(err)
		}
	} else {
		s.cancelCompletion(ctx, booking.ID)
	}

	msg := statusUpdateEmail(details.Owner.Email, details.Owner.Name, details.Customer.Email, details.Customer.Name, details.Service.Name, status)
	if err := s.notifier.Enqueue(ctx, msg); err != nil {
		return nil, apperrors.Internal(fmt.Errorf("queue status email: %w", err))
	}
	s.publish(ctx, EventBookingStatusChanged, eventFor(&booking, previous))

	s.logger.Info("booking status updated",
		"booking_id", booking.ID.String(),
		"from", string(previous),
		"to", string(status))
	return &booking, nil
}

// Delete removes the booking and cancels its pending deferred work.
func (s *Service) Delete(ctx context.Context, id, callerID uuid.UUID) error {
	booking, err := s.bookings.Get(ctx, id)
	if err != nil {
		return notFoundOr(err, "Booking")
	}
	if booking.CustomerID != callerID {
		return forbidden()
	}

	if err := s.bookings.Delete(ctx, id); err != nil {
		return notFoundOr(err, "Booking")
	}

	// a task that escapes cancellation finds no booking and does nothing
	if _, err := s.scheduler.CancelForBooking(ctx, id, ""); err != nil {
		s.logger.Error(err, "failed to cancel deferred tasks", "booking_id", id.String())
	}
	return nil
}

func (s *Service) checkTransition(from, to model.BookingStatus) error {
	if !to.Valid() {
		return apperrors.BadRequest(fmt.Sprintf("Invalid booking status: %q", to), nil)
	}
	if s.config.StrictTransitions && !model.CanTransition(from, to) {
		return apperrors.InvalidState(fmt.Sprintf("Cannot change booking status from %s to %s", from, to))
	}
	return nil
}

func (s *Service) publish(ctx context.Context, eventType string, evt Event) {
	if err := s.notifier.Publish(ctx, eventType, evt); err != nil {
		s.logger.Error(err, "failed to record domain event", "event_type", eventType, "booking_id", evt.BookingID.String())
	}
}

func notFoundOr(err error, resource string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound(resource, err)
	}
	return apperrors.Internal(err)
}

func forbidden() error {
	return &apperrors.AppError{Code: apperrors.ErrForbidden, Message: "user not authorized", Err: ErrNotParticipant}
}
