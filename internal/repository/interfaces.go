package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("record already exists")
)

// All repository interfaces in one file
type (
	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
	}

	ServiceRepository interface {
		Create(ctx context.Context, service *model.Service) error
		Get(ctx context.Context, id uuid.UUID) (*model.Service, error)
		List(ctx context.Context) ([]*model.Service, error)
		Update(ctx context.Context, service *model.Service) error
		Delete(ctx context.Context, id uuid.UUID) error
	}

	BookingRepository interface {
		Create(ctx context.Context, booking *model.Booking) error
		Get(ctx context.Context, id uuid.UUID) (*model.Booking, error)
		GetDetails(ctx context.Context, id uuid.UUID) (*model.BookingDetails, error)
		ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*model.BookingDetails, error)
		ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*model.BookingDetails, error)
		Update(ctx context.Context, booking *model.Booking) error
		Delete(ctx context.Context, id uuid.UUID) error
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		// ClaimPending leases up to limit due events so concurrent processors skip them.
		ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkRetry(ctx context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error
		MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}

	TaskRepository interface {
		Create(ctx context.Context, task *model.DeferredTask) error
		CancelScheduled(ctx context.Context, bookingID uuid.UUID, kind string) (int64, error)
		// ClaimDue leases up to limit scheduled tasks whose fire time has passed.
		ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*model.DeferredTask, error)
		MarkFired(ctx context.Context, id uuid.UUID, lastErr *string) error
		Reschedule(ctx context.Context, id uuid.UUID, fireAt time.Time, lastErr string) error
	}
)
