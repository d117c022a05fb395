// Package scheduler persists deferred tasks and runs them once they are due.
// Tasks live in the database, so a restart neither loses nor duplicates them.
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/metrics"
)

// Clock returns the current time.
type Clock func() time.Time

type settings struct {
	clock Clock
}

type Option func(*settings)

// WithClock replaces time.Now, letting tests move time forward.
func WithClock(c Clock) Option {
	return func(s *settings) { s.clock = c }
}

func applyOptions(opts []Option) settings {
	s := settings{clock: time.Now}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Task describes work to run at FireAt.
type Task struct {
	Kind      string
	BookingID uuid.UUID
	Payload   interface{}
	FireAt    time.Time
}

type Scheduler struct {
	repo    repository.TaskRepository
	clock   Clock
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func New(repo repository.TaskRepository, l *logger.Logger, m *metrics.Metrics, opts ...Option) *Scheduler {
	s := applyOptions(opts)
	return &Scheduler{
		repo:    repo,
		clock:   s.clock,
		logger:  l.With("scheduler"),
		metrics: m,
	}
}

func (s *Scheduler) Now() time.Time {
	return s.clock()
}

func (s *Scheduler) Schedule(ctx context.Context, t Task) (*model.DeferredTask, error) {
	if t.Kind == "" {
		return nil, errors.New("task kind is required")
	}
	if t.FireAt.IsZero() {
		return nil, errors.New("task fire time is required")
	}

	payload, err := json.Marshal(t.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", t.Kind, err)
	}

	task := &model.DeferredTask{
		Kind:      t.Kind,
		BookingID: t.BookingID,
		Payload:   payload,
		FireAt:    t.FireAt.UTC(),
		Status:    model.TaskStatusScheduled,
	}
	if err := s.repo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("schedule %s: %w", t.Kind, err)
	}

	s.metrics.TasksScheduled.WithLabelValues(t.Kind).Inc()
	s.logger.Info("task scheduled",
		"task_id", task.ID.String(),
		"kind", task.Kind,
		"booking_id", task.BookingID.String(),
		"fire_at", task.FireAt)
	return task, nil
}

// ScheduleAfter schedules a task delay from now.
func (s *Scheduler) ScheduleAfter(ctx context.Context, kind string, bookingID uuid.UUID, delay time.Duration, payload interface{}) (*model.DeferredTask, error) {
	return s.Schedule(ctx, Task{
		Kind:      kind,
		BookingID: bookingID,
		Payload:   payload,
		FireAt:    s.clock().Add(delay),
	})
}

// CancelForBooking cancels every scheduled task of kind for the booking. An
// empty kind cancels all kinds.
func (s *Scheduler) CancelForBooking(ctx context.Context, bookingID uuid.UUID, kind string) (int64, error) {
	n, err := s.repo.CancelScheduled(ctx, bookingID, kind)
	if err != nil {
		return 0, fmt.Errorf("cancel tasks for booking %s: %w", bookingID, err)
	}
	if n > 0 {
		s.metrics.TasksCancelled.WithLabelValues(kind).Add(float64(n))
		s.logger.Info("tasks cancelled", "booking_id", bookingID.String(), "kind", kind, "count", n)
	}
	return n, nil
}
