// Package schedulertest provides in-memory doubles for exercising the
// scheduler without a database.
package schedulertest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
)

// Clock is a manually advanced clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Store is an in-memory repository.TaskRepository.
type Store struct {
	mu     sync.Mutex
	tasks  map[uuid.UUID]*model.DeferredTask
	locked map[uuid.UUID]time.Time
}

var _ repository.TaskRepository = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		tasks:  make(map[uuid.UUID]*model.DeferredTask),
		locked: make(map[uuid.UUID]time.Time),
	}
}

func (s *Store) Create(_ context.Context, task *model.DeferredTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	if task.Status == "" {
		task.Status = model.TaskStatusScheduled
	}
	cp := *task
	s.tasks[task.ID] = &cp
	return nil
}

func (s *Store) CancelScheduled(_ context.Context, bookingID uuid.UUID, kind string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, t := range s.tasks {
		if t.BookingID == bookingID && t.Status == model.TaskStatusScheduled && (kind == "" || t.Kind == kind) {
			t.Status = model.TaskStatusCancelled
			n++
		}
	}
	return n, nil
}

func (s *Store) ClaimDue(_ context.Context, now time.Time, limit int, lease time.Duration) ([]*model.DeferredTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*model.DeferredTask
	for id, t := range s.tasks {
		if t.Status != model.TaskStatusScheduled || t.FireAt.After(now) {
			continue
		}
		if until, ok := s.locked[id]; ok && until.After(now) {
			continue
		}
		due = append(due, t)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].FireAt.Before(due[j].FireAt) })
	if len(due) > limit {
		due = due[:limit]
	}

	out := make([]*model.DeferredTask, 0, len(due))
	for _, t := range due {
		t.Attempts++
		s.locked[t.ID] = now.Add(lease)
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Store) MarkFired(_ context.Context, id uuid.UUID, lastErr *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.tasks[id]; ok && t.Status == model.TaskStatusScheduled {
		t.Status = model.TaskStatusFired
		t.LastError = lastErr
		delete(s.locked, id)
	}
	return nil
}

func (s *Store) Reschedule(_ context.Context, id uuid.UUID, fireAt time.Time, lastErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.tasks[id]; ok && t.Status == model.TaskStatusScheduled {
		t.FireAt = fireAt
		t.LastError = &lastErr
		delete(s.locked, id)
	}
	return nil
}

// Tasks returns copies of every stored task for the booking.
func (s *Store) Tasks(bookingID uuid.UUID) []model.DeferredTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.DeferredTask
	for _, t := range s.tasks {
		if t.BookingID == bookingID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FireAt.Before(out[j].FireAt) })
	return out
}
