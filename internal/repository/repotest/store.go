// Package repotest holds an in-memory implementation of the repository
// interfaces for service and handler tests.
package repotest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
)

type Store struct {
	mu       sync.Mutex
	users    map[uuid.UUID]model.User
	services map[uuid.UUID]model.Service
	bookings map[uuid.UUID]model.Booking
	outbox   []model.OutboxEvent
}

func NewStore() *Store {
	return &Store{
		users:    make(map[uuid.UUID]model.User),
		services: make(map[uuid.UUID]model.Service),
		bookings: make(map[uuid.UUID]model.Booking),
	}
}

func (s *Store) Users() repository.UserRepository       { return userRepo{s} }
func (s *Store) Services() repository.ServiceRepository { return serviceRepo{s} }
func (s *Store) Bookings() repository.BookingRepository { return bookingRepo{s} }
func (s *Store) Outbox() repository.OutboxRepository    { return outboxRepo{s} }

// OutboxEvents returns the queued events of eventType in insertion order.
func (s *Store) OutboxEvents(eventType string) []model.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.OutboxEvent
	for _, e := range s.outbox {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

func contact(u model.User) *model.UserContact {
	return &model.UserContact{ID: u.ID, Name: u.Name, Email: u.Email, ShopName: u.ShopName}
}

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	for _, u := range r.s.users {
		if u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	user.Touch(time.Now().UTC())
	r.s.users[user.ID] = *user
	return nil
}

func (r userRepo) Get(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range r.s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

type serviceRepo struct{ s *Store }

func (r serviceRepo) Create(_ context.Context, service *model.Service) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	service.Touch(time.Now().UTC())
	r.s.services[service.ID] = *service
	return nil
}

func (r serviceRepo) Get(_ context.Context, id uuid.UUID) (*model.Service, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	svc, ok := r.s.services[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &svc, nil
}

func (r serviceRepo) List(_ context.Context) ([]*model.Service, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]*model.Service, 0, len(r.s.services))
	for _, svc := range r.s.services {
		svc := svc
		out = append(out, &svc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r serviceRepo) Update(_ context.Context, service *model.Service) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.services[service.ID]; !ok {
		return repository.ErrNotFound
	}
	service.UpdatedAt = time.Now().UTC()
	r.s.services[service.ID] = *service
	return nil
}

func (r serviceRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.services[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.services, id)
	return nil
}

type bookingRepo struct{ s *Store }

func (r bookingRepo) Create(_ context.Context, booking *model.Booking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	booking.Touch(time.Now().UTC())
	r.s.bookings[booking.ID] = *booking
	return nil
}

func (r bookingRepo) Get(_ context.Context, id uuid.UUID) (*model.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.s.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &b, nil
}

func (r bookingRepo) GetDetails(_ context.Context, id uuid.UUID) (*model.BookingDetails, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.s.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.details(b), nil
}

func (r bookingRepo) ListByCustomer(_ context.Context, customerID uuid.UUID) ([]*model.BookingDetails, error) {
	return r.list(func(b model.Booking) bool { return b.CustomerID == customerID }), nil
}

func (r bookingRepo) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]*model.BookingDetails, error) {
	return r.list(func(b model.Booking) bool { return b.OwnerID == ownerID }), nil
}

func (r bookingRepo) list(match func(model.Booking) bool) []*model.BookingDetails {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := []*model.BookingDetails{}
	for _, b := range r.s.bookings {
		if match(b) {
			out = append(out, r.details(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// details must be called with the lock held.
func (r bookingRepo) details(b model.Booking) *model.BookingDetails {
	d := &model.BookingDetails{Booking: b}
	if svc, ok := r.s.services[b.ServiceID]; ok {
		d.Service = &svc
	}
	if owner, ok := r.s.users[b.OwnerID]; ok {
		d.Owner = contact(owner)
	}
	if customer, ok := r.s.users[b.CustomerID]; ok {
		d.Customer = contact(customer)
	}
	return d
}

func (r bookingRepo) Update(_ context.Context, booking *model.Booking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.bookings[booking.ID]
	if !ok {
		return repository.ErrNotFound
	}
	existing.ServiceID = booking.ServiceID
	existing.Date = booking.Date
	existing.Status = booking.Status
	existing.UpdatedAt = time.Now().UTC()
	r.s.bookings[booking.ID] = existing
	booking.UpdatedAt = existing.UpdatedAt
	return nil
}

func (r bookingRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.bookings[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.bookings, id)
	return nil
}

type outboxRepo struct{ s *Store }

func (r outboxRepo) Create(_ context.Context, event *model.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.Status = model.OutboxStatusPending
	event.CreatedAt = time.Now().UTC()
	event.UpdatedAt = event.CreatedAt
	r.s.outbox = append(r.s.outbox, *event)
	return nil
}

func (r outboxRepo) ClaimPending(_ context.Context, limit int, _ time.Duration) ([]*model.OutboxEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*model.OutboxEvent
	for i := range r.s.outbox {
		if len(out) == limit {
			break
		}
		e := r.s.outbox[i]
		if e.Status == model.OutboxStatusPending || e.Status == model.OutboxStatusRetry {
			out = append(out, &e)
		}
	}
	return out, nil
}

func (r outboxRepo) setStatus(id uuid.UUID, status model.OutboxStatus, errMsg *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for i := range r.s.outbox {
		if r.s.outbox[i].ID == id {
			r.s.outbox[i].Status = status
			r.s.outbox[i].ErrorMessage = errMsg
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r outboxRepo) MarkProcessed(_ context.Context, id uuid.UUID) error {
	return r.setStatus(id, model.OutboxStatusProcessed, nil)
}

func (r outboxRepo) MarkRetry(_ context.Context, id uuid.UUID, errMsg string, _ time.Time) error {
	return r.setStatus(id, model.OutboxStatusRetry, &errMsg)
}

func (r outboxRepo) MarkFailed(_ context.Context, id uuid.UUID, errMsg string) error {
	return r.setStatus(id, model.OutboxStatusFailed, &errMsg)
}

func (r outboxRepo) DeleteProcessedBefore(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	kept := r.s.outbox[:0]
	var n int64
	for _, e := range r.s.outbox {
		if e.Status == model.OutboxStatusProcessed && e.UpdatedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	r.s.outbox = kept
	return n, nil
}
