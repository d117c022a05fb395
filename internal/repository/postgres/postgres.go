package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/booking-api/internal/repository"
)

// Repositories bundles every postgres-backed repository over one pool.
type Repositories struct {
	Users    repository.UserRepository
	Services repository.ServiceRepository
	Bookings repository.BookingRepository
	Tasks    repository.TaskRepository
	Outbox   repository.OutboxRepository
}

func NewRepositories(db *sqlx.DB) *Repositories {
	base := NewBaseRepository(db)
	return &Repositories{
		Users:    NewUserRepository(base),
		Services: NewServiceRepository(base),
		Bookings: NewBookingRepository(base),
		Tasks:    NewTaskRepository(base),
		Outbox:   NewOutboxRepository(base),
	}
}
