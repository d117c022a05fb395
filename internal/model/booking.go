package model

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingStatusPending          BookingStatus = "pending"
	BookingStatusReadyForDelivery BookingStatus = "ready for delivery"
	BookingStatusCompleted        BookingStatus = "completed"
)

var bookingStatusRank = map[BookingStatus]int{
	BookingStatusPending:          0,
	BookingStatusReadyForDelivery: 1,
	BookingStatusCompleted:        2,
}

func (s BookingStatus) Valid() bool {
	_, ok := bookingStatusRank[s]
	return ok
}

// CanTransition allows forward moves and same-state writes only.
func CanTransition(from, to BookingStatus) bool {
	f, ok := bookingStatusRank[from]
	if !ok {
		return false
	}
	t, ok := bookingStatusRank[to]
	if !ok {
		return false
	}
	return t >= f
}

type Booking struct {
	Base
	CustomerID uuid.UUID     `json:"customerId" db:"customer_id"`
	OwnerID    uuid.UUID     `json:"ownerId" db:"owner_id"`
	ServiceID  uuid.UUID     `json:"serviceId" db:"service_id"`
	Date       time.Time     `json:"date" db:"date"`
	Status     BookingStatus `json:"status" db:"status"`
}

// BookingDetails is a booking with its references expanded. A reference whose
// row no longer exists is left nil.
type BookingDetails struct {
	Booking
	Service  *Service     `json:"service"`
	Customer *UserContact `json:"customer"`
	Owner    *UserContact `json:"owner"`
}

type CreateBookingRequest struct {
	ServiceID uuid.UUID `json:"serviceId" binding:"required"`
	Date      time.Time `json:"date" binding:"required"`
}

// UpdateBookingRequest carries the customer-editable fields; zero values are skipped.
type UpdateBookingRequest struct {
	ServiceID uuid.UUID     `json:"serviceId"`
	Date      time.Time     `json:"date"`
	Status    BookingStatus `json:"status" binding:"omitempty,booking_status"`
}

type UpdateBookingStatusRequest struct {
	Status BookingStatus `json:"status" binding:"required,booking_status"`
}
