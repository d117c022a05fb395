package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to BookingStatus
		want     bool
	}{
		{BookingStatusPending, BookingStatusPending, true},
		{BookingStatusPending, BookingStatusReadyForDelivery, true},
		{BookingStatusPending, BookingStatusCompleted, true},
		{BookingStatusReadyForDelivery, BookingStatusReadyForDelivery, true},
		{BookingStatusReadyForDelivery, BookingStatusCompleted, true},
		{BookingStatusReadyForDelivery, BookingStatusPending, false},
		{BookingStatusCompleted, BookingStatusReadyForDelivery, false},
		{BookingStatusCompleted, BookingStatusPending, false},
		{BookingStatusPending, "cancelled", false},
		{"archived", BookingStatusCompleted, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestBookingStatusValid(t *testing.T) {
	assert.True(t, BookingStatusReadyForDelivery.Valid())
	assert.False(t, BookingStatus("ready").Valid())
	assert.False(t, BookingStatus("").Valid())
}
