package booking

import (
	"fmt"
	"time"

	"github.com/jwalitptl/booking-api/internal/email"
	"github.com/jwalitptl/booking-api/internal/model"
)

const (
	subjectNewBooking   = "New Booking Received"
	subjectStatusUpdate = "Booking Status Update"
	subjectCompleted    = "Booking is Completed"
)

func newBookingEmail(ownerEmail, serviceName string, date time.Time) email.Message {
	return email.Message{
		To:      ownerEmail,
		Subject: subjectNewBooking,
		Body: fmt.Sprintf(
			"You have received a new booking for the service: %s on %s. Please check your bookings for more details.",
			serviceName, date.UTC().Format(time.RFC1123)),
	}
}

func statusUpdateEmail(ownerEmail, ownerName, customerEmail, customerName, serviceName string, status model.BookingStatus) email.Message {
	return email.Message{
		From:    ownerEmail,
		To:      customerEmail,
		Subject: subjectStatusUpdate,
		Body: fmt.Sprintf("Dear %s,\n\nYour booking for the service %s is now %s.\n\nRegards,\n%s",
			customerName, serviceName, status, ownerName),
	}
}

func completedEmail(p completionPayload) email.Message {
	return email.Message{
		From:    p.OwnerEmail,
		To:      p.CustomerEmail,
		Subject: subjectCompleted,
		Body: fmt.Sprintf("Dear %s,\n\nYour booking for the service %s has been completed.\n\nRegards,\n%s",
			p.CustomerName, p.ServiceName, p.OwnerName),
	}
}
