package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
)

var detailsColumns = []string{
	"id", "customer_id", "owner_id", "service_id", "date", "status", "created_at", "updated_at",
	"svc_id", "svc_name", "svc_description", "svc_price", "svc_owner_id", "svc_created_at", "svc_updated_at",
	"customer_ref", "customer_name", "customer_email",
	"owner_ref", "owner_name", "owner_email", "owner_shop_name",
}

func TestBookingRepository_GetDetailsPopulatesReferences(t *testing.T) {
	base, mock := newMockBase(t)
	repo := NewBookingRepository(base)

	bookingID, customerID, ownerID, serviceID := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	now := time.Now()

	rows := sqlmock.NewRows(detailsColumns).AddRow(
		bookingID.String(), customerID.String(), ownerID.String(), serviceID.String(), now, "pending", now, now,
		serviceID.String(), "Full service", "Oil and chain", 49.5, ownerID.String(), now, now,
		customerID.String(), "Cara", "cara@example.com",
		ownerID.String(), "Ravi", "ravi@example.com", "Ravi Bikes",
	)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE b.id = $1")).
		WithArgs(bookingID).
		WillReturnRows(rows)

	details, err := repo.GetDetails(context.Background(), bookingID)
	require.NoError(t, err)

	assert.Equal(t, model.BookingStatusPending, details.Status)
	require.NotNil(t, details.Service)
	assert.Equal(t, "Full service", details.Service.Name)
	require.NotNil(t, details.Customer)
	assert.Equal(t, "cara@example.com", details.Customer.Email)
	require.NotNil(t, details.Owner)
	assert.Equal(t, "Ravi Bikes", details.Owner.ShopName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepository_DetailsOwnerIsBookingOwner(t *testing.T) {
	base, mock := newMockBase(t)
	repo := NewBookingRepository(base)

	ownerID := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN users o ON o.id = b.owner_id")).
		WithArgs(ownerID).
		WillReturnRows(sqlmock.NewRows(detailsColumns))

	list, err := repo.ListByOwner(context.Background(), ownerID)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepository_ListByCustomerLeavesMissingServiceNil(t *testing.T) {
	base, mock := newMockBase(t)
	repo := NewBookingRepository(base)

	customerID := uuid.New()
	now := time.Now()

	rows := sqlmock.NewRows(detailsColumns).AddRow(
		uuid.NewString(), customerID.String(), uuid.NewString(), uuid.NewString(), now, "completed", now, now,
		nil, nil, nil, nil, nil, nil, nil,
		customerID.String(), "Cara", "cara@example.com",
		nil, nil, nil, nil,
	)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE b.customer_id = $1")).
		WithArgs(customerID).
		WillReturnRows(rows)

	list, err := repo.ListByCustomer(context.Background(), customerID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Nil(t, list[0].Service)
	assert.Nil(t, list[0].Owner)
	assert.NotNil(t, list[0].Customer)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepository_DeleteMissingIsNotFound(t *testing.T) {
	base, mock := newMockBase(t)
	repo := NewBookingRepository(base)

	id := uuid.New()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM bookings WHERE id = $1")).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), id), repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepository_UpdateKeepsOwner(t *testing.T) {
	base, mock := newMockBase(t)
	repo := NewBookingRepository(base)

	b := &model.Booking{
		Base:      model.Base{ID: uuid.New()},
		ServiceID: uuid.New(),
		Date:      time.Now(),
		Status:    model.BookingStatusReadyForDelivery,
	}

	// owner_id is never part of the update statement
	mock.ExpectExec(`UPDATE bookings\s+SET service_id = \$1, date = \$2, status = \$3, updated_at = \$4\s+WHERE id = \$5`).
		WithArgs(b.ServiceID, b.Date, b.Status, sqlmock.AnyArg(), b.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Update(context.Background(), b))
	assert.NoError(t, mock.ExpectationsWereMet())
}
