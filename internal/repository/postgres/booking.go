package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
)

const bookingColumns = `id, customer_id, owner_id, service_id, date, status, created_at, updated_at`

// Owner is the booking's stored owner, the user status updates are authorized against.
const bookingDetailsQuery = `
	SELECT
		b.id, b.customer_id, b.owner_id, b.service_id, b.date, b.status, b.created_at, b.updated_at,
		s.id AS svc_id, s.name AS svc_name, s.description AS svc_description, s.price AS svc_price,
		s.owner_id AS svc_owner_id, s.created_at AS svc_created_at, s.updated_at AS svc_updated_at,
		c.id AS customer_ref, c.name AS customer_name, c.email AS customer_email,
		o.id AS owner_ref, o.name AS owner_name, o.email AS owner_email, o.shop_name AS owner_shop_name
	FROM bookings b
	LEFT JOIN services s ON s.id = b.service_id
	LEFT JOIN users c ON c.id = b.customer_id
	LEFT JOIN users o ON o.id = b.owner_id
`

type bookingRepository struct {
	BaseRepository
}

func NewBookingRepository(base BaseRepository) repository.BookingRepository {
	return &bookingRepository{base}
}

func (r *bookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	query := `
		INSERT INTO bookings (` + bookingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	booking.Touch(time.Now().UTC())

	_, err := r.db.ExecContext(ctx, query,
		booking.ID,
		booking.CustomerID,
		booking.OwnerID,
		booking.ServiceID,
		booking.Date,
		booking.Status,
		booking.CreatedAt,
		booking.UpdatedAt,
	)
	return translate("create booking", err)
}

func (r *bookingRepository) Get(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	var booking model.Booking
	if err := r.db.GetContext(ctx, &booking, query, id); err != nil {
		return nil, translate("get booking", err)
	}
	return &booking, nil
}

func (r *bookingRepository) GetDetails(ctx context.Context, id uuid.UUID) (*model.BookingDetails, error) {
	var row bookingDetailsRow
	if err := r.db.GetContext(ctx, &row, bookingDetailsQuery+` WHERE b.id = $1`, id); err != nil {
		return nil, translate("get booking details", err)
	}
	return row.toModel(), nil
}

func (r *bookingRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*model.BookingDetails, error) {
	return r.listDetails(ctx, "list customer bookings",
		bookingDetailsQuery+` WHERE b.customer_id = $1 ORDER BY b.date ASC`, customerID)
}

func (r *bookingRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*model.BookingDetails, error) {
	return r.listDetails(ctx, "list owner bookings",
		bookingDetailsQuery+` WHERE b.owner_id = $1 ORDER BY b.date ASC`, ownerID)
}

func (r *bookingRepository) listDetails(ctx context.Context, op, query string, args ...interface{}) ([]*model.BookingDetails, error) {
	var rows []bookingDetailsRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, translate(op, err)
	}

	out := make([]*model.BookingDetails, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toModel())
	}
	return out, nil
}

func (r *bookingRepository) Update(ctx context.Context, booking *model.Booking) error {
	query := `
		UPDATE bookings
		SET service_id = $1, date = $2, status = $3, updated_at = $4
		WHERE id = $5
	`

	booking.UpdatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx, query,
		booking.ServiceID,
		booking.Date,
		booking.Status,
		booking.UpdatedAt,
		booking.ID,
	)
	if err != nil {
		return translate("update booking", err)
	}
	return expectAffected(res)
}

func (r *bookingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return translate("delete booking", err)
	}
	return expectAffected(res)
}

type bookingDetailsRow struct {
	model.Booking

	SvcID          uuid.NullUUID   `db:"svc_id"`
	SvcName        sql.NullString  `db:"svc_name"`
	SvcDescription sql.NullString  `db:"svc_description"`
	SvcPrice       sql.NullFloat64 `db:"svc_price"`
	SvcOwnerID     uuid.NullUUID   `db:"svc_owner_id"`
	SvcCreatedAt   sql.NullTime    `db:"svc_created_at"`
	SvcUpdatedAt   sql.NullTime    `db:"svc_updated_at"`

	CustomerRef   uuid.NullUUID  `db:"customer_ref"`
	CustomerName  sql.NullString `db:"customer_name"`
	CustomerEmail sql.NullString `db:"customer_email"`

	OwnerRef      uuid.NullUUID  `db:"owner_ref"`
	OwnerName     sql.NullString `db:"owner_name"`
	OwnerEmail    sql.NullString `db:"owner_email"`
	OwnerShopName sql.NullString `db:"owner_shop_name"`
}

func (row *bookingDetailsRow) toModel() *model.BookingDetails {
	details := &model.BookingDetails{Booking: row.Booking}

	if row.SvcID.Valid {
		details.Service = &model.Service{
			Base: model.Base{
				ID:        row.SvcID.UUID,
				CreatedAt: row.SvcCreatedAt.Time,
				UpdatedAt: row.SvcUpdatedAt.Time,
			},
			Name:        row.SvcName.String,
			Description: row.SvcDescription.String,
			Price:       row.SvcPrice.Float64,
			OwnerID:     row.SvcOwnerID.UUID,
		}
	}
	if row.CustomerRef.Valid {
		details.Customer = &model.UserContact{
			ID:    row.CustomerRef.UUID,
			Name:  row.CustomerName.String,
			Email: row.CustomerEmail.String,
		}
	}
	if row.OwnerRef.Valid {
		details.Owner = &model.UserContact{
			ID:       row.OwnerRef.UUID,
			Name:     row.OwnerName.String,
			Email:    row.OwnerEmail.String,
			ShopName: row.OwnerShopName.String,
		}
	}
	return details
}
