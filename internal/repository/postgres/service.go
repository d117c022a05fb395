package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
)

const serviceColumns = `id, name, description, price, owner_id, created_at, updated_at`

type serviceRepository struct {
	BaseRepository
}

func NewServiceRepository(base BaseRepository) repository.ServiceRepository {
	return &serviceRepository{base}
}

func (r *serviceRepository) Create(ctx context.Context, service *model.Service) error {
	query := `
		INSERT INTO services (` + serviceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	service.Touch(time.Now().UTC())

	_, err := r.db.ExecContext(ctx, query,
		service.ID,
		service.Name,
		service.Description,
		service.Price,
		service.OwnerID,
		service.CreatedAt,
		service.UpdatedAt,
	)
	return translate("create service", err)
}

func (r *serviceRepository) Get(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services WHERE id = $1`

	var service model.Service
	if err := r.db.GetContext(ctx, &service, query, id); err != nil {
		return nil, translate("get service", err)
	}
	return &service, nil
}

func (r *serviceRepository) List(ctx context.Context) ([]*model.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services ORDER BY created_at ASC`

	services := []*model.Service{}
	if err := r.db.SelectContext(ctx, &services, query); err != nil {
		return nil, translate("list services", err)
	}
	return services, nil
}

func (r *serviceRepository) Update(ctx context.Context, service *model.Service) error {
	query := `
		UPDATE services
		SET name = $1, description = $2, price = $3, updated_at = $4
		WHERE id = $5
	`

	service.UpdatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx, query,
		service.Name,
		service.Description,
		service.Price,
		service.UpdatedAt,
		service.ID,
	)
	if err != nil {
		return translate("update service", err)
	}
	return expectAffected(res)
}

func (r *serviceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM services WHERE id = $1`, id)
	if err != nil {
		return translate("delete service", err)
	}
	return expectAffected(res)
}
