package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	apperrors "github.com/jwalitptl/booking-api/pkg/errors"
	"github.com/jwalitptl/booking-api/pkg/logger"
)

const listCacheKey = "services:all"

var ErrNotOwner = errors.New("caller does not own the service")

type Service struct {
	services repository.ServiceRepository
	users    repository.UserRepository
	cache    *cache.Cache
	logger   *logger.Logger
}

// NewService caches the full listing for ttl; a non-positive ttl disables caching.
func NewService(services repository.ServiceRepository, users repository.UserRepository, ttl time.Duration, l *logger.Logger) *Service {
	var c *cache.Cache
	if ttl > 0 {
		c = cache.New(ttl, 2*ttl)
	}
	return &Service{
		services: services,
		users:    users,
		cache:    c,
		logger:   l.With("catalog"),
	}
}

func (s *Service) List(ctx context.Context) ([]*model.Service, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(listCacheKey); ok {
			return cached.([]*model.Service), nil
		}
	}

	services, err := s.services.List(ctx)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("list services: %w", err))
	}

	if s.cache != nil {
		s.cache.SetDefault(listCacheKey, services)
	}
	return services, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	svc, err := s.services.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("Service", err)
		}
		return nil, apperrors.Internal(err)
	}
	return svc, nil
}

// Create publishes a service for ownerID and returns it with the owner record.
func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, req *model.CreateServiceRequest) (*model.Service, *model.User, error) {
	owner, err := s.users.Get(ctx, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, apperrors.NotFound("Owner", err)
		}
		return nil, nil, apperrors.Internal(err)
	}
	if owner.Role != model.RoleOwner {
		return nil, nil, apperrors.NotFound("Owner", nil)
	}

	svc := &model.Service{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		OwnerID:     owner.ID,
	}
	if err := s.services.Create(ctx, svc); err != nil {
		return nil, nil, apperrors.Internal(fmt.Errorf("create service: %w", err))
	}

	s.invalidate()
	s.logger.Info("service created", "service_id", svc.ID.String(), "owner_id", owner.ID.String())
	return svc, owner, nil
}

func (s *Service) Update(ctx context.Context, id, callerID uuid.UUID, req *model.UpdateServiceRequest) (*model.Service, error) {
	svc, err := s.ownedBy(ctx, id, callerID)
	if err != nil {
		return nil, err
	}

	if req.Name != "" {
		svc.Name = req.Name
	}
	if req.Description != "" {
		svc.Description = req.Description
	}
	if req.Price != 0 {
		svc.Price = req.Price
	}

	if err := s.services.Update(ctx, svc); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("Service", err)
		}
		return nil, apperrors.Internal(fmt.Errorf("update service: %w", err))
	}

	s.invalidate()
	return svc, nil
}

func (s *Service) Delete(ctx context.Context, id, callerID uuid.UUID) error {
	if _, err := s.ownedBy(ctx, id, callerID); err != nil {
		return err
	}

	if err := s.services.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("Service", err)
		}
		return apperrors.Internal(fmt.Errorf("delete service: %w", err))
	}

	s.invalidate()
	s.logger.Info("service removed", "service_id", id.String())
	return nil
}

func (s *Service) ownedBy(ctx context.Context, id, callerID uuid.UUID) (*model.Service, error) {
	svc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if svc.OwnerID != callerID {
		return nil, &apperrors.AppError{Code: apperrors.ErrForbidden, Message: "user not authorized", Err: ErrNotOwner}
	}
	return svc, nil
}

func (s *Service) invalidate() {
	if s.cache != nil {
		s.cache.Delete(listCacheKey)
	}
}
