package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/pkg/auth"
	apperrors "github.com/jwalitptl/booking-api/pkg/errors"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/security"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
	ErrShopNameRequired   = errors.New("shop name is required for owners")
)

type Service struct {
	userRepo repository.UserRepository
	hasher   security.PasswordHasher
	jwtSvc   auth.JWTService
	logger   *logger.Logger
}

func NewService(userRepo repository.UserRepository, hasher security.PasswordHasher, jwtSvc auth.JWTService, l *logger.Logger) *Service {
	return &Service{
		userRepo: userRepo,
		hasher:   hasher,
		jwtSvc:   jwtSvc,
		logger:   l.With("auth"),
	}
}

func (s *Service) Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error) {
	if !req.Role.Valid() {
		return nil, apperrors.BadRequest("Role must be owner or customer", nil)
	}

	shopName := strings.TrimSpace(req.ShopName)
	if req.Role == model.RoleOwner && shopName == "" {
		return nil, apperrors.BadRequest("Shop name is required for owners", ErrShopNameRequired)
	}
	if req.Role == model.RoleCustomer {
		shopName = ""
	}

	if _, err := s.userRepo.GetByEmail(ctx, req.Email); err == nil {
		return nil, apperrors.BadRequest("User already exists", ErrUserExists)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.Internal(fmt.Errorf("lookup user: %w", err))
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, security.ErrPasswordTooShort) {
			return nil, apperrors.BadRequest(err.Error(), err)
		}
		return nil, apperrors.Internal(err)
	}

	user := &model.User{
		Email:        req.Email,
		MobileNumber: req.MobileNumber,
		PasswordHash: hash,
		Role:         req.Role,
		Name:         req.Name,
		ShopName:     shopName,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		// lost a race with a concurrent registration
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.BadRequest("User already exists", ErrUserExists)
		}
		return nil, apperrors.Internal(fmt.Errorf("create user: %w", err))
	}

	s.logger.Info("user registered", "user_id", user.ID.String(), "role", string(user.Role))
	return user, nil
}

// Login answers unknown emails and wrong passwords identically.
func (s *Service) Login(ctx context.Context, email, password string) (*model.TokenResponse, error) {
	invalid := apperrors.BadRequest("Invalid credentials", ErrInvalidCredentials)

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, invalid
		}
		return nil, apperrors.Internal(fmt.Errorf("lookup user: %w", err))
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return nil, invalid
	}

	token, err := s.jwtSvc.GenerateToken(user)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return &model.TokenResponse{Token: token}, nil
}

func (s *Service) Me(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	user, err := s.userRepo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("User", err)
		}
		return nil, apperrors.Internal(err)
	}
	return user, nil
}

// ValidateToken resolves a bearer token to its claims.
func (s *Service) ValidateToken(token string) (*auth.Claims, error) {
	return s.jwtSvc.ValidateToken(token)
}
