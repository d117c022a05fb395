package model

import "github.com/google/uuid"

// Service is a listing published by an owner.
type Service struct {
	Base
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	Price       float64   `json:"price" db:"price"`
	OwnerID     uuid.UUID `json:"ownerId" db:"owner_id"`
}

type CreateServiceRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description string  `json:"description" binding:"required"`
	Price       float64 `json:"price" binding:"required,gte=0"`
}

// UpdateServiceRequest leaves empty fields untouched.
type UpdateServiceRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price" binding:"omitempty,gte=0"`
}
