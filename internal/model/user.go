package model

import "github.com/google/uuid"

// Role of a marketplace user
type Role string

const (
	RoleOwner    Role = "owner"
	RoleCustomer Role = "customer"
)

func (r Role) Valid() bool {
	return r == RoleOwner || r == RoleCustomer
}

// User is either a service owner (shop) or a customer.
type User struct {
	Base
	Email        string `json:"email" db:"email"`
	MobileNumber string `json:"mobileNumber" db:"mobile_number"`
	PasswordHash string `json:"-" db:"password_hash"`
	Role         Role   `json:"role" db:"role"`
	Name         string `json:"name" db:"name"`
	ShopName     string `json:"shopName,omitempty" db:"shop_name"`
}

// UserContact is the public slice of a user embedded in populated bookings.
type UserContact struct {
	ID       uuid.UUID `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	ShopName string `json:"shopName,omitempty"`
}
