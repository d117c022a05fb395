package model

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RegisterRequest struct {
	Email        string `json:"email" binding:"required,email"`
	MobileNumber string `json:"mobileNumber" binding:"required"`
	Password     string `json:"password" binding:"required,min=8"`
	Role         Role   `json:"role" binding:"required,oneof=owner customer"`
	Name         string `json:"name" binding:"required"`
	ShopName     string `json:"shopName"`
}

type TokenResponse struct {
	Token string `json:"token"`
}
