package dto

import (
	"time"

	"streampass/internal/model"
)

// RegisterRequestDTO is used for incoming registration requests
type RegisterRequestDTO struct {
	Email    string `json:"email" validate:"required,email" example:"juan.perez@example.com"`
	Password string `json:"password" validate:"required,min=6,max=50,password" example:"Secure@2025"`
	FullName string `json:"fullName" validate:"required,min=1,max=100" example:"Juan Pérez López"`
}

// LoginRequestDTO is used for incoming login requests
type LoginRequestDTO struct {
	Email    string `json:"email" validate:"required,email" example:"juan.perez@example.com"`
	Password string `json:"password" validate:"required,min=6,max=50,password" example:"Secure@2025"`
}

// UserResponseDTO is returned by every auth endpoint. It never carries the
// password hash.
type UserResponseDTO struct {
	ID                   string    `json:"id"`
	Email                string    `json:"email"`
	FullName             string    `json:"fullName"`
	IsActive             bool      `json:"isActive"`
	Roles                []string  `json:"roles"`
	StripeCustomerID     *string   `json:"stripeCustomerId"`
	StripeSubscriptionID *string   `json:"stripeSubscriptionId"`
	SubscriptionStatus   string    `json:"subscriptionStatus"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
	Token                string    `json:"token"`
}

func NewUserResponse(u *model.User, token string) UserResponseDTO {
	return UserResponseDTO{
		ID:                   u.ID,
		Email:                u.Email,
		FullName:             u.FullName,
		IsActive:             u.IsActive,
		Roles:                u.Roles,
		StripeCustomerID:     u.StripeCustomerID,
		StripeSubscriptionID: u.StripeSubscriptionID,
		SubscriptionStatus:   u.SubscriptionStatus,
		CreatedAt:            u.CreatedAt,
		UpdatedAt:            u.UpdatedAt,
		Token:                token,
	}
}

// ErrorResponseDTO mirrors the error body shape clients already parse.
type ErrorResponseDTO struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Error      string `json:"error"`
}
