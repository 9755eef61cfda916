package dto

import (
	"time"

	"github.com/spec-kit/auth-gate/internal/domain"
)

// SignupRequest payload for new accounts.
type SignupRequest struct {
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Username  string `json:"username" validate:"required,max=50"`
	Email     string `json:"email" validate:"required,email,max=50"`
	Password  string `json:"password" validate:"required,min=6"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=50"`
	Password string `json:"password" validate:"required,min=6"`
}

// LogoutRequest optionally names the refresh credential to revoke with the access credential.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// UpdateUserRequest payload for account updates; omitted fields are unchanged.
type UpdateUserRequest struct {
	Username *string `json:"username" validate:"omitempty,min=1,max=50"`
	Email    *string `json:"email" validate:"omitempty,email,max=50"`
	Password *string `json:"password" validate:"omitempty,min=6"`
}

// LoginUser identifies the logged-in account.
type LoginUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// LoginResponse is returned on successful login.
type LoginResponse struct {
	Message      string    `json:"message"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	User         LoginUser `json:"user"`
}

// RefreshResponse is returned when a refresh credential mints a new access credential.
type RefreshResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// MessageResponse is a plain confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}

// UserResponse is the public projection of a user; the password hash is never included.
type UserResponse struct {
	ID         string      `json:"id"`
	Username   string      `json:"username"`
	Email      string      `json:"email"`
	FirstName  string      `json:"first_name"`
	LastName   string      `json:"last_name"`
	IsVerified bool        `json:"is_verified"`
	Role       domain.Role `json:"role"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// NewUserResponse projects a user.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		IsVerified: u.IsVerified,
		Role:       u.Role,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}
