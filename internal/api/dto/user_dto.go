package dto

import (
	"time"

	"github.com/spec-kit/repair-service/internal/domain"
)

// RegisterRequest payload for new accounts. Technician sign ups carry
// their directory profile.
type RegisterRequest struct {
	Name       string                    `json:"name"`
	Email      string                    `json:"email"`
	Password   string                    `json:"password"`
	Role       domain.Role               `json:"role"`
	Technician *TechnicianProfileRequest `json:"technician,omitempty"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionResponse pairs the account with its token.
type SessionResponse struct {
	User UserResponse `json:"user"`
	Auth AuthResponse `json:"auth"`
}

// NewUserResponse maps an account.
func NewUserResponse(user *domain.User) UserResponse {
	return UserResponse{ID: user.ID, Name: user.Name, Email: user.Email, Role: user.Role}
}
