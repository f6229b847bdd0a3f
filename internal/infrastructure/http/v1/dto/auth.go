package dto

import "time"

// LoginRequest carries login credentials.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse returns the issued token and user profile.
type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      UserResponse `json:"user"`
}

// UserResponse is the public projection of a user.
type UserResponse struct {
	ID      string   `json:"id"`
	Email   string   `json:"email"`
	Name    string   `json:"name,omitempty"`
	Roles   []string `json:"roles,omitempty"`
	IsAdmin bool     `json:"isAdmin,omitempty"`
}
