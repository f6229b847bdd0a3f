// Package auth provides authentication for the schema API: credential
// backends, JWT issuing and validation.
package auth

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"metaform/internal/core/apperror"
	"metaform/internal/core/id"
)

// User is an authenticated principal.
type User struct {
	ID           id.ID     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name,omitempty"`
	AccountID    string    `json:"accountId,omitempty"`
	Roles        []string  `json:"roles,omitempty"`
	IsActive     bool      `json:"isActive"`
	IsAdmin      bool      `json:"isAdmin"`
	CreatedAt    time.Time `json:"createdAt"`
}

// NewUser creates an active user with a bcrypt-hashed password.
func NewUser(email, password string) (*User, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	return &User{
		ID:           id.New(),
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// CanLogin checks account state.
func (u *User) CanLogin() error {
	if !u.IsActive {
		return apperror.NewForbidden("account is disabled")
	}
	return nil
}

// HasRole checks role membership.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", apperror.NewInternal(err)
	}
	return string(hash), nil
}

// CheckPassword compares a plaintext password against the stored hash.
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}
