package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	appctx "metaform/internal/core/context"
	"metaform/internal/core/apperror"
	"metaform/pkg/logger"
)

// CredentialBackend verifies login credentials against some user source.
type CredentialBackend interface {
	Authenticate(ctx context.Context, email, password string) (*User, error)
}

// LocalBackend keeps users in memory with bcrypt-hashed passwords. Suited
// for development and small installations.
type LocalBackend struct {
	mu    sync.RWMutex
	users map[string]*User // by lowercased email
}

func NewLocalBackend() *LocalBackend {
	return &LocalBackend{users: make(map[string]*User)}
}

// AddUser registers a user; the email is matched case-insensitively.
func (b *LocalBackend) AddUser(user *User) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users[strings.ToLower(user.Email)] = user
}

func (b *LocalBackend) Authenticate(ctx context.Context, email, password string) (*User, error) {
	b.mu.RLock()
	user, ok := b.users[strings.ToLower(email)]
	b.mu.RUnlock()
	if !ok || !user.CheckPassword(password) {
		// Same error either way; do not leak which emails exist.
		return nil, apperror.NewUnauthorized("invalid credentials")
	}
	if err := user.CanLogin(); err != nil {
		return nil, err
	}
	return user, nil
}

// StaticTokenBackend maps pre-shared API tokens to users; used by service
// accounts and the seed tooling.
type StaticTokenBackend struct {
	mu     sync.RWMutex
	tokens map[string]*User
}

func NewStaticTokenBackend() *StaticTokenBackend {
	return &StaticTokenBackend{tokens: make(map[string]*User)}
}

func (b *StaticTokenBackend) AddToken(token string, user *User) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens[token] = user
}

// Resolve returns the user for a pre-shared token.
func (b *StaticTokenBackend) Resolve(token string) (*User, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	user, ok := b.tokens[token]
	return user, ok
}

// Service ties a credential backend to JWT issuing.
type Service struct {
	backend CredentialBackend
	static  *StaticTokenBackend
	jwt     *JWTService
}

func NewService(backend CredentialBackend, static *StaticTokenBackend, jwtService *JWTService) *Service {
	return &Service{backend: backend, static: static, jwt: jwtService}
}

// LoginResult is the response of a successful login.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      *User     `json:"user"`
}

// Login authenticates credentials and issues an access token.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.backend.Authenticate(ctx, email, password)
	if err != nil {
		logger.Warn(ctx, "login rejected", "email", email)
		return nil, err
	}

	token, expiresAt, err := s.jwt.GenerateAccessToken(user)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	logger.Info(ctx, "login succeeded", "userId", user.ID.String())
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// Validate resolves a bearer token to a user context: static API tokens
// first, then JWT.
func (s *Service) Validate(token string) (*appctx.UserContext, error) {
	if s.static != nil {
		if user, ok := s.static.Resolve(token); ok {
			return &appctx.UserContext{
				UserID:    user.ID.String(),
				AccountID: user.AccountID,
				Email:     user.Email,
				Roles:     user.Roles,
				IsAdmin:   user.IsAdmin,
			}, nil
		}
	}
	uc, err := s.jwt.ValidateToken(token)
	if err != nil {
		return nil, apperror.NewUnauthorized("invalid or expired token")
	}
	return uc, nil
}
