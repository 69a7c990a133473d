package login

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// LoginService validates primary credentials and registers logins
type LoginService struct {
	repository LoginRepository
	hasher     PasswordHasher
}

// Option configures a LoginService
type Option func(*LoginService)

// WithPasswordHasher overrides the default bcrypt hasher
func WithPasswordHasher(hasher PasswordHasher) Option {
	return func(s *LoginService) {
		s.hasher = hasher
	}
}

// NewLoginService creates a new login service with the given repository
func NewLoginService(repository LoginRepository, opts ...Option) *LoginService {
	s := &LoginService{
		repository: repository,
		hasher:     &BcryptHasher{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterLogin creates a login with a hashed password
func (s *LoginService) RegisterLogin(ctx context.Context, username, password string) (Login, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		slog.Error("Failed to hash password", "err", err)
		return Login{}, fmt.Errorf("failed to hash password: %w", err)
	}

	created, err := s.repository.CreateLogin(ctx, Login{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: hash,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		slog.Error("Failed to create login", "err", err, "username", username)
		return Login{}, fmt.Errorf("failed to create login: %w", err)
	}

	slog.Info("Login registered", "loginID", created.ID, "username", created.Username)
	return created, nil
}

// ValidateCredentials checks username and password against the store.
// Unknown user, wrong password and inactive account all return
// ErrInvalidCredentials.
func (s *LoginService) ValidateCredentials(ctx context.Context, username, password string) (Login, error) {
	l, err := s.repository.GetLoginByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrLoginNotFound) {
			slog.Debug("Login not found", "username", username)
			return Login{}, ErrInvalidCredentials
		}
		slog.Error("Failed to get login", "err", err, "username", username)
		return Login{}, fmt.Errorf("failed to get login: %w", err)
	}

	ok, err := s.hasher.Verify(password, l.PasswordHash)
	if err != nil {
		slog.Error("Failed to verify password", "err", err)
		return Login{}, fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok || !l.IsActive {
		slog.Debug("Credential validation failed", "username", username, "active", l.IsActive)
		return Login{}, ErrInvalidCredentials
	}

	return l, nil
}

// GetLoginByID looks up a login by id
func (s *LoginService) GetLoginByID(ctx context.Context, id uuid.UUID) (Login, error) {
	return s.repository.GetLoginByID(ctx, id)
}
