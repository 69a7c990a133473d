// Package login is the primary identity store for jwt-device-auth: username,
// bcrypt password hash and active flag. Device registration and token
// issuance live in pkg/deviceauth; this package only answers "are these
// credentials valid" and never learns about devices.
package login

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrLoginNotFound = errors.New("login not found")
	// ErrInvalidCredentials covers unknown user, wrong password and inactive
	// account alike so responses cannot be used to probe for usernames.
	ErrInvalidCredentials = errors.New("unable to log in with provided credentials")
)

// Login represents an authenticating principal.
type Login struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// LoginRepository defines the interface for login storage operations
type LoginRepository interface {
	CreateLogin(ctx context.Context, login Login) (Login, error)
	GetLoginByUsername(ctx context.Context, username string) (Login, error)
	GetLoginByID(ctx context.Context, id uuid.UUID) (Login, error)
}
