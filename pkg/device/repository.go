// Package device stores registered device credentials for jwt-device-auth.
//
// A Device binds one login to a permanent token (the refresh credential) and
// a per-device signing secret (the HMAC key for every access token issued to
// that device). Repositories are single-row stores: every mutation touches at
// most one device, and the conditional Touch/Delete operations keep
// concurrent refreshes of the same device from corrupting the activity
// timestamp.
package device

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrDeviceNotFound = errors.New("device not found")

// Device represents one registered client installation.
type Device struct {
	ID      uuid.UUID `json:"id"`
	LoginID uuid.UUID `json:"login_id"`
	Name    string    `json:"name"`
	Details string    `json:"details"`
	// PermanentToken is the long-lived refresh credential. Immutable.
	PermanentToken string `json:"-"`
	// SigningSecret signs access tokens for this device. Never leaves the server.
	SigningSecret string    `json:"-"`
	CreatedAt     time.Time `json:"created"`
	LastRequestAt time.Time `json:"last_request_datetime"`
}

// DeviceRepository defines the interface for device storage operations
type DeviceRepository interface {
	CreateDevice(ctx context.Context, device Device) (Device, error)
	GetDeviceByPermanentToken(ctx context.Context, permanentToken string) (Device, error)
	GetDeviceByID(ctx context.Context, id uuid.UUID) (Device, error)
	// FindDevicesByLogin returns the login's devices ordered by creation
	// time, ties broken by id.
	FindDevicesByLogin(ctx context.Context, loginID uuid.UUID) ([]Device, error)
	// TouchDevice advances last_request_at to now. The update is monotonic:
	// a concurrent touch that already wrote a later timestamp wins and this
	// call still succeeds. Returns ErrDeviceNotFound if the device is gone.
	TouchDevice(ctx context.Context, id uuid.UUID, now time.Time) error
	// DeleteDevice removes the device if it belongs to loginID.
	DeleteDevice(ctx context.Context, loginID, id uuid.UUID) error
	// DeleteDeviceIfInactiveSince removes the device only while its
	// last_request_at is at or before cutoff. Idempotent: losing the race to
	// a concurrent delete or touch is not an error.
	DeleteDeviceIfInactiveSince(ctx context.Context, id uuid.UUID, cutoff time.Time) error
}

// NewDevice allocates a device record with fresh credentials. Uniqueness of
// the permanent token and signing secret comes from 256 bits of entropy each,
// not from a retry loop.
func NewDevice(loginID uuid.UUID, name, details string, now time.Time) (Device, error) {
	permanentToken, err := generateSecret()
	if err != nil {
		return Device{}, fmt.Errorf("failed to generate permanent token: %w", err)
	}
	signingSecret, err := generateSecret()
	if err != nil {
		return Device{}, fmt.Errorf("failed to generate signing secret: %w", err)
	}

	return Device{
		ID:             uuid.New(),
		LoginID:        loginID,
		Name:           name,
		Details:        details,
		PermanentToken: permanentToken,
		SigningSecret:  signingSecret,
		CreatedAt:      now,
		LastRequestAt:  now,
	}, nil
}

func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
