// Package deviceauth implements the device-bound credential protocol: device
// registration at login, access tokens signed with a per-device secret, and
// permanent-token refresh with a sliding expiration window.
package deviceauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/jwt-device-auth/pkg/device"
	"github.com/tendant/jwt-device-auth/pkg/login"
	"github.com/tendant/jwt-device-auth/pkg/tokencodec"
)

// DeviceHints carries the transport-level metadata used to label a new device.
type DeviceHints struct {
	DeviceModel string // X-Device-Model header
	UserAgent   string // User-Agent header
}

// LoginResult is the outcome of a successful primary login. PermanentToken
// and DeviceID are zero on the legacy path.
type LoginResult struct {
	Token          string
	PermanentToken string
	DeviceID       uuid.UUID
}

// RefreshOutcome tags what a refresh did to the device record.
type RefreshOutcome int

const (
	// RefreshRenewed: a new access token was issued; the device survives.
	RefreshRenewed RefreshOutcome = iota
	// RefreshExpiredAndRemoved: the device sat past the expiration delta and
	// has been deleted. There is no way back except a full login.
	RefreshExpiredAndRemoved
)

// RefreshResult pairs the outcome tag with the renewed token (if any).
type RefreshResult struct {
	Outcome RefreshOutcome
	Token   string
}

// DeviceAuthService is the core state machine binding logins, devices and
// access tokens together. It is the only writer to the device store.
type DeviceAuthService struct {
	loginService *login.LoginService
	deviceRepo   device.DeviceRepository
	codec        tokencodec.TokenCodec

	deviceBound     bool
	expirationDelta time.Duration
	accuracyDelta   time.Duration
	legacySecret    []byte
	payloadFunc     PayloadFunc
	now             func() time.Time
}

// NewDeviceAuthService creates a new device auth service
func NewDeviceAuthService(loginService *login.LoginService, deviceRepo device.DeviceRepository, codec tokencodec.TokenCodec, opts ...Option) *DeviceAuthService {
	s := &DeviceAuthService{
		loginService:    loginService,
		deviceRepo:      deviceRepo,
		codec:           codec,
		deviceBound:     true,
		expirationDelta: DefaultExpirationDelta,
		accuracyDelta:   DefaultAccuracyDelta,
		payloadFunc:     DefaultPayloadFunc,
		now:             func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DeviceBound reports whether device-bound auth is enabled
func (s *DeviceAuthService) DeviceBound() bool {
	return s.deviceBound
}

// Login validates primary credentials and, in device-bound mode, registers a
// new device and issues an access token signed with that device's secret.
// Every successful login creates a fresh device, even for a client that has
// logged in before; old registrations age out through the refresh protocol.
func (s *DeviceAuthService) Login(ctx context.Context, username, password string, hints DeviceHints) (LoginResult, error) {
	l, err := s.loginService.ValidateCredentials(ctx, username, password)
	if err != nil {
		return LoginResult{}, err
	}

	if !s.deviceBound {
		token, err := s.codec.IssueToken(s.payloadFunc(l, nil), s.legacySecret)
		if err != nil {
			return LoginResult{}, fmt.Errorf("failed to issue token: %w", err)
		}
		return LoginResult{Token: token}, nil
	}

	name, details := deriveDeviceDetails(hints)
	d, err := device.NewDevice(l.ID, name, details, s.now())
	if err != nil {
		return LoginResult{}, err
	}
	created, err := s.deviceRepo.CreateDevice(ctx, d)
	if err != nil {
		return LoginResult{}, fmt.Errorf("failed to register device: %w", err)
	}

	token, err := s.codec.IssueToken(s.payloadFunc(l, &created), []byte(created.SigningSecret))
	if err != nil {
		return LoginResult{}, fmt.Errorf("failed to issue token: %w", err)
	}

	slog.Info("Device registered at login", "loginID", l.ID, "deviceID", created.ID, "name", created.Name)
	return LoginResult{
		Token:          token,
		PermanentToken: created.PermanentToken,
		DeviceID:       created.ID,
	}, nil
}

// Refresh exchanges a permanent token for a fresh access token. A device
// past the expiration delta is deleted as a side effect, tagged in the
// result. A refresh within the accuracy delta of the last persisted one does
// not write: the expiration clock runs from the last persisted timestamp, so
// only writes extend the deadline.
func (s *DeviceAuthService) Refresh(ctx context.Context, permanentToken string) (RefreshResult, error) {
	if permanentToken == "" {
		return RefreshResult{}, ErrInvalidPermanentToken
	}

	d, err := s.deviceRepo.GetDeviceByPermanentToken(ctx, permanentToken)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			return RefreshResult{}, ErrInvalidPermanentToken
		}
		return RefreshResult{}, fmt.Errorf("failed to look up device: %w", err)
	}

	now := s.now()
	elapsed := now.Sub(d.LastRequestAt)

	if elapsed > s.expirationDelta {
		// conditional on the row still being inactive, so a refresh racing
		// this delete cannot lose a row it just extended
		if err := s.deviceRepo.DeleteDeviceIfInactiveSince(ctx, d.ID, now.Add(-s.expirationDelta)); err != nil {
			return RefreshResult{}, fmt.Errorf("failed to remove expired device: %w", err)
		}
		slog.Info("Expired device removed on refresh", "deviceID", d.ID, "elapsed", elapsed)
		return RefreshResult{Outcome: RefreshExpiredAndRemoved}, ErrPermanentTokenExpired
	}

	if elapsed > s.accuracyDelta {
		if err := s.deviceRepo.TouchDevice(ctx, d.ID, now); err != nil {
			if errors.Is(err, device.ErrDeviceNotFound) {
				// lost a race against logout or expiry
				return RefreshResult{}, ErrInvalidPermanentToken
			}
			return RefreshResult{}, fmt.Errorf("failed to touch device: %w", err)
		}
	}

	l, err := s.loginService.GetLoginByID(ctx, d.LoginID)
	if err != nil {
		if errors.Is(err, login.ErrLoginNotFound) {
			return RefreshResult{}, ErrInvalidPermanentToken
		}
		return RefreshResult{}, fmt.Errorf("failed to load login: %w", err)
	}

	token, err := s.codec.IssueToken(s.payloadFunc(l, &d), []byte(d.SigningSecret))
	if err != nil {
		return RefreshResult{}, fmt.Errorf("failed to issue token: %w", err)
	}

	return RefreshResult{Outcome: RefreshRenewed, Token: token}, nil
}

// VerifyAccess verifies an access token. In device-bound mode the signing
// secret is resolved from the unverified device_id claim; a deleted device
// surfaces as tokencodec.ErrSecretResolution, distinct from signature and
// format errors, so clients can force a full re-login.
func (s *DeviceAuthService) VerifyAccess(ctx context.Context, tokenStr string) (*tokencodec.Claims, error) {
	if !s.deviceBound {
		return s.codec.VerifyToken(tokenStr, tokencodec.StaticSecretResolver(s.legacySecret))
	}

	return s.codec.VerifyToken(tokenStr, func(unverified *tokencodec.Claims) ([]byte, error) {
		deviceID, err := uuid.Parse(unverified.DeviceID)
		if err != nil {
			return nil, fmt.Errorf("token carries no usable device id: %w", err)
		}
		d, err := s.deviceRepo.GetDeviceByID(ctx, deviceID)
		if err != nil {
			return nil, err
		}
		return []byte(d.SigningSecret), nil
	})
}

// Logout deletes the given device, ending its permanent-token registration.
// The device must belong to loginID; a foreign or unknown id is
// ErrDeviceNotFound.
func (s *DeviceAuthService) Logout(ctx context.Context, loginID, deviceID uuid.UUID) error {
	return s.DeleteDevice(ctx, loginID, deviceID)
}

// ListDevices returns the login's devices ordered by creation time
func (s *DeviceAuthService) ListDevices(ctx context.Context, loginID uuid.UUID) ([]device.Device, error) {
	devices, err := s.deviceRepo.FindDevicesByLogin(ctx, loginID)
	if err != nil {
		return nil, fmt.Errorf("failed to find devices: %w", err)
	}
	return devices, nil
}

// DeleteDevice removes one of the login's devices
func (s *DeviceAuthService) DeleteDevice(ctx context.Context, loginID, deviceID uuid.UUID) error {
	if err := s.deviceRepo.DeleteDevice(ctx, loginID, deviceID); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			return device.ErrDeviceNotFound
		}
		return fmt.Errorf("failed to delete device: %w", err)
	}
	slog.Info("Device deleted", "loginID", loginID, "deviceID", deviceID)
	return nil
}

// deriveDeviceDetails labels a device from its transport metadata: a
// client-supplied model string wins as the name with the user agent kept as
// details; otherwise the user agent itself becomes the name.
func deriveDeviceDetails(hints DeviceHints) (name, details string) {
	if hints.DeviceModel != "" {
		return hints.DeviceModel, hints.UserAgent
	}
	return hints.UserAgent, ""
}
