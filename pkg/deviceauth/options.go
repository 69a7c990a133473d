package deviceauth

import (
	"time"

	"github.com/tendant/jwt-device-auth/pkg/device"
	"github.com/tendant/jwt-device-auth/pkg/login"
	"github.com/tendant/jwt-device-auth/pkg/tokencodec"
)

const (
	// DefaultExpirationDelta is the maximum gap since the last persisted
	// refresh before a device is expired and removed.
	DefaultExpirationDelta = 7 * 24 * time.Hour
	// DefaultAccuracyDelta bounds refresh-induced writes: refreshes closer
	// together than this do not persist a new timestamp.
	DefaultAccuracyDelta = 30 * time.Minute
)

// PayloadFunc builds the token claims for a login. The device is nil on the
// legacy (non-device-bound) path.
type PayloadFunc func(l login.Login, d *device.Device) *tokencodec.Claims

// DefaultPayloadFunc embeds the login id as subject, the username, and the
// device id when present.
func DefaultPayloadFunc(l login.Login, d *device.Device) *tokencodec.Claims {
	claims := &tokencodec.Claims{
		Username: l.Username,
	}
	claims.Subject = l.ID.String()
	if d != nil {
		claims.DeviceID = d.ID.String()
	}
	return claims
}

// Option configures a DeviceAuthService
type Option func(*DeviceAuthService)

// WithDeviceBound enables or disables device-bound token auth. Disabled,
// the service issues tokens signed with the legacy secret and creates no
// device records. This is a process-wide switch set at startup.
func WithDeviceBound(enabled bool) Option {
	return func(s *DeviceAuthService) {
		s.deviceBound = enabled
	}
}

// WithExpirationDelta overrides DefaultExpirationDelta
func WithExpirationDelta(d time.Duration) Option {
	return func(s *DeviceAuthService) {
		s.expirationDelta = d
	}
}

// WithAccuracyDelta overrides DefaultAccuracyDelta
func WithAccuracyDelta(d time.Duration) Option {
	return func(s *DeviceAuthService) {
		s.accuracyDelta = d
	}
}

// WithLegacySecret sets the process-wide signing secret used when
// device-bound auth is disabled
func WithLegacySecret(secret []byte) Option {
	return func(s *DeviceAuthService) {
		s.legacySecret = secret
	}
}

// WithPayloadFunc overrides DefaultPayloadFunc
func WithPayloadFunc(fn PayloadFunc) Option {
	return func(s *DeviceAuthService) {
		s.payloadFunc = fn
	}
}

// WithNowFunc overrides the clock, for tests
func WithNowFunc(now func() time.Time) Option {
	return func(s *DeviceAuthService) {
		s.now = now
	}
}
