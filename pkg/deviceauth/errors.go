package deviceauth

import (
	"errors"

	"github.com/tendant/jwt-device-auth/pkg/device"
	"github.com/tendant/jwt-device-auth/pkg/login"
)

var (
	// ErrInvalidPermanentToken covers a missing, malformed or unknown
	// permanent token. Callers surface it as a 400, never a 404, so a
	// response cannot confirm that any token value exists.
	ErrInvalidPermanentToken = errors.New("invalid permanent_token value")

	// ErrPermanentTokenExpired is returned after the expired device has
	// already been removed from the store. The removal is irreversible; the
	// client must log in again.
	ErrPermanentTokenExpired = errors.New("permanent token has expired")
)

// Re-exported so API code depends on one package for the whole taxonomy.
var (
	ErrInvalidCredentials = login.ErrInvalidCredentials
	ErrDeviceNotFound     = device.ErrDeviceNotFound
)
