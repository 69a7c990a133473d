package config

import (
	"time"
)

// JWTConfig holds access token signing configuration. Secret is only used
// when device binding is disabled; in device-bound mode each device signs
// with its own secret.
type JWTConfig struct {
	Secret            string `env:"JWT_SECRET" env-default:"very-secure-jwt-secret"`
	Issuer            string `env:"JWT_ISSUER" env-default:"jwt-device-auth"`
	Audience          string `env:"JWT_AUDIENCE" env-default:"jwt-device-auth"`
	AccessTokenExpiry string `env:"ACCESS_TOKEN_EXPIRY" env-default:"5m"`
}

// ParseAccessTokenExpiry parses the access token expiry duration
func (j JWTConfig) ParseAccessTokenExpiry() (time.Duration, error) {
	return time.ParseDuration(j.AccessTokenExpiry)
}

// NewJWTConfigFromEnv creates a JWTConfig from environment variables
func NewJWTConfigFromEnv() JWTConfig {
	return JWTConfig{
		Secret:            GetEnvOrDefault("JWT_SECRET", "very-secure-jwt-secret"),
		Issuer:            GetEnvOrDefault("JWT_ISSUER", "jwt-device-auth"),
		Audience:          GetEnvOrDefault("JWT_AUDIENCE", "jwt-device-auth"),
		AccessTokenExpiry: GetEnvOrDefault("ACCESS_TOKEN_EXPIRY", "5m"),
	}
}

// DeviceConfig holds the permanent token lifecycle configuration
type DeviceConfig struct {
	DeviceBound     bool   `env:"DEVICE_BOUND" env-default:"true"`
	ExpirationDelta string `env:"DEVICE_EXPIRATION_DELTA" env-default:"168h"`
	AccuracyDelta   string `env:"DEVICE_ACCURACY_DELTA" env-default:"30m"`
	PersistenceType string `env:"DEVICE_PERSISTENCE_TYPE" env-default:"postgres"`
}

// ParseExpirationDelta parses the permanent token inactivity window
func (d DeviceConfig) ParseExpirationDelta() (time.Duration, error) {
	return time.ParseDuration(d.ExpirationDelta)
}

// ParseAccuracyDelta parses the last-request write coalescing window
func (d DeviceConfig) ParseAccuracyDelta() (time.Duration, error) {
	return time.ParseDuration(d.AccuracyDelta)
}

// NewDeviceConfigFromEnv creates a DeviceConfig from environment variables
func NewDeviceConfigFromEnv() DeviceConfig {
	return DeviceConfig{
		DeviceBound:     GetEnvBool("DEVICE_BOUND", true),
		ExpirationDelta: GetEnvDuration("DEVICE_EXPIRATION_DELTA", 168*time.Hour).String(),
		AccuracyDelta:   GetEnvDuration("DEVICE_ACCURACY_DELTA", 30*time.Minute).String(),
		PersistenceType: GetEnvOrDefault("DEVICE_PERSISTENCE_TYPE", "postgres"),
	}
}
