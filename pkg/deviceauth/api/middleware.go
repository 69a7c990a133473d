package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/tendant/jwt-device-auth/pkg/deviceauth"
)

// Header names used by the device auth protocol.
const (
	HeaderPermanentToken = "Permanent-Token"
	HeaderDeviceID       = "Device-Id"
	HeaderDeviceModel    = "X-Device-Model"
)

type contextKey string

// AuthUserKey is the request context key holding the authenticated *AuthUser
const AuthUserKey contextKey = "authUser"

// AuthUser is the identity extracted from a verified access token
type AuthUser struct {
	LoginID  uuid.UUID
	Username string
	DeviceID string
}

// GetAuthUser returns the authenticated user from the request context
func GetAuthUser(r *http.Request) (*AuthUser, bool) {
	authUser, ok := r.Context().Value(AuthUserKey).(*AuthUser)
	return authUser, ok && authUser != nil
}

// PermittedHeadersMiddleware rejects any request carrying the
// Permanent-Token header. The permanent token is long-lived and worth more
// than any access token, so its exposure surface is limited to exactly one
// endpoint: the refresh route is mounted outside this middleware, everything
// else sits behind it.
func PermittedHeadersMiddleware(service *deviceauth.DeviceAuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if service.DeviceBound() && r.Header.Get(HeaderPermanentToken) != "" {
				slog.Warn("Permanent-Token header on non-refresh request", "path", r.URL.Path)
				renderFieldError(w, r, http.StatusBadRequest, HeaderPermanentToken,
					fmt.Sprintf("Using the %s header is disallowed for %s", HeaderPermanentToken, r.URL.Path))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AuthMiddleware verifies the bearer access token and puts the resulting
// AuthUser in the request context. Returns 401 Unauthorized on any
// verification failure.
func AuthMiddleware(service *deviceauth.DeviceAuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := bearerToken(r)
			if tokenStr == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := service.VerifyAccess(r.Context(), tokenStr)
			if err != nil {
				slog.Debug("Access token verification failed", "err", err)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			loginID, err := uuid.Parse(claims.Subject)
			if err != nil {
				slog.Error("Verified token carries no usable subject", "err", err)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			authUser := &AuthUser{
				LoginID:  loginID,
				Username: claims.Username,
				DeviceID: claims.DeviceID,
			}
			ctx := context.WithValue(r.Context(), AuthUserKey, authUser)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	authorization := r.Header.Get("Authorization")
	if len(authorization) > 7 && strings.EqualFold(authorization[:7], "bearer ") {
		return authorization[7:]
	}
	return ""
}
