package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/tendant/jwt-device-auth/pkg/deviceauth"
)

// Handle handles HTTP requests for the device auth protocol
type Handle struct {
	service *deviceauth.DeviceAuthService
}

// NewHandle creates a new device auth handler
func NewHandle(service *deviceauth.DeviceAuthService) *Handle {
	return &Handle{service: service}
}

// ObtainTokenRequest represents the request body for the primary login
type ObtainTokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ObtainTokenResponse carries the access token plus, in device-bound mode,
// the refresh credential and device id
type ObtainTokenResponse struct {
	Token          string `json:"token"`
	PermanentToken string `json:"permanent_token,omitempty"`
	DeviceID       string `json:"device_id,omitempty"`
}

// RefreshTokenResponse represents the response body for a token refresh
type RefreshTokenResponse struct {
	Token string `json:"token"`
}

// DeviceResponse is one entry of the device list
type DeviceResponse struct {
	ID                  uuid.UUID `json:"id"`
	Created             time.Time `json:"created"`
	Name                string    `json:"name"`
	Details             string    `json:"details"`
	LastRequestDatetime time.Time `json:"last_request_datetime"`
}

// FieldError scopes an error message to the request field or header that
// caused it
type FieldError struct {
	Details string `json:"details"`
}

// ObtainToken handles the primary login: validates credentials, registers a
// device in device-bound mode and returns the token bundle
func (h *Handle) ObtainToken(w http.ResponseWriter, r *http.Request) {
	var req ObtainTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Debug("Failed to decode request body", "err", err)
		renderFieldError(w, r, http.StatusBadRequest, "non_field_errors", "Invalid request body.")
		return
	}

	fieldErrors := map[string]FieldError{}
	if req.Username == "" {
		fieldErrors["username"] = FieldError{Details: "This field is required."}
	}
	if req.Password == "" {
		fieldErrors["password"] = FieldError{Details: "This field is required."}
	}
	if len(fieldErrors) > 0 {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, fieldErrors)
		return
	}

	hints := deviceauth.DeviceHints{
		DeviceModel: r.Header.Get(HeaderDeviceModel),
		UserAgent:   r.UserAgent(),
	}

	result, err := h.service.Login(r.Context(), req.Username, req.Password, hints)
	if err != nil {
		if errors.Is(err, deviceauth.ErrInvalidCredentials) {
			renderFieldError(w, r, http.StatusBadRequest, "non_field_errors",
				"Unable to log in with provided credentials.")
			return
		}
		slog.Error("Login failed", "err", err)
		renderFieldError(w, r, http.StatusInternalServerError, "non_field_errors", "Unable to log in.")
		return
	}

	response := ObtainTokenResponse{Token: result.Token}
	if result.DeviceID != uuid.Nil {
		response.PermanentToken = result.PermanentToken
		response.DeviceID = result.DeviceID.String()
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, response)
}

// RefreshToken exchanges the Permanent-Token header for a fresh access token
func (h *Handle) RefreshToken(w http.ResponseWriter, r *http.Request) {
	permanentToken := r.Header.Get(HeaderPermanentToken)
	if permanentToken == "" {
		renderFieldError(w, r, http.StatusBadRequest, HeaderPermanentToken, "This header is required.")
		return
	}

	result, err := h.service.Refresh(r.Context(), permanentToken)
	if err != nil {
		switch {
		case errors.Is(err, deviceauth.ErrPermanentTokenExpired):
			renderFieldError(w, r, http.StatusBadRequest, HeaderPermanentToken, "Permanent token has expired.")
		case errors.Is(err, deviceauth.ErrInvalidPermanentToken):
			renderFieldError(w, r, http.StatusBadRequest, HeaderPermanentToken, "Invalid permanent_token value.")
		default:
			slog.Error("Refresh failed", "err", err)
			renderFieldError(w, r, http.StatusInternalServerError, HeaderPermanentToken, "Unable to refresh token.")
		}
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, RefreshTokenResponse{Token: result.Token})
}

// Logout deletes the device named by the Device-Id header, ending its
// permanent-token registration
func (h *Handle) Logout(w http.ResponseWriter, r *http.Request) {
	authUser, ok := GetAuthUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	deviceIDStr := r.Header.Get(HeaderDeviceID)
	if deviceIDStr == "" {
		renderFieldError(w, r, http.StatusBadRequest, HeaderDeviceID,
			"Device-Id header must be present in the request headers.")
		return
	}

	deviceID, err := uuid.Parse(deviceIDStr)
	if err != nil {
		renderFieldError(w, r, http.StatusNotFound, HeaderDeviceID, "Device does not exist.")
		return
	}

	if err := h.service.Logout(r.Context(), authUser.LoginID, deviceID); err != nil {
		if errors.Is(err, deviceauth.ErrDeviceNotFound) {
			renderFieldError(w, r, http.StatusNotFound, HeaderDeviceID, "Device does not exist.")
			return
		}
		slog.Error("Logout failed", "err", err, "deviceID", deviceID)
		renderFieldError(w, r, http.StatusInternalServerError, HeaderDeviceID, "Unable to log out.")
		return
	}

	render.NoContent(w, r)
}

// ListDevices returns the caller's devices ordered by creation time
func (h *Handle) ListDevices(w http.ResponseWriter, r *http.Request) {
	authUser, ok := GetAuthUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	devices, err := h.service.ListDevices(r.Context(), authUser.LoginID)
	if err != nil {
		slog.Error("Failed to list devices", "err", err, "loginID", authUser.LoginID)
		renderFieldError(w, r, http.StatusInternalServerError, "non_field_errors", "Unable to list devices.")
		return
	}

	response := make([]DeviceResponse, 0, len(devices))
	for _, d := range devices {
		response = append(response, DeviceResponse{
			ID:                  d.ID,
			Created:             d.CreatedAt,
			Name:                d.Name,
			Details:             d.Details,
			LastRequestDatetime: d.LastRequestAt,
		})
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, response)
}

// DeleteDevice removes one of the caller's devices by path id
func (h *Handle) DeleteDevice(w http.ResponseWriter, r *http.Request) {
	authUser, ok := GetAuthUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	deviceID, err := uuid.Parse(chi.URLParam(r, "device_id"))
	if err != nil {
		renderFieldError(w, r, http.StatusNotFound, "device_id", "Device does not exist.")
		return
	}

	if err := h.service.DeleteDevice(r.Context(), authUser.LoginID, deviceID); err != nil {
		if errors.Is(err, deviceauth.ErrDeviceNotFound) {
			renderFieldError(w, r, http.StatusNotFound, "device_id", "Device does not exist.")
			return
		}
		slog.Error("Failed to delete device", "err", err, "deviceID", deviceID)
		renderFieldError(w, r, http.StatusInternalServerError, "device_id", "Unable to delete device.")
		return
	}

	render.NoContent(w, r)
}

// Handler returns an http.Handler for the device auth API. The refresh
// route is the only one mounted outside the permanent-token header guard.
func Handler(h *Handle) http.Handler {
	r := chi.NewRouter()

	r.Post("/device-refresh-token", h.RefreshToken)

	r.Group(func(r chi.Router) {
		r.Use(PermittedHeadersMiddleware(h.service))

		r.Post("/auth-token", h.ObtainToken)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(h.service))
			r.Delete("/device-logout", h.Logout)
			r.Get("/devices", h.ListDevices)
			r.Delete("/devices/{device_id}", h.DeleteDevice)
		})
	})

	return r
}

// renderFieldError renders an error scoped to the offending field or header
func renderFieldError(w http.ResponseWriter, r *http.Request, statusCode int, field, details string) {
	render.Status(r, statusCode)
	render.JSON(w, r, map[string]FieldError{field: {Details: details}})
}
