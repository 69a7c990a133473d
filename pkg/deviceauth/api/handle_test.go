package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/jwt-device-auth/pkg/device"
	"github.com/tendant/jwt-device-auth/pkg/deviceauth"
	"github.com/tendant/jwt-device-auth/pkg/login"
	"github.com/tendant/jwt-device-auth/pkg/tokencodec"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type apiEnv struct {
	handler http.Handler
	clock   *testClock
}

func setupAPI(t *testing.T, opts ...deviceauth.Option) *apiEnv {
	t.Helper()
	ctx := context.Background()

	loginService := login.NewLoginService(login.NewInMemLoginRepository())
	_, err := loginService.RegisterLogin(ctx, "alice", "s3cret-password")
	require.NoError(t, err)
	_, err = loginService.RegisterLogin(ctx, "bob", "s3cret-password")
	require.NoError(t, err)

	codec := tokencodec.NewJwtTokenCodec("jwt-device-auth", "jwt-device-auth", 5*time.Minute)
	clock := &testClock{now: time.Now().UTC()}

	opts = append([]deviceauth.Option{
		deviceauth.WithLegacySecret([]byte("legacy-process-secret")),
		deviceauth.WithNowFunc(clock.Now),
	}, opts...)

	service := deviceauth.NewDeviceAuthService(loginService, device.NewInMemDeviceRepository(), codec, opts...)
	return &apiEnv{
		handler: Handler(NewHandle(service)),
		clock:   clock,
	}
}

func (env *apiEnv) do(t *testing.T, method, target string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewBuffer(buf)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, target, reqBody)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	return rec
}

func (env *apiEnv) login(t *testing.T, headers map[string]string) ObtainTokenResponse {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/auth-token",
		ObtainTokenRequest{Username: "alice", Password: "s3cret-password"}, headers)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var response ObtainTokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	return response
}

func TestObtainToken_DeviceBound(t *testing.T) {
	env := setupAPI(t)

	rec := env.do(t, http.MethodPost, "/auth-token",
		ObtainTokenRequest{Username: "alice", Password: "s3cret-password"},
		map[string]string{HeaderDeviceModel: "Nokia", "User-Agent": "agent"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Len(t, response, 3)
	assert.NotEmpty(t, response["token"])
	assert.NotEmpty(t, response["permanent_token"])
	assert.NotEmpty(t, response["device_id"])
}

func TestObtainToken_LegacyMode(t *testing.T) {
	env := setupAPI(t, deviceauth.WithDeviceBound(false))

	rec := env.do(t, http.MethodPost, "/auth-token",
		ObtainTokenRequest{Username: "alice", Password: "s3cret-password"},
		map[string]string{HeaderDeviceModel: "Nokia", "User-Agent": "agent"})
	require.Equal(t, http.StatusOK, rec.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Len(t, response, 1)
	assert.NotEmpty(t, response["token"])
}

func TestObtainToken_InvalidCredentials(t *testing.T) {
	env := setupAPI(t)

	rec := env.do(t, http.MethodPost, "/auth-token",
		ObtainTokenRequest{Username: "alice", Password: "wrong"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Unable to log in with provided credentials.")
}

func TestObtainToken_MissingFields(t *testing.T) {
	env := setupAPI(t)

	rec := env.do(t, http.MethodPost, "/auth-token", ObtainTokenRequest{Username: "alice"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var response map[string]FieldError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Contains(t, response, "password")
	assert.NotContains(t, response, "username")
}

func TestRefreshToken(t *testing.T) {
	env := setupAPI(t)
	loginResponse := env.login(t, nil)

	rec := env.do(t, http.MethodPost, "/device-refresh-token", nil,
		map[string]string{HeaderPermanentToken: loginResponse.PermanentToken})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var response RefreshTokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.NotEmpty(t, response.Token)
	assert.NotEqual(t, loginResponse.Token, response.Token)
}

func TestRefreshToken_MissingHeader(t *testing.T) {
	env := setupAPI(t)

	rec := env.do(t, http.MethodPost, "/device-refresh-token", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var response map[string]FieldError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Contains(t, response, HeaderPermanentToken)
}

func TestRefreshToken_UnknownToken(t *testing.T) {
	env := setupAPI(t)

	rec := env.do(t, http.MethodPost, "/device-refresh-token", nil,
		map[string]string{HeaderPermanentToken: "23124csfdgfdhthfdfdf"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid permanent_token value.")
}

func TestRefreshToken_Expired(t *testing.T) {
	env := setupAPI(t)
	loginResponse := env.login(t, nil)

	env.clock.Advance(8 * 24 * time.Hour)

	rec := env.do(t, http.MethodPost, "/device-refresh-token", nil,
		map[string]string{HeaderPermanentToken: loginResponse.PermanentToken})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Permanent token has expired.")

	// the device was removed: the same credential is now simply unknown
	rec = env.do(t, http.MethodPost, "/device-refresh-token", nil,
		map[string]string{HeaderPermanentToken: loginResponse.PermanentToken})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid permanent_token value.")
}

func TestPermanentTokenHeaderGuard(t *testing.T) {
	env := setupAPI(t)
	loginResponse := env.login(t, nil)

	auth := map[string]string{
		"Authorization":      "Bearer " + loginResponse.Token,
		HeaderPermanentToken: loginResponse.PermanentToken,
	}

	targets := []struct {
		method string
		target string
	}{
		{http.MethodPost, "/auth-token"},
		{http.MethodDelete, "/device-logout"},
		{http.MethodGet, "/devices"},
		{http.MethodDelete, "/devices/" + loginResponse.DeviceID},
	}
	for _, tc := range targets {
		rec := env.do(t, tc.method, tc.target, nil, auth)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "%s %s must reject the permanent-token header", tc.method, tc.target)
		assert.Contains(t, rec.Body.String(), HeaderPermanentToken)
		assert.Contains(t, rec.Body.String(), "disallowed")
	}
}

func TestPermanentTokenHeaderGuard_LegacyModeInactive(t *testing.T) {
	env := setupAPI(t, deviceauth.WithDeviceBound(false))

	rec := env.do(t, http.MethodPost, "/auth-token",
		ObtainTokenRequest{Username: "alice", Password: "s3cret-password"},
		map[string]string{HeaderPermanentToken: "anything"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogout(t *testing.T) {
	env := setupAPI(t)
	loginResponse := env.login(t, nil)

	rec := env.do(t, http.MethodDelete, "/device-logout", nil, map[string]string{
		"Authorization": "Bearer " + loginResponse.Token,
		HeaderDeviceID:  loginResponse.DeviceID,
	})
	assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	// the deleted device can no longer sign access tokens
	rec = env.do(t, http.MethodGet, "/devices", nil, map[string]string{
		"Authorization": "Bearer " + loginResponse.Token,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogout_MissingDeviceIDHeader(t *testing.T) {
	env := setupAPI(t)
	loginResponse := env.login(t, nil)

	rec := env.do(t, http.MethodDelete, "/device-logout", nil, map[string]string{
		"Authorization": "Bearer " + loginResponse.Token,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Device-Id header must be present")
}

func TestLogout_ForeignDevice(t *testing.T) {
	env := setupAPI(t)
	aliceLogin := env.login(t, nil)

	rec := env.do(t, http.MethodPost, "/auth-token",
		ObtainTokenRequest{Username: "bob", Password: "s3cret-password"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var bobLogin ObtainTokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bobLogin))

	// bob cannot log out alice's device
	rec = env.do(t, http.MethodDelete, "/device-logout", nil, map[string]string{
		"Authorization": "Bearer " + bobLogin.Token,
		HeaderDeviceID:  aliceLogin.DeviceID,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListAndDeleteDevices(t *testing.T) {
	env := setupAPI(t)
	first := env.login(t, map[string]string{HeaderDeviceModel: "Nokia", "User-Agent": "agent"})
	env.clock.Advance(time.Minute)
	second := env.login(t, map[string]string{"User-Agent": "agent"})

	rec := env.do(t, http.MethodGet, "/devices", nil, map[string]string{
		"Authorization": "Bearer " + second.Token,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var devices []DeviceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &devices))
	require.Len(t, devices, 2)
	assert.Equal(t, first.DeviceID, devices[0].ID.String())
	assert.Equal(t, "Nokia", devices[0].Name)
	assert.Equal(t, "agent", devices[0].Details)
	assert.Equal(t, "agent", devices[1].Name)
	assert.Equal(t, "", devices[1].Details)

	rec = env.do(t, http.MethodDelete, "/devices/"+first.DeviceID, nil, map[string]string{
		"Authorization": "Bearer " + second.Token,
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/devices", nil, map[string]string{
		"Authorization": "Bearer " + second.Token,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	devices = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &devices))
	require.Len(t, devices, 1)
	assert.NotEqual(t, first.DeviceID, devices[0].ID.String())
}

func TestDeleteDevice_ForeignDevice(t *testing.T) {
	env := setupAPI(t)
	aliceLogin := env.login(t, nil)

	rec := env.do(t, http.MethodPost, "/auth-token",
		ObtainTokenRequest{Username: "bob", Password: "s3cret-password"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var bobLogin ObtainTokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bobLogin))

	rec = env.do(t, http.MethodDelete, "/devices/"+aliceLogin.DeviceID, nil, map[string]string{
		"Authorization": "Bearer " + bobLogin.Token,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
