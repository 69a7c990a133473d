package tokencodec

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCodec() *JwtTokenCodec {
	return NewJwtTokenCodec("jwt-device-auth", "jwt-device-auth", 5*time.Minute)
}

func TestJwtTokenCodec_IssueAndVerify(t *testing.T) {
	codec := newTestCodec()
	secret := []byte("device-secret")

	tokenStr, err := codec.IssueToken(&Claims{
		Username: "alice",
		DeviceID: "device-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: "login-1",
		},
	}, secret)
	require.NoError(t, err)
	require.NotEmpty(t, tokenStr)

	claims, err := codec.VerifyToken(tokenStr, func(unverified *Claims) ([]byte, error) {
		assert.Equal(t, "device-1", unverified.DeviceID)
		return secret, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "device-1", claims.DeviceID)
	assert.Equal(t, "login-1", claims.Subject)
}

func TestJwtTokenCodec_VerifyWrongSecret(t *testing.T) {
	codec := newTestCodec()

	tokenStr, err := codec.IssueToken(&Claims{DeviceID: "device-1"}, []byte("secret-a"))
	require.NoError(t, err)

	_, err = codec.VerifyToken(tokenStr, StaticSecretResolver([]byte("secret-b")))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTokenSignatureInvalid)
}

func TestJwtTokenCodec_VerifyExpired(t *testing.T) {
	codec := newTestCodec()
	codec.Expiry = -2 * time.Hour
	codec.Leeway = 0
	secret := []byte("device-secret")

	tokenStr, err := codec.IssueToken(&Claims{DeviceID: "device-1"}, secret)
	require.NoError(t, err)

	_, err = codec.VerifyToken(tokenStr, StaticSecretResolver(secret))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestJwtTokenCodec_VerifyMalformed(t *testing.T) {
	codec := newTestCodec()

	_, err := codec.VerifyToken("not-a-token", StaticSecretResolver([]byte("secret")))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTokenMalformed)
}

func TestJwtTokenCodec_VerifySecretResolutionFailure(t *testing.T) {
	codec := newTestCodec()

	tokenStr, err := codec.IssueToken(&Claims{DeviceID: "gone"}, []byte("secret"))
	require.NoError(t, err)

	resolverErr := errors.New("device not found")
	_, err = codec.VerifyToken(tokenStr, func(*Claims) ([]byte, error) {
		return nil, resolverErr
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSecretResolution)
	assert.NotErrorIs(t, err, ErrTokenSignatureInvalid)
}

func TestJwtTokenCodec_VerifyWrongAudience(t *testing.T) {
	codec := newTestCodec()
	other := NewJwtTokenCodec("jwt-device-auth", "another-audience", 5*time.Minute)
	secret := []byte("device-secret")

	tokenStr, err := other.IssueToken(&Claims{DeviceID: "device-1"}, secret)
	require.NoError(t, err)

	_, err = codec.VerifyToken(tokenStr, StaticSecretResolver(secret))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTokenMalformed)
}

func TestJwtTokenCodec_TwoTokensSameDeviceBothVerify(t *testing.T) {
	codec := newTestCodec()
	secret := []byte("device-secret")

	first, err := codec.IssueToken(&Claims{DeviceID: "device-1"}, secret)
	require.NoError(t, err)
	second, err := codec.IssueToken(&Claims{DeviceID: "device-1"}, secret)
	require.NoError(t, err)

	// jti differs, so the tokens differ even when issued in the same second
	assert.NotEqual(t, first, second)

	_, err = codec.VerifyToken(first, StaticSecretResolver(secret))
	assert.NoError(t, err)
	_, err = codec.VerifyToken(second, StaticSecretResolver(secret))
	assert.NoError(t, err)
}
