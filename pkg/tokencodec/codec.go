package tokencodec

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token verification failures are classified so callers can tell a bad token
// from a token whose signing device no longer exists.
var (
	ErrTokenMalformed        = errors.New("token is malformed")
	ErrTokenExpired          = errors.New("token has expired")
	ErrTokenSignatureInvalid = errors.New("token signature is invalid")
	ErrSecretResolution      = errors.New("unable to resolve token secret")
)

// Claims carries the application claims embedded in an access token.
// DeviceID identifies the device whose signing secret produced the token.
type Claims struct {
	Username string `json:"username,omitempty"`
	DeviceID string `json:"device_id,omitempty"`
	jwt.RegisteredClaims
}

// SecretResolver returns the signing secret for a token given its unverified
// claims. The claims passed in have NOT been authenticated; implementations
// may only use them to look up the secret, never to authorize anything.
type SecretResolver func(unverified *Claims) ([]byte, error)

// TokenCodec issues and verifies signed tokens with caller-supplied secrets.
type TokenCodec interface {
	IssueToken(claims *Claims, secret []byte) (string, error)
	VerifyToken(tokenStr string, resolver SecretResolver) (*Claims, error)
}

// JwtTokenCodec implements TokenCodec using HS256 JWTs.
type JwtTokenCodec struct {
	Issuer   string
	Audience string
	Expiry   time.Duration
	Leeway   time.Duration
}

// NewJwtTokenCodec creates a new JwtTokenCodec
func NewJwtTokenCodec(issuer, audience string, expiry time.Duration) *JwtTokenCodec {
	return &JwtTokenCodec{
		Issuer:   issuer,
		Audience: audience,
		Expiry:   expiry,
		Leeway:   30 * time.Second,
	}
}

// IssueToken fills in the registered claims and signs with the given secret.
func (c *JwtTokenCodec) IssueToken(claims *Claims, secret []byte) (string, error) {
	now := time.Now().UTC()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(c.Expiry)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now.Add(-5 * time.Minute)),
		Issuer:    c.Issuer,
		Subject:   claims.Subject,
		ID:        uuid.New().String(),
		Audience:  jwt.ClaimStrings{c.Audience},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString(secret)
	if err != nil {
		slog.Error("Failed to sign token", "err", err)
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return ss, nil
}

// VerifyToken parses tokenStr in two phases. The first parse extracts the
// claim set without checking the signature, so the resolver can pick the
// right secret (the secret depends on the device_id claim). The second parse
// redoes everything with the resolved secret: signature, expiry, not-before,
// audience and issuer, all with the configured leeway. Only the claims from
// the second parse are returned.
func (c *JwtTokenCodec) VerifyToken(tokenStr string, resolver SecretResolver) (*Claims, error) {
	parser := jwt.NewParser()
	unverified := &Claims{}
	if _, _, err := parser.ParseUnverified(tokenStr, unverified); err != nil {
		slog.Debug("Failed to parse token", "err", err)
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}

	secret, err := resolver(unverified)
	if err != nil {
		slog.Debug("Failed to resolve token secret", "err", err)
		return nil, fmt.Errorf("%w: %v", ErrSecretResolution, err)
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims,
		func(t *jwt.Token) (interface{}, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.Issuer),
		jwt.WithAudience(c.Audience),
		jwt.WithLeeway(c.Leeway),
	)
	if err != nil {
		return nil, classifyParseError(err)
	}
	if !token.Valid {
		return nil, ErrTokenMalformed
	}

	return claims, nil
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrTokenSignatureInvalid, err)
	default:
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
}

// StaticSecretResolver returns a resolver that ignores the claims and always
// yields the same secret. Used when token auth is not device-bound.
func StaticSecretResolver(secret []byte) SecretResolver {
	return func(*Claims) ([]byte, error) {
		return secret, nil
	}
}
