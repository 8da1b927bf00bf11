package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("secret"))

	token, expiresAt, err := svc.GenerateAccessToken("user-1", "clerk@example.com", []string{"stock.write"})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, time.Minute)

	user, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.UserID)
	assert.Equal(t, "clerk@example.com", user.Email)
	assert.Equal(t, []string{"stock.write"}, user.Roles)
}

func TestJWTService_Rejects(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("secret"))

	expired := NewJWTService(JWTConfig{Secret: "secret", Issuer: "kardex", AccessTokenTTL: -time.Minute})
	expiredToken, _, err := expired.GenerateAccessToken("u", "", nil)
	require.NoError(t, err)

	otherKey := NewJWTService(DefaultJWTConfig("other"))
	wrongKeyToken, _, err := otherKey.GenerateAccessToken("u", "", nil)
	require.NoError(t, err)

	otherIssuer := NewJWTService(JWTConfig{Secret: "secret", Issuer: "someone-else", AccessTokenTTL: time.Minute})
	wrongIssuerToken, _, err := otherIssuer.GenerateAccessToken("u", "", nil)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "kardex", Subject: "u"},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "kardex",
			Subject:   "u",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := map[string]string{
		"garbage":      "not-a-token",
		"expired":      expiredToken,
		"wrong key":    wrongKeyToken,
		"wrong issuer": wrongIssuerToken,
		"no expiry":    noExpiry,
		"wrong alg":    hs512,
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestJWTService_SubjectFallback(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("secret"))

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "kardex",
			Subject:   "user-9",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	user, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-9", user.UserID)
}
