package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestParseAndValidateToken(t *testing.T) {
	Configure("test-secret")
	t.Cleanup(func() { Configure("") })

	tok := sign(t, "test-secret", jwt.MapClaims{"sub": "u1", "typ": "access", "exp": time.Now().Add(time.Hour).Unix()})
	claims, err := ParseAndValidateToken(tok, "access")
	require.NoError(t, err)
	assert.Equal(t, "u1", claims["sub"])

	_, err = ParseAndValidateToken(tok, "refresh")
	assert.EqualError(t, err, "invalid token type")

	bad := sign(t, "other-secret", jwt.MapClaims{"sub": "u1"})
	_, err = ParseAndValidateToken(bad, "")
	assert.Error(t, err)

	expired := sign(t, "test-secret", jwt.MapClaims{"sub": "u1", "exp": time.Now().Add(-time.Minute).Unix()})
	_, err = ParseAndValidateToken(expired, "")
	assert.Error(t, err)
}

func TestParseAndValidateToken_NoSecret(t *testing.T) {
	Configure("")
	_, err := ParseAndValidateToken("x.y.z", "")
	assert.EqualError(t, err, "JWT secret not configured")
}

func TestBearerToken(t *testing.T) {
	tok, ok := BearerToken("Bearer abc.def")
	assert.True(t, ok)
	assert.Equal(t, "abc.def", tok)

	_, ok = BearerToken("abc.def")
	assert.False(t, ok)
	_, ok = BearerToken("Bearer ")
	assert.False(t, ok)
}
