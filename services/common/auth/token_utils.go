package auth

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v4"
	"github.com/joho/godotenv"
)

var (
	mu        sync.RWMutex
	secretKey []byte
)

func init() {
	_ = godotenv.Load()
	Configure(os.Getenv("JWT_SECRET"))
}

// Configure replaces the HMAC secret, e.g. after it was read from Secrets Manager.
// An empty secret makes every token fail validation.
func Configure(secret string) {
	secret = strings.TrimSpace(secret)
	mu.Lock()
	defer mu.Unlock()
	if secret == "" {
		secretKey = nil
		return
	}
	secretKey = []byte(secret)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}

// ParseAndValidateToken parses a JWT token string and returns its claims.
// If expectedType is non-empty, the claim "typ" must match it.
func ParseAndValidateToken(tokenStr, expectedType string) (jwt.MapClaims, error) {
	mu.RLock()
	key := secretKey
	mu.RUnlock()
	if key == nil {
		return nil, fmt.Errorf("JWT secret not configured")
	}

	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return key, nil
	})

	if err != nil || token == nil || !token.Valid {
		return nil, fmt.Errorf("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}
	if expectedType != "" {
		if typ, ok := claims["typ"].(string); !ok || typ != expectedType {
			return nil, fmt.Errorf("invalid token type")
		}
	}
	return claims, nil
}
