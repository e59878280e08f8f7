package auth

import (
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"schoolpoints/relay/internal/constants"
)

// AdminClaims authorizes institution-level operations like approving a device
// pairing. Station traffic never carries one of these; stations authenticate
// with their tenant API key instead.
type AdminClaims struct {
	TenantID string `json:"tenant_id"`
	jwt.RegisteredClaims
}

// Secret returns the HMAC signing key from the environment.
func Secret() []byte {
	return []byte(os.Getenv("JWT_SECRET"))
}

func GenerateAdminToken(secret []byte, tenantID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := AdminClaims{
		TenantID: tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   tenantID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign admin token: %w", err)
	}
	return signed, nil
}

func ParseAdminToken(secret []byte, raw string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return nil, constants.ErrUnauthorized
	}
	return claims, nil
}
