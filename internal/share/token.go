package share

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid or expired share token")
)

// TokenManager signs and validates read-only summary view tokens, so a
// shared link grants access to exactly one split without any session.
type TokenManager struct {
	secretKey     []byte
	tokenDuration time.Duration
}

// Claims carries the split a share token grants access to.
type Claims struct {
	SplitID string `json:"split_id"`
	jwt.RegisteredClaims
}

// NewTokenManager creates a token manager with the given secret and
// validity duration. secretKey should be a strong random string.
func NewTokenManager(secretKey string, tokenDuration time.Duration) *TokenManager {
	return &TokenManager{
		secretKey:     []byte(secretKey),
		tokenDuration: tokenDuration,
	}
}

// Issue creates a signed token granting read access to the given split.
func (m *TokenManager) Issue(splitID string) (string, error) {
	claims := &Claims{
		SplitID: splitID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// Validate parses a share token and returns the split ID it grants.
func (m *TokenManager) Validate(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return m.secretKey, nil
		},
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.SplitID == "" {
		return "", ErrInvalidToken
	}
	return claims.SplitID, nil
}
