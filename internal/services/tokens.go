package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "backoffice-server"

var (
	errTokenExpired = errors.New("token has expired")
	errTokenInvalid = errors.New("invalid token")
)

// Claims are the session token claims. The role is informational; requests
// re-read the account so role changes apply immediately.
type Claims struct {
	AccountID string `json:"id"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService issues and validates HS256 session tokens
type TokenService struct {
	signingKey []byte
	ttl        time.Duration
	now        func() time.Time
}

// NewTokenService creates a token service
func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{signingKey: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for the account
func (s *TokenService) Issue(accountID uuid.UUID, role string) (string, *Claims, error) {
	now := s.now()
	claims := &Claims{
		AccountID: accountID.String(),
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   accountID.String(),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

// Validate verifies signature, issuer and expiry
func (s *TokenService) Validate(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errTokenExpired
		}
		return nil, errTokenInvalid
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errTokenInvalid
	}
	return claims, nil
}
