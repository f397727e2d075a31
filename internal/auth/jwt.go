// Package auth verifies operator bearer tokens. Signup, login and password
// management live in a separate auth service sharing the same JWT secret;
// the core only answers "who is this principal?".
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when the token is invalid
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when the token has expired
	ErrExpiredToken = errors.New("token has expired")
	// ErrInvalidClaims is returned when the token claims are invalid
	ErrInvalidClaims = errors.New("invalid token claims")
)

// Principal is the verified identity behind a bearer token.
type Principal struct {
	UserID  int64
	Email   string
	IsAdmin bool
}

// Claims represents the JWT claims for authentication
type Claims struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// Verifier answers "who is this principal?" for a bearer token. The hub and
// the request surface both validate through it.
type Verifier interface {
	Verify(bearer string) (Principal, error)
}

// JWTService handles JWT token generation and validation
type JWTService struct {
	secret   []byte
	tokenTTL time.Duration
}

// NewJWTService creates a new JWT service instance
func NewJWTService(secret string, tokenTTL time.Duration) *JWTService {
	return &JWTService{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
	}
}

// GenerateToken generates a signed token for a principal. The core never
// issues tokens in production, but the shared secret makes the service
// usable for tooling and tests.
func (s *JWTService) GenerateToken(userID int64, email string, isAdmin bool) (string, error) {
	now := time.Now()
	subject := strconv.FormatInt(userID, 10)
	claims := &Claims{
		UserID:  subject,
		Email:   email,
		IsAdmin: isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "groundlink",
			Subject:   subject,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// Verify validates a bearer token and returns the principal behind it.
func (s *JWTService) Verify(bearer string) (Principal, error) {
	claims, err := s.ValidateToken(bearer)
	if err != nil {
		return Principal{}, err
	}

	userID, err := strconv.ParseInt(claims.UserID, 10, 64)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: invalid user ID format", ErrInvalidClaims)
	}

	return Principal{UserID: userID, Email: claims.Email, IsAdmin: claims.IsAdmin}, nil
}

// ValidateToken validates a JWT token and returns its claims
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	// Parse the token
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Verify signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	// Extract claims
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}

	return claims, nil
}
