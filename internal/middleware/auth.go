// Package middleware provides gin middleware for the request surface.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/akorchak/groundlink/internal/auth"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// PrincipalKey is the context key for the authenticated principal
	PrincipalKey ContextKey = "principal"
)

// AuthMiddleware provides authentication middleware
type AuthMiddleware struct {
	verifier auth.Verifier
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(verifier auth.Verifier) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
	}
}

// Required returns a middleware that requires a valid bearer token.
// Returns 401 Unauthorized if the token is missing or invalid.
func (m *AuthMiddleware) Required() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := m.extractAndVerify(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": err.Error(),
			})
			c.Abort()
			return
		}

		c.Set(string(PrincipalKey), principal)
		c.Next()
	}
}

// AdminRequired returns a middleware that requires an admin principal.
// Returns 401 for missing or invalid tokens and 403 for non-admins.
func (m *AuthMiddleware) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := m.extractAndVerify(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": err.Error(),
			})
			c.Abort()
			return
		}
		if !principal.IsAdmin {
			c.JSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "administrator role required",
			})
			c.Abort()
			return
		}

		c.Set(string(PrincipalKey), principal)
		c.Next()
	}
}

// extractAndVerify extracts the bearer token from the request and verifies it
func (m *AuthMiddleware) extractAndVerify(c *gin.Context) (auth.Principal, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return auth.Principal{}, errors.New("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return auth.Principal{}, errors.New("invalid authorization header format")
	}

	tokenString := parts[1]
	if tokenString == "" {
		return auth.Principal{}, errors.New("missing token")
	}

	return m.verifier.Verify(tokenString)
}

// GetPrincipal retrieves the authenticated principal from the context
func GetPrincipal(c *gin.Context) (auth.Principal, error) {
	value, exists := c.Get(string(PrincipalKey))
	if !exists {
		return auth.Principal{}, errors.New("user not authenticated")
	}

	principal, ok := value.(auth.Principal)
	if !ok {
		return auth.Principal{}, errors.New("invalid principal in context")
	}

	return principal, nil
}

// MustGetPrincipal retrieves the principal from context, panics if not found.
// Use this only in handlers protected by Required() middleware.
func MustGetPrincipal(c *gin.Context) auth.Principal {
	principal, err := GetPrincipal(c)
	if err != nil {
		panic("MustGetPrincipal called without auth middleware: " + err.Error())
	}
	return principal
}
