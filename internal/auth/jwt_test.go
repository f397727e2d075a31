package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJWTService(t *testing.T) {
	service := NewJWTService("test-secret-key", time.Hour)

	assert.NotNil(t, service)
	assert.Equal(t, []byte("test-secret-key"), service.secret)
	assert.Equal(t, time.Hour, service.tokenTTL)
}

func TestGenerateAndVerifyToken(t *testing.T) {
	service := NewJWTService("test-secret", time.Hour)

	token, err := service.GenerateToken(7, "pilot@example.com", false)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	principal, err := service.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), principal.UserID)
	assert.Equal(t, "pilot@example.com", principal.Email)
	assert.False(t, principal.IsAdmin)
}

func TestVerifyAdminClaim(t *testing.T) {
	service := NewJWTService("test-secret", time.Hour)

	token, err := service.GenerateToken(1, "admin@example.com", true)
	require.NoError(t, err)

	principal, err := service.Verify(token)
	require.NoError(t, err)
	assert.True(t, principal.IsAdmin)
}

func TestVerifyEmptyToken(t *testing.T) {
	service := NewJWTService("test-secret", time.Hour)

	_, err := service.Verify("")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyMalformedToken(t *testing.T) {
	service := NewJWTService("test-secret", time.Hour)

	_, err := service.Verify("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyExpiredToken(t *testing.T) {
	service := NewJWTService("test-secret", -time.Minute)

	token, err := service.GenerateToken(7, "pilot@example.com", false)
	require.NoError(t, err)

	_, err = service.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestVerifyWrongSecret(t *testing.T) {
	issuing := NewJWTService("secret-a", time.Hour)
	verifying := NewJWTService("secret-b", time.Hour)

	token, err := issuing.GenerateToken(7, "pilot@example.com", false)
	require.NoError(t, err)

	_, err = verifying.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyClaimsIssuer(t *testing.T) {
	service := NewJWTService("test-secret", time.Hour)

	token, err := service.GenerateToken(7, "pilot@example.com", false)
	require.NoError(t, err)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "groundlink", claims.RegisteredClaims.Issuer)
	assert.Equal(t, "7", claims.RegisteredClaims.Subject)
}
