package jwttoken

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "eventreg/pkg/domain-errors"
)

var jwtService = NewJWTService(
	"test-signing-key",
	"test-issuer",
	"test-audience",
)

const subject = "ops@example.com"

func assertUnauthorized(t *testing.T, err error, message string) {
	t.Helper()
	de, ok := dErrors.As(err)
	require.True(t, ok, "expected domain error, got %v", err)
	assert.Equal(t, dErrors.CodeUnauthorized, de.Code)
	assert.Equal(t, message, de.Message)
}

func Test_GenerateAdminToken(t *testing.T) {
	token, err := jwtService.GenerateAdminToken(subject, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := jwtService.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, subject, claims.Subject)
	assert.Equal(t, RoleAdmin, claims.Role)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func Test_ValidateToken_InvalidToken(t *testing.T) {
	_, err := jwtService.ValidateToken("invalid-token-string")
	assertUnauthorized(t, err, "invalid token")
}

func Test_ValidateToken_ExpiredToken(t *testing.T) {
	token, err := jwtService.GenerateAdminToken(subject, -time.Hour)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	assertUnauthorized(t, err, "token has expired")
}

func Test_ValidateToken_WrongKey(t *testing.T) {
	other := NewJWTService("other-key", "test-issuer", "test-audience")
	token, err := other.GenerateAdminToken(subject, time.Hour)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	assertUnauthorized(t, err, "invalid token")
}

func Test_ValidateToken_WrongAudience(t *testing.T) {
	other := NewJWTService("test-signing-key", "test-issuer", "someone-else")
	token, err := other.GenerateAdminToken(subject, time.Hour)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	assertUnauthorized(t, err, "invalid token")
}

func Test_ValidateToken_MissingRole(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    "test-issuer",
			Audience:  []string{"test-audience"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("test-signing-key"))
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	assertUnauthorized(t, err, "admin role required")
}

func Test_AdminValidatorAdapter(t *testing.T) {
	adapter := NewAdminValidatorAdapter(jwtService)
	token, err := jwtService.GenerateAdminToken(subject, time.Hour)
	require.NoError(t, err)

	got, err := adapter.ValidateSubject(token)
	require.NoError(t, err)
	assert.Equal(t, subject, got)

	_, err = adapter.ValidateSubject("nope")
	assert.Error(t, err)
}
