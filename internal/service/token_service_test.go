package service

import (
	"testing"
	"time"

	"lexpay/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "test-jwt-secret-key-for-unit-tests"

func TestJWTTokenService_GenerateAndValidate(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, 24*time.Hour, "lexpay")

	tokenStr, expiresAt, err := svc.Generate("firebase-uid-42", "")
	require.NoError(t, err)
	assert.NotEmpty(t, tokenStr)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := svc.Validate(tokenStr)
	require.NoError(t, err)
	assert.Equal(t, "firebase-uid-42", claims.Subject)
	assert.Empty(t, claims.Role)
}

func TestJWTTokenService_RoleClaim(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, time.Hour, "lexpay")

	tokenStr, _, err := svc.Generate("agent-7", ports.RoleSupport)
	require.NoError(t, err)

	claims, err := svc.Validate(tokenStr)
	require.NoError(t, err)
	assert.Equal(t, ports.RoleSupport, claims.Role)
}

func TestJWTTokenService_ExpiredToken(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, -1*time.Hour, "lexpay")

	tokenStr, _, err := svc.Generate("u1", "")
	require.NoError(t, err)

	_, err = svc.Validate(tokenStr)
	assert.Error(t, err, "expired token should fail validation")
}

func TestJWTTokenService_InvalidSignature(t *testing.T) {
	svc1 := NewJWTTokenService("secret-1", 24*time.Hour, "lexpay")
	svc2 := NewJWTTokenService("secret-2", 24*time.Hour, "lexpay")

	tokenStr, _, err := svc1.Generate("u1", "")
	require.NoError(t, err)

	_, err = svc2.Validate(tokenStr)
	assert.Error(t, err, "token signed with different secret should fail")
}

func TestJWTTokenService_WrongIssuer(t *testing.T) {
	other := NewJWTTokenService(testJWTSecret, time.Hour, "someone-else")
	tokenStr, _, err := other.Generate("u1", "")
	require.NoError(t, err)

	_, err = NewJWTTokenService(testJWTSecret, time.Hour, "lexpay").Validate(tokenStr)
	assert.Error(t, err)
}

func TestJWTTokenService_InvalidTokenString(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, 24*time.Hour, "lexpay")

	_, err := svc.Validate("not.a.valid.jwt")
	assert.Error(t, err)

	_, err = svc.Validate("")
	assert.Error(t, err)
}

func TestJWTTokenService_NoSecretConfigured(t *testing.T) {
	svc := NewJWTTokenService("", time.Hour, "lexpay")

	_, _, err := svc.Generate("u1", "")
	assert.Error(t, err)

	_, err = svc.Validate("a.b.c")
	assert.Error(t, err)
}
