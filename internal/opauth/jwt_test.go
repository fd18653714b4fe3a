package opauth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "taxbridge/pkg/errors"
)

func TestGenerateAndValidate(t *testing.T) {
	svc := NewJWTService("test-signing-key", "taxbridge")

	token, err := svc.GenerateToken("bat.erdene", RoleAdmin, time.Hour)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "bat.erdene", claims.Operator)
	assert.Equal(t, RoleAdmin, claims.Role)
	assert.NotEmpty(t, claims.ID)
}

func TestExpiredTokenRejected(t *testing.T) {
	svc := NewJWTService("test-signing-key", "taxbridge")

	token, err := svc.GenerateToken("bat.erdene", RoleOperator, -time.Minute)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
	assert.Contains(t, err.Error(), "expired")
}

func TestWrongKeyRejected(t *testing.T) {
	issuer := NewJWTService("key-a", "taxbridge")
	verifier := NewJWTService("key-b", "taxbridge")

	token, err := issuer.GenerateToken("bat.erdene", RoleOperator, time.Hour)
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
}

func TestGarbageTokenRejected(t *testing.T) {
	svc := NewJWTService("test-signing-key", "taxbridge")
	_, err := svc.ValidateToken("not-a-jwt")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
}
