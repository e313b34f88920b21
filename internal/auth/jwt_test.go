package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWT_SignAndVerify(t *testing.T) {
	svc := NewJWTService("secret", time.Hour)
	token, err := svc.SignToken(42, "alice", "admin")
	require.NoError(t, err)

	claims, err := svc.VerifyToken(token)
	require.NoError(t, err)
	assert.EqualValues(t, 42, claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "admin", claims.Role)

	id, err := svc.UserIDFromToken(token)
	require.NoError(t, err)
	assert.EqualValues(t, 42, id)
}

func TestJWT_Rejects(t *testing.T) {
	svc := NewJWTService("secret", time.Hour)
	token, err := svc.SignToken(1, "a", "user")
	require.NoError(t, err)

	_, err = NewJWTService("other", time.Hour).VerifyToken(token)
	assert.Error(t, err)

	expired, err := NewJWTService("secret", -time.Minute).SignToken(1, "a", "user")
	require.NoError(t, err)
	_, err = svc.VerifyToken(expired)
	assert.Error(t, err)

	_, err = svc.VerifyToken("not-a-jwt")
	assert.Error(t, err)
}
