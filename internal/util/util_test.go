package util

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndValidateJWT(t *testing.T) {
	token, err := SignJWT("0b7d6a2e-1c1f-4c36-9b1e-8a0f6f6d1a11", "secret", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateJWT(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, "0b7d6a2e-1c1f-4c36-9b1e-8a0f6f6d1a11", claims.ID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

func TestValidateJWTRejects(t *testing.T) {
	valid, err := SignJWT("user-1", "secret", time.Hour)
	require.NoError(t, err)
	expired, err := SignJWT("user-1", "secret", -time.Minute)
	require.NoError(t, err)
	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{ID: "user-1"}).SignedString([]byte("secret"))
	require.NoError(t, err)
	noID, err := SignJWT("", "secret", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		token  string
		secret string
	}{
		{"wrong secret", valid, "other"},
		{"expired", expired, "secret"},
		{"missing exp", noExpiry, "secret"},
		{"missing id", noID, "secret"},
		{"garbage", "not-a-token", "secret"},
		{"unsigned", "eyJhbGciOiJub25lIiwidHlwIjoiSldUIn0.eyJpZCI6InVzZXItMSJ9.", "secret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateJWT(tt.token, tt.secret)
			assert.Error(t, err)
		})
	}
}

func TestSignJWTRequiresSecret(t *testing.T) {
	_, err := SignJWT("user-1", "", time.Hour)
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("Abc123")
	require.NoError(t, err)
	assert.NotEqual(t, "Abc123", hash)
	assert.True(t, CheckPassword(hash, "Abc123"))
	assert.False(t, CheckPassword(hash, "abc123"))
	assert.False(t, CheckPassword("not-a-hash", "Abc123"))
}
