package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseToken(t *testing.T) {
	maker := NewMaker("test-secret", time.Minute)

	token, err := maker.GenerateToken("a@x.com", "admin")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := maker.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", claims.Email)
	assert.Equal(t, "admin", claims.Role)
}

func TestParseTokenExpired(t *testing.T) {
	maker := NewMaker("test-secret", -time.Minute)

	token, err := maker.GenerateToken("a@x.com", "general")
	require.NoError(t, err)

	_, err = maker.ParseToken(token)
	assert.Error(t, err)
}

func TestParseTokenWrongKey(t *testing.T) {
	maker := NewMaker("test-secret", time.Minute)
	other := NewMaker("other-secret", time.Minute)

	token, err := maker.GenerateToken("a@x.com", "general")
	require.NoError(t, err)

	_, err = other.ParseToken(token)
	assert.Error(t, err)
}
