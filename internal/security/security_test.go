package security_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tazhibayda/account-service/internal/security"
)

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := security.HashPassword("Secret1!")
	require.NoError(t, err)
	require.NotEqual(t, "Secret1!", hash)

	require.True(t, security.CheckPassword(hash, "Secret1!"))
	require.False(t, security.CheckPassword(hash, "secret1!"))
	require.False(t, security.CheckPassword(hash, ""))
	require.False(t, security.CheckPassword("", "Secret1!"))
}

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := security.MakeAccess("s3cret", "64f000000000000000000001", "u@example.com", "student", time.Minute)
	require.NoError(t, err)

	c, err := security.ParseAccess("s3cret", tok)
	require.NoError(t, err)
	require.Equal(t, "64f000000000000000000001", c.UID)
	require.Equal(t, "u@example.com", c.Email)
	require.Equal(t, "student", c.Role)
	require.Equal(t, c.UID, c.Subject)
}

func TestAccessTokenRejectsWrongSecret(t *testing.T) {
	tok, err := security.MakeAccess("s3cret", "u1", "u@example.com", "student", time.Minute)
	require.NoError(t, err)

	_, err = security.ParseAccess("other", tok)
	require.Error(t, err)
}

func TestAccessTokenRejectsExpired(t *testing.T) {
	tok, err := security.MakeAccess("s3cret", "u1", "u@example.com", "student", -time.Minute)
	require.NoError(t, err)

	_, err = security.ParseAccess("s3cret", tok)
	require.Error(t, err)
}

func TestResetTokens(t *testing.T) {
	a, err := security.NewResetToken()
	require.NoError(t, err)
	b, err := security.NewResetToken()
	require.NoError(t, err)
	require.NotEqual(t, a, b)

	// hashing is deterministic and never the identity
	require.Equal(t, security.HashResetToken(a), security.HashResetToken(a))
	require.NotEqual(t, a, security.HashResetToken(a))
	require.NotEqual(t, security.HashResetToken(a), security.HashResetToken(b))
}
