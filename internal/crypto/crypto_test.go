package crypto

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	salt, err := GenerateSalt()
	require.NoError(t, err)

	digest, err := HashPassword("secret", salt)
	require.NoError(t, err)
	assert.NotEmpty(t, digest)

	assert.True(t, VerifyPassword("secret", salt, digest))
	assert.False(t, VerifyPassword("wrong", salt, digest))

	// a different salt produces a different digest
	otherSalt, err := GenerateSalt()
	require.NoError(t, err)
	otherDigest, err := HashPassword("secret", otherSalt)
	require.NoError(t, err)
	assert.NotEqual(t, digest, otherDigest)
	assert.False(t, VerifyPassword("secret", otherSalt, digest))
}

func TestHashPasswordRejectsBadSalt(t *testing.T) {
	_, err := HashPassword("secret", "not-hex")
	assert.Error(t, err)

	_, err = HashPassword("secret", "abcd") // too short
	assert.Error(t, err)
}

func TestGenerateSalt(t *testing.T) {
	salt, err := GenerateSalt()
	require.NoError(t, err)

	raw, err := hex.DecodeString(salt)
	require.NoError(t, err)
	assert.Len(t, raw, SaltBytes)
}

func TestGenerateAuthToken(t *testing.T) {
	a, err := GenerateAuthToken(AuthTokenBytes)
	require.NoError(t, err)
	b, err := GenerateAuthToken(AuthTokenBytes)
	require.NoError(t, err)

	assert.Len(t, a, AuthTokenBytes*2)
	assert.NotEqual(t, a, b)
}
