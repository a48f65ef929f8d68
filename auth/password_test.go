package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, salt, err := HashPassword("s3cret-pass")
	require.NoError(t, err)
	assert.NotEmpty(t, salt)
	assert.NotContains(t, hash, "s3cret-pass")

	assert.NoError(t, CheckPassword(hash, salt, "s3cret-pass"))
	assert.ErrorIs(t, CheckPassword(hash, salt, "wrong"), ErrMismatch)
	assert.ErrorIs(t, CheckPassword(hash, "other-salt", "s3cret-pass"), ErrMismatch)
}

func TestHashPassword_SaltsDiffer(t *testing.T) {
	h1, s1, err := HashPassword("same")
	require.NoError(t, err)
	h2, s2, err := HashPassword("same")
	require.NoError(t, err)
	assert.NotEqual(t, s1, s2)
	assert.NotEqual(t, h1, h2)
}

func TestHashPassword_LongPasswordsNotTruncated(t *testing.T) {
	long := strings.Repeat("a", 100)
	hash, salt, err := HashPassword(long)
	require.NoError(t, err)
	assert.ErrorIs(t, CheckPassword(hash, salt, long[:80]), ErrMismatch)
	assert.NoError(t, CheckPassword(hash, salt, long))
}
