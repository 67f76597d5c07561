package login

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBcryptHasherRoundTrip(t *testing.T) {
	h := NewBcryptHasher()

	hash, err := h.Hash("secret123")
	require.NoError(t, err)
	assert.NotEqual(t, "secret123", hash)

	ok, err := h.Verify("secret123", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("Secret123", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBcryptHasherSaltsEveryDigest(t *testing.T) {
	h := NewBcryptHasher()

	first, err := h.Hash("secret123")
	require.NoError(t, err)
	second, err := h.Hash("secret123")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestBcryptHasherEmptyPassword(t *testing.T) {
	h := NewBcryptHasher()

	_, err := h.Hash("")
	assert.Error(t, err)

	ok, err := h.Verify("", "some-hash")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBcryptHasherMalformedDigest(t *testing.T) {
	h := NewBcryptHasher()

	ok, err := h.Verify("secret123", "not-a-bcrypt-digest")
	require.NoError(t, err)
	assert.False(t, ok)
}
