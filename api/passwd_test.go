package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordRoundTrip(t *testing.T) {
	assert := assert.New(t)

	hash, err := encodePassword("correct horse battery staple")
	require.NoError(t, err)
	assert.NotContains(hash, "correct horse")

	assert.NoError(verifyPassword(hash, "correct horse battery staple"))
	assert.ErrorIs(verifyPassword(hash, "wrong password"), ErrInvalidEmailOrPassword)
}

func TestPasswordHashesAreSalted(t *testing.T) {
	assert := assert.New(t)

	h1, err := encodePassword("same password")
	require.NoError(t, err)
	h2, err := encodePassword("same password")
	require.NoError(t, err)

	assert.NotEqual(h1, h2)
	assert.NoError(verifyPassword(h1, "same password"))
	assert.NoError(verifyPassword(h2, "same password"))
}

func TestVerifyPasswordMalformedHash(t *testing.T) {
	assert := assert.New(t)

	assert.ErrorIs(verifyPassword("not-a-stored-hash", "whatever"), ErrInvalidEmailOrPassword)
	assert.ErrorIs(verifyPassword("", "whatever"), ErrInvalidEmailOrPassword)
}
