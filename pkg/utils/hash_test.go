package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashOrRead(t *testing.T) {
	h, err := HashOrRead("hunter2")
	require.NoError(t, err)
	require.NoError(t, bcrypt.CompareHashAndPassword(h, []byte("hunter2")))

	// Pre-hashed values pass through untouched.
	got, err := HashOrRead(string(h))
	require.NoError(t, err)
	assert.Equal(t, string(h), string(got))
}

func TestHashOrReadOverlongPassword(t *testing.T) {
	// bcrypt refuses passwords longer than 72 bytes; the error must surface.
	_, err := HashOrRead(strings.Repeat("x", 80))
	assert.Error(t, err)
}
