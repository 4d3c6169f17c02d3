package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_SetGetDelete(t *testing.T) {
	s := NewMemory(0)

	require.NoError(t, s.Set("a", "1"))
	v, ok, err := s.Get("a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	require.NoError(t, s.Delete("a"))
	_, ok, err = s.Get("a")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, s.Used())

	// Deleting an absent key is fine.
	assert.NoError(t, s.Delete("missing"))
}

func TestMemory_Quota(t *testing.T) {
	s := NewMemory(8)

	require.NoError(t, s.Set("k", "1234567")) // 8 bytes
	assert.ErrorIs(t, s.Set("x", "y"), ErrQuotaExceeded)

	// Replacing a value accounts for the old one.
	require.NoError(t, s.Set("k", "123"))
	assert.Equal(t, 4, s.Used())

	// A failed write leaves the previous value in place.
	assert.ErrorIs(t, s.Set("k", "123456789"), ErrQuotaExceeded)
	v, _, _ := s.Get("k")
	assert.Equal(t, "123", v)
}

func TestNoop(t *testing.T) {
	var s Store = Noop{}
	require.NoError(t, s.Set("a", "1"))
	_, ok, err := s.Get("a")
	assert.NoError(t, err)
	assert.False(t, ok)
}
