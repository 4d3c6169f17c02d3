package filestore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/IvanBrykalov/dexcache/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	value := strings.Repeat(`{"id":1,"name":"bulbasaur"}`, 100)
	require.NoError(t, s.Set("dexcache/blob", value))

	got, ok, err := s.Get("dexcache/blob")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, value, got)

	// The key is escaped into a single file and the content is compressed.
	info, err := os.Stat(filepath.Join(dir, "dexcache%2Fblob.zst"))
	require.NoError(t, err)
	assert.Less(t, info.Size(), int64(len(value)))

	// A second instance over the same directory sees the value.
	s2, err := New(dir, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s2.Close() })
	got, ok, err = s2.Get("dexcache/blob")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, value, got)

	require.NoError(t, s.Delete("dexcache/blob"))
	_, ok, err = s.Get("dexcache/blob")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, s.Delete("dexcache/blob"))
}

func TestStore_Quota(t *testing.T) {
	s, err := New(t.TempDir(), 16)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	// Incompressible-enough payload larger than the quota.
	err = s.Set("big", "a1b2c3d4e5f6g7h8i9j0k1l2m3n4o5p6q7r8s9t0")
	assert.ErrorIs(t, err, store.ErrQuotaExceeded)

	_, ok, err := s.Get("big")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.zst"), []byte("not zstd"), 0o644))
	_, _, err = s.Get("bad")
	assert.Error(t, err)
}
