package tonconnect

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorage(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrStorageKeyNotFound)

	require.NoError(t, s.Set(ctx, "k", "v"))
	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	require.NoError(t, s.Remove(ctx, "k"))
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrStorageKeyNotFound)
}

func TestFileStorage(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tonconnect.json")
	s := NewFileStorage(path)

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrStorageKeyNotFound)

	require.NoError(t, s.Set(ctx, "a", "1"))
	require.NoError(t, s.Set(ctx, "b", "2"))

	// A second instance sees the same file.
	again := NewFileStorage(path)
	v, err := again.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	require.NoError(t, again.Remove(ctx, "a"))
	_, err = s.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrStorageKeyNotFound)

	v, err = s.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "2", v)
}

func TestPendingExpired(t *testing.T) {
	stale := func(updatedAt int64, event string) string {
		var conn connection
		conn.Type = "http"
		conn.Session.PrivateKey = "aa"
		conn.UpdatedAt = updatedAt
		if event != "" {
			conn.ConnectEvent = []byte(event)
		}
		raw, err := conn.encode()
		require.NoError(t, err)
		return raw
	}

	old := time.Now().Add(-2 * time.Hour).Unix()
	fresh := time.Now().Unix()

	assert.True(t, pendingExpired(stale(old, ""), time.Hour))
	assert.False(t, pendingExpired(stale(fresh, ""), time.Hour))
	// Completed handshakes are never swept.
	assert.False(t, pendingExpired(stale(old, `{"items":[]}`), time.Hour))
	// Garbage records are.
	assert.True(t, pendingExpired("{not json", time.Hour))
}

func TestStorageKeyNamespacing(t *testing.T) {
	assert.Equal(t, "tonconnect:42:connection", storageKey("42", keyConnection))
	assert.NotEqual(t, storageKey("1", keyConnection), storageKey("2", keyConnection))
}
