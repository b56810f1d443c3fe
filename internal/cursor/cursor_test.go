package cursor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	t.Run("id and timestamp", func(t *testing.T) {
		ts := time.Date(2024, 3, 1, 10, 15, 30, 0, time.UTC)
		c := Cursor{LastIncidentID: 1042, LastRunAt: ts}

		parsed, err := Parse(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, parsed)
	})

	t.Run("bare integer from older deployments", func(t *testing.T) {
		parsed, err := Parse("977")
		require.NoError(t, err)
		assert.Equal(t, int64(977), parsed.LastIncidentID)
		assert.True(t, parsed.LastRunAt.IsZero())
	})

	t.Run("zero cursor encodes as bare integer", func(t *testing.T) {
		assert.Equal(t, "0", Cursor{}.String())
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := Parse("not-a-cursor")
		assert.Error(t, err)
	})

	t.Run("bad timestamp", func(t *testing.T) {
		_, err := Parse("7@tomorrow")
		assert.Error(t, err)
	})
}

func TestFilesystemStore(t *testing.T) {
	ctx := context.Background()

	t.Run("absent key", func(t *testing.T) {
		s := NewFilesystemStore(t.TempDir())

		_, found, err := s.Get(ctx, "sirsync")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("put then get", func(t *testing.T) {
		s := NewFilesystemStore(t.TempDir())

		require.NoError(t, s.Put(ctx, "sirsync", "1042@2024-03-01T10:15:30Z"))
		value, found, err := s.Get(ctx, "sirsync")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "1042@2024-03-01T10:15:30Z", value)
	})

	t.Run("overwrite", func(t *testing.T) {
		s := NewFilesystemStore(t.TempDir())

		require.NoError(t, s.Put(ctx, "sirsync", "10"))
		require.NoError(t, s.Put(ctx, "sirsync", "20"))

		value, found, err := s.Get(ctx, "sirsync")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "20", value)
	})

	t.Run("creates base directory on demand", func(t *testing.T) {
		s := NewFilesystemStore(t.TempDir() + "/nested/cursors")
		require.NoError(t, s.Put(ctx, "sirsync", "1"))
	})
}
