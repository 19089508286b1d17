package blobstore

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()

	local, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	return map[string]Store{
		"local":  local,
		"memory": NewMemory(),
	}
}

func TestStore(t *testing.T) {
	ctx := context.Background()

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("PutOpenRoundTrip", func(t *testing.T) {
				require.NoError(t, s.Put(ctx, "a/snapshot.fzs", strings.NewReader("payload")))

				rc, err := s.Open(ctx, "a/snapshot.fzs")
				require.NoError(t, err)
				defer rc.Close()

				data, err := io.ReadAll(rc)
				require.NoError(t, err)
				assert.Equal(t, "payload", string(data))
			})

			t.Run("OpenMissing", func(t *testing.T) {
				_, err := s.Open(ctx, "nope")
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("PutReplaces", func(t *testing.T) {
				require.NoError(t, s.Put(ctx, "b", strings.NewReader("old")))
				require.NoError(t, s.Put(ctx, "b", strings.NewReader("new")))

				rc, err := s.Open(ctx, "b")
				require.NoError(t, err)
				defer rc.Close()

				data, err := io.ReadAll(rc)
				require.NoError(t, err)
				assert.Equal(t, "new", string(data))
			})

			t.Run("Delete", func(t *testing.T) {
				require.NoError(t, s.Put(ctx, "c", strings.NewReader("x")))
				require.NoError(t, s.Delete(ctx, "c"))

				_, err := s.Open(ctx, "c")
				assert.ErrorIs(t, err, ErrNotFound)

				// Deleting again is a no-op.
				assert.NoError(t, s.Delete(ctx, "c"))
			})

			t.Run("List", func(t *testing.T) {
				require.NoError(t, s.Put(ctx, "list/one", strings.NewReader("1")))
				require.NoError(t, s.Put(ctx, "list/two", strings.NewReader("2")))

				names, err := s.List(ctx, "list/")
				require.NoError(t, err)
				assert.Equal(t, []string{"list/one", "list/two"}, names)
			})
		})
	}
}

func TestGovernor(t *testing.T) {
	ctx := context.Background()

	t.Run("PassThrough", func(t *testing.T) {
		g := NewGovernor(GovernorConfig{MaxConcurrentTransfers: 2})
		s := g.Wrap(NewMemory())

		require.NoError(t, s.Put(ctx, "a", strings.NewReader("payload")))

		rc, err := s.Open(ctx, "a")
		require.NoError(t, err)

		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		assert.Equal(t, "payload", string(data))
	})

	t.Run("SlotReleasedOnClose", func(t *testing.T) {
		// With a single slot, a second transfer only proceeds after the
		// first reader is closed.
		g := NewGovernor(GovernorConfig{MaxConcurrentTransfers: 1})
		s := g.Wrap(NewMemory())

		require.NoError(t, s.Put(ctx, "a", strings.NewReader("x")))

		rc, err := s.Open(ctx, "a")
		require.NoError(t, err)
		require.NoError(t, rc.Close())

		// Slot is free again; this must not block.
		require.NoError(t, s.Put(ctx, "b", strings.NewReader("y")))
	})

	t.Run("RateLimitedCopy", func(t *testing.T) {
		// A generous limit must not distort the data.
		g := NewGovernor(GovernorConfig{MaxConcurrentTransfers: 1, BytesPerSec: 1 << 20})
		s := g.Wrap(NewMemory())

		payload := strings.Repeat("z", 4096)
		require.NoError(t, s.Put(ctx, "big", strings.NewReader(payload)))

		rc, err := s.Open(ctx, "big")
		require.NoError(t, err)
		defer rc.Close()

		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, payload, string(data))
	})
}
