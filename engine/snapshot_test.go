package engine

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/fuzzygo/codec"
	"github.com/hupe1980/fuzzygo/distance"
	"github.com/hupe1980/fuzzygo/kv"
)

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()

	for _, compression := range []string{CompressionS2, CompressionLZ4, CompressionNone} {
		t.Run(compression, func(t *testing.T) {
			src, _ := newTestEngine(t, 2)

			keys := []string{"cat", "cats", "dog", "catalog", ""}
			want := make(map[GroupID]string, len(keys))
			for i, k := range keys {
				id, err := src.Insert(ctx, k, i)
				require.NoError(t, err)
				want[id] = k
			}
			removed, err := src.Insert(ctx, "temp", 99)
			require.NoError(t, err)
			require.NoError(t, src.Remove(ctx, removed))

			var buf bytes.Buffer
			require.NoError(t, src.SaveSnapshot(ctx, &buf, func(o *SnapshotOptions) {
				o.Compression = compression
			}))

			restored, err := RestoreSnapshot[int](ctx, &buf, kv.NewMemory())
			require.NoError(t, err)
			assert.Equal(t, 2, restored.MaxDeletes())

			n, err := restored.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, len(keys), n)

			for id, k := range want {
				key, _, err := restored.Get(ctx, id)
				require.NoError(t, err)
				assert.Equal(t, k, key)
			}
			_, _, err = restored.Get(ctx, removed)
			assert.ErrorIs(t, err, ErrNotFound)

			// The variant index is rebuilt from scratch, so fuzzy lookups
			// behave exactly as on the source store.
			matches, err := restored.FuzzyLookup(ctx, "bat", 1, distance.Levenshtein)
			require.NoError(t, err)
			require.Len(t, matches, 1)
			assert.Equal(t, "cat", matches[0].Key)

			// The allocator travels with the snapshot; ids from the source
			// store are never reissued, including the removed one.
			fresh, err := restored.Insert(ctx, "new", 1)
			require.NoError(t, err)
			assert.Greater(t, fresh, removed)
		})
	}
}

func TestSnapshotEmptyStore(t *testing.T) {
	ctx := context.Background()
	src, _ := newTestEngine(t, 1)

	var buf bytes.Buffer
	require.NoError(t, src.SaveSnapshot(ctx, &buf))

	restored, err := RestoreSnapshot[int](ctx, &buf, kv.NewMemory())
	require.NoError(t, err)

	n, err := restored.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSnapshotUnknownCompression(t *testing.T) {
	ctx := context.Background()
	src, _ := newTestEngine(t, 1)

	err := src.SaveSnapshot(ctx, &bytes.Buffer{}, func(o *SnapshotOptions) {
		o.Compression = "zstd"
	})
	assert.Error(t, err)
}

func TestRestoreSnapshot(t *testing.T) {
	ctx := context.Background()

	snapshot := func(t *testing.T) []byte {
		t.Helper()

		src, _ := newTestEngine(t, 1)
		_, err := src.Insert(ctx, "cat", 1)
		require.NoError(t, err)

		var buf bytes.Buffer
		require.NoError(t, src.SaveSnapshot(ctx, &buf, func(o *SnapshotOptions) {
			o.Compression = CompressionNone
		}))
		return buf.Bytes()
	}

	t.Run("RejectsNonEmptyTarget", func(t *testing.T) {
		target := kv.NewMemory()
		_, err := Open[int](ctx, target, codec.Default, 1)
		require.NoError(t, err)

		_, err = RestoreSnapshot[int](ctx, bytes.NewReader(snapshot(t)), target)
		assert.Error(t, err)
	})

	t.Run("BadMagic", func(t *testing.T) {
		raw := snapshot(t)
		raw[0] = 'X'

		_, err := RestoreSnapshot[int](ctx, bytes.NewReader(raw), kv.NewMemory())
		var corrupt *ErrCorrupt
		assert.ErrorAs(t, err, &corrupt)
	})

	t.Run("Truncated", func(t *testing.T) {
		raw := snapshot(t)

		_, err := RestoreSnapshot[int](ctx, bytes.NewReader(raw[:len(raw)-6]), kv.NewMemory())
		var corrupt *ErrCorrupt
		assert.ErrorAs(t, err, &corrupt)
	})

	t.Run("OversizedRecordLength", func(t *testing.T) {
		raw := snapshot(t)
		// The record length field follows the header, the record tag, and
		// the id. Inflating it must hit the payload bound, not attempt the
		// allocation and fail later.
		off := 10 + 1 + len(codec.Default.Name()) + 1 + len(CompressionNone) + 9
		binary.BigEndian.PutUint32(raw[off:off+4], 1<<31)

		_, err := RestoreSnapshot[int](ctx, bytes.NewReader(raw), kv.NewMemory())
		var corrupt *ErrCorrupt
		assert.ErrorAs(t, err, &corrupt)
	})

	t.Run("ChecksumMismatch", func(t *testing.T) {
		raw := snapshot(t)
		// Flip a bit in the record payload; with compression disabled this
		// reaches the checksum verification rather than the decompressor.
		raw[len(raw)-20] ^= 0x01

		_, err := RestoreSnapshot[int](ctx, bytes.NewReader(raw), kv.NewMemory())
		var corrupt *ErrCorrupt
		assert.ErrorAs(t, err, &corrupt)
	})
}
