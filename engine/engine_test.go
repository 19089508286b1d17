package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/fuzzygo/codec"
	"github.com/hupe1980/fuzzygo/distance"
	"github.com/hupe1980/fuzzygo/kv"
)

func newTestEngine(t *testing.T, maxDeletes int) (*Engine[int], kv.Engine) {
	t.Helper()

	kve := kv.NewMemory()
	t.Cleanup(func() { _ = kve.Close() })

	e, err := Open[int](context.Background(), kve, codec.Default, maxDeletes)
	require.NoError(t, err)
	return e, kve
}

func ids[T any](matches []Match[T]) []GroupID {
	out := make([]GroupID, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.ID)
	}
	return out
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("RejectsNegativeMaxDeletes", func(t *testing.T) {
		_, err := Open[int](ctx, kv.NewMemory(), codec.Default, -1)
		assert.Error(t, err)
	})

	t.Run("ReopenSameConfig", func(t *testing.T) {
		kve := kv.NewMemory()
		_, err := Open[int](ctx, kve, codec.Default, 2)
		require.NoError(t, err)

		_, err = Open[int](ctx, kve, codec.Default, 2)
		assert.NoError(t, err)
	})

	t.Run("MaxDeletesMismatch", func(t *testing.T) {
		kve := kv.NewMemory()
		_, err := Open[int](ctx, kve, codec.Default, 2)
		require.NoError(t, err)

		_, err = Open[int](ctx, kve, codec.Default, 3)
		var mismatch *ErrConfigMismatch
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, "max deletes", mismatch.Field)
	})

	t.Run("CodecMismatch", func(t *testing.T) {
		kve := kv.NewMemory()
		_, err := Open[int](ctx, kve, codec.GoJSON{}, 2)
		require.NoError(t, err)

		_, err = Open[int](ctx, kve, codec.Msgpack{}, 2)
		var mismatch *ErrConfigMismatch
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, "codec", mismatch.Field)
	})
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, 2)

	id, err := e.Insert(ctx, "cat", 1)
	require.NoError(t, err)

	key, value, err := e.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "cat", key)
	assert.Equal(t, 1, value)

	matches, err := e.ExactLookup(ctx, "cat")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, id, matches[0].ID)
	assert.Equal(t, 1, matches[0].Value)
	assert.Equal(t, 0, matches[0].Distance)
}

func TestFuzzyLookup(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, 2)

	catID, err := e.Insert(ctx, "cat", 1)
	require.NoError(t, err)
	catsID, err := e.Insert(ctx, "cats", 2)
	require.NoError(t, err)

	t.Run("WithinOne", func(t *testing.T) {
		matches, err := e.FuzzyLookup(ctx, "bat", 1, distance.Levenshtein)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, catID, matches[0].ID)
		assert.Equal(t, "cat", matches[0].Key)
		assert.Equal(t, 1, matches[0].Distance)
	})

	t.Run("ExactThroughFuzzyPath", func(t *testing.T) {
		matches, err := e.FuzzyLookup(ctx, "cats", 0, distance.Levenshtein)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, catsID, matches[0].ID)
		assert.Equal(t, 0, matches[0].Distance)
	})

	t.Run("WithinTwo", func(t *testing.T) {
		// distance(cart, cat) = 1, distance(cart, cats) = 2.
		matches, err := e.FuzzyLookup(ctx, "cart", 2, distance.Levenshtein)
		require.NoError(t, err)
		assert.ElementsMatch(t, []GroupID{catID, catsID}, ids(matches))
	})

	t.Run("NoDuplicates", func(t *testing.T) {
		// "cat" and "cats" share many variants with the query; every id must
		// still appear exactly once.
		matches, err := e.FuzzyLookup(ctx, "cat", 2, distance.Levenshtein)
		require.NoError(t, err)

		seen := make(map[GroupID]int)
		for _, m := range matches {
			seen[m.ID]++
		}
		for id, n := range seen {
			assert.Equal(t, 1, n, "id %d returned %d times", id, n)
		}
	})

	t.Run("ThresholdMonotonicity", func(t *testing.T) {
		prev := map[GroupID]struct{}{}
		for threshold := 0; threshold <= 2; threshold++ {
			matches, err := e.FuzzyLookup(ctx, "cast", threshold, distance.Levenshtein)
			require.NoError(t, err)

			cur := make(map[GroupID]struct{}, len(matches))
			for _, m := range matches {
				cur[m.ID] = struct{}{}
			}
			for id := range prev {
				assert.Contains(t, cur, id, "result set shrank at threshold %d", threshold)
			}
			prev = cur
		}
	})

	t.Run("RejectOverRadiusThreshold", func(t *testing.T) {
		_, err := e.FuzzyLookup(ctx, "cat", 3, distance.Levenshtein)
		var exceeded *ErrThresholdExceeded
		require.ErrorAs(t, err, &exceeded)
		assert.Equal(t, 3, exceeded.Threshold)
		assert.Equal(t, 2, exceeded.MaxDeletes)
	})

	t.Run("RejectNegativeThreshold", func(t *testing.T) {
		_, err := e.FuzzyLookup(ctx, "cat", -1, distance.Levenshtein)
		assert.Error(t, err)
	})

	t.Run("RejectNilDistance", func(t *testing.T) {
		_, err := e.FuzzyLookup(ctx, "cat", 1, nil)
		assert.Error(t, err)
	})

	t.Run("CallerMetricIsAuthoritative", func(t *testing.T) {
		// A metric that rejects everything yields no matches even though
		// candidates exist.
		matches, err := e.FuzzyLookup(ctx, "cat", 2, func(a, b string) int { return 99 })
		require.NoError(t, err)
		assert.Empty(t, matches)
	})

	t.Run("QueryExpandsToFullRadius", func(t *testing.T) {
		// Halved Levenshtein is still compatible with the deletion index:
		// "ab" and "cd" share only the empty variant, two deletions on each
		// side, yet their halved distance is 1. The match is only reachable
		// when the query is expanded to maxDeletes rather than the
		// threshold.
		fresh, _ := newTestEngine(t, 2)
		id, err := fresh.Insert(ctx, "ab", 1)
		require.NoError(t, err)

		halved := func(a, b string) int {
			return (distance.Levenshtein(a, b) + 1) / 2
		}
		matches, err := fresh.FuzzyLookup(ctx, "cd", 1, halved)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, id, matches[0].ID)
		assert.Equal(t, 1, matches[0].Distance)
	})
}

func TestCompletenessUnderEditDistance(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, 2)

	keys := []string{"cat", "cats", "hat", "chat", "coast", "catalog", "dog", ""}
	stored := make(map[string]GroupID, len(keys))
	for i, k := range keys {
		id, err := e.Insert(ctx, k, i)
		require.NoError(t, err)
		stored[k] = id
	}

	queries := []string{"cat", "cst", "oat", "ct", "chats", "do", "x", ""}
	for _, q := range queries {
		for _, k := range keys {
			d := distance.Levenshtein(q, k)
			if d > e.MaxDeletes() {
				continue
			}
			matches, err := e.FuzzyLookup(ctx, q, d, distance.Levenshtein)
			require.NoError(t, err)
			assert.Contains(t, ids(matches), stored[k], "query %q must reach %q at distance %d", q, k, d)
		}
	}
}

func TestUpdateValue(t *testing.T) {
	ctx := context.Background()
	e, kve := newTestEngine(t, 2)

	id, err := e.Insert(ctx, "cat", 1)
	require.NoError(t, err)

	indexBefore := dumpNamespace(t, kve, kv.Index)

	require.NoError(t, e.UpdateValue(ctx, id, 7))

	_, value, err := e.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 7, value)

	// The key did not change, so the variant index must be untouched.
	assert.Equal(t, indexBefore, dumpNamespace(t, kve, kv.Index))

	t.Run("NotFound", func(t *testing.T) {
		err := e.UpdateValue(ctx, GroupID(999), 1)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	e, kve := newTestEngine(t, 2)

	catID, err := e.Insert(ctx, "cat", 1)
	require.NoError(t, err)
	catsID, err := e.Insert(ctx, "cats", 2)
	require.NoError(t, err)

	require.NoError(t, e.Remove(ctx, catID))

	t.Run("RecordGone", func(t *testing.T) {
		_, _, err := e.Get(ctx, catID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("NoLookupReturnsRemovedID", func(t *testing.T) {
		matches, err := e.FuzzyLookup(ctx, "cat", 2, distance.Levenshtein)
		require.NoError(t, err)
		assert.NotContains(t, ids(matches), catID)
		assert.Contains(t, ids(matches), catsID)

		exact, err := e.ExactLookup(ctx, "cat")
		require.NoError(t, err)
		assert.Empty(t, exact)
	})

	t.Run("SoleReferenceVariantsDeleted", func(t *testing.T) {
		// "c" was a variant only of "cat" ("cats" cannot shrink below two
		// runes); its entry must be gone, not empty.
		_, err := kve.Get(ctx, kv.Index, []byte("c"))
		assert.ErrorIs(t, err, kv.ErrNotFound)

		// "at" is a shared variant of "cat" and "cats"; it must survive with
		// only the surviving id.
		raw, err := kve.Get(ctx, kv.Index, []byte("at"))
		require.NoError(t, err)
		bm, err := decodePostings(raw)
		require.NoError(t, err)
		assert.Equal(t, []uint64{uint64(catsID)}, bm.ToArray())
	})

	t.Run("RemoveTwiceIsNotFound", func(t *testing.T) {
		assert.ErrorIs(t, e.Remove(ctx, catID), ErrNotFound)
	})
}

func TestIDAllocation(t *testing.T) {
	ctx := context.Background()

	kve := kv.NewMemory()
	e, err := Open[int](ctx, kve, codec.Default, 1)
	require.NoError(t, err)

	first, err := e.Insert(ctx, "one", 1)
	require.NoError(t, err)
	second, err := e.Insert(ctx, "two", 2)
	require.NoError(t, err)
	assert.Greater(t, second, first)

	// Removal must not free the id for reuse, even across a reopen.
	require.NoError(t, e.Remove(ctx, second))

	reopened, err := Open[int](ctx, kve, codec.Default, 1)
	require.NoError(t, err)
	third, err := reopened.Insert(ctx, "three", 3)
	require.NoError(t, err)
	assert.Greater(t, third, second)
}

func TestCount(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, 1)

	n, err := e.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	id, err := e.Insert(ctx, "one", 1)
	require.NoError(t, err)
	_, err = e.Insert(ctx, "two", 2)
	require.NoError(t, err)

	n, err = e.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, e.Remove(ctx, id))
	n, err = e.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDuplicateKeys(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, 1)

	a, err := e.Insert(ctx, "cat", 1)
	require.NoError(t, err)
	b, err := e.Insert(ctx, "cat", 2)
	require.NoError(t, err)
	require.NotEqual(t, a, b)

	matches, err := e.ExactLookup(ctx, "cat")
	require.NoError(t, err)
	assert.ElementsMatch(t, []GroupID{a, b}, ids(matches))

	// Removing one copy must leave the other reachable.
	require.NoError(t, e.Remove(ctx, a))
	matches, err = e.ExactLookup(ctx, "cat")
	require.NoError(t, err)
	assert.ElementsMatch(t, []GroupID{b}, ids(matches))
}

// dumpNamespace snapshots a namespace into a comparable map.
func dumpNamespace(t *testing.T, e kv.Engine, ns kv.Namespace) map[string]string {
	t.Helper()

	out := make(map[string]string)
	for entry, err := range e.Scan(context.Background(), ns) {
		require.NoError(t, err)
		out[string(entry.Key)] = string(entry.Value)
	}
	return out
}
