package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/fuzzygo/kv"
)

// variantIndex maps deletion variants to the set of group ids whose key
// produced that variant. Each posting set is a 64-bit roaring bitmap:
// ordered, deduplicated, and compact, with the implicit reference count
// being the bitmap's cardinality.
//
// The index upholds two invariants:
//   - every variant of a live key maps to a set containing the key's id
//   - an entry exists iff its set is non-empty
type variantIndex struct {
	kv kv.Engine
}

// candidates returns the posting set for variant, or an empty bitmap if the
// variant is not indexed.
func (vi *variantIndex) candidates(ctx context.Context, v string) (*roaring64.Bitmap, error) {
	raw, err := vi.kv.Get(ctx, kv.Index, []byte(v))
	if errors.Is(err, kv.ErrNotFound) {
		return roaring64.New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("engine: read variant entry: %w", err)
	}
	return decodePostings(raw)
}

// stageAdd queues an addReference(v, id) into b: the posting set for v gains
// id, creating the entry if absent. Caller holds the mutation lock.
func (vi *variantIndex) stageAdd(ctx context.Context, b *kv.Batch, v string, id GroupID) error {
	bm, err := vi.candidates(ctx, v)
	if err != nil {
		return err
	}
	bm.Add(uint64(id))

	raw, err := encodePostings(bm)
	if err != nil {
		return err
	}
	b.Put(kv.Index, []byte(v), raw)
	return nil
}

// stageRemove queues a removeReference(v, id) into b. When the posting set
// becomes empty the entry is deleted, never left as an empty record.
// Caller holds the mutation lock.
func (vi *variantIndex) stageRemove(ctx context.Context, b *kv.Batch, v string, id GroupID) error {
	bm, err := vi.candidates(ctx, v)
	if err != nil {
		return err
	}
	bm.Remove(uint64(id))

	if bm.IsEmpty() {
		b.Delete(kv.Index, []byte(v))
		return nil
	}
	raw, err := encodePostings(bm)
	if err != nil {
		return err
	}
	b.Put(kv.Index, []byte(v), raw)
	return nil
}

func encodePostings(bm *roaring64.Bitmap) ([]byte, error) {
	raw, err := bm.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("engine: encode variant entry: %w", err)
	}
	return raw, nil
}

func decodePostings(raw []byte) (*roaring64.Bitmap, error) {
	bm := roaring64.New()
	if err := bm.UnmarshalBinary(raw); err != nil {
		return nil, &ErrCorrupt{What: "variant entry", cause: err}
	}
	return bm, nil
}
