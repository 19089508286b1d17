package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/fuzzygo/codec"
	"github.com/hupe1980/fuzzygo/distance"
	"github.com/hupe1980/fuzzygo/kv"
	"github.com/hupe1980/fuzzygo/variant"
)

// Options configures engine behavior beyond the persisted configuration.
type Options struct {
	// LookupConcurrency bounds the parallel candidate materialization during
	// fuzzy lookups. Defaults to GOMAXPROCS.
	LookupConcurrency int
}

// Match is one fuzzy lookup result.
type Match[T any] struct {
	// ID is the group identifier of the stored entry.
	ID GroupID

	// Key is the original stored key.
	Key string

	// Value is the decoded payload.
	Value T

	// Distance is the caller's metric evaluated between query and Key.
	Distance int
}

// Engine coordinates the record store and the variant index over one kv
// engine. All mutations are serialized; lookups may run concurrently with
// each other and with in-flight mutations.
type Engine[T any] struct {
	mu     sync.Mutex // serializes Insert/UpdateValue/Remove
	nextID GroupID    // next unallocated id, guarded by mu

	kv         kv.Engine
	records    recordStore[T]
	index      variantIndex
	maxDeletes int

	lookupConcurrency int
}

// Open validates or initializes the persisted configuration and returns an
// engine ready to serve operations.
//
// For an existing store, maxDeletes and the codec must match the persisted
// values; a mismatch fails with ErrConfigMismatch.
func Open[T any](ctx context.Context, e kv.Engine, c codec.Codec, maxDeletes int, optFns ...func(*Options)) (*Engine[T], error) {
	if e == nil {
		return nil, errors.New("engine: kv engine is nil")
	}
	if c == nil {
		c = codec.Default
	}
	if maxDeletes < 0 {
		return nil, fmt.Errorf("engine: negative max deletes %d", maxDeletes)
	}

	opts := Options{
		LookupConcurrency: runtime.GOMAXPROCS(0),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.LookupConcurrency < 1 {
		opts.LookupConcurrency = 1
	}

	next, err := loadOrInitMeta(ctx, e, maxDeletes, c.Name())
	if err != nil {
		return nil, err
	}

	return &Engine[T]{
		nextID:            GroupID(next),
		kv:                e,
		records:           recordStore[T]{kv: e, codec: c},
		index:             variantIndex{kv: e},
		maxDeletes:        maxDeletes,
		lookupConcurrency: opts.LookupConcurrency,
	}, nil
}

// MaxDeletes returns the store's precomputed deletion radius.
func (e *Engine[T]) MaxDeletes() int {
	return e.maxDeletes
}

// Insert stores a new (key, value) entry and indexes every deletion variant
// of key. The record, all posting updates, and the advanced id allocator
// commit in one atomic batch; on failure no id is consumed.
func (e *Engine[T]) Insert(ctx context.Context, key string, value T) (GroupID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextID

	payload, err := e.records.encode(record[T]{Key: key, Value: value})
	if err != nil {
		return 0, err
	}

	b := kv.NewBatch()
	b.Put(kv.Records, id.Bytes(), payload)
	for _, v := range variant.Generate(key, e.maxDeletes) {
		if err := e.index.stageAdd(ctx, b, v, id); err != nil {
			return 0, err
		}
	}
	b.Put(kv.Meta, metaNextIDKey, encodeNextID(uint64(id)+1))

	if err := e.kv.Apply(ctx, b); err != nil {
		return 0, fmt.Errorf("engine: commit insert: %w", err)
	}
	e.nextID = id + 1
	return id, nil
}

// Get returns the key and value stored under id.
func (e *Engine[T]) Get(ctx context.Context, id GroupID) (string, T, error) {
	rec, err := e.records.get(ctx, id)
	if err != nil {
		var zero T
		return "", zero, err
	}
	return rec.Key, rec.Value, nil
}

// UpdateValue replaces the payload of an existing entry. The key is
// unchanged, so no index entry is touched; this is a single-record write.
func (e *Engine[T]) UpdateValue(ctx context.Context, id GroupID, value T) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, err := e.records.get(ctx, id)
	if err != nil {
		return err
	}

	rec.Value = value
	payload, err := e.records.encode(rec)
	if err != nil {
		return err
	}
	if err := e.kv.Set(ctx, kv.Records, id.Bytes(), payload); err != nil {
		return fmt.Errorf("engine: commit update: %w", err)
	}
	return nil
}

// Remove deletes the entry under id and withdraws it from every variant
// posting set its key produced, deleting sets that become empty. Record and
// index changes commit in one atomic batch.
func (e *Engine[T]) Remove(ctx context.Context, id GroupID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, err := e.records.get(ctx, id)
	if err != nil {
		return err
	}

	b := kv.NewBatch()
	b.Delete(kv.Records, id.Bytes())
	for _, v := range variant.Generate(rec.Key, e.maxDeletes) {
		if err := e.index.stageRemove(ctx, b, v, id); err != nil {
			return err
		}
	}

	if err := e.kv.Apply(ctx, b); err != nil {
		return fmt.Errorf("engine: commit remove: %w", err)
	}
	return nil
}

// FuzzyLookup returns every stored entry whose key is within threshold of
// query under fn. Results carry the computed distance; their order is
// unspecified.
//
// A threshold beyond the precomputed radius fails with ErrThresholdExceeded:
// the index cannot guarantee candidate completeness past MaxDeletes, and an
// incomplete result would be indistinguishable from a real negative.
func (e *Engine[T]) FuzzyLookup(ctx context.Context, query string, threshold int, fn distance.Func) ([]Match[T], error) {
	if fn == nil {
		return nil, errors.New("engine: nil distance function")
	}
	if threshold < 0 {
		return nil, fmt.Errorf("engine: negative threshold %d", threshold)
	}
	if threshold > e.maxDeletes {
		return nil, &ErrThresholdExceeded{Threshold: threshold, MaxDeletes: e.maxDeletes}
	}

	// Union the posting sets of every query variant. A compatible metric
	// only promises a shared variant within maxDeletes deletions on each
	// side, so the query expands to the full radius regardless of threshold.
	// The bitmap dedups ids reachable through multiple shared variants.
	union := roaring64.New()
	for _, v := range variant.Generate(query, e.maxDeletes) {
		bm, err := e.index.candidates(ctx, v)
		if err != nil {
			return nil, err
		}
		union.Or(bm)
	}
	ids := union.ToArray()

	// Materialize candidates and filter by the caller's metric. A candidate
	// whose record vanished mid-lookup was removed concurrently; the
	// post-mutation state simply no longer contains it.
	slots := make([]*Match[T], len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.lookupConcurrency)
	for i, raw := range ids {
		g.Go(func() error {
			rec, err := e.records.get(gctx, GroupID(raw))
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			if d := fn(query, rec.Key); d <= threshold {
				slots[i] = &Match[T]{ID: GroupID(raw), Key: rec.Key, Value: rec.Value, Distance: d}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	matches := make([]Match[T], 0, len(slots))
	for _, m := range slots {
		if m != nil {
			matches = append(matches, *m)
		}
	}
	return matches, nil
}

// ExactLookup returns the entries stored under exactly key. It probes only
// the zero-deletion variant and skips distance evaluation entirely; this is
// an optimization over FuzzyLookup(key, 0, distance.Exact), not a behavioral
// difference.
func (e *Engine[T]) ExactLookup(ctx context.Context, key string) ([]Match[T], error) {
	bm, err := e.index.candidates(ctx, key)
	if err != nil {
		return nil, err
	}

	var matches []Match[T]
	it := bm.Iterator()
	for it.HasNext() {
		id := GroupID(it.Next())
		rec, err := e.records.get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		// The posting set for key also references keys that reach it by
		// deletion; keep only true equals.
		if rec.Key == key {
			matches = append(matches, Match[T]{ID: id, Key: rec.Key, Value: rec.Value})
		}
	}
	return matches, nil
}

// Count returns the number of live records by scanning the record namespace.
// This is a full scan, intended for statistics and snapshots rather than the
// hot path.
func (e *Engine[T]) Count(ctx context.Context) (int, error) {
	n := 0
	for _, err := range e.kv.Scan(ctx, kv.Records) {
		if err != nil {
			return 0, fmt.Errorf("engine: scan records: %w", err)
		}
		n++
	}
	return n, nil
}
