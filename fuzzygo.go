// Package fuzzygo provides an embedded key-value store with approximate key
// lookup for Go.
//
// Fuzzygo stores (key, value) records durably and finds them again by keys
// that are merely close to the stored ones. Closeness is precomputed: at
// insert time every deletion variant of the key (all strings reachable by
// removing up to MaxDeletes runes) is indexed, so a lookup only has to probe
// the variants of the query instead of scanning the keyspace.
//
// Features:
//
//   - Durable storage on Badger, or a pure in-memory engine for tests
//   - Type-safe fluent builders: Badger[T](dir), InMemory[T]()
//   - Pluggable distance metrics (Levenshtein, OSA, Hamming, or your own)
//   - Lock-free lookups; mutations serialize through a single writer
//   - Pluggable value codecs (go-json default, stdlib JSON, msgpack)
//   - Compact compressed snapshots with backup to local disk, MinIO, or S3
//
// # Quick Start (Fluent API)
//
// Open a durable store with the type-safe builder:
//
//	ctx := context.Background()
//	db, err := fuzzygo.Badger[string]("./data").
//	    MaxDeletes(2).        // Indexed edit radius
//	    Build(ctx)
//	if err != nil {
//	    panic(err)
//	}
//	defer db.Close()
//
// Insert records:
//
//	id, err := db.Insert(ctx, "alfred pennyworth", "butler")
//
// Look up with the fluent API:
//
//	matches, err := db.Lookup("alfred penyworth").
//	    Within(1).
//	    Metric(distance.Levenshtein).
//	    SortByDistance().
//	    Execute(ctx)
//
// Or directly:
//
//	matches, err := db.FuzzyLookup(ctx, "alfred penyworth", 1, distance.Levenshtein)
//
// # Choosing MaxDeletes
//
// MaxDeletes bounds the edit distance a lookup can cover and is fixed at
// store creation; reopening with a different value fails. Variant counts grow
// combinatorially with the radius, so keep it small:
//
//   - MaxDeletes=1: typo correction, cheapest index
//   - MaxDeletes=2: the usual choice for fuzzy matching
//   - MaxDeletes=3+: short keys only, index fan-out gets expensive
//
// # Snapshots
//
// Snapshots contain only the records; the variant index is rebuilt on
// restore:
//
//	err := db.SaveToFile(ctx, "./backup.fzs")
//	db2, err := fuzzygo.InMemory[string]().RestoreFromFile("./backup.fzs").Build(ctx)
package fuzzygo

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/hupe1980/fuzzygo/blobstore"
	"github.com/hupe1980/fuzzygo/distance"
	"github.com/hupe1980/fuzzygo/engine"
	"github.com/hupe1980/fuzzygo/kv"
)

// GroupID identifies a stored record. IDs are allocated monotonically and
// never reused, even after removal.
type GroupID = engine.GroupID

// Match is a single lookup result.
type Match[T any] = engine.Match[T]

// SnapshotOptions configures snapshot creation.
type SnapshotOptions = engine.SnapshotOptions

// Snapshot compression names.
const (
	CompressionS2   = engine.CompressionS2
	CompressionLZ4  = engine.CompressionLZ4
	CompressionNone = engine.CompressionNone
)

// Fuzzygo is an embedded fuzzy key-value store.
type Fuzzygo[T any] struct {
	engine  *engine.Engine[T]
	kv      kv.Engine
	metrics MetricsCollector
	logger  *Logger
	ownsKV  bool
}

// Open creates or reopens a store on an existing kv engine. Most users should
// prefer the builders (Badger[T](), InMemory[T]()); Open is the escape hatch
// for custom engines. The caller keeps ownership of e; Close does not close
// it.
func Open[T any](ctx context.Context, e kv.Engine, optFns ...Option) (*Fuzzygo[T], error) {
	opts := applyOptions(optFns)

	eng, err := engine.Open[T](ctx, e, opts.codec, opts.maxDeletes, engineOptions(opts)...)
	if err != nil {
		return nil, translateError(err)
	}

	return &Fuzzygo[T]{
		engine:  eng,
		kv:      e,
		metrics: opts.metricsCollector,
		logger:  opts.logger,
	}, nil
}

// Restore loads a snapshot from r into the empty kv engine e and returns the
// restored store. The edit radius and codec come from the snapshot header.
// The caller keeps ownership of e; Close does not close it.
func Restore[T any](ctx context.Context, r io.Reader, e kv.Engine, optFns ...Option) (*Fuzzygo[T], error) {
	opts := applyOptions(optFns)

	eng, err := engine.RestoreSnapshot[T](ctx, r, e, engineOptions(opts)...)
	if err != nil {
		opts.logger.LogRestore(ctx, "reader", err)
		return nil, translateError(err)
	}
	opts.logger.LogRestore(ctx, "reader", nil)

	return &Fuzzygo[T]{
		engine:  eng,
		kv:      e,
		metrics: opts.metricsCollector,
		logger:  opts.logger,
	}, nil
}

// RestoreFromFile loads a snapshot file into the empty kv engine e.
func RestoreFromFile[T any](ctx context.Context, filename string, e kv.Engine, optFns ...Option) (*Fuzzygo[T], error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("fuzzygo: open snapshot: %w", err)
	}
	defer f.Close()

	return Restore[T](ctx, f, e, optFns...)
}

// RestoreFromStore loads the named snapshot blob into the empty kv engine e.
func RestoreFromStore[T any](ctx context.Context, bs blobstore.Store, name string, e kv.Engine, optFns ...Option) (*Fuzzygo[T], error) {
	rc, err := bs.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("fuzzygo: open backup %q: %w", name, err)
	}
	defer rc.Close()

	return Restore[T](ctx, rc, e, optFns...)
}

// MaxDeletes returns the store's indexed edit radius.
func (fg *Fuzzygo[T]) MaxDeletes() int {
	return fg.engine.MaxDeletes()
}

// Insert stores a new (key, value) record and returns its id. The same key
// may be inserted multiple times; each insert gets its own id.
func (fg *Fuzzygo[T]) Insert(ctx context.Context, key string, value T) (GroupID, error) {
	start := time.Now()
	id, err := fg.engine.Insert(ctx, key, value)
	err = translateError(err)
	fg.metrics.RecordInsert(time.Since(start), err)
	fg.logger.LogInsert(ctx, uint64(id), len(key), err)
	return id, err
}

// Get retrieves the key and value of a record by id.
func (fg *Fuzzygo[T]) Get(ctx context.Context, id GroupID) (string, T, error) {
	key, value, err := fg.engine.Get(ctx, id)
	return key, value, translateError(err)
}

// UpdateValue replaces the value of an existing record. The key, and with it
// the variant index, stays untouched.
func (fg *Fuzzygo[T]) UpdateValue(ctx context.Context, id GroupID, value T) error {
	start := time.Now()
	err := translateError(fg.engine.UpdateValue(ctx, id, value))
	fg.metrics.RecordUpdate(time.Since(start), err)
	fg.logger.LogUpdate(ctx, uint64(id), err)
	return err
}

// Remove deletes a record and all its index entries. The id is retired and
// never handed out again.
func (fg *Fuzzygo[T]) Remove(ctx context.Context, id GroupID) error {
	start := time.Now()
	err := translateError(fg.engine.Remove(ctx, id))
	fg.metrics.RecordRemove(time.Since(start), err)
	fg.logger.LogRemove(ctx, uint64(id), err)
	return err
}

// FuzzyLookup returns every record whose key is within threshold of query
// under fn. threshold must not exceed MaxDeletes; fn decides final
// membership, so it should never report a larger distance than the pure
// deletion distance (Levenshtein, OSA, and Hamming all qualify).
func (fg *Fuzzygo[T]) FuzzyLookup(ctx context.Context, query string, threshold int, fn distance.Func) ([]Match[T], error) {
	start := time.Now()
	matches, err := fg.engine.FuzzyLookup(ctx, query, threshold, fn)
	err = translateError(err)
	fg.metrics.RecordLookup(threshold, time.Since(start), err)
	fg.logger.LogLookup(ctx, threshold, len(matches), err)
	return matches, err
}

// ExactLookup returns every record stored under exactly key. This is cheaper
// than FuzzyLookup with threshold 0: it probes a single index entry and skips
// distance computation.
func (fg *Fuzzygo[T]) ExactLookup(ctx context.Context, key string) ([]Match[T], error) {
	start := time.Now()
	matches, err := fg.engine.ExactLookup(ctx, key)
	err = translateError(err)
	fg.metrics.RecordLookup(0, time.Since(start), err)
	fg.logger.LogLookup(ctx, 0, len(matches), err)
	return matches, err
}

// Count returns the number of stored records.
func (fg *Fuzzygo[T]) Count(ctx context.Context) (int, error) {
	n, err := fg.engine.Count(ctx)
	return n, translateError(err)
}

// SaveSnapshot writes a point-in-time snapshot of all records to w.
func (fg *Fuzzygo[T]) SaveSnapshot(ctx context.Context, w io.Writer, optFns ...func(*SnapshotOptions)) error {
	start := time.Now()
	err := translateError(fg.engine.SaveSnapshot(ctx, w, optFns...))
	fg.metrics.RecordSnapshot(time.Since(start), err)
	fg.logger.LogSnapshot(ctx, "writer", err)
	return err
}

// SaveToFile writes a snapshot to filename. The file is written to a
// temporary sibling first and renamed into place, so an existing snapshot is
// never left half overwritten.
func (fg *Fuzzygo[T]) SaveToFile(ctx context.Context, filename string, optFns ...func(*SnapshotOptions)) error {
	start := time.Now()
	err := fg.saveToFile(ctx, filename, optFns)
	fg.metrics.RecordSnapshot(time.Since(start), err)
	fg.logger.LogSnapshot(ctx, filename, err)
	return err
}

func (fg *Fuzzygo[T]) saveToFile(ctx context.Context, filename string, optFns []func(*SnapshotOptions)) error {
	tmp, err := os.CreateTemp(filepath.Dir(filename), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("fuzzygo: create snapshot file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	if err := fg.engine.SaveSnapshot(ctx, tmp, optFns...); err != nil {
		return translateError(err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("fuzzygo: sync snapshot file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("fuzzygo: close snapshot file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filename); err != nil {
		return fmt.Errorf("fuzzygo: rename snapshot file: %w", err)
	}
	return nil
}

// Backup streams a snapshot into the named blob. The snapshot is produced
// and uploaded concurrently through a pipe, so it never materializes in
// memory.
func (fg *Fuzzygo[T]) Backup(ctx context.Context, bs blobstore.Store, name string, optFns ...func(*SnapshotOptions)) error {
	start := time.Now()

	pr, pw := io.Pipe()
	done := make(chan error, 1)
	go func() {
		done <- bs.Put(ctx, name, pr)
	}()

	snapErr := fg.engine.SaveSnapshot(ctx, pw, optFns...)
	_ = pw.CloseWithError(snapErr)
	putErr := <-done

	err := translateError(snapErr)
	if err == nil && putErr != nil {
		err = fmt.Errorf("fuzzygo: upload backup %q: %w", name, putErr)
	}
	fg.metrics.RecordSnapshot(time.Since(start), err)
	fg.logger.LogSnapshot(ctx, name, err)
	return err
}
