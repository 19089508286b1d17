// Package fuzzygo provides an embedded fuzzy key-value store.
//
// This file implements storage-specific fluent builder APIs for creating and
// configuring store instances. Builders are immutable - each method returns a
// new builder with the updated configuration.
package fuzzygo

import (
	"context"
	"fmt"
	"io"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/hupe1980/fuzzygo/blobstore"
	"github.com/hupe1980/fuzzygo/codec"
	"github.com/hupe1980/fuzzygo/kv"
)

// badgerLogAdapter routes Badger's log output through a structured Logger.
type badgerLogAdapter struct {
	l *Logger
}

func (a badgerLogAdapter) Errorf(f string, v ...interface{})   { a.l.Error(fmt.Sprintf(f, v...)) }
func (a badgerLogAdapter) Warningf(f string, v ...interface{}) { a.l.Warn(fmt.Sprintf(f, v...)) }
func (a badgerLogAdapter) Infof(f string, v ...interface{})    { a.l.Info(fmt.Sprintf(f, v...)) }
func (a badgerLogAdapter) Debugf(f string, v ...interface{})   { a.l.Debug(fmt.Sprintf(f, v...)) }

// =============================================================================
// Badger Builder (Immutable)
// =============================================================================

// Badger creates a new builder for a Badger-backed store rooted at dir.
// Badger provides durable, crash-safe storage on the local file system.
//
// The builder is immutable - each method returns a new builder with the
// updated configuration.
//
// Example:
//
//	db, err := fuzzygo.Badger[string]("./data").
//	    MaxDeletes(2).
//	    SyncWrites(true).
//	    Build(ctx)
func Badger[T any](dir string) BadgerBuilder[T] {
	return BadgerBuilder[T]{
		dir:        dir,
		maxDeletes: DefaultMaxDeletes,
	}
}

// BadgerBuilder is an immutable fluent builder for creating Badger-backed
// store instances. Each method returns a new builder with the updated
// configuration.
type BadgerBuilder[T any] struct {
	dir               string
	maxDeletes        int
	syncWrites        bool
	codec             codec.Codec
	logger            *Logger
	metrics           MetricsCollector
	lookupConcurrency int
	badgerLogger      *Logger
	restore           io.Reader
	restoreStore      blobstore.Store
	restoreName       string
	restoreFile       bool
}

// MaxDeletes sets the indexed edit radius. It is fixed at store creation;
// reopening an existing store with a different value fails with
// ErrConfigMismatch.
// Default: 2.
func (b BadgerBuilder[T]) MaxDeletes(n int) BadgerBuilder[T] {
	b.maxDeletes = n
	return b
}

// SyncWrites forces an fsync on every committed batch. Slower, but a crash
// can never lose an acknowledged write.
// Default: false (Badger's value log still bounds the loss window).
func (b BadgerBuilder[T]) SyncWrites(sync bool) BadgerBuilder[T] {
	b.syncWrites = sync
	return b
}

// Codec sets the codec used for record values.
func (b BadgerBuilder[T]) Codec(c codec.Codec) BadgerBuilder[T] {
	b.codec = c
	return b
}

// Logger sets the structured logger for operation tracing.
func (b BadgerBuilder[T]) Logger(l *Logger) BadgerBuilder[T] {
	b.logger = l
	return b
}

// BadgerLogger routes Badger's own log output through the given logger.
// Default: Badger logs are discarded.
func (b BadgerBuilder[T]) BadgerLogger(l *Logger) BadgerBuilder[T] {
	b.badgerLogger = l
	return b
}

// Metrics sets the metrics collector for monitoring.
func (b BadgerBuilder[T]) Metrics(mc MetricsCollector) BadgerBuilder[T] {
	b.metrics = mc
	return b
}

// LookupConcurrency bounds the number of candidate records verified in
// parallel during a fuzzy lookup. Default: GOMAXPROCS.
func (b BadgerBuilder[T]) LookupConcurrency(n int) BadgerBuilder[T] {
	b.lookupConcurrency = n
	return b
}

// RestoreFrom initializes the store from a snapshot instead of opening
// empty. The target directory must not already hold a store. The edit radius
// and codec come from the snapshot header; MaxDeletes and Codec settings are
// ignored.
func (b BadgerBuilder[T]) RestoreFrom(r io.Reader) BadgerBuilder[T] {
	b.restore = r
	return b
}

// RestoreFromFile initializes the store from a snapshot file.
func (b BadgerBuilder[T]) RestoreFromFile(filename string) BadgerBuilder[T] {
	b.restoreName = filename
	b.restoreStore = nil
	b.restoreFile = true
	return b
}

// RestoreFromStore initializes the store from the named snapshot blob.
func (b BadgerBuilder[T]) RestoreFromStore(bs blobstore.Store, name string) BadgerBuilder[T] {
	b.restoreStore = bs
	b.restoreName = name
	return b
}

// Build opens the Badger-backed store.
func (b BadgerBuilder[T]) Build(ctx context.Context) (*Fuzzygo[T], error) {
	var badgerLog badger.Logger
	if b.badgerLogger != nil {
		badgerLog = badgerLogAdapter{b.badgerLogger}
	}

	e, err := kv.NewBadger(kv.BadgerOptions{
		Dir:        b.dir,
		SyncWrites: b.syncWrites,
		Logger:     badgerLog,
	})
	if err != nil {
		return nil, translateError(err)
	}

	fg, err := build[T](ctx, e, builderConfig{
		maxDeletes:        b.maxDeletes,
		codec:             b.codec,
		logger:            b.logger,
		metrics:           b.metrics,
		lookupConcurrency: b.lookupConcurrency,
		restore:           b.restore,
		restoreStore:      b.restoreStore,
		restoreName:       b.restoreName,
		restoreFile:       b.restoreFile,
	})
	if err != nil {
		_ = e.Close()
		return nil, err
	}
	return fg, nil
}

// MustBuild opens the store, panicking on error.
func (b BadgerBuilder[T]) MustBuild(ctx context.Context) *Fuzzygo[T] {
	fg, err := b.Build(ctx)
	if err != nil {
		panic(err)
	}
	return fg
}

// =============================================================================
// In-Memory Builder (Immutable)
// =============================================================================

// InMemory creates a new builder for a volatile in-memory store. Nothing is
// persisted; every Build starts empty. Intended for tests and ephemeral
// caches.
//
// The builder is immutable - each method returns a new builder with the
// updated configuration.
//
// Example:
//
//	db, err := fuzzygo.InMemory[string]().
//	    MaxDeletes(1).
//	    Build(ctx)
func InMemory[T any]() MemoryBuilder[T] {
	return MemoryBuilder[T]{
		maxDeletes: DefaultMaxDeletes,
	}
}

// MemoryBuilder is an immutable fluent builder for creating in-memory store
// instances. Each method returns a new builder with the updated
// configuration.
type MemoryBuilder[T any] struct {
	maxDeletes        int
	codec             codec.Codec
	logger            *Logger
	metrics           MetricsCollector
	lookupConcurrency int
	restore           io.Reader
	restoreStore      blobstore.Store
	restoreName       string
	restoreFile       bool
}

// MaxDeletes sets the indexed edit radius.
// Default: 2.
func (b MemoryBuilder[T]) MaxDeletes(n int) MemoryBuilder[T] {
	b.maxDeletes = n
	return b
}

// Codec sets the codec used for record values.
func (b MemoryBuilder[T]) Codec(c codec.Codec) MemoryBuilder[T] {
	b.codec = c
	return b
}

// Logger sets the structured logger for operation tracing.
func (b MemoryBuilder[T]) Logger(l *Logger) MemoryBuilder[T] {
	b.logger = l
	return b
}

// Metrics sets the metrics collector for monitoring.
func (b MemoryBuilder[T]) Metrics(mc MetricsCollector) MemoryBuilder[T] {
	b.metrics = mc
	return b
}

// LookupConcurrency bounds the number of candidate records verified in
// parallel during a fuzzy lookup. Default: GOMAXPROCS.
func (b MemoryBuilder[T]) LookupConcurrency(n int) MemoryBuilder[T] {
	b.lookupConcurrency = n
	return b
}

// RestoreFrom initializes the store from a snapshot instead of starting
// empty. The edit radius and codec come from the snapshot header; MaxDeletes
// and Codec settings are ignored.
func (b MemoryBuilder[T]) RestoreFrom(r io.Reader) MemoryBuilder[T] {
	b.restore = r
	return b
}

// RestoreFromFile initializes the store from a snapshot file.
func (b MemoryBuilder[T]) RestoreFromFile(filename string) MemoryBuilder[T] {
	b.restoreName = filename
	b.restoreStore = nil
	b.restoreFile = true
	return b
}

// RestoreFromStore initializes the store from the named snapshot blob.
func (b MemoryBuilder[T]) RestoreFromStore(bs blobstore.Store, name string) MemoryBuilder[T] {
	b.restoreStore = bs
	b.restoreName = name
	return b
}

// Build creates the in-memory store.
func (b MemoryBuilder[T]) Build(ctx context.Context) (*Fuzzygo[T], error) {
	e := kv.NewMemory()

	fg, err := build[T](ctx, e, builderConfig{
		maxDeletes:        b.maxDeletes,
		codec:             b.codec,
		logger:            b.logger,
		metrics:           b.metrics,
		lookupConcurrency: b.lookupConcurrency,
		restore:           b.restore,
		restoreStore:      b.restoreStore,
		restoreName:       b.restoreName,
		restoreFile:       b.restoreFile,
	})
	if err != nil {
		_ = e.Close()
		return nil, err
	}
	return fg, nil
}

// MustBuild creates the store, panicking on error.
func (b MemoryBuilder[T]) MustBuild(ctx context.Context) *Fuzzygo[T] {
	fg, err := b.Build(ctx)
	if err != nil {
		panic(err)
	}
	return fg
}

// =============================================================================
// Shared build path
// =============================================================================

type builderConfig struct {
	maxDeletes        int
	codec             codec.Codec
	logger            *Logger
	metrics           MetricsCollector
	lookupConcurrency int
	restore           io.Reader
	restoreStore      blobstore.Store
	restoreName       string
	restoreFile       bool
}

func build[T any](ctx context.Context, e kv.Engine, cfg builderConfig) (*Fuzzygo[T], error) {
	optFns := []Option{
		WithMaxDeletes(cfg.maxDeletes),
	}
	if cfg.codec != nil {
		optFns = append(optFns, WithCodec(cfg.codec))
	}
	if cfg.logger != nil {
		optFns = append(optFns, WithLogger(cfg.logger))
	}
	if cfg.metrics != nil {
		optFns = append(optFns, WithMetricsCollector(cfg.metrics))
	}
	if cfg.lookupConcurrency > 0 {
		optFns = append(optFns, WithLookupConcurrency(cfg.lookupConcurrency))
	}

	var (
		fg  *Fuzzygo[T]
		err error
	)
	switch {
	case cfg.restore != nil:
		fg, err = Restore[T](ctx, cfg.restore, e, optFns...)
	case cfg.restoreStore != nil:
		fg, err = RestoreFromStore[T](ctx, cfg.restoreStore, cfg.restoreName, e, optFns...)
	case cfg.restoreFile:
		fg, err = RestoreFromFile[T](ctx, cfg.restoreName, e, optFns...)
	default:
		fg, err = Open[T](ctx, e, optFns...)
	}
	if err != nil {
		return nil, err
	}

	// The builder created the engine, so the store owns it.
	fg.ownsKV = true
	return fg, nil
}
