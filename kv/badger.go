package kv

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log"

	badger "github.com/dgraph-io/badger/v4"
)

// Badger is an Engine backed by BadgerDB v4.
//
// Batches are applied inside a single Badger transaction, which gives the
// atomicity the fuzzy index core relies on: a record write and all of its
// variant index writes commit or fail together.
type Badger struct {
	db *badger.DB
}

// BadgerOptions configures the BadgerDB engine.
type BadgerOptions struct {
	// Dir is the directory for BadgerDB data files. Required unless InMemory.
	Dir string

	// InMemory runs BadgerDB without disk persistence. Useful for tests that
	// want the real engine semantics without temp directories.
	InMemory bool

	// SyncWrites makes every commit fsync before returning. Slower, but a
	// crash cannot lose an acknowledged mutation.
	SyncWrites bool

	// Logger sets the badger logger. If nil, a quiet logger is used that
	// only surfaces warnings and errors.
	Logger badger.Logger
}

// NewBadger opens a BadgerDB-backed engine.
func NewBadger(opts BadgerOptions) (*Badger, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("kv: BadgerOptions.Dir is required for on-disk mode")
	}

	dbOpts := badger.DefaultOptions(opts.Dir).
		WithInMemory(opts.InMemory).
		WithSyncWrites(opts.SyncWrites)
	if opts.Logger != nil {
		dbOpts = dbOpts.WithLogger(opts.Logger)
	} else {
		dbOpts = dbOpts.WithLogger(quietLogger{})
	}

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, err
	}
	return &Badger{db: db}, nil
}

func (b *Badger) Get(_ context.Context, ns Namespace, key []byte) ([]byte, error) {
	k := encodeKey(ns, key)
	var val []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return val, err
}

func (b *Badger) Set(_ context.Context, ns Namespace, key, value []byte) error {
	k := encodeKey(ns, key)
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(k, value)
	})
}

func (b *Badger) Delete(_ context.Context, ns Namespace, key []byte) error {
	k := encodeKey(ns, key)
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(k)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	return err
}

func (b *Badger) Scan(_ context.Context, ns Namespace) iter.Seq2[Entry, error] {
	prefix := []byte{byte(ns)}

	return func(yield func(Entry, error) bool) {
		err := b.db.View(func(txn *badger.Txn) error {
			iterOpts := badger.DefaultIteratorOptions
			iterOpts.Prefix = prefix
			it := txn.NewIterator(iterOpts)
			defer it.Close()

			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				item := it.Item()
				key := item.KeyCopy(nil)

				val, err := item.ValueCopy(nil)
				if err != nil {
					return err
				}

				// Strip the namespace byte.
				if !yield(Entry{Key: key[1:], Value: val}, nil) {
					return nil
				}
			}
			return nil
		})
		if err != nil {
			yield(Entry{}, err)
		}
	}
}

// Apply commits all batch operations in one Badger transaction.
//
// Badger bounds how many writes fit in a transaction (a share of the
// memtable size). A batch past that bound aborts cleanly as a whole with a
// wrapped badger.ErrTxnTooBig; nothing is partially applied.
func (b *Badger) Apply(_ context.Context, batch *Batch) error {
	if batch == nil || len(batch.ops) == 0 {
		return nil
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		for _, op := range batch.ops {
			k := encodeKey(op.ns, op.key)
			if op.delete {
				if err := txn.Delete(k); err != nil {
					return err
				}
				continue
			}
			if err := txn.Set(k, op.value); err != nil {
				return err
			}
		}
		return nil
	})
	return mapTxnErr(err, len(batch.ops))
}

// mapTxnErr names the batch in badger's transaction-size failure; every
// other error passes through unchanged.
func mapTxnErr(err error, ops int) error {
	if errors.Is(err, badger.ErrTxnTooBig) {
		return fmt.Errorf("kv: batch of %d operations exceeds badger transaction size limit: %w", ops, err)
	}
	return err
}

func (b *Badger) Close() error {
	return b.db.Close()
}

// quietLogger adapts the standard log package for badger, dropping info and
// debug output.
type quietLogger struct{}

func (quietLogger) Errorf(f string, v ...interface{})   { log.Printf("[badger] ERROR: "+f, v...) }
func (quietLogger) Warningf(f string, v ...interface{}) { log.Printf("[badger] WARN: "+f, v...) }
func (quietLogger) Infof(string, ...interface{})        {}
func (quietLogger) Debugf(string, ...interface{})       {}
