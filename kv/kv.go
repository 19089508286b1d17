// Package kv defines the persistence boundary of the store: a durable map of
// bytes to bytes, partitioned into independent namespaces, with point
// lookups, prefix scans, and atomic multi-key batches.
//
// The fuzzy index core consumes this interface and never talks to a concrete
// engine directly. The package ships a BadgerDB-backed implementation for
// production use and an in-memory implementation for tests and ephemeral
// stores.
package kv

import (
	"context"
	"errors"
	"iter"
)

// ErrNotFound is returned when a key does not exist in a namespace.
var ErrNotFound = errors.New("kv: not found")

// Namespace partitions the key space. Each namespace is an independent
// logical map; the same key bytes may exist in several namespaces.
type Namespace byte

const (
	// Records maps group identifiers to encoded records.
	Records Namespace = 'r'
	// Index maps variant bytes to group identifier sets.
	Index Namespace = 'i'
	// Meta holds the store configuration and the id allocator.
	Meta Namespace = 'm'
)

// Entry is a key-value pair yielded by Scan.
type Entry struct {
	Key   []byte
	Value []byte
}

// Engine is a durable namespaced key-value engine.
//
// Implementations must guarantee that Apply commits all batch operations
// atomically: after a crash either every operation is visible or none is.
type Engine interface {
	// Get returns the value for key in ns, or ErrNotFound.
	Get(ctx context.Context, ns Namespace, key []byte) ([]byte, error)

	// Set stores a single key-value pair in ns.
	Set(ctx context.Context, ns Namespace, key, value []byte) error

	// Delete removes key from ns. Removing an absent key is not an error.
	Delete(ctx context.Context, ns Namespace, key []byte) error

	// Scan iterates over every entry in ns in lexicographic key order.
	Scan(ctx context.Context, ns Namespace) iter.Seq2[Entry, error]

	// Apply commits the batch atomically.
	Apply(ctx context.Context, b *Batch) error

	// Close flushes and releases the engine.
	Close() error
}

type batchOp struct {
	ns     Namespace
	key    []byte
	value  []byte
	delete bool
}

// Batch collects puts and deletes across namespaces for one atomic commit.
// A Batch is built by a single goroutine and submitted once via Engine.Apply.
type Batch struct {
	ops []batchOp
}

// NewBatch returns an empty batch.
func NewBatch() *Batch {
	return &Batch{}
}

// Put queues a set of key to value in ns.
func (b *Batch) Put(ns Namespace, key, value []byte) {
	b.ops = append(b.ops, batchOp{ns: ns, key: key, value: value})
}

// Delete queues a removal of key from ns.
func (b *Batch) Delete(ns Namespace, key []byte) {
	b.ops = append(b.ops, batchOp{ns: ns, key: key, delete: true})
}

// Len returns the number of queued operations.
func (b *Batch) Len() int {
	return len(b.ops)
}

// encodeKey prefixes key with the namespace byte, yielding the storage key.
// The prefix keeps namespaces disjoint and makes every storage key non-empty
// even for the empty variant.
func encodeKey(ns Namespace, key []byte) []byte {
	buf := make([]byte, len(key)+1)
	buf[0] = byte(ns)
	copy(buf[1:], key)
	return buf
}
