package kv

import (
	"context"
	"iter"
	"sort"
	"sync"
)

// Memory is an in-memory Engine. It is safe for concurrent use and applies
// batches atomically under a single lock, but provides no durability.
type Memory struct {
	mu   sync.RWMutex
	data map[Namespace]map[string][]byte
}

// NewMemory returns an empty in-memory engine.
func NewMemory() *Memory {
	return &Memory{
		data: make(map[Namespace]map[string][]byte),
	}
}

func (m *Memory) Get(_ context.Context, ns Namespace, key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	val, ok := m.data[ns][string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (m *Memory) Set(_ context.Context, ns Namespace, key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set(ns, key, value)
	return nil
}

func (m *Memory) Delete(_ context.Context, ns Namespace, key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data[ns], string(key))
	return nil
}

func (m *Memory) Scan(_ context.Context, ns Namespace) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		m.mu.RLock()
		keys := make([]string, 0, len(m.data[ns]))
		for k := range m.data[ns] {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		entries := make([]Entry, 0, len(keys))
		for _, k := range keys {
			val := m.data[ns][k]
			out := make([]byte, len(val))
			copy(out, val)
			entries = append(entries, Entry{Key: []byte(k), Value: out})
		}
		m.mu.RUnlock()

		for _, e := range entries {
			if !yield(e, nil) {
				return
			}
		}
	}
}

func (m *Memory) Apply(_ context.Context, b *Batch) error {
	if b == nil || len(b.ops) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, op := range b.ops {
		if op.delete {
			delete(m.data[op.ns], string(op.key))
			continue
		}
		m.set(op.ns, op.key, op.value)
	}
	return nil
}

// set copies value into the namespace map. Caller holds the write lock.
func (m *Memory) set(ns Namespace, key, value []byte) {
	nsMap, ok := m.data[ns]
	if !ok {
		nsMap = make(map[string][]byte)
		m.data[ns] = nsMap
	}
	val := make([]byte, len(value))
	copy(val, value)
	nsMap[string(key)] = val
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[Namespace]map[string][]byte)
	return nil
}
