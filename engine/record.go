package engine

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/hupe1980/fuzzygo/codec"
	"github.com/hupe1980/fuzzygo/kv"
)

// GroupID identifies one stored (key, value) pair. IDs are allocated
// monotonically and never reused within a store's lifetime, so a deleted
// entry's id can never alias a later insert.
type GroupID uint64

// Bytes returns the fixed-width big-endian encoding used as the record's
// storage key. Big-endian keeps record scans in allocation order.
func (id GroupID) Bytes() []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(id))
	return buf[:]
}

func groupIDFromBytes(b []byte) (GroupID, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("group id has %d bytes, want 8", len(b))
	}
	return GroupID(binary.BigEndian.Uint64(b)), nil
}

// record is the stored form of one entry: the original key and its payload.
type record[T any] struct {
	Key   string `json:"key" msgpack:"key"`
	Value T      `json:"value" msgpack:"value"`
}

// recordStore reads and writes records through the kv engine. Mutations are
// staged into batches by the engine so they commit together with the index
// maintenance they belong to.
type recordStore[T any] struct {
	kv    kv.Engine
	codec codec.Codec
}

func (rs *recordStore[T]) encode(rec record[T]) ([]byte, error) {
	raw, err := rs.codec.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("engine: encode record: %w", err)
	}
	return raw, nil
}

func (rs *recordStore[T]) decode(raw []byte) (record[T], error) {
	var rec record[T]
	if err := rs.codec.Unmarshal(raw, &rec); err != nil {
		return record[T]{}, &ErrCorrupt{What: "record", cause: err}
	}
	return rec, nil
}

// get returns the record for id, or ErrNotFound.
func (rs *recordStore[T]) get(ctx context.Context, id GroupID) (record[T], error) {
	raw, err := rs.kv.Get(ctx, kv.Records, id.Bytes())
	if errors.Is(err, kv.ErrNotFound) {
		return record[T]{}, ErrNotFound
	}
	if err != nil {
		return record[T]{}, fmt.Errorf("engine: read record %d: %w", id, err)
	}
	return rs.decode(raw)
}
