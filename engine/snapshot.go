package engine

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/klauspost/compress/s2"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/fuzzygo/codec"
	"github.com/hupe1980/fuzzygo/kv"
	"github.com/hupe1980/fuzzygo/variant"
)

// Snapshot container:
//
//  1. header (uncompressed): magic, version, radius, codec name,
//     compression name
//  2. compressed body: record entries, end marker, allocator value
//  3. CRC32 of the uncompressed body, inside the compressed stream
//
// Only records are exported. The variant index is regenerated on restore
// from the record keys, which makes every restored store satisfy the index
// completeness invariant by construction and keeps snapshots small.
var snapshotMagic = [4]byte{'F', 'Z', 'S', '1'}

const snapshotFormatVersion = uint16(1)

const (
	snapshotTagEnd    = byte(0)
	snapshotTagRecord = byte(1)
)

// snapshotMaxPayload bounds a single record entry in the body. The length
// field is untrusted on read; without a bound a corrupt snapshot could
// demand a multi-gigabyte allocation before the checksum is ever reached.
const snapshotMaxPayload = 64 << 20

// Compression names recorded in the snapshot header.
const (
	CompressionS2   = "s2"
	CompressionLZ4  = "lz4"
	CompressionNone = "none"
)

// SnapshotOptions configures snapshot creation.
type SnapshotOptions struct {
	// Compression selects the body compression: CompressionS2 (default),
	// CompressionLZ4, or CompressionNone.
	Compression string
}

// restoreBatchSize bounds the number of kv operations staged per batch
// during restore.
const restoreBatchSize = 256

// SaveSnapshot writes a point-in-time snapshot of all records to w.
//
// The record scan runs in one read transaction of the underlying engine, so
// the snapshot is internally consistent even with concurrent mutations; it
// simply reflects the state at scan start.
func (e *Engine[T]) SaveSnapshot(ctx context.Context, w io.Writer, optFns ...func(*SnapshotOptions)) error {
	opts := SnapshotOptions{
		Compression: CompressionS2,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if err := writeSnapshotHeader(w, e.maxDeletes, e.records.codec.Name(), opts.Compression); err != nil {
		return err
	}

	cw, err := newCompressor(opts.Compression, w)
	if err != nil {
		return err
	}

	crc := crc32.NewIEEE()
	body := io.MultiWriter(cw, crc)

	var scanErr error
	for entry, err := range e.kv.Scan(ctx, kv.Records) {
		if err != nil {
			scanErr = fmt.Errorf("engine: snapshot scan: %w", err)
			break
		}
		id, err := groupIDFromBytes(entry.Key)
		if err != nil {
			scanErr = &ErrCorrupt{What: "record key", cause: err}
			break
		}
		if err := writeSnapshotRecord(body, id, entry.Value); err != nil {
			scanErr = err
			break
		}
	}
	if scanErr != nil {
		_ = cw.Close()
		return scanErr
	}

	nextID, err := e.persistedNextID(ctx)
	if err != nil {
		_ = cw.Close()
		return err
	}

	var tail [9]byte
	tail[0] = snapshotTagEnd
	binary.BigEndian.PutUint64(tail[1:], nextID)
	if _, err := body.Write(tail[:]); err != nil {
		_ = cw.Close()
		return fmt.Errorf("engine: snapshot write: %w", err)
	}

	var sum [4]byte
	binary.BigEndian.PutUint32(sum[:], crc.Sum32())
	if _, err := cw.Write(sum[:]); err != nil {
		_ = cw.Close()
		return fmt.Errorf("engine: snapshot write: %w", err)
	}
	return cw.Close()
}

// persistedNextID reads the committed allocator value.
func (e *Engine[T]) persistedNextID(ctx context.Context) (uint64, error) {
	raw, err := e.kv.Get(ctx, kv.Meta, metaNextIDKey)
	if err != nil {
		return 0, fmt.Errorf("engine: read id allocator: %w", err)
	}
	if len(raw) != 8 {
		return 0, &ErrCorrupt{What: "id allocator", cause: fmt.Errorf("next_id has %d bytes, want 8", len(raw))}
	}
	return binary.BigEndian.Uint64(raw), nil
}

// RestoreSnapshot loads a snapshot from r into the empty kv engine e and
// returns the restored store. The deletion radius and codec are taken from
// the snapshot header; the variant index is rebuilt from the record keys.
//
// Restore is not atomic. If it fails partway the target engine is in an
// undefined state and must be discarded.
func RestoreSnapshot[T any](ctx context.Context, r io.Reader, e kv.Engine, optFns ...func(*Options)) (*Engine[T], error) {
	if _, err := e.Get(ctx, kv.Meta, metaConfigKey); !errors.Is(err, kv.ErrNotFound) {
		if err != nil {
			return nil, fmt.Errorf("engine: probe restore target: %w", err)
		}
		return nil, errors.New("engine: restore target already holds a store")
	}

	maxDeletes, codecName, compression, err := readSnapshotHeader(r)
	if err != nil {
		return nil, err
	}
	c, ok := codec.ByName(codecName)
	if !ok {
		return nil, fmt.Errorf("engine: snapshot uses unknown codec %q", codecName)
	}

	cr, err := newDecompressor(compression, r)
	if err != nil {
		return nil, err
	}

	crc := crc32.NewIEEE()
	rs := recordStore[T]{kv: e, codec: c}
	postings := make(map[string]*roaring64.Bitmap)

	b := kv.NewBatch()
	flush := func() error {
		if b.Len() == 0 {
			return nil
		}
		if err := e.Apply(ctx, b); err != nil {
			return fmt.Errorf("engine: restore batch: %w", err)
		}
		b = kv.NewBatch()
		return nil
	}

	nextID, err := readSnapshotBody(cr, crc, func(id GroupID, payload []byte) error {
		rec, err := rs.decode(payload)
		if err != nil {
			return err
		}
		b.Put(kv.Records, id.Bytes(), payload)
		for _, v := range variant.Generate(rec.Key, maxDeletes) {
			bm, ok := postings[v]
			if !ok {
				bm = roaring64.New()
				postings[v] = bm
			}
			bm.Add(uint64(id))
		}
		if b.Len() >= restoreBatchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for v, bm := range postings {
		raw, err := encodePostings(bm)
		if err != nil {
			return nil, err
		}
		b.Put(kv.Index, []byte(v), raw)
		if b.Len() >= restoreBatchSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}

	// Meta goes last: its presence marks the restore as complete.
	cfg, err := encodeMetaConfig(maxDeletes, codecName)
	if err != nil {
		return nil, err
	}
	final := kv.NewBatch()
	final.Put(kv.Meta, metaConfigKey, cfg)
	final.Put(kv.Meta, metaNextIDKey, encodeNextID(nextID))
	if err := e.Apply(ctx, final); err != nil {
		return nil, fmt.Errorf("engine: restore meta: %w", err)
	}

	return Open[T](ctx, e, c, maxDeletes, optFns...)
}

func writeSnapshotHeader(w io.Writer, maxDeletes int, codecName, compression string) error {
	if len(codecName) > 0xFF || len(compression) > 0xFF {
		return fmt.Errorf("engine: snapshot header name too long")
	}

	buf := make([]byte, 0, 16+len(codecName)+len(compression))
	buf = append(buf, snapshotMagic[:]...)
	buf = binary.BigEndian.AppendUint16(buf, snapshotFormatVersion)
	buf = binary.BigEndian.AppendUint32(buf, uint32(maxDeletes))
	buf = append(buf, byte(len(codecName)))
	buf = append(buf, codecName...)
	buf = append(buf, byte(len(compression)))
	buf = append(buf, compression...)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("engine: snapshot write: %w", err)
	}
	return nil
}

func readSnapshotHeader(r io.Reader) (maxDeletes int, codecName, compression string, err error) {
	var fixed [10]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return 0, "", "", &ErrCorrupt{What: "snapshot header", cause: err}
	}
	if [4]byte(fixed[0:4]) != snapshotMagic {
		return 0, "", "", &ErrCorrupt{What: "snapshot header", cause: errors.New("bad magic")}
	}
	if v := binary.BigEndian.Uint16(fixed[4:6]); v != snapshotFormatVersion {
		return 0, "", "", &ErrCorrupt{What: "snapshot header", cause: fmt.Errorf("unsupported version %d", v)}
	}
	maxDeletes = int(binary.BigEndian.Uint32(fixed[6:10]))

	readName := func() (string, error) {
		var n [1]byte
		if _, err := io.ReadFull(r, n[:]); err != nil {
			return "", err
		}
		name := make([]byte, n[0])
		if _, err := io.ReadFull(r, name); err != nil {
			return "", err
		}
		return string(name), nil
	}

	if codecName, err = readName(); err != nil {
		return 0, "", "", &ErrCorrupt{What: "snapshot header", cause: err}
	}
	if compression, err = readName(); err != nil {
		return 0, "", "", &ErrCorrupt{What: "snapshot header", cause: err}
	}
	return maxDeletes, codecName, compression, nil
}

func writeSnapshotRecord(w io.Writer, id GroupID, payload []byte) error {
	if len(payload) > snapshotMaxPayload {
		return fmt.Errorf("engine: snapshot record %d bytes exceeds limit", len(payload))
	}
	var hdr [13]byte
	hdr[0] = snapshotTagRecord
	binary.BigEndian.PutUint64(hdr[1:9], uint64(id))
	binary.BigEndian.PutUint32(hdr[9:13], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("engine: snapshot write: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("engine: snapshot write: %w", err)
	}
	return nil
}

// readSnapshotBody streams record entries to visit, verifies the trailing
// checksum, and returns the persisted allocator value.
func readSnapshotBody(r io.Reader, crc hash.Hash32, visit func(id GroupID, payload []byte) error) (uint64, error) {
	tr := io.TeeReader(r, crc)

	for {
		var tag [1]byte
		if _, err := io.ReadFull(tr, tag[:]); err != nil {
			return 0, &ErrCorrupt{What: "snapshot body", cause: err}
		}

		switch tag[0] {
		case snapshotTagRecord:
			var hdr [12]byte
			if _, err := io.ReadFull(tr, hdr[:]); err != nil {
				return 0, &ErrCorrupt{What: "snapshot body", cause: err}
			}
			id := GroupID(binary.BigEndian.Uint64(hdr[0:8]))
			n := binary.BigEndian.Uint32(hdr[8:12])
			if n > snapshotMaxPayload {
				return 0, &ErrCorrupt{What: "snapshot body", cause: fmt.Errorf("record length %d exceeds limit", n)}
			}
			payload := make([]byte, n)
			if _, err := io.ReadFull(tr, payload); err != nil {
				return 0, &ErrCorrupt{What: "snapshot body", cause: err}
			}
			if err := visit(id, payload); err != nil {
				return 0, err
			}

		case snapshotTagEnd:
			var tail [8]byte
			if _, err := io.ReadFull(tr, tail[:]); err != nil {
				return 0, &ErrCorrupt{What: "snapshot body", cause: err}
			}
			nextID := binary.BigEndian.Uint64(tail[:])

			want := crc.Sum32()
			var sum [4]byte
			if _, err := io.ReadFull(r, sum[:]); err != nil {
				return 0, &ErrCorrupt{What: "snapshot checksum", cause: err}
			}
			if got := binary.BigEndian.Uint32(sum[:]); got != want {
				return 0, &ErrCorrupt{What: "snapshot checksum", cause: fmt.Errorf("checksum %08x, want %08x", got, want)}
			}
			return nextID, nil

		default:
			return 0, &ErrCorrupt{What: "snapshot body", cause: fmt.Errorf("unknown tag %d", tag[0])}
		}
	}
}

func encodeMetaConfig(maxDeletes int, codecName string) ([]byte, error) {
	cfg := metaConfig{
		Version:    metaFormatVersion,
		MaxDeletes: maxDeletes,
		Codec:      codecName,
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("engine: encode config: %w", err)
	}
	return raw, nil
}

func newCompressor(name string, w io.Writer) (io.WriteCloser, error) {
	switch name {
	case CompressionS2:
		return s2.NewWriter(w), nil
	case CompressionLZ4:
		return lz4.NewWriter(w), nil
	case CompressionNone:
		return nopWriteCloser{w}, nil
	default:
		return nil, fmt.Errorf("engine: unknown compression %q", name)
	}
}

func newDecompressor(name string, r io.Reader) (io.Reader, error) {
	switch name {
	case CompressionS2:
		return s2.NewReader(r), nil
	case CompressionLZ4:
		return lz4.NewReader(r), nil
	case CompressionNone:
		return r, nil
	default:
		return nil, fmt.Errorf("engine: unknown compression %q", name)
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
