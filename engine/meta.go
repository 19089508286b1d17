package engine

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/hupe1980/fuzzygo/kv"
)

const metaFormatVersion = 1

var (
	metaConfigKey = []byte("config")
	metaNextIDKey = []byte("next_id")
)

// metaConfig is the immutable store configuration, persisted once at
// creation. It is always encoded with stdlib JSON regardless of the record
// codec, so it can be decoded before the codec is known to match.
type metaConfig struct {
	Version    int    `json:"version"`
	MaxDeletes int    `json:"max_deletes"`
	Codec      string `json:"codec"`
}

// loadOrInitMeta validates an existing store's configuration against the
// requested one, or initializes a fresh store. It returns the next group id
// to allocate.
func loadOrInitMeta(ctx context.Context, e kv.Engine, maxDeletes int, codecName string) (uint64, error) {
	raw, err := e.Get(ctx, kv.Meta, metaConfigKey)
	if errors.Is(err, kv.ErrNotFound) {
		return initMeta(ctx, e, maxDeletes, codecName)
	}
	if err != nil {
		return 0, fmt.Errorf("engine: read config: %w", err)
	}

	var cfg metaConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return 0, &ErrCorrupt{What: "store config", cause: err}
	}
	if cfg.Version != metaFormatVersion {
		return 0, &ErrConfigMismatch{
			Field:     "format version",
			Persisted: strconv.Itoa(cfg.Version),
			Requested: strconv.Itoa(metaFormatVersion),
		}
	}
	if cfg.MaxDeletes != maxDeletes {
		return 0, &ErrConfigMismatch{
			Field:     "max deletes",
			Persisted: strconv.Itoa(cfg.MaxDeletes),
			Requested: strconv.Itoa(maxDeletes),
		}
	}
	if cfg.Codec != codecName {
		return 0, &ErrConfigMismatch{
			Field:     "codec",
			Persisted: cfg.Codec,
			Requested: codecName,
		}
	}

	rawID, err := e.Get(ctx, kv.Meta, metaNextIDKey)
	if errors.Is(err, kv.ErrNotFound) {
		return 0, &ErrCorrupt{What: "id allocator", cause: errors.New("next_id missing")}
	}
	if err != nil {
		return 0, fmt.Errorf("engine: read id allocator: %w", err)
	}
	if len(rawID) != 8 {
		return 0, &ErrCorrupt{What: "id allocator", cause: fmt.Errorf("next_id has %d bytes, want 8", len(rawID))}
	}
	return binary.BigEndian.Uint64(rawID), nil
}

func initMeta(ctx context.Context, e kv.Engine, maxDeletes int, codecName string) (uint64, error) {
	cfg := metaConfig{
		Version:    metaFormatVersion,
		MaxDeletes: maxDeletes,
		Codec:      codecName,
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return 0, fmt.Errorf("engine: encode config: %w", err)
	}

	// Group id 0 is never allocated so the uint64 zero value cannot alias a
	// live record.
	const firstID = 1

	b := kv.NewBatch()
	b.Put(kv.Meta, metaConfigKey, raw)
	b.Put(kv.Meta, metaNextIDKey, encodeNextID(firstID))
	if err := e.Apply(ctx, b); err != nil {
		return 0, fmt.Errorf("engine: init store config: %w", err)
	}
	return firstID, nil
}

func encodeNextID(next uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], next)
	return buf[:]
}
