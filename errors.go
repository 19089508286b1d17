package fuzzygo

import (
	"errors"
	"fmt"

	"github.com/hupe1980/fuzzygo/engine"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("not found")
)

// ErrConfigMismatch is returned when a store is reopened with a
// configuration that differs from the persisted one.
type ErrConfigMismatch = engine.ErrConfigMismatch

// ErrThresholdExceeded is returned when a lookup threshold exceeds the
// store's indexed edit radius.
type ErrThresholdExceeded = engine.ErrThresholdExceeded

// ErrCorrupt is returned when persisted data or a snapshot cannot be
// decoded. It is never silently skipped.
type ErrCorrupt = engine.ErrCorrupt

func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Not found unification.
	if errors.Is(err, engine.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	return err
}
