package engine

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a group identifier has no live record.
//
// This is an engine-layer sentinel; the fuzzygo package translates it into
// its public error contract.
var ErrNotFound = errors.New("not found")

// ErrConfigMismatch indicates that a persisted store was reopened with a
// configuration different from the one it was created with. The open fails;
// neither value is silently preferred.
type ErrConfigMismatch struct {
	Field     string
	Persisted string
	Requested string
}

func (e *ErrConfigMismatch) Error() string {
	return fmt.Sprintf("config mismatch: %s persisted as %s, requested %s", e.Field, e.Persisted, e.Requested)
}

// ErrThresholdExceeded indicates a fuzzy lookup requested a tolerance beyond
// the precomputed deletion radius. The lookup is rejected before any index
// probe; no partial result is returned.
type ErrThresholdExceeded struct {
	Threshold  int
	MaxDeletes int
}

func (e *ErrThresholdExceeded) Error() string {
	return fmt.Sprintf("lookup threshold %d exceeds precomputed radius %d", e.Threshold, e.MaxDeletes)
}

// ErrCorrupt indicates a stored record or index entry failed to decode.
// It is propagated rather than skipped: silently dropping an undecodable
// entry would be indistinguishable from a negative lookup.
//
// The underlying decode error (if any) is available via errors.Unwrap.
type ErrCorrupt struct {
	What  string
	cause error
}

func (e *ErrCorrupt) Error() string {
	if e.cause == nil {
		return fmt.Sprintf("corrupt %s", e.What)
	}
	return fmt.Sprintf("corrupt %s: %v", e.What, e.cause)
}

func (e *ErrCorrupt) Unwrap() error { return e.cause }
