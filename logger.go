package fuzzygo

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with fuzzygo-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithID adds an id field to the logger (useful for tagging operations).
func (l *Logger) WithID(id uint64) *Logger {
	return &Logger{
		Logger: l.Logger.With("id", id),
	}
}

// LogInsert logs an insert operation. Keys may carry user data, so only the
// key length is logged.
func (l *Logger) LogInsert(ctx context.Context, id uint64, keyLen int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "insert failed",
			"key_len", keyLen,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "insert completed",
			"id", id,
			"key_len", keyLen,
		)
	}
}

// LogUpdate logs a value update.
func (l *Logger) LogUpdate(ctx context.Context, id uint64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "update failed",
			"id", id,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "update completed",
			"id", id,
		)
	}
}

// LogRemove logs a remove operation.
func (l *Logger) LogRemove(ctx context.Context, id uint64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "remove failed",
			"id", id,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "remove completed",
			"id", id,
		)
	}
}

// LogLookup logs a lookup operation.
func (l *Logger) LogLookup(ctx context.Context, threshold, resultsFound int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "lookup failed",
			"threshold", threshold,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "lookup completed",
			"threshold", threshold,
			"results", resultsFound,
		)
	}
}

// LogSnapshot logs a snapshot or backup operation.
func (l *Logger) LogSnapshot(ctx context.Context, destination string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot failed",
			"destination", destination,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot saved",
			"destination", destination,
		)
	}
}

// LogRestore logs a snapshot restore.
func (l *Logger) LogRestore(ctx context.Context, source string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "restore failed",
			"source", source,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "restore completed",
			"source", source,
		)
	}
}
