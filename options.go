package fuzzygo

import (
	"log/slog"

	"github.com/hupe1980/fuzzygo/codec"
	"github.com/hupe1980/fuzzygo/engine"
)

// DefaultMaxDeletes is the edit radius used when none is configured.
const DefaultMaxDeletes = 2

type options struct {
	codec             codec.Codec
	maxDeletes        int
	lookupConcurrency int
	metricsCollector  MetricsCollector
	logger            *Logger
}

// Option configures Open and the Restore constructors. The builders expose
// the same knobs as fluent methods.
type Option func(*options)

// WithCodec configures the codec used for record values.
//
// The codec is part of the persisted configuration: a store must always be
// opened with the codec it was created with. If nil is passed, codec.Default
// is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithMaxDeletes configures the indexed edit radius. Like the codec, it is
// fixed at store creation; reopening with a different value fails with
// ErrConfigMismatch.
//
// Ignored by the Restore constructors, which take the radius from the
// snapshot header.
func WithMaxDeletes(n int) Option {
	return func(o *options) {
		o.maxDeletes = n
	}
}

// WithLookupConcurrency bounds the number of candidate records verified in
// parallel during a fuzzy lookup. Defaults to GOMAXPROCS.
func WithLookupConcurrency(n int) Option {
	return func(o *options) {
		o.lookupConcurrency = n
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &fuzzygo.BasicMetricsCollector{}
//	db, _ := fuzzygo.Open[string](ctx, e, fuzzygo.WithMetricsCollector(metrics))
//	// ... use db ...
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		maxDeletes:       DefaultMaxDeletes,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	return o
}

func engineOptions(o options) []func(*engine.Options) {
	if o.lookupConcurrency <= 0 {
		return nil
	}
	return []func(*engine.Options){
		func(eo *engine.Options) {
			eo.LookupConcurrency = o.lookupConcurrency
		},
	}
}
