package batchgo

import (
	"log/slog"

	"github.com/batchgo/batchgo/resource"
)

type options struct {
	metricsCollector MetricsCollector
	logger           *Logger
	controller       *resource.Controller
}

// Option configures Loader constructor behavior.
//
// Today options primarily exist to avoid exploding the API surface; the
// fluent builder forwards to them.
type Option func(*options)

// WithMetricsCollector configures a metrics collector for monitoring batch
// delivery. Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &batchgo.BasicMetricsCollector{}
//	loader, _ := batchgo.Criteo(dir).Metrics(metrics).Build()
//	// ... stream batches ...
//	stats := metrics.GetStats()
//	fmt.Printf("Batches: %d, Avg latency: %dns\n", stats.BatchCount, stats.BatchAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := batchgo.NewJSONLogger(slog.LevelInfo)
//	loader, _ := batchgo.Criteo(dir).Logger(logger).Build()
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

// WithResourceController bounds prefetch memory and shard-read throughput.
// Pass nil to disable resource control.
func WithResourceController(c *resource.Controller) Option {
	return func(o *options) {
		o.controller = c
	}
}

func applyOptions(optFns []Option) options {
	o := options{
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
