package batchgo

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    batchCounter   prometheus.Counter
//	    batchHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordBatch(rows int, duration time.Duration, err error) {
//	    p.batchCounter.Inc()
//	    // ... record error state, duration, etc.
//	}
type MetricsCollector interface {
	// RecordBatch is called after each batch delivery.
	// rows is the batch size, duration the stitch latency, err is nil on
	// success and never io.EOF.
	RecordBatch(rows int, duration time.Duration, err error)

	// RecordRowGroup is called for each row group decoded from a shard.
	RecordRowGroup(rows int)

	// RecordTailDropped is called when an incomplete tail is discarded at
	// end of stream.
	RecordTailDropped(rows int)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordBatch(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordRowGroup(int)                    {}
func (NoopMetricsCollector) RecordTailDropped(int)                 {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	BatchCount      atomic.Int64
	BatchErrors     atomic.Int64
	BatchRows       atomic.Int64
	BatchTotalNanos atomic.Int64
	RowGroupCount   atomic.Int64
	RowGroupRows    atomic.Int64
	TailDroppedRows atomic.Int64
}

// RecordBatch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBatch(rows int, duration time.Duration, err error) {
	b.BatchCount.Add(1)
	b.BatchTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.BatchErrors.Add(1)
		return
	}
	b.BatchRows.Add(int64(rows))
}

// RecordRowGroup implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRowGroup(rows int) {
	b.RowGroupCount.Add(1)
	b.RowGroupRows.Add(int64(rows))
}

// RecordTailDropped implements MetricsCollector.
func (b *BasicMetricsCollector) RecordTailDropped(rows int) {
	b.TailDroppedRows.Add(int64(rows))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		BatchCount:      b.BatchCount.Load(),
		BatchErrors:     b.BatchErrors.Load(),
		BatchRows:       b.BatchRows.Load(),
		BatchAvgNanos:   b.getAvgBatchNanos(),
		RowGroupCount:   b.RowGroupCount.Load(),
		RowGroupRows:    b.RowGroupRows.Load(),
		TailDroppedRows: b.TailDroppedRows.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgBatchNanos() int64 {
	count := b.BatchCount.Load()
	if count == 0 {
		return 0
	}
	return b.BatchTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	BatchCount      int64
	BatchErrors     int64
	BatchRows       int64
	BatchAvgNanos   int64
	RowGroupCount   int64
	RowGroupRows    int64
	TailDroppedRows int64
}
