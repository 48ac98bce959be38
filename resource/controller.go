// Package resource bounds the memory and IO the prefetch pipeline may use.
//
// Decoded row groups for wide datasets are large (tens of megabytes each), so
// an unbounded prefetcher can easily out-run the training loop and exhaust
// host memory. The controller gives the pipeline a budget: row-group decodes
// reserve memory before they start and release it when the batch consumer is
// done, and shard reads can be throttled to a byte rate so background
// conversion jobs do not starve foreground training IO.
package resource

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits. The zero value enforces nothing.
type Config struct {
	// MemoryLimitBytes is the hard limit for in-flight decoded row groups.
	// If 0, no limit is enforced (only tracking).
	MemoryLimitBytes int64

	// IOLimitBytesPerSec is the maximum shard-read throughput.
	// If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller manages the pipeline's memory and IO budgets. A nil *Controller
// is valid and enforces nothing.
type Controller struct {
	cfg Config

	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	ioLimiter *rate.Limiter // nil if unlimited
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	c := &Controller{cfg: cfg}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}
	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	return c
}

// AcquireMemory reserves memory for a decoded row group, blocking until the
// budget has room or ctx is canceled.
func (c *Controller) AcquireMemory(ctx context.Context, bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}

	if c.memSem != nil {
		// A single reservation larger than the whole budget would never be
		// admitted; clamp it so oversized row groups still flow, one at a time.
		if err := c.memSem.Acquire(ctx, min(bytes, c.cfg.MemoryLimitBytes)); err != nil {
			return err
		}
	}

	c.memUsed.Add(bytes)
	return nil
}

// ReleaseMemory returns reserved memory to the budget.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}

	if c.memSem != nil {
		c.memSem.Release(min(bytes, c.cfg.MemoryLimitBytes))
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the currently reserved bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// WaitIO blocks until the IO budget allows reading the given number of
// bytes. Reads larger than one second's budget are admitted in burst-sized
// installments.
func (c *Controller) WaitIO(ctx context.Context, bytes int64) error {
	if c == nil || c.ioLimiter == nil || bytes <= 0 {
		return nil
	}

	burst := int64(c.ioLimiter.Burst())
	for bytes > 0 {
		n := bytes
		if n > burst {
			n = burst
		}
		if err := c.ioLimiter.WaitN(ctx, int(n)); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}
