package resource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNilController(t *testing.T) {
	var c *Controller
	ctx := context.Background()

	require.NoError(t, c.AcquireMemory(ctx, 1<<20))
	c.ReleaseMemory(1 << 20)
	require.NoError(t, c.WaitIO(ctx, 1<<20))
	require.Equal(t, int64(0), c.MemoryUsage())
}

func TestMemoryTrackingWithoutLimit(t *testing.T) {
	c := NewController(Config{})
	ctx := context.Background()

	require.NoError(t, c.AcquireMemory(ctx, 100))
	require.NoError(t, c.AcquireMemory(ctx, 200))
	require.Equal(t, int64(300), c.MemoryUsage())

	c.ReleaseMemory(100)
	require.Equal(t, int64(200), c.MemoryUsage())
}

func TestMemoryLimitBlocks(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})
	ctx := context.Background()

	require.NoError(t, c.AcquireMemory(ctx, 80))

	// A second acquire beyond the budget must block until release or
	// cancellation.
	blocked, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err := c.AcquireMemory(blocked, 80)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	c.ReleaseMemory(80)
	require.NoError(t, c.AcquireMemory(ctx, 80))
	c.ReleaseMemory(80)
}

func TestWaitIO_LargerThanBurst(t *testing.T) {
	// A single read larger than the per-second budget must still be
	// admitted, in installments, rather than erroring.
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, c.WaitIO(ctx, 1<<20+512))
}
