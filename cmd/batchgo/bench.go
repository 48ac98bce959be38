package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/batchgo/batchgo"
	"github.com/batchgo/batchgo/resource"
)

var (
	benchDataDir   string
	benchBatchSize int
	benchWorldSize int
	benchRank      int
	benchShuffle   bool
	benchSeed      int64
	benchPrefetch  int
	benchMemLimit  int64
	benchMaxBatch  int
)

// benchCmd streams batches and reports throughput.
var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Stream batches from a dataset and report throughput",
	Long: `Streams one epoch of batches from this worker's share of the dataset
and reports rows per second and average batch latency.

Example:
  batchgo bench --data-dir /data/criteo_parquet --batch-size 16384 --world-size 4 --rank 0`,
	RunE: runBench,
}

func init() {
	benchCmd.Flags().StringVar(&benchDataDir, "data-dir", "", "dataset location (required)")
	benchCmd.Flags().IntVar(&benchBatchSize, "batch-size", batchgo.DefaultBatchSize, "global batch size")
	benchCmd.Flags().IntVar(&benchWorldSize, "world-size", 1, "total number of workers")
	benchCmd.Flags().IntVar(&benchRank, "rank", 0, "this worker's rank")
	benchCmd.Flags().BoolVar(&benchShuffle, "shuffle", false, "shuffle row groups")
	benchCmd.Flags().Int64Var(&benchSeed, "seed", batchgo.DefaultSeed, "sharding and shuffle seed")
	benchCmd.Flags().IntVar(&benchPrefetch, "prefetch", 2, "row groups buffered ahead of the consumer")
	benchCmd.Flags().Int64Var(&benchMemLimit, "memory-limit", 0, "prefetch memory budget in bytes, 0 = unlimited")
	benchCmd.Flags().IntVar(&benchMaxBatch, "max-batches", 0, "stop after this many batches, 0 = full epoch")
	_ = benchCmd.MarkFlagRequired("data-dir")
}

func runBench(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, err := openStore(ctx, benchDataDir)
	if err != nil {
		return err
	}

	metrics := &batchgo.BasicMetricsCollector{}

	builder := batchgo.CriteoStore(store).
		BatchSize(benchBatchSize).
		WorldSize(benchWorldSize).
		Rank(benchRank).
		Shuffle(benchShuffle).
		Seed(benchSeed).
		Prefetch(benchPrefetch).
		Logger(logger).
		Metrics(metrics)

	if benchMemLimit > 0 {
		builder = builder.ResourceController(resource.NewController(resource.Config{
			MemoryLimitBytes: benchMemLimit,
		}))
	}

	loader, err := builder.Build()
	if err != nil {
		return err
	}
	defer loader.Close()

	start := time.Now()
	for batch, err := range loader.Batches(ctx) {
		if err != nil {
			return err
		}
		_ = batch
		if benchMaxBatch > 0 && metrics.BatchCount.Load() >= int64(benchMaxBatch) {
			break
		}
	}
	elapsed := time.Since(start)

	stats := metrics.GetStats()
	rowsPerSec := float64(stats.BatchRows) / elapsed.Seconds()

	fmt.Printf("batches:        %d\n", stats.BatchCount)
	fmt.Printf("rows:           %d\n", stats.BatchRows)
	fmt.Printf("row groups:     %d\n", stats.RowGroupCount)
	fmt.Printf("tail dropped:   %d rows\n", stats.TailDroppedRows)
	fmt.Printf("elapsed:        %s\n", elapsed.Round(time.Millisecond))
	fmt.Printf("throughput:     %.0f rows/s\n", rowsPerSec)
	fmt.Printf("batch latency:  %s avg\n", time.Duration(stats.BatchAvgNanos).Round(time.Microsecond))
	return nil
}
