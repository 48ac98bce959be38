// Package batchgo provides a sharded columnar training-data pipeline for Go.
//
// Batchgo reads Parquet shard datasets and delivers fixed-size training
// batches with production-ready features including:
//
//   - Shard-aware batch stitching: variable-length row groups are re-chunked
//     into exact batch sizes with a tail buffer carried across boundaries
//   - Deterministic seeded sharding across distributed workers
//   - Prefetching Parquet reader with bounded memory and IO budgets
//   - Pluggable shard storage: local (mmap), in-memory, S3, MinIO
//   - Dataset manifests describing shards, schema and compression
//   - Criteo click-log TSV to Parquet conversion tooling
//
// # Quick Start (Fluent API)
//
// Stream batches from a converted Criteo dataset:
//
//	ctx := context.Background()
//	loader, err := batchgo.Criteo("/data/criteo_parquet").
//	    BatchSize(16384).     // Global batch size
//	    WorldSize(4).         // Total parallel workers
//	    Rank(0).              // This worker's index
//	    Shuffle(true).        // Shuffle row groups per epoch
//	    Seed(1234).           // Deterministic across workers
//	    Epochs(1).
//	    Build()
//	if err != nil {
//	    panic(err)
//	}
//	defer loader.Close()
//
//	for batch, err := range loader.Batches(ctx) {
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    train(batch.Labels, batch.Features)
//	}
//
// Each worker receives batchSize/worldSize rows per batch from a disjoint
// subset of the dataset's row groups; all workers together cover every row
// exactly once per epoch.
//
// # Custom Datasets
//
// Any Parquet dataset with a label column and integer feature columns works
// through the generic builder:
//
//	sch := schema.MustNew(
//	    schema.Field{Name: "label", Kind: schema.KindInt32},
//	    schema.Field{Name: "f0", Kind: schema.KindInt64},
//	)
//	loader, err := batchgo.Dataset(sch, store, "part-00000.parquet").
//	    BatchSize(512).
//	    Build()
//
// # Dataset Conversion
//
// The criteo package converts the raw TSV release into sharded Parquet with
// a manifest; the cmd/batchgo CLI wraps it together with bench and inspect
// commands.
package batchgo
