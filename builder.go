// Package batchgo provides functionalities for a sharded training-data loader.
//
// This file implements the fluent builder API for creating and configuring
// Loader instances. Builders are immutable - each method returns a new builder
// with the updated configuration.
package batchgo

import (
	"fmt"

	"github.com/batchgo/batchgo/blobstore"
	"github.com/batchgo/batchgo/criteo"
	"github.com/batchgo/batchgo/resource"
	"github.com/batchgo/batchgo/schema"
)

// DefaultBatchSize is the default global batch size.
const DefaultBatchSize = 16384

// DefaultSeed is the default sharding and shuffle seed.
const DefaultSeed = 1234

// Criteo creates a loader builder for a converted Criteo dataset rooted at
// dataDir: sharded Parquet files plus a MANIFEST, as written by the criteo
// converter. The schema is the fixed Criteo field schema.
//
// The builder is immutable - each method returns a new builder with the
// updated configuration.
//
// Example:
//
//	loader, err := batchgo.Criteo("/data/criteo_parquet").
//	    BatchSize(16384).
//	    WorldSize(4).
//	    Rank(rank).
//	    Shuffle(true).
//	    Build()
func Criteo(dataDir string) DatasetBuilder {
	b := newDatasetBuilder()
	b.store = blobstore.NewLocalStore(dataDir)
	b.sch = criteo.Schema()
	b.fromManifest = true
	return b
}

// CriteoStore is like Criteo but reads from an arbitrary blob store, e.g. an
// S3 or MinIO prefix.
func CriteoStore(store blobstore.BlobStore) DatasetBuilder {
	b := newDatasetBuilder()
	b.store = store
	b.sch = criteo.Schema()
	b.fromManifest = true
	return b
}

// Dataset creates a loader builder for an arbitrary Parquet dataset with the
// given field schema. When no files are given the dataset manifest is
// consulted.
//
// Example:
//
//	loader, err := batchgo.Dataset(sch, store, "part-00000.parquet").
//	    BatchSize(512).
//	    Build()
func Dataset(sch *schema.Schema, store blobstore.BlobStore, files ...string) DatasetBuilder {
	b := newDatasetBuilder()
	b.store = store
	b.sch = sch
	b.files = files
	b.fromManifest = len(files) == 0
	return b
}

func newDatasetBuilder() DatasetBuilder {
	return DatasetBuilder{
		batchSize: DefaultBatchSize,
		worldSize: 1,
		seed:      DefaultSeed,
		epochs:    1,
		dropTail:  true,
		prefetch:  2,
	}
}

// DatasetBuilder is an immutable fluent builder for creating Loader instances.
// Each method returns a new builder with the updated configuration.
type DatasetBuilder struct {
	store        blobstore.BlobStore
	sch          *schema.Schema
	files        []string
	fromManifest bool

	batchSize int
	worldSize int
	rank      int
	shuffle   bool
	seed      int64
	epochs    int
	dropTail  bool
	prefetch  int

	logger     *Logger
	metrics    MetricsCollector
	controller *resource.Controller
}

// BatchSize sets the global batch size. It is divided evenly across the
// worldSize workers; each worker's batches hold batchSize/worldSize rows.
// Default: 16384.
func (b DatasetBuilder) BatchSize(n int) DatasetBuilder {
	b.batchSize = n
	return b
}

// WorldSize sets the total number of parallel workers reading the dataset.
// Default: 1.
func (b DatasetBuilder) WorldSize(n int) DatasetBuilder {
	b.worldSize = n
	return b
}

// Rank sets this worker's index in [0, worldSize). Default: 0.
func (b DatasetBuilder) Rank(r int) DatasetBuilder {
	b.rank = r
	return b
}

// Shuffle enables row-group shuffling, reseeded each epoch.
// Rows within a row group keep their order. Default: false.
func (b DatasetBuilder) Shuffle(enabled bool) DatasetBuilder {
	b.shuffle = enabled
	return b
}

// Seed sets the sharding and shuffle seed. All workers of one run must use
// the same seed so their row-group partitions are disjoint. Default: 1234.
func (b DatasetBuilder) Seed(seed int64) DatasetBuilder {
	b.seed = seed
	return b
}

// Epochs sets the number of passes over the dataset; 0 streams forever.
// Default: 1.
func (b DatasetBuilder) Epochs(n int) DatasetBuilder {
	b.epochs = n
	return b
}

// DropIncompleteTail controls the leftover rows at end of stream: true (the
// default) drops them, false emits one final short batch.
func (b DatasetBuilder) DropIncompleteTail(drop bool) DatasetBuilder {
	b.dropTail = drop
	return b
}

// Prefetch sets the number of decoded row groups buffered ahead of the
// consumer. Default: 2.
func (b DatasetBuilder) Prefetch(n int) DatasetBuilder {
	b.prefetch = n
	return b
}

// Logger sets the structured logger for operation tracing.
func (b DatasetBuilder) Logger(l *Logger) DatasetBuilder {
	b.logger = l
	return b
}

// Metrics sets the metrics collector for monitoring.
func (b DatasetBuilder) Metrics(mc MetricsCollector) DatasetBuilder {
	b.metrics = mc
	return b
}

// ResourceController bounds prefetch memory and shard-read throughput.
func (b DatasetBuilder) ResourceController(c *resource.Controller) DatasetBuilder {
	b.controller = c
	return b
}

// Build creates the Loader. No IO happens here; shard files are opened on
// the first batch request.
func (b DatasetBuilder) Build() (*Loader, error) {
	if b.store == nil {
		return nil, fmt.Errorf("batchgo: nil blob store")
	}
	if b.batchSize <= 0 {
		return nil, ErrInvalidBatchSize
	}
	if b.worldSize < 1 {
		return nil, &ErrInvalidRank{Rank: b.rank, WorldSize: b.worldSize}
	}
	if b.rank < 0 || b.rank >= b.worldSize {
		return nil, &ErrInvalidRank{Rank: b.rank, WorldSize: b.worldSize}
	}
	if b.batchSize%b.worldSize != 0 {
		return nil, &ErrBatchSizeNotDivisible{BatchSize: b.batchSize, WorldSize: b.worldSize}
	}
	if !b.fromManifest && b.sch == nil {
		return nil, ErrInvalidSchema
	}

	var vecOpts []Option
	if b.logger != nil {
		vecOpts = append(vecOpts, WithLogger(b.logger))
	}
	if b.metrics != nil {
		vecOpts = append(vecOpts, WithMetricsCollector(b.metrics))
	}
	if b.controller != nil {
		vecOpts = append(vecOpts, WithResourceController(b.controller))
	}

	return newLoader(loaderConfig{
		store:        b.store,
		sch:          b.sch,
		files:        b.files,
		fromManifest: b.fromManifest,
		batchSize:    b.batchSize / b.worldSize,
		worldSize:    b.worldSize,
		rank:         b.rank,
		shuffle:      b.shuffle,
		seed:         b.seed,
		epochs:       b.epochs,
		dropTail:     b.dropTail,
		prefetch:     b.prefetch,
	}, vecOpts...), nil
}

// MustBuild creates the Loader, panicking on error.
func (b DatasetBuilder) MustBuild() *Loader {
	loader, err := b.Build()
	if err != nil {
		panic(err)
	}
	return loader
}
