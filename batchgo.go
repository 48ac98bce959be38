package batchgo

import (
	"context"
	"errors"
	"io"
	"iter"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/batchgo/batchgo/blobstore"
	"github.com/batchgo/batchgo/manifest"
	"github.com/batchgo/batchgo/parquet"
	"github.com/batchgo/batchgo/resource"
	"github.com/batchgo/batchgo/rowgroup"
	"github.com/batchgo/batchgo/schema"
	"github.com/batchgo/batchgo/stitcher"
)

// Loader streams fixed-size training batches from one worker's share of a
// sharded Parquet dataset. It glues the shard-aware reader to the batch
// stitcher: row groups assigned to this worker are decoded, prefetched and
// re-chunked into exact batch sizes.
//
// A Loader is driven by a single consumer; Close may be called from any
// goroutine and is idempotent.
type Loader struct {
	cfg        loaderConfig
	metrics    MetricsCollector
	logger     *Logger
	controller *resource.Controller

	openOnce sync.Once
	openErr  error
	sch      *schema.Schema
	reader   *parquet.Reader
	st       *stitcher.Stitcher

	batches       atomic.Int64
	rowsDelivered atomic.Int64
	rowsRead      atomic.Int64
	tailReported  bool

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

type loaderConfig struct {
	store        blobstore.BlobStore
	sch          *schema.Schema
	files        []string
	fromManifest bool

	batchSize int // per worker
	worldSize int
	rank      int
	shuffle   bool
	seed      int64
	epochs    int
	dropTail  bool
	prefetch  int
}

func newLoader(cfg loaderConfig, optFns ...Option) *Loader {
	opts := applyOptions(optFns)

	return &Loader{
		cfg:        cfg,
		metrics:    opts.metricsCollector,
		logger:     opts.logger.WithRank(cfg.rank, cfg.worldSize).WithBatchSize(cfg.batchSize),
		controller: opts.controller,
	}
}

// BatchSize returns this worker's batch size.
func (l *Loader) BatchSize() int { return l.cfg.batchSize }

// Schema returns the dataset's field schema. Before the first batch request
// of a manifest-backed dataset this may be the configured schema rather than
// the loaded one.
func (l *Loader) Schema() *schema.Schema {
	if l.sch != nil {
		return l.sch
	}
	return l.cfg.sch
}

// Next returns the next training batch, or io.EOF when this worker's share
// of the dataset is exhausted. The first call opens the shard files.
func (l *Loader) Next(ctx context.Context) (*stitcher.Batch, error) {
	if l.closed.Load() {
		return nil, ErrClosed
	}
	if err := l.open(ctx); err != nil {
		return nil, err
	}

	start := time.Now()

	b, err := l.st.Next(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) {
			l.reportTail(ctx)
			return nil, io.EOF
		}
		l.metrics.RecordBatch(0, time.Since(start), err)
		return nil, translateError(err)
	}

	l.batches.Add(1)
	l.rowsDelivered.Add(int64(b.Size()))
	l.metrics.RecordBatch(b.Size(), time.Since(start), nil)
	l.logger.LogBatch(ctx, b.Size(), time.Since(start))

	return b, nil
}

// Batches returns an iterator over all remaining batches. Iteration stops
// after the first error; io.EOF is consumed and never yielded.
func (l *Loader) Batches(ctx context.Context) iter.Seq2[*stitcher.Batch, error] {
	return func(yield func(*stitcher.Batch, error) bool) {
		for {
			b, err := l.Next(ctx)
			if err != nil {
				if errors.Is(err, io.EOF) {
					return
				}
				yield(nil, err)
				return
			}
			if !yield(b, nil) {
				return
			}
		}
	}
}

// Close releases the reader and all shard files. It is idempotent.
func (l *Loader) Close() error {
	l.closeOnce.Do(func() {
		l.closed.Store(true)
		if l.reader != nil {
			l.closeErr = translateError(l.reader.Close())
		}
		l.logger.LogClose(context.Background(), l.batches.Load(), l.rowsDelivered.Load(), l.closeErr)
	})
	return l.closeErr
}

func (l *Loader) open(ctx context.Context) error {
	l.openOnce.Do(func() {
		l.openErr = l.doOpen(ctx)
	})
	return l.openErr
}

func (l *Loader) doOpen(ctx context.Context) error {
	cfg := l.cfg

	l.sch = cfg.sch
	files := append([]string(nil), cfg.files...)

	if cfg.fromManifest {
		m, err := manifest.Load(ctx, cfg.store)
		if err != nil {
			l.logger.LogOpen(ctx, 0, 0, err)
			return translateError(err)
		}
		if l.sch == nil {
			sch, err := m.Schema()
			if err != nil {
				return translateError(err)
			}
			l.sch = sch
		}
		for _, s := range m.Shards {
			files = append(files, s.Path)
		}
	}
	// All workers must agree on the global row-group numbering.
	sort.Strings(files)

	reader, err := parquet.NewReader(cfg.store, files, l.sch, func(o *parquet.Options) {
		o.ShardCount = cfg.worldSize
		o.ShardIndex = cfg.rank
		o.Seed = cfg.seed
		o.ShuffleRowGroups = cfg.shuffle
		o.Epochs = cfg.epochs
		o.Prefetch = cfg.prefetch
		o.Controller = l.controller
	})
	if err != nil {
		return translateError(err)
	}

	if err := reader.Open(ctx); err != nil {
		l.logger.LogOpen(ctx, len(files), 0, err)
		_ = reader.Close()
		return translateError(err)
	}
	l.reader = reader

	st, err := stitcher.New(&countingSource{reader: reader, loader: l}, l.sch, cfg.batchSize, func(o *stitcher.Options) {
		o.DropIncompleteTail = cfg.dropTail
	})
	if err != nil {
		_ = reader.Close()
		return translateError(err)
	}
	l.st = st

	l.logger.LogOpen(ctx, len(files), reader.NumRowGroups(), nil)
	return nil
}

// reportTail records the rows discarded at end of stream: everything read
// from the shards but never delivered in a batch.
func (l *Loader) reportTail(ctx context.Context) {
	if l.tailReported {
		return
	}
	l.tailReported = true

	dropped := int(l.rowsRead.Load() - l.rowsDelivered.Load())
	if dropped <= 0 {
		return
	}
	l.metrics.RecordTailDropped(dropped)
	l.logger.LogTail(ctx, dropped, true)
}

// countingSource forwards the reader to the stitcher while recording
// row-group metrics.
type countingSource struct {
	reader *parquet.Reader
	loader *Loader
}

func (s *countingSource) Next(ctx context.Context) (*rowgroup.RowGroup, error) {
	rg, err := s.reader.Next(ctx)
	if err != nil {
		return nil, err
	}
	s.loader.rowsRead.Add(int64(rg.NumRows()))
	s.loader.metrics.RecordRowGroup(rg.NumRows())
	return rg, nil
}
