// Package parquet implements the sharded row-group reader feeding the batch
// stitcher.
//
// A dataset is a set of Parquet shard files in a blob store. The reader
// enumerates every row group across every file into one global ordering,
// takes the subset assigned to its shard by the seeded partition, and decodes
// those row groups into column-aligned chunks, optionally shuffling the
// row-group order each epoch. Decoding runs ahead of the consumer on a
// prefetch goroutine with a bounded hand-off channel, so shard IO overlaps
// training compute without unbounded buffering.
package parquet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/segmentio/parquet-go"
	"golang.org/x/sync/errgroup"

	"github.com/batchgo/batchgo/blobstore"
	"github.com/batchgo/batchgo/resource"
	"github.com/batchgo/batchgo/rowgroup"
	"github.com/batchgo/batchgo/schema"
	"github.com/batchgo/batchgo/shard"
)

// ErrClosed is returned by Next after Close has been called.
var ErrClosed = errors.New("parquet: reader is closed")

// Options configures a Reader.
type Options struct {
	// ShardCount is the total number of parallel workers; ShardIndex is this
	// worker's index in [0, ShardCount). Both are explicit: the reader never
	// consults process-global state.
	ShardCount int
	ShardIndex int

	// Seed drives both the shard partition and the per-epoch shuffle, so all
	// workers agree on a disjoint partition and a run is reproducible.
	Seed int64

	// ShuffleRowGroups randomizes the row-group order each epoch.
	ShuffleRowGroups bool

	// Epochs bounds how many passes to make over the assigned row groups.
	// 0 means unbounded.
	Epochs int

	// Prefetch is the number of decoded row groups to buffer ahead of the
	// consumer.
	Prefetch int

	// Controller bounds prefetch memory and shard-read throughput. Nil
	// enforces nothing.
	Controller *resource.Controller
}

// DefaultOptions are the default reader options.
var DefaultOptions = Options{
	ShardCount: 1,
	ShardIndex: 0,
	Seed:       1234,
	Epochs:     1,
	Prefetch:   2,
}

// Reader yields decoded row groups from the shard files assigned to one
// worker. It is driven by a single consumer; Close may be called from any
// goroutine and is idempotent.
type Reader struct {
	store blobstore.BlobStore
	files []string
	sch   *schema.Schema
	opts  Options

	openOnce sync.Once
	openErr  error

	ctx    context.Context
	cancel context.CancelFunc
	g      *errgroup.Group

	blobs    []blobstore.Blob
	groups   []groupRef
	ordinals []uint32

	results chan result

	closeOnce sync.Once
	closeErr  error
	closed    atomic.Bool
}

type groupRef struct {
	group   parquet.RowGroup
	mapping []int // schema field position -> parquet leaf column index
	rows    int64
}

type result struct {
	rg   *rowgroup.RowGroup
	cost int64
	err  error
}

// NewReader creates a reader over the given shard files. Files should be in
// a stable order (the loader sorts them) so all workers agree on the global
// row-group numbering.
func NewReader(store blobstore.BlobStore, files []string, sch *schema.Schema, optFns ...func(o *Options)) (*Reader, error) {
	if store == nil {
		return nil, fmt.Errorf("parquet: nil blob store")
	}
	if sch == nil {
		return nil, fmt.Errorf("parquet: nil schema")
	}

	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.ShardCount < 1 {
		return nil, fmt.Errorf("parquet: shard count must be at least 1, got %d", opts.ShardCount)
	}
	if opts.ShardIndex < 0 || opts.ShardIndex >= opts.ShardCount {
		return nil, fmt.Errorf("parquet: shard index %d outside [0, %d)", opts.ShardIndex, opts.ShardCount)
	}
	if opts.Epochs < 0 {
		return nil, fmt.Errorf("parquet: epochs must be non-negative, got %d", opts.Epochs)
	}
	if opts.Prefetch < 1 {
		opts.Prefetch = DefaultOptions.Prefetch
	}

	return &Reader{
		store: store,
		files: files,
		sch:   sch,
		opts:  opts,
	}, nil
}

// Next returns the next decoded row group, or io.EOF when all epochs are
// exhausted. It implements the stitcher's Source interface.
func (r *Reader) Next(ctx context.Context) (*rowgroup.RowGroup, error) {
	if err := r.open(ctx); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res, ok := <-r.results:
		if !ok {
			if err := r.g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return nil, err
			}
			return nil, io.EOF
		}
		if res.err != nil {
			return nil, res.err
		}
		// The consumer owns the row group now; its budget reservation only
		// covered the prefetch window.
		r.opts.Controller.ReleaseMemory(res.cost)
		return res.rg, nil
	}
}

// NumRowGroups returns the number of row groups assigned to this shard.
// Valid after the first Next call or an explicit Open.
func (r *Reader) NumRowGroups() int {
	return len(r.ordinals)
}

// Open eagerly opens all shard files and starts the prefetcher. Next calls
// it implicitly; calling it twice is harmless.
func (r *Reader) Open(ctx context.Context) error {
	return r.open(ctx)
}

func (r *Reader) open(ctx context.Context) error {
	if r.closed.Load() {
		return ErrClosed
	}
	r.openOnce.Do(func() {
		r.openErr = r.doOpen(ctx)
	})
	if r.openErr != nil {
		return r.openErr
	}
	if r.closed.Load() {
		return ErrClosed
	}
	return nil
}

func (r *Reader) doOpen(_ context.Context) error {
	// The reader's own context caps the lifetime of every shard read,
	// including page fetches issued from inside the parquet decoder, so
	// Close can abort in-flight IO.
	r.ctx, r.cancel = context.WithCancel(context.Background())

	for _, name := range r.files {
		blob, err := r.store.Open(r.ctx, name)
		if err != nil {
			r.closeBlobs()
			return fmt.Errorf("parquet: failed to open shard %q: %w", name, err)
		}
		r.blobs = append(r.blobs, blob)

		pf, err := parquet.OpenFile(
			&blobReaderAt{ctx: r.ctx, blob: blob},
			blob.Size(),
			parquet.SkipPageIndex(true),
			parquet.SkipBloomFilters(true),
		)
		if err != nil {
			r.closeBlobs()
			return fmt.Errorf("parquet: failed to read footer of %q: %w", name, err)
		}

		mapping, err := columnMapping(pf, r.sch)
		if err != nil {
			r.closeBlobs()
			return fmt.Errorf("parquet: shard %q: %w", name, err)
		}

		for _, prg := range pf.RowGroups() {
			r.groups = append(r.groups, groupRef{
				group:   prg,
				mapping: mapping,
				rows:    prg.NumRows(),
			})
		}
	}

	assignment, err := shard.Assign(len(r.groups), r.opts.ShardCount, r.opts.ShardIndex, r.opts.Seed)
	if err != nil {
		r.closeBlobs()
		return err
	}
	r.ordinals = append([]uint32(nil), assignment.Ordinals()...)
	// Sequential file order is the deterministic baseline; shuffling, when
	// enabled, reorders per epoch from this baseline.
	sort.Slice(r.ordinals, func(i, j int) bool { return r.ordinals[i] < r.ordinals[j] })

	r.results = make(chan result, r.opts.Prefetch)
	r.g, _ = errgroup.WithContext(r.ctx)
	r.g.Go(r.prefetch)

	return nil
}

// prefetch decodes assigned row groups ahead of the consumer, epoch by
// epoch, preserving order within an epoch.
func (r *Reader) prefetch() error {
	defer close(r.results)

	epochOrder := make([]uint32, len(r.ordinals))

	for epoch := 0; r.opts.Epochs == 0 || epoch < r.opts.Epochs; epoch++ {
		if len(r.ordinals) == 0 {
			return nil
		}

		copy(epochOrder, r.ordinals)
		if r.opts.ShuffleRowGroups {
			rng := rand.New(rand.NewSource(r.opts.Seed + int64(epoch)))
			rng.Shuffle(len(epochOrder), func(i, j int) {
				epochOrder[i], epochOrder[j] = epochOrder[j], epochOrder[i]
			})
		}

		for _, ord := range epochOrder {
			ref := r.groups[ord]
			cost := ref.rows * int64(r.sch.NumFields()) * 8

			if err := r.opts.Controller.WaitIO(r.ctx, cost); err != nil {
				return err
			}
			if err := r.opts.Controller.AcquireMemory(r.ctx, cost); err != nil {
				return err
			}

			rg, err := decodeRowGroup(ref, r.sch)
			if err != nil {
				r.opts.Controller.ReleaseMemory(cost)
				select {
				case r.results <- result{err: err}:
				case <-r.ctx.Done():
				}
				return err
			}

			select {
			case r.results <- result{rg: rg, cost: cost}:
			case <-r.ctx.Done():
				r.opts.Controller.ReleaseMemory(cost)
				return r.ctx.Err()
			}
		}
	}
	return nil
}

// Close stops the prefetcher and releases all shard files. It is idempotent
// and safe to call while a Next is in flight.
func (r *Reader) Close() error {
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		if r.cancel != nil {
			r.cancel()
		}
		if r.g != nil {
			// Drain so a blocked send cannot outlive Close.
			go func() {
				for range r.results {
				}
			}()
			_ = r.g.Wait()
		}
		r.closeErr = r.closeBlobs()
	})
	return r.closeErr
}

func (r *Reader) closeBlobs() error {
	var firstErr error
	for _, blob := range r.blobs {
		if err := blob.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.blobs = nil
	return firstErr
}

// columnMapping resolves each schema field to its leaf column index in the
// file, failing fast when a field is missing or has an incompatible physical
// type.
func columnMapping(pf *parquet.File, sch *schema.Schema) ([]int, error) {
	fields := pf.Schema().Fields()
	byName := make(map[string]int, len(fields))
	for i, f := range fields {
		byName[f.Name()] = i
	}

	mapping := make([]int, sch.NumFields())
	for i, field := range sch.Fields() {
		leaf, ok := byName[field.Name]
		if !ok {
			return nil, fmt.Errorf("file has no column %q", field.Name)
		}
		mapping[i] = leaf
	}
	return mapping, nil
}

// decodeRowGroup materializes one parquet row group into columnar arrays,
// projected onto the schema's field order.
func decodeRowGroup(ref groupRef, sch *schema.Schema) (*rowgroup.RowGroup, error) {
	n := int(ref.rows)

	builders := make([]rowgroup.Column, sch.NumFields())
	for i, field := range sch.Fields() {
		builders[i] = rowgroup.NewColumn(field.Kind, n)
	}

	rows := ref.group.Rows()
	defer rows.Close()

	buf := make([]parquet.Row, 512)
	for {
		count, err := rows.ReadRows(buf)
		for _, row := range buf[:count] {
			for fi, leaf := range ref.mapping {
				if leaf >= len(row) {
					return nil, fmt.Errorf("parquet: row has %d columns, field %q expects index %d",
						len(row), sch.Field(fi).Name, leaf)
				}
				v := row[leaf]
				switch sch.Field(fi).Kind {
				case schema.KindInt64:
					builders[fi] = append(builders[fi].(rowgroup.Int64Column), v.Int64())
				case schema.KindInt32:
					builders[fi] = append(builders[fi].(rowgroup.Int32Column), v.Int32())
				case schema.KindFloat32:
					builders[fi] = append(builders[fi].(rowgroup.Float32Column), v.Float())
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("parquet: row group decode failed: %w", err)
		}
		if count == 0 {
			break
		}
	}

	return rowgroup.New(sch, builders)
}

// blobReaderAt adapts a blobstore.Blob to io.ReaderAt for the parquet
// decoder, carrying the reader's lifetime context.
type blobReaderAt struct {
	ctx  context.Context
	blob blobstore.Blob
}

func (r *blobReaderAt) ReadAt(p []byte, off int64) (int, error) {
	return r.blob.ReadAt(r.ctx, p, off)
}
