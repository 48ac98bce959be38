package criteo

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/pierrec/lz4/v4"
	"github.com/segmentio/parquet-go/compress"

	"github.com/batchgo/batchgo/blobstore"
	"github.com/batchgo/batchgo/manifest"
	"github.com/batchgo/batchgo/parquet"
	"github.com/batchgo/batchgo/rowgroup"
	"github.com/batchgo/batchgo/schema"
)

// numTSVFields is label + 13 dense + 26 sparse, tab separated.
const numTSVFields = 1 + NumFeatureFields

// ConvertOptions configures a Converter.
type ConvertOptions struct {
	// RowGroupRows is the number of rows per Parquet row group. Row groups
	// are the unit of shard assignment and prefetch on the read side, so
	// smaller groups give finer parallelism at the cost of metadata overhead.
	RowGroupRows int

	// ShardRowGroups is the number of row groups per shard file.
	ShardRowGroups int

	// Compression is the Parquet page codec. Nil means the writer default.
	Compression compress.Codec

	// CompressionName is recorded in the manifest.
	CompressionName string

	// Logger receives per-shard progress. Nil disables logging.
	Logger *slog.Logger
}

// DefaultConvertOptions are the default converter options.
var DefaultConvertOptions = ConvertOptions{
	RowGroupRows:    1 << 16,
	ShardRowGroups:  64,
	CompressionName: "zstd",
}

// Converter turns raw Criteo TSV files into a sharded Parquet dataset with a
// manifest, written to a blob store.
type Converter struct {
	store blobstore.BlobStore
	sch   *schema.Schema
	opts  ConvertOptions
}

// NewConverter creates a converter writing into the given store.
func NewConverter(store blobstore.BlobStore, optFns ...func(o *ConvertOptions)) (*Converter, error) {
	if store == nil {
		return nil, fmt.Errorf("criteo: nil blob store")
	}

	opts := DefaultConvertOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.RowGroupRows < 1 {
		return nil, fmt.Errorf("criteo: row group rows must be at least 1, got %d", opts.RowGroupRows)
	}
	if opts.ShardRowGroups < 1 {
		return nil, fmt.Errorf("criteo: shard row groups must be at least 1, got %d", opts.ShardRowGroups)
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	return &Converter{
		store: store,
		sch:   Schema(),
		opts:  opts,
	}, nil
}

// Convert reads the given raw TSV files in order and writes shard files plus
// the manifest. Inputs ending in .gz or .lz4 are decompressed on the fly.
func (c *Converter) Convert(ctx context.Context, inputs ...string) (*manifest.Manifest, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("criteo: no input files")
	}

	m := manifest.New(c.sch)
	m.Compression = c.opts.CompressionName

	acc := newAccumulator(c.sch, c.opts.RowGroupRows)

	var (
		shardW   *parquet.ShardWriter
		shardIdx int
	)

	flushGroup := func() error {
		rg, err := acc.take()
		if err != nil {
			return err
		}
		if rg == nil {
			return nil
		}
		if shardW == nil {
			name := shardName(shardIdx)
			w, err := parquet.NewShardWriter(ctx, c.store, name, c.sch, func(o *parquet.WriterOptions) {
				if c.opts.Compression != nil {
					o.Compression = c.opts.Compression
				}
			})
			if err != nil {
				return err
			}
			shardW = w
		}
		if err := shardW.WriteRowGroup(rg); err != nil {
			return err
		}
		if shardW.NumRowGroups() >= c.opts.ShardRowGroups {
			return closeShard(&shardW, &shardIdx, m, c.opts.Logger)
		}
		return nil
	}

	for _, input := range inputs {
		if err := ctx.Err(); err != nil {
			abortShard(shardW)
			return nil, err
		}

		err := c.convertFile(ctx, input, acc, flushGroup)
		if err != nil {
			abortShard(shardW)
			return nil, err
		}
	}

	// Final partial row group and shard.
	if acc.len() > 0 {
		if err := flushGroup(); err != nil {
			abortShard(shardW)
			return nil, err
		}
	}
	if shardW != nil {
		if err := closeShard(&shardW, &shardIdx, m, c.opts.Logger); err != nil {
			return nil, err
		}
	}

	if len(m.Shards) == 0 {
		return nil, fmt.Errorf("criteo: inputs contained no rows")
	}

	if err := manifest.Write(ctx, c.store, m); err != nil {
		return nil, err
	}

	c.opts.Logger.Info("dataset converted",
		slog.Int("shards", len(m.Shards)),
		slog.Int64("rows", m.TotalRows()),
		slog.Int("row_groups", m.TotalRowGroups()))

	return m, nil
}

func (c *Converter) convertFile(ctx context.Context, input string, acc *accumulator, flushGroup func() error) error {
	r, closer, err := openInput(input)
	if err != nil {
		return err
	}
	defer closer()

	c.opts.Logger.Info("converting input", slog.String("file", input))

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1<<20), 1<<20)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		if err := acc.appendLine(sc.Text()); err != nil {
			return fmt.Errorf("criteo: %s:%d: %w", input, lineNo, err)
		}
		if acc.len() >= c.opts.RowGroupRows {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := flushGroup(); err != nil {
				return err
			}
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("criteo: failed to read %s: %w", input, err)
	}
	return nil
}

func closeShard(w **parquet.ShardWriter, idx *int, m *manifest.Manifest, logger *slog.Logger) error {
	sw := *w
	if sw == nil {
		return nil
	}
	if err := sw.Close(); err != nil {
		return err
	}

	info := manifest.ShardInfo{
		Path:      shardName(*idx),
		Rows:      sw.NumRows(),
		RowGroups: sw.NumRowGroups(),
	}
	m.Shards = append(m.Shards, info)

	logger.Info("shard written",
		slog.String("file", info.Path),
		slog.Int64("rows", info.Rows),
		slog.Int("row_groups", info.RowGroups))

	*w = nil
	*idx++
	return nil
}

func abortShard(w *parquet.ShardWriter) {
	if w != nil {
		_ = w.Close()
	}
}

func shardName(idx int) string {
	return fmt.Sprintf("part-%05d.parquet", idx)
}

// openInput opens a raw TSV file, decompressing by extension.
func openInput(path string) (io.Reader, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("criteo: failed to open input: %w", err)
	}

	switch filepath.Ext(path) {
	case ".gz":
		gz, err := gzip.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, nil, fmt.Errorf("criteo: invalid gzip input %s: %w", path, err)
		}
		return gz, func() { _ = gz.Close(); _ = f.Close() }, nil
	case ".lz4":
		return lz4.NewReader(f), func() { _ = f.Close() }, nil
	default:
		return f, func() { _ = f.Close() }, nil
	}
}

// accumulator buffers parsed rows column-wise until a row group is cut.
type accumulator struct {
	sch    *schema.Schema
	labels rowgroup.Int32Column
	feats  []rowgroup.Int64Column
	cap    int
}

func newAccumulator(sch *schema.Schema, rows int) *accumulator {
	acc := &accumulator{
		sch:    sch,
		labels: make(rowgroup.Int32Column, 0, rows),
		feats:  make([]rowgroup.Int64Column, NumFeatureFields),
		cap:    rows,
	}
	for i := range acc.feats {
		acc.feats[i] = make(rowgroup.Int64Column, 0, rows)
	}
	return acc
}

func (a *accumulator) len() int { return len(a.labels) }

// appendLine parses one raw TSV record. The raw format is
// label \t I1..I13 \t C1..C26 with empty strings for missing values: missing
// dense counts become 0 and missing categoricals become id 0, matching the
// standard preprocessing of this dataset.
func (a *accumulator) appendLine(line string) error {
	fields := strings.Split(line, "\t")
	if len(fields) != numTSVFields {
		return fmt.Errorf("record has %d fields, want %d", len(fields), numTSVFields)
	}

	label, err := strconv.ParseInt(fields[0], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid label %q: %w", fields[0], err)
	}

	var dense [NumDenseFields]int64
	for i := 0; i < NumDenseFields; i++ {
		s := fields[1+i]
		if s == "" {
			continue
		}
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid dense field I%d %q: %w", i+1, s, err)
		}
		dense[i] = v
	}

	var sparse [NumSparseFields]int64
	for i := 0; i < NumSparseFields; i++ {
		s := fields[1+NumDenseFields+i]
		if s == "" {
			continue
		}
		// Categorical values are 32-bit hashes printed as hex.
		v, err := strconv.ParseUint(s, 16, 64)
		if err != nil {
			return fmt.Errorf("invalid sparse field C%d %q: %w", i+1, s, err)
		}
		sparse[i] = int64(v)
	}

	a.labels = append(a.labels, int32(label))
	for i, v := range dense {
		a.feats[i] = append(a.feats[i], v)
	}
	for i, v := range sparse {
		a.feats[NumDenseFields+i] = append(a.feats[NumDenseFields+i], v)
	}
	return nil
}

// take returns the buffered rows as a row group and resets the buffer, or
// nil when empty.
func (a *accumulator) take() (*rowgroup.RowGroup, error) {
	if len(a.labels) == 0 {
		return nil, nil
	}

	cols := make([]rowgroup.Column, 0, a.sch.NumFields())
	cols = append(cols, a.labels)
	for _, f := range a.feats {
		cols = append(cols, f)
	}

	rg, err := rowgroup.New(a.sch, cols)
	if err != nil {
		return nil, err
	}

	a.labels = make(rowgroup.Int32Column, 0, a.cap)
	for i := range a.feats {
		a.feats[i] = make(rowgroup.Int64Column, 0, a.cap)
	}
	return rg, nil
}
