package parquet

import (
	"context"
	"fmt"

	"github.com/segmentio/parquet-go"
	"github.com/segmentio/parquet-go/compress"
	"github.com/segmentio/parquet-go/compress/zstd"

	"github.com/batchgo/batchgo/blobstore"
	"github.com/batchgo/batchgo/rowgroup"
	"github.com/batchgo/batchgo/schema"
)

// WriterOptions configures a ShardWriter.
type WriterOptions struct {
	// Compression is the page codec applied to every column.
	Compression compress.Codec
}

// DefaultWriterOptions are the default shard writer options.
var DefaultWriterOptions = WriterOptions{
	Compression: &zstd.Codec{},
}

// ShardWriter writes column-aligned row groups into one Parquet shard file.
// Each WriteRowGroup call produces exactly one row group in the file, so the
// caller controls row-group granularity, which in turn is the unit of shard
// assignment and prefetch on the read side.
type ShardWriter struct {
	wb      blobstore.WritableBlob
	pw      *parquet.Writer
	sch     *schema.Schema
	mapping []int // schema field position -> parquet leaf column index

	rows      int64
	rowGroups int
	closed    bool
}

// NewShardWriter creates a shard file in the store and prepares it for
// row-group writes. The file is not visible under its final name until Close
// succeeds when the store commits on close.
func NewShardWriter(ctx context.Context, store blobstore.BlobStore, name string, sch *schema.Schema, optFns ...func(o *WriterOptions)) (*ShardWriter, error) {
	if store == nil {
		return nil, fmt.Errorf("parquet: nil blob store")
	}
	if sch == nil {
		return nil, fmt.Errorf("parquet: nil schema")
	}

	opts := DefaultWriterOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Compression == nil {
		opts.Compression = DefaultWriterOptions.Compression
	}

	pqSchema, mapping := buildSchema(sch)

	wb, err := store.Create(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("parquet: failed to create shard %q: %w", name, err)
	}

	pw := parquet.NewWriter(wb, pqSchema, parquet.Compression(opts.Compression))

	return &ShardWriter{
		wb:      wb,
		pw:      pw,
		sch:     sch,
		mapping: mapping,
	}, nil
}

// WriteRowGroup appends one row group holding exactly the given rows.
func (w *ShardWriter) WriteRowGroup(rg *rowgroup.RowGroup) error {
	if w.closed {
		return fmt.Errorf("parquet: shard writer is closed")
	}
	if !rg.Schema().Equal(w.sch) {
		return fmt.Errorf("parquet: row group schema does not match shard schema")
	}
	if rg.NumRows() == 0 {
		return nil
	}

	nFields := w.sch.NumFields()
	rows := make([]parquet.Row, rg.NumRows())
	for i := range rows {
		row := make(parquet.Row, nFields)
		for fi := 0; fi < nFields; fi++ {
			leaf := w.mapping[fi]
			col := rg.Column(fi)
			var v parquet.Value
			switch w.sch.Field(fi).Kind {
			case schema.KindInt64:
				v = parquet.Int64Value(col.Int64(i))
			case schema.KindInt32:
				v = parquet.Int32Value(int32(col.Int64(i)))
			case schema.KindFloat32:
				v = parquet.FloatValue(col.Float32(i))
			}
			row[leaf] = v.Level(0, 0, leaf)
		}
		rows[i] = row
	}

	if _, err := w.pw.WriteRows(rows); err != nil {
		return fmt.Errorf("parquet: failed to write rows: %w", err)
	}
	if err := w.pw.Flush(); err != nil {
		return fmt.Errorf("parquet: failed to flush row group: %w", err)
	}

	w.rows += int64(rg.NumRows())
	w.rowGroups++

	return nil
}

// NumRows returns the number of rows written so far.
func (w *ShardWriter) NumRows() int64 { return w.rows }

// NumRowGroups returns the number of row groups written so far.
func (w *ShardWriter) NumRowGroups() int { return w.rowGroups }

// Close writes the file footer and commits the blob. It must be called even
// after a write error to release the underlying blob.
func (w *ShardWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.pw.Close(); err != nil {
		_ = w.wb.Close()
		return fmt.Errorf("parquet: failed to finalize shard: %w", err)
	}
	if err := w.wb.Close(); err != nil {
		return fmt.Errorf("parquet: failed to commit shard: %w", err)
	}
	return nil
}

// buildSchema maps the dataset schema onto a flat parquet group. Group fields
// are ordered by name in the file, so the mapping records where each schema
// field landed.
func buildSchema(sch *schema.Schema) (*parquet.Schema, []int) {
	group := parquet.Group{}
	for _, field := range sch.Fields() {
		switch field.Kind {
		case schema.KindInt64:
			group[field.Name] = parquet.Leaf(parquet.Int64Type)
		case schema.KindInt32:
			group[field.Name] = parquet.Leaf(parquet.Int32Type)
		case schema.KindFloat32:
			group[field.Name] = parquet.Leaf(parquet.FloatType)
		}
	}

	pqSchema := parquet.NewSchema("dataset", group)

	byName := make(map[string]int, len(pqSchema.Fields()))
	for i, f := range pqSchema.Fields() {
		byName[f.Name()] = i
	}
	mapping := make([]int, sch.NumFields())
	for i, field := range sch.Fields() {
		mapping[i] = byName[field.Name]
	}
	return pqSchema, mapping
}
