// Package stitcher converts a stream of variable-length row groups into
// fixed-size training batches.
//
// Shard readers deliver data in row-group-sized chunks whose lengths have no
// relation to the training batch size. The stitcher re-chunks them: full
// batches are sliced straight out of the current row group, and leftover rows
// too few to fill a batch are carried in a tail buffer and completed from the
// front of the next row group. No row is lost or duplicated and column
// alignment is preserved across the seam.
//
// The stitcher is single-threaded and pull-based: one consumer drives it by
// calling Next, and the only blocking point is the request for the next row
// group from the underlying source.
package stitcher

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/batchgo/batchgo/rowgroup"
	"github.com/batchgo/batchgo/schema"
)

// ErrSchemaMismatch is returned when a row group does not match the schema
// the stitcher was built with. It indicates a corrupt or misconfigured shard
// and is fatal for the stream.
var ErrSchemaMismatch = errors.New("stitcher: row group schema mismatch")

// Source yields row groups. Next returns io.EOF when the stream is
// exhausted; any other error is fatal.
type Source interface {
	Next(ctx context.Context) (*rowgroup.RowGroup, error)
}

// Options configures a Stitcher.
type Options struct {
	// DropIncompleteTail controls what happens to leftover rows when the
	// source is exhausted mid-batch. True (the default) drops them silently;
	// false emits one final batch smaller than the batch size.
	DropIncompleteTail bool
}

// DefaultOptions are the default stitcher options.
var DefaultOptions = Options{
	DropIncompleteTail: true,
}

// Batch is one fixed-size training batch: a label vector and the feature
// columns stacked row-major into a single int64 tensor of shape
// [len(Labels), NumFeatures].
type Batch struct {
	Labels      []float32
	Features    []int64
	NumFeatures int
}

// Size returns the number of rows in the batch.
func (b *Batch) Size() int { return len(b.Labels) }

// Feature returns the feature value at (row, col).
func (b *Batch) Feature(row, col int) int64 {
	return b.Features[row*b.NumFeatures+col]
}

// Stitcher re-chunks row groups into fixed-size batches. It owns a single
// tail buffer whose length is always strictly less than the batch size, and
// it is not safe for concurrent use.
type Stitcher struct {
	src       Source
	sch       *schema.Schema
	batchSize int
	opts      Options

	cur  *rowgroup.RowGroup // current row group, nil between groups
	pos  int                // read cursor into cur
	tail *rowgroup.RowGroup // carry-over rows, nil if none
	done bool
}

// New creates a stitcher reading from src with the given per-worker batch size.
func New(src Source, sch *schema.Schema, batchSize int, optFns ...func(o *Options)) (*Stitcher, error) {
	if src == nil {
		return nil, fmt.Errorf("stitcher: nil source")
	}
	if sch == nil {
		return nil, fmt.Errorf("stitcher: nil schema")
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("stitcher: batch size must be positive, got %d", batchSize)
	}

	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Stitcher{
		src:       src,
		sch:       sch,
		batchSize: batchSize,
		opts:      opts,
	}, nil
}

// BatchSize returns the configured batch size.
func (s *Stitcher) BatchSize() int { return s.batchSize }

// TailLen returns the number of rows currently held in the tail buffer.
func (s *Stitcher) TailLen() int {
	if s.tail == nil {
		return 0
	}
	return s.tail.NumRows()
}

// Next returns the next training batch, or io.EOF when the source is
// exhausted. After io.EOF every subsequent call returns io.EOF.
func (s *Stitcher) Next(ctx context.Context) (*Batch, error) {
	if s.done {
		return nil, io.EOF
	}

	for {
		// Slice full batches straight out of the current row group.
		if s.cur != nil {
			if rem := s.cur.NumRows() - s.pos; rem >= s.batchSize {
				b := s.makeBatch(s.cur.Slice(s.pos, s.pos+s.batchSize))
				s.pos += s.batchSize
				return b, nil
			} else if rem > 0 {
				s.tail = s.cur.Slice(s.pos, s.cur.NumRows())
			}
			s.cur, s.pos = nil, 0
		}

		rg, err := s.src.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.done = true
				if s.tail != nil && !s.opts.DropIncompleteTail {
					b := s.makeBatch(s.tail)
					s.tail = nil
					return b, nil
				}
				s.tail = nil
				return nil, io.EOF
			}
			return nil, err
		}

		if !rg.Schema().Equal(s.sch) {
			s.done = true
			return nil, fmt.Errorf("%w: got %v, want %v", ErrSchemaMismatch, rg.Schema().Names(), s.sch.Names())
		}
		if rg.NumRows() == 0 {
			continue
		}

		s.cur, s.pos = rg, 0

		// Complete the tail from the front of the new row group.
		if s.tail != nil {
			need := s.batchSize - s.tail.NumRows()
			take := need
			if rg.NumRows() < take {
				take = rg.NumRows()
			}

			merged, err := appendRows(s.tail, rg, take)
			if err != nil {
				s.done = true
				return nil, err
			}

			if merged.NumRows() == s.batchSize {
				s.tail = nil
				s.pos = take
				return s.makeBatch(merged), nil
			}

			// Row group exhausted before the tail filled up; keep the
			// merged rows as the new tail and pull the next group.
			s.tail = merged
			s.cur, s.pos = nil, 0
		}
	}
}

// appendRows returns a new row group holding tail's rows followed by the
// first n rows of rg.
func appendRows(tail, rg *rowgroup.RowGroup, n int) (*rowgroup.RowGroup, error) {
	cols := make([]rowgroup.Column, tail.NumCols())
	for i := range cols {
		cols[i] = tail.Column(i).AppendN(rg.Column(i), n)
	}
	return rowgroup.New(tail.Schema(), cols)
}

// makeBatch splits a row group into the label vector (column 0) and the
// feature tensor (remaining columns, stacked along the trailing axis).
func (s *Stitcher) makeBatch(rg *rowgroup.RowGroup) *Batch {
	rows := rg.NumRows()
	numFeatures := rg.NumCols() - 1

	labels := make([]float32, rows)
	labelCol := rg.Column(0)
	for i := 0; i < rows; i++ {
		labels[i] = labelCol.Float32(i)
	}

	features := make([]int64, rows*numFeatures)
	for j := 0; j < numFeatures; j++ {
		col := rg.Column(j + 1)
		for i := 0; i < rows; i++ {
			features[i*numFeatures+j] = col.Int64(i)
		}
	}

	return &Batch{
		Labels:      labels,
		Features:    features,
		NumFeatures: numFeatures,
	}
}
