package stitcher

import (
	"context"
	"io"
	"testing"

	"github.com/batchgo/batchgo/rowgroup"
	"github.com/batchgo/batchgo/schema"
	"github.com/stretchr/testify/require"
)

var testSchema = schema.MustNew(
	schema.Field{Name: "Label", Kind: schema.KindInt32},
	schema.Field{Name: "I1", Kind: schema.KindInt64},
	schema.Field{Name: "C1", Kind: schema.KindInt64},
)

// sliceSource yields a fixed sequence of row groups.
type sliceSource struct {
	groups []*rowgroup.RowGroup
	pos    int
}

func (s *sliceSource) Next(_ context.Context) (*rowgroup.RowGroup, error) {
	if s.pos >= len(s.groups) {
		return nil, io.EOF
	}
	rg := s.groups[s.pos]
	s.pos++
	return rg, nil
}

// makeGroup builds a row group of n rows with globally increasing values
// starting at base. Label row i is (base+i)%2, features are base+i offset by
// the column index so misalignment is detectable.
func makeGroup(t *testing.T, base, n int) *rowgroup.RowGroup {
	t.Helper()
	labels := make(rowgroup.Int32Column, n)
	i1 := make(rowgroup.Int64Column, n)
	c1 := make(rowgroup.Int64Column, n)
	for i := 0; i < n; i++ {
		labels[i] = int32((base + i) % 2)
		i1[i] = int64(base + i)
		c1[i] = int64(base + i + 1000)
	}
	rg, err := rowgroup.New(testSchema, []rowgroup.Column{labels, i1, c1})
	require.NoError(t, err)
	return rg
}

func collect(t *testing.T, s *Stitcher) []*Batch {
	t.Helper()
	var out []*Batch
	for {
		b, err := s.Next(context.Background())
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, b)
	}
}

func TestNext_ExactMultiple(t *testing.T) {
	// 12 rows over uneven groups, batch size 4: every row appears exactly
	// once, in order, with labels and features still paired.
	src := &sliceSource{groups: []*rowgroup.RowGroup{
		makeGroup(t, 0, 5),
		makeGroup(t, 5, 3),
		makeGroup(t, 8, 4),
	}}
	s, err := New(src, testSchema, 4)
	require.NoError(t, err)

	batches := collect(t, s)
	require.Len(t, batches, 3)

	row := 0
	for _, b := range batches {
		require.Equal(t, 4, b.Size())
		require.Equal(t, 2, b.NumFeatures)
		for i := 0; i < b.Size(); i++ {
			require.Equal(t, float32(row%2), b.Labels[i])
			require.Equal(t, int64(row), b.Feature(i, 0))
			require.Equal(t, int64(row+1000), b.Feature(i, 1))
			row++
		}
	}
	require.Equal(t, 12, row)
}

func TestNext_TailStitchScenario(t *testing.T) {
	// batch_size=4, group 1 has 6 rows, group 2 has 5 rows:
	// batch 1 = g1 rows 0-3, batch 2 = g1 rows 4-5 + g2 rows 0-1,
	// g2 rows 2-4 form a tail that is dropped at end of stream.
	src := &sliceSource{groups: []*rowgroup.RowGroup{
		makeGroup(t, 0, 6),
		makeGroup(t, 6, 5),
	}}
	s, err := New(src, testSchema, 4)
	require.NoError(t, err)

	batches := collect(t, s)
	require.Len(t, batches, 2)

	require.Equal(t, []int64{0, 1, 2, 3}, featureCol(batches[0], 0))
	require.Equal(t, []int64{4, 5, 6, 7}, featureCol(batches[1], 0))
}

func TestNext_KeepIncompleteTail(t *testing.T) {
	src := &sliceSource{groups: []*rowgroup.RowGroup{
		makeGroup(t, 0, 6),
		makeGroup(t, 6, 5),
	}}
	s, err := New(src, testSchema, 4, func(o *Options) {
		o.DropIncompleteTail = false
	})
	require.NoError(t, err)

	batches := collect(t, s)
	require.Len(t, batches, 3)
	require.Equal(t, 3, batches[2].Size())
	require.Equal(t, []int64{8, 9, 10}, featureCol(batches[2], 0))
}

func TestNext_SingleGroupExactBatch(t *testing.T) {
	src := &sliceSource{groups: []*rowgroup.RowGroup{makeGroup(t, 0, 4)}}
	s, err := New(src, testSchema, 4)
	require.NoError(t, err)

	batches := collect(t, s)
	require.Len(t, batches, 1)
	require.Equal(t, 0, s.TailLen())
}

func TestNext_GroupSmallerThanBatch(t *testing.T) {
	// A short group produces no batch; its rows become the tail and are
	// stitched with the next group.
	src := &sliceSource{groups: []*rowgroup.RowGroup{
		makeGroup(t, 0, 2),
		makeGroup(t, 2, 1),
		makeGroup(t, 3, 1),
	}}
	s, err := New(src, testSchema, 4)
	require.NoError(t, err)

	b, err := s.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, []int64{0, 1, 2, 3}, featureCol(b, 0))

	_, err = s.Next(context.Background())
	require.Equal(t, io.EOF, err)
}

func TestNext_EmptyStream(t *testing.T) {
	s, err := New(&sliceSource{}, testSchema, 4)
	require.NoError(t, err)

	_, err = s.Next(context.Background())
	require.Equal(t, io.EOF, err)

	// EOF is sticky.
	_, err = s.Next(context.Background())
	require.Equal(t, io.EOF, err)
}

func TestNext_SkipsEmptyRowGroups(t *testing.T) {
	src := &sliceSource{groups: []*rowgroup.RowGroup{
		makeGroup(t, 0, 2),
		makeGroup(t, 2, 0),
		makeGroup(t, 2, 2),
	}}
	s, err := New(src, testSchema, 4)
	require.NoError(t, err)

	batches := collect(t, s)
	require.Len(t, batches, 1)
	require.Equal(t, []int64{0, 1, 2, 3}, featureCol(batches[0], 0))
}

func TestNext_Deterministic(t *testing.T) {
	run := func() []*Batch {
		src := &sliceSource{groups: []*rowgroup.RowGroup{
			makeGroup(t, 0, 7),
			makeGroup(t, 7, 9),
		}}
		s, err := New(src, testSchema, 4)
		require.NoError(t, err)
		return collect(t, s)
	}

	a, b := run(), run()
	require.Equal(t, len(a), len(b))
	for i := range a {
		require.Equal(t, a[i].Labels, b[i].Labels)
		require.Equal(t, a[i].Features, b[i].Features)
	}
}

func TestNext_SchemaMismatch(t *testing.T) {
	other := schema.MustNew(
		schema.Field{Name: "Label", Kind: schema.KindInt32},
		schema.Field{Name: "X", Kind: schema.KindInt64},
	)
	bad, err := rowgroup.New(other, []rowgroup.Column{
		rowgroup.Int32Column{1},
		rowgroup.Int64Column{2},
	})
	require.NoError(t, err)

	src := &sliceSource{groups: []*rowgroup.RowGroup{bad}}
	s, err := New(src, testSchema, 4)
	require.NoError(t, err)

	_, err = s.Next(context.Background())
	require.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestNew_Invalid(t *testing.T) {
	_, err := New(nil, testSchema, 4)
	require.Error(t, err)

	_, err = New(&sliceSource{}, nil, 4)
	require.Error(t, err)

	_, err = New(&sliceSource{}, testSchema, 0)
	require.Error(t, err)
}

func featureCol(b *Batch, col int) []int64 {
	out := make([]int64, b.Size())
	for i := range out {
		out[i] = b.Feature(i, col)
	}
	return out
}
