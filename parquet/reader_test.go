package parquet

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/batchgo/batchgo/blobstore"
	"github.com/batchgo/batchgo/resource"
	"github.com/batchgo/batchgo/rowgroup"
	"github.com/batchgo/batchgo/schema"
)

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()

	sch, err := schema.New(
		schema.Field{Name: "label", Kind: schema.KindInt32},
		schema.Field{Name: "f0", Kind: schema.KindInt64},
		schema.Field{Name: "f1", Kind: schema.KindInt64},
	)
	require.NoError(t, err)

	return sch
}

// writeShard writes one shard file whose row groups have the given sizes.
// Labels carry a globally unique row id so tests can check ordering and
// completeness.
func writeShard(t *testing.T, store blobstore.BlobStore, name string, sch *schema.Schema, base int32, groupSizes ...int) int32 {
	t.Helper()

	w, err := NewShardWriter(context.Background(), store, name, sch)
	require.NoError(t, err)

	id := base
	for _, size := range groupSizes {
		labels := make(rowgroup.Int32Column, 0, size)
		f0 := make(rowgroup.Int64Column, 0, size)
		f1 := make(rowgroup.Int64Column, 0, size)
		for i := 0; i < size; i++ {
			labels = append(labels, id)
			f0 = append(f0, int64(id)*10)
			f1 = append(f1, int64(id)*100)
			id++
		}

		rg, err := rowgroup.New(sch, []rowgroup.Column{labels, f0, f1})
		require.NoError(t, err)
		require.NoError(t, w.WriteRowGroup(rg))
	}

	require.NoError(t, w.Close())

	return id
}

// drain reads row groups until EOF and returns the label ids in arrival order.
func drain(t *testing.T, r *Reader) []int32 {
	t.Helper()

	var ids []int32
	for {
		rg, err := r.Next(context.Background())
		if err == io.EOF {
			return ids
		}
		require.NoError(t, err)
		labels := rg.Column(0)
		for i := 0; i < labels.Len(); i++ {
			ids = append(ids, int32(labels.Int64(i)))
		}
	}
}

func TestReaderSequentialOrder(t *testing.T) {
	store := blobstore.NewMemoryStore()
	sch := testSchema(t)

	next := writeShard(t, store, "part-00000.parquet", sch, 0, 4, 3)
	writeShard(t, store, "part-00001.parquet", sch, next, 5)

	r, err := NewReader(store, []string{"part-00000.parquet", "part-00001.parquet"}, sch)
	require.NoError(t, err)
	defer r.Close()

	ids := drain(t, r)

	require.Len(t, ids, 12)
	for i, id := range ids {
		require.Equal(t, int32(i), id)
	}
	require.Equal(t, 3, r.NumRowGroups())
}

func TestReaderColumnProjectionByName(t *testing.T) {
	store := blobstore.NewMemoryStore()
	sch := testSchema(t)
	writeShard(t, store, "shard.parquet", sch, 0, 3)

	r, err := NewReader(store, []string{"shard.parquet"}, sch)
	require.NoError(t, err)
	defer r.Close()

	rg, err := r.Next(context.Background())
	require.NoError(t, err)

	// File column order is alphabetical, the decoded row group follows the
	// schema's field order.
	require.Equal(t, int64(1), rg.Column(0).Int64(1))
	require.Equal(t, int64(10), rg.Column(1).Int64(1))
	require.Equal(t, int64(100), rg.Column(2).Int64(1))
}

func TestReaderShardPartition(t *testing.T) {
	store := blobstore.NewMemoryStore()
	sch := testSchema(t)

	base := int32(0)
	for i := 0; i < 3; i++ {
		base = writeShard(t, store, fmt.Sprintf("part-%05d.parquet", i), sch, base, 2, 2)
	}
	files := []string{"part-00000.parquet", "part-00001.parquet", "part-00002.parquet"}

	seen := make(map[int32]int)
	total := 0
	for idx := 0; idx < 2; idx++ {
		r, err := NewReader(store, files, sch, func(o *Options) {
			o.ShardCount = 2
			o.ShardIndex = idx
		})
		require.NoError(t, err)

		ids := drain(t, r)
		total += len(ids)
		for _, id := range ids {
			seen[id]++
		}
		require.NoError(t, r.Close())
	}

	// The two workers together see every row exactly once.
	require.Equal(t, 12, total)
	require.Len(t, seen, 12)
	for id, count := range seen {
		require.Equalf(t, 1, count, "row %d read %d times", id, count)
	}
}

func TestReaderEpochs(t *testing.T) {
	store := blobstore.NewMemoryStore()
	sch := testSchema(t)
	writeShard(t, store, "shard.parquet", sch, 0, 2, 2)

	r, err := NewReader(store, []string{"shard.parquet"}, sch, func(o *Options) {
		o.Epochs = 3
	})
	require.NoError(t, err)
	defer r.Close()

	ids := drain(t, r)
	require.Len(t, ids, 12)
	for epoch := 0; epoch < 3; epoch++ {
		for i := 0; i < 4; i++ {
			require.Equal(t, int32(i), ids[epoch*4+i])
		}
	}
}

func TestReaderShuffleDeterministic(t *testing.T) {
	store := blobstore.NewMemoryStore()
	sch := testSchema(t)
	writeShard(t, store, "shard.parquet", sch, 0, 3, 3, 3, 3)

	read := func() []int32 {
		r, err := NewReader(store, []string{"shard.parquet"}, sch, func(o *Options) {
			o.ShuffleRowGroups = true
			o.Seed = 42
			o.Epochs = 2
		})
		require.NoError(t, err)
		defer r.Close()
		return drain(t, r)
	}

	first := read()
	second := read()

	require.Len(t, first, 24)
	require.Equal(t, first, second)

	// Shuffling permutes row groups, never rows within a group.
	for i := 0; i < len(first); i += 3 {
		require.Equal(t, first[i]+1, first[i+1])
		require.Equal(t, first[i]+2, first[i+2])
	}
}

func TestReaderUnboundedEpochs(t *testing.T) {
	store := blobstore.NewMemoryStore()
	sch := testSchema(t)
	writeShard(t, store, "shard.parquet", sch, 0, 2)

	r, err := NewReader(store, []string{"shard.parquet"}, sch, func(o *Options) {
		o.Epochs = 0
	})
	require.NoError(t, err)
	defer r.Close()

	// Far more reads than one epoch holds.
	for i := 0; i < 10; i++ {
		rg, err := r.Next(context.Background())
		require.NoError(t, err)
		require.Equal(t, 2, rg.NumRows())
	}
}

func TestReaderMissingColumn(t *testing.T) {
	store := blobstore.NewMemoryStore()
	sch := testSchema(t)
	writeShard(t, store, "shard.parquet", sch, 0, 2)

	wider, err := schema.New(
		schema.Field{Name: "label", Kind: schema.KindInt32},
		schema.Field{Name: "f0", Kind: schema.KindInt64},
		schema.Field{Name: "missing", Kind: schema.KindInt64},
	)
	require.NoError(t, err)

	r, err := NewReader(store, []string{"shard.parquet"}, wider)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Next(context.Background())
	require.ErrorContains(t, err, "missing")
}

func TestReaderEmptyFileList(t *testing.T) {
	store := blobstore.NewMemoryStore()
	sch := testSchema(t)

	r, err := NewReader(store, nil, sch)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Next(context.Background())
	require.ErrorIs(t, err, io.EOF)
}

func TestReaderCloseIdempotent(t *testing.T) {
	store := blobstore.NewMemoryStore()
	sch := testSchema(t)
	writeShard(t, store, "shard.parquet", sch, 0, 2, 2)

	r, err := NewReader(store, []string{"shard.parquet"}, sch)
	require.NoError(t, err)

	_, err = r.Next(context.Background())
	require.NoError(t, err)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	_, err = r.Next(context.Background())
	require.Error(t, err)
}

func TestReaderWithResourceController(t *testing.T) {
	store := blobstore.NewMemoryStore()
	sch := testSchema(t)
	writeShard(t, store, "shard.parquet", sch, 0, 4, 4, 4)

	ctrl := resource.NewController(resource.Config{
		MemoryLimitBytes: 1 << 20,
	})

	r, err := NewReader(store, []string{"shard.parquet"}, sch, func(o *Options) {
		o.Controller = ctrl
		o.Prefetch = 1
	})
	require.NoError(t, err)
	defer r.Close()

	ids := drain(t, r)
	require.Len(t, ids, 12)
}

func TestReaderInvalidOptions(t *testing.T) {
	store := blobstore.NewMemoryStore()
	sch := testSchema(t)

	_, err := NewReader(store, nil, sch, func(o *Options) { o.ShardCount = 0 })
	require.Error(t, err)

	_, err = NewReader(store, nil, sch, func(o *Options) { o.ShardIndex = 5 })
	require.Error(t, err)

	_, err = NewReader(store, nil, sch, func(o *Options) { o.Epochs = -1 })
	require.Error(t, err)

	_, err = NewReader(nil, nil, sch)
	require.Error(t, err)

	_, err = NewReader(store, nil, nil)
	require.Error(t, err)
}
