package batchgo_test

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/batchgo/batchgo"
	"github.com/batchgo/batchgo/blobstore"
	"github.com/batchgo/batchgo/manifest"
	"github.com/batchgo/batchgo/parquet"
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

// writeDataset writes shard files plus a manifest. Each shard holds row
// groups of the given sizes; labels carry a globally unique row id.
func writeDataset(t *testing.T, store blobstore.BlobStore, sch *schema.Schema, shards ...[]int) int {
	t.Helper()

	m := manifest.New(sch)
	id := int32(0)

	for s, groupSizes := range shards {
		name := fmt.Sprintf("part-%05d.parquet", s)
		w, err := parquet.NewShardWriter(context.Background(), store, name, sch)
		require.NoError(t, err)

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
		m.Shards = append(m.Shards, manifest.ShardInfo{
			Path:      name,
			Rows:      w.NumRows(),
			RowGroups: w.NumRowGroups(),
		})
	}

	require.NoError(t, manifest.Write(context.Background(), store, m))

	return int(id)
}

func TestLoaderStitchesAcrossRowGroups(t *testing.T) {
	store := blobstore.NewMemoryStore()
	sch := testSchema(t)

	// 6+5 rows at batch size 4: two full batches, three tail rows dropped.
	writeDataset(t, store, sch, []int{6, 5})

	loader, err := batchgo.Dataset(sch, store).
		BatchSize(4).
		Build()
	require.NoError(t, err)
	defer loader.Close()

	ctx := context.Background()

	first, err := loader.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, 4, first.Size())
	require.Equal(t, []float32{0, 1, 2, 3}, first.Labels)

	second, err := loader.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, []float32{4, 5, 6, 7}, second.Labels)
	// Rows keep their feature pairing across the row-group seam.
	require.Equal(t, int64(50), second.Feature(1, 0))
	require.Equal(t, int64(500), second.Feature(1, 1))

	_, err = loader.Next(ctx)
	require.ErrorIs(t, err, io.EOF)
	_, err = loader.Next(ctx)
	require.ErrorIs(t, err, io.EOF)
}

func TestLoaderKeepIncompleteTail(t *testing.T) {
	store := blobstore.NewMemoryStore()
	sch := testSchema(t)
	writeDataset(t, store, sch, []int{6, 5})

	loader, err := batchgo.Dataset(sch, store).
		BatchSize(4).
		DropIncompleteTail(false).
		Build()
	require.NoError(t, err)
	defer loader.Close()

	var sizes []int
	for b, err := range loader.Batches(context.Background()) {
		require.NoError(t, err)
		sizes = append(sizes, b.Size())
	}
	require.Equal(t, []int{4, 4, 3}, sizes)
}

func TestLoaderWorldPartition(t *testing.T) {
	store := blobstore.NewMemoryStore()
	sch := testSchema(t)
	total := writeDataset(t, store, sch, []int{4, 4}, []int{4, 4})

	seen := make(map[float32]int)
	for rank := 0; rank < 2; rank++ {
		loader, err := batchgo.Dataset(sch, store).
			BatchSize(8). // 4 rows per worker
			WorldSize(2).
			Rank(rank).
			Build()
		require.NoError(t, err)
		require.Equal(t, 4, loader.BatchSize())

		for b, err := range loader.Batches(context.Background()) {
			require.NoError(t, err)
			require.Equal(t, 4, b.Size())
			for _, label := range b.Labels {
				seen[label]++
			}
		}
		require.NoError(t, loader.Close())
	}

	require.Len(t, seen, total)
	for label, count := range seen {
		require.Equalf(t, 1, count, "row %v seen %d times", label, count)
	}
}

func TestLoaderManifestDataset(t *testing.T) {
	store := blobstore.NewMemoryStore()
	sch := testSchema(t)
	writeDataset(t, store, sch, []int{3, 3})

	// No explicit file list: shards come from the manifest.
	loader, err := batchgo.Dataset(sch, store).
		BatchSize(3).
		Build()
	require.NoError(t, err)
	defer loader.Close()

	rows := 0
	for b, err := range loader.Batches(context.Background()) {
		require.NoError(t, err)
		rows += b.Size()
	}
	require.Equal(t, 6, rows)
}

func TestLoaderMetrics(t *testing.T) {
	store := blobstore.NewMemoryStore()
	sch := testSchema(t)
	writeDataset(t, store, sch, []int{6, 5})

	metrics := &batchgo.BasicMetricsCollector{}

	loader, err := batchgo.Dataset(sch, store).
		BatchSize(4).
		Metrics(metrics).
		Build()
	require.NoError(t, err)
	defer loader.Close()

	for b, err := range loader.Batches(context.Background()) {
		require.NoError(t, err)
		require.Equal(t, 4, b.Size())
	}

	stats := metrics.GetStats()
	require.Equal(t, int64(2), stats.BatchCount)
	require.Equal(t, int64(8), stats.BatchRows)
	require.Equal(t, int64(2), stats.RowGroupCount)
	require.Equal(t, int64(11), stats.RowGroupRows)
	require.Equal(t, int64(3), stats.TailDroppedRows)
}

func TestLoaderEpochsAndShuffleDeterminism(t *testing.T) {
	store := blobstore.NewMemoryStore()
	sch := testSchema(t)
	writeDataset(t, store, sch, []int{4, 4, 4})

	read := func() []float32 {
		loader, err := batchgo.Dataset(sch, store).
			BatchSize(4).
			Shuffle(true).
			Seed(7).
			Epochs(2).
			Build()
		require.NoError(t, err)
		defer loader.Close()

		var labels []float32
		for b, err := range loader.Batches(context.Background()) {
			require.NoError(t, err)
			labels = append(labels, b.Labels...)
		}
		return labels
	}

	first := read()
	second := read()
	require.Len(t, first, 24)
	require.Equal(t, first, second)
}

func TestLoaderClosedNext(t *testing.T) {
	store := blobstore.NewMemoryStore()
	sch := testSchema(t)
	writeDataset(t, store, sch, []int{4})

	loader, err := batchgo.Dataset(sch, store).BatchSize(4).Build()
	require.NoError(t, err)

	require.NoError(t, loader.Close())
	require.NoError(t, loader.Close())

	_, err = loader.Next(context.Background())
	require.ErrorIs(t, err, batchgo.ErrClosed)
}

func TestLoaderMissingManifest(t *testing.T) {
	store := blobstore.NewMemoryStore()
	sch := testSchema(t)

	loader, err := batchgo.Dataset(sch, store).BatchSize(4).Build()
	require.NoError(t, err)
	defer loader.Close()

	_, err = loader.Next(context.Background())
	require.ErrorIs(t, err, batchgo.ErrNotFound)
}

func TestBuilderValidation(t *testing.T) {
	store := blobstore.NewMemoryStore()
	sch := testSchema(t)

	_, err := batchgo.Dataset(sch, store).BatchSize(0).Build()
	require.ErrorIs(t, err, batchgo.ErrInvalidBatchSize)

	_, err = batchgo.Dataset(sch, store).BatchSize(10).WorldSize(3).Build()
	var notDivisible *batchgo.ErrBatchSizeNotDivisible
	require.ErrorAs(t, err, &notDivisible)
	require.Equal(t, 10, notDivisible.BatchSize)

	_, err = batchgo.Dataset(sch, store).BatchSize(8).WorldSize(2).Rank(2).Build()
	var badRank *batchgo.ErrInvalidRank
	require.ErrorAs(t, err, &badRank)

	_, err = batchgo.Dataset(nil, store, "part-00000.parquet").BatchSize(8).Build()
	require.ErrorIs(t, err, batchgo.ErrInvalidSchema)

	_, err = batchgo.Dataset(sch, nil).BatchSize(8).Build()
	require.Error(t, err)
}

func TestBuilderImmutable(t *testing.T) {
	store := blobstore.NewMemoryStore()
	sch := testSchema(t)

	base := batchgo.Dataset(sch, store).BatchSize(8)
	derived := base.WorldSize(2).Rank(1)

	a, err := base.Build()
	require.NoError(t, err)
	defer a.Close()
	require.Equal(t, 8, a.BatchSize())

	b, err := derived.Build()
	require.NoError(t, err)
	defer b.Close()
	require.Equal(t, 4, b.BatchSize())
}
