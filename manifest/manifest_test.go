package manifest

import (
	"context"
	"testing"

	"github.com/batchgo/batchgo/blobstore"
	"github.com/batchgo/batchgo/schema"
	"github.com/stretchr/testify/require"
)

func TestWriteLoad(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	sch := schema.MustNew(
		schema.Field{Name: "Label", Kind: schema.KindInt32},
		schema.Field{Name: "I1", Kind: schema.KindInt64},
		schema.Field{Name: "C1", Kind: schema.KindInt64},
	)

	m := New(sch)
	m.Compression = "zstd"
	m.Shards = []ShardInfo{
		{Path: "part-00000.parquet", Rows: 100, RowGroups: 2},
		{Path: "part-00001.parquet", Rows: 50, RowGroups: 1},
	}

	require.NoError(t, Write(ctx, store, m))

	got, err := Load(ctx, store)
	require.NoError(t, err)
	require.Equal(t, m.Shards, got.Shards)
	require.Equal(t, int64(150), got.TotalRows())
	require.Equal(t, 3, got.TotalRowGroups())

	gotSchema, err := got.Schema()
	require.NoError(t, err)
	require.True(t, sch.Equal(gotSchema))
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(context.Background(), blobstore.NewMemoryStore())
	require.Error(t, err)
}

func TestLoad_BadVersion(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	require.NoError(t, store.Put(ctx, FileName, []byte(`{"version": 99}`)))

	_, err := Load(ctx, store)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported version")
}
