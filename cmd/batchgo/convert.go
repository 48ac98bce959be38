package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/batchgo/batchgo/criteo"
)

var (
	convertDataDir        string
	convertRowGroupRows   int
	convertShardRowGroups int
)

// convertCmd turns raw Criteo TSV files into a sharded Parquet dataset.
var convertCmd = &cobra.Command{
	Use:   "convert [tsv-files...]",
	Short: "Convert raw Criteo TSV files into a sharded Parquet dataset",
	Long: `Reads raw Criteo click-log TSV files (plain, .gz or .lz4) and writes
zstd-compressed Parquet shard files plus a MANIFEST to the data directory.

Example:
  batchgo convert --data-dir /data/criteo_parquet day_0.gz day_1.gz`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringVar(&convertDataDir, "data-dir", "", "output dataset location (required)")
	convertCmd.Flags().IntVar(&convertRowGroupRows, "row-group-rows", criteo.DefaultConvertOptions.RowGroupRows, "rows per Parquet row group")
	convertCmd.Flags().IntVar(&convertShardRowGroups, "shard-row-groups", criteo.DefaultConvertOptions.ShardRowGroups, "row groups per shard file")
	_ = convertCmd.MarkFlagRequired("data-dir")
}

func runConvert(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, err := openStore(ctx, convertDataDir)
	if err != nil {
		return err
	}

	conv, err := criteo.NewConverter(store, func(o *criteo.ConvertOptions) {
		o.RowGroupRows = convertRowGroupRows
		o.ShardRowGroups = convertShardRowGroups
		o.Logger = logger.Logger
	})
	if err != nil {
		return err
	}

	m, err := conv.Convert(ctx, args...)
	if err != nil {
		return err
	}

	fmt.Printf("converted %d rows into %d shards (%d row groups)\n",
		m.TotalRows(), len(m.Shards), m.TotalRowGroups())
	return nil
}
