package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/batchgo/batchgo/manifest"
)

var inspectDataDir string

// inspectCmd prints manifest and shard statistics.
var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print manifest, shard and row-group statistics for a dataset",
	RunE:  runInspect,
}

func init() {
	inspectCmd.Flags().StringVar(&inspectDataDir, "data-dir", "", "dataset location (required)")
	_ = inspectCmd.MarkFlagRequired("data-dir")
}

func runInspect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, err := openStore(ctx, inspectDataDir)
	if err != nil {
		return err
	}

	m, err := manifest.Load(ctx, store)
	if err != nil {
		return err
	}

	sch, err := m.Schema()
	if err != nil {
		return err
	}

	fmt.Printf("manifest version: %d\n", m.Version)
	fmt.Printf("created at:       %s\n", m.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("compression:      %s\n", m.Compression)
	fmt.Printf("fields:           %d (%s + %d features)\n", sch.NumFields(), sch.Label().Name, sch.NumFeatures())
	fmt.Printf("shards:           %d\n", len(m.Shards))
	fmt.Printf("rows:             %d\n", m.TotalRows())
	fmt.Printf("row groups:       %d\n", m.TotalRowGroups())
	fmt.Println()

	for _, s := range m.Shards {
		fmt.Printf("  %-24s %12d rows %6d row groups\n", s.Path, s.Rows, s.RowGroups)
	}
	return nil
}
