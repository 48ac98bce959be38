// Command batchgo converts, inspects and benchmarks sharded Parquet training
// datasets.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/cobra"

	"github.com/batchgo/batchgo"
	"github.com/batchgo/batchgo/blobstore"
	minioblob "github.com/batchgo/batchgo/blobstore/minio"
	s3blob "github.com/batchgo/batchgo/blobstore/s3"
)

var (
	// Global flags
	verbose  bool
	jsonLogs bool

	logger *batchgo.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "batchgo",
	Short: "batchgo - sharded training-data pipeline tooling",
	Long: `batchgo prepares and serves sharded Parquet training datasets.

Datasets are sets of Parquet shard files plus a MANIFEST, laid out so that
distributed training workers can each read a disjoint, deterministic share
of the data and stitch it into fixed-size batches.

Data directories may be local paths, s3://bucket/prefix or
minio://endpoint/bucket/prefix.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		if jsonLogs {
			logger = batchgo.NewJSONLogger(level)
		} else {
			logger = batchgo.NewTextLogger(level)
		}
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "emit JSON-formatted logs")

	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(benchCmd)
	rootCmd.AddCommand(inspectCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openStore resolves a data directory argument to a blob store.
func openStore(ctx context.Context, dataDir string) (blobstore.BlobStore, error) {
	switch {
	case strings.HasPrefix(dataDir, "s3://"):
		u, err := url.Parse(dataDir)
		if err != nil {
			return nil, fmt.Errorf("invalid s3 data dir %q: %w", dataDir, err)
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		prefix := strings.TrimPrefix(u.Path, "/")
		return s3blob.NewStore(awss3.NewFromConfig(cfg), u.Host, prefix), nil

	case strings.HasPrefix(dataDir, "minio://"):
		u, err := url.Parse(dataDir)
		if err != nil {
			return nil, fmt.Errorf("invalid minio data dir %q: %w", dataDir, err)
		}
		bucket, prefix, ok := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
		if !ok {
			bucket = strings.TrimPrefix(u.Path, "/")
		}
		client, err := minio.New(u.Host, &minio.Options{
			Creds:  credentials.NewEnvMinio(),
			Secure: os.Getenv("MINIO_INSECURE") == "",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create minio client: %w", err)
		}
		return minioblob.NewStore(client, bucket, prefix), nil

	default:
		return blobstore.NewLocalStore(dataDir), nil
	}
}
