// Package s3 provides S3-backed shard storage.
//
// Store reads shard files with ranged GETs (a Parquet footer probe plus one
// request per row group is typical) and writes them through the streaming
// upload manager. CommitStore layers DynamoDB conditional writes on top so a
// dataset's manifest is published atomically even with concurrent converters.
package s3
