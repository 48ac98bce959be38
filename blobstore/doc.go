// Package blobstore abstracts where dataset shards live.
//
// The training pipeline reads Parquet shard files strictly once and mostly
// sequentially, so the store surface is small:
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)            // Open for reading
//	    Create(ctx, name) (WritableBlob, error)  // Streaming write, atomic commit
//	    Put(ctx, name, data) error               // Atomic write
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
//
// Blobs expose io.ReaderAt-style access plus ReadRange for cloud backends,
// where a ranged GET is far cheaper than many small reads:
//
//	type Blob interface {
//	    ReadAt(ctx, p, off) (int, error)
//	    ReadRange(ctx, off, length) (io.ReadCloser, error)
//	    Size() int64
//	    Close() error
//	}
//
// Implementations: LocalStore (mmap-backed files), MemoryStore (tests), and
// the s3 and minio subpackages for object storage.
package blobstore
