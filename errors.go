package batchgo

import (
	"errors"
	"fmt"

	"github.com/batchgo/batchgo/blobstore"
	"github.com/batchgo/batchgo/parquet"
	"github.com/batchgo/batchgo/stitcher"
)

var (
	// ErrNotFound is returned when a dataset, manifest or shard file is not found.
	ErrNotFound = errors.New("not found")

	// ErrClosed is returned when the loader is used after Close.
	ErrClosed = errors.New("loader is closed")

	// ErrInvalidBatchSize is returned when the global batch size is not positive.
	ErrInvalidBatchSize = errors.New("batch size must be positive")

	// ErrInvalidSchema is returned when a dataset is built without a field schema.
	ErrInvalidSchema = errors.New("dataset schema is required")
)

// ErrBatchSizeNotDivisible indicates a global batch size that cannot be split
// evenly across the workers.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrBatchSizeNotDivisible struct {
	BatchSize int
	WorldSize int
	cause     error
}

func (e *ErrBatchSizeNotDivisible) Error() string {
	return fmt.Sprintf("batch size %d is not divisible by world size %d", e.BatchSize, e.WorldSize)
}

func (e *ErrBatchSizeNotDivisible) Unwrap() error { return e.cause }

// ErrInvalidRank indicates a worker rank outside [0, worldSize).
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrInvalidRank struct {
	Rank      int
	WorldSize int
	cause     error
}

func (e *ErrInvalidRank) Error() string {
	return fmt.Sprintf("rank %d outside [0, %d)", e.Rank, e.WorldSize)
}

func (e *ErrInvalidRank) Unwrap() error { return e.cause }

// ErrSchemaMismatch indicates shard data that does not match the dataset
// schema.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrSchemaMismatch struct {
	cause error
}

func (e *ErrSchemaMismatch) Error() string {
	return "schema mismatch"
}

func (e *ErrSchemaMismatch) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Not found unification.
	if errors.Is(err, blobstore.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	// Lifecycle.
	if errors.Is(err, parquet.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}

	// Data validation.
	if errors.Is(err, stitcher.ErrSchemaMismatch) {
		return &ErrSchemaMismatch{cause: err}
	}

	return err
}
