// Package manifest describes a converted dataset: its field schema and the
// shard files that make it up.
//
// The manifest is written once by the dataset converter, after every shard it
// references is durable, and is read by the loader to enumerate shards
// without listing the store. It is plain JSON so it can be inspected with
// standard tooling.
package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/batchgo/batchgo/blobstore"
	"github.com/batchgo/batchgo/schema"
)

// FileName is the manifest blob name within a dataset prefix.
const FileName = "MANIFEST"

// CurrentVersion is the manifest format version this package writes.
const CurrentVersion = 1

// Manifest describes one converted dataset.
type Manifest struct {
	Version     int            `json:"version"`
	Fields      []schema.Field `json:"fields"`
	Compression string         `json:"compression,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	Shards      []ShardInfo    `json:"shards"`
}

// ShardInfo describes a single shard file.
type ShardInfo struct {
	Path      string `json:"path"` // relative to the dataset prefix
	Rows      int64  `json:"rows"`
	RowGroups int    `json:"row_groups"`
}

// New creates a manifest for the given schema.
func New(sch *schema.Schema) *Manifest {
	return &Manifest{
		Version:   CurrentVersion,
		Fields:    sch.Fields(),
		CreatedAt: time.Now().UTC(),
	}
}

// Schema reconstructs the field schema.
func (m *Manifest) Schema() (*schema.Schema, error) {
	if len(m.Fields) < 2 {
		return nil, fmt.Errorf("manifest: need a label and at least one feature field, got %d fields", len(m.Fields))
	}
	return schema.New(m.Fields[0], m.Fields[1:]...)
}

// TotalRows returns the row count across all shards.
func (m *Manifest) TotalRows() int64 {
	var total int64
	for _, s := range m.Shards {
		total += s.Rows
	}
	return total
}

// TotalRowGroups returns the row-group count across all shards.
func (m *Manifest) TotalRowGroups() int {
	var total int
	for _, s := range m.Shards {
		total += s.RowGroups
	}
	return total
}

// Write marshals the manifest and stores it atomically under FileName.
func Write(ctx context.Context, store blobstore.BlobStore, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("manifest: marshal failed: %w", err)
	}
	if err := store.Put(ctx, FileName, data); err != nil {
		return fmt.Errorf("manifest: write failed: %w", err)
	}
	return nil
}

// Load reads and validates the manifest from the store.
func Load(ctx context.Context, store blobstore.BlobStore) (*Manifest, error) {
	blob, err := store.Open(ctx, FileName)
	if err != nil {
		return nil, fmt.Errorf("manifest: open failed: %w", err)
	}
	defer blob.Close()

	rc, err := blob.ReadRange(ctx, 0, blob.Size())
	if err != nil {
		return nil, fmt.Errorf("manifest: read failed: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("manifest: read failed: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest: unmarshal failed: %w", err)
	}
	if m.Version != CurrentVersion {
		return nil, fmt.Errorf("manifest: unsupported version %d, want %d", m.Version, CurrentVersion)
	}
	return &m, nil
}
