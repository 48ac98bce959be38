// Package criteo provides the Criteo click-log field schema and a converter
// from the raw TSV release into sharded Parquet datasets.
package criteo

import (
	"fmt"

	"github.com/batchgo/batchgo/schema"
)

const (
	// NumDenseFields is the number of integer count features (I1..I13).
	NumDenseFields = 13
	// NumSparseFields is the number of hashed categorical features (C1..C26).
	NumSparseFields = 26
	// NumFeatureFields is the total feature column count.
	NumFeatureFields = NumDenseFields + NumSparseFields
)

// Schema returns the Criteo field schema: a label column followed by
// I1..I13 and C1..C26, in the fixed column order of the raw release.
func Schema() *schema.Schema {
	fields := make([]schema.Field, 0, NumFeatureFields)
	for i := 1; i <= NumDenseFields; i++ {
		fields = append(fields, schema.Field{Name: fmt.Sprintf("I%d", i), Kind: schema.KindInt64})
	}
	for i := 1; i <= NumSparseFields; i++ {
		fields = append(fields, schema.Field{Name: fmt.Sprintf("C%d", i), Kind: schema.KindInt64})
	}
	return schema.MustNew(schema.Field{Name: "label", Kind: schema.KindInt32}, fields...)
}
