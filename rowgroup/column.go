package rowgroup

import (
	"github.com/batchgo/batchgo/schema"
)

// Column is a fixed-length typed array, one per schema field. Columns are
// value-oriented: Slice and Append return new columns and never alias the
// receiver's backing storage in a way visible to callers.
type Column interface {
	// Kind returns the physical type of the column.
	Kind() schema.Kind
	// Len returns the number of rows.
	Len() int
	// Slice returns the rows in [from, to).
	Slice(from, to int) Column
	// AppendN returns a new column holding the receiver's rows followed by
	// the first n rows of other. other must have the same kind.
	AppendN(other Column, n int) Column
	// Int64 returns the value at row i widened to int64.
	Int64(i int) int64
	// Float32 returns the value at row i converted to float32.
	Float32(i int) float32
}

// Int64Column is a column of 64-bit integers.
type Int64Column []int64

// Kind implements Column.
func (c Int64Column) Kind() schema.Kind { return schema.KindInt64 }

// Len implements Column.
func (c Int64Column) Len() int { return len(c) }

// Slice implements Column.
func (c Int64Column) Slice(from, to int) Column { return c[from:to:to] }

// AppendN implements Column.
func (c Int64Column) AppendN(other Column, n int) Column {
	o := other.(Int64Column)
	out := make(Int64Column, 0, len(c)+n)
	out = append(out, c...)
	out = append(out, o[:n]...)
	return out
}

// Int64 implements Column.
func (c Int64Column) Int64(i int) int64 { return c[i] }

// Float32 implements Column.
func (c Int64Column) Float32(i int) float32 { return float32(c[i]) }

// Int32Column is a column of 32-bit integers.
type Int32Column []int32

// Kind implements Column.
func (c Int32Column) Kind() schema.Kind { return schema.KindInt32 }

// Len implements Column.
func (c Int32Column) Len() int { return len(c) }

// Slice implements Column.
func (c Int32Column) Slice(from, to int) Column { return c[from:to:to] }

// AppendN implements Column.
func (c Int32Column) AppendN(other Column, n int) Column {
	o := other.(Int32Column)
	out := make(Int32Column, 0, len(c)+n)
	out = append(out, c...)
	out = append(out, o[:n]...)
	return out
}

// Int64 implements Column.
func (c Int32Column) Int64(i int) int64 { return int64(c[i]) }

// Float32 implements Column.
func (c Int32Column) Float32(i int) float32 { return float32(c[i]) }

// Float32Column is a column of 32-bit floats.
type Float32Column []float32

// Kind implements Column.
func (c Float32Column) Kind() schema.Kind { return schema.KindFloat32 }

// Len implements Column.
func (c Float32Column) Len() int { return len(c) }

// Slice implements Column.
func (c Float32Column) Slice(from, to int) Column { return c[from:to:to] }

// AppendN implements Column.
func (c Float32Column) AppendN(other Column, n int) Column {
	o := other.(Float32Column)
	out := make(Float32Column, 0, len(c)+n)
	out = append(out, c...)
	out = append(out, o[:n]...)
	return out
}

// Int64 implements Column.
func (c Float32Column) Int64(i int) int64 { return int64(c[i]) }

// Float32 implements Column.
func (c Float32Column) Float32(i int) float32 { return c[i] }

// NewColumn allocates an empty column of the given kind with room for n rows.
func NewColumn(kind schema.Kind, n int) Column {
	switch kind {
	case schema.KindInt64:
		return make(Int64Column, 0, n)
	case schema.KindInt32:
		return make(Int32Column, 0, n)
	default:
		return make(Float32Column, 0, n)
	}
}
