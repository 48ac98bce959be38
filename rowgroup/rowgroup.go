// Package rowgroup models the column-aligned rectangular chunks delivered by
// a shard reader.
//
// A RowGroup corresponds to one I/O step of the underlying reader: a dense
// block of rows stored column-wise, every column aligned by row index. It is
// the unit the batch stitcher consumes and re-chunks into fixed-size
// training batches.
package rowgroup

import (
	"fmt"

	"github.com/batchgo/batchgo/schema"
)

// RowGroup is an immutable column-oriented chunk of rows. Columns follow the
// schema's field order: column 0 is the label, the rest are features.
type RowGroup struct {
	sch  *schema.Schema
	cols []Column
	rows int
}

// New creates a row group from columns in schema field order.
//
// Every column must match its field's kind and all columns must have the same
// length; a mismatch means the source shard is corrupt and is surfaced as an
// error rather than silently producing misaligned batches.
func New(sch *schema.Schema, cols []Column) (*RowGroup, error) {
	if sch == nil {
		return nil, fmt.Errorf("rowgroup: nil schema")
	}
	if len(cols) != sch.NumFields() {
		return nil, fmt.Errorf("rowgroup: got %d columns, schema has %d fields", len(cols), sch.NumFields())
	}

	rows := cols[0].Len()
	for i, col := range cols {
		field := sch.Field(i)
		if col.Kind() != field.Kind {
			return nil, fmt.Errorf("rowgroup: column %q has kind %s, schema expects %s",
				field.Name, col.Kind(), field.Kind)
		}
		if col.Len() != rows {
			return nil, fmt.Errorf("rowgroup: column %q has %d rows, column %q has %d",
				field.Name, col.Len(), sch.Field(0).Name, rows)
		}
	}

	return &RowGroup{sch: sch, cols: cols, rows: rows}, nil
}

// FromMap creates a row group by projecting a name->column mapping onto the
// schema's field order. Extra columns in the mapping are ignored; a missing
// schema column is an error.
func FromMap(sch *schema.Schema, byName map[string]Column) (*RowGroup, error) {
	if sch == nil {
		return nil, fmt.Errorf("rowgroup: nil schema")
	}
	cols := make([]Column, sch.NumFields())
	for i, name := range sch.Names() {
		col, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("rowgroup: source has no column %q", name)
		}
		cols[i] = col
	}
	return New(sch, cols)
}

// Schema returns the row group's schema.
func (rg *RowGroup) Schema() *schema.Schema { return rg.sch }

// NumRows returns the number of rows.
func (rg *RowGroup) NumRows() int { return rg.rows }

// NumCols returns the number of columns.
func (rg *RowGroup) NumCols() int { return len(rg.cols) }

// Column returns the column at schema position i.
func (rg *RowGroup) Column(i int) Column { return rg.cols[i] }

// Columns returns the ordered columns. The returned slice must not be mutated.
func (rg *RowGroup) Columns() []Column { return rg.cols }

// Slice returns the rows in [from, to) as a new row group sharing backing
// arrays with the receiver.
func (rg *RowGroup) Slice(from, to int) *RowGroup {
	cols := make([]Column, len(rg.cols))
	for i, col := range rg.cols {
		cols[i] = col.Slice(from, to)
	}
	return &RowGroup{sch: rg.sch, cols: cols, rows: to - from}
}
