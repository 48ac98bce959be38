// Package schema defines the field schema of a training dataset.
//
// A schema is an ordered sequence of named columns: exactly one label column
// followed by a fixed number of feature columns. The order is fixed and
// defines the stacking order of emitted feature tensors, so two datasets with
// the same columns in a different order are different schemas.
package schema

import (
	"fmt"
)

// Kind identifies the physical type of a column.
type Kind int

const (
	// KindInt64 is a 64-bit signed integer column (categorical IDs and
	// pre-bucketized dense features).
	KindInt64 Kind = iota
	// KindInt32 is a 32-bit signed integer column.
	KindInt32
	// KindFloat32 is a 32-bit floating point column.
	KindFloat32
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindInt64:
		return "int64"
	case KindInt32:
		return "int32"
	case KindFloat32:
		return "float32"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Field is a single named column.
type Field struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// Schema is an immutable ordered field list. Column 0 is the label column,
// the remaining columns are features.
type Schema struct {
	fields []Field
	index  map[string]int
}

// New creates a schema from a label field and one or more feature fields.
//
// Feature columns must be integer-kind (they are stacked into a single
// row-major int64 tensor by the stitcher). The label column may be any kind;
// it is converted to float32 when batches are built.
func New(label Field, features ...Field) (*Schema, error) {
	if label.Name == "" {
		return nil, fmt.Errorf("schema: label field has empty name")
	}
	if len(features) == 0 {
		return nil, fmt.Errorf("schema: at least one feature field required")
	}

	fields := make([]Field, 0, len(features)+1)
	fields = append(fields, label)
	fields = append(fields, features...)

	index := make(map[string]int, len(fields))
	for i, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("schema: field %d has empty name", i)
		}
		if _, dup := index[f.Name]; dup {
			return nil, fmt.Errorf("schema: duplicate field name %q", f.Name)
		}
		if i > 0 && f.Kind == KindFloat32 {
			return nil, fmt.Errorf("schema: feature field %q must be integer-kind, got %s", f.Name, f.Kind)
		}
		index[f.Name] = i
	}

	return &Schema{fields: fields, index: index}, nil
}

// MustNew is like New but panics on error. Intended for static schemas
// declared at package init time.
func MustNew(label Field, features ...Field) *Schema {
	s, err := New(label, features...)
	if err != nil {
		panic(err)
	}
	return s
}

// NumFields returns the total number of columns including the label.
func (s *Schema) NumFields() int { return len(s.fields) }

// NumFeatures returns the number of feature columns (excluding the label).
func (s *Schema) NumFeatures() int { return len(s.fields) - 1 }

// Field returns the field at position i.
func (s *Schema) Field(i int) Field { return s.fields[i] }

// Fields returns a copy of the ordered field list.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Label returns the label field (column 0).
func (s *Schema) Label() Field { return s.fields[0] }

// Lookup returns the position of the named field.
func (s *Schema) Lookup(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// Names returns the ordered column names.
func (s *Schema) Names() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// Equal reports whether two schemas have identical field order, names and kinds.
func (s *Schema) Equal(other *Schema) bool {
	if other == nil || len(s.fields) != len(other.fields) {
		return false
	}
	for i, f := range s.fields {
		if other.fields[i] != f {
			return false
		}
	}
	return true
}
