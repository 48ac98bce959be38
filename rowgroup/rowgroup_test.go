package rowgroup

import (
	"testing"

	"github.com/batchgo/batchgo/schema"
	"github.com/stretchr/testify/require"
)

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	return schema.MustNew(
		schema.Field{Name: "Label", Kind: schema.KindInt32},
		schema.Field{Name: "I1", Kind: schema.KindInt64},
		schema.Field{Name: "C1", Kind: schema.KindInt64},
	)
}

func TestNew(t *testing.T) {
	sch := testSchema(t)

	rg, err := New(sch, []Column{
		Int32Column{1, 0, 1},
		Int64Column{10, 11, 12},
		Int64Column{20, 21, 22},
	})
	require.NoError(t, err)
	require.Equal(t, 3, rg.NumRows())
	require.Equal(t, 3, rg.NumCols())
	require.Equal(t, int64(11), rg.Column(1).Int64(1))
}

func TestNew_MismatchedLengths(t *testing.T) {
	sch := testSchema(t)

	_, err := New(sch, []Column{
		Int32Column{1, 0, 1},
		Int64Column{10, 11},
		Int64Column{20, 21, 22},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "I1")
}

func TestNew_WrongKind(t *testing.T) {
	sch := testSchema(t)

	_, err := New(sch, []Column{
		Int32Column{1},
		Float32Column{1.5},
		Int64Column{20},
	})
	require.Error(t, err)
}

func TestFromMap_ProjectsSchemaOrder(t *testing.T) {
	sch := testSchema(t)

	rg, err := FromMap(sch, map[string]Column{
		"C1":     Int64Column{20},
		"Label":  Int32Column{1},
		"I1":     Int64Column{10},
		"Unused": Int64Column{99},
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), rg.Column(0).Int64(0))
	require.Equal(t, int64(10), rg.Column(1).Int64(0))
	require.Equal(t, int64(20), rg.Column(2).Int64(0))

	_, err = FromMap(sch, map[string]Column{"Label": Int32Column{1}})
	require.Error(t, err)
}

func TestSlice(t *testing.T) {
	sch := testSchema(t)
	rg, err := New(sch, []Column{
		Int32Column{1, 0, 1, 0},
		Int64Column{10, 11, 12, 13},
		Int64Column{20, 21, 22, 23},
	})
	require.NoError(t, err)

	s := rg.Slice(1, 3)
	require.Equal(t, 2, s.NumRows())
	require.Equal(t, int64(11), s.Column(1).Int64(0))
	require.Equal(t, int64(22), s.Column(2).Int64(1))
}

func TestAppendN(t *testing.T) {
	a := Int64Column{1, 2}
	b := Int64Column{3, 4, 5}

	c := a.AppendN(b, 2)
	require.Equal(t, Int64Column{1, 2, 3, 4}, c)
	// Receiver is unchanged.
	require.Equal(t, Int64Column{1, 2}, a)
}
