package table

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpec_DuplicateColumn(t *testing.T) {
	_, err := NewSpec(
		ColumnSpec{Name: "height", Type: TypeInteger},
		ColumnSpec{Name: "height", Type: TypeDouble},
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateColumn)
}

func TestSpec_FindColumnIndex(t *testing.T) {
	spec, err := NewSpec(
		ColumnSpec{Name: "a", Type: TypeString},
		ColumnSpec{Name: "b", Type: TypeLong},
	)
	require.NoError(t, err)

	idx, ok := spec.FindColumnIndex("b")
	assert.True(t, ok)
	assert.Equal(t, 1, idx)

	_, ok = spec.FindColumnIndex("c")
	assert.False(t, ok)

	var nilSpec *Spec
	_, ok = nilSpec.FindColumnIndex("a")
	assert.False(t, ok)
}

func TestParseCell(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		typ     CellType
		want    Cell
		wantErr bool
	}{
		{name: "empty is missing", raw: "", typ: TypeInteger, want: Missing},
		{name: "int", raw: "42", typ: TypeInteger, want: IntCell(42)},
		{name: "int overflow", raw: "3000000000", typ: TypeInteger, wantErr: true},
		{name: "long", raw: "3000000000", typ: TypeLong, want: LongCell(3000000000)},
		{name: "double", raw: "1.5", typ: TypeDouble, want: DoubleCell(1.5)},
		{name: "boolean", raw: "true", typ: TypeBoolean, want: BooleanCell(true)},
		{name: "string", raw: "hi", typ: TypeString, want: StringCell("hi")},
		{name: "bad int", raw: "x", typ: TypeInteger, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCell(tt.raw, tt.typ)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadCSV(t *testing.T) {
	input := "name,height:int,weight:double\nann,170,61.5\nbob,,80\n"

	tbl, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "height", "weight"}, tbl.Spec.Names())
	assert.Equal(t, TypeInteger, tbl.Spec.Columns[1].Type)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, "Row0", tbl.Rows[0].Key)
	assert.Equal(t, IntCell(170), tbl.Rows[0].Cells[1])
	assert.True(t, tbl.Rows[1].Cells[1].IsMissing())
	assert.Equal(t, DoubleCell(80), tbl.Rows[1].Cells[2])
}

func TestReadCSV_InvalidValue(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("height:int\nabc\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row Row0 column height")
}

func TestWriteCSV_ReadBack(t *testing.T) {
	spec, err := NewSpec(
		ColumnSpec{Name: "label", Type: TypeString},
		ColumnSpec{Name: "area", Type: TypeLong},
		ColumnSpec{Name: "ok", Type: TypeBoolean},
	)
	require.NoError(t, err)
	tbl := &Table{Spec: spec, Rows: []Row{
		{Key: "Row0", Cells: []Cell{StringCell("a, b"), LongCell(12), BooleanCell(true)}},
		{Key: "Row1", Cells: []Cell{Missing, LongCell(-3), BooleanCell(false)}},
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, tbl))
	assert.True(t, strings.HasPrefix(buf.String(), "label:string,area:long,ok:boolean\n"))

	back, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, tbl.Spec, back.Spec)
	assert.Equal(t, tbl.Rows, back.Rows)
}
