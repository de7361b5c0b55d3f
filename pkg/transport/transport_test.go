package transport

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wehubfusion/Daedalus/pkg/table"
)

type doubler struct {
	err error
}

func (d doubler) Execute(_ context.Context, in *table.Table) (*table.Table, error) {
	if d.err != nil {
		return nil, d.err
	}
	spec, _ := table.NewSpec(table.ColumnSpec{Name: "doubled", Type: table.TypeLong})
	out := &table.Table{Spec: spec}
	for _, row := range in.Rows {
		c := row.Cell(0)
		if c.IsMissing() {
			out.Rows = append(out.Rows, table.Row{Key: row.Key, Cells: []table.Cell{table.Missing}})
			continue
		}
		out.Rows = append(out.Rows, table.Row{Key: row.Key, Cells: []table.Cell{table.LongCell(int64(c.(table.IntCell)) * 2)}})
	}
	return out, nil
}

func TestDecodeRequest(t *testing.T) {
	body := `{"spec":[{"name":"n","type":"int"},{"name":"s","type":"string"},{"name":"b","type":"boolean"},{"name":"d","type":"double"}],
		"rows":[{"key":"a","cells":[1,"x",true,1.5]},{"cells":[null,"12","false","2"]}]}`

	tbl, err := DecodeRequest([]byte(body))
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 2)

	assert.Equal(t, table.Row{Key: "a", Cells: []table.Cell{
		table.IntCell(1), table.StringCell("x"), table.BooleanCell(true), table.DoubleCell(1.5),
	}}, tbl.Rows[0])
	assert.Equal(t, table.Row{Key: "Row1", Cells: []table.Cell{
		table.Missing, table.StringCell("12"), table.BooleanCell(false), table.DoubleCell(2),
	}}, tbl.Rows[1])
}

func TestDecodeRequest_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "not json", body: "{", want: "invalid request"},
		{name: "short row", body: `{"spec":[{"name":"n","type":"int"}],"rows":[{"cells":[]}]}`, want: "has 0 cells"},
		{name: "bad value", body: `{"spec":[{"name":"n","type":"int"}],"rows":[{"cells":[1.5]}]}`, want: "row Row0 column n"},
		{name: "duplicate column", body: `{"spec":[{"name":"n","type":"int"},{"name":"n","type":"int"}],"rows":[]}`, want: "duplicate"},
		{name: "nested value", body: `{"spec":[{"name":"n","type":"int"}],"rows":[{"cells":[[1]]}]}`, want: "unsupported cell value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRequest([]byte(tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestService_Handle(t *testing.T) {
	svc, err := NewService(nil, doubler{}, Config{Subject: "daedalus.rows"}, nil)
	require.NoError(t, err)

	reply := svc.Handle(t.Context(), []byte(`{"spec":[{"name":"n","type":"int"}],"rows":[{"key":"r1","cells":[21]},{"key":"r2","cells":[null]}]}`))

	var resp Response
	require.NoError(t, json.Unmarshal(reply, &resp))
	assert.Empty(t, resp.Error)
	assert.Equal(t, []table.ColumnSpec{{Name: "doubled", Type: table.TypeLong}}, resp.Columns)
	require.Len(t, resp.Rows, 2)
	assert.Equal(t, "r1", resp.Rows[0].Key)
	assert.Equal(t, []any{float64(42)}, resp.Rows[0].Cells)
	assert.Equal(t, []any{nil}, resp.Rows[1].Cells)
}

func TestService_HandleErrors(t *testing.T) {
	svc, err := NewService(nil, doubler{err: errors.New("row r1: boom")}, Config{Subject: "s"}, nil)
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal(svc.Handle(t.Context(), []byte(`{"spec":[],"rows":[]}`)), &resp))
	assert.Equal(t, "row r1: boom", resp.Error)
	assert.Empty(t, resp.Rows)

	require.NoError(t, json.Unmarshal(svc.Handle(t.Context(), []byte(`nope`)), &resp))
	assert.Contains(t, resp.Error, "invalid request")

	assert.Error(t, svc.Start(t.Context()))
	assert.NoError(t, svc.Stop())
}

func TestNewService_Validation(t *testing.T) {
	_, err := NewService(nil, nil, Config{Subject: "s"}, nil)
	assert.Error(t, err)
	_, err = NewService(nil, doubler{}, Config{}, nil)
	assert.Error(t, err)
}
