// Package transport serves a node over NATS request/reply.
package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/wehubfusion/Daedalus/pkg/table"
)

// WireRow is a row on the wire. Cells are JSON scalars, null for missing.
type WireRow struct {
	Key   string `json:"key"`
	Cells []any  `json:"cells"`
}

// Request asks the node to process a table.
type Request struct {
	Spec []table.ColumnSpec `json:"spec"`
	Rows []WireRow          `json:"rows"`
}

// Response carries the processed table or the error that stopped it.
type Response struct {
	Columns []table.ColumnSpec `json:"columns,omitempty"`
	Rows    []WireRow          `json:"rows,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// EncodeRows converts table rows to their wire form.
func EncodeRows(rows []table.Row) []WireRow {
	out := make([]WireRow, len(rows))
	for i, row := range rows {
		cells := make([]any, len(row.Cells))
		for j, c := range row.Cells {
			if c == nil || c.IsMissing() {
				continue
			}
			cells[j] = c.Value()
		}
		out[i] = WireRow{Key: row.Key, Cells: cells}
	}
	return out
}

// DecodeRequest parses a request body into a table.
func DecodeRequest(data []byte) (*table.Table, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var req Request
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	return DecodeTable(req.Spec, req.Rows)
}

// DecodeTable builds a table from wire rows, typing each cell by its column.
func DecodeTable(columns []table.ColumnSpec, rows []WireRow) (*table.Table, error) {
	columns = append([]table.ColumnSpec(nil), columns...)
	for i := range columns {
		ct, err := table.ParseCellType(string(columns[i].Type))
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", columns[i].Name, err)
		}
		columns[i].Type = ct
	}
	spec, err := table.NewSpec(columns...)
	if err != nil {
		return nil, err
	}
	t := &table.Table{Spec: spec, Rows: make([]table.Row, 0, len(rows))}
	for i, wr := range rows {
		if len(wr.Cells) != len(columns) {
			return nil, fmt.Errorf("row %d has %d cells, want %d", i, len(wr.Cells), len(columns))
		}
		key := wr.Key
		if key == "" {
			key = fmt.Sprintf("Row%d", i)
		}
		cells := make([]table.Cell, len(columns))
		for j, v := range wr.Cells {
			c, err := decodeCell(v, columns[j].Type)
			if err != nil {
				return nil, fmt.Errorf("row %s column %s: %w", key, columns[j].Name, err)
			}
			cells[j] = c
		}
		t.Rows = append(t.Rows, table.Row{Key: key, Cells: cells})
	}
	return t, nil
}

func decodeCell(v any, t table.CellType) (table.Cell, error) {
	switch x := v.(type) {
	case nil:
		return table.Missing, nil
	case string:
		if t == table.TypeString {
			return table.StringCell(x), nil
		}
		return table.ParseCell(x, t)
	case json.Number:
		return table.ParseCell(x.String(), t)
	case float64:
		return table.ParseCell(strconv.FormatFloat(x, 'g', -1, 64), t)
	case bool:
		return table.ParseCell(strconv.FormatBool(x), t)
	}
	return nil, fmt.Errorf("unsupported cell value %T", v)
}

// EncodeResponse renders a processed table, or err when it is not nil.
func EncodeResponse(t *table.Table, err error) []byte {
	var resp Response
	if err != nil {
		resp.Error = err.Error()
	} else {
		resp.Columns = t.Spec.Columns
		resp.Rows = EncodeRows(t.Rows)
	}
	data, mErr := json.Marshal(resp)
	if mErr != nil {
		data, _ = json.Marshal(Response{Error: mErr.Error()})
	}
	return data
}
