package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ReadCSV reads a table whose header cells are "name" or "name:type".
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	spec := &Spec{}
	for _, h := range header {
		col, err := parseHeader(h)
		if err != nil {
			return nil, err
		}
		if err := spec.Append(col); err != nil {
			return nil, err
		}
	}

	t := &Table{Spec: spec}
	for line := 0; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("CSV read error: %w", err)
		}

		row := Row{Key: fmt.Sprintf("Row%d", line), Cells: make([]Cell, spec.NumColumns())}
		for i, col := range spec.Columns {
			raw := ""
			if i < len(record) {
				raw = record[i]
			}
			cell, err := ParseCell(raw, col.Type)
			if err != nil {
				return nil, fmt.Errorf("row %s column %s: %w", row.Key, col.Name, err)
			}
			row.Cells[i] = cell
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// WriteCSV writes the table with "name:type" headers so that ReadCSV restores the types.
func WriteCSV(w io.Writer, t *Table) error {
	writer := csv.NewWriter(w)

	header := make([]string, 0, t.Spec.NumColumns())
	for _, c := range t.Spec.Columns {
		header = append(header, c.Name+":"+string(c.Type))
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, row := range t.Rows {
		record := make([]string, t.Spec.NumColumns())
		for i := range record {
			record[i] = row.Cell(i).String()
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write row %s: %w", row.Key, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func parseHeader(h string) (ColumnSpec, error) {
	h = strings.TrimSpace(strings.ReplaceAll(h, `"`, ""))
	name, typ, found := strings.Cut(h, ":")
	if !found {
		return ColumnSpec{Name: name, Type: TypeString}, nil
	}
	ct, err := ParseCellType(typ)
	if err != nil {
		return ColumnSpec{}, fmt.Errorf("column %s: %w", name, err)
	}
	return ColumnSpec{Name: strings.TrimSpace(name), Type: ct}, nil
}
