package table

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrDuplicateColumn is returned when a spec would contain two columns with the same name
var ErrDuplicateColumn = errors.New("duplicate column name")

// CellType represents the data type of a table cell
type CellType string

// Supported cell types
const (
	TypeString  CellType = "string"
	TypeInteger CellType = "int"
	TypeLong    CellType = "long"
	TypeDouble  CellType = "double"
	TypeBoolean CellType = "boolean"
	TypeMissing CellType = "missing"
)

// ParseCellType parses a header type annotation.
func ParseCellType(s string) (CellType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "string", "str":
		return TypeString, nil
	case "int", "integer":
		return TypeInteger, nil
	case "long":
		return TypeLong, nil
	case "double", "float", "number":
		return TypeDouble, nil
	case "bool", "boolean":
		return TypeBoolean, nil
	}
	return "", fmt.Errorf("unknown cell type %q", s)
}

// Cell is a single typed value in a row
type Cell interface {
	Type() CellType
	Value() any
	String() string
	IsMissing() bool
}

// StringCell holds a string value
type StringCell string

func (c StringCell) Type() CellType  { return TypeString }
func (c StringCell) Value() any      { return string(c) }
func (c StringCell) String() string  { return string(c) }
func (c StringCell) IsMissing() bool { return false }

// IntCell holds a 32-bit integer value
type IntCell int32

func (c IntCell) Type() CellType  { return TypeInteger }
func (c IntCell) Value() any      { return int32(c) }
func (c IntCell) String() string  { return strconv.FormatInt(int64(c), 10) }
func (c IntCell) IsMissing() bool { return false }

// LongCell holds a 64-bit integer value
type LongCell int64

func (c LongCell) Type() CellType  { return TypeLong }
func (c LongCell) Value() any      { return int64(c) }
func (c LongCell) String() string  { return strconv.FormatInt(int64(c), 10) }
func (c LongCell) IsMissing() bool { return false }

// DoubleCell holds a floating point value
type DoubleCell float64

func (c DoubleCell) Type() CellType  { return TypeDouble }
func (c DoubleCell) Value() any      { return float64(c) }
func (c DoubleCell) String() string  { return strconv.FormatFloat(float64(c), 'g', -1, 64) }
func (c DoubleCell) IsMissing() bool { return false }

// BooleanCell holds a boolean value
type BooleanCell bool

func (c BooleanCell) Type() CellType  { return TypeBoolean }
func (c BooleanCell) Value() any      { return bool(c) }
func (c BooleanCell) String() string  { return strconv.FormatBool(bool(c)) }
func (c BooleanCell) IsMissing() bool { return false }

// MissingCell marks an absent value
type MissingCell struct{}

func (MissingCell) Type() CellType  { return TypeMissing }
func (MissingCell) Value() any      { return nil }
func (MissingCell) String() string  { return "" }
func (MissingCell) IsMissing() bool { return true }

// Missing is the shared missing cell.
var Missing Cell = MissingCell{}

// ParseCell converts raw text into a cell of the given type. Empty text is a missing cell.
func ParseCell(raw string, t CellType) (Cell, error) {
	if raw == "" {
		return Missing, nil
	}
	switch t {
	case TypeString:
		return StringCell(raw), nil
	case TypeInteger:
		v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 32)
		if err != nil {
			return nil, err
		}
		return IntCell(v), nil
	case TypeLong:
		v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, err
		}
		return LongCell(v), nil
	case TypeDouble:
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, err
		}
		return DoubleCell(v), nil
	case TypeBoolean:
		v, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return nil, err
		}
		return BooleanCell(v), nil
	}
	return nil, fmt.Errorf("cannot parse into cell type %q", t)
}

// ColumnSpec describes a single column
type ColumnSpec struct {
	Name string   `json:"name"`
	Type CellType `json:"type"`
}

// Spec is the ordered list of columns of a table
type Spec struct {
	Columns []ColumnSpec `json:"columns"`
}

// NewSpec builds a spec and rejects duplicate column names.
func NewSpec(columns ...ColumnSpec) (*Spec, error) {
	s := &Spec{}
	if err := s.Append(columns...); err != nil {
		return nil, err
	}
	return s, nil
}

// Append adds columns to the end of the spec.
func (s *Spec) Append(columns ...ColumnSpec) error {
	for _, c := range columns {
		if _, ok := s.FindColumnIndex(c.Name); ok {
			return fmt.Errorf("%w: %s", ErrDuplicateColumn, c.Name)
		}
		s.Columns = append(s.Columns, c)
	}
	return nil
}

// FindColumnIndex returns the position of the named column.
func (s *Spec) FindColumnIndex(name string) (int, bool) {
	if s == nil {
		return -1, false
	}
	for i, c := range s.Columns {
		if c.Name == name {
			return i, true
		}
	}
	return -1, false
}

// NumColumns returns the column count.
func (s *Spec) NumColumns() int {
	if s == nil {
		return 0
	}
	return len(s.Columns)
}

// Names returns the column names in order.
func (s *Spec) Names() []string {
	names := make([]string, 0, s.NumColumns())
	for _, c := range s.Columns {
		names = append(names, c.Name)
	}
	return names
}

// Row is a keyed list of cells aligned with a Spec
type Row struct {
	Key   string
	Cells []Cell
}

// Cell returns the cell at i, or a missing cell when the row is short.
func (r Row) Cell(i int) Cell {
	if i < 0 || i >= len(r.Cells) || r.Cells[i] == nil {
		return Missing
	}
	return r.Cells[i]
}

// Table is a spec with its rows
type Table struct {
	Spec *Spec
	Rows []Row
}
