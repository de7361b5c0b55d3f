// Package adapter converts between table cells and module item values.
package adapter

import (
	"fmt"
	"math"
	"strconv"

	"github.com/wehubfusion/Daedalus/pkg/module"
	"github.com/wehubfusion/Daedalus/pkg/table"
)

// InputAdapter converts a cell of type From into a value for an item of type To.
type InputAdapter struct {
	From    table.CellType
	To      module.ItemType
	Convert func(table.Cell) (any, error)
}

// OutputAdapter converts an item value of type From into a cell of type To.
type OutputAdapter struct {
	From    module.ItemType
	To      table.CellType
	Convert func(any) (table.Cell, error)
}

type inputKey struct {
	from table.CellType
	to   module.ItemType
}

// Registry holds the input and output adapters known to the node.
type Registry struct {
	inputs  map[inputKey]InputAdapter
	outputs map[module.ItemType]OutputAdapter
}

// NewRegistry builds a registry from explicit adapter lists. Later entries replace earlier ones.
func NewRegistry(inputs []InputAdapter, outputs []OutputAdapter) *Registry {
	r := &Registry{
		inputs:  make(map[inputKey]InputAdapter, len(inputs)),
		outputs: make(map[module.ItemType]OutputAdapter, len(outputs)),
	}
	for _, a := range inputs {
		r.inputs[inputKey{a.From, a.To}] = a
	}
	for _, a := range outputs {
		r.outputs[a.From] = a
	}
	return r
}

// Default returns the registry with the built-in adapters.
func Default() *Registry {
	return NewRegistry(defaultInputs(), defaultOutputs())
}

// FindInput returns the adapter from a cell type to an item type.
func (r *Registry) FindInput(from table.CellType, to module.ItemType) (InputAdapter, bool) {
	a, ok := r.inputs[inputKey{from, to}]
	return a, ok
}

// FindOutput returns the adapter for an item type.
func (r *Registry) FindOutput(from module.ItemType) (OutputAdapter, bool) {
	a, ok := r.outputs[from]
	return a, ok
}

func raw(c table.Cell) (any, error) { return c.Value(), nil }

func asString(c table.Cell) (any, error) { return c.String(), nil }

func defaultInputs() []InputAdapter {
	adapters := []InputAdapter{
		{From: table.TypeString, To: module.TypeString, Convert: asString},

		{From: table.TypeInteger, To: module.TypeInteger, Convert: raw},
		{From: table.TypeInteger, To: module.TypeLong, Convert: func(c table.Cell) (any, error) {
			return int64(c.(table.IntCell)), nil
		}},
		{From: table.TypeInteger, To: module.TypeDouble, Convert: func(c table.Cell) (any, error) {
			return float64(c.(table.IntCell)), nil
		}},
		{From: table.TypeInteger, To: module.TypeString, Convert: asString},

		{From: table.TypeLong, To: module.TypeLong, Convert: raw},
		{From: table.TypeLong, To: module.TypeDouble, Convert: func(c table.Cell) (any, error) {
			return float64(c.(table.LongCell)), nil
		}},
		{From: table.TypeLong, To: module.TypeString, Convert: asString},

		{From: table.TypeDouble, To: module.TypeDouble, Convert: raw},
		{From: table.TypeDouble, To: module.TypeString, Convert: asString},

		{From: table.TypeBoolean, To: module.TypeBoolean, Convert: raw},
		{From: table.TypeBoolean, To: module.TypeString, Convert: asString},
	}
	for _, ct := range []table.CellType{table.TypeString, table.TypeInteger, table.TypeLong, table.TypeDouble, table.TypeBoolean} {
		adapters = append(adapters, InputAdapter{From: ct, To: module.TypeUnspecified, Convert: raw})
	}
	return adapters
}

func defaultOutputs() []OutputAdapter {
	return []OutputAdapter{
		{From: module.TypeString, To: table.TypeString, Convert: func(v any) (table.Cell, error) {
			if v == nil {
				return table.Missing, nil
			}
			if s, ok := v.(string); ok {
				return table.StringCell(s), nil
			}
			return table.StringCell(fmt.Sprint(v)), nil
		}},
		{From: module.TypeInteger, To: table.TypeInteger, Convert: func(v any) (table.Cell, error) {
			if v == nil {
				return table.Missing, nil
			}
			n, err := toInt64(v)
			if err != nil {
				return nil, err
			}
			if n < math.MinInt32 || n > math.MaxInt32 {
				return nil, fmt.Errorf("value %d overflows a 32-bit integer", n)
			}
			return table.IntCell(n), nil
		}},
		{From: module.TypeLong, To: table.TypeLong, Convert: func(v any) (table.Cell, error) {
			if v == nil {
				return table.Missing, nil
			}
			n, err := toInt64(v)
			if err != nil {
				return nil, err
			}
			return table.LongCell(n), nil
		}},
		{From: module.TypeDouble, To: table.TypeDouble, Convert: func(v any) (table.Cell, error) {
			if v == nil {
				return table.Missing, nil
			}
			f, err := toFloat64(v)
			if err != nil {
				return nil, err
			}
			return table.DoubleCell(f), nil
		}},
		{From: module.TypeBoolean, To: table.TypeBoolean, Convert: func(v any) (table.Cell, error) {
			switch b := v.(type) {
			case nil:
				return table.Missing, nil
			case bool:
				return table.BooleanCell(b), nil
			case string:
				parsed, err := strconv.ParseBool(b)
				if err != nil {
					return nil, err
				}
				return table.BooleanCell(parsed), nil
			}
			return nil, fmt.Errorf("cannot convert %T to boolean", v)
		}},
	}
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows a 64-bit integer", n)
		}
		return int64(n), nil
	case float32:
		return floatToInt64(float64(n))
	case float64:
		return floatToInt64(n)
	case string:
		return strconv.ParseInt(n, 10, 64)
	}
	return 0, fmt.Errorf("cannot convert %T to integer", v)
}

func floatToInt64(f float64) (int64, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("value %v is not an integer", f)
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("value %v overflows a 64-bit integer", f)
	}
	return int64(f), nil
}

func toFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(n, 64)
	}
	i, err := toInt64(v)
	if err != nil {
		return 0, fmt.Errorf("cannot convert %T to double", v)
	}
	return float64(i), nil
}
