// Package module provides module descriptions, module instances and the service that runs them.
package module

import (
	"fmt"
	"strconv"
	"strings"
)

// ItemType is the declared type of a module input or output.
type ItemType string

// Supported item types
const (
	TypeString      ItemType = "String"
	TypeInteger     ItemType = "Integer"
	TypeLong        ItemType = "Long"
	TypeDouble      ItemType = "Double"
	TypeBoolean     ItemType = "Boolean"
	TypeUnspecified ItemType = "Object"
)

// ParseItemType maps a declared type name to an ItemType.
func ParseItemType(s string) (ItemType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "string", "str":
		return TypeString, nil
	case "int", "integer":
		return TypeInteger, nil
	case "long":
		return TypeLong, nil
	case "double", "float", "number":
		return TypeDouble, nil
	case "bool", "boolean":
		return TypeBoolean, nil
	case "object", "any", "":
		return TypeUnspecified, nil
	}
	return "", fmt.Errorf("unknown item type %q", s)
}

// ParseValue converts the textual form of a value to the Go type used for t.
// Strings and unspecified items keep the raw text.
func ParseValue(raw string, t ItemType) (any, error) {
	switch t {
	case TypeInteger:
		v, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return nil, err
		}
		return int32(v), nil
	case TypeLong:
		return strconv.ParseInt(raw, 10, 64)
	case TypeDouble:
		return strconv.ParseFloat(raw, 64)
	case TypeBoolean:
		return strconv.ParseBool(raw)
	}
	return raw, nil
}

// Direction tells whether an item is an input or an output.
type Direction int

const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	if d == Output {
		return "output"
	}
	return "input"
}

// Item is a named, typed input or output slot of a module.
type Item struct {
	Name      string    `json:"name"`
	Type      ItemType  `json:"type"`
	Direction Direction `json:"direction"`
	Required  bool      `json:"required,omitempty"`
	Default   any       `json:"default,omitempty"`
	Label     string    `json:"label,omitempty"`
}

// Info describes the inputs and outputs of a module, in declaration order.
type Info struct {
	Name    string
	inputs  []Item
	outputs []Item
}

// NewInfo builds an Info. Names must be unique per direction.
func NewInfo(name string, items ...Item) (*Info, error) {
	info := &Info{Name: name}
	for _, it := range items {
		if err := info.Add(it); err != nil {
			return nil, err
		}
	}
	return info, nil
}

// Add appends an item to its direction's list.
func (i *Info) Add(it Item) error {
	if it.Name == "" {
		return fmt.Errorf("%s item name cannot be empty", it.Direction)
	}
	if it.Direction == Output {
		if _, ok := i.Output(it.Name); ok {
			return fmt.Errorf("duplicate output %q", it.Name)
		}
		i.outputs = append(i.outputs, it)
		return nil
	}
	if _, ok := i.Input(it.Name); ok {
		return fmt.Errorf("duplicate input %q", it.Name)
	}
	i.inputs = append(i.inputs, it)
	return nil
}

// Inputs returns a copy of the input items.
func (i *Info) Inputs() []Item {
	return append([]Item(nil), i.inputs...)
}

// Outputs returns a copy of the output items.
func (i *Info) Outputs() []Item {
	return append([]Item(nil), i.outputs...)
}

// Input looks up an input by name.
func (i *Info) Input(name string) (Item, bool) {
	for _, it := range i.inputs {
		if it.Name == name {
			return it, true
		}
	}
	return Item{}, false
}

// Output looks up an output by name.
func (i *Info) Output(name string) (Item, bool) {
	for _, it := range i.outputs {
		if it.Name == name {
			return it, true
		}
	}
	return Item{}, false
}
