// Package commands holds the Go-implemented commands that can back a module
// instead of a script.
package commands

import (
	"context"
	"fmt"
	"sort"

	"github.com/wehubfusion/Daedalus/pkg/module"
)

// Injector supplies named services to command constructors.
type Injector interface {
	Service(name string) (any, bool)
}

// Services is a map-backed Injector.
type Services map[string]any

func (s Services) Service(name string) (any, bool) {
	v, ok := s[name]
	return v, ok
}

// Command is a runnable command instance.
type Command interface {
	Run(ctx context.Context, inputs map[string]any) (map[string]any, error)
}

// Descriptor describes a command and how to instantiate it.
type Descriptor struct {
	Name        string
	Description string
	Items       []module.Item
	New         func(Injector) (Command, error)
}

// Info builds the module description for the command.
func (d *Descriptor) Info() (*module.Info, error) {
	return module.NewInfo(d.Name, d.Items...)
}

// Registry is the explicit list of available commands.
type Registry struct {
	commands map[string]*Descriptor
}

// NewRegistry builds a registry from descriptors.
func NewRegistry(descriptors ...*Descriptor) *Registry {
	r := &Registry{commands: make(map[string]*Descriptor, len(descriptors))}
	for _, d := range descriptors {
		r.commands[d.Name] = d
	}
	return r
}

// Default returns the registry of built-in commands.
func Default() *Registry {
	return NewRegistry(builtins()...)
}

// Lookup returns the descriptor for name.
func (r *Registry) Lookup(name string) (*Descriptor, error) {
	d, ok := r.commands[name]
	if !ok {
		return nil, fmt.Errorf("unknown command %q", name)
	}
	return d, nil
}

// Names returns the sorted command names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Func adapts a function to Command.
type Func func(ctx context.Context, inputs map[string]any) (map[string]any, error)

func (f Func) Run(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	return f(ctx, inputs)
}

func stateless(f Func) func(Injector) (Command, error) {
	return func(Injector) (Command, error) { return f, nil }
}

func in(name string, t module.ItemType, required bool, def any) module.Item {
	return module.Item{Name: name, Type: t, Direction: module.Input, Required: required, Default: def}
}

func out(name string, t module.ItemType) module.Item {
	return module.Item{Name: name, Type: t, Direction: module.Output}
}
