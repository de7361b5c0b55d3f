package module

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Module is an executable instance created from a compile product.
// Item values and resolved flags are mutable per execution.
type Module interface {
	ID() string
	Info() *Info

	Input(name string) (any, bool)
	SetInput(name string, value any)
	IsInputResolved(name string) bool
	ResolveInput(name string)
	UnresolveInput(name string)

	Output(name string) (any, bool)
	SetOutput(name string, value any)
	IsOutputResolved(name string) bool
	ResolveOutput(name string)
	UnresolveOutput(name string)

	Run(ctx context.Context) error
}

// Base implements the item bookkeeping of Module. Concrete modules embed it and add Run.
type Base struct {
	id   string
	info *Info

	mu             sync.RWMutex
	inputs         map[string]any
	outputs        map[string]any
	resolvedInput  map[string]bool
	resolvedOutput map[string]bool

	poisoned atomic.Bool
}

// NewBase creates the bookkeeping for a module described by info.
func NewBase(info *Info) *Base {
	return &Base{
		id:             uuid.NewString(),
		info:           info,
		inputs:         make(map[string]any),
		outputs:        make(map[string]any),
		resolvedInput:  make(map[string]bool),
		resolvedOutput: make(map[string]bool),
	}
}

func (b *Base) ID() string { return b.id }

func (b *Base) Info() *Info { return b.info }

func (b *Base) Input(name string) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.inputs[name]
	return v, ok
}

func (b *Base) SetInput(name string, value any) {
	b.mu.Lock()
	b.inputs[name] = value
	b.mu.Unlock()
}

func (b *Base) IsInputResolved(name string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.resolvedInput[name]
}

func (b *Base) ResolveInput(name string) {
	b.mu.Lock()
	b.resolvedInput[name] = true
	b.mu.Unlock()
}

func (b *Base) UnresolveInput(name string) {
	b.mu.Lock()
	delete(b.resolvedInput, name)
	b.mu.Unlock()
}

func (b *Base) Output(name string) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.outputs[name]
	return v, ok
}

func (b *Base) SetOutput(name string, value any) {
	b.mu.Lock()
	b.outputs[name] = value
	b.mu.Unlock()
}

func (b *Base) IsOutputResolved(name string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.resolvedOutput[name]
}

func (b *Base) ResolveOutput(name string) {
	b.mu.Lock()
	b.resolvedOutput[name] = true
	b.mu.Unlock()
}

func (b *Base) UnresolveOutput(name string) {
	b.mu.Lock()
	delete(b.resolvedOutput, name)
	b.mu.Unlock()
}

// Poison marks the instance as unusable.
func (b *Base) Poison() { b.poisoned.Store(true) }

// Poisoned reports whether the instance was abandoned while running.
func (b *Base) Poisoned() bool { return b.poisoned.Load() }

type poisoner interface {
	Poison()
	Poisoned() bool
}

// Poison marks m as unusable when it supports it.
func Poison(m Module) {
	if p, ok := m.(poisoner); ok {
		p.Poison()
	}
}

// IsPoisoned reports whether m was abandoned while still running. A poisoned
// instance may still be executing and must be neither reset nor reused.
func IsPoisoned(m Module) bool {
	p, ok := m.(poisoner)
	return ok && p.Poisoned()
}

// InputValues returns a snapshot of the resolved input values.
func (b *Base) InputValues() map[string]any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	values := make(map[string]any, len(b.inputs))
	for name, v := range b.inputs {
		if b.resolvedInput[name] {
			values[name] = v
		}
	}
	return values
}

// ResetItems unresolves every input and output and drops all item values.
func (b *Base) ResetItems() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.resolvedInput)
	clear(b.resolvedOutput)
	clear(b.outputs)
	clear(b.inputs)
}
