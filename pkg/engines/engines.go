// Package engines defines the capability interfaces that script language engines implement.
package engines

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Engine compiles scripts of one language.
type Engine interface {
	// Name is the canonical language name.
	Name() string
	// Aliases are alternative language names.
	Aliases() []string
	// Extension is the staging file extension, without the dot.
	Extension() string
	// Compile compiles the script stored at path.
	Compile(path string) (Program, error)
}

// Program is a compiled script from which independent sessions are created.
type Program interface {
	NewSession() (Session, error)
}

// Session is the per-module-instance engine state. A session is not safe for
// concurrent use; each module instance owns one.
type Session interface {
	// Eval runs the program with inputs bound and returns its result value.
	Eval(ctx context.Context, inputs map[string]any) (any, error)
	// Binding returns the value the last run left under name.
	Binding(name string) (any, bool)
	// ClearBindings removes the named bindings from the engine state. An
	// engine may drop all of its state instead.
	ClearBindings(names []string)
	Close() error
}

// Registry resolves language names and aliases to engines.
type Registry struct {
	mu      sync.RWMutex
	engines map[string]Engine
	names   []string
}

// NewRegistry builds a registry from an explicit engine list.
func NewRegistry(list ...Engine) *Registry {
	r := &Registry{engines: make(map[string]Engine)}
	for _, e := range list {
		r.Register(e)
	}
	return r
}

// Register adds an engine under its name and aliases.
func (r *Registry) Register(e Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engines[strings.ToLower(e.Name())] = e
	for _, alias := range e.Aliases() {
		r.engines[strings.ToLower(alias)] = e
	}
	if !slices.Contains(r.names, e.Name()) {
		r.names = append(r.names, e.Name())
	}
}

// Lookup finds the engine for a language name or alias.
func (r *Registry) Lookup(language string) (Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.engines[strings.ToLower(strings.TrimSpace(language))]
	if !ok {
		return nil, fmt.Errorf("no engine for language %q (available: %s)", language, strings.Join(r.names, ", "))
	}
	return e, nil
}

// Languages returns the canonical names of all registered engines.
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.names)
}
