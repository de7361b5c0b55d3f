// Package polyscript provides Risor and Starlark engines built on go-polyscript.
package polyscript

import (
	"context"
	"fmt"
	"maps"
	"path/filepath"

	"github.com/robbyt/go-polyscript/engines/risor"
	"github.com/robbyt/go-polyscript/engines/starlark"
	"github.com/robbyt/go-polyscript/platform"
	"github.com/robbyt/go-polyscript/platform/constants"
	"github.com/robbyt/go-polyscript/platform/data"
	"github.com/robbyt/go-polyscript/platform/script/loader"

	"github.com/wehubfusion/Daedalus/pkg/engines"
)

// InputsKey is the ctx key under which scripts find their inputs.
const InputsKey = "inputs"

var (
	_ engines.Engine = (*Engine)(nil)

	// Risor evaluates the value of the final expression. Inputs are read with
	// ctx.get("inputs", {}).get("name").
	Risor = &Engine{
		name:      "risor",
		extension: "risor",
		build: func(ldr loader.Loader) (platform.Evaluator, error) {
			return risor.FromRisorLoader(nil, ldr)
		},
	}

	// Starlark returns whatever the script assigns to the underscore variable.
	Starlark = &Engine{
		name:      "starlark",
		aliases:   []string{"star", "skylark"},
		extension: "star",
		build: func(ldr loader.Loader) (platform.Evaluator, error) {
			return starlark.FromStarlarkLoader(nil, ldr)
		},
	}
)

// Engine wraps one go-polyscript evaluator family. A script result that is a
// map provides the output bindings, one per key.
type Engine struct {
	name      string
	aliases   []string
	extension string
	build     func(loader.Loader) (platform.Evaluator, error)
}

func (e *Engine) Name() string      { return e.name }
func (e *Engine) Aliases() []string { return e.aliases }
func (e *Engine) Extension() string { return e.extension }

// Compile loads the script from disk and compiles it eagerly.
func (e *Engine) Compile(path string) (engines.Program, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve script path: %w", err)
	}
	ldr, err := loader.NewFromDisk(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to create loader: %w", err)
	}
	evaluator, err := e.build(ldr)
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s script: %w", e.name, err)
	}
	return &program{evaluator: evaluator}, nil
}

type program struct {
	evaluator platform.Evaluator
}

func (p *program) NewSession() (engines.Session, error) {
	return &session{evaluator: p.evaluator, bindings: make(map[string]any)}, nil
}

type session struct {
	evaluator platform.Evaluator
	bindings  map[string]any
}

func (s *session) Eval(ctx context.Context, inputs map[string]any) (any, error) {
	if inputs == nil {
		inputs = map[string]any{}
	}
	provider := data.NewContextProvider(constants.EvalData)
	enrichedCtx, err := provider.AddDataToContext(ctx, map[string]any{InputsKey: inputs})
	if err != nil {
		return nil, fmt.Errorf("failed to add inputs to context: %w", err)
	}

	result, err := s.evaluator.Eval(enrichedCtx)
	if err != nil {
		return nil, err
	}
	value := result.Interface()
	if out, ok := value.(map[string]any); ok {
		maps.Copy(s.bindings, out)
	}
	return value, nil
}

func (s *session) Binding(name string) (any, bool) {
	v, ok := s.bindings[name]
	return v, ok
}

func (s *session) ClearBindings(names []string) {
	for _, name := range names {
		delete(s.bindings, name)
	}
}

func (s *session) Close() error {
	clear(s.bindings)
	return nil
}
