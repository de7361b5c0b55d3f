// Package javascript is the goja-backed JavaScript engine.
package javascript

import (
	"context"
	"fmt"
	"os"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/engines"
)

var _ engines.Engine = (*Engine)(nil)

// Engine compiles JavaScript with goja. Every session gets its own sandboxed runtime.
//
// Scripts read their inputs as globals and publish outputs by assigning
// globals. Clearing a session's bindings discards its runtime, so top-level
// let and const declarations start fresh on every row.
type Engine struct {
	config    Config
	logger    *zap.Logger
	utilities *UtilityRegistry
}

// New creates a JavaScript engine.
func New(config Config, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		config:    config,
		logger:    logger,
		utilities: NewUtilityRegistry(logger.Named("console")),
	}, nil
}

func (e *Engine) Name() string      { return "javascript" }
func (e *Engine) Aliases() []string { return []string{"js", "ecmascript"} }
func (e *Engine) Extension() string { return "js" }

// Compile parses the script at path into a reusable program.
func (e *Engine) Compile(path string) (engines.Program, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	prg, err := goja.Compile(path, string(src), false)
	if err != nil {
		return nil, fromGojaError(err)
	}
	return &program{engine: e, prg: prg}, nil
}

type program struct {
	engine *Engine
	prg    *goja.Program
}

func (p *program) NewSession() (engines.Session, error) {
	s := &session{program: p}
	vm, err := p.newRuntime()
	if err != nil {
		return nil, err
	}
	s.vm = vm
	return s, nil
}

func (p *program) newRuntime() (*goja.Runtime, error) {
	vm := goja.New()
	if err := restrict(vm, &p.engine.config); err != nil {
		return nil, err
	}
	if err := p.engine.utilities.RegisterEnabled(vm, &p.engine.config); err != nil {
		return nil, err
	}
	return vm, nil
}

// session owns one runtime at a time. A nil vm means the previous one was
// discarded and the next Eval builds a new one.
type session struct {
	program *program
	vm      *goja.Runtime
}

// Eval binds inputs as globals and runs the program. The runtime is
// interrupted when ctx is done.
func (s *session) Eval(ctx context.Context, inputs map[string]any) (any, error) {
	if s.vm == nil {
		vm, err := s.program.newRuntime()
		if err != nil {
			return nil, err
		}
		s.vm = vm
	}
	vm := s.vm

	for name, v := range inputs {
		if err := vm.Set(name, v); err != nil {
			return nil, fmt.Errorf("failed to set input %s: %w", name, err)
		}
	}

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	value, err := vm.RunProgram(s.program.prg)
	close(done)
	<-stopped
	vm.ClearInterrupt()

	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ctx.Err(), fromGojaError(err))
		}
		return nil, fromGojaError(err)
	}
	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return nil, nil
	}
	return value.Export(), nil
}

func (s *session) Binding(name string) (any, bool) {
	if s.vm == nil {
		return nil, false
	}
	v := s.vm.Get(name)
	if v == nil || goja.IsUndefined(v) {
		return nil, false
	}
	return v.Export(), true
}

// ClearBindings discards the runtime. goja cannot drop lexical declarations
// from a live runtime, so every binding goes, not only the named ones.
func (s *session) ClearBindings([]string) {
	s.vm = nil
}

func (s *session) Close() error {
	s.vm = nil
	return nil
}
