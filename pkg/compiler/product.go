package compiler

import (
	"context"
	"fmt"
	"sync"

	"github.com/wehubfusion/Daedalus/pkg/commands"
	"github.com/wehubfusion/Daedalus/pkg/engines"
	derrors "github.com/wehubfusion/Daedalus/pkg/errors"
	"github.com/wehubfusion/Daedalus/pkg/module"
)

// Kind tells which variant a compile product is.
type Kind int

const (
	KindCommand Kind = iota
	KindScript
)

func (k Kind) String() string {
	if k == KindCommand {
		return "command"
	}
	return "script"
}

// CompileProduct is the result of compiling source text. It describes the
// shape of a module and creates fresh instances of it. The two variants are
// *CompiledCommand and *ParsedScript.
type CompileProduct interface {
	Language() string
	Kind() Kind
	// Info describes inputs and outputs. It may be computed on first use and is cached.
	Info() (*module.Info, error)
	Inputs() ([]module.Item, error)
	Outputs() ([]module.Item, error)
	// CreateModule returns an independent module instance.
	CreateModule() (module.Module, error)
	// ResetModule marks every item unresolved and drops output state so the
	// instance can run the next row.
	ResetModule(m module.Module)

	compileProduct()
}

// CompiledCommand is a compile product backed by a Go command.
type CompiledCommand struct {
	descriptor *commands.Descriptor
	injector   commands.Injector
}

func (c *CompiledCommand) compileProduct()  {}
func (c *CompiledCommand) Language() string { return CommandLanguage }
func (c *CompiledCommand) Kind() Kind       { return KindCommand }

// Descriptor returns the command descriptor.
func (c *CompiledCommand) Descriptor() *commands.Descriptor { return c.descriptor }

func (c *CompiledCommand) Info() (*module.Info, error) {
	return c.descriptor.Info()
}

func (c *CompiledCommand) Inputs() ([]module.Item, error) {
	info, err := c.Info()
	if err != nil {
		return nil, err
	}
	return info.Inputs(), nil
}

func (c *CompiledCommand) Outputs() ([]module.Item, error) {
	info, err := c.Info()
	if err != nil {
		return nil, err
	}
	return info.Outputs(), nil
}

func (c *CompiledCommand) CreateModule() (module.Module, error) {
	info, err := c.Info()
	if err != nil {
		return nil, derrors.ModuleCreation(c.descriptor.Name, err)
	}
	cmd, err := c.descriptor.New(c.injector)
	if err != nil {
		return nil, derrors.ModuleCreation(fmt.Sprintf("command %s", c.descriptor.Name), err)
	}
	return &CommandModule{Base: module.NewBase(info), command: cmd}, nil
}

func (c *CompiledCommand) ResetModule(m module.Module) {
	resetItems(m)
}

// CommandModule runs a Go command.
type CommandModule struct {
	*module.Base
	command commands.Command
}

func (m *CommandModule) Run(ctx context.Context) error {
	outputs, err := m.command.Run(ctx, declaredInputs(m))
	if err != nil {
		return err
	}
	for _, out := range m.Info().Outputs() {
		if v, ok := outputs[out.Name]; ok {
			m.SetOutput(out.Name, v)
			m.ResolveOutput(out.Name)
		}
	}
	return nil
}

// ParsedScript is a compile product backed by a script engine program.
type ParsedScript struct {
	language   string
	source     string
	stagedPath string
	program    engines.Program

	infoOnce sync.Once
	info     *module.Info
	infoErr  error
}

func (p *ParsedScript) compileProduct()  {}
func (p *ParsedScript) Language() string { return p.language }
func (p *ParsedScript) Kind() Kind       { return KindScript }

// StagedPath is the file the source was written to before compilation.
func (p *ParsedScript) StagedPath() string { return p.stagedPath }

func (p *ParsedScript) Info() (*module.Info, error) {
	p.infoOnce.Do(func() {
		p.info, p.infoErr = ParseParameters(p.language+" script", p.source)
		if p.infoErr != nil {
			p.infoErr = derrors.Compilation("invalid script parameters", p.infoErr)
		}
	})
	return p.info, p.infoErr
}

func (p *ParsedScript) Inputs() ([]module.Item, error) {
	info, err := p.Info()
	if err != nil {
		return nil, err
	}
	return info.Inputs(), nil
}

func (p *ParsedScript) Outputs() ([]module.Item, error) {
	info, err := p.Info()
	if err != nil {
		return nil, err
	}
	return info.Outputs(), nil
}

func (p *ParsedScript) CreateModule() (module.Module, error) {
	info, err := p.Info()
	if err != nil {
		return nil, derrors.ModuleCreation("script", err)
	}
	session, err := p.program.NewSession()
	if err != nil {
		return nil, derrors.ModuleCreation(fmt.Sprintf("%s session", p.language), err)
	}
	return &ScriptModule{Base: module.NewBase(info), session: session}, nil
}

// ResetModule also removes the output bindings from the engine session.
func (p *ParsedScript) ResetModule(m module.Module) {
	resetItems(m)
	sm, ok := m.(*ScriptModule)
	if !ok {
		return
	}
	outputs := sm.Info().Outputs()
	names := make([]string, 0, len(outputs))
	for _, out := range outputs {
		names = append(names, out.Name)
	}
	sm.session.ClearBindings(names)
}

// ScriptModule runs a script in its own engine session.
type ScriptModule struct {
	*module.Base
	session engines.Session
}

func (m *ScriptModule) Run(ctx context.Context) error {
	result, err := m.session.Eval(ctx, declaredInputs(m))
	if err != nil {
		return err
	}
	for _, out := range m.Info().Outputs() {
		if v, ok := m.session.Binding(out.Name); ok {
			m.SetOutput(out.Name, v)
			m.ResolveOutput(out.Name)
			continue
		}
		if out.Name == ResultOutput {
			m.SetOutput(out.Name, result)
			m.ResolveOutput(out.Name)
		}
	}
	return nil
}

// Binding exposes the engine session binding under name.
func (m *ScriptModule) Binding(name string) (any, bool) {
	return m.session.Binding(name)
}

// Close releases the engine session.
func (m *ScriptModule) Close() error {
	return m.session.Close()
}

// declaredInputs returns every declared input, nil for unresolved ones.
func declaredInputs(m module.Module) map[string]any {
	inputs := make(map[string]any)
	for _, in := range m.Info().Inputs() {
		var v any
		if m.IsInputResolved(in.Name) {
			v, _ = m.Input(in.Name)
		}
		inputs[in.Name] = v
	}
	return inputs
}

type itemResetter interface {
	ResetItems()
}

func resetItems(m module.Module) {
	if r, ok := m.(itemResetter); ok {
		r.ResetItems()
		return
	}
	for _, in := range m.Info().Inputs() {
		m.UnresolveInput(in.Name)
	}
	for _, out := range m.Info().Outputs() {
		m.UnresolveOutput(out.Name)
		m.SetOutput(out.Name, nil)
	}
}
