// Package compiler turns script source text into compile products.
package compiler

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/commands"
	"github.com/wehubfusion/Daedalus/pkg/engines"
	"github.com/wehubfusion/Daedalus/pkg/engines/javascript"
	"github.com/wehubfusion/Daedalus/pkg/engines/polyscript"
	derrors "github.com/wehubfusion/Daedalus/pkg/errors"
)

// CommandLanguage selects a built-in command instead of a script engine.
const CommandLanguage = "command"

// Options configures a Compiler.
type Options struct {
	// StagingDir receives the source files handed to the engines.
	StagingDir string
	Engines    *engines.Registry
	Commands   *commands.Registry
	// Injector supplies services to command constructors.
	Injector commands.Injector
	Logger   *zap.Logger
}

// Compiler compiles source text for a declared language.
type Compiler struct {
	stagingDir string
	engines    *engines.Registry
	commands   *commands.Registry
	injector   commands.Injector
	logger     *zap.Logger
}

// DefaultEngines returns the registry with the JavaScript, Risor and Starlark engines.
func DefaultEngines(config javascript.Config, logger *zap.Logger) (*engines.Registry, error) {
	js, err := javascript.New(config, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create javascript engine: %w", err)
	}
	return engines.NewRegistry(js, polyscript.Risor, polyscript.Starlark), nil
}

// New creates a compiler. Missing registries fall back to the defaults.
func New(opts Options) (*Compiler, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.StagingDir == "" {
		opts.StagingDir = filepath.Join(os.TempDir(), "daedalus-staging")
	}
	if opts.Engines == nil {
		registry, err := DefaultEngines(javascript.Config{}, opts.Logger)
		if err != nil {
			return nil, err
		}
		opts.Engines = registry
	}
	if opts.Commands == nil {
		opts.Commands = commands.Default()
	}
	return &Compiler{
		stagingDir: opts.StagingDir,
		engines:    opts.Engines,
		commands:   opts.Commands,
		injector:   opts.Injector,
		logger:     opts.Logger,
	}, nil
}

// Languages lists the accepted language names.
func (c *Compiler) Languages() []string {
	return append(c.engines.Languages(), CommandLanguage)
}

// Compile stages the source and compiles it for language.
func (c *Compiler) Compile(source, language string) (CompileProduct, error) {
	lang := strings.ToLower(strings.TrimSpace(language))
	if lang == CommandLanguage {
		return c.compileCommand(source)
	}

	engine, err := c.engines.Lookup(lang)
	if err != nil {
		return nil, derrors.Compilation(
			fmt.Sprintf("cannot compile %q source", language),
			fmt.Errorf("%w: %w", derrors.ErrUnsupportedLanguage, err),
		)
	}

	path, err := c.stage(source, engine.Extension())
	if err != nil {
		return nil, derrors.Compilation("failed to stage source", err)
	}

	program, err := engine.Compile(path)
	if err != nil {
		c.logger.Debug("compilation failed",
			zap.String("language", engine.Name()),
			zap.String("path", path),
			zap.Error(err))
		_ = os.Remove(path)
		return nil, derrors.Compilation(fmt.Sprintf("%s source does not compile", engine.Name()), err)
	}

	c.logger.Debug("compiled script",
		zap.String("language", engine.Name()),
		zap.String("path", path))

	return &ParsedScript{
		language:   engine.Name(),
		source:     source,
		stagedPath: path,
		program:    program,
	}, nil
}

// compileCommand resolves the command named on the first non-comment line.
func (c *Compiler) compileCommand(source string) (CompileProduct, error) {
	name := commandName(source)
	if name == "" {
		return nil, derrors.Compilation("command source names no command", nil)
	}
	d, err := c.commands.Lookup(name)
	if err != nil {
		return nil, derrors.Compilation("cannot resolve command", err)
	}
	return &CompiledCommand{descriptor: d, injector: c.injector}, nil
}

func (c *Compiler) stage(source, ext string) (string, error) {
	if err := os.MkdirAll(c.stagingDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	path := filepath.Join(c.stagingDir, uuid.NewString()+"."+ext)
	if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
		return "", fmt.Errorf("failed to write staging file: %w", err)
	}
	return path, nil
}

func commandName(source string) string {
	scanner := bufio.NewScanner(strings.NewReader(source))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}
		return line
	}
	return ""
}
