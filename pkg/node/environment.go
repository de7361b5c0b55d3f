// Package node runs a compiled script over the rows of a table.
package node

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/adapter"
	"github.com/wehubfusion/Daedalus/pkg/commands"
	"github.com/wehubfusion/Daedalus/pkg/compiler"
	"github.com/wehubfusion/Daedalus/pkg/concurrency"
	"github.com/wehubfusion/Daedalus/pkg/module"
)

// EnvironmentOptions configures an Environment. Nil fields get defaults.
type EnvironmentOptions struct {
	Logger   *zap.Logger
	Adapters *adapter.Registry
	Compiler *compiler.Compiler
	// Executor overrides the per-node module runner.
	Executor module.Executor
	// Services are handed to command constructors.
	Services commands.Services
	// MaxScopes bounds the engine scopes held by streaming partitions.
	MaxScopes int
}

// Environment carries the shared collaborators of the nodes that use it.
// It is created once and passed to every node explicitly.
type Environment struct {
	Logger   *zap.Logger
	Adapters *adapter.Registry
	Compiler *compiler.Compiler
	Executor module.Executor
	Services commands.Services

	scopes *concurrency.Limiter
}

// NewEnvironment builds an environment.
func NewEnvironment(opts EnvironmentOptions) (*Environment, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Adapters == nil {
		opts.Adapters = adapter.Default()
	}
	if opts.Services == nil {
		opts.Services = commands.Services{}
	}
	if opts.Compiler == nil {
		c, err := compiler.New(compiler.Options{
			Injector: opts.Services,
			Logger:   opts.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create compiler: %w", err)
		}
		opts.Compiler = c
	}
	if opts.MaxScopes <= 0 {
		opts.MaxScopes = concurrency.DefaultPartitions()
	}

	return &Environment{
		Logger:   opts.Logger,
		Adapters: opts.Adapters,
		Compiler: opts.Compiler,
		Executor: opts.Executor,
		Services: opts.Services,
		scopes:   concurrency.NewLimiter(opts.MaxScopes),
	}, nil
}

// AcquireScope blocks until an engine scope is available. The returned
// release function may be called any number of times.
func (e *Environment) AcquireScope(ctx context.Context) (func(), error) {
	if err := e.scopes.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("failed to acquire engine scope: %w", err)
	}
	var once sync.Once
	return func() { once.Do(e.scopes.Release) }, nil
}

// ActiveScopes returns the number of scopes currently held.
func (e *Environment) ActiveScopes() int64 {
	return e.scopes.CurrentActive()
}
