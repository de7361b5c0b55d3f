package node

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/adapter"
	"github.com/wehubfusion/Daedalus/pkg/compiler"
	derrors "github.com/wehubfusion/Daedalus/pkg/errors"
	"github.com/wehubfusion/Daedalus/pkg/module"
	"github.com/wehubfusion/Daedalus/pkg/table"
)

type harvestedOutput struct {
	item    module.Item
	adapter adapter.OutputAdapter
	column  table.ColumnSpec
}

// outputColumns derives one column per output that has an output adapter.
// The generic result output of a script is dropped silently when it has no
// adapter; every other dropped output is logged.
func outputColumns(product compiler.CompileProduct, adapters *adapter.Registry, suffix string, logger *zap.Logger) ([]harvestedOutput, error) {
	outputs, err := product.Outputs()
	if err != nil {
		return nil, err
	}
	harvested := make([]harvestedOutput, 0, len(outputs))
	for _, out := range outputs {
		a, ok := adapters.FindOutput(out.Type)
		if !ok {
			if out.Name == compiler.ResultOutput && out.Type == module.TypeUnspecified {
				continue
			}
			logger.Warn("Output has no table representation and is skipped",
				zap.String("output", out.Name),
				zap.String("type", string(out.Type)))
			continue
		}
		harvested = append(harvested, harvestedOutput{
			item:    out,
			adapter: a,
			column:  table.ColumnSpec{Name: out.Name + suffix, Type: a.To},
		})
	}
	return harvested, nil
}

// CellFactory turns input rows into output cells with one module instance.
// It is not safe for concurrent use; every partition owns its own factory.
type CellFactory struct {
	product       compiler.CompileProduct
	module        module.Module
	executor      module.Executor
	preprocessors []Preprocessor
	outputs       []harvestedOutput
	logger        *zap.Logger
	tracer        trace.Tracer
}

// NewCellFactory creates the module instance and derives the output columns.
func NewCellFactory(product compiler.CompileProduct, adapters *adapter.Registry, executor module.Executor,
	preprocessors []Preprocessor, suffix string, logger *zap.Logger) (*CellFactory, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	outputs, err := outputColumns(product, adapters, suffix, logger)
	if err != nil {
		return nil, err
	}
	m, err := product.CreateModule()
	if err != nil {
		return nil, err
	}
	return &CellFactory{
		product:       product,
		module:        m,
		executor:      executor,
		preprocessors: preprocessors,
		outputs:       outputs,
		logger:        logger,
		tracer:        otel.Tracer("daedalus/node"),
	}, nil
}

// ColumnSpecs returns the output columns in output declaration order.
func (f *CellFactory) ColumnSpecs() []table.ColumnSpec {
	specs := make([]table.ColumnSpec, len(f.outputs))
	for i, out := range f.outputs {
		specs[i] = out.column
	}
	return specs
}

// Module returns the instance the factory runs.
func (f *CellFactory) Module() module.Module {
	return f.module
}

// Cells resolves the inputs from row, runs the module and converts its
// outputs, one cell per output column. The module is reset before returning
// on every path.
func (f *CellFactory) Cells(ctx context.Context, row table.Row, spec *table.Spec) ([]table.Cell, error) {
	if err := f.replacePoisoned(); err != nil {
		return nil, err
	}
	ctx, span := f.tracer.Start(ctx, "node.cells",
		trace.WithAttributes(
			attribute.String("row.key", row.Key),
			attribute.String("module.language", f.product.Language()),
			attribute.String("module.instance", f.module.ID()),
		))
	defer span.End()
	defer f.reset()

	cells, err := f.cells(ctx, row, spec)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetStatus(codes.Ok, "Row processed")
	return cells, nil
}

func (f *CellFactory) cells(ctx context.Context, row table.Row, spec *table.Spec) ([]table.Cell, error) {
	for _, p := range f.preprocessors {
		if err := p.Process(ctx, f.module, row, spec); err != nil {
			return nil, err
		}
	}

	if err := f.executor.Run(ctx, f.module); err != nil {
		return nil, err
	}

	cells := make([]table.Cell, len(f.outputs))
	for i, out := range f.outputs {
		v, ok := f.module.Output(out.item.Name)
		if !ok || !f.module.IsOutputResolved(out.item.Name) {
			cells[i] = table.Missing
			continue
		}
		cell, err := out.adapter.Convert(v)
		if err != nil {
			return nil, derrors.Execution(fmt.Sprintf("cannot convert output %q", out.item.Name), err)
		}
		cells[i] = cell
	}
	return cells, nil
}

// reset prepares the module for the next row. A poisoned module may still be
// running and is left alone.
func (f *CellFactory) reset() {
	if module.IsPoisoned(f.module) {
		return
	}
	f.product.ResetModule(f.module)
}

// replacePoisoned swaps an abandoned module for a fresh instance.
func (f *CellFactory) replacePoisoned() error {
	if !module.IsPoisoned(f.module) {
		return nil
	}
	m, err := f.product.CreateModule()
	if err != nil {
		return err
	}
	f.logger.Warn("Replaced abandoned module instance",
		zap.String("abandoned", f.module.ID()),
		zap.String("instance", m.ID()))
	f.module = m
	return nil
}

// Close releases the module instance. A poisoned instance is not closed
// since its engine may still be in use.
func (f *CellFactory) Close() error {
	if module.IsPoisoned(f.module) {
		return nil
	}
	if c, ok := f.module.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
