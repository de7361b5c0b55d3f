package node

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/adapter"
	derrors "github.com/wehubfusion/Daedalus/pkg/errors"
	"github.com/wehubfusion/Daedalus/pkg/mapping"
	"github.com/wehubfusion/Daedalus/pkg/module"
	"github.com/wehubfusion/Daedalus/pkg/table"
)

// Preprocessor resolves module inputs before a row is executed. A returned
// error cancels the row.
type Preprocessor interface {
	Process(ctx context.Context, m module.Module, row table.Row, spec *table.Spec) error
}

// ColumnInputPreprocessor fills inputs from the cells of their mapped columns.
type ColumnInputPreprocessor struct {
	mappings *mapping.Service
	adapters *adapter.Registry
	logger   *zap.Logger
}

func NewColumnInputPreprocessor(mappings *mapping.Service, adapters *adapter.Registry, logger *zap.Logger) *ColumnInputPreprocessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ColumnInputPreprocessor{mappings: mappings, adapters: adapters, logger: logger}
}

// Process resolves every unresolved input with an active mapping to a column
// of spec. Inputs that are already resolved keep their value. Unmapped,
// inactive, drifted and missing cells leave the input unresolved. A cell type
// without an adapter to the declared input type is fatal.
func (p *ColumnInputPreprocessor) Process(_ context.Context, m module.Module, row table.Row, spec *table.Spec) error {
	for _, in := range m.Info().Inputs() {
		log := p.logger.With(zap.String("input", in.Name), zap.String("row", row.Key))

		if m.IsInputResolved(in.Name) {
			log.Warn("Input already resolved, keeping existing value")
			continue
		}

		mp, ok := p.mappings.GetMappingForModuleItemName(in.Name)
		if !ok {
			log.Debug("No column mapped to input")
			continue
		}
		if !mp.IsActive() {
			log.Debug("Mapping inactive", zap.String("column", mp.ColumnName()))
			continue
		}

		idx, ok := spec.FindColumnIndex(mp.ColumnName())
		if !ok {
			err := derrors.ColumnResolution(fmt.Sprintf("column %q not in table", mp.ColumnName()), nil)
			log.Debug("Mapped column cannot be resolved", zap.Error(err))
			continue
		}

		cell := row.Cell(idx)
		if cell.IsMissing() {
			log.Debug("Missing cell", zap.String("column", mp.ColumnName()))
			continue
		}

		a, ok := p.adapters.FindInput(cell.Type(), in.Type)
		if !ok {
			return derrors.MissingAdapter(in.Name, string(cell.Type()), string(in.Type))
		}
		v, err := a.Convert(cell)
		if err != nil {
			return derrors.Execution(fmt.Sprintf("cannot convert column %q for input %q", mp.ColumnName(), in.Name), err)
		}

		m.SetInput(in.Name, v)
		m.ResolveInput(in.Name)
	}
	return nil
}

// StaticInputPreprocessor fills inputs from manually entered values.
type StaticInputPreprocessor struct {
	values map[string]any
}

// NewStaticInputPreprocessor converts the textual values to the declared
// input types of info. Values for unknown inputs are ignored.
func NewStaticInputPreprocessor(info *module.Info, raw map[string]string, logger *zap.Logger) (*StaticInputPreprocessor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	values := make(map[string]any, len(raw))
	for name, text := range raw {
		in, ok := info.Input(name)
		if !ok {
			logger.Warn("Static value for unknown input ignored", zap.String("input", name))
			continue
		}
		v, err := module.ParseValue(text, in.Type)
		if err != nil {
			return nil, derrors.NewError(derrors.CodeInvalidSettings,
				fmt.Sprintf("static value of input %q is not a valid %s", name, in.Type), err)
		}
		values[name] = v
	}
	return &StaticInputPreprocessor{values: values}, nil
}

func (p *StaticInputPreprocessor) Process(_ context.Context, m module.Module, _ table.Row, _ *table.Spec) error {
	for name, v := range p.values {
		if m.IsInputResolved(name) {
			continue
		}
		m.SetInput(name, v)
		m.ResolveInput(name)
	}
	return nil
}

// DefaultInputPreprocessor fills unresolved inputs with their declared defaults.
type DefaultInputPreprocessor struct{}

func (DefaultInputPreprocessor) Process(_ context.Context, m module.Module, _ table.Row, _ *table.Spec) error {
	for _, in := range m.Info().Inputs() {
		if in.Default == nil || m.IsInputResolved(in.Name) {
			continue
		}
		m.SetInput(in.Name, in.Default)
		m.ResolveInput(in.Name)
	}
	return nil
}
