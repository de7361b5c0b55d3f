package node

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wehubfusion/Daedalus/pkg/compiler"
	"github.com/wehubfusion/Daedalus/pkg/concurrency"
	derrors "github.com/wehubfusion/Daedalus/pkg/errors"
	"github.com/wehubfusion/Daedalus/pkg/mapping"
	"github.com/wehubfusion/Daedalus/pkg/module"
	"github.com/wehubfusion/Daedalus/pkg/settings"
	"github.com/wehubfusion/Daedalus/pkg/table"
)

// ErrDisposed is returned by a node after Dispose.
var ErrDisposed = errors.New("node disposed")

// Node is a configured script step. It owns the compile product and the
// column mappings, and creates cell factories to process tables.
type Node struct {
	id       string
	env      *Environment
	cache    *ContextCache
	logger   *zap.Logger
	mappings *mapping.Service

	mu       sync.RWMutex
	settings settings.Settings
	product  compiler.CompileProduct
	executor module.Executor
	disposed bool
}

// New validates s, compiles its script and loads its mappings.
func New(id string, env *Environment, s *settings.Settings) (*Node, error) {
	if env == nil {
		return nil, fmt.Errorf("environment is required")
	}
	if s == nil {
		return nil, derrors.NewError(derrors.CodeInvalidSettings, "settings are required", nil)
	}
	cfg := *s
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := env.Logger.With(zap.String("node_id", id))
	n := &Node{
		id:       id,
		env:      env,
		logger:   logger,
		mappings: mapping.NewService(logger),
		settings: cfg,
	}

	product, err := n.compile(cfg.Script, cfg.Language)
	if err != nil {
		return nil, err
	}
	info, _ := product.Info()
	if _, err := NewStaticInputPreprocessor(info, cfg.StaticInputs, zap.NewNop()); err != nil {
		n.disposeProduct(product)
		return nil, err
	}
	n.product = product

	if !n.mappings.Deserialize(cfg.Mappings) {
		n.disposeProduct(product)
		return nil, derrors.NewError(derrors.CodeInvalidSettings, "malformed column mappings", nil)
	}

	n.executor = env.Executor
	if n.executor == nil {
		n.executor = module.NewRunner(cfg.ExecutionTimeout(), logger)
	}
	return n, nil
}

func (n *Node) compile(source, language string) (compiler.CompileProduct, error) {
	product, err := n.env.Compiler.Compile(source, language)
	if err != nil {
		return nil, err
	}
	// Declaration errors surface at configuration time.
	if _, err := product.Info(); err != nil {
		n.disposeProduct(product)
		return nil, err
	}
	return product, nil
}

// retainStaticInputs keeps the values that still name an input of info and
// parse for its type.
func (n *Node) retainStaticInputs(info *module.Info, values map[string]string) map[string]string {
	kept := make(map[string]string, len(values))
	for name, raw := range values {
		item, ok := info.Input(name)
		if !ok {
			n.logger.Info("Dropped static input no longer declared", zap.String("input", name))
			continue
		}
		if _, err := module.ParseValue(raw, item.Type); err != nil {
			n.logger.Warn("Dropped static input that does not fit the new type",
				zap.String("input", name),
				zap.String("type", string(item.Type)),
				zap.Error(err))
			continue
		}
		kept[name] = raw
	}
	return kept
}

// ID returns the node identity.
func (n *Node) ID() string { return n.id }

// Mappings returns the live column mappings.
func (n *Node) Mappings() *mapping.Service { return n.mappings }

// Product returns the current compile product.
func (n *Node) Product() compiler.CompileProduct {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.product
}

// Settings returns the current settings with the mappings serialized.
func (n *Node) Settings() *settings.Settings {
	n.mu.RLock()
	s := n.settings
	n.mu.RUnlock()
	s.Mappings = n.mappings.Serialize()
	s.StaticInputs = cloneStrings(s.StaticInputs)
	return &s
}

// SetScript recompiles the node. On success the old mappings are cleared
// since they may name inputs that no longer exist, and static inputs are kept
// only where the new script declares an input of a compatible type.
func (n *Node) SetScript(source, language string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.disposed {
		return ErrDisposed
	}
	product, err := n.compile(source, language)
	if err != nil {
		return err
	}
	info, _ := product.Info()
	n.disposeProduct(n.product)
	n.product = product
	n.settings.StaticInputs = n.retainStaticInputs(info, n.settings.StaticInputs)
	n.settings.Script = source
	n.settings.Language = language
	n.mappings.Clear()
	n.logger.Info("Script recompiled", zap.String("language", product.Language()))
	return nil
}

// SetStaticInput sets the manually entered value of an input.
func (n *Node) SetStaticInput(name, value string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	info, err := n.product.Info()
	if err != nil {
		return err
	}
	values := cloneStrings(n.settings.StaticInputs)
	values[name] = value
	if _, err := NewStaticInputPreprocessor(info, values, n.logger); err != nil {
		return err
	}
	n.settings.StaticInputs = values
	return nil
}

// RemoveStaticInput drops the manually entered value of an input.
func (n *Node) RemoveStaticInput(name string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.settings.StaticInputs[name]; !ok {
		return
	}
	values := cloneStrings(n.settings.StaticInputs)
	delete(values, name)
	n.settings.StaticInputs = values
}

// Configure derives the output table spec for an input spec.
func (n *Node) Configure(in *table.Spec) (*table.Spec, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.disposed {
		return nil, ErrDisposed
	}
	return n.configureLocked(in)
}

func (n *Node) configureLocked(in *table.Spec) (*table.Spec, error) {
	outputs, err := outputColumns(n.product, n.env.Adapters, n.settings.ColumnSuffix, n.logger)
	if err != nil {
		return nil, err
	}

	for _, m := range n.mappings.Mappings() {
		if !m.IsActive() {
			continue
		}
		if _, ok := in.FindColumnIndex(m.ColumnName()); !ok {
			n.logger.Warn("Mapped column not in input table",
				zap.String("column", m.ColumnName()),
				zap.String("input", m.ItemName()))
		}
	}

	out := &table.Spec{}
	if n.settings.ColumnCreationMode == settings.ModeAppend && in != nil {
		if err := out.Append(in.Columns...); err != nil {
			return nil, err
		}
	}
	for _, o := range outputs {
		if err := out.Append(o.column); err != nil {
			return nil, derrors.NewError(derrors.CodeInvalidSettings,
				"output column clashes with an input column, set a column suffix", err)
		}
	}
	return out, nil
}

func (n *Node) newCellFactoryLocked() (*CellFactory, error) {
	info, err := n.product.Info()
	if err != nil {
		return nil, err
	}
	static, err := NewStaticInputPreprocessor(info, n.settings.StaticInputs, n.logger)
	if err != nil {
		return nil, err
	}
	preprocessors := []Preprocessor{
		NewColumnInputPreprocessor(n.mappings, n.env.Adapters, n.logger),
		static,
		DefaultInputPreprocessor{},
	}
	return NewCellFactory(n.product, n.env.Adapters, n.executor, preprocessors, n.settings.ColumnSuffix, n.logger)
}

func (n *Node) assemble(row table.Row, cells []table.Cell) table.Row {
	if n.settings.ColumnCreationMode == settings.ModeNewTable {
		return table.Row{Key: row.Key, Cells: cells}
	}
	out := make([]table.Cell, 0, len(row.Cells)+len(cells))
	out = append(out, row.Cells...)
	out = append(out, cells...)
	return table.Row{Key: row.Key, Cells: out}
}

// Execute processes every row of in with a single module instance. The
// first failing row aborts the execution.
func (n *Node) Execute(ctx context.Context, in *table.Table) (*table.Table, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.disposed {
		return nil, ErrDisposed
	}

	outSpec, err := n.configureLocked(in.Spec)
	if err != nil {
		return nil, err
	}
	factory, err := n.newCellFactoryLocked()
	if err != nil {
		return nil, err
	}
	defer n.closeFactory(factory)

	rows := make([]table.Row, 0, len(in.Rows))
	for _, row := range in.Rows {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("execution canceled before row %s: %w", row.Key, err)
		}
		cells, err := factory.Cells(ctx, row, in.Spec)
		if err != nil {
			return nil, fmt.Errorf("row %s: %w", row.Key, err)
		}
		rows = append(rows, n.assemble(row, cells))
	}

	n.logger.Info("Table processed", zap.Int("rows", len(rows)))
	return &table.Table{Spec: outSpec, Rows: rows}, nil
}

// ExecuteStreaming splits the rows of in into contiguous partitions and
// processes them concurrently, each with its own stream function. Output
// rows keep the input order. A partition count of zero picks a default.
func (n *Node) ExecuteStreaming(ctx context.Context, in *table.Table, partitions int) (*table.Table, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.disposed {
		return nil, ErrDisposed
	}

	outSpec, err := n.configureLocked(in.Spec)
	if err != nil {
		return nil, err
	}
	if partitions <= 0 {
		partitions = concurrency.DefaultPartitions()
	}
	partitions = max(min(partitions, len(in.Rows)), 1)

	rows := make([]table.Row, len(in.Rows))
	g, gctx := errgroup.WithContext(ctx)
	for p := range partitions {
		lo, hi := partitionBounds(len(in.Rows), partitions, p)
		g.Go(func() error {
			sf := n.newStreamFunction(p)
			if err := sf.Init(gctx); err != nil {
				return err
			}
			defer sf.Finish()
			for i := lo; i < hi; i++ {
				out, err := sf.Compute(gctx, in.Rows[i], in.Spec)
				if err != nil {
					return err
				}
				rows[i] = out
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	n.logger.Info("Table streamed",
		zap.Int("rows", len(rows)),
		zap.Int("partitions", partitions))
	return &table.Table{Spec: outSpec, Rows: rows}, nil
}

// partitionBounds returns the row range [lo, hi) of partition p.
func partitionBounds(total, partitions, p int) (int, int) {
	size := total / partitions
	rem := total % partitions
	lo := p*size + min(p, rem)
	hi := lo + size
	if p < rem {
		hi++
	}
	return lo, hi
}

// Dispose releases the compile product and evicts the node environment from
// its cache. The node cannot be used afterwards.
func (n *Node) Dispose() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.disposed {
		return
	}
	n.disposed = true
	n.disposeProduct(n.product)
	n.mappings.Clear()
	if n.cache != nil {
		n.cache.Evict(n.id)
	}
	n.logger.Debug("Node disposed")
}

func (n *Node) disposeProduct(p compiler.CompileProduct) {
	script, ok := p.(*compiler.ParsedScript)
	if !ok {
		return
	}
	if err := os.Remove(script.StagedPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		n.logger.Warn("Failed to remove staged source",
			zap.String("path", script.StagedPath()),
			zap.Error(err))
	}
}

func (n *Node) closeFactory(f *CellFactory) {
	if err := f.Close(); err != nil {
		n.logger.Warn("Failed to close module instance", zap.Error(err))
	}
}

func cloneStrings(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
