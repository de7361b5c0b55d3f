package node

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/table"
)

// StreamFunction processes the rows of one partition in order. Init acquires
// an engine scope and Finish releases it, whatever happened in between.
type StreamFunction struct {
	node      *Node
	partition int
	factory   *CellFactory
	release   func()
	logger    *zap.Logger
}

// newStreamFunction creates the stream function of a partition. The caller
// must call Finish after a successful Init and hold the node read lock.
func (n *Node) newStreamFunction(partition int) *StreamFunction {
	return &StreamFunction{
		node:      n,
		partition: partition,
		logger:    n.logger.With(zap.Int("partition", partition)),
	}
}

// Init acquires the engine scope and creates the partition's cell factory.
func (s *StreamFunction) Init(ctx context.Context) error {
	release, err := s.node.env.AcquireScope(ctx)
	if err != nil {
		return err
	}
	factory, err := s.node.newCellFactoryLocked()
	if err != nil {
		release()
		return err
	}
	s.release = release
	s.factory = factory
	s.logger.Debug("Partition started")
	return nil
}

// Compute produces the output row for an input row.
func (s *StreamFunction) Compute(ctx context.Context, row table.Row, spec *table.Spec) (table.Row, error) {
	if s.factory == nil {
		return table.Row{}, fmt.Errorf("partition %d not initialized", s.partition)
	}
	if err := ctx.Err(); err != nil {
		return table.Row{}, fmt.Errorf("execution canceled before row %s: %w", row.Key, err)
	}
	cells, err := s.factory.Cells(ctx, row, spec)
	if err != nil {
		return table.Row{}, fmt.Errorf("row %s: %w", row.Key, err)
	}
	return s.node.assemble(row, cells), nil
}

// Finish closes the cell factory and releases the engine scope.
func (s *StreamFunction) Finish() {
	if s.factory != nil {
		s.node.closeFactory(s.factory)
		s.factory = nil
	}
	if s.release != nil {
		s.release()
		s.release = nil
	}
	s.logger.Debug("Partition finished")
}
