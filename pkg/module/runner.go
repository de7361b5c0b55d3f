package module

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	derrors "github.com/wehubfusion/Daedalus/pkg/errors"
)

// Executor runs a module instance to completion.
type Executor interface {
	Run(ctx context.Context, m Module) error
}

// DefaultGracePeriod is how long Run waits for a canceled module to stop.
const DefaultGracePeriod = 5 * time.Second

// ErrAbandoned is returned when a canceled module did not stop within the
// grace period. The instance is poisoned and must not be reset or reused.
var ErrAbandoned = errors.New("module did not stop after cancellation")

// Runner is the module execution service. Run submits execution and blocks until it completes.
type Runner struct {
	timeout     time.Duration
	gracePeriod time.Duration
	logger      *zap.Logger
}

// NewRunner creates a runner. A zero timeout means the caller's context is the only bound.
func NewRunner(timeout time.Duration, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{timeout: timeout, gracePeriod: DefaultGracePeriod, logger: logger}
}

// WithGracePeriod sets how long Run waits for a canceled module to return.
func (r *Runner) WithGracePeriod(d time.Duration) *Runner {
	r.gracePeriod = d
	return r
}

// Run checks that every required input is resolved, then executes the module
// and waits for the result.
func (r *Runner) Run(ctx context.Context, m Module) error {
	for _, in := range m.Info().Inputs() {
		if in.Required && !m.IsInputResolved(in.Name) {
			return derrors.Execution(
				fmt.Sprintf("module %s", m.Info().Name),
				fmt.Errorf("%w: %s", derrors.ErrUnresolvedInput, in.Name),
			)
		}
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	done := make(chan error, 1)
	start := time.Now()
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- fmt.Errorf("panic during execution: %v", rec)
			}
		}()
		done <- m.Run(ctx)
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = r.awaitCanceled(ctx, m, done)
	}

	r.logger.Debug("module executed",
		zap.String("module", m.Info().Name),
		zap.String("instance", m.ID()),
		zap.Duration("duration", time.Since(start)),
		zap.Bool("success", err == nil))

	if err != nil {
		return derrors.Execution(fmt.Sprintf("module %s", m.Info().Name), err)
	}
	return nil
}

// awaitCanceled waits for the module goroutine after ctx ended. Engines stop
// on cancellation, so the instance is only touched again once Run returned.
func (r *Runner) awaitCanceled(ctx context.Context, m Module, done <-chan error) error {
	timer := time.NewTimer(r.gracePeriod)
	defer timer.Stop()
	select {
	case <-done:
		return ctx.Err()
	case <-timer.C:
		Poison(m)
		r.logger.Warn("Module abandoned after cancellation",
			zap.String("module", m.Info().Name),
			zap.String("instance", m.ID()),
			zap.Duration("grace_period", r.gracePeriod))
		return fmt.Errorf("%w: %w", ErrAbandoned, ctx.Err())
	}
}
