package module

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "github.com/wehubfusion/Daedalus/pkg/errors"
)

type funcModule struct {
	*Base
	run func(ctx context.Context, b *Base) error
}

func (f *funcModule) Run(ctx context.Context) error { return f.run(ctx, f.Base) }

func newFuncModule(t *testing.T, run func(ctx context.Context, b *Base) error) *funcModule {
	t.Helper()
	info, err := NewInfo("area",
		Item{Name: "width", Type: TypeInteger, Direction: Input, Required: true},
		Item{Name: "height", Type: TypeInteger, Direction: Input},
		Item{Name: "area", Type: TypeInteger, Direction: Output},
	)
	require.NoError(t, err)
	return &funcModule{Base: NewBase(info), run: run}
}

func TestParseItemType(t *testing.T) {
	tests := []struct {
		in      string
		want    ItemType
		wantErr bool
	}{
		{in: "int", want: TypeInteger},
		{in: "Integer", want: TypeInteger},
		{in: "long", want: TypeLong},
		{in: "Double", want: TypeDouble},
		{in: "boolean", want: TypeBoolean},
		{in: "String", want: TypeString},
		{in: "Object", want: TypeUnspecified},
		{in: "Date", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseItemType(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInfo_DuplicateNames(t *testing.T) {
	_, err := NewInfo("m",
		Item{Name: "x", Direction: Input},
		Item{Name: "x", Direction: Input},
	)
	assert.Error(t, err)

	// the same name in both directions is allowed
	info, err := NewInfo("m",
		Item{Name: "x", Direction: Input},
		Item{Name: "x", Direction: Output},
	)
	require.NoError(t, err)
	assert.Len(t, info.Inputs(), 1)
	assert.Len(t, info.Outputs(), 1)
}

func TestBase_ResolveAndReset(t *testing.T) {
	m := newFuncModule(t, nil)

	m.SetInput("width", int32(3))
	m.ResolveInput("width")
	m.SetOutput("area", int32(9))
	m.ResolveOutput("area")

	assert.True(t, m.IsInputResolved("width"))
	assert.Equal(t, map[string]any{"width": int32(3)}, m.InputValues())

	m.ResetItems()

	assert.False(t, m.IsInputResolved("width"))
	assert.False(t, m.IsOutputResolved("area"))
	_, ok := m.Output("area")
	assert.False(t, ok)
	assert.Empty(t, m.InputValues())
}

func TestRunner_Run(t *testing.T) {
	runner := NewRunner(0, nil)

	m := newFuncModule(t, func(_ context.Context, b *Base) error {
		w, _ := b.Input("width")
		b.SetOutput("area", w.(int32)*w.(int32))
		b.ResolveOutput("area")
		return nil
	})
	m.SetInput("width", int32(4))
	m.ResolveInput("width")

	require.NoError(t, runner.Run(t.Context(), m))
	got, _ := m.Output("area")
	assert.Equal(t, int32(16), got)
}

func TestRunner_UnresolvedRequiredInput(t *testing.T) {
	called := false
	m := newFuncModule(t, func(context.Context, *Base) error {
		called = true
		return nil
	})

	err := NewRunner(0, nil).Run(t.Context(), m)
	require.Error(t, err)
	assert.ErrorIs(t, err, derrors.ErrExecution)
	assert.ErrorIs(t, err, derrors.ErrUnresolvedInput)
	assert.False(t, called)
}

func TestRunner_Failures(t *testing.T) {
	tests := []struct {
		name    string
		timeout time.Duration
		run     func(ctx context.Context, b *Base) error
		wantErr error
	}{
		{
			name:    "module error",
			run:     func(context.Context, *Base) error { return errors.New("boom") },
			wantErr: derrors.ErrExecution,
		},
		{
			name:    "panic",
			run:     func(context.Context, *Base) error { panic("bad state") },
			wantErr: derrors.ErrExecution,
		},
		{
			name:    "timeout",
			timeout: 20 * time.Millisecond,
			run: func(ctx context.Context, _ *Base) error {
				<-ctx.Done()
				time.Sleep(50 * time.Millisecond)
				return nil
			},
			wantErr: context.DeadlineExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newFuncModule(t, tt.run)
			m.SetInput("width", int32(1))
			m.ResolveInput("width")

			err := NewRunner(tt.timeout, nil).Run(t.Context(), m)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRunner_WaitsForCanceledModule(t *testing.T) {
	var returned atomic.Bool
	m := newFuncModule(t, func(ctx context.Context, _ *Base) error {
		<-ctx.Done()
		time.Sleep(30 * time.Millisecond)
		returned.Store(true)
		return ctx.Err()
	})
	m.SetInput("width", int32(1))
	m.ResolveInput("width")

	err := NewRunner(10*time.Millisecond, nil).Run(t.Context(), m)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, returned.Load(), "Run must not return while the module is still running")
	assert.False(t, IsPoisoned(m))
}

func TestRunner_AbandonsModuleThatIgnoresCancellation(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	m := newFuncModule(t, func(context.Context, *Base) error {
		<-release
		return nil
	})
	m.SetInput("width", int32(1))
	m.ResolveInput("width")

	err := NewRunner(10*time.Millisecond, nil).WithGracePeriod(10*time.Millisecond).Run(t.Context(), m)
	require.Error(t, err)
	assert.ErrorIs(t, err, derrors.ErrExecution)
	assert.ErrorIs(t, err, ErrAbandoned)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, IsPoisoned(m))
}
