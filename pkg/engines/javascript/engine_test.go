package javascript

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/engines"
)

func compileSource(t *testing.T, e *Engine, src string) (engines.Program, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.js")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return e.Compile(path)
}

func newEngine(t *testing.T, config Config) *Engine {
	t.Helper()
	e, err := New(config, zap.NewNop())
	require.NoError(t, err)
	return e
}

func TestConfig_Validate(t *testing.T) {
	c := Config{SecurityLevel: "open"}
	assert.Error(t, c.Validate())

	c = Config{}
	c.ApplyDefaults()
	require.NoError(t, c.Validate())
	assert.Equal(t, SecurityLevelStandard, c.SecurityLevel)
}

func TestEngine_CompileSyntaxError(t *testing.T) {
	_, err := compileSource(t, newEngine(t, Config{}), "var x = ;")
	require.Error(t, err)

	var jsErr *JSError
	require.ErrorAs(t, err, &jsErr)
	assert.Equal(t, ErrorTypeSyntax, jsErr.Type)
}

func TestSession_EvalAndBindings(t *testing.T) {
	prg, err := compileSource(t, newEngine(t, Config{}), `
		area = width * height;
		label = "w" + width;
		area + 1;
	`)
	require.NoError(t, err)

	s, err := prg.NewSession()
	require.NoError(t, err)
	defer s.Close()

	result, err := s.Eval(t.Context(), map[string]any{"width": int32(3), "height": int64(4)})
	require.NoError(t, err)
	assert.Equal(t, int64(13), result)

	area, ok := s.Binding("area")
	require.True(t, ok)
	assert.Equal(t, int64(12), area)

	label, ok := s.Binding("label")
	require.True(t, ok)
	assert.Equal(t, "w3", label)

	_, ok = s.Binding("missing")
	assert.False(t, ok)
}

func TestSession_ClearBindings(t *testing.T) {
	prg, err := compileSource(t, newEngine(t, Config{}), `
		var declared = 1;
		assigned = 2;
	`)
	require.NoError(t, err)

	s, err := prg.NewSession()
	require.NoError(t, err)

	_, err = s.Eval(t.Context(), nil)
	require.NoError(t, err)

	s.ClearBindings([]string{"declared", "assigned"})

	_, ok := s.Binding("declared")
	assert.False(t, ok)
	_, ok = s.Binding("assigned")
	assert.False(t, ok)

	// the program runs again on a fresh runtime
	_, err = s.Eval(t.Context(), nil)
	require.NoError(t, err)
	v, ok := s.Binding("assigned")
	require.True(t, ok)
	assert.Equal(t, int64(2), v)
}

func TestSession_LexicalDeclarationsAcrossRows(t *testing.T) {
	prg, err := compileSource(t, newEngine(t, Config{}), `
		const twice = width * 2;
		let label = "w" + width;
		area = twice;
		label;
	`)
	require.NoError(t, err)

	s, err := prg.NewSession()
	require.NoError(t, err)

	for _, width := range []int64{1, 2, 3} {
		result, err := s.Eval(t.Context(), map[string]any{"width": width})
		require.NoError(t, err, "width %d", width)
		assert.Equal(t, fmt.Sprintf("w%d", width), result)

		area, ok := s.Binding("area")
		require.True(t, ok)
		assert.Equal(t, width*2, area)

		s.ClearBindings([]string{"area"})
	}
}

func TestSession_RuntimeError(t *testing.T) {
	prg, err := compileSource(t, newEngine(t, Config{}), `throw new Error("bad row");`)
	require.NoError(t, err)

	s, err := prg.NewSession()
	require.NoError(t, err)

	_, err = s.Eval(t.Context(), nil)
	require.Error(t, err)
	var jsErr *JSError
	require.ErrorAs(t, err, &jsErr)
	assert.Equal(t, ErrorTypeRuntime, jsErr.Type)
	assert.Contains(t, jsErr.Message, "bad row")
}

func TestSession_Interrupt(t *testing.T) {
	prg, err := compileSource(t, newEngine(t, Config{}), `while (true) {}`)
	require.NoError(t, err)

	s, err := prg.NewSession()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	_, err = s.Eval(ctx, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSandbox_StrictEval(t *testing.T) {
	prg, err := compileSource(t, newEngine(t, Config{SecurityLevel: SecurityLevelStrict}), `eval("1 + 1")`)
	require.NoError(t, err)

	s, err := prg.NewSession()
	require.NoError(t, err)

	_, err = s.Eval(t.Context(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "eval is not allowed")
}

func TestSandbox_NodeGlobalsRemoved(t *testing.T) {
	prg, err := compileSource(t, newEngine(t, Config{}), `typeof require + "," + typeof process`)
	require.NoError(t, err)

	s, err := prg.NewSession()
	require.NoError(t, err)

	result, err := s.Eval(t.Context(), nil)
	require.NoError(t, err)
	assert.Equal(t, "undefined,undefined", result)
}

func TestUtilities_Encoding(t *testing.T) {
	prg, err := compileSource(t, newEngine(t, Config{}), `atob(btoa("row"))`)
	require.NoError(t, err)

	s, err := prg.NewSession()
	require.NoError(t, err)

	result, err := s.Eval(t.Context(), nil)
	require.NoError(t, err)
	assert.Equal(t, "row", result)
}
