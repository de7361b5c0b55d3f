package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "github.com/wehubfusion/Daedalus/pkg/errors"
	"github.com/wehubfusion/Daedalus/pkg/settings"
)

const areaScript = `//@ Integer width
//@ Integer(value=2) height
//@output Integer area
//@output String label
area = width * height;
label = "w" + width;
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// runApp runs the command line in a clean environment and returns stdout.
func runApp(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("DAEDALUS_STAGING_DIR", t.TempDir())
	t.Setenv("DAEDALUS_OTLP_ENDPOINT", "")
	t.Setenv("SENTRY_DSN", "")
	t.Setenv("DAEDALUS_PARTITIONS", "")

	var stdout bytes.Buffer
	a := newApp(strings.NewReader(stdin), &stdout)
	err := a.command().Run(t.Context(), append([]string{"daedalus"}, args...))
	return stdout.String(), err
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	script := writeFile(t, dir, "area.js", areaScript)
	input := "w:int,name\n3,a\n5,b\n"

	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "append",
			args: []string{"run", "-s", script, "-m", "w=width"},
			want: "w:int,name:string,area:int,label:string\n3,a,6,w3\n5,b,10,w5\n",
		},
		{
			name: "new table with static input",
			args: []string{"run", "-s", script, "-m", "w=width", "--static", "height=10", "--mode", "new_table"},
			want: "area:int,label:string\n30,w3\n50,w5\n",
		},
		{
			name: "streaming with suffix",
			args: []string{"run", "-s", script, "-m", "w=width", "--suffix", "_out", "--stream", "--partitions", "2"},
			want: "w:int,name:string,area_out:int,label_out:string\n3,a,6,w3\n5,b,10,w5\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runApp(t, input, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestRun_InputAndOutputFiles(t *testing.T) {
	dir := t.TempDir()
	script := writeFile(t, dir, "area.js", areaScript)
	in := writeFile(t, dir, "in.csv", "w:int\n4\n")
	outPath := filepath.Join(dir, "out.csv")

	stdout, err := runApp(t, "", "run", "-s", script, "-m", "w=width", "-i", in, "-o", outPath)
	require.NoError(t, err)
	assert.Empty(t, stdout)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, "w:int,area:int,label:string\n4,8,w4\n", string(data))
}

func TestRun_UnresolvedInputFails(t *testing.T) {
	script := writeFile(t, t.TempDir(), "area.js", areaScript)

	_, err := runApp(t, "w:int\n4\n", "run", "-s", script)
	require.Error(t, err)
	assert.ErrorIs(t, err, derrors.ErrUnresolvedInput)
}

func TestRun_Dictionary(t *testing.T) {
	dir := t.TempDir()
	script := writeFile(t, dir, "lookup.cmd", "lookup.Dictionary\n")
	dict := writeFile(t, dir, "countries.toml", "de = \"Germany\"\n")

	out, err := runApp(t, "code\nde\nfr\n",
		"run", "-s", script, "-l", "command", "-m", "code=key", "--dictionary", dict)
	require.NoError(t, err)
	assert.Equal(t, "code:string,value:string,found:boolean\nde,Germany,true\nfr,,false\n", out)
}

func TestCompile(t *testing.T) {
	script := writeFile(t, t.TempDir(), "area.js", areaScript)

	out, err := runApp(t, "", "compile", script)
	require.NoError(t, err)

	var report compileReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "javascript", report.Language)
	assert.Equal(t, "script", report.Kind)
	require.Len(t, report.Inputs, 2)
	assert.Equal(t, "width", report.Inputs[0].Name)
	require.Len(t, report.Outputs, 3)
	assert.Equal(t, "result", report.Outputs[2].Name)

	_, err = runApp(t, "", "compile")
	assert.ErrorContains(t, err, "script file path required")
}

func TestSettingsPushPull(t *testing.T) {
	dir := t.TempDir()
	store := filepath.Join(dir, "store")
	file := writeFile(t, dir, "node.toml", "script = '1;'\nlanguage = 'js'\ntimeout = '5s'\n")

	out, err := runApp(t, "", "settings", "push", "--node", "node-1", "--settings-dir", store, file)
	require.NoError(t, err)
	assert.Contains(t, out, "Settings of node-1 stored")

	out, err = runApp(t, "", "settings", "pull", "--node", "node-1", "--settings-dir", store)
	require.NoError(t, err)
	s, err := settings.Unmarshal([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, "1;", s.Script)
	assert.Equal(t, "js", s.Language)
	assert.Equal(t, settings.Duration(5e9), s.Timeout)

	invalid := writeFile(t, dir, "invalid.toml", "language = 'js'\n")
	_, err = runApp(t, "", "settings", "push", "--node", "node-1", "--settings-dir", store, invalid)
	assert.ErrorIs(t, err, derrors.ErrInvalidSettings)
}

func TestVersion(t *testing.T) {
	out, err := runApp(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, Version)
}

func TestSplitPair(t *testing.T) {
	tests := []struct {
		in      string
		key     string
		value   string
		wantErr bool
	}{
		{in: "a=b", key: "a", value: "b"},
		{in: " a =b=c", key: "a", value: "b=c"},
		{in: "a=", key: "a", value: ""},
		{in: "novalue", wantErr: true},
		{in: "=b", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			k, v, err := splitPair(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.key, k)
			assert.Equal(t, tt.value, v)
		})
	}
}

func TestRun_DictionaryServiceRequired(t *testing.T) {
	script := writeFile(t, t.TempDir(), "lookup.cmd", "lookup.Dictionary\n")

	_, err := runApp(t, "k\nx\n", "run", "-s", script, "-l", "command", "-m", "k=key")
	require.Error(t, err)
	assert.ErrorIs(t, err, derrors.ErrModuleCreation)
}
