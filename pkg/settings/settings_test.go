package settings

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "github.com/wehubfusion/Daedalus/pkg/errors"
)

func validSettings() *Settings {
	s := &Settings{
		Script:   "//@ Integer width\nresult = width * 2;",
		Language: "javascript",
		Mappings: []string{"w\nwidth"},
	}
	s.ApplyDefaults()
	return s
}

func TestSettings_ApplyDefaults(t *testing.T) {
	var s Settings
	s.ApplyDefaults()

	assert.Equal(t, ModeAppend, s.ColumnCreationMode)
	assert.Equal(t, DefaultTimeout, s.ExecutionTimeout())
	assert.NotNil(t, s.StaticInputs)
}

func TestSettings_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *Settings)
		wantErr string
	}{
		{name: "valid", mutate: func(*Settings) {}},
		{name: "missing language", mutate: func(s *Settings) { s.Language = " " }, wantErr: "language is required"},
		{name: "missing script", mutate: func(s *Settings) { s.Script = "" }, wantErr: "script is required"},
		{name: "unknown mode", mutate: func(s *Settings) { s.ColumnCreationMode = "replace" }, wantErr: "unknown column creation mode"},
		{name: "negative timeout", mutate: func(s *Settings) { s.Timeout = Duration(-time.Second) }, wantErr: "timeout cannot be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			tt.mutate(s)
			err := s.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, derrors.ErrInvalidSettings)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMarshal_RoundTrip(t *testing.T) {
	s := validSettings()
	s.ColumnSuffix = "_out"
	s.StaticInputs["height"] = "4"
	s.Timeout = Duration(90 * time.Second)

	data, err := Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), "1m30s")

	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestUnmarshal_InvalidDuration(t *testing.T) {
	_, err := Unmarshal([]byte("language = 'js'\ntimeout = 'soon'\n"))
	assert.Error(t, err)
}
