// Package settings holds the persisted configuration of a script node.
package settings

import (
	"fmt"
	"strings"
	"time"

	derrors "github.com/wehubfusion/Daedalus/pkg/errors"
)

// ColumnCreationMode selects how output cells are added to the input table.
type ColumnCreationMode string

const (
	// ModeAppend keeps the input columns and appends the output columns.
	ModeAppend ColumnCreationMode = "append"
	// ModeNewTable emits only the output columns, keyed by the input row keys.
	ModeNewTable ColumnCreationMode = "new_table"
)

// DefaultTimeout bounds a single module execution.
const DefaultTimeout = 30 * time.Second

// Duration is a time.Duration stored in its textual form ("1m30s").
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Settings is everything a node needs to compile and run its script.
type Settings struct {
	// Script is the source text.
	Script   string `json:"script" toml:"script"`
	Language string `json:"language" toml:"language"`

	// Mappings is the serialized column to item mapping list, one
	// "column\nitem" entry per mapping.
	Mappings []string `json:"mappings,omitempty" toml:"mappings,omitempty"`

	ColumnCreationMode ColumnCreationMode `json:"column_creation_mode" toml:"column_creation_mode"`
	ColumnSuffix       string             `json:"column_suffix,omitempty" toml:"column_suffix,omitempty"`

	// StaticInputs holds manually entered values for inputs that are not
	// filled from columns, in their textual form.
	StaticInputs map[string]string `json:"static_inputs,omitempty" toml:"static_inputs,omitempty"`

	Timeout Duration `json:"timeout" toml:"timeout"`
}

// ApplyDefaults fills unset fields.
func (s *Settings) ApplyDefaults() {
	if s.ColumnCreationMode == "" {
		s.ColumnCreationMode = ModeAppend
	}
	if s.Timeout == 0 {
		s.Timeout = Duration(DefaultTimeout)
	}
	if s.StaticInputs == nil {
		s.StaticInputs = map[string]string{}
	}
}

// Validate checks the settings after defaults have been applied.
func (s *Settings) Validate() error {
	if strings.TrimSpace(s.Language) == "" {
		return invalid("language is required")
	}
	if strings.TrimSpace(s.Script) == "" {
		return invalid("script is required")
	}
	switch s.ColumnCreationMode {
	case ModeAppend, ModeNewTable:
	default:
		return invalid(fmt.Sprintf("unknown column creation mode %q", s.ColumnCreationMode))
	}
	if s.Timeout < 0 {
		return invalid("timeout cannot be negative")
	}
	return nil
}

// ExecutionTimeout returns the timeout as a time.Duration.
func (s *Settings) ExecutionTimeout() time.Duration {
	return time.Duration(s.Timeout)
}

func invalid(msg string) error {
	return derrors.NewError(derrors.CodeInvalidSettings, msg, nil)
}
