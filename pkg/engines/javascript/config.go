package javascript

import (
	"fmt"
	"slices"
)

// SecurityLevel defines the security restrictions for JavaScript execution
const (
	SecurityLevelStrict     = "strict"
	SecurityLevelStandard   = "standard"
	SecurityLevelPermissive = "permissive"
)

// Config represents the runtime configuration shared by all sessions of the engine
type Config struct {
	// SecurityLevel controls which globals are removed and which utilities load
	SecurityLevel string `json:"security_level,omitempty" toml:"security_level,omitempty"`

	// MaxCallStackSize bounds recursion depth; 0 leaves goja's default
	MaxCallStackSize int `json:"max_call_stack_size,omitempty" toml:"max_call_stack_size,omitempty"`

	// EnabledUtilities lists the utilities to register in each runtime
	EnabledUtilities []string `json:"enabled_utilities,omitempty" toml:"enabled_utilities,omitempty"`
}

// ApplyDefaults sets default values for unset fields
func (c *Config) ApplyDefaults() {
	if c.SecurityLevel == "" {
		c.SecurityLevel = SecurityLevelStandard
	}
	if c.MaxCallStackSize == 0 {
		c.MaxCallStackSize = 1000
	}
	if c.EnabledUtilities == nil {
		c.EnabledUtilities = []string{"console", "encoding"}
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	levels := []string{SecurityLevelStrict, SecurityLevelStandard, SecurityLevelPermissive}
	if !slices.Contains(levels, c.SecurityLevel) {
		return fmt.Errorf("invalid security level %q", c.SecurityLevel)
	}
	if c.MaxCallStackSize < 0 {
		return fmt.Errorf("max call stack size cannot be negative")
	}
	return nil
}
