package javascript

import (
	"encoding/base64"
	"fmt"
	"slices"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// Utility defines the interface for JavaScript utilities
type Utility interface {
	// Name returns the unique name of the utility
	Name() string

	// Register registers the utility in the runtime
	Register(vm *goja.Runtime) error

	// AllowedSecurityLevels returns the security levels that allow this utility
	AllowedSecurityLevels() []string
}

// UtilityRegistry manages available JavaScript utilities
type UtilityRegistry struct {
	utilities map[string]Utility
}

// NewUtilityRegistry creates a registry with the built-in utilities
func NewUtilityRegistry(logger *zap.Logger) *UtilityRegistry {
	r := &UtilityRegistry{utilities: make(map[string]Utility)}
	r.Register(&ConsoleUtility{logger: logger})
	r.Register(&EncodingUtility{})
	return r
}

// Register adds a utility to the registry
func (r *UtilityRegistry) Register(u Utility) {
	r.utilities[u.Name()] = u
}

// RegisterEnabled registers all enabled utilities allowed at the configured level
func (r *UtilityRegistry) RegisterEnabled(vm *goja.Runtime, config *Config) error {
	for _, name := range config.EnabledUtilities {
		u, ok := r.utilities[name]
		if !ok {
			continue
		}
		if !slices.Contains(u.AllowedSecurityLevels(), config.SecurityLevel) {
			continue
		}
		if err := u.Register(vm); err != nil {
			return fmt.Errorf("failed to register utility %s: %w", name, err)
		}
	}
	return nil
}

// ConsoleUtility routes console.log and friends to the engine logger
type ConsoleUtility struct {
	logger *zap.Logger
}

func (u *ConsoleUtility) Name() string { return "console" }

func (u *ConsoleUtility) AllowedSecurityLevels() []string {
	return []string{SecurityLevelStrict, SecurityLevelStandard, SecurityLevelPermissive}
}

func (u *ConsoleUtility) Register(vm *goja.Runtime) error {
	console := vm.NewObject()

	logAt := func(log func(string, ...zap.Field)) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			args := make([]any, len(call.Arguments))
			for i, arg := range call.Arguments {
				args[i] = arg.Export()
			}
			log(fmt.Sprint(args...), zap.String("source", "script"))
			return goja.Undefined()
		}
	}

	if err := console.Set("log", logAt(u.logger.Info)); err != nil {
		return err
	}
	if err := console.Set("info", logAt(u.logger.Info)); err != nil {
		return err
	}
	if err := console.Set("debug", logAt(u.logger.Debug)); err != nil {
		return err
	}
	if err := console.Set("warn", logAt(u.logger.Warn)); err != nil {
		return err
	}
	if err := console.Set("error", logAt(u.logger.Error)); err != nil {
		return err
	}
	return vm.Set("console", console)
}

// EncodingUtility provides btoa, atob for base64 encoding
type EncodingUtility struct{}

func (u *EncodingUtility) Name() string { return "encoding" }

func (u *EncodingUtility) AllowedSecurityLevels() []string {
	return []string{SecurityLevelStandard, SecurityLevelPermissive}
}

func (u *EncodingUtility) Register(vm *goja.Runtime) error {
	if err := vm.Set("btoa", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			panic(vm.NewTypeError("btoa requires an argument"))
		}
		return vm.ToValue(base64.StdEncoding.EncodeToString([]byte(call.Argument(0).String())))
	}); err != nil {
		return err
	}

	return vm.Set("atob", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			panic(vm.NewTypeError("atob requires an argument"))
		}
		decoded, err := base64.StdEncoding.DecodeString(call.Argument(0).String())
		if err != nil {
			panic(vm.NewGoError(fmt.Errorf("atob error: %w", err)))
		}
		return vm.ToValue(string(decoded))
	})
}
