package javascript

import (
	"fmt"

	"github.com/dop251/goja"
)

// hiddenGlobals are Node.js style names that are undefined in every runtime.
var hiddenGlobals = []string{
	"require", "module", "exports", "process", "global",
	"__dirname", "__filename", "Buffer", "setImmediate", "clearImmediate",
}

// frozenBuiltins are frozen outside the permissive level. Only plain objects
// (Math) are affected; constructors stay extensible.
var frozenBuiltins = []any{
	"Object", "Array", "Function", "String", "Number",
	"Boolean", "Date", "RegExp", "Error", "Math",
}

var freezeProgram = goja.MustCompile("freeze.js", `(function(names) {
	for (var i = 0; i < names.length; i++) {
		var obj = this[names[i]];
		if (!obj || typeof obj !== 'object') continue;
		try {
			Object.freeze(obj);
			if (obj.prototype) Object.freeze(obj.prototype);
		} catch (e) {}
	}
})`, true)

// restrict applies the restrictions of the configured security level to vm.
func restrict(vm *goja.Runtime, config *Config) error {
	for _, name := range hiddenGlobals {
		if err := vm.Set(name, goja.Undefined()); err != nil {
			return fmt.Errorf("failed to hide %s: %w", name, err)
		}
	}

	if config.SecurityLevel == SecurityLevelStrict {
		err := vm.Set("eval", func(goja.FunctionCall) goja.Value {
			panic(vm.NewGoError(NewSecurityError("eval is not allowed in strict security mode")))
		})
		if err != nil {
			return err
		}
	}

	if config.SecurityLevel != SecurityLevelPermissive {
		fn, err := vm.RunProgram(freezeProgram)
		if err != nil {
			return fmt.Errorf("failed to load freeze helper: %w", err)
		}
		freeze, ok := goja.AssertFunction(fn)
		if !ok {
			return fmt.Errorf("freeze helper is not a function")
		}
		if _, err := freeze(vm.GlobalObject(), vm.NewArray(frozenBuiltins...)); err != nil {
			return fmt.Errorf("failed to freeze built-ins: %w", err)
		}
	}

	if config.MaxCallStackSize > 0 {
		vm.SetMaxCallStackSize(config.MaxCallStackSize)
	}
	return nil
}
